package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/amortization"
	"github.com/sjperalta/kredim-api/internal/jobs"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/repository"
	"github.com/sjperalta/kredim-api/internal/statemachine"
	"github.com/sjperalta/kredim-api/internal/storage"
	"github.com/sjperalta/kredim-api/pkg/logger"
)

type PaymentService struct {
	tx                repository.UnitOfWork
	loanRepo          repository.LoanRepository
	installmentRepo   repository.InstallmentRepository
	recordRepo        repository.PaymentRecordRepository
	userRepo          repository.UserRepository
	notificationSvc   *NotificationService
	emailSvc          *EmailService
	auditSvc          *AuditService
	storage           *storage.LocalStorage
	worker            *jobs.Worker
	cal               calendar
	reminderDaysAhead int
	locks             *loanLocks
}

func NewPaymentService(
	tx repository.UnitOfWork,
	loanRepo repository.LoanRepository,
	installmentRepo repository.InstallmentRepository,
	recordRepo repository.PaymentRecordRepository,
	userRepo repository.UserRepository,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	auditSvc *AuditService,
	storage *storage.LocalStorage,
	worker *jobs.Worker,
	loc *time.Location,
	reminderDaysAhead int,
) *PaymentService {
	return &PaymentService{
		tx:                tx,
		loanRepo:          loanRepo,
		installmentRepo:   installmentRepo,
		recordRepo:        recordRepo,
		userRepo:          userRepo,
		notificationSvc:   notificationSvc,
		emailSvc:          emailSvc,
		auditSvc:          auditSvc,
		storage:           storage,
		worker:            worker,
		cal:               newCalendar(loc),
		reminderDaysAhead: reminderDaysAhead,
		locks:             newLoanLocks(),
	}
}

// PayInput describes one payment action against a loan
type PayInput struct {
	Amount          decimal.Decimal `json:"amount"`
	Channel         string          `json:"channel"`
	Note            *string         `json:"note"`
	PaymentDate     string          `json:"payment_date"`
	Aggregate       bool            `json:"aggregate"`
	ExpectedVersion *int            `json:"expected_version"`
}

// PaymentResult is the outcome of Pay. Records is empty when nothing was outstanding.
type PaymentResult struct {
	OperationID  string                         `json:"operation_id,omitempty"`
	Allocated    decimal.Decimal                `json:"allocated"`
	Records      []models.PaymentRecordResponse `json:"records"`
	Installments []models.InstallmentResponse   `json:"installments"`
	Loan         models.LoanResponse            `json:"loan"`
}

// ReversalResult is the outcome of deleting payment records
type ReversalResult struct {
	Reversed     decimal.Decimal              `json:"reversed"`
	Installments []models.InstallmentResponse `json:"installments"`
	Loan         models.LoanResponse          `json:"loan"`
}

// lockOwned locks the loan row inside r and checks it belongs to userID
func lockOwned(ctx context.Context, r *repository.Repositories, loanID, userID uint) (*models.Loan, error) {
	loan, err := r.Loan.LockByID(ctx, loanID)
	if err != nil {
		return nil, notFound(err)
	}
	if loan.UserID != userID {
		return nil, ErrNotFound
	}
	return loan, nil
}

// saveAggregate reloads the plan, recomputes the loan figures and writes them if the
// loan version is still expectedVersion.
func saveAggregate(ctx context.Context, r *repository.Repositories, loan *models.Loan, expectedVersion int) error {
	plan, err := r.Installment.FindByLoan(ctx, loan.ID)
	if err != nil {
		return err
	}
	if _, err := applySummary(ctx, loan, plan); err != nil {
		return err
	}
	if err := r.Loan.UpdateAggregate(ctx, loan, expectedVersion); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return ErrConcurrentModification
		}
		return err
	}
	loan.Installments = plan
	return nil
}

// Pay distributes a payment over the loan's outstanding installments, earliest due first.
func (s *PaymentService) Pay(ctx context.Context, userID, loanID uint, input PayInput, ip, userAgent string) (*PaymentResult, error) {
	channel := input.Channel
	if channel == "" {
		channel = models.PaymentChannelTransfer
	}
	if !models.ValidPaymentChannel(channel) {
		return nil, fmt.Errorf("%w: bilinmeyen ödeme kanalı %q", ErrValidation, channel)
	}
	paidAt, err := s.cal.parseDate(input.PaymentDate)
	if err != nil {
		return nil, err
	}
	if paidAt.After(s.cal.today()) {
		return nil, fmt.Errorf("%w: ödeme tarihi gelecekte olamaz", ErrValidation)
	}

	unlock := s.locks.lock(loanID)
	defer unlock()

	operationID := uuid.NewString()
	var (
		loan    *models.Loan
		alloc   *amortization.Allocation
		records []models.PaymentRecord
	)

	err = s.tx.Do(ctx, func(r *repository.Repositories) error {
		var err error
		if loan, err = lockOwned(ctx, r, loanID, userID); err != nil {
			return err
		}
		version := loan.Version
		if input.ExpectedVersion != nil && *input.ExpectedVersion != version {
			return ErrConcurrentModification
		}

		outstanding, err := r.Installment.FindOutstandingByLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if alloc, err = amortization.Allocate(input.Amount, outstanding, paidAt); err != nil {
			return err
		}

		touched := alloc.Touched()
		if err := applyTransitions(ctx, outstanding, touched, paidAt); err != nil {
			return err
		}
		if err := r.Installment.UpdateBatch(ctx, touched); err != nil {
			return err
		}

		records = paymentRecords(loanID, operationID, alloc, input, channel, paidAt)
		if err := r.PaymentRecord.CreateBatch(ctx, records); err != nil {
			return err
		}

		return saveAggregate(ctx, r, loan, version)
	})

	if errors.Is(err, amortization.ErrNoOutstandingInstallments) && loan != nil {
		logger.Info("[PaymentService] nothing outstanding, payment ignored", "loan_id", loanID, "user_id", userID)
		return &PaymentResult{
			Allocated:    decimal.Zero,
			Records:      []models.PaymentRecordResponse{},
			Installments: []models.InstallmentResponse{},
			Loan:         loan.ToResponse(),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Info("[PaymentService] payment recorded",
		"loan_id", loanID,
		"operation_id", operationID,
		"amount", alloc.Total.StringFixed(2),
		"installments", len(alloc.Settlements),
		"remaining_debt", loan.RemainingDebt.StringFixed(2),
		"status", loan.Status)

	result := &PaymentResult{
		OperationID:  operationID,
		Allocated:    alloc.Total,
		Records:      make([]models.PaymentRecordResponse, 0, len(records)),
		Installments: make([]models.InstallmentResponse, 0, len(alloc.Settlements)),
	}
	for i := range records {
		result.Records = append(result.Records, records[i].ToResponse())
	}
	for _, inst := range alloc.Touched() {
		result.Installments = append(result.Installments, inst.ToResponse())
	}
	summaryLoan := *loan
	summaryLoan.Installments = nil
	result.Loan = summaryLoan.ToResponse()

	numbers := make(map[uint]int, len(alloc.Settlements))
	for _, st := range alloc.Settlements {
		numbers[st.InstallmentID] = st.InstallmentNumber
	}
	s.afterPayment(userID, &summaryLoan, records, numbers, alloc.Total)

	s.auditSvc.Log(ctx, userID, models.AuditActionPay, "Loan", loanID,
		fmt.Sprintf("Ödeme %s: %s TL, %d taksit, kanal %s", operationID, alloc.Total.StringFixed(2), len(alloc.Settlements), channel),
		ip, userAgent)

	return result, nil
}

func paymentRecords(loanID uint, operationID string, alloc *amortization.Allocation, input PayInput, channel string, paidAt time.Time) []models.PaymentRecord {
	base := models.PaymentRecord{
		LoanID:      loanID,
		OperationID: operationID,
		PaymentDate: paidAt,
		Channel:     channel,
		Note:        input.Note,
	}

	if input.Aggregate {
		rec := base
		rec.Kind = models.PaymentKindAggregate
		rec.Amount = alloc.Total
		rec.PrincipalPortion = alloc.Principal()
		rec.InterestPortion = alloc.Interest()
		rec.Settlements = make([]models.PaymentSettlement, 0, len(alloc.Settlements))
		for i, st := range alloc.Settlements {
			rec.Settlements = append(rec.Settlements, models.PaymentSettlement{
				InstallmentID:    st.InstallmentID,
				Position:         i,
				Kind:             st.Kind,
				Amount:           st.Amount,
				PrincipalPortion: st.Principal,
				InterestPortion:  st.Interest,
			})
		}
		return []models.PaymentRecord{rec}
	}

	records := make([]models.PaymentRecord, 0, len(alloc.Settlements))
	for _, st := range alloc.Settlements {
		rec := base
		id := st.InstallmentID
		rec.InstallmentID = &id
		rec.Kind = st.Kind
		rec.Amount = st.Amount
		rec.PrincipalPortion = st.Principal
		rec.InterestPortion = st.Interest
		records = append(records, rec)
	}
	return records
}

func (s *PaymentService) afterPayment(userID uint, loan *models.Loan, records []models.PaymentRecord, numbers map[uint]int, total decimal.Decimal) {
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.Notify(ctx, Notice{
			UserID:  userID,
			LoanID:  loan.ID,
			Type:    models.NotificationTypePaymentRecorded,
			Title:   "Ödeme kaydedildi",
			Message: fmt.Sprintf("%s kredisine %s ödeme kaydedildi. Kalan borç: %s", loan.Name, formatTL(total), formatTL(loan.RemainingDebt)),
		})
	})

	if loan.IsClosed() {
		s.worker.EnqueueAsync(func(ctx context.Context) error {
			return s.notificationSvc.Notify(ctx, Notice{
				UserID:  userID,
				LoanID:  loan.ID,
				Type:    models.NotificationTypeLoanClosed,
				Title:   "Kredi kapandı",
				Message: fmt.Sprintf("%s kredinizin tüm taksitleri ödendi", loan.Name),
			})
		})
	}

	s.worker.EnqueueAsync(func(ctx context.Context) error {
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.emailSvc.SendPaymentReceipt(ctx, user, loan, records, numbers); err != nil {
			return err
		}
		if loan.IsClosed() {
			return s.emailSvc.SendLoanClosed(ctx, user, loan)
		}
		return nil
	})
}

// DeleteRecord reverses a single payment record and deletes it. Every record is undone
// with the portions it stored for each installment it settled.
func (s *PaymentService) DeleteRecord(ctx context.Context, userID, recordID uint, ip, userAgent string) (*ReversalResult, error) {
	record, err := s.recordRepo.FindByID(ctx, recordID)
	if err != nil {
		return nil, notFound(err)
	}
	loanID := record.LoanID

	unlock := s.locks.lock(loanID)
	defer unlock()

	var (
		loan *models.Loan
		rev  *amortization.Reversal
	)
	err = s.tx.Do(ctx, func(r *repository.Repositories) error {
		var err error
		if loan, err = lockOwned(ctx, r, loanID, userID); err != nil {
			return err
		}
		version := loan.Version

		// reread under the row lock
		if record, err = r.PaymentRecord.FindByID(ctx, recordID); err != nil {
			return notFound(err)
		}

		plan, err := r.Installment.FindByLoan(ctx, loanID)
		if err != nil {
			return err
		}

		today := s.cal.today()
		if rev, err = reverseRecords(ctx, r, loanID, []models.PaymentRecord{*record}, plan, today); err != nil {
			return err
		}

		if err := s.persistReversal(ctx, r, plan, rev, today); err != nil {
			return err
		}
		if err := r.PaymentRecord.Delete(ctx, record.ID); err != nil {
			return err
		}
		return saveAggregate(ctx, r, loan, version)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[PaymentService] payment record reversed",
		"loan_id", loanID, "record_id", recordID, "amount", rev.Total.StringFixed(2), "status", loan.Status)

	if record.ReceiptPath != nil {
		s.removeReceipt(*record.ReceiptPath)
	}
	s.afterReversal(userID, loan, rev.Total)
	s.auditSvc.Log(ctx, userID, models.AuditActionReverse, "PaymentRecord", recordID,
		fmt.Sprintf("Ödeme kaydı silindi: %s TL (%s)", rev.Total.StringFixed(2), record.Kind), ip, userAgent)

	return reversalResult(loan, rev), nil
}

// ReverseOperation undoes every record of one payment action, last record first, and deletes them.
func (s *PaymentService) ReverseOperation(ctx context.Context, userID, loanID uint, operationID string, ip, userAgent string) (*ReversalResult, error) {
	unlock := s.locks.lock(loanID)
	defer unlock()

	var (
		loan    *models.Loan
		rev     *amortization.Reversal
		records []models.PaymentRecord
	)
	err := s.tx.Do(ctx, func(r *repository.Repositories) error {
		var err error
		if loan, err = lockOwned(ctx, r, loanID, userID); err != nil {
			return err
		}
		version := loan.Version

		if records, err = r.PaymentRecord.FindByOperation(ctx, loanID, operationID); err != nil {
			return err
		}
		if len(records) == 0 {
			return ErrNotFound
		}

		plan, err := r.Installment.FindByLoan(ctx, loanID)
		if err != nil {
			return err
		}

		today := s.cal.today()
		if rev, err = reverseRecords(ctx, r, loanID, records, plan, today); err != nil {
			return err
		}

		if err := s.persistReversal(ctx, r, plan, rev, today); err != nil {
			return err
		}
		if err := r.PaymentRecord.DeleteByOperation(ctx, loanID, operationID); err != nil {
			return err
		}
		return saveAggregate(ctx, r, loan, version)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[PaymentService] payment operation reversed",
		"loan_id", loanID, "operation_id", operationID, "records", len(records), "amount", rev.Total.StringFixed(2))

	for i := range records {
		if records[i].ReceiptPath != nil {
			s.removeReceipt(*records[i].ReceiptPath)
		}
	}
	s.afterReversal(userID, loan, rev.Total)
	s.auditSvc.Log(ctx, userID, models.AuditActionReverse, "Loan", loanID,
		fmt.Sprintf("Ödeme %s geri alındı: %s TL, %d kayıt", operationID, rev.Total.StringFixed(2), len(records)), ip, userAgent)

	return reversalResult(loan, rev), nil
}

func (s *PaymentService) persistReversal(ctx context.Context, r *repository.Repositories, plan []models.Installment, rev *amortization.Reversal, today time.Time) error {
	touched := rev.Touched()
	if err := applyTransitions(ctx, plan, touched, today); err != nil {
		return err
	}
	return r.Installment.UpdateBatch(ctx, touched)
}

// reverseRecords undoes the installment changes behind records, last settlement first.
// Linked records stand for one settlement and aggregate records carry theirs. Aggregate
// rows saved without settlements can only be undone by amount, and only while they belong
// to the latest payment of the loan.
func reverseRecords(ctx context.Context, r *repository.Repositories, loanID uint, records []models.PaymentRecord, plan []models.Installment, today time.Time) (*amortization.Reversal, error) {
	var settlements []amortization.Settlement
	unlinked := decimal.Zero
	operationID := ""

	for i := range records {
		rec := &records[i]
		switch {
		case !rec.IsAggregate():
			settlements = append(settlements, settlementOf(rec, plan))
		case len(rec.Settlements) > 0:
			for _, ps := range rec.Settlements {
				settlements = append(settlements, storedSettlement(ps, plan))
			}
		default:
			unlinked = unlinked.Add(rec.Amount)
			operationID = rec.OperationID
		}
	}

	if !unlinked.IsPositive() {
		return amortization.Reverse(settlements, plan, today)
	}
	if len(settlements) > 0 {
		return nil, fmt.Errorf("%w: toplu ödeme dağılımı eksik", amortization.ErrReversalConflict)
	}

	latest, err := r.PaymentRecord.LatestOperationID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if latest != operationID {
		return nil, fmt.Errorf("%w: toplu ödeme yalnızca en son ödeme ise geri alınabilir", amortization.ErrReversalConflict)
	}
	return amortization.ReverseAmount(unlinked, plan, today)
}

// settlementOf rebuilds the settlement a linked record stands for. A record whose
// installment no longer exists yields a settlement Reverse rejects.
func settlementOf(record *models.PaymentRecord, plan []models.Installment) amortization.Settlement {
	st := amortization.Settlement{
		Kind:      record.Kind,
		Amount:    record.Amount,
		Principal: record.PrincipalPortion,
		Interest:  record.InterestPortion,
	}
	if record.InstallmentID == nil {
		return st
	}
	st.InstallmentID = *record.InstallmentID
	st.InstallmentNumber = installmentNumber(plan, st.InstallmentID)
	return st
}

func storedSettlement(ps models.PaymentSettlement, plan []models.Installment) amortization.Settlement {
	return amortization.Settlement{
		InstallmentID:     ps.InstallmentID,
		InstallmentNumber: installmentNumber(plan, ps.InstallmentID),
		Kind:              ps.Kind,
		Amount:            ps.Amount,
		Principal:         ps.PrincipalPortion,
		Interest:          ps.InterestPortion,
	}
}

func installmentNumber(plan []models.Installment, id uint) int {
	for i := range plan {
		if plan[i].ID == id {
			return plan[i].InstallmentNumber
		}
	}
	return 0
}

func reversalResult(loan *models.Loan, rev *amortization.Reversal) *ReversalResult {
	result := &ReversalResult{
		Reversed:     rev.Total,
		Installments: make([]models.InstallmentResponse, 0, len(rev.Settlements)),
	}
	for _, inst := range rev.Touched() {
		result.Installments = append(result.Installments, inst.ToResponse())
	}
	summaryLoan := *loan
	summaryLoan.Installments = nil
	result.Loan = summaryLoan.ToResponse()
	return result
}

func (s *PaymentService) afterReversal(userID uint, loan *models.Loan, amount decimal.Decimal) {
	snapshot := *loan
	snapshot.Installments = nil

	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.Notify(ctx, Notice{
			UserID:  userID,
			LoanID:  snapshot.ID,
			Type:    models.NotificationTypePaymentReversed,
			Title:   "Ödeme geri alındı",
			Message: fmt.Sprintf("%s kredisinden %s tutarındaki ödeme geri alındı", snapshot.Name, formatTL(amount)),
		})
	})

	s.worker.EnqueueAsync(func(ctx context.Context) error {
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		return s.emailSvc.SendPaymentReversed(ctx, user, &snapshot, amount)
	})
}

func (s *PaymentService) removeReceipt(path string) {
	if err := s.storage.Delete(path); err != nil {
		logger.Warn("[PaymentService] failed to delete receipt", "path", path, "error", err)
	}
}

// ListRecords returns the payment history of a loan, newest first
func (s *PaymentService) ListRecords(ctx context.Context, userID, loanID uint, query *repository.ListQuery) ([]models.PaymentRecord, int64, error) {
	if _, err := s.loanRepo.FindByIDForUser(ctx, loanID, userID); err != nil {
		return nil, 0, notFound(err)
	}
	if query == nil {
		query = repository.NewListQuery()
	}
	return s.recordRepo.FindByLoan(ctx, loanID, query)
}

func (s *PaymentService) ownedRecord(ctx context.Context, userID, recordID uint) (*models.PaymentRecord, error) {
	record, err := s.recordRepo.FindByID(ctx, recordID)
	if err != nil {
		return nil, notFound(err)
	}
	if _, err := s.loanRepo.FindByIDForUser(ctx, record.LoanID, userID); err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

// UploadReceipt stores a bank receipt (dekont) for a payment record, replacing any previous one
func (s *PaymentService) UploadReceipt(ctx context.Context, userID, recordID uint, file io.Reader, filename string) (*models.PaymentRecord, error) {
	record, err := s.ownedRecord(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}

	path, contentType, err := s.storage.Save(file, filename, fmt.Sprintf("receipts/loan_%d", record.LoanID))
	if err != nil {
		return nil, err
	}

	if err := s.recordRepo.UpdateReceipt(ctx, record.ID, path); err != nil {
		s.removeReceipt(path)
		return nil, err
	}
	if record.ReceiptPath != nil && *record.ReceiptPath != path {
		s.removeReceipt(*record.ReceiptPath)
	}

	logger.Info("[PaymentService] receipt uploaded", "record_id", record.ID, "content_type", contentType)
	record.ReceiptPath = &path
	return record, nil
}

// DownloadReceipt opens the stored receipt of a payment record. The caller closes the reader.
func (s *PaymentService) DownloadReceipt(ctx context.Context, userID, recordID uint) (io.ReadCloser, string, string, error) {
	record, err := s.ownedRecord(ctx, userID, recordID)
	if err != nil {
		return nil, "", "", err
	}
	if record.ReceiptPath == nil || *record.ReceiptPath == "" {
		return nil, "", "", ErrNoReceipt
	}

	rc, contentType, err := s.storage.Open(*record.ReceiptPath)
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: %v", ErrNoReceipt, err)
	}
	filename := fmt.Sprintf("dekont_%d%s", record.ID, filepath.Ext(*record.ReceiptPath))
	return rc, contentType, filename, nil
}

// MarkOverdueInstallments moves pending installments past their due date to overdue and
// recomputes the affected loans.
func (s *PaymentService) MarkOverdueInstallments(ctx context.Context) error {
	today := s.cal.today()
	installments, err := s.installmentRepo.FindPendingDueBefore(ctx, today)
	if err != nil {
		return err
	}
	if len(installments) == 0 {
		return nil
	}

	byLoan := make(map[uint]bool)
	var loanIDs []uint
	for i := range installments {
		if !byLoan[installments[i].LoanID] {
			byLoan[installments[i].LoanID] = true
			loanIDs = append(loanIDs, installments[i].LoanID)
		}
	}

	var failed int
	for _, loanID := range loanIDs {
		marked, err := s.markLoanOverdue(ctx, loanID, today)
		if err != nil {
			failed++
			logger.Error("[PaymentService] failed to mark overdue installments", "loan_id", loanID, "error", err)
			continue
		}
		if len(marked) > 0 {
			logger.Info("[PaymentService] installments marked overdue", "loan_id", loanID, "count", len(marked))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d kredi güncellenemedi", failed)
	}
	return nil
}

func (s *PaymentService) markLoanOverdue(ctx context.Context, loanID uint, today time.Time) ([]models.Installment, error) {
	unlock := s.locks.lock(loanID)
	defer unlock()

	var (
		loan   *models.Loan
		marked []models.Installment
	)
	err := s.tx.Do(ctx, func(r *repository.Repositories) error {
		var err error
		if loan, err = r.Loan.LockByID(ctx, loanID); err != nil {
			return err
		}
		version := loan.Version

		outstanding, err := r.Installment.FindOutstandingByLoan(ctx, loanID)
		if err != nil {
			return err
		}
		for i := range outstanding {
			inst := &outstanding[i]
			if inst.Status != models.InstallmentStatusPending || !inst.DueDate.Before(today) {
				continue
			}
			if err := statemachine.NewInstallmentFSM(inst).MarkOverdue(ctx, today); err != nil {
				return err
			}
			marked = append(marked, *inst)
		}
		if len(marked) == 0 {
			return nil
		}

		if err := r.Installment.UpdateBatch(ctx, marked); err != nil {
			return err
		}
		return saveAggregate(ctx, r, loan, version)
	})
	if err != nil || len(marked) == 0 {
		return marked, err
	}

	userID := loan.UserID
	snapshot := *loan
	snapshot.Installments = nil
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.Notify(ctx, Notice{
			UserID:  userID,
			LoanID:  snapshot.ID,
			Type:    models.NotificationTypeInstallmentOverdue,
			Title:   "Gecikmiş taksit",
			Message: fmt.Sprintf("%s kredinizde %d taksitin vadesi geçti", snapshot.Name, len(marked)),
		})
	})
	s.worker.EnqueueAsync(func(ctx context.Context) error {
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		return s.emailSvc.SendOverdueNotice(ctx, user, &snapshot, marked, today)
	})

	return marked, nil
}

// SendUpcomingReminders emails every user one reminder listing the installments due within
// the configured number of days. Each installment is reminded once.
func (s *PaymentService) SendUpcomingReminders(ctx context.Context) error {
	today := s.cal.today()
	until := today.AddDate(0, 0, s.reminderDaysAhead)

	installments, err := s.installmentRepo.FindDueBetween(ctx, today, until)
	if err != nil {
		return err
	}

	byUser := make(map[uint][]models.Installment)
	users := make(map[uint]*models.User)
	var order []uint
	for _, inst := range installments {
		if inst.Loan.IsClosed() {
			continue
		}
		uid := inst.Loan.UserID
		if _, ok := byUser[uid]; !ok {
			order = append(order, uid)
			user := inst.Loan.User
			users[uid] = &user
		}
		byUser[uid] = append(byUser[uid], inst)
	}

	sent := 0
	for _, uid := range order {
		items := byUser[uid]
		if err := s.emailSvc.SendUpcomingInstallments(ctx, users[uid], items, today); err != nil {
			logger.Warn("[PaymentService] reminder email failed", "user_id", uid, "error", err)
			continue
		}

		ids := make([]uint, 0, len(items))
		for i := range items {
			ids = append(ids, items[i].ID)
		}
		if err := s.installmentRepo.MarkReminderSent(ctx, ids); err != nil {
			logger.Error("[PaymentService] failed to mark reminders sent", "user_id", uid, "error", err)
			continue
		}

		if err := s.notificationSvc.Notify(ctx, Notice{
			UserID:  uid,
			Type:    models.NotificationTypeInstallmentDueSoon,
			Title:   "Yaklaşan taksit",
			Message: fmt.Sprintf("%d gün içinde ödemeniz gereken %d taksit var", s.reminderDaysAhead, len(items)),
		}); err != nil {
			logger.Warn("[PaymentService] reminder notification failed", "user_id", uid, "error", err)
		}
		sent++
	}

	logger.Info("[PaymentService] upcoming reminders processed", "users", len(order), "sent", sent, "installments", len(installments))
	return nil
}
