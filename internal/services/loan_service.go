package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/amortization"
	"github.com/sjperalta/kredim-api/internal/jobs"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/repository"
	"github.com/sjperalta/kredim-api/internal/statemachine"
	"github.com/sjperalta/kredim-api/pkg/logger"
	"gorm.io/gorm"
)

const upcomingLimit = 5

var maxInterestRate = decimal.NewFromInt(1000)

type LoanService struct {
	tx              repository.UnitOfWork
	loanRepo        repository.LoanRepository
	installmentRepo repository.InstallmentRepository
	notificationSvc *NotificationService
	auditSvc        *AuditService
	worker          *jobs.Worker
	cal             calendar
	locks           *loanLocks
}

func NewLoanService(
	tx repository.UnitOfWork,
	loanRepo repository.LoanRepository,
	installmentRepo repository.InstallmentRepository,
	notificationSvc *NotificationService,
	auditSvc *AuditService,
	worker *jobs.Worker,
	loc *time.Location,
) *LoanService {
	return &LoanService{
		tx:              tx,
		loanRepo:        loanRepo,
		installmentRepo: installmentRepo,
		notificationSvc: notificationSvc,
		auditSvc:        auditSvc,
		worker:          worker,
		cal:             newCalendar(loc),
		locks:           newLoanLocks(),
	}
}

// InstallmentInput is one row of a payment plan copied from the bank
type InstallmentInput struct {
	InstallmentNumber int              `json:"installment_number" binding:"required"`
	DueDate           string           `json:"due_date" binding:"required"`
	PrincipalAmount   decimal.Decimal  `json:"principal_amount"`
	InterestAmount    decimal.Decimal  `json:"interest_amount"`
	TotalPayment      *decimal.Decimal `json:"total_payment"`
	RemainingDebt     *decimal.Decimal `json:"remaining_debt"`
	Paid              bool             `json:"paid"`
	PaymentDate       string           `json:"payment_date"`
}

// CreateLoanInput describes a new loan. Without Installments the plan is generated from
// InitialAmount, InterestRate (annual percent), TermMonths and FirstDueDate.
type CreateLoanInput struct {
	Name          string             `json:"name" binding:"required"`
	BankName      string             `json:"bank_name" binding:"required"`
	LoanType      string             `json:"loan_type"`
	InitialAmount decimal.Decimal    `json:"initial_amount"`
	InterestRate  decimal.Decimal    `json:"interest_rate"`
	TermMonths    int                `json:"term_months"`
	StartDate     string             `json:"start_date"`
	FirstDueDate  string             `json:"first_due_date"`
	Notes         *string            `json:"notes"`
	Installments  []InstallmentInput `json:"installments"`
}

// UpdateLoanInput carries the descriptive fields a user may edit
type UpdateLoanInput struct {
	Name     *string `json:"name"`
	BankName *string `json:"bank_name"`
	LoanType *string `json:"loan_type"`
	Notes    *string `json:"notes"`
}

func (s *LoanService) List(ctx context.Context, userID uint, query *repository.ListQuery) ([]models.Loan, int64, error) {
	if query == nil {
		query = repository.NewListQuery()
	}
	return s.loanRepo.FindByUser(ctx, userID, query)
}

// Get returns the loan with its installments ordered by number
func (s *LoanService) Get(ctx context.Context, userID, loanID uint) (*models.Loan, error) {
	loan, err := s.loanRepo.FindByIDWithInstallments(ctx, loanID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return loan, nil
}

func (s *LoanService) Installments(ctx context.Context, userID, loanID uint) ([]models.Installment, error) {
	if _, err := s.owned(ctx, userID, loanID); err != nil {
		return nil, err
	}
	return s.installmentRepo.FindByLoan(ctx, loanID)
}

func (s *LoanService) owned(ctx context.Context, userID, loanID uint) (*models.Loan, error) {
	loan, err := s.loanRepo.FindByIDForUser(ctx, loanID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return loan, nil
}

func (s *LoanService) Create(ctx context.Context, userID uint, input CreateLoanInput, ip, userAgent string) (*models.Loan, error) {
	loan, err := s.buildLoan(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	err = s.tx.Do(ctx, func(r *repository.Repositories) error {
		return r.Loan.Create(ctx, loan)
	})
	if err != nil {
		return nil, fmt.Errorf("kredi kaydedilemedi: %w", err)
	}

	logger.Info("[LoanService] loan created", "loan_id", loan.ID, "user_id", userID,
		"installments", len(loan.Installments), "remaining_debt", loan.RemainingDebt.StringFixed(2))

	s.worker.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.Notify(ctx, Notice{
			UserID:  userID,
			LoanID:  loan.ID,
			Type:    models.NotificationTypeLoanCreated,
			Title:   "Kredi eklendi",
			Message: fmt.Sprintf("%s (%s) kredisi %d taksitle eklendi", loan.Name, loan.BankName, len(loan.Installments)),
		})
	})

	s.auditSvc.Log(ctx, userID, models.AuditActionCreate, "Loan", loan.ID,
		fmt.Sprintf("Kredi oluşturuldu: %s, tutar %s, %d taksit", loan.Name, loan.InitialAmount.StringFixed(2), loan.TermMonths),
		ip, userAgent)

	return loan, nil
}

// buildLoan validates input and assembles the loan with its plan and derived aggregate
func (s *LoanService) buildLoan(ctx context.Context, userID uint, input CreateLoanInput) (*models.Loan, error) {
	name := strings.TrimSpace(input.Name)
	bank := strings.TrimSpace(input.BankName)
	if name == "" || bank == "" {
		return nil, fmt.Errorf("%w: kredi adı ve banka zorunludur", ErrValidation)
	}
	loanType := input.LoanType
	if loanType == "" {
		loanType = models.LoanTypeIhtiyac
	}
	if !models.ValidLoanType(loanType) {
		return nil, fmt.Errorf("%w: bilinmeyen kredi türü %q", ErrValidation, loanType)
	}
	initial := input.InitialAmount.Round(2)
	if !initial.IsPositive() {
		return nil, fmt.Errorf("%w: kredi tutarı sıfırdan büyük olmalıdır", ErrValidation)
	}
	if input.InterestRate.IsNegative() || input.InterestRate.GreaterThan(maxInterestRate) {
		return nil, fmt.Errorf("%w: faiz oranı 0 ile %s arasında olmalıdır", ErrValidation, maxInterestRate)
	}

	today := s.cal.today()
	var installments []models.Installment
	var err error
	if len(input.Installments) > 0 {
		installments, err = s.importedPlan(ctx, initial, input.Installments, today)
	} else {
		installments, err = s.generatedPlan(initial, input)
	}
	if err != nil {
		return nil, err
	}

	startDate := installments[0].DueDate
	if input.StartDate != "" {
		if startDate, err = s.cal.parseDate(input.StartDate); err != nil {
			return nil, err
		}
	}

	loan := &models.Loan{
		UserID:         userID,
		Name:           name,
		BankName:       bank,
		LoanType:       loanType,
		InitialAmount:  initial,
		MonthlyPayment: installments[0].ScheduledTotal,
		InterestRate:   input.InterestRate,
		TermMonths:     len(installments),
		StartDate:      startDate,
		Currency:       models.CurrencyTRY,
		Notes:          input.Notes,
		Status:         models.LoanStatusActive,
		Version:        1,
	}

	for i := range installments {
		if installments[i].IsOutstanding() && installments[i].DueDate.Before(today) {
			if err := statemachine.NewInstallmentFSM(&installments[i]).MarkOverdue(ctx, today); err != nil {
				return nil, err
			}
		}
	}

	if _, err := applySummary(ctx, loan, installments); err != nil {
		return nil, err
	}
	loan.Installments = installments
	return loan, nil
}

func (s *LoanService) generatedPlan(initial decimal.Decimal, input CreateLoanInput) ([]models.Installment, error) {
	if input.FirstDueDate == "" {
		return nil, fmt.Errorf("%w: ilk taksit tarihi zorunludur", ErrValidation)
	}
	firstDue, err := s.cal.parseDate(input.FirstDueDate)
	if err != nil {
		return nil, err
	}

	installments, err := amortization.GenerateSchedule(amortization.ScheduleInput{
		Principal:     initial,
		AnnualRatePct: input.InterestRate,
		TermMonths:    input.TermMonths,
		FirstDueDate:  firstDue,
	})
	if err != nil {
		return nil, err
	}
	return installments, nil
}

func (s *LoanService) importedPlan(ctx context.Context, initial decimal.Decimal, rows []InstallmentInput, today time.Time) ([]models.Installment, error) {
	installments := make([]models.Installment, 0, len(rows))
	paidOn := make(map[int]time.Time)
	for _, row := range rows {
		due, err := time.Parse(dateLayout, strings.TrimSpace(row.DueDate))
		if err != nil {
			return nil, fmt.Errorf("%w: taksit %d vade tarihi geçersiz", ErrValidation, row.InstallmentNumber)
		}
		inst := models.Installment{
			InstallmentNumber: row.InstallmentNumber,
			DueDate:           due,
			PrincipalAmount:   row.PrincipalAmount,
			InterestAmount:    row.InterestAmount,
		}
		if row.TotalPayment != nil {
			inst.TotalPayment = *row.TotalPayment
		}
		if row.RemainingDebt != nil {
			inst.RemainingDebt = *row.RemainingDebt
		}
		installments = append(installments, inst)

		if row.Paid {
			at := due
			if row.PaymentDate != "" {
				if at, err = s.cal.parseDate(row.PaymentDate); err != nil {
					return nil, err
				}
			}
			paidOn[row.InstallmentNumber] = at
		}
	}

	installments = amortization.NormalizeSchedule(initial, installments)
	if err := amortization.ValidateSchedule(initial, installments); err != nil {
		return nil, err
	}

	for i := range installments {
		at, ok := paidOn[installments[i].InstallmentNumber]
		if !ok {
			continue
		}
		if at.After(today) {
			return nil, fmt.Errorf("%w: taksit %d ödeme tarihi gelecekte olamaz", ErrValidation, installments[i].InstallmentNumber)
		}
		if err := statemachine.NewInstallmentFSM(&installments[i]).Pay(ctx, at); err != nil {
			return nil, err
		}
	}
	return installments, nil
}

func (s *LoanService) Update(ctx context.Context, userID, loanID uint, input UpdateLoanInput, ip, userAgent string) (*models.Loan, error) {
	loan, err := s.owned(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, fmt.Errorf("%w: kredi adı boş olamaz", ErrValidation)
		}
		loan.Name = strings.TrimSpace(*input.Name)
	}
	if input.BankName != nil {
		if strings.TrimSpace(*input.BankName) == "" {
			return nil, fmt.Errorf("%w: banka adı boş olamaz", ErrValidation)
		}
		loan.BankName = strings.TrimSpace(*input.BankName)
	}
	if input.LoanType != nil {
		if !models.ValidLoanType(*input.LoanType) {
			return nil, fmt.Errorf("%w: bilinmeyen kredi türü %q", ErrValidation, *input.LoanType)
		}
		loan.LoanType = *input.LoanType
	}
	if input.Notes != nil {
		loan.Notes = input.Notes
	}

	if err := s.loanRepo.UpdateDetails(ctx, loan); err != nil {
		return nil, err
	}

	s.auditSvc.Log(ctx, userID, models.AuditActionUpdate, "Loan", loan.ID,
		fmt.Sprintf("Kredi bilgileri güncellendi: %s", loan.Name), ip, userAgent)

	return loan, nil
}

func (s *LoanService) Delete(ctx context.Context, userID, loanID uint, ip, userAgent string) error {
	loan, err := s.owned(ctx, userID, loanID)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(loan.ID)
	err = s.loanRepo.Delete(ctx, loan.ID)
	if err == nil {
		s.locks.forget(loan.ID)
	}
	unlock()
	if err != nil {
		return fmt.Errorf("kredi silinemedi: %w", err)
	}

	logger.Info("[LoanService] loan deleted", "loan_id", loan.ID, "user_id", userID)
	s.auditSvc.Log(ctx, userID, models.AuditActionDelete, "Loan", loan.ID,
		fmt.Sprintf("Kredi silindi: %s (%s)", loan.Name, loan.BankName), ip, userAgent)
	return nil
}

// UpcomingInstallment is a dashboard row
type UpcomingInstallment struct {
	LoanID   uint                       `json:"loan_id"`
	LoanName string                     `json:"loan_name"`
	BankName string                     `json:"bank_name"`
	Item     models.InstallmentResponse `json:"installment"`
}

// Dashboard is the per-user overview of all loans
type Dashboard struct {
	TotalRemainingDebt  decimal.Decimal       `json:"total_remaining_debt"`
	MonthlyBurden       decimal.Decimal       `json:"monthly_burden"`
	OpenLoans           int                   `json:"open_loans"`
	OverdueLoans        int                   `json:"overdue_loans"`
	OverdueInstallments int64                 `json:"overdue_installments"`
	Upcoming            []UpcomingInstallment `json:"upcoming"`
}

// Dashboard sums the open loans of a user. The monthly burden is the next outstanding
// installment of every open loan.
func (s *LoanService) Dashboard(ctx context.Context, userID uint) (*Dashboard, error) {
	loans, err := s.loanRepo.FindOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		TotalRemainingDebt: decimal.Zero,
		MonthlyBurden:      decimal.Zero,
		OpenLoans:          len(loans),
		Upcoming:           []UpcomingInstallment{},
	}
	for _, loan := range loans {
		d.TotalRemainingDebt = d.TotalRemainingDebt.Add(loan.RemainingDebt)
		if loan.Status == models.LoanStatusOverdue {
			d.OverdueLoans++
		}

		outstanding, err := s.installmentRepo.FindOutstandingByLoan(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
		if len(outstanding) > 0 {
			d.MonthlyBurden = d.MonthlyBurden.Add(outstanding[0].TotalPayment)
		}
	}

	if d.OverdueInstallments, err = s.installmentRepo.CountOverdueByUser(ctx, userID); err != nil {
		return nil, err
	}

	upcoming, err := s.installmentRepo.FindUpcomingByUser(ctx, userID, upcomingLimit)
	if err != nil {
		return nil, err
	}
	for i := range upcoming {
		d.Upcoming = append(d.Upcoming, UpcomingInstallment{
			LoanID:   upcoming[i].LoanID,
			LoanName: upcoming[i].Loan.Name,
			BankName: upcoming[i].Loan.BankName,
			Item:     upcoming[i].ToResponse(),
		})
	}

	return d, nil
}

// ProjectEarlyPayoff estimates the effect of an extra payment on the loan. Nothing is stored.
func (s *LoanService) ProjectEarlyPayoff(ctx context.Context, userID, loanID uint, extra decimal.Decimal) (*amortization.Projection, error) {
	loan, err := s.owned(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	if loan.IsClosed() {
		return nil, fmt.Errorf("%w: kapanmış kredi için erken kapama hesaplanamaz", ErrInvalidState)
	}

	return amortization.ProjectEarlyPayoff(extra, loan.RemainingDebt, loan.RemainingInstallments, loan.InterestRate, s.cal.today())
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
