package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/config"
	"github.com/sjperalta/kredim-api/internal/jobs"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/repository"
	"github.com/sjperalta/kredim-api/internal/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for the loan, installment, payment record and user tables
type memStore struct {
	repository.UserRepository

	users        map[uint]models.User
	loans        map[uint]models.Loan
	installments map[uint]models.Installment
	records      map[uint]models.PaymentRecord

	nextLoanID, nextInstallmentID, nextRecordID uint
	remindersMarked                                []uint
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[uint]models.User),
		loans:        make(map[uint]models.Loan),
		installments: make(map[uint]models.Installment),
		records:      make(map[uint]models.PaymentRecord),
	}
}

func (m *memStore) snapshot() *memStore {
	c := *m
	c.users = cloneMap(m.users)
	c.loans = cloneMap(m.loans)
	c.installments = cloneMap(m.installments)
	c.records = cloneMap(m.records)
	c.remindersMarked = slices.Clone(m.remindersMarked)
	return &c
}

func (m *memStore) restore(s *memStore) {
	m.users, m.loans, m.installments, m.records = s.users, s.loans, s.installments, s.records
	m.nextLoanID, m.nextInstallmentID, m.nextRecordID = s.nextLoanID, s.nextInstallmentID, s.nextRecordID
	m.remindersMarked = s.remindersMarked
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// user repository

func (m *memStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

// loan repository

type memLoans struct {
	repository.LoanRepository
	*memStore
}

func (m memLoans) FindByID(ctx context.Context, id uint) (*models.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &l, nil
}

func (m memLoans) FindByIDForUser(ctx context.Context, id, userID uint) (*models.Loan, error) {
	l, ok := m.loans[id]
	if !ok || l.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return &l, nil
}

func (m memLoans) FindByIDWithInstallments(ctx context.Context, id, userID uint) (*models.Loan, error) {
	l, err := m.FindByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	l.Installments = m.plan(id)
	return l, nil
}

func (m memLoans) LockByID(ctx context.Context, id uint) (*models.Loan, error) {
	return m.FindByID(ctx, id)
}

func (m memLoans) FindByUser(ctx context.Context, userID uint, query *repository.ListQuery) ([]models.Loan, int64, error) {
	var out []models.Loan
	for _, l := range m.loans {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b models.Loan) int { return int(a.ID) - int(b.ID) })
	return out, int64(len(out)), nil
}

func (m memLoans) FindOpenByUser(ctx context.Context, userID uint) ([]models.Loan, error) {
	var out []models.Loan
	for _, l := range m.loans {
		if l.UserID == userID && l.Status != models.LoanStatusClosed {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b models.Loan) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (m memLoans) Create(ctx context.Context, loan *models.Loan) error {
	m.nextLoanID++
	loan.ID = m.nextLoanID
	for i := range loan.Installments {
		m.nextInstallmentID++
		loan.Installments[i].ID = m.nextInstallmentID
		loan.Installments[i].LoanID = loan.ID
		m.installments[loan.Installments[i].ID] = loan.Installments[i]
	}
	stored := *loan
	stored.Installments = nil
	m.loans[loan.ID] = stored
	return nil
}

func (m memLoans) UpdateDetails(ctx context.Context, loan *models.Loan) error {
	l := m.loans[loan.ID]
	l.Name, l.BankName, l.LoanType, l.Notes = loan.Name, loan.BankName, loan.LoanType, loan.Notes
	m.loans[loan.ID] = l
	return nil
}

func (m memLoans) UpdateAggregate(ctx context.Context, loan *models.Loan, expectedVersion int) error {
	l, ok := m.loans[loan.ID]
	if !ok || l.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	l.RemainingDebt = loan.RemainingDebt
	l.RemainingInstallments = loan.RemainingInstallments
	l.PaymentProgress = loan.PaymentProgress
	l.Status = loan.Status
	l.ClosedAt = loan.ClosedAt
	l.Version = expectedVersion + 1
	m.loans[loan.ID] = l
	loan.Version = l.Version
	return nil
}

func (m memLoans) Delete(ctx context.Context, id uint) error {
	delete(m.loans, id)
	for k, inst := range m.installments {
		if inst.LoanID == id {
			delete(m.installments, k)
		}
	}
	for k, rec := range m.records {
		if rec.LoanID == id {
			delete(m.records, k)
		}
	}
	return nil
}

// installment repository

type memInstallments struct {
	repository.InstallmentRepository
	*memStore
}

func (m *memStore) plan(loanID uint) []models.Installment {
	var out []models.Installment
	for _, inst := range m.installments {
		if inst.LoanID == loanID {
			out = append(out, inst)
		}
	}
	slices.SortFunc(out, func(a, b models.Installment) int { return a.InstallmentNumber - b.InstallmentNumber })
	return out
}

func (m memInstallments) FindByLoan(ctx context.Context, loanID uint) ([]models.Installment, error) {
	return m.plan(loanID), nil
}

func (m memInstallments) FindOutstandingByLoan(ctx context.Context, loanID uint) ([]models.Installment, error) {
	var out []models.Installment
	for _, inst := range m.plan(loanID) {
		if inst.IsOutstanding() {
			out = append(out, inst)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Installment) int { return a.DueDate.Compare(b.DueDate) })
	return out, nil
}

func (m memInstallments) UpdateBatch(ctx context.Context, installments []models.Installment) error {
	for _, inst := range installments {
		if _, ok := m.installments[inst.ID]; !ok {
			return gorm.ErrRecordNotFound
		}
		m.installments[inst.ID] = inst
	}
	return nil
}

func (m memInstallments) FindPendingDueBefore(ctx context.Context, date time.Time) ([]models.Installment, error) {
	var out []models.Installment
	for _, inst := range m.installments {
		loan := m.loans[inst.LoanID]
		if inst.Status == models.InstallmentStatusPending && inst.DueDate.Before(date) && !loan.IsClosed() {
			out = append(out, inst)
		}
	}
	slices.SortFunc(out, func(a, b models.Installment) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (m memInstallments) FindDueBetween(ctx context.Context, from, to time.Time) ([]models.Installment, error) {
	var out []models.Installment
	for _, inst := range m.installments {
		if !inst.IsOutstanding() || inst.DueDate.Before(from) || inst.DueDate.After(to) || inst.ReminderSentAt != nil {
			continue
		}
		inst.Loan = m.loans[inst.LoanID]
		inst.Loan.User = m.users[inst.Loan.UserID]
		out = append(out, inst)
	}
	slices.SortFunc(out, func(a, b models.Installment) int { return a.DueDate.Compare(b.DueDate) })
	return out, nil
}

func (m memInstallments) MarkReminderSent(ctx context.Context, ids []uint) error {
	now := time.Now()
	for _, id := range ids {
		inst := m.installments[id]
		inst.ReminderSentAt = &now
		m.installments[id] = inst
	}
	m.remindersMarked = append(m.remindersMarked, ids...)
	return nil
}

func (m memInstallments) FindUpcomingByUser(ctx context.Context, userID uint, limit int) ([]models.Installment, error) {
	var out []models.Installment
	for _, inst := range m.installments {
		loan := m.loans[inst.LoanID]
		if loan.UserID == userID && inst.IsOutstanding() {
			inst.Loan = loan
			out = append(out, inst)
		}
	}
	slices.SortFunc(out, func(a, b models.Installment) int { return a.DueDate.Compare(b.DueDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memInstallments) CountOverdueByUser(ctx context.Context, userID uint) (int64, error) {
	var n int64
	for _, inst := range m.installments {
		if m.loans[inst.LoanID].UserID == userID && inst.Status == models.InstallmentStatusOverdue {
			n++
		}
	}
	return n, nil
}

// payment record repository

type memRecords struct {
	repository.PaymentRecordRepository
	*memStore
}

func (m memRecords) FindByID(ctx context.Context, id uint) (*models.PaymentRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if rec.InstallmentID != nil {
		inst := m.installments[*rec.InstallmentID]
		rec.Installment = &inst
	}
	return &rec, nil
}

func (m memRecords) ordered(loanID uint) []models.PaymentRecord {
	var out []models.PaymentRecord
	for _, rec := range m.records {
		if rec.LoanID == loanID {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b models.PaymentRecord) int { return int(a.ID) - int(b.ID) })
	return out
}

func (m memRecords) FindByLoan(ctx context.Context, loanID uint, query *repository.ListQuery) ([]models.PaymentRecord, int64, error) {
	out := m.ordered(loanID)
	slices.Reverse(out)
	for i := range out {
		if out[i].InstallmentID != nil {
			inst := m.installments[*out[i].InstallmentID]
			out[i].Installment = &inst
		}
	}
	return out, int64(len(out)), nil
}

func (m memRecords) FindByOperation(ctx context.Context, loanID uint, operationID string) ([]models.PaymentRecord, error) {
	var out []models.PaymentRecord
	for _, rec := range m.ordered(loanID) {
		if rec.OperationID == operationID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m memRecords) LatestOperationID(ctx context.Context, loanID uint) (string, error) {
	recs := m.ordered(loanID)
	if len(recs) == 0 {
		return "", nil
	}
	return recs[len(recs)-1].OperationID, nil
}

func (m memRecords) CreateBatch(ctx context.Context, records []models.PaymentRecord) error {
	for i := range records {
		m.nextRecordID++
		records[i].ID = m.nextRecordID
		records[i].CreatedAt = time.Now()
		m.records[records[i].ID] = records[i]
	}
	return nil
}

func (m memRecords) Delete(ctx context.Context, id uint) error {
	delete(m.records, id)
	return nil
}

func (m memRecords) DeleteByOperation(ctx context.Context, loanID uint, operationID string) error {
	for id, rec := range m.records {
		if rec.LoanID == loanID && rec.OperationID == operationID {
			delete(m.records, id)
		}
	}
	return nil
}

func (m memRecords) UpdateReceipt(ctx context.Context, id uint, path string) error {
	rec, ok := m.records[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.ReceiptPath = &path
	m.records[id] = rec
	return nil
}

// memUnitOfWork serializes transactions and rolls the store back when fn fails
type memUnitOfWork struct {
	mu    sync.Mutex
	store *memStore
	repos *repository.Repositories
}

func (u *memUnitOfWork) Do(ctx context.Context, fn func(r *repository.Repositories) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	before := u.store.snapshot()
	if err := fn(u.repos); err != nil {
		u.store.restore(before)
		return err
	}
	return nil
}

// mockNotificationRepo records notifications; async jobs write to it concurrently
type mockNotificationRepo struct {
	repository.NotificationRepository
	mu    sync.Mutex
	items []models.Notification
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uint(len(m.items) + 1)
	m.items = append(m.items, *n)
	return nil
}

func (m *mockNotificationRepo) ofType(t string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, item := range m.items {
		if item.NotificationType != nil && *item.NotificationType == t {
			n++
		}
	}
	return n
}

type mockAuditRepo struct {
	repository.AuditRepository
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// fixture wires services against one memStore
type fixture struct {
	store         *memStore
	uow           *memUnitOfWork
	notifications *mockNotificationRepo
	audit         *mockAuditRepo
	worker        *jobs.Worker
	storage       *storage.LocalStorage
	loans         *LoanService
	payments      *PaymentService
	reports       *ReportService
}

var fixtureToday = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	store.users[1] = models.User{ID: 1, Email: "ayse@example.com", FullName: "Ayşe Yılmaz", Status: models.StatusActive}
	store.users[2] = models.User{ID: 2, Email: "mehmet@example.com", FullName: "Mehmet Kaya", Status: models.StatusActive}

	repos := &repository.Repositories{
		User:          store,
		Loan:          memLoans{memStore: store},
		Installment:   memInstallments{memStore: store},
		PaymentRecord: memRecords{memStore: store},
	}
	uow := &memUnitOfWork{store: store, repos: repos}
	repos.Tx = uow

	notifications := &mockNotificationRepo{}
	audit := &mockAuditRepo{}
	worker := jobs.NewWorker(1)
	t.Cleanup(worker.Shutdown)

	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{EnableEmailNotifications: false}
	notificationSvc := NewNotificationService(notifications)
	emailSvc := NewEmailService(cfg)
	auditSvc := NewAuditService(audit)

	f := &fixture{
		store:         store,
		uow:           uow,
		notifications: notifications,
		audit:         audit,
		worker:        worker,
		storage:       st,
		loans:         NewLoanService(uow, repos.Loan, repos.Installment, notificationSvc, auditSvc, worker, time.UTC),
		payments: NewPaymentService(uow, repos.Loan, repos.Installment, repos.PaymentRecord, repos.User,
			notificationSvc, emailSvc, auditSvc, st, worker, time.UTC, 3),
		reports: NewReportService(repos.Loan, repos.PaymentRecord, time.UTC),
	}
	clock := func() time.Time { return fixtureToday }
	f.loans.cal.now = clock
	f.payments.cal.now = clock
	f.reports.cal.now = clock
	f.payments.locks = f.loans.locks
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// seedLoan creates a three installment loan of 2400 for user 1: every installment is
// 1000 (800 principal, 200 interest), due on the 15th of Jan, Feb and Mar 2026.
func (f *fixture) seedLoan(t *testing.T) *models.Loan {
	t.Helper()
	loan, err := f.loans.Create(context.Background(), 1, CreateLoanInput{
		Name:          "İhtiyaç kredisi",
		BankName:      "Ziraat Bankası",
		InitialAmount: dec("2400"),
		InterestRate:  dec("36"),
		Installments: []InstallmentInput{
			{InstallmentNumber: 1, DueDate: "2026-01-15", PrincipalAmount: dec("800"), InterestAmount: dec("200")},
			{InstallmentNumber: 2, DueDate: "2026-02-15", PrincipalAmount: dec("800"), InterestAmount: dec("200")},
			{InstallmentNumber: 3, DueDate: "2026-03-15", PrincipalAmount: dec("800"), InterestAmount: dec("200")},
		},
	}, "127.0.0.1", "test")
	require.NoError(t, err)
	return loan
}

func (f *fixture) loan(id uint) models.Loan {
	f.uow.mu.Lock()
	defer f.uow.mu.Unlock()
	return f.store.loans[id]
}

func (f *fixture) plan(id uint) []models.Installment {
	f.uow.mu.Lock()
	defer f.uow.mu.Unlock()
	return f.store.plan(id)
}

func (f *fixture) recordCount() int {
	f.uow.mu.Lock()
	defer f.uow.mu.Unlock()
	return len(f.store.records)
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
