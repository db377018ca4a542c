package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/amortization"
	"github.com/sjperalta/kredim-api/internal/config"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/repository"
	"github.com/sjperalta/kredim-api/internal/services"
	"github.com/sjperalta/kredim-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockUserRepo struct {
	repository.UserRepository
	mockFindByEmail func(ctx context.Context, email string) (*models.User, error)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.mockFindByEmail(ctx, email)
}

func (m *mockUserRepo) TouchLastLogin(ctx context.Context, userID uint, at time.Time) error {
	return nil
}

type mockRefreshTokenRepo struct {
	repository.RefreshTokenRepository
}

func (m *mockRefreshTokenRepo) Create(ctx context.Context, rt *models.RefreshToken) error {
	return nil
}

type mockLoanRepo struct {
	repository.LoanRepository
	loans         map[uint]models.Loan
	capturedQuery *repository.ListQuery
}

func (m *mockLoanRepo) FindByUser(ctx context.Context, userID uint, query *repository.ListQuery) ([]models.Loan, int64, error) {
	m.capturedQuery = query
	var out []models.Loan
	for _, l := range m.loans {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockLoanRepo) FindByIDForUser(ctx context.Context, id, userID uint) (*models.Loan, error) {
	l, ok := m.loans[id]
	if !ok || l.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return &l, nil
}

func (m *mockLoanRepo) FindByIDWithInstallments(ctx context.Context, id, userID uint) (*models.Loan, error) {
	return m.FindByIDForUser(ctx, id, userID)
}

type mockRecordRepo struct {
	repository.PaymentRecordRepository
	records map[uint]models.PaymentRecord
}

func (m *mockRecordRepo) FindByID(ctx context.Context, id uint) (*models.PaymentRecord, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &r, nil
}

func (m *mockRecordRepo) FindByLoan(ctx context.Context, loanID uint, query *repository.ListQuery) ([]models.PaymentRecord, int64, error) {
	var out []models.PaymentRecord
	for _, r := range m.records {
		if r.LoanID == loanID {
			out = append(out, r)
		}
	}
	return out, int64(len(out)), nil
}

// asUser stands in for the auth middleware
func asUser(id uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", id)
		c.Next()
	}
}

func perform(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func testLoans() *mockLoanRepo {
	return &mockLoanRepo{loans: map[uint]models.Loan{
		1: {ID: 1, UserID: 1, Name: "İhtiyaç kredisi", BankName: "Ziraat Bankası", Status: models.LoanStatusActive,
			RemainingDebt: decimal.RequireFromString("2400")},
		2: {ID: 2, UserID: 2, Name: "Konut kredisi", BankName: "Vakıfbank", Status: models.LoanStatusActive},
	}}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: tutar", services.ErrValidation), http.StatusUnprocessableEntity},
		{"invalid amount", amortization.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"overpayment", &amortization.OverpaymentError{}, http.StatusUnprocessableEntity},
		{"invalid schedule", amortization.ErrInvalidSchedule, http.StatusUnprocessableEntity},
		{"closed loan", services.ErrInvalidState, http.StatusUnprocessableEntity},
		{"not found", services.ErrNotFound, http.StatusNotFound},
		{"no receipt", services.ErrNoReceipt, http.StatusNotFound},
		{"concurrent", services.ErrConcurrentModification, http.StatusConflict},
		{"reversal conflict", fmt.Errorf("taksit 2: %w", amortization.ErrReversalConflict), http.StatusConflict},
		{"duplicate", services.ErrDuplicate, http.StatusConflict},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"inactive", services.ErrInactiveAccount, http.StatusForbidden},
		{"too large", storage.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"content type", storage.ErrInvalidContentType, http.StatusUnprocessableEntity},
		{"other", errors.New("bağlantı koptu"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("overpayment carries outstanding", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("POST", "/", nil)
		respondError(c, &amortization.OverpaymentError{
			Amount:      decimal.RequireFromString("3000"),
			Outstanding: decimal.RequireFromString("2400"),
		})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decode(t, w)
		assert.Equal(t, "2400", body["outstanding"])
		assert.Contains(t, body["error"], "kalan borcu aşıyor")
	})

	t.Run("internal errors are hidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request, _ = http.NewRequest("GET", "/", nil)
		respondError(c, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "pq:")
	})
}

func TestHealthHandler_Index(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", NewHealthHandler().Index)

	w := perform(r, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestAuthHandler_Login(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, err := services.HashPassword("gizli-sifre")
	require.NoError(t, err)

	userRepo := &mockUserRepo{mockFindByEmail: func(ctx context.Context, email string) (*models.User, error) {
		switch email {
		case "ayse@example.com":
			return &models.User{ID: 1, Email: email, EncryptedPassword: hash, Status: models.StatusActive}, nil
		case "askida@example.com":
			return &models.User{ID: 2, Email: email, EncryptedPassword: hash, Status: models.StatusSuspended}, nil
		}
		return nil, gorm.ErrRecordNotFound
	}}
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationHours: 1}
	handler := NewAuthHandler(services.NewAuthService(userRepo, &mockRefreshTokenRepo{}, nil, nil, cfg))

	r := gin.New()
	r.POST("/auth/login", handler.Login)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"email": "ayse@example.com", "password": "gizli-sifre"}`, http.StatusOK},
		{"wrong password", `{"email": "ayse@example.com", "password": "yanlis"}`, http.StatusUnauthorized},
		{"unknown user", `{"email": "kimse@example.com", "password": "gizli-sifre"}`, http.StatusUnauthorized},
		{"suspended", `{"email": "askida@example.com", "password": "gizli-sifre"}`, http.StatusForbidden},
		{"missing password", `{"email": "ayse@example.com"}`, http.StatusBadRequest},
		{"bad email", `{"email": "ayse", "password": "gizli-sifre"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(r, "POST", "/auth/login", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.NotEmpty(t, decode(t, w)["token"])
			}
		})
	}
}

func TestLoanHandler_Index(t *testing.T) {
	gin.SetMode(gin.TestMode)
	loans := testLoans()
	handler := NewLoanHandler(services.NewLoanService(nil, loans, nil, nil, nil, nil, time.UTC))

	r := gin.New()
	r.GET("/loans", asUser(1), handler.Index)

	w := perform(r, "GET", "/loans?status=active&loan_type=konut&search=ziraat&sort=remaining_debt-desc&per_page=5", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	list := body["loans"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "İhtiyaç kredisi", list[0].(map[string]any)["name"])
	assert.Equal(t, float64(1), body["pagination"].(map[string]any)["total"])

	q := loans.capturedQuery
	assert.Equal(t, "active", q.Filters["status"])
	assert.Equal(t, "konut", q.Filters["loan_type"])
	assert.Equal(t, "ziraat", q.Search)
	assert.Equal(t, "remaining_debt", q.SortBy)
	assert.Equal(t, "desc", q.SortDir)
	assert.Equal(t, 5, q.PerPage)
}

func TestLoanHandler_Show(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewLoanHandler(services.NewLoanService(nil, testLoans(), nil, nil, nil, nil, time.UTC))

	r := gin.New()
	r.GET("/loans/:loan_id", asUser(1), handler.Show)

	w := perform(r, "GET", "/loans/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2400", decode(t, w)["loan"].(map[string]any)["remaining_debt"])

	assert.Equal(t, http.StatusNotFound, perform(r, "GET", "/loans/2", "").Code, "loan of another user")
	assert.Equal(t, http.StatusNotFound, perform(r, "GET", "/loans/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, "GET", "/loans/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, "GET", "/loans/0", "").Code)
}

func TestLoanHandler_CreateRejectsBadBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewLoanHandler(services.NewLoanService(nil, testLoans(), nil, nil, nil, nil, time.UTC))

	r := gin.New()
	r.POST("/loans", asUser(1), handler.Create)
	r.POST("/loans/:loan_id/early_payoff", asUser(1), handler.EarlyPayoff)

	assert.Equal(t, http.StatusBadRequest, perform(r, "POST", "/loans", `{"loan": {"initial_amount": "çok"}}`).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, "POST", "/loans", ``).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, "POST", "/loans/1/early_payoff", `{"amount": []}`).Code)
}

func TestPaymentHandler_Index(t *testing.T) {
	gin.SetMode(gin.TestMode)
	receipt := "receipts/loan_1/abc.pdf"
	records := &mockRecordRepo{records: map[uint]models.PaymentRecord{
		10: {ID: 10, LoanID: 1, OperationID: "op-1", Kind: models.PaymentKindFull,
			Amount: decimal.RequireFromString("1000"), Channel: models.PaymentChannelTransfer, ReceiptPath: &receipt},
	}}
	svc := services.NewPaymentService(nil, testLoans(), nil, records, nil, nil, nil, nil, nil, nil, time.UTC, 3)
	handler := NewPaymentHandler(svc)

	r := gin.New()
	r.GET("/loans/:loan_id/payments", asUser(1), handler.Index)

	w := perform(r, "GET", "/loans/1/payments?kind=full", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode(t, w)["payments"].([]any)
	require.Len(t, list, 1)
	item := list[0].(map[string]any)
	assert.Equal(t, "op-1", item["operation_id"])
	assert.Equal(t, true, item["has_receipt"])
	assert.Equal(t, true, item["is_pdf"])

	assert.Equal(t, http.StatusNotFound, perform(r, "GET", "/loans/2/payments", "").Code)
}

func TestPaymentHandler_Receipts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	records := &mockRecordRepo{records: map[uint]models.PaymentRecord{
		10: {ID: 10, LoanID: 1},
		20: {ID: 20, LoanID: 2},
	}}
	svc := services.NewPaymentService(nil, testLoans(), nil, records, nil, nil, nil, nil, nil, nil, time.UTC, 3)
	handler := NewPaymentHandler(svc)

	r := gin.New()
	r.GET("/payments/:payment_id/receipt", asUser(1), handler.DownloadReceipt)
	r.POST("/payments/:payment_id/receipt", asUser(1), handler.UploadReceipt)

	w := perform(r, "GET", "/payments/10/receipt", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, services.ErrNoReceipt.Error(), decode(t, w)["error"])

	assert.Equal(t, http.StatusNotFound, perform(r, "GET", "/payments/20/receipt", "").Code, "record of another user")
	assert.Equal(t, http.StatusBadRequest, perform(r, "POST", "/payments/10/receipt", "").Code, "missing file")
}

func TestPaymentHandler_CreateRejectsBadBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := services.NewPaymentService(nil, testLoans(), nil, nil, nil, nil, nil, nil, nil, nil, time.UTC, 3)
	handler := NewPaymentHandler(svc)

	r := gin.New()
	r.POST("/loans/:loan_id/payments", asUser(1), handler.Create)

	assert.Equal(t, http.StatusBadRequest, perform(r, "POST", "/loans/x/payments", `{"amount": "100"}`).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, "POST", "/loans/1/payments", `{"payment": {"amount": "yüz"}}`).Code)
}

func TestReportHandler_EarlyPayoffPDFRejectsAmount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(services.NewReportService(testLoans(), nil, time.UTC))

	r := gin.New()
	r.GET("/loans/:loan_id/early_payoff.pdf", asUser(1), handler.EarlyPayoffPDF)

	assert.Equal(t, http.StatusUnprocessableEntity, perform(r, "GET", "/loans/1/early_payoff.pdf", "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, perform(r, "GET", "/loans/1/early_payoff.pdf?amount=bin", "").Code)
}
