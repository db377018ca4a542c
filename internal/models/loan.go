package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Loan represents a bank loan tracked by a user
type Loan struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	UserID                uint            `gorm:"not null;index" json:"user_id"`
	Name                  string          `gorm:"not null" json:"name"`
	BankName              string          `gorm:"not null" json:"bank_name"`
	LoanType              string          `gorm:"default:ihtiyac;not null" json:"loan_type"`
	InitialAmount         decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"initial_amount"`
	MonthlyPayment        decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"monthly_payment"`
	InterestRate          decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"interest_rate"`
	TermMonths            int             `gorm:"not null" json:"term_months"`
	StartDate             time.Time       `gorm:"type:date;not null" json:"start_date"`
	Currency              string          `gorm:"size:3;default:TRY;not null" json:"currency"`
	Notes                 *string         `gorm:"type:text" json:"notes"`
	RemainingDebt         decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"remaining_debt"`
	RemainingInstallments int             `gorm:"not null" json:"remaining_installments"`
	PaymentProgress       decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"payment_progress"`
	Status                string          `gorm:"default:active;not null;index" json:"status"`
	Version               int             `gorm:"not null;default:1" json:"version"`
	ClosedAt              *time.Time      `json:"closed_at"`
	CreatedAt             time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`

	// Associations
	User           User            `gorm:"foreignKey:UserID" json:"-"`
	Installments   []Installment   `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
	PaymentRecords []PaymentRecord `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"payment_records,omitempty"`
}

// TableName specifies the table name for Loan
func (Loan) TableName() string {
	return "loans"
}

// Loan status constants
const (
	LoanStatusActive  = "active"
	LoanStatusOverdue = "overdue"
	LoanStatusClosed  = "closed"
)

// Loan type constants
const (
	LoanTypeIhtiyac = "ihtiyac"
	LoanTypeKonut   = "konut"
	LoanTypeTasit   = "tasit"
	LoanTypeKobi    = "kobi"
	LoanTypeDiger   = "diger"
)

// CurrencyTRY is the default loan currency
const CurrencyTRY = "TRY"

// ValidLoanType reports whether t is a known loan type
func ValidLoanType(t string) bool {
	switch t {
	case LoanTypeIhtiyac, LoanTypeKonut, LoanTypeTasit, LoanTypeKobi, LoanTypeDiger:
		return true
	}
	return false
}

// BeforeCreate hook for setting defaults
func (l *Loan) BeforeCreate(tx *gorm.DB) error {
	if l.Status == "" {
		l.Status = LoanStatusActive
	}
	if l.Currency == "" {
		l.Currency = CurrencyTRY
	}
	if l.LoanType == "" {
		l.LoanType = LoanTypeIhtiyac
	}
	if l.Version == 0 {
		l.Version = 1
	}
	return nil
}

// IsClosed returns true if every installment is paid
func (l *Loan) IsClosed() bool {
	return l.Status == LoanStatusClosed
}

// LoanResponse is the JSON response format for loans
type LoanResponse struct {
	ID                    uint                  `json:"id"`
	Name                  string                `json:"name"`
	BankName              string                `json:"bank_name"`
	LoanType              string                `json:"loan_type"`
	InitialAmount         decimal.Decimal       `json:"initial_amount"`
	MonthlyPayment        decimal.Decimal       `json:"monthly_payment"`
	InterestRate          decimal.Decimal       `json:"interest_rate"`
	TermMonths            int                   `json:"term_months"`
	StartDate             time.Time             `json:"start_date"`
	Currency              string                `json:"currency"`
	Notes                 *string               `json:"notes"`
	RemainingDebt         decimal.Decimal       `json:"remaining_debt"`
	RemainingInstallments int                   `json:"remaining_installments"`
	PaymentProgress       decimal.Decimal       `json:"payment_progress"`
	Status                string                `json:"status"`
	Version               int                   `json:"version"`
	ClosedAt              *time.Time            `json:"closed_at"`
	CreatedAt             time.Time             `json:"created_at"`
	Installments          []InstallmentResponse `json:"installments,omitempty"`
}

// ToResponse converts Loan to LoanResponse
func (l *Loan) ToResponse() LoanResponse {
	resp := LoanResponse{
		ID:                    l.ID,
		Name:                  l.Name,
		BankName:              l.BankName,
		LoanType:              l.LoanType,
		InitialAmount:         l.InitialAmount,
		MonthlyPayment:        l.MonthlyPayment,
		InterestRate:          l.InterestRate,
		TermMonths:            l.TermMonths,
		StartDate:             l.StartDate,
		Currency:              l.Currency,
		Notes:                 l.Notes,
		RemainingDebt:         l.RemainingDebt,
		RemainingInstallments: l.RemainingInstallments,
		PaymentProgress:       l.PaymentProgress,
		Status:                l.Status,
		Version:               l.Version,
		ClosedAt:              l.ClosedAt,
		CreatedAt:             l.CreatedAt,
	}

	if len(l.Installments) > 0 {
		resp.Installments = make([]InstallmentResponse, len(l.Installments))
		for i := range l.Installments {
			resp.Installments[i] = l.Installments[i].ToResponse()
		}
	}

	return resp
}
