package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Installment is one row of a loan's payment plan
type Installment struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	LoanID             uint            `gorm:"not null;uniqueIndex:idx_installments_loan_number" json:"loan_id"`
	InstallmentNumber  int             `gorm:"not null;uniqueIndex:idx_installments_loan_number" json:"installment_number"`
	DueDate            time.Time       `gorm:"type:date;not null;index" json:"due_date"`
	PrincipalAmount    decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"principal_amount"`
	InterestAmount     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"interest_amount"`
	TotalPayment       decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"total_payment"`
	RemainingDebt      decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"remaining_debt"`
	ScheduledPrincipal decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"scheduled_principal"`
	ScheduledInterest  decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"scheduled_interest"`
	ScheduledTotal     decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"scheduled_total"`
	Status             string          `gorm:"default:pending;not null;index" json:"status"`
	PaymentDate        *time.Time      `json:"payment_date"`
	ReminderSentAt     *time.Time      `gorm:"column:reminder_sent_at" json:"-"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Loan Loan `gorm:"foreignKey:LoanID" json:"-"`
}

// TableName specifies the table name for Installment
func (Installment) TableName() string {
	return "installments"
}

// Installment status constants
const (
	InstallmentStatusPending = "pending"
	InstallmentStatusPaid    = "paid"
	InstallmentStatusOverdue = "overdue"
)

// IsPaid returns true if the installment is fully covered
func (i *Installment) IsPaid() bool {
	return i.Status == InstallmentStatusPaid
}

// IsOutstanding returns true if the installment still awaits payment
func (i *Installment) IsOutstanding() bool {
	return i.Status == InstallmentStatusPending || i.Status == InstallmentStatusOverdue
}

// IsPartiallyPaid returns true if part of the installment was already settled
func (i *Installment) IsPartiallyPaid() bool {
	return i.IsOutstanding() && i.TotalPayment.LessThan(i.ScheduledTotal)
}

// OverdueDays returns the number of days past the due date
func (i *Installment) OverdueDays(now time.Time) int {
	if !i.IsOutstanding() || !now.After(i.DueDate) {
		return 0
	}
	return int(now.Sub(i.DueDate).Hours() / 24)
}

// InstallmentResponse is the JSON response format for installments
type InstallmentResponse struct {
	ID                uint            `json:"id"`
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"due_date"`
	PrincipalAmount   decimal.Decimal `json:"principal_amount"`
	InterestAmount    decimal.Decimal `json:"interest_amount"`
	TotalPayment      decimal.Decimal `json:"total_payment"`
	RemainingDebt     decimal.Decimal `json:"remaining_debt"`
	ScheduledTotal    decimal.Decimal `json:"scheduled_total"`
	Status            string          `json:"status"`
	PaymentDate       *time.Time      `json:"payment_date"`
	PartiallyPaid     bool            `json:"partially_paid"`
	OverdueDays       int             `json:"overdue_days"`
}

// ToResponse converts Installment to InstallmentResponse
func (i *Installment) ToResponse() InstallmentResponse {
	return InstallmentResponse{
		ID:                i.ID,
		InstallmentNumber: i.InstallmentNumber,
		DueDate:           i.DueDate,
		PrincipalAmount:   i.PrincipalAmount,
		InterestAmount:    i.InterestAmount,
		TotalPayment:      i.TotalPayment,
		RemainingDebt:     i.RemainingDebt,
		ScheduledTotal:    i.ScheduledTotal,
		Status:            i.Status,
		PaymentDate:       i.PaymentDate,
		PartiallyPaid:     i.IsPartiallyPaid(),
		OverdueDays:       i.OverdueDays(time.Now()),
	}
}
