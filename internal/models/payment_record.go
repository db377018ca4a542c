package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRecord is an append-only history entry for money paid against a loan
type PaymentRecord struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	LoanID           uint            `gorm:"not null;index" json:"loan_id"`
	OperationID      string          `gorm:"size:36;not null;index" json:"operation_id"`
	InstallmentID    *uint           `gorm:"index" json:"payment_plan_id"`
	Kind             string          `gorm:"size:16;not null" json:"kind"`
	Amount           decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	PrincipalPortion decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"principal_portion"`
	InterestPortion  decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0" json:"interest_portion"`
	PaymentDate      time.Time       `gorm:"type:date;not null" json:"payment_date"`
	Channel          string          `gorm:"size:32" json:"channel"`
	Note             *string         `gorm:"type:text" json:"note"`
	ReceiptPath      *string         `json:"-"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`

	Installment *Installment        `gorm:"foreignKey:InstallmentID" json:"-"`
	Settlements []PaymentSettlement `gorm:"foreignKey:PaymentRecordID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for PaymentRecord
func (PaymentRecord) TableName() string {
	return "payment_records"
}

// PaymentSettlement is the share of an aggregate record applied to one installment.
// Position keeps the order the installments were settled in.
type PaymentSettlement struct {
	ID               uint            `gorm:"primaryKey"`
	PaymentRecordID  uint            `gorm:"not null;index"`
	InstallmentID    uint            `gorm:"not null;index"`
	Position         int             `gorm:"not null"`
	Kind             string          `gorm:"size:16;not null"`
	Amount           decimal.Decimal `gorm:"type:numeric(15,2);not null"`
	PrincipalPortion decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0"`
	InterestPortion  decimal.Decimal `gorm:"type:numeric(15,2);not null;default:0"`
}

// TableName specifies the table name for PaymentSettlement
func (PaymentSettlement) TableName() string {
	return "payment_settlements"
}

// Payment record kinds
const (
	PaymentKindFull      = "full"
	PaymentKindPartial   = "partial"
	PaymentKindAggregate = "aggregate"
)

// Payment channels
const (
	PaymentChannelTransfer = "havale"
	PaymentChannelEFT      = "eft"
	PaymentChannelCard     = "kart"
	PaymentChannelCash     = "nakit"
	PaymentChannelAuto     = "otomatik"
)

// ValidPaymentChannel reports whether c is a known channel
func ValidPaymentChannel(c string) bool {
	switch c {
	case PaymentChannelTransfer, PaymentChannelEFT, PaymentChannelCard, PaymentChannelCash, PaymentChannelAuto:
		return true
	}
	return false
}

// IsAggregate returns true if the record is not linked to a single installment
func (p *PaymentRecord) IsAggregate() bool {
	return p.Kind == PaymentKindAggregate
}

// PaymentRecordResponse is the JSON response format for payment records
type PaymentRecordResponse struct {
	ID                uint            `json:"id"`
	LoanID            uint            `json:"loan_id"`
	OperationID       string          `json:"operation_id"`
	InstallmentID     *uint           `json:"payment_plan_id"`
	InstallmentNumber int             `json:"installment_number,omitempty"`
	Kind              string          `json:"kind"`
	Amount            decimal.Decimal `json:"amount"`
	PrincipalPortion  decimal.Decimal `json:"principal_portion"`
	InterestPortion   decimal.Decimal `json:"interest_portion"`
	PaymentDate       time.Time       `json:"payment_date"`
	Channel           string          `json:"channel"`
	Note              *string         `json:"note"`
	HasReceipt        bool            `json:"has_receipt"`
	IsPDF             bool            `json:"is_pdf"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ToResponse converts PaymentRecord to PaymentRecordResponse
func (p *PaymentRecord) ToResponse() PaymentRecordResponse {
	resp := PaymentRecordResponse{
		ID:               p.ID,
		LoanID:           p.LoanID,
		OperationID:      p.OperationID,
		InstallmentID:    p.InstallmentID,
		Kind:             p.Kind,
		Amount:           p.Amount,
		PrincipalPortion: p.PrincipalPortion,
		InterestPortion:  p.InterestPortion,
		PaymentDate:      p.PaymentDate,
		Channel:          p.Channel,
		Note:             p.Note,
		HasReceipt:       p.ReceiptPath != nil && *p.ReceiptPath != "",
		IsPDF:            p.ReceiptPath != nil && strings.HasSuffix(strings.ToLower(*p.ReceiptPath), ".pdf"),
		CreatedAt:        p.CreatedAt,
	}
	if p.Installment != nil {
		resp.InstallmentNumber = p.Installment.InstallmentNumber
	}
	return resp
}
