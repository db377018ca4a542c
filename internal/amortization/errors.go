package amortization

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount             = errors.New("tutar sıfırdan büyük olmalıdır")
	ErrNoOutstandingInstallments = errors.New("ödenmemiş taksit bulunmuyor")
	ErrOverpayment               = errors.New("ödeme tutarı kalan borcu aşıyor")
	ErrReversalConflict          = errors.New("ödeme geri alınamıyor, taksit durumu değişmiş")
	ErrInvalidSchedule           = errors.New("ödeme planı geçersiz")
)

// OverpaymentError carries the outstanding total so callers can suggest the exact amount.
type OverpaymentError struct {
	Amount      decimal.Decimal
	Outstanding decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("%s: ödeme %s TL, kalan borç %s TL",
		ErrOverpayment.Error(), e.Amount.StringFixed(2), e.Outstanding.StringFixed(2))
}

func (e *OverpaymentError) Unwrap() error {
	return ErrOverpayment
}

func scheduleError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchedule, fmt.Sprintf(format, args...))
}
