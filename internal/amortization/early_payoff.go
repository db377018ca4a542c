package amortization

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Projection is an advisory early payoff result. It is never applied to the plan.
type Projection struct {
	ExtraPayment          decimal.Decimal `json:"extra_payment"`
	CurrentRemainingDebt  decimal.Decimal `json:"current_remaining_debt"`
	NewRemainingDebt      decimal.Decimal `json:"new_remaining_debt"`
	InterestSavings       decimal.Decimal `json:"interest_savings"`
	NewMonthlyPayment     decimal.Decimal `json:"new_monthly_payment"`
	NewPayoffDate         time.Time       `json:"new_payoff_date"`
	RemainingInstallments int             `json:"remaining_installments"`
	AnnualInterestRate    decimal.Decimal `json:"annual_interest_rate"`
}

// ProjectEarlyPayoff estimates the effect of an extra principal payment with a flat-rate
// approximation. The term stays fixed: the balance shrinks and so does the per-installment
// amount, while the payoff date remains remainingCount months after today.
func ProjectEarlyPayoff(extra, remainingDebt decimal.Decimal, remainingCount int, annualRatePct decimal.Decimal, today time.Time) (*Projection, error) {
	extra = round2(extra)
	if !extra.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if remainingDebt.IsNegative() {
		return nil, fmt.Errorf("%w: kalan borç negatif olamaz", ErrInvalidAmount)
	}
	if remainingCount < 0 {
		return nil, fmt.Errorf("%w: kalan taksit sayısı negatif olamaz", ErrInvalidAmount)
	}
	if annualRatePct.IsNegative() {
		return nil, fmt.Errorf("%w: faiz oranı negatif olamaz", ErrInvalidAmount)
	}

	current := round2(remainingDebt)
	newDebt := decimal.Max(decimal.Zero, current.Sub(extra))
	count := decimal.NewFromInt(int64(remainingCount))

	savings := round2(current.Sub(newDebt).Mul(MonthlyRate(annualRatePct)).Mul(count))

	monthly := decimal.Zero
	if remainingCount > 0 {
		monthly = round2(newDebt.Div(count))
	}

	return &Projection{
		ExtraPayment:          extra,
		CurrentRemainingDebt:  current,
		NewRemainingDebt:      newDebt,
		InterestSavings:       savings,
		NewMonthlyPayment:     monthly,
		NewPayoffDate:         AddMonths(dateOnly(today), remainingCount),
		RemainingInstallments: remainingCount,
		AnnualInterestRate:    annualRatePct,
	}, nil
}
