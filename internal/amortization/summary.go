package amortization

import (
	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/models"
)

// Summary holds the loan level figures derived from a payment plan.
type Summary struct {
	RemainingDebt         decimal.Decimal
	RemainingInstallments int
	PaidInstallments      int
	PaymentProgress       decimal.Decimal
	TotalPaid             decimal.Decimal
	TotalOutstanding      decimal.Decimal
	OverdueInstallments   int
	Status                string
	// NextDue is the earliest outstanding installment, nil once everything is paid.
	NextDue *models.Installment
}

// Summarize recomputes the loan aggregate from its installments. Remaining debt is the
// remaining balance of the highest numbered paid installment, or initial when none is paid.
func Summarize(initial decimal.Decimal, installments []models.Installment) Summary {
	s := Summary{
		RemainingDebt:    round2(initial),
		PaymentProgress:  decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
		Status:           models.LoanStatusActive,
	}

	sorted := cloneSorted(installments, byNumber)
	for i := range sorted {
		inst := &sorted[i]
		s.TotalPaid = s.TotalPaid.Add(coverage(inst))

		if inst.IsPaid() {
			s.PaidInstallments++
			s.RemainingDebt = inst.RemainingDebt
			continue
		}

		s.RemainingInstallments++
		s.TotalOutstanding = s.TotalOutstanding.Add(inst.TotalPayment)
		if inst.Status == models.InstallmentStatusOverdue {
			s.OverdueInstallments++
		}
		if s.NextDue == nil || byDueDate(*inst, *s.NextDue) < 0 {
			next := *inst
			s.NextDue = &next
		}
	}

	if total := len(sorted); total > 0 {
		s.PaymentProgress = round2(decimal.NewFromInt(int64(s.PaidInstallments)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(total))))
	}

	switch {
	case len(sorted) > 0 && s.RemainingInstallments == 0:
		s.Status = models.LoanStatusClosed
		s.RemainingDebt = decimal.Zero
	case s.OverdueInstallments > 0:
		s.Status = models.LoanStatusOverdue
	}

	return s
}
