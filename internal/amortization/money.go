package amortization

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/models"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	kurus   = decimal.New(1, -2)
)

// round2 rounds to kuruş.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MonthlyRate converts an annual percentage rate into a monthly fraction.
func MonthlyRate(annualRatePct decimal.Decimal) decimal.Decimal {
	return annualRatePct.Div(hundred).Div(twelve)
}

// AddMonths moves t forward by n calendar months, clamping the day to the
// last day of the target month (31 Ocak + 1 ay = 28/29 Şubat).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}

// dateOnly truncates t to midnight in its own location.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// byDueDate orders installments by due date, breaking ties by number.
func byDueDate(a, b models.Installment) int {
	if c := a.DueDate.Compare(b.DueDate); c != 0 {
		return c
	}
	return cmp.Compare(a.InstallmentNumber, b.InstallmentNumber)
}

func byNumber(a, b models.Installment) int {
	if c := cmp.Compare(a.InstallmentNumber, b.InstallmentNumber); c != 0 {
		return c
	}
	return a.DueDate.Compare(b.DueDate)
}

// cloneSorted returns a sorted copy so callers' slices are never mutated.
func cloneSorted(installments []models.Installment, order func(a, b models.Installment) int) []models.Installment {
	out := slices.Clone(installments)
	for i := range out {
		if out[i].PaymentDate != nil {
			pd := *out[i].PaymentDate
			out[i].PaymentDate = &pd
		}
	}
	slices.SortStableFunc(out, order)
	return out
}

// restoredStatus is the status an installment falls back to once it is no longer paid.
func restoredStatus(inst *models.Installment, today time.Time) string {
	if !today.IsZero() && inst.DueDate.Before(dateOnly(today)) {
		return models.InstallmentStatusOverdue
	}
	return models.InstallmentStatusPending
}

// coverage is the part of the scheduled total already settled.
func coverage(inst *models.Installment) decimal.Decimal {
	if inst.IsPaid() {
		return inst.ScheduledTotal
	}
	return inst.ScheduledTotal.Sub(inst.TotalPayment)
}

// splitLike splits total with the same principal/interest ratio as the reference amounts.
func splitLike(total, refPrincipal, refTotal decimal.Decimal) (principal, interest decimal.Decimal) {
	if refTotal.IsZero() {
		return total, decimal.Zero
	}
	principal = round2(refPrincipal.Mul(total).Div(refTotal))
	return principal, total.Sub(principal)
}
