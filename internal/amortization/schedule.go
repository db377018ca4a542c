package amortization

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/models"
)

// MaxTermMonths bounds generated and imported plans.
const MaxTermMonths = 480

// ScheduleInput describes an annuity loan to generate a payment plan for.
type ScheduleInput struct {
	Principal     decimal.Decimal
	AnnualRatePct decimal.Decimal
	TermMonths    int
	FirstDueDate  time.Time
}

// AnnuityPayment returns the fixed monthly payment of an annuity loan.
func AnnuityPayment(principal, annualRatePct decimal.Decimal, termMonths int) decimal.Decimal {
	n := decimal.NewFromInt(int64(termMonths))
	r := MonthlyRate(annualRatePct)
	if r.IsZero() {
		return round2(principal.Div(n))
	}

	// (1+r)^n, rounded per step to keep the mantissa bounded
	growth := decimal.NewFromInt(1)
	onePlusR := r.Add(growth)
	for range termMonths {
		growth = growth.Mul(onePlusR).Round(20)
	}

	return round2(principal.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1))))
}

// GenerateSchedule builds an annuity payment plan. Interest is charged monthly on the
// remaining balance; the last installment absorbs rounding so the balance ends at zero.
func GenerateSchedule(in ScheduleInput) ([]models.Installment, error) {
	if !in.Principal.IsPositive() {
		return nil, scheduleError("kredi tutarı sıfırdan büyük olmalıdır")
	}
	if in.AnnualRatePct.IsNegative() {
		return nil, scheduleError("faiz oranı negatif olamaz")
	}
	if in.TermMonths < 1 || in.TermMonths > MaxTermMonths {
		return nil, scheduleError("vade 1 ile %d ay arasında olmalıdır", MaxTermMonths)
	}
	if in.FirstDueDate.IsZero() {
		return nil, scheduleError("ilk taksit tarihi zorunludur")
	}

	payment := AnnuityPayment(in.Principal, in.AnnualRatePct, in.TermMonths)
	r := MonthlyRate(in.AnnualRatePct)
	balance := round2(in.Principal)
	first := dateOnly(in.FirstDueDate)

	installments := make([]models.Installment, 0, in.TermMonths)
	for k := 1; k <= in.TermMonths; k++ {
		interest := round2(balance.Mul(r))
		principal := payment.Sub(interest)
		if k == in.TermMonths || principal.GreaterThan(balance) {
			principal = balance
		}
		if principal.IsNegative() {
			principal = decimal.Zero
		}
		balance = balance.Sub(principal)
		total := principal.Add(interest)

		installments = append(installments, models.Installment{
			InstallmentNumber:  k,
			DueDate:            AddMonths(first, k-1),
			PrincipalAmount:    principal,
			InterestAmount:     interest,
			TotalPayment:       total,
			RemainingDebt:      balance,
			ScheduledPrincipal: principal,
			ScheduledInterest:  interest,
			ScheduledTotal:     total,
			Status:             models.InstallmentStatusPending,
		})

		if balance.IsZero() {
			break
		}
	}

	return installments, nil
}

// NormalizeSchedule completes a plan copied from a bank statement: missing totals become
// principal + interest, missing remaining balances are derived from initial, and the
// scheduled amounts are frozen from the current ones. The result is ordered by number.
func NormalizeSchedule(initial decimal.Decimal, installments []models.Installment) []models.Installment {
	out := cloneSorted(installments, byNumber)
	balance := round2(initial)
	for i := range out {
		inst := &out[i]
		inst.PrincipalAmount = round2(inst.PrincipalAmount)
		inst.InterestAmount = round2(inst.InterestAmount)
		inst.DueDate = dateOnly(inst.DueDate)
		if inst.TotalPayment.IsZero() {
			inst.TotalPayment = inst.PrincipalAmount.Add(inst.InterestAmount)
		}
		inst.TotalPayment = round2(inst.TotalPayment)

		balance = balance.Sub(inst.PrincipalAmount)
		if inst.RemainingDebt.IsZero() && i < len(out)-1 {
			inst.RemainingDebt = decimal.Max(balance, decimal.Zero)
		}
		inst.RemainingDebt = round2(inst.RemainingDebt)

		inst.ScheduledPrincipal = inst.PrincipalAmount
		inst.ScheduledInterest = inst.InterestAmount
		inst.ScheduledTotal = inst.TotalPayment
		if inst.Status == "" {
			inst.Status = models.InstallmentStatusPending
		}
	}
	return out
}

// ValidateSchedule checks the invariants every stored plan must satisfy.
func ValidateSchedule(initial decimal.Decimal, installments []models.Installment) error {
	if len(installments) == 0 {
		return scheduleError("en az bir taksit gereklidir")
	}
	if len(installments) > MaxTermMonths {
		return scheduleError("en fazla %d taksit girilebilir", MaxTermMonths)
	}

	sorted := slices.Clone(installments)
	slices.SortStableFunc(sorted, byNumber)

	principalSum := decimal.Zero
	for i := range sorted {
		inst := &sorted[i]
		n := inst.InstallmentNumber

		if n < 1 {
			return scheduleError("taksit numarası pozitif olmalıdır")
		}
		if i > 0 {
			prev := &sorted[i-1]
			if prev.InstallmentNumber == n {
				return scheduleError("taksit %d birden fazla kez girilmiş", n)
			}
			if !inst.DueDate.After(prev.DueDate) {
				return scheduleError("taksit %d vade tarihi önceki taksitten sonra olmalıdır", n)
			}
			if inst.RemainingDebt.GreaterThan(prev.RemainingDebt) {
				return scheduleError("taksit %d kalan borcu artamaz", n)
			}
		}
		if inst.DueDate.IsZero() {
			return scheduleError("taksit %d vade tarihi zorunludur", n)
		}
		if inst.PrincipalAmount.IsNegative() || inst.InterestAmount.IsNegative() || inst.RemainingDebt.IsNegative() {
			return scheduleError("taksit %d tutarları negatif olamaz", n)
		}
		if !inst.TotalPayment.IsPositive() {
			return scheduleError("taksit %d toplam tutarı sıfırdan büyük olmalıdır", n)
		}
		if inst.TotalPayment.Sub(inst.PrincipalAmount.Add(inst.InterestAmount)).Abs().GreaterThan(kurus) {
			return scheduleError("taksit %d toplamı anapara ve faiz toplamına eşit olmalıdır", n)
		}
		principalSum = principalSum.Add(inst.PrincipalAmount)
	}

	if principalSum.GreaterThan(round2(initial).Add(kurus.Mul(decimal.NewFromInt(int64(len(sorted)))))) {
		return scheduleError("anapara toplamı %s kredi tutarı %s değerini aşıyor",
			principalSum.StringFixed(2), round2(initial).StringFixed(2))
	}

	return nil
}
