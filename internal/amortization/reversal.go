package amortization

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/models"
)

// Reversal is the outcome of undoing previously applied settlements.
type Reversal struct {
	// Installments holds every installment passed in, updated, in installment number order.
	Installments []models.Installment
	// Settlements are the undone portions, in the order they were undone.
	Settlements []Settlement
	Total       decimal.Decimal
}

// Touched returns the installments a reversal changed, in reversal order.
func (r *Reversal) Touched() []models.Installment {
	return pick(r.Installments, r.Settlements)
}

// Reverse undoes settlements in LIFO order using the portions each one recorded, so
// Allocate followed by Reverse restores the installments exactly. An undone installment
// becomes overdue when its due date is before today and pending otherwise; a zero today
// always restores pending.
//
// A full settlement can only be undone on a paid installment and a partial one only on an
// outstanding installment; anything else fails with ErrReversalConflict and nothing changes.
func Reverse(settlements []Settlement, installments []models.Installment, today time.Time) (*Reversal, error) {
	if len(settlements) == 0 {
		return nil, ErrInvalidAmount
	}

	sorted := cloneSorted(installments, byNumber)
	rev := &Reversal{Installments: sorted, Total: decimal.Zero}

	for _, s := range slices.Backward(settlements) {
		idx := find(sorted, s.InstallmentID, s.InstallmentNumber)
		if idx < 0 {
			return nil, fmt.Errorf("%w: taksit %d bulunamadı", ErrReversalConflict, s.InstallmentNumber)
		}
		inst := &sorted[idx]

		switch s.Kind {
		case models.PaymentKindFull:
			if !inst.IsPaid() {
				return nil, fmt.Errorf("%w: taksit %d ödenmiş durumda değil", ErrReversalConflict, inst.InstallmentNumber)
			}
			inst.Status = restoredStatus(inst, today)
			inst.PaymentDate = nil
		case models.PaymentKindPartial:
			if !inst.IsOutstanding() {
				return nil, fmt.Errorf("%w: taksit %d sonradan tamamen ödenmiş", ErrReversalConflict, inst.InstallmentNumber)
			}
			restored := inst.TotalPayment.Add(s.Amount)
			if restored.GreaterThan(inst.ScheduledTotal) {
				return nil, fmt.Errorf("%w: taksit %d planlanan tutarı aşıyor", ErrReversalConflict, inst.InstallmentNumber)
			}
			inst.TotalPayment = restored
			inst.PrincipalAmount = inst.PrincipalAmount.Add(s.Principal)
			inst.InterestAmount = inst.InterestAmount.Add(s.Interest)
		default:
			return nil, fmt.Errorf("%w: bilinmeyen ödeme türü %q", ErrReversalConflict, s.Kind)
		}

		rev.Settlements = append(rev.Settlements, s)
		rev.Total = rev.Total.Add(s.Amount)
	}

	return rev, nil
}

// ReverseAmount undoes amount of coverage that is not linked to specific installments,
// walking covered installments from the highest installment number down. Amounts are
// rebuilt from the scheduled split, so the result matches the original within one kuruş.
// It fails with ErrReversalConflict when less than amount is covered.
func ReverseAmount(amount decimal.Decimal, installments []models.Installment, today time.Time) (*Reversal, error) {
	amount = round2(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	sorted := cloneSorted(installments, byNumber)
	covered := decimal.Zero
	for i := range sorted {
		covered = covered.Add(coverage(&sorted[i]))
	}
	if amount.GreaterThan(covered) {
		return nil, fmt.Errorf("%w: geri alınacak tutar %s, ödenmiş tutar %s",
			ErrReversalConflict, amount.StringFixed(2), covered.StringFixed(2))
	}

	rev := &Reversal{Installments: sorted, Total: amount}
	left := amount

	for i := len(sorted) - 1; i >= 0 && left.IsPositive(); i-- {
		inst := &sorted[i]
		cov := coverage(inst)
		if !cov.IsPositive() {
			continue
		}

		take := decimal.Min(left, cov)
		before := *inst

		newTotal := inst.ScheduledTotal.Sub(cov).Add(take)
		if inst.IsPaid() {
			newTotal = take
		}
		if newTotal.Equal(inst.ScheduledTotal) {
			inst.PrincipalAmount = inst.ScheduledPrincipal
			inst.InterestAmount = inst.ScheduledInterest
		} else {
			inst.PrincipalAmount, inst.InterestAmount = splitLike(newTotal, inst.ScheduledPrincipal, inst.ScheduledTotal)
		}
		inst.TotalPayment = newTotal
		if inst.IsPaid() {
			inst.Status = restoredStatus(inst, today)
			inst.PaymentDate = nil
		}

		kind := models.PaymentKindPartial
		if before.IsPaid() {
			kind = models.PaymentKindFull
		}
		rev.Settlements = append(rev.Settlements, Settlement{
			InstallmentID:     inst.ID,
			InstallmentNumber: inst.InstallmentNumber,
			Kind:              kind,
			Amount:            take,
			Principal:         inst.PrincipalAmount.Sub(outstandingPrincipal(&before)),
			Interest:          inst.InterestAmount.Sub(outstandingInterest(&before)),
		})
		left = left.Sub(take)
	}

	return rev, nil
}

// outstandingPrincipal is the principal still owed on an installment; zero once paid.
func outstandingPrincipal(inst *models.Installment) decimal.Decimal {
	if inst.IsPaid() {
		return decimal.Zero
	}
	return inst.PrincipalAmount
}

func outstandingInterest(inst *models.Installment) decimal.Decimal {
	if inst.IsPaid() {
		return decimal.Zero
	}
	return inst.InterestAmount
}
