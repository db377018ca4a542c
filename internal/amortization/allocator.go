package amortization

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/models"
)

// Settlement is the part of one payment applied to a single installment.
type Settlement struct {
	InstallmentID     uint
	InstallmentNumber int
	Kind              string
	Amount            decimal.Decimal
	Principal         decimal.Decimal
	Interest          decimal.Decimal
}

// IsPartial returns true if the installment stayed outstanding after the settlement
func (s Settlement) IsPartial() bool {
	return s.Kind == models.PaymentKindPartial
}

// Allocation is the outcome of distributing a payment over outstanding installments.
type Allocation struct {
	// Installments holds every installment passed in, updated, in due date order.
	Installments []models.Installment
	// Settlements are in the order installments were touched.
	Settlements []Settlement
	Total       decimal.Decimal
}

// Touched returns the installments a settlement was applied to, in settlement order.
func (a *Allocation) Touched() []models.Installment {
	return pick(a.Installments, a.Settlements)
}

// Principal returns the principal share of the whole allocation.
func (a *Allocation) Principal() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range a.Settlements {
		sum = sum.Add(s.Principal)
	}
	return sum
}

// Interest returns the interest share of the whole allocation.
func (a *Allocation) Interest() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range a.Settlements {
		sum = sum.Add(s.Interest)
	}
	return sum
}

// Outstanding sums the total payment of every pending or overdue installment.
func Outstanding(installments []models.Installment) decimal.Decimal {
	sum := decimal.Zero
	for i := range installments {
		if installments[i].IsOutstanding() {
			sum = sum.Add(installments[i].TotalPayment)
		}
	}
	return sum
}

// Allocate distributes amount over the outstanding installments, earliest due date first.
// Fully covered installments become paid with paidAt as payment date; the last one touched
// may be covered partially, in which case its amounts shrink keeping the principal/interest
// ratio. Paid installments are passed through untouched and the input slice is not modified.
//
// Nothing is mutated when an error is returned.
func Allocate(amount decimal.Decimal, installments []models.Installment, paidAt time.Time) (*Allocation, error) {
	amount = round2(amount)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	count := 0
	for i := range installments {
		if installments[i].IsOutstanding() {
			count++
		}
	}
	if count == 0 {
		return nil, ErrNoOutstandingInstallments
	}

	if total := Outstanding(installments); amount.GreaterThan(total) {
		return nil, &OverpaymentError{Amount: amount, Outstanding: total}
	}

	sorted := cloneSorted(installments, byDueDate)
	alloc := &Allocation{Installments: sorted, Total: amount}
	left := amount

	for i := range sorted {
		if !left.IsPositive() {
			break
		}
		inst := &sorted[i]
		if !inst.IsOutstanding() {
			continue
		}

		if left.GreaterThanOrEqual(inst.TotalPayment) {
			paid := paidAt
			alloc.Settlements = append(alloc.Settlements, Settlement{
				InstallmentID:     inst.ID,
				InstallmentNumber: inst.InstallmentNumber,
				Kind:              models.PaymentKindFull,
				Amount:            inst.TotalPayment,
				Principal:         inst.PrincipalAmount,
				Interest:          inst.InterestAmount,
			})
			inst.Status = models.InstallmentStatusPaid
			inst.PaymentDate = &paid
			left = left.Sub(inst.TotalPayment)
			continue
		}

		newTotal := inst.TotalPayment.Sub(left)
		newPrincipal, newInterest := splitLike(newTotal, inst.PrincipalAmount, inst.TotalPayment)
		alloc.Settlements = append(alloc.Settlements, Settlement{
			InstallmentID:     inst.ID,
			InstallmentNumber: inst.InstallmentNumber,
			Kind:              models.PaymentKindPartial,
			Amount:            left,
			Principal:         inst.PrincipalAmount.Sub(newPrincipal),
			Interest:          inst.InterestAmount.Sub(newInterest),
		})
		inst.TotalPayment = newTotal
		inst.PrincipalAmount = newPrincipal
		inst.InterestAmount = newInterest
		left = decimal.Zero
	}

	return alloc, nil
}

// pick returns copies of the installments referenced by settlements, in settlement order.
func pick(installments []models.Installment, settlements []Settlement) []models.Installment {
	out := make([]models.Installment, 0, len(settlements))
	for _, s := range settlements {
		if idx := find(installments, s.InstallmentID, s.InstallmentNumber); idx >= 0 {
			out = append(out, installments[idx])
		}
	}
	return out
}

// find locates an installment by id, falling back to its number for unsaved rows.
func find(installments []models.Installment, id uint, number int) int {
	for i := range installments {
		if id != 0 && installments[i].ID == id {
			return i
		}
		if id == 0 && installments[i].InstallmentNumber == number {
			return i
		}
	}
	return -1
}
