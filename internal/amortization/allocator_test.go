package amortization

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var firstDue = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got.StringFixed(2), msgAndArgs)
}

// plan builds pending installments with an 80/20 principal/interest split.
func plan(totals ...string) []models.Installment {
	initial := decimal.Zero
	for _, t := range totals {
		initial = initial.Add(round2(d(t).Mul(d("0.8"))))
	}

	out := make([]models.Installment, 0, len(totals))
	balance := initial
	for i, t := range totals {
		total := d(t)
		principal := round2(total.Mul(d("0.8")))
		interest := total.Sub(principal)
		balance = balance.Sub(principal)
		out = append(out, models.Installment{
			ID:                 uint(i + 1),
			LoanID:             1,
			InstallmentNumber:  i + 1,
			DueDate:            AddMonths(firstDue, i),
			PrincipalAmount:    principal,
			InterestAmount:     interest,
			TotalPayment:       total,
			RemainingDebt:      balance,
			ScheduledPrincipal: principal,
			ScheduledInterest:  interest,
			ScheduledTotal:     total,
			Status:             models.InstallmentStatusPending,
		})
	}
	return out
}

func assertSameInstallments(t *testing.T, want, got []models.Installment) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.InstallmentNumber, g.InstallmentNumber)
		assert.Equal(t, w.Status, g.Status, "installment %d status", w.InstallmentNumber)
		assertMoney(t, w.TotalPayment.String(), g.TotalPayment, "installment", w.InstallmentNumber, "total")
		assertMoney(t, w.PrincipalAmount.String(), g.PrincipalAmount, "installment", w.InstallmentNumber, "principal")
		assertMoney(t, w.InterestAmount.String(), g.InterestAmount, "installment", w.InstallmentNumber, "interest")
		assert.Equal(t, w.PaymentDate, g.PaymentDate, "installment %d payment date", w.InstallmentNumber)
	}
}

func TestAllocate_FullAndPartial(t *testing.T) {
	paidAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	alloc, err := Allocate(d("1500"), plan("1000", "1000", "1000"), paidAt)
	require.NoError(t, err)

	require.Len(t, alloc.Settlements, 2)
	first, second := alloc.Settlements[0], alloc.Settlements[1]

	assert.Equal(t, 1, first.InstallmentNumber)
	assert.Equal(t, models.PaymentKindFull, first.Kind)
	assertMoney(t, "1000", first.Amount)

	assert.Equal(t, 2, second.InstallmentNumber)
	assert.True(t, second.IsPartial())
	assertMoney(t, "500", second.Amount)
	assertMoney(t, "400", second.Principal)
	assertMoney(t, "100", second.Interest)

	insts := alloc.Installments
	assert.Equal(t, models.InstallmentStatusPaid, insts[0].Status)
	require.NotNil(t, insts[0].PaymentDate)
	assert.Equal(t, paidAt, *insts[0].PaymentDate)

	assert.Equal(t, models.InstallmentStatusPending, insts[1].Status)
	assert.Nil(t, insts[1].PaymentDate)
	assertMoney(t, "500", insts[1].TotalPayment)
	assertMoney(t, "400", insts[1].PrincipalAmount)
	assertMoney(t, "100", insts[1].InterestAmount)

	assert.Equal(t, models.InstallmentStatusPending, insts[2].Status)
	assertMoney(t, "1000", insts[2].TotalPayment)

	touched := alloc.Touched()
	require.Len(t, touched, 2)
	assert.Equal(t, 1, touched[0].InstallmentNumber)
	assert.Equal(t, 2, touched[1].InstallmentNumber)
	assertMoney(t, "1200", alloc.Principal())
	assertMoney(t, "300", alloc.Interest())
}

func TestAllocate_SettlesEarliestDueDateFirst(t *testing.T) {
	insts := plan("1000", "1000")
	// later installment first in the slice
	insts[0], insts[1] = insts[1], insts[0]

	alloc, err := Allocate(d("1000"), insts, firstDue)
	require.NoError(t, err)

	require.Len(t, alloc.Settlements, 1)
	assert.Equal(t, 1, alloc.Settlements[0].InstallmentNumber)
	assert.Equal(t, firstDue, alloc.Installments[0].DueDate)
	assert.Equal(t, models.InstallmentStatusPaid, alloc.Installments[0].Status)
	assert.Equal(t, models.InstallmentStatusPending, alloc.Installments[1].Status)
}

func TestAllocate_DueDateBeatsNumber(t *testing.T) {
	insts := plan("300", "300")
	insts[0].DueDate = AddMonths(firstDue, 2)

	alloc, err := Allocate(d("300"), insts, firstDue)
	require.NoError(t, err)
	require.Len(t, alloc.Settlements, 1)
	assert.Equal(t, 2, alloc.Settlements[0].InstallmentNumber)
}

func TestAllocate_SkipsPaidInstallments(t *testing.T) {
	insts := plan("1000", "1000", "1000")
	insts[0].Status = models.InstallmentStatusPaid
	insts[1].Status = models.InstallmentStatusOverdue

	alloc, err := Allocate(d("1200"), insts, firstDue)
	require.NoError(t, err)

	require.Len(t, alloc.Settlements, 2)
	assert.Equal(t, 2, alloc.Settlements[0].InstallmentNumber)
	assert.Equal(t, 3, alloc.Settlements[1].InstallmentNumber)
	assertMoney(t, "200", alloc.Settlements[1].Amount)
	assert.Len(t, alloc.Installments, 3)
	assert.Nil(t, alloc.Installments[0].PaymentDate)
}

func TestAllocate_Conservation(t *testing.T) {
	amounts := []string{"0.01", "1", "999.99", "1000", "1000.01", "2500.50", "3722.32"}
	for _, a := range amounts {
		t.Run(a, func(t *testing.T) {
			alloc, err := Allocate(d(a), plan("1234.57", "987.65", "1500.10"), firstDue)
			require.NoError(t, err)

			sum := decimal.Zero
			for _, s := range alloc.Settlements {
				sum = sum.Add(s.Amount)
				assertMoney(t, s.Amount.String(), s.Principal.Add(s.Interest), "portions")
			}
			assertMoney(t, a, sum)
			assertMoney(t, a, alloc.Total)

			for _, inst := range alloc.Installments {
				assertMoney(t, inst.TotalPayment.String(), inst.PrincipalAmount.Add(inst.InterestAmount), "row", inst.InstallmentNumber)
			}
		})
	}
}

func TestAllocate_PartialKeepsRatio(t *testing.T) {
	insts := []models.Installment{{
		ID:                 1,
		InstallmentNumber:  1,
		DueDate:            firstDue,
		PrincipalAmount:    d("1000.00"),
		InterestAmount:     d("234.57"),
		TotalPayment:       d("1234.57"),
		ScheduledPrincipal: d("1000.00"),
		ScheduledInterest:  d("234.57"),
		ScheduledTotal:     d("1234.57"),
		Status:             models.InstallmentStatusPending,
	}}

	for _, a := range []string{"0.01", "300", "617.28", "1000"} {
		t.Run(a, func(t *testing.T) {
			alloc, err := Allocate(d(a), insts, firstDue)
			require.NoError(t, err)

			got := alloc.Installments[0]
			oldRatio := insts[0].PrincipalAmount.Div(insts[0].TotalPayment).InexactFloat64()
			newRatio := got.PrincipalAmount.Div(got.TotalPayment).InexactFloat64()
			assert.InDelta(t, oldRatio, newRatio, 0.001)
			assertMoney(t, insts[0].TotalPayment.Sub(d(a)).String(), got.TotalPayment)
		})
	}
}

func TestAllocate_InvalidAmount(t *testing.T) {
	for _, a := range []string{"0", "-10", "0.004"} {
		_, err := Allocate(d(a), plan("1000"), firstDue)
		assert.ErrorIs(t, err, ErrInvalidAmount, a)
	}
}

func TestAllocate_NoOutstandingInstallments(t *testing.T) {
	_, err := Allocate(d("100"), nil, firstDue)
	assert.ErrorIs(t, err, ErrNoOutstandingInstallments)

	paid := plan("100")
	paid[0].Status = models.InstallmentStatusPaid
	_, err = Allocate(d("100"), paid, firstDue)
	assert.ErrorIs(t, err, ErrNoOutstandingInstallments)
}

func TestAllocate_RejectsOverpayment(t *testing.T) {
	insts := plan("1000", "1000", "1000")

	_, err := Allocate(d("3000.01"), insts, firstDue)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverpayment)

	var over *OverpaymentError
	require.True(t, errors.As(err, &over))
	assertMoney(t, "3000", over.Outstanding)
	assertMoney(t, "3000.01", over.Amount)

	// nothing touched
	for _, inst := range insts {
		assert.Equal(t, models.InstallmentStatusPending, inst.Status)
	}
}

func TestAllocate_DoesNotMutateInput(t *testing.T) {
	insts := plan("1000", "1000")

	_, err := Allocate(d("1500"), insts, firstDue)
	require.NoError(t, err)

	assert.Equal(t, models.InstallmentStatusPending, insts[0].Status)
	assert.Nil(t, insts[0].PaymentDate)
	assertMoney(t, "1000", insts[1].TotalPayment)
}
