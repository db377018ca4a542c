package amortization

import (
	"testing"
	"time"

	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverse_RoundTrip(t *testing.T) {
	plans := map[string][]string{
		"even":   {"1000", "1000", "1000"},
		"uneven": {"1234.57", "987.65", "1500.10"},
	}
	amounts := []string{"0.01", "500", "987.65", "1234.57", "1234.58", "2222.22", "3000"}

	for name, totals := range plans {
		for _, a := range amounts {
			t.Run(name+"/"+a, func(t *testing.T) {
				original := plan(totals...)
				alloc, err := Allocate(d(a), original, firstDue)
				require.NoError(t, err)

				rev, err := Reverse(alloc.Settlements, alloc.Installments, time.Time{})
				require.NoError(t, err)

				assertSameInstallments(t, original, rev.Installments)
				assertMoney(t, a, rev.Total)
			})
		}
	}
}

func TestReverse_IsLIFO(t *testing.T) {
	alloc, err := Allocate(d("1500"), plan("1000", "1000", "1000"), firstDue)
	require.NoError(t, err)

	rev, err := Reverse(alloc.Settlements, alloc.Installments, time.Time{})
	require.NoError(t, err)
	require.Len(t, rev.Settlements, 2)
	assert.Equal(t, 2, rev.Settlements[0].InstallmentNumber)
	assert.Equal(t, 1, rev.Settlements[1].InstallmentNumber)

	touched := rev.Touched()
	require.Len(t, touched, 2)
	assert.Equal(t, 2, touched[0].InstallmentNumber)
}

func TestReverse_RestoresOverdueStatus(t *testing.T) {
	alloc, err := Allocate(d("1500"), plan("1000", "1000", "1000"), firstDue)
	require.NoError(t, err)

	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rev, err := Reverse(alloc.Settlements, alloc.Installments, today)
	require.NoError(t, err)

	// due 15 Jan, reopened after its due date
	assert.Equal(t, models.InstallmentStatusOverdue, rev.Installments[0].Status)
	// partially paid, never left pending
	assert.Equal(t, models.InstallmentStatusPending, rev.Installments[1].Status)
}

func TestReverse_PartialOnLaterPaidInstallmentConflicts(t *testing.T) {
	first, err := Allocate(d("1500"), plan("1000", "1000", "1000"), firstDue)
	require.NoError(t, err)

	// a second payment completes installment 2
	second, err := Allocate(d("500"), first.Installments, firstDue)
	require.NoError(t, err)
	require.Equal(t, models.InstallmentStatusPaid, second.Installments[1].Status)

	_, err = Reverse(first.Settlements, second.Installments, time.Time{})
	assert.ErrorIs(t, err, ErrReversalConflict)

	// the later payment can be undone first, then the earlier one
	afterSecond, err := Reverse(second.Settlements, second.Installments, time.Time{})
	require.NoError(t, err)
	afterFirst, err := Reverse(first.Settlements, afterSecond.Installments, time.Time{})
	require.NoError(t, err)
	assertSameInstallments(t, plan("1000", "1000", "1000"), afterFirst.Installments)
}

func TestReverse_FullOnUnpaidInstallmentConflicts(t *testing.T) {
	alloc, err := Allocate(d("1000"), plan("1000", "1000"), firstDue)
	require.NoError(t, err)

	_, err = Reverse(alloc.Settlements, plan("1000", "1000"), time.Time{})
	assert.ErrorIs(t, err, ErrReversalConflict)
}

func TestReverse_UnknownInstallment(t *testing.T) {
	alloc, err := Allocate(d("1000"), plan("1000", "1000"), firstDue)
	require.NoError(t, err)

	_, err = Reverse(alloc.Settlements, alloc.Installments[1:], time.Time{})
	assert.ErrorIs(t, err, ErrReversalConflict)
}

func TestReverse_Empty(t *testing.T) {
	_, err := Reverse(nil, plan("1000"), time.Time{})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestReverseAmount_RoundTrip(t *testing.T) {
	for _, a := range []string{"0.01", "500", "1234.57", "2222.22", "3722.32"} {
		t.Run(a, func(t *testing.T) {
			original := plan("1234.57", "987.65", "1500.10")
			alloc, err := Allocate(d(a), original, firstDue)
			require.NoError(t, err)

			rev, err := ReverseAmount(d(a), alloc.Installments, time.Time{})
			require.NoError(t, err)

			assertSameInstallments(t, original, rev.Installments)
			assertMoney(t, a, rev.Total)
		})
	}
}

func TestReverseAmount_UndoesLatestPaymentOnly(t *testing.T) {
	first, err := Allocate(d("500"), plan("1000", "1000", "1000"), firstDue)
	require.NoError(t, err)
	second, err := Allocate(d("700"), first.Installments, firstDue)
	require.NoError(t, err)

	rev, err := ReverseAmount(d("700"), second.Installments, time.Time{})
	require.NoError(t, err)

	assertSameInstallments(t, first.Installments, rev.Installments)
	require.Len(t, rev.Settlements, 2)
	assert.Equal(t, 2, rev.Settlements[0].InstallmentNumber)
	assertMoney(t, "200", rev.Settlements[0].Amount)
	assert.Equal(t, 1, rev.Settlements[1].InstallmentNumber)
	assert.Equal(t, models.PaymentKindFull, rev.Settlements[1].Kind)
	assertMoney(t, "500", rev.Settlements[1].Amount)
}

func TestReverseAmount_MoreThanCovered(t *testing.T) {
	alloc, err := Allocate(d("100"), plan("1000", "1000"), firstDue)
	require.NoError(t, err)

	_, err = ReverseAmount(d("100.01"), alloc.Installments, time.Time{})
	assert.ErrorIs(t, err, ErrReversalConflict)

	_, err = ReverseAmount(d("0"), alloc.Installments, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
