package amortization

import (
	"testing"

	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_NothingPaid(t *testing.T) {
	s := Summarize(d("3200"), plan("1000", "1000", "1000", "1000"))

	assertMoney(t, "3200", s.RemainingDebt)
	assert.Equal(t, 4, s.RemainingInstallments)
	assert.Equal(t, 0, s.PaidInstallments)
	assertMoney(t, "0", s.PaymentProgress)
	assertMoney(t, "4000", s.TotalOutstanding)
	assert.Equal(t, models.LoanStatusActive, s.Status)
	require.NotNil(t, s.NextDue)
	assert.Equal(t, 1, s.NextDue.InstallmentNumber)
}

func TestSummarize_AfterPayment(t *testing.T) {
	alloc, err := Allocate(d("2400"), plan("1000", "1000", "1000", "1000"), firstDue)
	require.NoError(t, err)

	s := Summarize(d("3200"), alloc.Installments)

	assertMoney(t, "1600", s.RemainingDebt)
	assert.Equal(t, 2, s.RemainingInstallments)
	assert.Equal(t, 2, s.PaidInstallments)
	assertMoney(t, "50", s.PaymentProgress)
	assertMoney(t, "2400", s.TotalPaid)
	assertMoney(t, "1600", s.TotalOutstanding)
	assert.Equal(t, models.LoanStatusActive, s.Status)
	require.NotNil(t, s.NextDue)
	assert.Equal(t, 3, s.NextDue.InstallmentNumber)
}

func TestSummarize_Overdue(t *testing.T) {
	insts := plan("1000", "1000", "1000")
	insts[0].Status = models.InstallmentStatusOverdue

	s := Summarize(d("2400"), insts)
	assert.Equal(t, models.LoanStatusOverdue, s.Status)
	assert.Equal(t, 1, s.OverdueInstallments)
	assertMoney(t, "0", s.PaymentProgress)
}

func TestSummarize_Closed(t *testing.T) {
	alloc, err := Allocate(d("3000"), plan("1000", "1000", "1000"), firstDue)
	require.NoError(t, err)

	s := Summarize(d("2400"), alloc.Installments)
	assert.Equal(t, models.LoanStatusClosed, s.Status)
	assertMoney(t, "0", s.RemainingDebt)
	assertMoney(t, "100", s.PaymentProgress)
	assert.Nil(t, s.NextDue)
}

func TestSummarize_ProgressRounding(t *testing.T) {
	alloc, err := Allocate(d("1000"), plan("1000", "1000", "1000"), firstDue)
	require.NoError(t, err)

	s := Summarize(d("2400"), alloc.Installments)
	assertMoney(t, "33.33", s.PaymentProgress)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(d("1000"), nil)
	assertMoney(t, "1000", s.RemainingDebt)
	assert.Equal(t, models.LoanStatusActive, s.Status)
	assert.Nil(t, s.NextDue)
}
