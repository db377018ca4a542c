package statemachine

import (
	"context"
	"testing"

	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanFSM_TransitionTo(t *testing.T) {
	ctx := context.Background()
	loan := &models.Loan{Status: models.LoanStatusActive}
	f := NewLoanFSM(loan)

	require.NoError(t, f.TransitionTo(ctx, models.LoanStatusOverdue))
	assert.Equal(t, models.LoanStatusOverdue, loan.Status)

	require.NoError(t, f.TransitionTo(ctx, models.LoanStatusClosed))
	assert.Equal(t, models.LoanStatusClosed, loan.Status)
	assert.NotNil(t, loan.ClosedAt)

	require.NoError(t, f.TransitionTo(ctx, models.LoanStatusOverdue))
	assert.Equal(t, models.LoanStatusOverdue, loan.Status)
	assert.Nil(t, loan.ClosedAt)

	require.NoError(t, f.TransitionTo(ctx, models.LoanStatusActive))
	assert.Equal(t, models.LoanStatusActive, loan.Status)
}

func TestLoanFSM_SameStatusIsNoop(t *testing.T) {
	loan := &models.Loan{Status: models.LoanStatusClosed}
	f := NewLoanFSM(loan)

	assert.NoError(t, f.TransitionTo(context.Background(), models.LoanStatusClosed))
	assert.Equal(t, models.LoanStatusClosed, f.Current())
}

func TestLoanFSM_UnknownTarget(t *testing.T) {
	loan := &models.Loan{Status: models.LoanStatusActive}
	f := NewLoanFSM(loan)

	assert.Error(t, f.TransitionTo(context.Background(), "archived"))
	assert.True(t, f.Can(EventClose))
	assert.False(t, f.Can(EventReopenLoan))
}
