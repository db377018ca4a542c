package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sjperalta/kredim-api/internal/amortization"
	"github.com/sjperalta/kredim-api/internal/models"
	"github.com/sjperalta/kredim-api/internal/statemachine"
)

// applySummary recomputes the stored loan figures from the full plan and moves the loan
// status through the loan state machine. The loan is not persisted.
func applySummary(ctx context.Context, loan *models.Loan, installments []models.Installment) (amortization.Summary, error) {
	summary := amortization.Summarize(loan.InitialAmount, installments)

	if err := statemachine.NewLoanFSM(loan).TransitionTo(ctx, summary.Status); err != nil {
		return summary, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	loan.RemainingDebt = summary.RemainingDebt
	loan.RemainingInstallments = summary.RemainingInstallments
	loan.PaymentProgress = summary.PaymentProgress
	return summary, nil
}

// applyTransitions replays the status changes between before and after through the
// installment state machine, so after only holds changes the machine allows. at is the
// payment date for payments and today for reversals.
func applyTransitions(ctx context.Context, before, after []models.Installment, at time.Time) error {
	prev := make(map[uint]string, len(before))
	for i := range before {
		prev[before[i].ID] = before[i].Status
	}
	for i := range after {
		inst := &after[i]
		from, ok := prev[inst.ID]
		if !ok || from == inst.Status {
			continue
		}
		target := inst.Status
		inst.Status = from
		if err := statemachine.NewInstallmentFSM(inst).TransitionTo(ctx, target, at); err != nil {
			return fmt.Errorf("%w: taksit %d %s → %s: %v", ErrInvalidState, inst.InstallmentNumber, from, target, err)
		}
	}
	return nil
}
