package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/sjperalta/kredim-api/internal/models"
)

// Loan events
const (
	EventFallBehind = "fall_behind"
	EventCatchUp    = "catch_up"
	EventClose      = "close"
	EventReopenLoan = "reopen"
)

// LoanFSM wraps a loan with its state machine
type LoanFSM struct {
	loan *models.Loan
	fsm  *fsm.FSM
}

// NewLoanFSM creates a new loan state machine
func NewLoanFSM(loan *models.Loan) *LoanFSM {
	lfsm := &LoanFSM{
		loan: loan,
	}

	lfsm.fsm = fsm.NewFSM(
		loan.Status,
		fsm.Events{
			// active → overdue
			{Name: EventFallBehind, Src: []string{models.LoanStatusActive}, Dst: models.LoanStatusOverdue},

			// overdue → active
			{Name: EventCatchUp, Src: []string{models.LoanStatusOverdue}, Dst: models.LoanStatusActive},

			// active/overdue → closed
			{Name: EventClose, Src: []string{models.LoanStatusActive, models.LoanStatusOverdue}, Dst: models.LoanStatusClosed},

			// closed → active (a payment was reversed)
			{Name: EventReopenLoan, Src: []string{models.LoanStatusClosed}, Dst: models.LoanStatusActive},
		},
		fsm.Callbacks{
			"enter_" + models.LoanStatusClosed: func(_ context.Context, _ *fsm.Event) {
				now := time.Now()
				lfsm.loan.ClosedAt = &now
			},
			"leave_" + models.LoanStatusClosed: func(_ context.Context, _ *fsm.Event) {
				lfsm.loan.ClosedAt = nil
			},
		},
	)

	return lfsm
}

// TransitionTo fires the events needed to reach target. Reaching overdue from closed
// goes through active.
func (l *LoanFSM) TransitionTo(ctx context.Context, target string) error {
	if l.fsm.Current() == target {
		return nil
	}

	var path []string
	switch target {
	case models.LoanStatusClosed:
		path = []string{EventClose}
	case models.LoanStatusActive:
		if l.fsm.Current() == models.LoanStatusClosed {
			path = []string{EventReopenLoan}
		} else {
			path = []string{EventCatchUp}
		}
	case models.LoanStatusOverdue:
		if l.fsm.Current() == models.LoanStatusClosed {
			path = []string{EventReopenLoan, EventFallBehind}
		} else {
			path = []string{EventFallBehind}
		}
	default:
		return fmt.Errorf("bilinmeyen kredi durumu: %s", target)
	}

	for _, event := range path {
		if err := l.fsm.Event(ctx, event); err != nil {
			return fmt.Errorf("kredi durumu %s → %s değiştirilemedi: %w", l.loan.Status, target, err)
		}
		l.loan.Status = l.fsm.Current()
	}
	return nil
}

// Current returns the current state
func (l *LoanFSM) Current() string {
	return l.fsm.Current()
}

// Can checks if a transition is possible
func (l *LoanFSM) Can(event string) bool {
	return l.fsm.Can(event)
}
