package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/sjperalta/kredim-api/internal/models"
)

// Installment events
const (
	EventPay         = "pay"
	EventReopen      = "reopen"
	EventMarkOverdue = "mark_overdue"
)

func installmentEvents() fsm.Events {
	return fsm.Events{
		// pending/overdue → paid
		{Name: EventPay, Src: []string{models.InstallmentStatusPending, models.InstallmentStatusOverdue}, Dst: models.InstallmentStatusPaid},

		// paid → pending (payment record deleted)
		{Name: EventReopen, Src: []string{models.InstallmentStatusPaid}, Dst: models.InstallmentStatusPending},

		// pending → overdue (due date passed)
		{Name: EventMarkOverdue, Src: []string{models.InstallmentStatusPending}, Dst: models.InstallmentStatusOverdue},
	}
}

// InstallmentFSM wraps an installment with its state machine
type InstallmentFSM struct {
	installment *models.Installment
	fsm         *fsm.FSM
}

// NewInstallmentFSM creates a new installment state machine
func NewInstallmentFSM(installment *models.Installment) *InstallmentFSM {
	return &InstallmentFSM{
		installment: installment,
		fsm:         fsm.NewFSM(installment.Status, installmentEvents(), fsm.Callbacks{}),
	}
}

// Pay transitions the installment to paid
func (i *InstallmentFSM) Pay(ctx context.Context, paidAt time.Time) error {
	if err := i.fsm.Event(ctx, EventPay); err != nil {
		return fmt.Errorf("taksit ödendi olarak işaretlenemedi (%s): %w", i.installment.Status, err)
	}

	i.installment.Status = i.fsm.Current()
	i.installment.PaymentDate = &paidAt
	return nil
}

// Reopen moves a paid installment back to pending
func (i *InstallmentFSM) Reopen(ctx context.Context) error {
	if err := i.fsm.Event(ctx, EventReopen); err != nil {
		return fmt.Errorf("taksit yeniden açılamadı (%s): %w", i.installment.Status, err)
	}

	i.installment.Status = i.fsm.Current()
	i.installment.PaymentDate = nil
	return nil
}

// MarkOverdue transitions a pending installment past its due date to overdue
func (i *InstallmentFSM) MarkOverdue(ctx context.Context, now time.Time) error {
	if !now.After(i.installment.DueDate) {
		return fmt.Errorf("taksit %d henüz vadesi gelmedi", i.installment.InstallmentNumber)
	}

	if err := i.fsm.Event(ctx, EventMarkOverdue); err != nil {
		return fmt.Errorf("taksit gecikmiş olarak işaretlenemedi (%s): %w", i.installment.Status, err)
	}

	i.installment.Status = i.fsm.Current()
	return nil
}

// Current returns the current state
func (i *InstallmentFSM) Current() string {
	return i.fsm.Current()
}

// Can checks if a transition is possible
func (i *InstallmentFSM) Can(event string) bool {
	return i.fsm.Can(event)
}

// TransitionTo fires the events that take the installment to target. A paid installment
// reaches overdue through reopen. at is the payment date when paying and the current day
// when marking overdue.
func (i *InstallmentFSM) TransitionTo(ctx context.Context, target string, at time.Time) error {
	current := i.fsm.Current()
	if current == target {
		return nil
	}

	switch target {
	case models.InstallmentStatusPaid:
		return i.Pay(ctx, at)
	case models.InstallmentStatusPending:
		return i.Reopen(ctx)
	case models.InstallmentStatusOverdue:
		if current == models.InstallmentStatusPaid {
			if err := i.Reopen(ctx); err != nil {
				return err
			}
		}
		return i.MarkOverdue(ctx, at)
	}
	return fmt.Errorf("bilinmeyen taksit durumu: %s", target)
}
