package payments

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/angelmondragon/quoteflow/pkg/fsmutil"
)

const (
	EventSubmitInfo = "submit_info"
	EventProcess    = "process"
	EventApprove    = "approve"
	EventDecline    = "decline"
	EventRetry      = "retry"
	EventConfirm    = "confirm"
	EventCancel     = "cancel"
)

var (
	stateForm         = enums.PaymentStateForm.String()
	statePaymentInfo  = enums.PaymentStatePaymentInfo.String()
	stateModalOpen    = enums.PaymentStateModalOpen.String()
	stateSuccess      = enums.PaymentStateSuccess.String()
	stateFailed       = enums.PaymentStateFailed.String()
	stateConfirmation = enums.PaymentStateConfirmation.String()
)

var paymentEvents = fsm.Events{
	{Name: EventSubmitInfo, Src: []string{stateForm}, Dst: statePaymentInfo},
	{Name: EventProcess, Src: []string{statePaymentInfo}, Dst: stateModalOpen},
	{Name: EventApprove, Src: []string{stateModalOpen}, Dst: stateSuccess},
	{Name: EventDecline, Src: []string{stateModalOpen}, Dst: stateFailed},
	{Name: EventRetry, Src: []string{stateFailed}, Dst: stateModalOpen},
	{Name: EventConfirm, Src: []string{stateSuccess}, Dst: stateConfirmation},
	{Name: EventCancel, Src: []string{statePaymentInfo, stateModalOpen, stateFailed}, Dst: stateForm},
}

// newMachine restores a machine at the session's persisted state. Entering a
// state writes it back to the session so the two never drift.
func newMachine(sess *Session, now func() time.Time) *fsm.FSM {
	initial := sess.State
	if !initial.IsValid() {
		initial = enums.PaymentStateForm
	}

	return fsm.NewFSM(initial.String(), paymentEvents, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			sess.State = enums.PaymentState(e.Dst)
			sess.UpdatedAt = now().UTC()
		},
		"enter_" + stateFailed: fsmutil.WrapEvent(func(_ context.Context, e *fsm.Event) error {
			if msg := messageArg(e); msg != "" {
				sess.Message = msg
			}
			return nil
		}),
		"enter_" + stateForm: func(_ context.Context, _ *fsm.Event) {
			sess.Message = ""
		},
		"enter_" + stateSuccess: func(_ context.Context, _ *fsm.Event) {
			sess.Message = ""
		},
	})
}

func messageArg(e *fsm.Event) string {
	if len(e.Args) == 0 {
		return ""
	}
	msg, _ := e.Args[0].(string)
	return msg
}

func (s *service) fire(ctx context.Context, sess *Session, event string, args ...any) error {
	return fsmutil.Fire(ctx, newMachine(sess, s.now), "payment", event, args...)
}
