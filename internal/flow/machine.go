package flow

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/angelmondragon/quoteflow/pkg/fsmutil"
)

const (
	EventQuote           = "quote"
	EventQuoteFailed     = "quote_failed"
	EventOpenPayment     = "open_payment"
	EventPaymentApproved = "payment_approved"
	EventCancelPayment   = "cancel_payment"
	EventBeginShare      = "begin_share"
	EventShareCreated    = "share_created"
	EventShareFailed     = "share_failed"
	EventReset           = "reset"
)

var (
	phaseIdle             = enums.FlowPhaseIdle.String()
	phaseQuoteReady       = enums.FlowPhaseQuoteReady.String()
	phaseAwaitingPayment  = enums.FlowPhaseAwaitingPayment.String()
	phasePaymentSucceeded = enums.FlowPhasePaymentSucceeded.String()
	phaseSharePending     = enums.FlowPhaseSharePending.String()
	phaseShareReady       = enums.FlowPhaseShareReady.String()
)

var pageEvents = fsm.Events{
	{Name: EventQuote, Src: []string{phaseIdle, phaseQuoteReady, phaseAwaitingPayment, phaseShareReady}, Dst: phaseQuoteReady},
	{Name: EventQuoteFailed, Src: []string{phaseIdle, phaseQuoteReady, phaseAwaitingPayment, phaseShareReady}, Dst: phaseIdle},
	{Name: EventOpenPayment, Src: []string{phaseQuoteReady, phaseAwaitingPayment}, Dst: phaseAwaitingPayment},
	{Name: EventPaymentApproved, Src: []string{phaseAwaitingPayment}, Dst: phasePaymentSucceeded},
	{Name: EventCancelPayment, Src: []string{phaseAwaitingPayment}, Dst: phaseQuoteReady},
	{Name: EventBeginShare, Src: []string{phaseQuoteReady, phaseShareReady}, Dst: phaseSharePending},
	{Name: EventShareCreated, Src: []string{phaseSharePending}, Dst: phaseShareReady},
	{Name: EventShareFailed, Src: []string{phaseSharePending}, Dst: phaseQuoteReady},
	{Name: EventReset, Src: []string{phaseIdle, phaseQuoteReady, phaseAwaitingPayment, phasePaymentSucceeded, phaseSharePending, phaseShareReady}, Dst: phaseIdle},
}

// newPageMachine restores the page's phase. Entering a phase clears whatever
// that phase must not carry, so a transition can never leave stale state behind.
func newPageMachine(page *Page, now func() time.Time) *fsm.FSM {
	initial := page.Phase
	if !initial.IsValid() {
		initial = enums.FlowPhaseIdle
	}

	return fsm.NewFSM(initial.String(), pageEvents, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			page.Phase = enums.FlowPhase(e.Dst)
			page.UpdatedAt = now().UTC()
		},
		"enter_" + phaseIdle: func(_ context.Context, _ *fsm.Event) {
			page.Quote = nil
			page.Payment = nil
			page.Share = nil
			page.Error = ""
		},
		"enter_" + phaseQuoteReady: func(_ context.Context, _ *fsm.Event) {
			page.Payment = nil
			page.Share = nil
		},
		"enter_" + phaseSharePending: func(_ context.Context, _ *fsm.Event) {
			page.Share = nil
		},
		"enter_" + phaseAwaitingPayment: func(_ context.Context, _ *fsm.Event) {
			page.Share = nil
			page.Error = ""
		},
	})
}

func (s *service) fire(ctx context.Context, page *Page, event string) error {
	return fsmutil.Fire(ctx, newPageMachine(page, s.now), "quote page", event)
}

func (s *service) can(page *Page, event string) bool {
	return newPageMachine(page, s.now).Can(event)
}
