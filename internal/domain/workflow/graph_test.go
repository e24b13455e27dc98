package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateAssigned, false},
		{StateRequirementSubmitted, false},
		{StateAdvancePaymentPending, false},
		{StateInProgress, false},
		{StateReadyForDemo, false},
		{StateFinalPaymentPending, false},
		{StateReadyForDownload, false},
		{StateDelivered, true},
		{StateCompleted, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"valid state", StateAssigned, true},
		{"valid state", StateCompleted, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAllStates_Ordered(t *testing.T) {
	states := AllStates()
	if len(states) != 9 {
		t.Fatalf("AllStates() returned %d states, want 9", len(states))
	}
	if states[0] != StateAssigned || states[len(states)-1] != StateCompleted {
		t.Errorf("AllStates() order = %v", states)
	}

	// Mutating the copy must not affect later calls
	states[0] = StateDelivered
	if AllStates()[0] != StateAssigned {
		t.Error("AllStates() should return a copy")
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerRequestAdvance.String(); got != "request-advance" {
		t.Errorf("Trigger.String() = %v, want %v", got, "request-advance")
	}
	if Trigger("bogus").IsValid() {
		t.Error("unknown trigger should be invalid")
	}
}

type paidFlag struct{ paid bool }

func requirePaid(ctx context.Context, p *paidFlag) error {
	if !p.paid {
		return errors.New("payment not confirmed")
	}
	return nil
}

func sampleGraph() *Graph[*paidFlag] {
	g := NewGraph[*paidFlag]("sample")
	g.From(StateAssigned).
		On(TriggerSubmitRequirement, StateRequirementSubmitted).
		Stay(TriggerSendEmail, TriggerResendEmail)
	g.From(StateAdvancePaymentPending).
		OnIf(TriggerStartWork, StateInProgress, requirePaid)
	g.From(StateInProgress).
		On(TriggerComplete, StateCompleted)
	return g
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s should panic", name)
		}
	}()
	fn()
}

func TestGraph_Next(t *testing.T) {
	g := sampleGraph()
	ctx := context.Background()

	next, err := g.Next(ctx, StateAssigned, TriggerSubmitRequirement, nil)
	if err != nil || next != StateRequirementSubmitted {
		t.Fatalf("Next() = %v, %v", next, err)
	}

	next, err = g.Next(ctx, StateAssigned, TriggerResendEmail, nil)
	if err != nil || next != StateAssigned {
		t.Errorf("Stay trigger should keep the state, got %v, %v", next, err)
	}
}

func TestGraph_Next_InvalidTransition(t *testing.T) {
	g := sampleGraph()

	next, err := g.Next(context.Background(), StateAssigned, TriggerStartWork, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if next != StateAssigned {
		t.Errorf("rejected Next() should return the source state, got %v", next)
	}

	// Unconfigured source state
	if _, err := g.Next(context.Background(), StateDelivered, TriggerUploadFiles, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for unconfigured state, got %v", err)
	}
}

func TestGraph_Next_Guard(t *testing.T) {
	g := sampleGraph()
	ctx := context.Background()

	_, err := g.Next(ctx, StateAdvancePaymentPending, TriggerStartWork, &paidFlag{})
	var guardErr *GuardError
	if !errors.As(err, &guardErr) {
		t.Fatalf("expected GuardError, got %v", err)
	}
	if !errors.Is(err, ErrGuardFailed) {
		t.Error("GuardError should unwrap to ErrGuardFailed")
	}
	if guardErr.Cause.Error() != "payment not confirmed" {
		t.Errorf("Cause = %v", guardErr.Cause)
	}

	next, err := g.Next(ctx, StateAdvancePaymentPending, TriggerStartWork, &paidFlag{paid: true})
	if err != nil || next != StateInProgress {
		t.Errorf("Next() with guard passing = %v, %v", next, err)
	}
}

func TestGraph_Next_FirstPassingEdgeWins(t *testing.T) {
	g := NewGraph[int]("fallback")
	g.From(StateReadyForDownload).
		OnIf(TriggerUploadFiles, StateDelivered, func(ctx context.Context, n int) error {
			if n < 3 {
				return errors.New("not enough files")
			}
			return nil
		}).
		On(TriggerUploadFiles, StateReadyForDownload)

	if next, _ := g.Next(context.Background(), StateReadyForDownload, TriggerUploadFiles, 1); next != StateReadyForDownload {
		t.Errorf("guarded edge refused, want fallback edge, got %v", next)
	}
	if next, _ := g.Next(context.Background(), StateReadyForDownload, TriggerUploadFiles, 3); next != StateDelivered {
		t.Errorf("guarded edge passes, got %v", next)
	}
}

func TestGraph_AllowsIgnoresGuards(t *testing.T) {
	g := sampleGraph()

	if !g.Allows(StateAdvancePaymentPending, TriggerStartWork) {
		t.Error("guarded trigger should be allowed before guards run")
	}
	if g.Allows(StateInProgress, TriggerReadyForDemo) {
		t.Error("unconfigured trigger should not be allowed")
	}
}

func TestGraph_Triggers_Sorted(t *testing.T) {
	got := sampleGraph().Triggers(StateAssigned)
	want := []Trigger{TriggerResendEmail, TriggerSubmitRequirement, TriggerSendEmail}
	if len(got) != len(want) {
		t.Fatalf("Triggers() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Triggers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if got := sampleGraph().Triggers(StateDelivered); len(got) != 0 {
		t.Errorf("Triggers() for unconfigured state = %v", got)
	}
}

func TestGraph_Reachable(t *testing.T) {
	g := sampleGraph()
	g.From(StateRequirementSubmitted).On(TriggerRequestAdvance, StateAdvancePaymentPending)

	got := g.Reachable(StateAssigned)
	want := []State{StateAssigned, StateRequirementSubmitted, StateAdvancePaymentPending, StateInProgress, StateCompleted}
	if len(got) != len(want) {
		t.Fatalf("Reachable() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Reachable()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGraph_PanicsOnInvalidConfiguration(t *testing.T) {
	g := NewGraph[any]("broken")
	expectPanic(t, "From(invalid)", func() { g.From(State("INVALID")) })
	expectPanic(t, "On(invalid trigger)", func() { g.From(StateAssigned).On(Trigger("bogus"), StateCompleted) })
	expectPanic(t, "On(invalid target)", func() { g.From(StateAssigned).On(TriggerStartWork, State("")) })
}

func TestActionError(t *testing.T) {
	err := NewActionError(TriggerStartWork, StateAssigned, ErrInvalidTransition, "")

	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("ActionError should unwrap to its sentinel")
	}
	if got := err.Error(); got != "start-work from assigned: invalid state transition" {
		t.Errorf("Error() = %q", got)
	}

	status, ok := StatusOf(err)
	if !ok || status != StateAssigned {
		t.Errorf("StatusOf() = %v, %v", status, ok)
	}

	if _, ok := StatusOf(errors.New("plain")); ok {
		t.Error("StatusOf() should be false for plain errors")
	}

	if got := AllowedOf(err); got != nil {
		t.Errorf("AllowedOf() = %v, want nil before WithAllowed", got)
	}
	wrapped := fmt.Errorf("execute: %w", err.WithAllowed([]Trigger{TriggerResendEmail}))
	if got := AllowedOf(wrapped); len(got) != 1 || got[0] != TriggerResendEmail {
		t.Errorf("AllowedOf() = %v", got)
	}
}
