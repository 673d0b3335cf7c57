package exchange

import (
	"testing"

	"github.com/google/uuid"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusRequested, StatusAccepted, true},
		{StatusRequested, StatusDeclined, true},
		{StatusRequested, StatusCancelled, true},
		{StatusRequested, StatusInProgress, false},
		{StatusRequested, StatusCompleted, false},
		{StatusAccepted, StatusInProgress, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusAccepted, StatusDeclined, false},
		{StatusInProgress, StatusReadyForConfirmation, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusCompleted, false},
		{StatusReadyForConfirmation, StatusCompleted, true},
		{StatusReadyForConfirmation, StatusDisputed, true},
		{StatusReadyForConfirmation, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusDisputed, StatusCompleted, false},
		{StatusDeclined, StatusAccepted, false},
		{StatusCancelled, StatusRequested, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusDisputed, StatusDeclined, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	open := []Status{StatusRequested, StatusAccepted, StatusInProgress, StatusReadyForConfirmation}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("expected %s to be open", s)
		}
	}
}

func TestRoleOf(t *testing.T) {
	requester := uuid.New()
	provider := uuid.New()
	e := &Exchange{RequesterID: requester, ProviderID: provider}

	if got := e.RoleOf(requester); got != RoleRequester {
		t.Errorf("RoleOf(requester) = %q", got)
	}
	if got := e.RoleOf(provider); got != RoleProvider {
		t.Errorf("RoleOf(provider) = %q", got)
	}
	if got := e.RoleOf(uuid.New()); got != "" {
		t.Errorf("RoleOf(stranger) = %q, want empty", got)
	}
}
