package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRPC = errors.New("rpc down")

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 3
	cfg.Timeout = time.Hour

	var transitions []State
	cfg.OnStateChange = func(_ string, _, to State) { transitions = append(transitions, to) }

	cb := New[int](cfg)
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, errRPC }); !errors.Is(err, errRPC) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if !IsOpen(err) {
		t.Errorf("expected open-state error, got %v", err)
	}
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 1

	cb := New[int](cfg)
	_, _ = cb.Execute(func() (int, error) { return 0, context.Canceled })

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}

	got, err := cb.Execute(func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("Execute = %d, %v", got, err)
	}
}
