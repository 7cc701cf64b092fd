package poolconn

import "testing"

func TestShared_TeardownRunsOnceAtZero(t *testing.T) {
	teardownCalls := 0
	s := NewShared(42, func(int) error {
		teardownCalls++
		return nil
	})

	s.Acquire()
	s.Acquire()

	if err := s.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if teardownCalls != 0 {
		t.Fatalf("teardown ran early, got %d calls", teardownCalls)
	}

	if err := s.Release(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if teardownCalls != 0 {
		t.Fatalf("teardown ran early, got %d calls", teardownCalls)
	}

	if err := s.Release(); err != nil {
		t.Fatalf("unexpected error on final release: %v", err)
	}
	if teardownCalls != 1 {
		t.Fatalf("expected teardown exactly once, got %d calls", teardownCalls)
	}
}

func TestShared_ReleasePastZeroErrors(t *testing.T) {
	s := NewShared("v", func(string) error { return nil })
	if err := s.Release(); err != nil {
		t.Fatalf("unexpected error on first release: %v", err)
	}
	if err := s.Release(); err == nil {
		t.Fatal("expected an error releasing past zero")
	}
}

func TestShared_ValueUnaffectedByRefcount(t *testing.T) {
	s := NewShared("hello", func(string) error { return nil })
	s.Acquire()
	if got := s.Value(); got != "hello" {
		t.Fatalf("unexpected value: %q", got)
	}
}
