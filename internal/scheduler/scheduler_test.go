package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAdd_InvalidSpec(t *testing.T) {
	s := New(time.UTC)
	err := s.Add(context.Background(), "bad", "every now and then", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("Add() error = nil, want parse error")
	}
}

func TestRun_ExecutesJobsUntilCanceled(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	err := s.Add(ctx, "tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return errors.New("failures are only logged")
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
