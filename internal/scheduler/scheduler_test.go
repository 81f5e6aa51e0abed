package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"baobab/internal/docstore"
	"baobab/internal/sourcehealth"
	"baobab/internal/trending"
)

func TestDispatchRecoversPanic(t *testing.T) {
	// Must not propagate the panic.
	Dispatch(context.Background(), "panicky", func(ctx context.Context) error {
		panic("boom")
	})
}

func TestDispatchRunsJob(t *testing.T) {
	ran := false
	Dispatch(context.Background(), "ok", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if !ran {
		t.Fatal("job did not run")
	}
}

func TestDispatchToleratesErrors(t *testing.T) {
	Dispatch(context.Background(), "failing", func(ctx context.Context) error {
		return errors.New("store unavailable")
	})
}

func TestDispatchHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var seen error
	Dispatch(ctx, "cancelled", func(ctx context.Context) error {
		seen = ctx.Err()
		return ctx.Err()
	})
	if !errors.Is(seen, context.Canceled) {
		t.Errorf("job context = %v, want cancelled", seen)
	}
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(context.Background())
	err := s.Add(Job{Name: "broken", Spec: "not a cron spec", Run: func(ctx context.Context) error { return nil }})
	if err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestRegisterStandardSchedule(t *testing.T) {
	store := docstore.NewMemory()
	s := New(context.Background())

	err := Register(s, Pipelines{
		Trending: trending.New(store, nil),
		Health:   sourcehealth.NewMonitor(store),
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := len(s.cron.Entries()); got != 2 {
		t.Errorf("entries = %d, want 2 for the provided pipelines", got)
	}
}

func TestSchedulerStopWaitsForJobs(t *testing.T) {
	s := New(context.Background())
	s.Start()
	done := make(chan struct{})
	go func() {
		s.Stop(time.Second)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
}
