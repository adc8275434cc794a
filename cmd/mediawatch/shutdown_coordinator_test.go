package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"mediawatch/internal/logging"
)

func TestShutdownCoordinatorRunsPhasesInOrder(t *testing.T) {
	coordinator := newShutdownCoordinator(logging.NewNop())

	var order []string
	coordinator.Add("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	coordinator.Add("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})

	if err := coordinator.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected phases in add order, got %v", order)
	}
}

func TestShutdownCoordinatorCollectsErrors(t *testing.T) {
	coordinator := newShutdownCoordinator(logging.NewNop())

	boom := errors.New("boom")
	var ranLater bool
	coordinator.Add("failing", func(context.Context) error { return boom })
	coordinator.Add("later", func(context.Context) error {
		ranLater = true
		return nil
	})

	err := coordinator.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ranLater {
		t.Fatalf("expected later phase to run despite earlier failure")
	}
}

func TestShutdownCoordinatorAbandonsStuckPhase(t *testing.T) {
	coordinator := newShutdownCoordinator(logging.NewNop())

	release := make(chan struct{})
	coordinator.Add("stuck", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := coordinator.Run(ctx)
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected stuck phase to be abandoned at the deadline, took %v", elapsed)
	}
}

func TestShutdownCoordinatorRunsOnce(t *testing.T) {
	coordinator := newShutdownCoordinator(logging.NewNop())

	count := 0
	coordinator.Add("counted", func(context.Context) error {
		count++
		return nil
	})

	_ = coordinator.Run(context.Background())
	_ = coordinator.Run(context.Background())
	if count != 1 {
		t.Fatalf("expected a single execution, got %d", count)
	}
}
