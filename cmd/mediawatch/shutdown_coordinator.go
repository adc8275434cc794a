package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mediawatch/internal/logging"
)

type shutdownPhase struct {
	name string
	stop func(context.Context) error
}

// shutdownCoordinator runs teardown phases in order, once. Phases are added
// in startup order and executed as added, so the listener stops accepting
// before the watcher core drains.
type shutdownCoordinator struct {
	logger *logging.Logger
	once   sync.Once
	phases []shutdownPhase
}

func newShutdownCoordinator(logger *logging.Logger) *shutdownCoordinator {
	return &shutdownCoordinator{logger: logger}
}

func (coordinator *shutdownCoordinator) Add(name string, stop func(context.Context) error) {
	if coordinator == nil || stop == nil {
		return
	}
	coordinator.phases = append(coordinator.phases, shutdownPhase{name: name, stop: stop})
}

func (coordinator *shutdownCoordinator) Run(ctx context.Context) error {
	if coordinator == nil {
		return nil
	}
	var runErr error
	coordinator.once.Do(func() {
		for _, phase := range coordinator.phases {
			if coordinator.logger != nil {
				coordinator.logger.Debug("shutdown phase starting", map[string]string{
					"phase": phase.name,
				})
			}
			// A phase that ignores its context is abandoned when the grace
			// period expires; the process exits without it.
			result := make(chan error, 1)
			go func(stop func(context.Context) error) {
				result <- stop(ctx)
			}(phase.stop)

			select {
			case err := <-result:
				if err != nil {
					runErr = errors.Join(runErr, err)
					if coordinator.logger != nil {
						coordinator.logger.Warn("shutdown phase failed", map[string]string{
							"phase": phase.name,
							"error": err.Error(),
						})
					}
				}
			case <-ctx.Done():
				runErr = errors.Join(runErr, fmt.Errorf("phase %s: %w", phase.name, ctx.Err()))
				if coordinator.logger != nil {
					coordinator.logger.Warn("shutdown phase abandoned", map[string]string{
						"phase": phase.name,
						"error": ctx.Err().Error(),
					})
				}
			}
		}
	})
	return runErr
}
