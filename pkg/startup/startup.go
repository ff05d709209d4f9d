// Package startup coordinates the boot and shutdown order of long-lived
// service dependencies such as listeners and background consumers.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// StartupDependency is a unit the coordinator can bring up and tear down.
// DependsOn names other registered dependencies that must be started first.
type StartupDependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type status int

const (
	statusPending status = iota
	statusStarting
	statusStarted
	statusStopped
	statusFailed
)

// Startup starts registered dependencies in dependency order and retries the
// whole sequence with a doubling backoff when an attempt fails.
type Startup struct {
	order        []string
	dependencies map[string]StartupDependency
	statuses     map[string]status
	logger       ectologger.Logger
	maxAttempts  int
}

func NewStartup(logger ectologger.Logger, maxAttempts int) *Startup {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Startup{
		dependencies: make(map[string]StartupDependency),
		statuses:     make(map[string]status),
		logger:       logger,
		maxAttempts:  maxAttempts,
	}
}

// AddDependency registers a dependency. Registration order is the tie breaker
// when two dependencies have no ordering constraint between them.
func (s *Startup) AddDependency(dependency StartupDependency) {
	name := dependency.GetName()
	if _, exists := s.dependencies[name]; !exists {
		s.order = append(s.order, name)
	}
	s.dependencies[name] = dependency
}

func (s *Startup) Start(ctx context.Context) error {
	backoff := time.Second
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.logger.WithContext(ctx).Infof("Starting services, attempt %d/%d", attempt, s.maxAttempts)

		lastErr = s.startAll(ctx)
		if lastErr == nil {
			return nil
		}
		s.logger.WithContext(ctx).WithError(lastErr).Errorf("Startup attempt %d failed", attempt)

		if attempt == s.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("startup failed after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Startup) startAll(ctx context.Context) error {
	for _, name := range s.order {
		if err := s.startOne(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Startup) startOne(ctx context.Context, name string) error {
	switch s.statuses[name] {
	case statusStarted:
		return nil
	case statusStarting:
		return fmt.Errorf("dependency cycle involving '%s'", name)
	}

	dependency, ok := s.dependencies[name]
	if !ok {
		return fmt.Errorf("unknown dependency '%s'", name)
	}

	s.statuses[name] = statusStarting
	for _, upstream := range dependency.DependsOn() {
		if err := s.startOne(ctx, upstream); err != nil {
			s.statuses[name] = statusFailed
			return err
		}
	}

	s.logger.WithContext(ctx).WithField("dependency", name).Info("Starting dependency")
	if err := dependency.Start(ctx); err != nil {
		s.statuses[name] = statusFailed
		return fmt.Errorf("failed to start '%s': %w", name, err)
	}
	s.statuses[name] = statusStarted
	return nil
}

// Stop tears down started dependencies in reverse registration order. All
// stops are attempted even when one fails; the first error is returned.
func (s *Startup) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(s.order) - 1; i >= 0; i-- {
		name := s.order[i]
		if s.statuses[name] != statusStarted {
			continue
		}

		s.logger.WithContext(ctx).WithField("dependency", name).Info("Stopping dependency")
		if err := s.dependencies[name].Stop(ctx); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("dependency", name).Error("Failed to stop dependency")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.statuses[name] = statusStopped
	}
	return firstErr
}
