// Package startup orders service dependencies and retries failed boots with
// fibonacci backoff.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dependency is one startable piece of the service (database, consumer,
// HTTP server).
type Dependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Status int

const (
	StatusPending Status = iota
	StatusStarted
	StatusStopped
	StatusFailed
)

// Manager starts dependencies in dependency order and stops them in reverse.
type Manager struct {
	dependencies map[string]Dependency
	logger       ectologger.Logger
	statuses     map[string]Status
	attempt      int
	maxAttempts  int
}

func NewManager(logger ectologger.Logger, maxAttempts int) *Manager {
	return &Manager{
		logger:       logger,
		dependencies: make(map[string]Dependency),
		statuses:     make(map[string]Status),
		maxAttempts:  maxAttempts,
	}
}

func (m *Manager) AddDependency(dependency Dependency) {
	m.dependencies[dependency.GetName()] = dependency
}

func (m *Manager) Start(ctx context.Context) error {
	m.attempt = 0
	var lastErr error

	a, b := 1, 1
	for m.attempt < m.maxAttempts {
		m.attempt++
		m.logger.WithField("attempt", m.attempt).Infof("Beginning startup attempt %d", m.attempt)

		success := true
		for _, dependency := range m.dependencies {
			err := m.startDependency(ctx, dependency)
			if err != nil {
				m.logger.WithError(err).Errorf("Startup dependency '%s' attempt %d failed", dependency.GetName(), m.attempt)
				lastErr = err
				success = false
				break
			}
		}

		if success {
			return nil
		}

		if m.attempt >= m.maxAttempts {
			return fmt.Errorf("startup failed after %d attempts: %w", m.attempt, lastErr)
		}

		waitTime := time.Duration(a) * time.Second
		m.logger.Infof("Retrying in %d seconds (attempt %d/%d)", a, m.attempt, m.maxAttempts)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}

		a, b = b, a+b
	}

	return nil
}

func (m *Manager) startDependency(ctx context.Context, dependency Dependency) error {
	if m.statuses[dependency.GetName()] == StatusStarted {
		return nil
	}

	for _, dependencyName := range dependency.DependsOn() {
		if m.statuses[dependencyName] != StatusStarted {
			err := m.startDependency(ctx, m.dependencies[dependencyName])
			if err != nil {
				return err
			}
		}
	}

	m.logger.WithField("dependency", dependency.GetName()).Infof("Starting dependency '%s'", dependency.GetName())
	m.statuses[dependency.GetName()] = StatusPending
	if err := dependency.Start(ctx); err != nil {
		m.statuses[dependency.GetName()] = StatusFailed
		m.logger.WithError(err).WithField("dependency", dependency.GetName()).Errorf("Failed to start dependency '%s'", dependency.GetName())
		return err
	}
	m.statuses[dependency.GetName()] = StatusStarted
	return nil
}

func (m *Manager) Stop(ctx context.Context) error {
	deps := make([]Dependency, 0, len(m.dependencies))
	for _, dep := range m.dependencies {
		deps = append(deps, dep)
	}
	for i, j := 0, len(deps)-1; i < j; i, j = i+1, j-1 {
		deps[i], deps[j] = deps[j], deps[i]
	}

	for _, dependency := range deps {
		err := m.stopDependency(ctx, dependency)
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) stopDependency(ctx context.Context, dependency Dependency) error {
	m.logger.WithField("dependency", dependency.GetName()).Infof("Stopping dependency '%s'", dependency.GetName())
	if err := dependency.Stop(ctx); err != nil {
		m.logger.WithError(err).WithField("dependency", dependency.GetName()).Errorf("Failed to stop dependency '%s'", dependency.GetName())
		return err
	}

	m.logger.WithField("dependency", dependency.GetName()).Infof("Dependency '%s' stopped", dependency.GetName())
	m.statuses[dependency.GetName()] = StatusStopped

	for _, dependencyName := range dependency.DependsOn() {
		if m.statuses[dependencyName] != StatusStopped {
			err := m.stopDependency(ctx, m.dependencies[dependencyName])
			if err != nil {
				return err
			}
		}
	}
	return nil
}
