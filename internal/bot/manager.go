package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smmstore/commerce-bot/internal/domain"
)

type InstanceState string

const (
	StateStopped  InstanceState = "stopped"
	StateStarting InstanceState = "starting"
	StateRunning  InstanceState = "running"
	StateStopping InstanceState = "stopping"
)

var ErrNotRunning = errors.New("no bot instance for token")

// RunFunc is one bot instance's update loop. It blocks until ctx is
// cancelled or the loop fails.
type RunFunc func(ctx context.Context) error

// Factory builds the run loop for a token. It is injected so the manager
// can be exercised without the Telegram network.
type Factory func(token string, catalog domain.Catalog) (RunFunc, error)

type instance struct {
	state  InstanceState
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns one running bot instance per token. Starting an already
// running token replaces it: the old instance is fully stopped before the
// new one starts, so two pollers never share a token.
type Manager struct {
	mu        sync.Mutex
	factory   Factory
	logger    *slog.Logger
	instances map[string]*instance
}

func NewManager(factory Factory, logger *slog.Logger) *Manager {
	return &Manager{
		factory:   factory,
		logger:    logger,
		instances: make(map[string]*instance),
	}
}

func (m *Manager) Start(token string, catalog domain.Catalog) error {
	m.mu.Lock()
	if existing, ok := m.instances[token]; ok {
		m.stopLocked(token, existing)
	}

	inst := &instance{
		state: StateStarting,
		done:  make(chan struct{}),
	}
	m.instances[token] = inst
	m.mu.Unlock()

	run, err := m.factory(token, catalog)
	if err != nil {
		m.mu.Lock()
		// A replacing Start may have re-registered the token while the
		// factory ran; only remove our own registration.
		if m.instances[token] == inst {
			delete(m.instances, token)
		}
		m.mu.Unlock()
		// A Stop that raced the factory is parked on done.
		close(inst.done)
		return fmt.Errorf("build bot instance: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	// Stop may have raced the construction; respect it.
	if m.instances[token] != inst {
		m.mu.Unlock()
		cancel()
		close(inst.done)
		return nil
	}
	inst.cancel = cancel
	inst.state = StateRunning
	m.mu.Unlock()

	go func() {
		defer close(inst.done)
		if err := run(ctx); err != nil && ctx.Err() == nil {
			m.logger.Error("bot instance exited", "error", err)
		}

		m.mu.Lock()
		if m.instances[token] == inst {
			delete(m.instances, token)
		}
		m.mu.Unlock()
	}()

	m.logger.Info("bot instance started")
	return nil
}

func (m *Manager) Stop(token string) error {
	m.mu.Lock()
	inst, ok := m.instances[token]
	if !ok {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.stopLocked(token, inst)
	m.mu.Unlock()

	m.logger.Info("bot instance stopped")
	return nil
}

// stopLocked transitions the instance out of the registry and waits for its
// loop to drain. The lock is released while waiting so update handlers that
// need the manager cannot deadlock it.
func (m *Manager) stopLocked(token string, inst *instance) {
	inst.state = StateStopping
	delete(m.instances, token)
	if inst.cancel != nil {
		inst.cancel()
	}

	m.mu.Unlock()
	<-inst.done
	m.mu.Lock()
	inst.state = StateStopped
}

func (m *Manager) IsRunning(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[token]
	return ok && inst.state == StateRunning
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// StopAll shuts down every instance, used on process shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	tokens := make([]string, 0, len(m.instances))
	for token := range m.instances {
		tokens = append(tokens, token)
	}
	m.mu.Unlock()

	for _, token := range tokens {
		_ = m.Stop(token)
	}
}
