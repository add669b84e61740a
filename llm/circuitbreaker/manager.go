package circuitbreaker

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager owns one CircuitBreaker per (vendor, model) key, created lazily
// on first use and retained for the process lifetime.
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	logger   *zap.Logger
	breakers map[string]CircuitBreaker
}

// NewManager creates a Manager. Every breaker it creates shares config;
// pass nil to fall back to DefaultConfig for each.
func NewManager(config *Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config:   config,
		logger:   logger,
		breakers: make(map[string]CircuitBreaker),
	}
}

// Key formats the (vendor, model) pair used to index breakers.
func Key(vendor, model string) string {
	return fmt.Sprintf("%s:%s", vendor, model)
}

// Get returns the breaker for (vendor, model), creating it on first use.
func (m *Manager) Get(vendor, model string) CircuitBreaker {
	key := Key(vendor, model)

	m.mu.RLock()
	b, ok := m.breakers[key]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[key]; ok {
		return b
	}

	cfg := m.config
	if cfg != nil {
		cp := *cfg
		onChange := cfg.OnStateChange
		cp.OnStateChange = func(from, to State) {
			if onChange != nil {
				onChange(from, to)
			}
			observeProviderHealthCheck(key, to != StateOpen, 0, nil)
		}
		cfg = &cp
	}

	b = NewCircuitBreaker(cfg, m.logger.With(zap.String("vendor", vendor), zap.String("model", model)))
	m.breakers[key] = b
	return b
}

// State reports the current state for (vendor, model) without creating a
// breaker that doesn't already exist.
func (m *Manager) State(vendor, model string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.breakers[Key(vendor, model)]
	if !ok {
		return StateClosed, false
	}
	return b.State(), true
}
