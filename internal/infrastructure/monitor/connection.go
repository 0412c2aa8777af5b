package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

// Check is a named probe with its own deadline.
type Check struct {
	Name    string
	Probe   Probe
	Timeout time.Duration
	// Critical checks decide IsOnline.
	Critical bool
}

type Component struct {
	Online  bool          `json:"online"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency_ns"`
}

type Status struct {
	Components map[string]Component `json:"components"`
	LastCheck  time.Time            `json:"last_check"`
}

type Monitor struct {
	checks []Check

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger, checks ...Check) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for i := range checks {
		if checks[i].Timeout <= 0 {
			checks[i].Timeout = 3 * time.Second
		}
	}
	return &Monitor{
		checks:   checks,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Start runs one synchronous check so /health is meaningful immediately.
func (m *Monitor) Start() {
	m.Refresh()
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline is true when every critical check passed on the last round.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status.LastCheck.IsZero() {
		return false
	}
	for _, c := range m.checks {
		if c.Critical && !m.status.Components[c.Name].Online {
			return false
		}
	}
	return true
}

// GetStatus returns a copy of the last round.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := Status{Components: make(map[string]Component, len(m.status.Components)), LastCheck: m.status.LastCheck}
	for name, c := range m.status.Components {
		out.Components[name] = c
	}
	return out
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Refresh()
		case <-m.stopCh:
			return
		}
	}
}

// Refresh runs every check once.
func (m *Monitor) Refresh() {
	status := Status{Components: make(map[string]Component, len(m.checks))}
	for _, c := range m.checks {
		status.Components[c.Name] = m.run(c)
	}
	status.LastCheck = time.Now()

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Monitor) run(c Check) Component {
	if c.Probe == nil {
		return Component{Error: "not configured"}
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	started := time.Now()
	err := c.Probe(ctx)
	result := Component{Online: err == nil, Latency: time.Since(started)}
	if err != nil {
		result.Error = err.Error()
		m.logger.Warn("dependency check failed", zap.String("component", c.Name), zap.Error(err))
	}
	return result
}
