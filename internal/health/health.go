// Package health runs component checks for the pipeline's backing services
// and folds them into one overall status.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the health of a component or of the whole service.
type State string

const (
	StateHealthy   State = "healthy"
	StateWarning   State = "warning"
	StateUnhealthy State = "unhealthy"
)

// DefaultTimeout bounds a full check run.
const DefaultTimeout = 5 * time.Second

// ComponentHealth is the outcome of one check.
type ComponentHealth struct {
	Name     string        `json:"name"`
	Status   State         `json:"status"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Report is the result of running every registered check.
type Report struct {
	Overall    State                      `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

// Check reports the health of one component.
type Check interface {
	Name() string
	Check(ctx context.Context) ComponentHealth
}

// Checker runs registered checks in parallel.
type Checker struct {
	checks  []Check
	timeout time.Duration
	logger  *logrus.Logger
	mu      sync.RWMutex
}

// NewChecker creates a checker. A non-positive timeout uses DefaultTimeout.
func NewChecker(timeout time.Duration, logger *logrus.Logger) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Checker{timeout: timeout, logger: logger}
}

// Register adds a check.
func (h *Checker) Register(check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// Run executes all checks and aggregates them. Any unhealthy component makes
// the service unhealthy; otherwise any warning makes it a warning.
func (h *Checker) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := append([]Check(nil), h.checks...)
	h.mu.RUnlock()

	results := make(chan ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()
			results <- c.Check(ctx)
		}(check)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	report := Report{
		Overall:    StateHealthy,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]ComponentHealth, len(checks)),
	}
	var failing []string
	for result := range results {
		report.Components[result.Name] = result
		switch result.Status {
		case StateUnhealthy:
			report.Overall = StateUnhealthy
			failing = append(failing, result.Name)
		case StateWarning:
			if report.Overall == StateHealthy {
				report.Overall = StateWarning
			}
			failing = append(failing, result.Name)
		}
	}

	if report.Overall != StateHealthy {
		h.logger.WithFields(logrus.Fields{
			"overall_status": report.Overall,
			"components":     failing,
		}).Warn("Health check completed with issues")
	}
	return report
}

// PingCheck reports a component by calling its ping function. A failing
// critical component is unhealthy; a failing optional one is a warning.
type PingCheck struct {
	name     string
	ping     func(ctx context.Context) error
	critical bool
}

// NewPingCheck creates a ping-based check.
func NewPingCheck(name string, critical bool, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping, critical: critical}
}

// Name returns the component name.
func (p *PingCheck) Name() string {
	return p.name
}

// Check pings the component.
func (p *PingCheck) Check(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := p.ping(ctx)
	result := ComponentHealth{
		Name:     p.name,
		Status:   StateHealthy,
		Message:  p.name + " reachable",
		Duration: time.Since(start),
	}
	if err != nil {
		result.Status = StateWarning
		if p.critical {
			result.Status = StateUnhealthy
		}
		result.Message = p.name + " unreachable"
		result.Error = err.Error()
	}
	return result
}

// StaticCheck reports a fixed state, for configuration conditions such as a
// missing API key.
type StaticCheck struct {
	name    string
	state   State
	message string
}

// NewStaticCheck creates a check that always returns state.
func NewStaticCheck(name string, state State, message string) *StaticCheck {
	return &StaticCheck{name: name, state: state, message: message}
}

// Name returns the component name.
func (s *StaticCheck) Name() string {
	return s.name
}

// Check returns the configured state.
func (s *StaticCheck) Check(context.Context) ComponentHealth {
	return ComponentHealth{Name: s.name, Status: s.state, Message: s.message}
}
