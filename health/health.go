package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Tutortoise/weapon-detection-service/logger"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the result of one checker.
type Check struct {
	Name      string                 `json:"-"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

type Report struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Services  map[string]Check `json:"services"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) Check
}

// Manager runs registered checkers and serves the aggregated report.
type Manager struct {
	logger    *logger.Logger
	checkers  []Checker
	startTime time.Time
	mu        sync.RWMutex
}

func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		logger:    log,
		startTime: time.Now(),
	}
}

func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Check runs every checker. The worst individual status wins.
func (m *Manager) Check(ctx context.Context) Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	services := make(map[string]Check, len(m.checkers))
	overall := StatusHealthy

	for _, checker := range m.checkers {
		check := checker.Check(ctx)
		services[checker.Name()] = check

		if check.Status == StatusUnhealthy {
			overall = StatusUnhealthy
		} else if check.Status == StatusDegraded && overall == StatusHealthy {
			overall = StatusDegraded
		}
	}

	return Report{
		Status:    overall,
		Timestamp: time.Now(),
		Uptime:    time.Since(m.startTime).Round(time.Second).String(),
		Services:  services,
	}
}

// ServeHTTP writes the report; unhealthy maps to 503.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := m.Check(r.Context())

	statusCode := http.StatusOK
	if report.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
		m.logger.Warn("Health check failed", "services", report.Services)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		m.logger.Error("Failed to encode health report", "error", err)
	}
}
