package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/region23/salonbot/internal/reminder"
	"github.com/region23/salonbot/pkg/metrics"
)

// HealthStore операции хранилища, нужные health check
type HealthStore interface {
	Ping(ctx context.Context) error
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]string      `json:"checks"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// HealthChecker проверяет состояние системы
type HealthChecker struct {
	storage       HealthStore
	startTime     time.Time
	version       string
	sweepInterval time.Duration
	now           func() time.Time
}

// NewHealthChecker создает новый health checker
func NewHealthChecker(storage HealthStore, version string, sweepInterval time.Duration) *HealthChecker {
	return &HealthChecker{
		storage:       storage,
		startTime:     time.Now(),
		version:       version,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

// HealthHandler обрабатывает запросы health check
func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	overallStatus := "healthy"
	degrade := func(name, status string) {
		checks[name] = status
		if status != "healthy" && overallStatus == "healthy" {
			overallStatus = "warning"
		}
	}

	if err := h.checkDatabase(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
	} else {
		checks["database"] = "healthy"
		degrade("reminders", h.checkLastSweep(ctx))
	}

	degrade("memory", h.checkMemory())
	degrade("goroutines", h.checkGoroutines())

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: h.now().Format(time.RFC3339),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Checks:    checks,
		Metrics:   h.collectMetrics(),
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkDatabase проверяет соединение с базой данных
func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	if h.storage == nil {
		return nil
	}
	return h.storage.Ping(ctx)
}

// checkLastSweep проверяет, что прогоны напоминаний идут. Отставание больше
// трех интервалов считается предупреждением.
func (h *HealthChecker) checkLastSweep(ctx context.Context) string {
	if h.storage == nil || h.sweepInterval <= 0 {
		return "healthy"
	}

	value, ok, err := h.storage.GetSetting(ctx, reminder.LastSweepKey)
	if err != nil {
		return "warning: " + err.Error()
	}
	if !ok {
		if time.Since(h.startTime) > 3*h.sweepInterval {
			return "warning: no sweep recorded"
		}
		return "healthy"
	}

	last, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "warning: invalid last sweep time"
	}
	if age := h.now().Sub(last); age > 3*h.sweepInterval {
		return "warning: last sweep " + age.Truncate(time.Second).String() + " ago"
	}
	return "healthy"
}

// checkMemory проверяет использование памяти
func (h *HealthChecker) checkMemory() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics.MemoryUsage.Set(float64(m.Alloc))

	const warningLimit = 500 * 1024 * 1024   // 500MB
	const criticalLimit = 1024 * 1024 * 1024 // 1GB

	if m.Alloc > criticalLimit {
		return "critical: memory usage > 1GB"
	} else if m.Alloc > warningLimit {
		return "warning: memory usage > 500MB"
	}

	return "healthy"
}

// checkGoroutines проверяет количество горутин
func (h *HealthChecker) checkGoroutines() string {
	count := float64(runtime.NumGoroutine())

	metrics.GoroutinesCount.Set(count)

	const warningLimit = 100
	const criticalLimit = 1000

	if count > criticalLimit {
		return "critical: too many goroutines"
	} else if count > warningLimit {
		return "warning: high goroutine count"
	}

	return "healthy"
}

// collectMetrics собирает основные метрики для health check
func (h *HealthChecker) collectMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"memory": map[string]interface{}{
			"alloc_bytes": m.Alloc,
			"sys_bytes":   m.Sys,
			"num_gc":      m.NumGC,
		},
		"runtime": map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"version":    runtime.Version(),
		},
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}
}
