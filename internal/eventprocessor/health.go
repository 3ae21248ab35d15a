// MediaTrack Notifier - Rating Notification Pipeline
// Copyright 2026 MediaTrack contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mediatrack/notifier

package eventprocessor

import (
	"context"
	"sync"
	"time"
)

// HealthStatusType represents the overall health status.
type HealthStatusType string

const (
	// HealthStatusHealthy indicates all components are functioning normally.
	HealthStatusHealthy HealthStatusType = "healthy"
	// HealthStatusDegraded indicates an optional component is failing or a
	// critical one reports itself degraded.
	HealthStatusDegraded HealthStatusType = "degraded"
	// HealthStatusUnhealthy indicates a critical component is failing.
	HealthStatusUnhealthy HealthStatusType = "unhealthy"
)

// HealthConfig holds configuration for health checking.
type HealthConfig struct {
	// Timeout bounds each component check.
	Timeout time.Duration
}

// DefaultHealthConfig returns sensible defaults for health checking.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{Timeout: 5 * time.Second}
}

// ComponentHealth represents the health status of a single component.
type ComponentHealth struct {
	Healthy   bool                   `json:"healthy"`
	Degraded  bool                   `json:"degraded,omitempty"`
	Name      string                 `json:"name"`
	Message   string                 `json:"message,omitempty"`
	Error     string                 `json:"error,omitempty"`
	LastCheck time.Time              `json:"last_check"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthCheckable is implemented by components that support health checking.
type HealthCheckable interface {
	HealthCheck(ctx context.Context) ComponentHealth
}

// HealthCheckFunc adapts a function to HealthCheckable.
type HealthCheckFunc func(ctx context.Context) ComponentHealth

// HealthCheck implements HealthCheckable.
func (f HealthCheckFunc) HealthCheck(ctx context.Context) ComponentHealth {
	return f(ctx)
}

// PingCheck builds a check from a ping function such as sql.DB.PingContext
// or a Redis PING.
func PingCheck(ping func(ctx context.Context) error) HealthCheckFunc {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Error: err.Error()}
		}
		return ComponentHealth{Healthy: true, Message: "ping ok"}
	}
}

// OverallHealth represents the aggregated health status of all components.
type OverallHealth struct {
	Healthy    bool                       `json:"healthy"`
	Status     HealthStatusType           `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

type registeredComponent struct {
	check    HealthCheckable
	critical bool
}

// HealthChecker aggregates the health of the broker, database, router and
// cache. A failing critical component makes the service unhealthy; a
// failing optional one only degrades it.
type HealthChecker struct {
	config     HealthConfig
	mu         sync.RWMutex
	components map[string]registeredComponent
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(cfg HealthConfig) *HealthChecker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHealthConfig().Timeout
	}
	return &HealthChecker{
		config:     cfg,
		components: make(map[string]registeredComponent),
	}
}

// RegisterComponent registers a critical component.
func (h *HealthChecker) RegisterComponent(name string, component HealthCheckable) {
	h.register(name, component, true)
}

// RegisterOptional registers a component whose failure only degrades the
// service, such as the unread counter cache.
func (h *HealthChecker) RegisterOptional(name string, component HealthCheckable) {
	h.register(name, component, false)
}

func (h *HealthChecker) register(name string, component HealthCheckable, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = registeredComponent{check: component, critical: critical}
}

// UnregisterComponent removes a component from health checking.
func (h *HealthChecker) UnregisterComponent(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.components, name)
}

// CheckAll runs every check concurrently.
func (h *HealthChecker) CheckAll(ctx context.Context) OverallHealth {
	h.mu.RLock()
	components := make(map[string]registeredComponent, len(h.components))
	for name, comp := range h.components {
		components[name] = comp
	}
	h.mu.RUnlock()

	overall := OverallHealth{
		Healthy:    true,
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth, len(components)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, comp := range components {
		wg.Add(1)
		go func(name string, comp registeredComponent) {
			defer wg.Done()
			result := h.check(ctx, name, comp.check)

			mu.Lock()
			defer mu.Unlock()
			overall.Components[name] = result
			switch {
			case !result.Healthy && comp.critical:
				overall.Healthy = false
				overall.Status = HealthStatusUnhealthy
			case (!result.Healthy || result.Degraded) && overall.Status == HealthStatusHealthy:
				overall.Status = HealthStatusDegraded
			}
		}(name, comp)
	}

	wg.Wait()
	return overall
}

// CheckComponent performs a health check on a specific component.
func (h *HealthChecker) CheckComponent(ctx context.Context, name string) ComponentHealth {
	h.mu.RLock()
	comp, exists := h.components[name]
	h.mu.RUnlock()

	if !exists {
		return ComponentHealth{
			Name:      name,
			Error:     "component not found",
			LastCheck: time.Now(),
		}
	}
	return h.check(ctx, name, comp.check)
}

// check runs one component check, giving up after the configured timeout.
func (h *HealthChecker) check(ctx context.Context, name string, comp HealthCheckable) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	resultCh := make(chan ComponentHealth, 1)
	go func() {
		resultCh <- comp.HealthCheck(checkCtx)
	}()

	var result ComponentHealth
	select {
	case result = <-resultCh:
	case <-checkCtx.Done():
		result = ComponentHealth{Error: "health check timeout"}
	}
	result.Name = name
	result.LastCheck = time.Now()
	return result
}
