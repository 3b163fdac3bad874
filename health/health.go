// Package health aggregates dependency checks for the health endpoint.
package health

import (
	"context"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded" // an optional dependency is failing
	StatusUnhealthy Status = "unhealthy"
)

// Checker checks one dependency
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckResult is the outcome of one checker
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Critical  bool          `json:"critical"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Response is the aggregated report
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Checks    map[string]CheckResult `json:"checks"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}
