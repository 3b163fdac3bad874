package health

import (
	"context"
	"sync"
	"time"
)

type registered struct {
	checker  Checker
	critical bool
}

// Aggregator runs all registered checkers concurrently under one timeout
type Aggregator struct {
	checkers []registered
	timeout  time.Duration
	mu       sync.RWMutex
	metadata map[string]interface{}
}

func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Aggregator{
		timeout:  timeout,
		metadata: make(map[string]interface{}),
	}
}

// Register adds a critical checker; its failure makes the service unhealthy
func (a *Aggregator) Register(checker Checker) {
	a.add(checker, true)
}

// RegisterOptional adds a checker whose failure only degrades the service
func (a *Aggregator) RegisterOptional(checker Checker) {
	a.add(checker, false)
}

func (a *Aggregator) add(checker Checker, critical bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers = append(a.checkers, registered{checker: checker, critical: critical})
}

func (a *Aggregator) SetMetadata(key string, value interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metadata[key] = value
}

func (a *Aggregator) Check(ctx context.Context) *Response {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.mu.RLock()
	checkers := make([]registered, len(a.checkers))
	copy(checkers, a.checkers)
	metadata := make(map[string]interface{}, len(a.metadata))
	for k, v := range a.metadata {
		metadata[k] = v
	}
	a.mu.RUnlock()

	results := make(chan CheckResult, len(checkers))
	for _, r := range checkers {
		go func(r registered) {
			results <- checkOne(checkCtx, r)
		}(r)
	}

	checks := make(map[string]CheckResult, len(checkers))
	for range checkers {
		result := <-results
		checks[result.Name] = result
	}

	return &Response{
		Status:    overallStatus(checks),
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Checks:    checks,
		Metadata:  metadata,
	}
}

func checkOne(ctx context.Context, r registered) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      r.checker.Name(),
		Critical:  r.critical,
		Timestamp: start,
		Status:    StatusHealthy,
	}

	if err := r.checker.Check(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
	}
	result.Duration = time.Since(start)
	return result
}

func overallStatus(checks map[string]CheckResult) Status {
	status := StatusHealthy
	for _, result := range checks {
		if result.Status != StatusUnhealthy {
			continue
		}
		if result.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}
