package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name string
	err  error
}

func (s *stubChecker) Name() string                  { return s.name }
func (s *stubChecker) Check(ctx context.Context) error { return s.err }

type slowChecker struct{}

func (slowChecker) Name() string { return "slow" }
func (slowChecker) Check(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestAggregator_Check(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name     string
		critical []Checker
		optional []Checker
		want     Status
	}{
		{name: "no checkers", want: StatusHealthy},
		{
			name:     "all healthy",
			critical: []Checker{&stubChecker{name: "redis"}},
			optional: []Checker{&stubChecker{name: "database"}},
			want:     StatusHealthy,
		},
		{
			name:     "optional failing degrades",
			critical: []Checker{&stubChecker{name: "redis"}},
			optional: []Checker{&stubChecker{name: "database", err: boom}},
			want:     StatusDegraded,
		},
		{
			name:     "critical failing is unhealthy",
			critical: []Checker{&stubChecker{name: "redis", err: boom}},
			optional: []Checker{&stubChecker{name: "database", err: boom}},
			want:     StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(time.Second)
			for _, c := range tt.critical {
				agg.Register(c)
			}
			for _, c := range tt.optional {
				agg.RegisterOptional(c)
			}

			resp := agg.Check(context.Background())
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.critical)+len(tt.optional))
		})
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(50 * time.Millisecond)
	agg.Register(slowChecker{})
	agg.SetMetadata("version", "test")

	resp := agg.Check(context.Background())
	require.Contains(t, resp.Checks, "slow")
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.NotEmpty(t, resp.Checks["slow"].Error)
	assert.Equal(t, "test", resp.Metadata["version"])
	assert.False(t, resp.IsHealthy())
}
