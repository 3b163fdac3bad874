package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDial = errors.New("dial tcp: connection refused")

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errDial
		}
		return nil
	}, Attempts(5), WithBackoff(Constant(time.Millisecond)), OnRetry(func(attempt int, err error) {
		retried = append(retried, attempt)
		assert.ErrorIs(t, err, errDial)
	}))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errDial
	}, Attempts(3), WithBackoff(Constant(time.Millisecond)))

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, errDial)

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 3, rerr.Attempts())
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	errBadConfig := errors.New("unsupported driver")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errBadConfig)
	}, WithBackoff(Constant(time.Millisecond)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, errBadConfig, err)
	assert.NoError(t, Permanent(nil))
}

func TestDo_ContextCanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Do(ctx, func(context.Context) error { return errDial },
		Attempts(10), WithBackoff(Constant(time.Hour)))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, errDial)
}

func TestError_MatchesEveryAttempt(t *testing.T) {
	errTimeout := errors.New("i/o timeout")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errDial
		}
		return errTimeout
	}, Attempts(2), WithBackoff(Constant(time.Millisecond)))

	assert.ErrorIs(t, err, errDial)
	assert.ErrorIs(t, err, errTimeout)

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, errTimeout, rerr.Last())
	assert.Nil(t, (&Error{}).Last())
}

func TestDoWithData_ReturnsValue(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errDial
		}
		return "PONG", nil
	}, WithBackoff(Constant(0)))

	require.NoError(t, err)
	assert.Equal(t, "PONG", v)
}

func TestExponential(t *testing.T) {
	b := Exponential(100*time.Millisecond, time.Second, 0)
	assert.Equal(t, 100*time.Millisecond, b.Next(1))
	assert.Equal(t, 200*time.Millisecond, b.Next(2))
	assert.Equal(t, 800*time.Millisecond, b.Next(4))
	assert.Equal(t, time.Second, b.Next(10))
	assert.Equal(t, 100*time.Millisecond, b.Next(0))

	jittered := Exponential(time.Second, 0, 0.2)
	for i := 0; i < 50; i++ {
		d := jittered.Next(1)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}
