package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(_ context.Context) error { return errBoom }
func pass(_ context.Context) error { return nil }

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("sync", DefaultCircuitBreakerConfig())

	calls := 0
	err := cb.Execute(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, "sync", cb.Name())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("search", CircuitBreakerConfig{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	assert.Equal(t, CircuitClosed, cb.State())

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.LastError(), errBoom)

	err := cb.Execute(context.Background(), func(_ context.Context) error {
		t.Error("must not run while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "search")
}

func TestCircuitBreaker_DefaultOpensOnFirstFailure(t *testing.T) {
	cb := NewCircuitBreaker("sync", CircuitBreakerConfig{})
	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), pass)
	_ = cb.Execute(context.Background(), fail)

	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.LastError())
}

func TestCircuitBreaker_LastErrorOnlyWhenOpened(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	opening := errors.New("connection refused")

	_ = cb.Execute(context.Background(), fail)
	assert.NoError(t, cb.LastError(), "a failure below the threshold is not recorded")

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return opening })
	require.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.LastError(), opening)

	cb.Reset()
	assert.NoError(t, cb.LastError())
}

func TestCircuitBreaker_HalfOpenAllowsOneProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), fail)
	cb.nowFunc = func() time.Time { return now.Add(time.Minute) }

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(_ context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var wg sync.WaitGroup
	rejected := make([]error, 8)
	for i := range rejected {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rejected[i] = cb.Execute(context.Background(), func(_ context.Context) error {
				t.Error("only one probe may run while half-open")
				return nil
			})
		}(i)
	}
	wg.Wait()
	for _, err := range rejected {
		assert.ErrorIs(t, err, ErrCircuitOpen)
	}

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, CircuitClosed, cb.State())
	require.NoError(t, cb.Execute(context.Background(), pass))
}

func TestCircuitBreaker_HalfOpenProbeSlotFreedAfterIgnoredError(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), fail)
	cb.nowFunc = func() time.Time { return now.Add(time.Minute) }

	err := cb.Execute(context.Background(), func(_ context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), pass))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: 5 * time.Minute})
	cb.nowFunc = func() time.Time { return now }

	_ = cb.Execute(context.Background(), fail)
	require.Equal(t, CircuitOpen, cb.State())

	cb.nowFunc = func() time.Time { return now.Add(4 * time.Minute) }
	assert.Equal(t, CircuitOpen, cb.State())

	cb.nowFunc = func() time.Time { return now.Add(5 * time.Minute) }
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), pass))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 3, Cooldown: time.Minute})
	cb.nowFunc = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	later := now.Add(2 * time.Minute)
	cb.nowFunc = func() time.Time { return later }

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), pass)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return context.Canceled })
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	type change struct{ from, to CircuitState }
	var changes []change
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		OnStateChange: func(name string, from, to CircuitState) {
			assert.Equal(t, "x", name)
			changes = append(changes, change{from, to})
		},
	})

	_ = cb.Execute(context.Background(), fail)
	cb.Reset()

	assert.Equal(t, []change{
		{CircuitClosed, CircuitOpen},
		{CircuitOpen, CircuitClosed},
	}, changes)
}

func TestExecuteVal(t *testing.T) {
	cb := NewCircuitBreaker("x", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})

	v, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) { return 9, errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, v)

	_, err = ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestServiceBreakers(t *testing.T) {
	sb := NewServiceBreakers(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})

	a := sb.Get("directory.search")
	assert.Same(t, a, sb.Get("directory.search"))

	_ = a.Execute(context.Background(), fail)
	sb.Get("directory.sync")

	states := sb.States()
	assert.Equal(t, CircuitOpen, states["directory.search"])
	assert.Equal(t, CircuitClosed, states["directory.sync"])
}

func TestServiceBreakers_Add(t *testing.T) {
	sb := NewServiceBreakers(DefaultCircuitBreakerConfig())
	cb := sb.Add("directory.search", CircuitBreakerConfig{FailureThreshold: 3, Cooldown: time.Minute})
	assert.Same(t, cb, sb.Get("directory.search"))

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestServiceBreakers_ConcurrentGet(t *testing.T) {
	sb := NewServiceBreakers(DefaultCircuitBreakerConfig())
	var wg sync.WaitGroup
	got := make([]*CircuitBreaker, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = sb.Get("same")
		}(i)
	}
	wg.Wait()
	for _, cb := range got {
		assert.Same(t, got[0], cb)
	}
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}

func TestFromCircuitConfig(t *testing.T) {
	cfg := FromCircuitConfig(3, 60)
	assert.Equal(t, 3, cfg.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.Cooldown)
	assert.NotNil(t, cfg.OnStateChange)

	assert.Equal(t, 1, cfg.HalfOpenMaxProbes)

	def := FromCircuitConfig(0, 0)
	assert.Equal(t, 1, def.FailureThreshold)
	assert.Equal(t, 5*time.Minute, def.Cooldown)
}
