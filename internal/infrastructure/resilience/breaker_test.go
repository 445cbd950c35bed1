package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

func fail(b *Breaker) error {
	_, err := b.Execute(func() (interface{}, error) {
		return nil, errUpstream
	})
	return err
}

func succeed(b *Breaker) error {
	_, err := b.Execute(func() (interface{}, error) {
		return "ok", nil
	})
	return err
}

// The model-provider breaker trips after five consecutive failures. Four
// failures followed by a success must leave it closed.
func TestBreakerTripsOnConsecutiveFailuresOnly(t *testing.T) {
	b := New("model-provider", Settings{
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	for i := 0; i < 4; i++ {
		require.ErrorIs(t, fail(b), errUpstream)
	}
	require.NoError(t, succeed(b))
	assert.Equal(t, StateClosed, b.State())

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, fail(b), errUpstream)
	}
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerOpenRejectsWithoutCalling(t *testing.T) {
	b := New("model-provider", Settings{
		Timeout: time.Minute,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})

	_ = fail(b)
	_ = fail(b)
	require.Equal(t, StateOpen, b.State())

	called := false
	_, err := b.Execute(func() (interface{}, error) {
		called = true
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := New("tool-broker", Settings{
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})

	_ = fail(b)
	_ = fail(b)
	require.Equal(t, StateOpen, b.State())

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, succeed(b))
	require.NoError(t, succeed(b))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New("tool-broker", Settings{
		MaxRequests: 2,
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})

	_ = fail(b)
	_ = fail(b)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	_ = fail(b)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	b := New("model-provider", Settings{
		MaxRequests: 1,
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	})

	_ = fail(b)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := b.Execute(func() (interface{}, error) {
			<-release
			return "ok", nil
		})
		done <- err
	}()

	// Wait for the probe to be admitted, then a second call must be shed.
	require.Eventually(t, func() bool {
		return b.Counts().Requests == 1
	}, time.Second, 5*time.Millisecond)

	_, err := b.Execute(func() (interface{}, error) {
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrTooManyRequests)

	close(release)
	require.NoError(t, <-done)
}

func TestBreakerCountsTrackOutcomes(t *testing.T) {
	b := New("tool-broker", Settings{Interval: time.Minute, Timeout: time.Minute})

	require.NoError(t, succeed(b))
	counts := b.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)

	require.ErrorIs(t, fail(b), errUpstream)
	counts = b.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerFailureRateTrip(t *testing.T) {
	// The tool-broker style trip: high failure rate over enough traffic,
	// even without a long consecutive run.
	b := New("tool-broker", Settings{
		Interval: time.Minute,
		Timeout:  time.Minute,
		ReadyToTrip: func(counts Counts) bool {
			return counts.Requests >= 10 &&
				float64(counts.TotalFailures)/float64(counts.Requests) > 0.7
		},
	})

	for i := 0; i < 12; i++ {
		if i%4 == 0 {
			_ = succeed(b)
		} else {
			_ = fail(b)
		}
	}

	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []string

	b := New("model-provider", Settings{
		MaxRequests: 1,
		Timeout:     20 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
		OnStateChange: func(name string, from State, to State) {
			transitions = append(transitions, name+": "+from.String()+" -> "+to.String())
		},
	})

	_ = fail(b)
	_ = fail(b)
	time.Sleep(30 * time.Millisecond)
	_ = b.State()

	assert.Contains(t, transitions, "model-provider: closed -> open")
	assert.Contains(t, transitions, "model-provider: open -> half-open")
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b := New("model-provider", Settings{Interval: time.Minute, Timeout: time.Minute})

	assert.Panics(t, func() {
		_, _ = b.Execute(func() (interface{}, error) {
			panic("boom")
		})
	})

	counts := b.Counts()
	assert.Equal(t, uint32(1), counts.TotalFailures)
}
