package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcome struct {
	fail          bool
	wantFallback  bool
	wantOpened    bool
	wantClosed    bool
	wantStateOpen bool
}

func replay(t *testing.T, b *Breaker, steps []outcome) {
	t.Helper()
	for i, step := range steps {
		if step.fail {
			useFallback, change := b.RecordFailure()
			assert.Equal(t, step.wantFallback, useFallback, "step %d fallback", i)
			assert.Equal(t, step.wantOpened, change.Opened, "step %d opened", i)
		} else {
			usePrimary, change := b.RecordSuccess()
			assert.Equal(t, !step.wantFallback, usePrimary, "step %d primary", i)
			assert.Equal(t, step.wantClosed, change.Closed, "step %d closed", i)
		}
		assert.Equal(t, step.wantStateOpen, b.IsOpen(), "step %d state", i)
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := New("resend")
	assert.Equal(t, "resend", b.Name())
	assert.Equal(t, StateClosed, b.State())

	for i := 0; i < 4; i++ {
		useFallback, _ := b.RecordFailure()
		require.False(t, useFallback)
	}
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerTransitions(t *testing.T) {
	tests := map[string]struct {
		opts  []Option
		steps []outcome
	}{
		"opens at the failure threshold": {
			opts: []Option{WithFailureThreshold(2)},
			steps: []outcome{
				{fail: true},
				{fail: true, wantFallback: true, wantOpened: true, wantStateOpen: true},
				{fail: true, wantFallback: true, wantStateOpen: true},
			},
		},
		"a success clears the failure streak": {
			opts: []Option{WithFailureThreshold(2)},
			steps: []outcome{
				{fail: true},
				{},
				{fail: true},
				{fail: true, wantFallback: true, wantOpened: true, wantStateOpen: true},
			},
		},
		"closes after the success threshold": {
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []outcome{
				{fail: true, wantFallback: true, wantOpened: true, wantStateOpen: true},
				{wantFallback: true, wantStateOpen: true},
				{wantClosed: true},
			},
		},
		"a failure while open restarts recovery": {
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []outcome{
				{fail: true, wantFallback: true, wantOpened: true, wantStateOpen: true},
				{wantFallback: true, wantStateOpen: true},
				{fail: true, wantFallback: true, wantStateOpen: true},
				{wantFallback: true, wantStateOpen: true},
				{wantClosed: true},
			},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			replay(t, New(name, tc.opts...), tc.steps)
		})
	}
}

func TestBreakerIgnoresNonPositiveThresholds(t *testing.T) {
	b := New("guarded", WithFailureThreshold(0), WithSuccessThreshold(-1), WithFailureThreshold(1))
	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)

	b2 := New("defaults", WithFailureThreshold(0))
	for i := 0; i < 4; i++ {
		b2.RecordFailure()
	}
	assert.False(t, b2.IsOpen())
}

func TestBreakerReset(t *testing.T) {
	b := New("resend", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	useFallback, _ := b.RecordFailure()
	assert.True(t, useFallback, "threshold of one reopens on the next failure")
}

func TestBreakerConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("resend", WithFailureThreshold(10))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	assert.True(t, b.IsOpen())
}
