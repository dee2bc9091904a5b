package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	b := New("auth-backend")

	assert.Equal(t, "auth-backend", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())

	for range 4 {
		open, _ := b.RecordFailure()
		require.False(t, open)
	}
	open, change := b.RecordFailure()
	assert.True(t, open)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())
}

func TestNew_IgnoresNonPositiveThresholds(t *testing.T) {
	b := New("auth-backend", WithFailureThreshold(0), WithSuccessThreshold(-1))

	assert.Equal(t, 5, b.failureThreshold)
	assert.Equal(t, 3, b.successThreshold)
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b := New("auth-backend", WithFailureThreshold(2))

	b.RecordFailure()
	closed, change := b.RecordSuccess()
	assert.True(t, closed)
	assert.Equal(t, StateChange{}, change)

	open, _ := b.RecordFailure()
	assert.False(t, open, "streak restarted after the success")
}

func TestBreaker_ProbesCloseAfterSuccessThreshold(t *testing.T) {
	b := New("auth-backend", WithFailureThreshold(1), WithSuccessThreshold(2))
	_, change := b.RecordFailure()
	require.True(t, change.Opened)

	closed, change := b.RecordSuccess()
	assert.False(t, closed)
	assert.False(t, change.Closed)

	open, change := b.RecordFailure()
	assert.True(t, open, "a failed probe keeps the circuit open")
	assert.False(t, change.Opened, "already open")

	b.RecordSuccess()
	closed, change = b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("auth-backend", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()

	assert.False(t, b.IsOpen())
	open, _ := b.RecordFailure()
	assert.True(t, open, "counters start from zero after reset")
}

func TestBreaker_ConcurrentRecords(t *testing.T) {
	b := New("auth-backend", WithFailureThreshold(50))
	var wg sync.WaitGroup
	opened := make(chan struct{}, 100)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				opened <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(opened)

	assert.Len(t, opened, 1, "exactly one caller observes the transition")
	assert.True(t, b.IsOpen())
}
