package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var errBackend = errors.New("backend down")

func fail() error { return errBackend }
func ok() error   { return nil }

func TestBreaker_Lifecycle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	var transitions []string
	b := New("blob",
		WithFailureThreshold(2),
		WithSuccessThreshold(2),
		WithCooldown(time.Minute),
		WithClock(clock.now),
		WithStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	require.ErrorIs(t, b.Execute(fail, nil), errBackend)
	assert.Equal(t, StateClosed, b.State())
	require.ErrorIs(t, b.Execute(fail, nil), errBackend)
	assert.Equal(t, StateOpen, b.State())

	// rejected during cooldown
	require.ErrorIs(t, b.Execute(ok, nil), ErrOpen)

	clock.advance(time.Minute)
	require.NoError(t, b.Execute(ok, nil))
	assert.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Execute(ok, nil))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	b := New("blob", WithFailureThreshold(1), WithCooldown(time.Second), WithClock(clock.now))

	_ = b.Execute(fail, nil)
	clock.advance(time.Second)
	require.ErrorIs(t, b.Execute(fail, nil), errBackend)
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestBreaker_IgnoredErrorsCountAsSuccess(t *testing.T) {
	notFound := errors.New("no such object")
	b := New("blob", WithFailureThreshold(1))

	err := b.Execute(func() error { return notFound }, func(err error) bool { return errors.Is(err, notFound) })
	require.ErrorIs(t, err, notFound)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b := New("blob", WithFailureThreshold(2))
	_ = b.Execute(fail, nil)
	_ = b.Execute(ok, nil)
	_ = b.Execute(fail, nil)
	assert.Equal(t, StateClosed, b.State())

	b.Reset()
	assert.True(t, b.Allow())
}
