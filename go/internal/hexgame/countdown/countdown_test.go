package countdown

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemaining(t *testing.T) {
	deadline := time.UnixMilli(1_700_000_010_000)

	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{"ten seconds out", deadline.Add(-10 * time.Second), 10},
		{"rounds down", deadline.Add(-2999 * time.Millisecond), 2},
		{"one second before", deadline.Add(-time.Second), 1},
		{"just under a second", deadline.Add(-999 * time.Millisecond), 0},
		{"at deadline", deadline, 0},
		{"past deadline", deadline.Add(5 * time.Second), 0},
		{"long past deadline", deadline.Add(time.Hour), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Remaining(deadline, tc.now))
		})
	}
}

func TestSecondsUsesLatestDeadline(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	c := New(clock, time.Second)

	c.SetDeadline(clock.Now().Add(5 * time.Second))
	assert.Equal(t, 5, c.Seconds())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 3, c.Seconds())

	c.SetDeadline(clock.Now().Add(30 * time.Second))
	assert.Equal(t, 30, c.Seconds())
}

func TestRestartKeepsSingleTicker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(clock, time.Second)
	assert.Nil(t, c.C())

	c.Restart()
	first := c.C()
	c.Restart()
	second := c.C()
	require.NotNil(t, second)

	clock.Advance(time.Second)

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("restarted ticker did not fire")
	}
	select {
	case <-first:
		t.Fatal("cancelled ticker fired")
	default:
	}
}

func TestStopIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(clock, time.Second)
	c.Restart()
	c.Stop()
	c.Stop()
	assert.Nil(t, c.C())
}

func TestNewDefaults(t *testing.T) {
	c := New(nil, 0)
	assert.Equal(t, DefaultInterval, c.interval)
	assert.NotNil(t, c.clock)
}
