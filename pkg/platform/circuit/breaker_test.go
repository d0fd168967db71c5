package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestNewBreakerIsClosed(t *testing.T) {
	b := New("summary-publisher")
	assert.Equal(t, "summary-publisher", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestFailuresOpenAtThreshold(t *testing.T) {
	b := New("kafka", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		fallback, change := b.RecordFailure()
		assert.False(t, fallback)
		assert.False(t, change.Opened)
	}
	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	fallback, change = b.RecordFailure()
	assert.True(t, fallback, "still open")
	assert.False(t, change.Opened, "no second transition")
}

func TestSuccessClearsFailureRun(t *testing.T) {
	b := New("kafka", WithFailureThreshold(2))
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.False(t, b.IsOpen())
	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestConsecutiveSuccessesClose(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)

	b.RecordFailure()
	primary, _ = b.RecordSuccess()
	assert.False(t, primary, "a failure restarts the success run")

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestAllowAdmitsOneProbePerCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_800_000_000, 0)}
	b := New("kafka", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(clock.now))

	b.RecordFailure()
	assert.False(t, b.Allow())

	clock.advance(time.Minute)
	assert.True(t, b.Allow(), "probe after cooldown")
	assert.False(t, b.Allow(), "only one probe per window")

	b.RecordFailure()
	clock.advance(30 * time.Second)
	assert.False(t, b.Allow(), "failed probe restarts the cooldown")
	clock.advance(30 * time.Second)
	assert.True(t, b.Allow())

	b.RecordSuccess()
	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
}

func TestReset(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
