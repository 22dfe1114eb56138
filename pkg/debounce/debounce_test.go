package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commits struct {
	mu     sync.Mutex
	values []string
}

func (c *commits) add(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
}

func (c *commits) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.values...)
}

const quiet = 30 * time.Millisecond

func TestOnlyLastUpdateIsCommitted(t *testing.T) {
	t.Parallel()

	var c commits
	d := New(quiet, c.add)

	d.Update("open")
	d.Update("open set")
	d.Update("open settings")
	assert.True(t, d.Pending())
	assert.Equal(t, "open settings", d.Transcript())

	require.Eventually(t, func() bool { return len(c.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"open settings"}, c.get())
	assert.False(t, d.Pending())

	// No second commit for the same quiet period.
	time.Sleep(3 * quiet)
	assert.Len(t, c.get(), 1)
}

func TestUpdatesRestartTheTimer(t *testing.T) {
	t.Parallel()

	var c commits
	d := New(150*time.Millisecond, c.add)

	for _, v := range []string{"a", "ab", "abc", "abcd", "abcde"} {
		d.Update(v)
		time.Sleep(20 * time.Millisecond)
	}
	assert.Empty(t, c.get(), "updates arrive faster than the quiet period")

	require.Eventually(t, func() bool { return len(c.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"abcde"}, c.get())
}

func TestCancel(t *testing.T) {
	t.Parallel()

	var c commits
	d := New(quiet, c.add)

	d.Update("open settings")
	d.Cancel()
	assert.False(t, d.Pending())
	assert.Empty(t, d.Transcript())

	time.Sleep(3 * quiet)
	assert.Empty(t, c.get())
}

func TestTake(t *testing.T) {
	t.Parallel()

	var c commits
	d := New(30*time.Millisecond, c.add)

	_, ok := d.Take()
	assert.False(t, ok)

	d.Update("open menu")
	transcript, ok := d.Take()
	assert.True(t, ok)
	assert.Equal(t, "open menu", transcript)
	assert.False(t, d.Pending())

	_, ok = d.Take()
	assert.False(t, ok)

	// The taken transcript is never committed by the timer.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, c.get())
}

func TestNewUpdateWhileCommitIsRunning(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan string, 2)
	d := New(quiet, func(transcript string) {
		started <- transcript
		if transcript == "first" {
			<-release
		}
	})

	d.Update("first")
	assert.Equal(t, "first", <-started)

	// The consumer is still busy, yet a new update arms a new timer.
	d.Update("second")
	assert.True(t, d.Pending())
	select {
	case got := <-started:
		assert.Equal(t, "second", got)
	case <-time.After(time.Second):
		t.Fatal("second commit did not fire while the first was running")
	}
	close(release)
}

func TestDefaultQuietPeriod(t *testing.T) {
	t.Parallel()

	d := New(0, func(string) {})
	assert.Equal(t, DefaultQuietPeriod, d.quiet)
}
