package reload

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatcherReloadsOnChangeAndNotifies(t *testing.T) {
	var modTime atomic.Int64
	modTime.Store(1)
	var loadCount, notifyCount int32

	check := func() (time.Time, error) {
		return time.UnixMilli(modTime.Load()), nil
	}
	load := func() error {
		atomic.AddInt32(&loadCount, 1)
		return nil
	}
	observer := func() { atomic.AddInt32(&notifyCount, 1) }

	w := New("test", check, load, observer, nil)
	w.Start(5 * time.Millisecond)
	defer w.Stop()

	modTime.Store(2)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&loadCount) >= 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&notifyCount) >= 1 }, time.Second, time.Millisecond)
}

func TestWatcherRetainsOnLoadFailure(t *testing.T) {
	var modTime atomic.Int64
	modTime.Store(1)
	var notifyCount int32

	check := func() (time.Time, error) { return time.UnixMilli(modTime.Load()), nil }
	load := func() error { return errors.New("boom") }
	observer := func() { atomic.AddInt32(&notifyCount, 1) }

	w := New("test", check, load, observer, nil)
	w.Start(5 * time.Millisecond)
	defer w.Stop()

	modTime.Store(2)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&notifyCount))
}

func TestStartStopIdempotent(t *testing.T) {
	check := func() (time.Time, error) { return time.Now(), nil }
	load := func() error { return nil }
	w := New("test", check, load, nil, nil)

	w.Start(time.Second)
	w.Start(time.Second) // no-op, must not panic or double-start
	w.Stop()
	w.Stop() // no-op
}
