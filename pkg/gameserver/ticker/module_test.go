package ticker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicks(t *testing.T) {
	ticker := New(5 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C:
	case <-time.After(time.Second):
		t.Fatal("no tick received")
	}
}

func TestSlowReaderSeesOneTick(t *testing.T) {
	ticker := New(2 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	ticker.Stop()

	received := 0
	for {
		select {
		case <-ticker.C:
			received++
			continue
		default:
		}
		break
	}
	assert.LessOrEqual(t, received, 1)
}

func TestPauseAndResume(t *testing.T) {
	ticker := New(2 * time.Millisecond)
	defer ticker.Stop()

	ticker.Pause()
	require.True(t, ticker.Paused())

	// drain anything delivered before the pause took effect
	select {
	case <-ticker.C:
	default:
	}

	select {
	case <-ticker.C:
		t.Fatal("ticked while paused")
	case <-time.After(30 * time.Millisecond):
	}

	ticker.Resume()
	assert.False(t, ticker.Paused())
	select {
	case <-ticker.C:
	case <-time.After(time.Second):
		t.Fatal("no tick after resume")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	ticker := New(time.Millisecond)
	ticker.Stop()
	ticker.Stop()
	assert.True(t, ticker.Stopped())

	// pausing a stopped ticker is a no-op
	ticker.Pause()
	assert.False(t, ticker.Paused())
}
