package memchan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golems/hubo-ach-sim/bridge"
)

func TestHandle_LatestFrameSemantics(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Create("ref", 4))
	w, err := tr.Open("ref")
	require.NoError(t, err)
	r, err := tr.Open("ref")
	require.NoError(t, err)

	buf := make([]byte, 8)
	_, err = r.Get(buf)
	assert.ErrorIs(t, err, bridge.ErrNoNewData, "never published")

	require.NoError(t, w.Put([]byte{1, 1, 1, 1}))
	require.NoError(t, w.Put([]byte{2, 2, 2, 2}))
	n, err := r.Get(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 2, 2, 2}, buf[:n])
	_, err = r.Get(buf)
	assert.ErrorIs(t, err, bridge.ErrNoNewData)

	// A handle opened later sees the existing frame once.
	late, err := tr.Open("ref")
	require.NoError(t, err)
	n, err = late.Get(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.ErrorIs(t, w.Put([]byte{1}), ErrFrameSize)
	require.NoError(t, w.Put([]byte{3, 3, 3, 3}))
	_, err = r.Get(buf[:2])
	assert.ErrorIs(t, err, ErrBufTooSmall)
}

func TestTransport_CreateOpenRemove(t *testing.T) {
	tr := New()
	_, err := tr.Open("missing")
	assert.ErrorIs(t, err, ErrNoChannel)
	assert.Error(t, tr.Create("bad", 0))

	require.NoError(t, tr.Create("state", 8))
	assert.ErrorIs(t, tr.Create("state", 8), ErrExists)

	h, err := tr.Open("state")
	require.NoError(t, err)
	assert.Equal(t, 1, tr.OpenHandles("state"))

	require.NoError(t, tr.Remove("state"))
	assert.ErrorIs(t, tr.Remove("state"), ErrNoChannel)
	assert.Equal(t, 0, tr.OpenHandles("state"))
	// The orphaned handle still works.
	assert.NoError(t, h.Put(make([]byte, 8)))
}

func TestHandle_Close(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Create("c", 1))
	h, err := tr.Open("c")
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.Equal(t, 0, tr.OpenHandles("c"))
	_, err = h.Get(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, h.Put([]byte{0}), ErrClosed)
}

func TestExclusive_FailedSessionLeaksNothing(t *testing.T) {
	// GIVEN only the reference channel exists
	tr := NewExclusive()
	require.NoError(t, tr.Create("hubo-ref", bridge.RefFrameSize))

	// WHEN a session open fails on the state channel
	_, err := bridge.OpenSession(tr, "hubo-ref", "hubo-state")
	var cu *bridge.ChannelUnavailableError
	require.ErrorAs(t, err, &cu)
	assert.Equal(t, "state", cu.Which)
	assert.ErrorIs(t, err, ErrNoChannel)

	// THEN the reference channel was released and a retry succeeds
	assert.Equal(t, 0, tr.OpenHandles("hubo-ref"))
	require.NoError(t, tr.Create("hubo-state", bridge.StateFrameSize))
	s, err := bridge.OpenSession(tr, "hubo-ref", "hubo-state")
	require.NoError(t, err)
	assert.Equal(t, 1, tr.OpenHandles("hubo-ref"))
	assert.Equal(t, 1, tr.OpenHandles("hubo-state"))

	_, err = tr.Open("hubo-ref")
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, s.Close())
	assert.Equal(t, 0, tr.OpenHandles("hubo-ref"))
}

func TestHandle_ConcurrentWriterReader(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Create("c", 8))
	w, _ := tr.Open("c")
	r, _ := tr.Open("c")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		frame := make([]byte, 8)
		for i := 0; i < 1000; i++ {
			for j := range frame {
				frame[j] = byte(i)
			}
			_ = w.Put(frame)
		}
	}()

	buf := make([]byte, 8)
	for i := 0; i < 1000; i++ {
		if n, err := r.Get(buf); err == nil {
			require.Equal(t, 8, n)
			for j := 1; j < n; j++ {
				require.Equal(t, buf[0], buf[j], "torn frame")
			}
		}
	}
	wg.Wait()
}
