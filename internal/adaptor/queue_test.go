package adaptor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()
	var order []int
	for i := range 3 {
		require.True(t, q.post(func() { order = append(order, i) }))
	}

	select {
	case <-q.ready():
	default:
		t.Fatal("queue not signalled")
	}
	runAll(q.drain())
	require.Equal(t, []int{0, 1, 2}, order)
	require.Empty(t, q.drain())
}

func TestTaskQueue_Close(t *testing.T) {
	q := newTaskQueue()
	require.True(t, q.post(func() {}))
	q.close()
	q.close()

	require.False(t, q.post(func() {}))
	require.Len(t, q.drain(), 1)
	select {
	case <-q.closedCh():
	default:
		t.Fatal("closedCh not closed")
	}
}

func TestSessionError(t *testing.T) {
	err := NewStreamError("publish", "s1", ErrSessionClosed)
	require.Equal(t, "publish s1: session closed", err.Error())
	require.ErrorIs(t, err, ErrSessionClosed)
	require.Equal(t, "capture: session closed", NewError("capture", ErrSessionClosed).Error())
}
