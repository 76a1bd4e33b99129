package queue

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"
)

func TestTrySendRecv(t *testing.T) {
	q := New[string](2)

	assert.Equal(t, q.TrySend("a"), Accepted)
	assert.Equal(t, q.TrySend("b"), Accepted)
	assert.Equal(t, q.TrySend("c"), Full)

	v, ok := q.Recv()
	assert.Check(t, ok)
	assert.Equal(t, v, "a")
}

func TestCloseDrainsPending(t *testing.T) {
	q := New[int](4)
	assert.Equal(t, q.TrySend(1), Accepted)
	assert.Equal(t, q.TrySend(2), Accepted)

	q.Close()

	v, ok := q.Recv()
	assert.Check(t, ok)
	assert.Equal(t, v, 1)

	v, ok = q.Recv()
	assert.Check(t, ok)
	assert.Equal(t, v, 2)

	_, ok = q.Recv()
	assert.Check(t, !ok, "expected no more values after drain")

	assert.Equal(t, q.TrySend(3), Closed)
}

func TestDoubleCloseIsSafe(t *testing.T) {
	q := New[int](1)
	q.Close()
	q.Close()
}

func TestSendBlocksUntilSpace(t *testing.T) {
	q := New[int](1)
	ctx := context.Background()

	assert.NilError(t, q.Send(ctx, 1))

	done := make(chan error, 1)
	go func() {
		done <- q.Send(ctx, 2)
	}()

	v, ok := q.Recv()
	assert.Check(t, ok)
	assert.Equal(t, v, 1)

	assert.NilError(t, <-done)
}

func TestSendRespectsContextCancellation(t *testing.T) {
	q := New[int](1)
	assert.NilError(t, q.Send(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Send(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendAfterCloseReturnsErrClosed(t *testing.T) {
	q := New[int](1)
	q.Close()
	err := q.Send(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}
