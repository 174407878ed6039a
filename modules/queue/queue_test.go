package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDoubling(t *testing.T) {
	base := 2 * time.Second

	assert.Equal(t, 2*time.Second, Backoff(base, 1))
	assert.Equal(t, 4*time.Second, Backoff(base, 2))
	assert.Equal(t, 8*time.Second, Backoff(base, 3))
}

func TestBackoffCapped(t *testing.T) {
	assert.Equal(t, 60*time.Second, Backoff(2*time.Second, 10))
}

func TestBackoffClampsAttempt(t *testing.T) {
	assert.Equal(t, 2*time.Second, Backoff(2*time.Second, 0))
	assert.Equal(t, 2*time.Second, Backoff(2*time.Second, -3))
}

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, []byte("first")))
	require.NoError(t, q.Enqueue(ctx, []byte("second")))
	assert.Equal(t, 2, q.Len())

	msg, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "first", string(msg.Body))
	require.NoError(t, q.Ack(ctx, msg))

	msg, err = q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "second", string(msg.Body))
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueueEmptyReturnsNil(t *testing.T) {
	q := NewMemoryQueue()

	msg, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestMemoryQueueDeadLetter(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.DeadLetter(ctx, []byte("poison")))

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "poison", string(dead[0]))
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueueCopiesBody(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	body := []byte("payload")
	require.NoError(t, q.Enqueue(ctx, body))
	body[0] = 'X'

	msg, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(msg.Body))
}
