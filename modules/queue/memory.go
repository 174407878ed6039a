package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue - 테스트/로컬용 인메모리 큐
type MemoryQueue struct {
	mu     sync.Mutex
	items  [][]byte
	dead   [][]byte
	closed bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := make([]byte, len(body))
	copy(item, body)
	q.items = append(q.items, item)
	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context) (*Message, error) {
	// 큐가 비어있으면 잠깐 대기 후 nil 반환 (busy loop 방지)
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return nil, nil
		}
	}

	item := q.items[0]
	q.items = q.items[1:]
	q.mu.Unlock()

	return &Message{Body: item}, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, msg *Message) error {
	return nil
}

func (q *MemoryQueue) Retry(ctx context.Context, body []byte, delay time.Duration) error {
	return enqueueAfter(q, body, delay)
}

func (q *MemoryQueue) DeadLetter(ctx context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := make([]byte, len(body))
	copy(item, body)
	q.dead = append(q.dead, item)
	return nil
}

// DeadLetters - DLQ 내용 조회 (테스트용)
func (q *MemoryQueue) DeadLetters() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([][]byte, len(q.dead))
	copy(out, q.dead)
	return out
}

// Len - 대기 중인 Job 개수 (테스트용)
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
