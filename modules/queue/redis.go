package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	redisQueueKey = "jobs:queue"
	redisDeadKey  = "jobs:dead"
)

// RedisQueue - Redis 리스트 기반 큐 (LPUSH / BRPOP)
type RedisQueue struct {
	rdb *goredis.Client
}

func NewRedisQueue(rdb *goredis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) Enqueue(ctx context.Context, body []byte) error {
	if err := q.rdb.LPush(ctx, redisQueueKey, body).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context) (*Message, error) {
	// BRPOP 5초 타임아웃 - 큐가 비어있으면 nil 반환
	result, err := q.rdb.BRPop(ctx, 5*time.Second, redisQueueKey).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to receive job: %w", err)
	}

	// BRPOP 결과: [key, value]
	if len(result) < 2 {
		return nil, nil
	}

	return &Message{Body: []byte(result[1])}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, msg *Message) error {
	// BRPOP이 이미 큐에서 제거했으므로 별도 작업 없음
	return nil
}

func (q *RedisQueue) Retry(ctx context.Context, body []byte, delay time.Duration) error {
	return enqueueAfter(q, body, delay)
}

func (q *RedisQueue) DeadLetter(ctx context.Context, body []byte) error {
	if err := q.rdb.LPush(ctx, redisDeadKey, body).Err(); err != nil {
		return fmt.Errorf("failed to move job to dead letter list: %w", err)
	}
	log.Printf("💀 [Queue] Job moved to %s", redisDeadKey)
	return nil
}

func (q *RedisQueue) Close() error {
	return nil
}
