package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"cooly-gen-server/modules/common/config"
)

// Message - Queue에서 수신한 메시지
type Message struct {
	Body     []byte
	Attempts int    // 백엔드가 수신 횟수를 추적하는 경우 (SQS), 아니면 0
	receipt  string // 백엔드별 핸들 (SQS ReceiptHandle 등)
}

// Queue - Job 전달 추상화 (redis | sqs | memory)
type Queue interface {
	// Enqueue - Job payload를 큐에 추가
	Enqueue(ctx context.Context, body []byte) error

	// Receive - 다음 메시지 수신 (큐가 비어있으면 nil, nil)
	Receive(ctx context.Context) (*Message, error)

	// Ack - 처리 완료된 메시지 제거
	Ack(ctx context.Context, msg *Message) error

	// Retry - 백오프 지연 후 payload 재등록
	Retry(ctx context.Context, body []byte, delay time.Duration) error

	// DeadLetter - 재시도 소진된 payload를 DLQ로 이동
	DeadLetter(ctx context.Context, body []byte) error

	Close() error
}

// New - 설정에 따라 Queue 백엔드 선택
func New(cfg *config.Config, rdb *goredis.Client) (Queue, error) {
	switch cfg.QueueBackend {
	case "sqs":
		return NewSQSQueue(context.Background(), cfg)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis queue requires a redis connection")
		}
		return NewRedisQueue(rdb), nil
	case "memory":
		return NewMemoryQueue(), nil
	default:
		return nil, fmt.Errorf("unknown queue backend: %s", cfg.QueueBackend)
	}
}

// Backoff - 재시도 대기 시간 계산 (지수 백오프, 최대 60초)
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

// enqueueAfter - 지연 후 재등록 (모든 백엔드 공용 Retry 구현)
func enqueueAfter(q Queue, body []byte, delay time.Duration) error {
	go func() {
		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := q.Enqueue(ctx, body); err != nil {
			log.Printf("❌ [Queue] Failed to re-enqueue after %v: %v", delay, err)
		}
	}()
	return nil
}
