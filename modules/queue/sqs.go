package queue

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"cooly-gen-server/modules/common/config"
)

// SQSQueue - AWS SQS 기반 큐 (long polling + DLQ)
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
	dlqURL   string
}

func NewSQSQueue(ctx context.Context, cfg *config.Config) (*SQSQueue, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("✅ [Queue] SQS client initialized (region: %s)", cfg.AWSRegion)

	return &SQSQueue{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: cfg.SQSMainQueueURL,
		dlqURL:   cfg.SQSDLQQueueURL,
	}, nil
}

func (q *SQSQueue) Enqueue(ctx context.Context, body []byte) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context) (*Message, error) {
	result, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     5, // long polling
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeName(types.MessageSystemAttributeNameApproximateReceiveCount),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive SQS message: %w", err)
	}

	if len(result.Messages) == 0 {
		return nil, nil
	}

	m := result.Messages[0]

	// SQS가 추적하는 수신 횟수 (재시도 판단용)
	attempts := 0
	if raw, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			attempts = n
		}
	}

	return &Message{
		Body:     []byte(aws.ToString(m.Body)),
		Attempts: attempts,
		receipt:  aws.ToString(m.ReceiptHandle),
	}, nil
}

func (q *SQSQueue) Ack(ctx context.Context, msg *Message) error {
	if msg.receipt == "" {
		return nil
	}

	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(msg.receipt),
	})
	if err != nil {
		return fmt.Errorf("failed to delete SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Retry(ctx context.Context, body []byte, delay time.Duration) error {
	return enqueueAfter(q, body, delay)
}

func (q *SQSQueue) DeadLetter(ctx context.Context, body []byte) error {
	if q.dlqURL == "" {
		log.Printf("⚠️ [Queue] No DLQ configured, dropping dead job")
		return nil
	}

	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.dlqURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}

	log.Printf("💀 [Queue] Job moved to DLQ")
	return nil
}

func (q *SQSQueue) Close() error {
	return nil
}
