package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"cooly-gen-server/modules/common/config"
	"cooly-gen-server/modules/common/credit"
	"cooly-gen-server/modules/common/database"
	"cooly-gen-server/modules/common/model"
	redisClient "cooly-gen-server/modules/common/redis"
	"cooly-gen-server/modules/events"
	"cooly-gen-server/modules/queue"
)

// Worker - Queue에서 Job을 꺼내 생성을 수행하는 Worker
type Worker struct {
	cfg    *config.Config
	db     *database.Client
	credit *credit.Client
	q      queue.Queue
	rdb    *goredis.Client
	hub    *events.Hub
	sem    chan struct{} // 동시 처리 제한
}

// NewWorker - Worker 생성
func NewWorker(db *database.Client, creditClient *credit.Client, q queue.Queue, rdb *goredis.Client, hub *events.Hub) *Worker {
	cfg := config.GetConfig()

	return &Worker{
		cfg:    cfg,
		db:     db,
		credit: creditClient,
		q:      q,
		rdb:    rdb,
		hub:    hub,
		sem:    make(chan struct{}, cfg.WorkerConcurrency),
	}
}

// Run - 수신 루프 시작 (고루틴에서 호출)
func (w *Worker) Run(ctx context.Context) {
	log.Printf("🚀 [Worker] Started (concurrency: %d, max attempts: %d)", w.cfg.WorkerConcurrency, w.cfg.MaxJobAttempts)

	for {
		select {
		case <-ctx.Done():
			log.Println("👋 [Worker] Shutting down")
			return
		default:
		}

		msg, err := w.q.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("❌ [Worker] Receive failed: %v", err)
			time.Sleep(2 * time.Second)
			continue
		}
		if msg == nil {
			continue
		}

		w.sem <- struct{}{}
		go func(m *queue.Message) {
			defer func() { <-w.sem }()
			w.processMessage(ctx, m)
		}(msg)
	}
}

// processMessage - 메시지 1건 처리
func (w *Worker) processMessage(ctx context.Context, msg *queue.Message) {
	var job model.GenerationJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		log.Printf("❌ [Worker] Invalid job payload, moving to DLQ: %v", err)
		w.q.DeadLetter(ctx, msg.Body)
		w.q.Ack(ctx, msg)
		return
	}

	// 시도 횟수: SQS는 백엔드가 추적, redis/memory는 payload에 실림
	attempts := job.Attempts + 1
	if msg.Attempts > attempts {
		attempts = msg.Attempts
	}

	log.Printf("📥 [Worker] Processing job %s (type: %s, attempt: %d/%d)", job.JobID, job.JobType, attempts, w.cfg.MaxJobAttempts)

	// 취소 플래그 확인
	if redisClient.IsJobCancelled(w.rdb, job.JobID) {
		w.handleCancelled(ctx, &job)
		w.q.Ack(ctx, msg)
		return
	}

	// 상태 전이: pending → processing
	if err := w.db.UpdateSessionStatus(ctx, job.SessionID, model.StatusProcessing); err != nil {
		log.Printf("⚠️ [Worker] Failed to mark session processing: %v", err)
	}
	w.broadcastSessionUpdate(job.UserID, job.SessionID, model.StatusProcessing)

	// 생성 실행
	urls, genErr := w.generate(ctx, &job)

	// 생성 도중 취소된 경우
	if redisClient.IsJobCancelled(w.rdb, job.JobID) {
		w.handleCancelled(ctx, &job)
		w.q.Ack(ctx, msg)
		return
	}

	if genErr == nil {
		w.handleSuccess(ctx, &job, urls)
		w.q.Ack(ctx, msg)
		return
	}

	// 실패 처리 - 분류 후 재시도 또는 DLQ
	jobErr := classifyError(genErr)
	log.Printf("❌ [Worker] Job %s failed (code: %s, permanent: %v): %v", job.JobID, jobErr.Code, jobErr.Permanent, genErr)

	if jobErr.Permanent || attempts >= w.cfg.MaxJobAttempts {
		w.handleExhausted(ctx, &job, jobErr, attempts)
		w.q.Ack(ctx, msg)
		return
	}

	// 재시도: attempts 갱신 후 백오프 재등록
	job.Attempts = attempts
	if err := w.db.UpdateRetryCount(ctx, job.SessionID, attempts); err != nil {
		log.Printf("⚠️ [Worker] Failed to record retry count: %v", err)
	}

	body, err := json.Marshal(job)
	if err != nil {
		log.Printf("❌ [Worker] Failed to marshal retry job: %v", err)
		w.handleExhausted(ctx, &job, jobErr, attempts)
		w.q.Ack(ctx, msg)
		return
	}

	delay := queue.Backoff(w.cfg.RetryBackoffBase, attempts)
	log.Printf("🔄 [Worker] Retrying job %s in %v (attempt %d/%d)", job.JobID, delay, attempts+1, w.cfg.MaxJobAttempts)

	if err := w.q.Retry(ctx, body, delay); err != nil {
		log.Printf("❌ [Worker] Failed to schedule retry for job %s: %v", job.JobID, err)
	}
	w.q.Ack(ctx, msg)
}

// handleSuccess - 완료 처리 (아티팩트 기록 + 예약 확정)
func (w *Worker) handleSuccess(ctx context.Context, job *model.GenerationJob, urls []string) {
	if err := w.db.AppendArtifactURLs(ctx, job.SessionID, urls); err != nil {
		log.Printf("❌ [Worker] Failed to append artifact urls: %v", err)
	}

	if err := w.db.UpdateSessionStatus(ctx, job.SessionID, model.StatusCompleted); err != nil {
		log.Printf("❌ [Worker] Failed to mark session completed: %v", err)
	}

	// 크레딧 확정 차감 (1회만)
	if job.ReservationID != "" {
		if err := w.credit.CaptureReservation(ctx, job.ReservationID, job.SessionID); err != nil {
			log.Printf("❌ [Worker] Failed to capture reservation %s: %v", job.ReservationID, err)
		}
	}

	log.Printf("✅ [Worker] Job %s completed (%d artifacts)", job.JobID, len(urls))

	w.broadcastSessionUpdate(job.UserID, job.SessionID, model.StatusCompleted)
	w.broadcastCreditsUpdate(ctx, job.UserID)
}

// handleExhausted - 재시도 소진/영구 실패 처리 (실패 기록 + 환불 + DLQ)
func (w *Worker) handleExhausted(ctx context.Context, job *model.GenerationJob, jobErr *JobError, attempts int) {
	if err := w.db.MarkSessionFailed(ctx, job.SessionID, jobErr.Message); err != nil {
		log.Printf("❌ [Worker] Failed to mark session failed: %v", err)
	}

	// 예약 환불 (exactly-once는 credit 쪽 status guard가 보장)
	if job.ReservationID != "" {
		if err := w.credit.ReleaseReservation(ctx, job.ReservationID); err != nil {
			log.Printf("❌ [Worker] Failed to release reservation %s: %v", job.ReservationID, err)
		}
	}

	// 실패 메타데이터를 붙여 DLQ로 이동
	job.Attempts = attempts
	job.Failure = &model.GenerationJobError{
		Code:       jobErr.Code,
		Message:    jobErr.Message,
		Attempts:   attempts,
		ReceivedAt: time.Now().UTC(),
	}

	body, err := json.Marshal(job)
	if err != nil {
		log.Printf("❌ [Worker] Failed to marshal dead job: %v", err)
	} else if err := w.q.DeadLetter(ctx, body); err != nil {
		log.Printf("❌ [Worker] Failed to dead-letter job %s: %v", job.JobID, err)
	}

	log.Printf("💀 [Worker] Job %s exhausted after %d attempts (code: %s)", job.JobID, attempts, jobErr.Code)

	w.broadcastSessionUpdate(job.UserID, job.SessionID, model.StatusFailed)
	w.broadcastCreditsUpdate(ctx, job.UserID)
}

// handleCancelled - 유저 취소 처리 (상태 기록 + 환불)
func (w *Worker) handleCancelled(ctx context.Context, job *model.GenerationJob) {
	log.Printf("🛑 [Worker] Job %s cancelled by user", job.JobID)

	if err := w.db.UpdateSessionStatus(ctx, job.SessionID, model.StatusUserCancelled); err != nil {
		log.Printf("❌ [Worker] Failed to mark session cancelled: %v", err)
	}

	if job.ReservationID != "" {
		if err := w.credit.ReleaseReservation(ctx, job.ReservationID); err != nil {
			log.Printf("❌ [Worker] Failed to release reservation %s: %v", job.ReservationID, err)
		}
	}

	w.broadcastSessionUpdate(job.UserID, job.SessionID, model.StatusUserCancelled)
	w.broadcastCreditsUpdate(ctx, job.UserID)
}

// generate - Job 타입에 따라 생성 실행
func (w *Worker) generate(ctx context.Context, job *model.GenerationJob) ([]string, error) {
	switch job.JobType {
	case model.JobTypeVideo:
		return w.generateVideo(ctx, job)
	case model.JobTypeImage:
		return w.generateImages(ctx, job)
	default:
		return nil, fmt.Errorf("invalid argument: unknown job type %q", job.JobType)
	}
}

// broadcastSessionUpdate - 세션 상태 변경 이벤트 push
func (w *Worker) broadcastSessionUpdate(userID, sessionID, status string) {
	w.hub.Broadcast(userID, events.Event{
		Type:      "session_update",
		SessionID: sessionID,
		Payload:   map[string]string{"status": status},
	})
}

// broadcastCreditsUpdate - 크레딧 변경 이벤트 push
func (w *Worker) broadcastCreditsUpdate(ctx context.Context, userID string) {
	available, err := w.credit.GetAvailableCredits(ctx, userID)
	if err != nil {
		log.Printf("⚠️ [Worker] Failed to fetch credits for event: %v", err)
		return
	}

	w.hub.Broadcast(userID, events.Event{
		Type:    "credits_update",
		Payload: map[string]int{"available": available},
	})
}
