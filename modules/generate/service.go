package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"cooly-gen-server/modules/common/config"
	"cooly-gen-server/modules/common/credit"
	"cooly-gen-server/modules/common/database"
	"cooly-gen-server/modules/common/fallback"
	"cooly-gen-server/modules/common/model"
	redisClient "cooly-gen-server/modules/common/redis"
	"cooly-gen-server/modules/events"
	"cooly-gen-server/modules/queue"
)

var (
	// ErrInsufficientCredits - 잔액 부족 (402)
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidRequest - 요청 검증 실패 (400)
	ErrInvalidRequest = errors.New("invalid request")
)

// Service - 생성 요청 접수 서비스
type Service struct {
	db     *database.Client
	credit *credit.Client
	q      queue.Queue
	rdb    *goredis.Client
	hub    *events.Hub
}

// NewService - Service 생성
func NewService(db *database.Client, creditClient *credit.Client, q queue.Queue, rdb *goredis.Client, hub *events.Hub) *Service {
	return &Service{
		db:     db,
		credit: creditClient,
		q:      q,
		rdb:    rdb,
		hub:    hub,
	}
}

// Submit - 생성 요청 접수 (예약 → 세션 생성 → Enqueue)
// 같은 client_key로 재요청 시 기존 세션을 그대로 반환한다 (멱등성)
func (s *Service) Submit(ctx context.Context, req *GenerateRequest) (*model.GenerationSession, error) {
	cfg := config.GetConfig()

	// 1. 검증
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}

	jobType := req.JobType
	if jobType != model.JobTypeVideo {
		jobType = model.JobTypeImage
	}

	// 2. 멱등성 체크 - 같은 client_key로 이미 접수된 요청이면 기존 세션 반환
	if req.ClientKey != "" {
		existing, err := s.db.FetchSessionByClientKey(req.UserID, req.ClientKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			log.Printf("🔁 [Generate] Duplicate client_key %s, returning existing session %s", req.ClientKey, existing.SessionID)
			return existing, nil
		}
	}

	// 3. 파라미터 정규화 및 비용 계산 (모델 미지정 시 설정값 사용)
	defaultModel := cfg.GeminiModel
	if jobType == model.JobTypeVideo {
		defaultModel = cfg.VideoModel
	}
	params := fallback.NormalizeParams(model.GenerationParams{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Outputs:     req.Outputs,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
	}, jobType, defaultModel)

	cost := params.Outputs * cfg.ImagePerPrice
	if jobType == model.JobTypeVideo {
		cost = cfg.VideoPerPrice
	}

	// 4. 크레딧 예약 (soft hold)
	reservation, err := s.credit.ReserveCredits(ctx, req.UserID, cost, req.ClientKey, "Generation request")
	if err != nil {
		if strings.Contains(err.Error(), "insufficient credits") {
			return nil, fmt.Errorf("%w: %v", ErrInsufficientCredits, err)
		}
		return nil, err
	}

	// 5. 세션 레코드 생성
	sessionID := uuid.NewString()
	session := &model.GenerationSession{
		SessionID:     sessionID,
		UserID:        req.UserID,
		Prompt:        params.Prompt,
		Model:         params.Model,
		JobType:       jobType,
		Status:        model.StatusProcessing,
		Outputs:       params.Outputs,
		CreditCost:    &cost,
		ReservationID: &reservation.ReservationID,
		ArtifactURLs:  []string{},
		CreatedAt:     time.Now().UTC(),
	}
	if req.ClientKey != "" {
		session.ClientKey = &req.ClientKey
	}
	if params.AspectRatio != "" {
		session.AspectRatio = &params.AspectRatio
	}
	if params.Resolution != "" {
		session.Resolution = &params.Resolution
	}

	if err := s.db.InsertSession(ctx, session); err != nil {
		// 세션 생성 실패 - 예약 환불
		if relErr := s.credit.ReleaseReservation(ctx, reservation.ReservationID); relErr != nil {
			log.Printf("❌ [Generate] Failed to release reservation %s after insert failure: %v", reservation.ReservationID, relErr)
		}
		return nil, err
	}

	// 6. Job Enqueue
	job := model.GenerationJob{
		JobID:         sessionID,
		JobType:       jobType,
		SessionID:     sessionID,
		UserID:        req.UserID,
		ClientKey:     req.ClientKey,
		ReservationID: reservation.ReservationID,
		Params:        params,
		Attempts:      0,
		EnqueuedAt:    time.Now().UTC(),
	}

	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := s.q.Enqueue(ctx, body); err != nil {
		// Enqueue 실패 - 세션 실패 처리 + 예약 환불
		log.Printf("❌ [Generate] Enqueue failed for session %s: %v", sessionID, err)

		if dbErr := s.db.MarkSessionFailed(ctx, sessionID, "failed to enqueue job"); dbErr != nil {
			log.Printf("❌ [Generate] Failed to mark session failed: %v", dbErr)
		}
		if relErr := s.credit.ReleaseReservation(ctx, reservation.ReservationID); relErr != nil {
			log.Printf("❌ [Generate] Failed to release reservation %s: %v", reservation.ReservationID, relErr)
		}
		return nil, err
	}

	log.Printf("✅ [Generate] Session %s enqueued (type: %s, cost: %d)", sessionID, jobType, cost)

	// 7. 접수 이벤트 push
	s.hub.Broadcast(req.UserID, events.Event{
		Type:      "session_created",
		SessionID: sessionID,
		Payload:   session,
	})

	return session, nil
}

// History - 세션 히스토리 페이지 조회
func (s *Service) History(userID string, limit, offset int) ([]model.GenerationSession, bool, error) {
	return s.db.FetchHistory(userID, limit, offset)
}

// Progress - 세션 진행률 조회 (DB 상태 + Redis 진행률 캐시)
func (s *Service) Progress(sessionID string) (*ProgressResponse, error) {
	session, err := s.db.FetchSession(sessionID)
	if err != nil {
		return nil, err
	}

	progress, err := redisClient.GetSessionProgress(s.rdb, sessionID)
	if err != nil {
		log.Printf("⚠️ [Generate] Failed to read progress cache for %s: %v", sessionID, err)
		progress = []int{}
	}

	// 완료된 세션은 슬롯 전체 100으로 보정
	if session.Status == model.StatusCompleted {
		progress = make([]int, session.Outputs)
		for i := range progress {
			progress[i] = 100
		}
	}

	resp := &ProgressResponse{
		Success:      true,
		SessionID:    session.SessionID,
		Status:       session.Status,
		Progress:     progress,
		ArtifactURLs: session.ArtifactURLs,
	}
	if session.ErrorMessage != nil {
		resp.ErrorMessage = *session.ErrorMessage
	}
	return resp, nil
}

// AvailableCredits - 사용 가능 크레딧 조회
func (s *Service) AvailableCredits(ctx context.Context, userID string) (int, error) {
	return s.credit.GetAvailableCredits(ctx, userID)
}

// Cancel - Job 취소 플래그 설정 (Worker가 플래그를 보고 중단/환불 처리)
func (s *Service) Cancel(jobID string) error {
	if s.rdb == nil {
		return fmt.Errorf("cancel requires redis")
	}
	return redisClient.SetJobCancelled(s.rdb, jobID)
}
