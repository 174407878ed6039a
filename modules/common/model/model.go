package model

import "time"

// GenerationSession - generation_sessions 테이블 구조
type GenerationSession struct {
	SessionID     string     `json:"session_id"`
	UserID        string     `json:"user_id"`
	ClientKey     *string    `json:"client_key"` // 클라이언트 멱등성 키
	Prompt        string     `json:"prompt"`
	Model         string     `json:"model"`
	JobType       string     `json:"job_type"` // "image" | "video"
	Status        string     `json:"status"`
	Outputs       int        `json:"outputs"` // 요청된 아티팩트 개수
	AspectRatio   *string    `json:"aspect_ratio"`
	Resolution    *string    `json:"resolution"`
	CreditCost    *int       `json:"credit_cost"`
	ReservationID *string    `json:"reservation_id"`
	ArtifactURLs  []string   `json:"b2_urls"`
	ErrorMessage  *string    `json:"error_message"`
	RetryCount    int        `json:"retry_count"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

// GenerationJob - Queue에 실리는 Job payload
type GenerationJob struct {
	JobID         string              `json:"job_id"`
	JobType       string              `json:"job_type"` // "image" | "video"
	SessionID     string              `json:"session_id"`
	UserID        string              `json:"user_id"`
	ClientKey     string              `json:"client_key,omitempty"`
	ReservationID string              `json:"reservation_id"`
	Params        GenerationParams    `json:"params"`
	Attempts      int                 `json:"attempts"`
	Failure       *GenerationJobError `json:"failure,omitempty"` // DLQ 전달 시 설정
	EnqueuedAt    time.Time           `json:"enqueued_at"`
}

// GenerationParams - 생성 요청 파라미터 (queue 경계에서 정규화됨)
type GenerationParams struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	Outputs     int    `json:"outputs"`
	AspectRatio string `json:"aspect_ratio"`
	Resolution  string `json:"resolution,omitempty"`
}

// GenerationJobError - DLQ로 보낼 때 붙는 실패 메타데이터
type GenerationJobError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Attempts   int       `json:"attempts"`
	ReceivedAt time.Time `json:"received_at"`
}

// CreditReservation - credit_reservations 테이블 구조
type CreditReservation struct {
	ReservationID string     `json:"reservation_id"`
	UserID        string     `json:"user_id"`
	Amount        int        `json:"amount"`
	Status        string     `json:"status"` // reserved | captured | released
	ClientKey     *string    `json:"client_key"`
	SessionID     *string    `json:"session_id"`
	Description   *string    `json:"description"`
	ExpiresAt     *time.Time `json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

const (
	StatusPending       = "pending"
	StatusProcessing    = "processing"
	StatusCompleted     = "completed"
	StatusFailed        = "failed"
	StatusUserCancelled = "user_cancelled"
)

const (
	JobTypeImage = "image"
	JobTypeVideo = "video"
)

const (
	ReservationReserved = "reserved"
	ReservationCaptured = "captured"
	ReservationReleased = "released"
)

// IsTerminal - 더 이상 폴링하지 않는 상태인지 확인
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusUserCancelled
}
