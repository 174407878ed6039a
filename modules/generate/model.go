package generate

import "cooly-gen-server/modules/common/model"

// GenerateRequest - POST /api/generation 요청
type GenerateRequest struct {
	UserID      string `json:"user_id"`
	ClientKey   string `json:"client_key"`
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	JobType     string `json:"job_type"` // "image" | "video"
	Outputs     int    `json:"outputs"`
	AspectRatio string `json:"aspect_ratio"`
	Resolution  string `json:"resolution"`
}

// GenerateResponse - 생성 요청 응답 (202 Accepted)
type GenerateResponse struct {
	Success       bool   `json:"success"`
	SessionID     string `json:"session_id,omitempty"`
	ClientKey     string `json:"client_key,omitempty"`
	ReservationID string `json:"reservation_id,omitempty"`
	Status        string `json:"status,omitempty"`
	Error         string `json:"error,omitempty"`
	Code          string `json:"code,omitempty"`
}

// HistoryResponse - GET /api/images/history 응답
type HistoryResponse struct {
	Success    bool                      `json:"success"`
	Items      []model.GenerationSession `json:"items"`
	Pagination Pagination                `json:"pagination"`
	Error      string                    `json:"error,omitempty"`
}

// Pagination - 히스토리 페이지네이션 정보
type Pagination struct {
	HasMore bool `json:"hasMore"`
}

// ProgressResponse - GET /api/image/progress/{id} 응답
type ProgressResponse struct {
	Success      bool     `json:"success"`
	SessionID    string   `json:"session_id,omitempty"`
	Status       string   `json:"status,omitempty"`
	Progress     []int    `json:"progress"` // 슬롯당 0~100
	ArtifactURLs []string `json:"b2_urls"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// CreditsResponse - GET /api/user/credits 응답
type CreditsResponse struct {
	Success bool   `json:"success"`
	Credits int    `json:"credits"`
	Error   string `json:"error,omitempty"`
}

// CancelResponse - POST /api/jobs/{jobId}/cancel 응답
type CancelResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id,omitempty"`
	Error   string `json:"error,omitempty"`
}
