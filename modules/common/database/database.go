package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"cooly-gen-server/modules/common/config"
	"cooly-gen-server/modules/common/model"
)

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// InsertSession - 세션 레코드 생성 (enqueue 시점)
func (c *Client) InsertSession(ctx context.Context, session *model.GenerationSession) error {
	log.Printf("💾 Creating session record: %s (client_key: %v)", session.SessionID, deref(session.ClientKey))

	insertData := map[string]interface{}{
		"session_id":     session.SessionID,
		"user_id":        session.UserID,
		"client_key":     session.ClientKey,
		"prompt":         session.Prompt,
		"model":          session.Model,
		"job_type":       session.JobType,
		"status":         session.Status,
		"outputs":        session.Outputs,
		"aspect_ratio":   session.AspectRatio,
		"resolution":     session.Resolution,
		"credit_cost":    session.CreditCost,
		"reservation_id": session.ReservationID,
		"b2_urls":        []string{},
	}

	_, _, err := c.supabase.From("generation_sessions").
		Insert(insertData, false, "", "", "").
		Execute()

	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	log.Printf("✅ Session record created: %s", session.SessionID)
	return nil
}

// FetchSession - 세션 조회
func (c *Client) FetchSession(sessionID string) (*model.GenerationSession, error) {
	var sessions []model.GenerationSession

	data, _, err := c.supabase.From("generation_sessions").
		Select("*", "exact", false).
		Eq("session_id", sessionID).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	if len(sessions) == 0 {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	return &sessions[0], nil
}

// FetchSessionByClientKey - client_key로 기존 세션 조회 (멱등성 체크용)
func (c *Client) FetchSessionByClientKey(userID, clientKey string) (*model.GenerationSession, error) {
	var sessions []model.GenerationSession

	data, _, err := c.supabase.From("generation_sessions").
		Select("*", "exact", false).
		Eq("user_id", userID).
		Eq("client_key", clientKey).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query session by client_key: %w", err)
	}

	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}

	if len(sessions) == 0 {
		return nil, nil
	}

	return &sessions[0], nil
}

// FetchHistory - 세션 히스토리 페이지 조회 (최신순, hasMore 판단용으로 limit+1 조회)
func (c *Client) FetchHistory(userID string, limit, offset int) ([]model.GenerationSession, bool, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	var sessions []model.GenerationSession

	data, _, err := c.supabase.From("generation_sessions").
		Select("*", "exact", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Range(offset, offset+limit, "").
		Execute()

	if err != nil {
		return nil, false, fmt.Errorf("failed to query history: %w", err)
	}

	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, false, fmt.Errorf("failed to parse history: %w", err)
	}

	hasMore := len(sessions) > limit
	if hasMore {
		sessions = sessions[:limit]
	}

	return sessions, hasMore, nil
}

// UpdateSessionStatus - 세션 상태 업데이트 (terminal 상태는 completed_at 기록)
func (c *Client) UpdateSessionStatus(ctx context.Context, sessionID string, status string) error {
	log.Printf("📝 Updating session %s status to: %s", sessionID, status)

	updateData := map[string]interface{}{
		"status": status,
	}

	if model.IsTerminal(status) {
		updateData["completed_at"] = "now()"
	}

	_, _, err := c.supabase.From("generation_sessions").
		Update(updateData, "", "").
		Eq("session_id", sessionID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	log.Printf("✅ Session %s status updated to: %s", sessionID, status)
	return nil
}

// MarkSessionFailed - 세션 실패 처리 (에러 메시지 포함)
func (c *Client) MarkSessionFailed(ctx context.Context, sessionID string, errMsg string) error {
	log.Printf("📝 Marking session %s as failed: %s", sessionID, errMsg)

	updateData := map[string]interface{}{
		"status":        model.StatusFailed,
		"error_message": errMsg,
		"completed_at":  "now()",
	}

	_, _, err := c.supabase.From("generation_sessions").
		Update(updateData, "", "").
		Eq("session_id", sessionID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to mark session failed: %w", err)
	}
	return nil
}

// AppendArtifactURLs - 생성된 아티팩트 URL을 세션에 추가
func (c *Client) AppendArtifactURLs(ctx context.Context, sessionID string, newURLs []string) error {
	if len(newURLs) == 0 {
		return nil
	}

	log.Printf("📎 Appending %d artifact URLs to session %s", len(newURLs), sessionID)

	// 1. 기존 배열 조회
	var rows []struct {
		ArtifactURLs []string `json:"b2_urls"`
	}

	data, _, err := c.supabase.From("generation_sessions").
		Select("b2_urls", "", false).
		Eq("session_id", sessionID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to fetch existing artifact urls: %w", err)
	}

	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse artifact urls: %w", err)
	}

	// 2. 기존 배열과 병합
	var merged []string
	if len(rows) > 0 {
		merged = rows[0].ArtifactURLs
	}
	merged = append(merged, newURLs...)

	// 3. 세션 업데이트
	_, _, err = c.supabase.From("generation_sessions").
		Update(map[string]interface{}{"b2_urls": merged}, "", "").
		Eq("session_id", sessionID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update artifact urls: %w", err)
	}

	log.Printf("✅ Session %s now has %d artifacts", sessionID, len(merged))
	return nil
}

// UpdateRetryCount - Job 재시도 횟수 기록
func (c *Client) UpdateRetryCount(ctx context.Context, sessionID string, retryCount int) error {
	_, _, err := c.supabase.From("generation_sessions").
		Update(map[string]interface{}{"retry_count": retryCount}, "", "").
		Eq("session_id", sessionID).
		Execute()

	if err != nil {
		return fmt.Errorf("failed to update retry count: %w", err)
	}
	return nil
}

// UploadArtifact - Supabase Storage에 아티팩트 업로드 후 공개 URL 반환
func (c *Client) UploadArtifact(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	cfg := config.GetConfig()

	log.Printf("📤 Uploading artifact: %s (%d bytes)", path, len(data))

	_, err := c.supabase.Storage.UploadFile(cfg.SupabaseStorageBucket, path, newBytesReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}

	url := fmt.Sprintf("%s%s/%s", cfg.SupabaseStorageBaseURL, cfg.SupabaseStorageBucket, path)
	log.Printf("✅ Artifact uploaded: %s", url)
	return url, nil
}

func newBytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
