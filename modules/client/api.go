package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// SubmitRequest mirrors the POST /api/generation body.
type SubmitRequest struct {
	UserID      string `json:"user_id"`
	ClientKey   string `json:"client_key"`
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	JobType     string `json:"job_type"`
	Outputs     int    `json:"outputs"`
	AspectRatio string `json:"aspect_ratio"`
	Resolution  string `json:"resolution"`
}

// SubmitResult is the accepted-submission acknowledgement.
type SubmitResult struct {
	SessionID     string
	ClientKey     string
	ReservationID string
	Status        string
}

// ProgressResult is a single progress poll response.
type ProgressResult struct {
	SessionID    string
	Status       string
	Progress     []int
	URLs         []string
	ErrorMessage string
}

// API is the server surface the panel talks to.
type API interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	History(ctx context.Context, userID string, limit, offset int) ([]Record, bool, error)
	Progress(ctx context.Context, sessionID string) (*ProgressResult, error)
	Credits(ctx context.Context, userID string) (int, error)
	Cancel(ctx context.Context, jobID string) error
}

// HTTPAPI implements API against the generation server.
type HTTPAPI struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAPI(baseURL string) *HTTPAPI {
	return &HTTPAPI{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError marks non-2xx responses so submit can classify them.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func (a *HTTPAPI) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/generation", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Success       bool   `json:"success"`
		SessionID     string `json:"session_id"`
		ClientKey     string `json:"client_key"`
		ReservationID string `json:"reservation_id"`
		Status        string `json:"status"`
		Error         string `json:"error"`
		Code          string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Code:       parsed.Code,
			Message:    parsed.Error,
		}
	}

	return &SubmitResult{
		SessionID:     parsed.SessionID,
		ClientKey:     parsed.ClientKey,
		ReservationID: parsed.ReservationID,
		Status:        parsed.Status,
	}, nil
}

func (a *HTTPAPI) History(ctx context.Context, userID string, limit, offset int) ([]Record, bool, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/images/history?"+q.Encode(), nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, &StatusError{StatusCode: resp.StatusCode}
	}

	var parsed struct {
		Success bool `json:"success"`
		Items   []struct {
			SessionID     string     `json:"session_id"`
			ClientKey     *string    `json:"client_key"`
			ReservationID *string    `json:"reservation_id"`
			Prompt        string     `json:"prompt"`
			Model         string     `json:"model"`
			JobType       string     `json:"job_type"`
			Status        string     `json:"status"`
			Outputs       int        `json:"outputs"`
			URLs          []string   `json:"b2_urls"`
			CreditCost    *int       `json:"credit_cost"`
			ErrorMessage  *string    `json:"error_message"`
			CreatedAt     time.Time  `json:"created_at"`
			CompletedAt   *time.Time `json:"completed_at"`
		} `json:"items"`
		Pagination struct {
			HasMore bool `json:"hasMore"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, err
	}

	records := make([]Record, 0, len(parsed.Items))
	for _, s := range parsed.Items {
		rec := Record{
			SessionID:   s.SessionID,
			Prompt:      s.Prompt,
			Model:       s.Model,
			JobType:     s.JobType,
			Status:      s.Status,
			Outputs:     s.Outputs,
			URLs:        s.URLs,
			CreatedAt:   s.CreatedAt,
			CompletedAt: s.CompletedAt,
		}
		if s.ClientKey != nil {
			rec.ClientKey = *s.ClientKey
		}
		if s.ReservationID != nil {
			rec.ReservationID = *s.ReservationID
		}
		if s.CreditCost != nil {
			rec.CreditCost = *s.CreditCost
		}
		if s.ErrorMessage != nil {
			rec.ErrorMessage = *s.ErrorMessage
		}
		records = append(records, rec)
	}

	return records, parsed.Pagination.HasMore, nil
}

func (a *HTTPAPI) Progress(ctx context.Context, sessionID string) (*ProgressResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/image/progress/"+sessionID, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	var parsed struct {
		SessionID    string   `json:"session_id"`
		Status       string   `json:"status"`
		Progress     []int    `json:"progress"`
		URLs         []string `json:"b2_urls"`
		ErrorMessage string   `json:"error_message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	return &ProgressResult{
		SessionID:    parsed.SessionID,
		Status:       parsed.Status,
		Progress:     parsed.Progress,
		URLs:         parsed.URLs,
		ErrorMessage: parsed.ErrorMessage,
	}, nil
}

func (a *HTTPAPI) Credits(ctx context.Context, userID string) (int, error) {
	q := url.Values{}
	q.Set("user_id", userID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/user/credits?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{StatusCode: resp.StatusCode}
	}

	var parsed struct {
		Credits int `json:"credits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	return parsed.Credits, nil
}

func (a *HTTPAPI) Cancel(ctx context.Context, jobID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/jobs/"+jobID+"/cancel", nil)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
