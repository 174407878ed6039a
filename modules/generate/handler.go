package generate

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

// Handler - 생성 요청 HTTP Handler
type Handler struct {
	service *Service
}

// NewHandler - Handler 생성
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/generation", h.HandleGenerate).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/images/history", h.HandleHistory).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/image/progress/{id}", h.HandleProgress).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/user/credits", h.HandleCredits).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/jobs/{jobId}/cancel", h.HandleCancel).Methods("POST", "OPTIONS")
	log.Println("✅ Generation routes registered: /api/generation, /api/images/history, /api/image/progress/{id}, /api/user/credits, /api/jobs/{jobId}/cancel")
}

// HandleGenerate - POST /api/generation
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, "POST, OPTIONS")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ [Generate] Invalid request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(GenerateResponse{
			Success: false,
			Error:   "Invalid request body",
			Code:    "invalid_request",
		})
		return
	}

	// 인증 체크 (user_id는 인증 미들웨어/게이트웨이에서 주입됨)
	if req.UserID == "" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(GenerateResponse{
			Success: false,
			Error:   "Authentication required",
			Code:    "unauthenticated",
		})
		return
	}

	session, err := h.service.Submit(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientCredits):
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(GenerateResponse{
				Success: false,
				Error:   err.Error(),
				Code:    "insufficient_credit",
			})
		case errors.Is(err, ErrInvalidRequest):
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(GenerateResponse{
				Success: false,
				Error:   err.Error(),
				Code:    "invalid_request",
			})
		default:
			log.Printf("❌ [Generate] Submit failed: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(GenerateResponse{
				Success: false,
				Error:   "Internal server error",
				Code:    "internal_error",
			})
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(GenerateResponse{
		Success:       true,
		SessionID:     session.SessionID,
		ClientKey:     deref(session.ClientKey),
		ReservationID: deref(session.ReservationID),
		Status:        "queued",
	})
}

// HandleHistory - GET /api/images/history?user_id=xxx&limit=10&offset=0
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, "GET, OPTIONS")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(HistoryResponse{
			Success: false,
			Error:   "Authentication required",
		})
		return
	}

	limit := parseQueryInt(r, "limit", 10)
	offset := parseQueryInt(r, "offset", 0)

	sessions, hasMore, err := h.service.History(userID, limit, offset)
	if err != nil {
		log.Printf("❌ [Generate] History fetch failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(HistoryResponse{
			Success: false,
			Error:   "Failed to fetch history",
		})
		return
	}

	json.NewEncoder(w).Encode(HistoryResponse{
		Success:    true,
		Items:      sessions,
		Pagination: Pagination{HasMore: hasMore},
	})
}

// HandleProgress - GET /api/image/progress/{id}
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, "GET, OPTIONS")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	sessionID := mux.Vars(r)["id"]
	if sessionID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ProgressResponse{
			Success: false,
			Error:   "session id is required",
		})
		return
	}

	resp, err := h.service.Progress(sessionID)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(ProgressResponse{
				Success: false,
				Error:   "session not found",
			})
			return
		}

		log.Printf("❌ [Generate] Progress fetch failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ProgressResponse{
			Success: false,
			Error:   "Failed to fetch progress",
		})
		return
	}

	json.NewEncoder(w).Encode(resp)
}

// HandleCredits - GET /api/user/credits?user_id=xxx
func (h *Handler) HandleCredits(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, "GET, OPTIONS")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(CreditsResponse{
			Success: false,
			Error:   "Authentication required",
		})
		return
	}

	available, err := h.service.AvailableCredits(r.Context(), userID)
	if err != nil {
		log.Printf("❌ [Generate] Credits fetch failed: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(CreditsResponse{
			Success: false,
			Error:   "Failed to fetch credits",
		})
		return
	}

	json.NewEncoder(w).Encode(CreditsResponse{
		Success: true,
		Credits: available,
	})
}

// HandleCancel - POST /api/jobs/{jobId}/cancel
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w, "POST, OPTIONS")
	if r.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	jobID := mux.Vars(r)["jobId"]
	if jobID == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(CancelResponse{
			Success: false,
			Error:   "job id is required",
		})
		return
	}

	if err := h.service.Cancel(jobID); err != nil {
		log.Printf("❌ [Generate] Cancel failed for job %s: %v", jobID, err)
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(CancelResponse{
			Success: false,
			Error:   "Failed to cancel job",
		})
		return
	}

	log.Printf("🛑 [Generate] Cancel flag set for job %s", jobID)
	json.NewEncoder(w).Encode(CancelResponse{
		Success: true,
		JobID:   jobID,
	})
}

func setCORSHeaders(w http.ResponseWriter, methods string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", methods)
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
