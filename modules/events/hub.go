package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 개발용 - 모든 origin 허용
		// 프로덕션에서는 특정 도메인만 허용하도록 수정
		return true
	},
}

// Event - 클라이언트로 push되는 이벤트
type Event struct {
	Type      string      `json:"type"` // session_created | session_update | credits_update
	SessionID string      `json:"session_id,omitempty"`
	UserID    string      `json:"user_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// client - 연결된 websocket 클라이언트
type client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub - 유저별 websocket 연결 관리
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]bool // userID → 연결 집합
}

// NewHub - Hub 생성
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*client]bool),
	}
}

// RegisterRoutes - 라우트 등록
func (h *Hub) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.handleWebSocket)
	log.Println("✅ Event routes registered: /ws")
}

// handleWebSocket - GET /ws?user_id=xxx
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ [Events] WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]bool)
	}
	h.clients[userID][c] = true
	total := len(h.clients[userID])
	h.mu.Unlock()

	log.Printf("✅ [Events] Client connected for user %s (connections: %d)", userID, total)

	go c.writePump()
	go h.readPump(c)
}

// Broadcast - 특정 유저의 모든 연결로 이벤트 전송
func (h *Hub) Broadcast(userID string, event Event) {
	if h == nil {
		return
	}

	event.UserID = userID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ [Events] Failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			// 버퍼가 가득 찬 느린 클라이언트는 건너뜀
			log.Printf("⚠️ [Events] Dropping event for slow client (user: %s)", userID)
		}
	}
}

// readPump - 연결 종료 감지
func (h *Hub) readPump(c *client) {
	defer h.disconnect(c)

	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump - 이벤트 전송 루프
func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// disconnect - 클라이언트 정리
func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	if conns, ok := h.clients[c.userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()

	close(c.send)
	c.conn.Close()

	log.Printf("👋 [Events] Client disconnected (user: %s)", c.userID)
}
