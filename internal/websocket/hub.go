package websocket

import (
	"encoding/json"
	"sync"

	"github.com/ikkim/udonggeum-cartsync/internal/cart"
	"github.com/ikkim/udonggeum-cartsync/pkg/logger"
	"golang.org/x/time/rate"
)

const (
	// Rate limiting: 최대 메시지 수 (1초당)
	maxMessagesPerSecond = 10

	MessageTypeSnapshot = "cart_snapshot"
	MessageTypeRefresh  = "refresh"
)

// ClientMessage 클라이언트로부터 받은 메시지
type ClientMessage struct {
	Type string `json:"type"` // refresh
}

// SnapshotMessage 장바구니 상태 푸시 메시지
type SnapshotMessage struct {
	Type string        `json:"type"`
	Cart cart.Snapshot `json:"cart"`
}

// Client WebSocket 클라이언트
type Client struct {
	Hub     *Hub
	Conn    *Conn
	Send    chan []byte
	limiter *rate.Limiter
}

func NewClient(hub *Hub, conn *Conn) *Client {
	return &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 16),
		limiter: rate.NewLimiter(rate.Limit(maxMessagesPerSecond), maxMessagesPerSecond),
	}
}

// Hub 장바구니 스냅샷을 연결된 모든 화면에 전달
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once

	// OnRefresh 는 클라이언트가 refresh 를 요청하면 호출됨
	OnRefresh func()

	mu sync.RWMutex
}

// NewHub Hub 생성
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run Hub 실행, Stop 이 호출될 때까지 블록
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"total_sessions": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("WebSocket client unregistered", map[string]interface{}{
				"remaining_sessions": total,
			})

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Send 채널이 막혀있음 - 연결 정리
					delete(h.clients, client)
					close(client.Send)
					logger.Warn("Client send buffer full, disconnecting", nil)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop Hub 종료, 모든 연결의 Send 채널을 닫음
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Publish 스냅샷을 모든 클라이언트에 브로드캐스트. cart.Synchronizer.Subscribe 에 연결됨
func (h *Hub) Publish(snap cart.Snapshot) {
	data, err := Encode(snap)
	if err != nil {
		logger.Error("Failed to marshal cart snapshot", err, nil)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		// 다음 스냅샷이 최신 상태를 다시 보냄
		logger.Warn("Broadcast channel full, snapshot dropped", nil)
	}
}

// Encode 스냅샷 메시지 직렬화
func Encode(snap cart.Snapshot) ([]byte, error) {
	return json.Marshal(SnapshotMessage{Type: MessageTypeSnapshot, Cart: snap})
}

// Register 클라이언트 등록
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 클라이언트 등록 해제
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount 연결된 클라이언트 수
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleClientMessage 클라이언트 메시지 처리
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	if !client.limiter.Allow() {
		logger.Warn("Rate limit exceeded", nil)
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if msg.Type == MessageTypeRefresh && h.OnRefresh != nil {
		go h.OnRefresh()
	}
}
