package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Cho phép kết nối từ mọi nguồn
	},
}

// Kích thước buffer gửi của mỗi client. Client đọc chậm đến mức đầy buffer
// sẽ bị ngắt kết nối thay vì chặn các client khác.
const clientSendBuffer = 32

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// WebSocketManager fan-out sự kiện tới mọi client đang kết nối. Triển khai
// domain.Notifier: Publish không bao giờ chặn caller.
type WebSocketManager struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool
}

func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{clients: make(map[*wsClient]bool)}
}

// Publish gửi sự kiện tới mọi client, best-effort.
func (wsm *WebSocketManager) Publish(event domain.Event) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("WebSocket: lỗi marshal sự kiện '%s': %v", event.Type, err)
		return
	}

	wsm.mu.RLock()
	var slow []*wsClient
	for client := range wsm.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	wsm.mu.RUnlock()

	for _, client := range slow {
		log.Println("WebSocket: buffer của client đầy, ngắt kết nối")
		wsm.remove(client)
	}
}

func (wsm *WebSocketManager) add(client *wsClient) {
	wsm.mu.Lock()
	wsm.clients[client] = true
	total := len(wsm.clients)
	wsm.mu.Unlock()
	log.Printf("WebSocket client connected. Total: %d", total)
}

func (wsm *WebSocketManager) remove(client *wsClient) {
	wsm.mu.Lock()
	if _, ok := wsm.clients[client]; ok {
		delete(wsm.clients, client)
		close(client.send)
		client.conn.Close()
	}
	total := len(wsm.clients)
	wsm.mu.Unlock()
	log.Printf("WebSocket client disconnected. Total: %d", total)
}

// ClientCount dùng cho endpoint trạng thái và test.
func (wsm *WebSocketManager) ClientCount() int {
	wsm.mu.RLock()
	defer wsm.mu.RUnlock()
	return len(wsm.clients)
}

type WebSocketHandler struct {
	wsManager *WebSocketManager
}

func NewWebSocketHandler(wsManager *WebSocketManager) *WebSocketHandler {
	return &WebSocketHandler{wsManager: wsManager}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, clientSendBuffer)}
	h.wsManager.add(client)

	// writePump: một goroutine ghi duy nhất cho mỗi kết nối.
	go func() {
		for message := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.wsManager.remove(client)
				return
			}
		}
	}()

	// readPump: chỉ để phát hiện ngắt kết nối.
	go func() {
		defer h.wsManager.remove(client)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				break
			}
		}
	}()
}
