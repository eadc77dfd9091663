package websocket

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rockets-cn/allsky/internal/logger"
	"github.com/rockets-cn/allsky/internal/models"
)

// HubService fans finished captures out to connected viewers.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// captureEvent is the wire format pushed to viewers after every capture.
type captureEvent struct {
	CapturedAt time.Time `json:"capturedAt"`
	Phase      string    `json:"phase"`
	WebPath    string    `json:"webPath"`
	Image      string    `json:"image"`
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
}

func (h *HubService) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", h.GetClientCount())

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", h.GetClientCount())

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				err := client.WriteMessage(websocket.TextMessage, message)
				if err != nil {
					h.logger.Error("Error sending message: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *HubService) Register(client *websocket.Conn) {
	h.register <- client
}

func (h *HubService) Unregister(client *websocket.Conn) {
	h.unregister <- client
}

// BroadcastCapture pushes a finished capture to all viewers. The JPEG is
// inlined base64 so viewers render without a second round trip. A hub with
// no listeners would block the capture pipeline, so the send is skipped when
// nobody is connected.
func (h *HubService) BroadcastCapture(meta *models.ImageMetadata, jpeg []byte) {
	if h.GetClientCount() == 0 {
		return
	}
	event := captureEvent{
		CapturedAt: meta.CapturedAt,
		Phase:      meta.Phase.String(),
		WebPath:    meta.WebPath,
		Image:      base64.StdEncoding.EncodeToString(jpeg),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Error encoding capture event: %v", err)
		return
	}
	h.broadcast <- payload
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
