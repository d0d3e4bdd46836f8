package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"telegram-diet-diary/internal/report"
)

const (
	pingEvery    = 25 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // mini-app is served from another origin
}

type wsClient struct {
	id         string
	telegramID int64
	conn       *websocket.Conn
	mu         sync.Mutex // serialises writes
}

func (c *wsClient) write(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(kind, data)
}

// Hub fans meal events out to the websocket clients of a user, keyed by
// telegram id.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*wsClient]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[*wsClient]struct{})}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	if h.clients[c.telegramID] == nil {
		h.clients[c.telegramID] = make(map[*wsClient]struct{})
	}
	h.clients[c.telegramID][c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if set := h.clients[c.telegramID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.telegramID)
		}
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Subscribers returns the number of open connections of a user.
func (h *Hub) Subscribers(telegramID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[telegramID])
}

// Publish sends payload as JSON to every connection of telegramID.
func (h *Hub) Publish(telegramID int64, payload any) {
	msg, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("marshal realtime event")
		return
	}
	h.mu.RLock()
	targets := make([]*wsClient, 0, len(h.clients[telegramID]))
	for c := range h.clients[telegramID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			log.Debug().Err(err).Str("client", c.id).Msg("drop websocket client")
			h.unregister(c)
		}
	}
}

// GET /api/ws?userId=
func (s *Server) realtime(c *gin.Context) {
	id, err := report.ParseUserID(c.Query("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	u, err := s.userByID(c, id)
	if err != nil {
		fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	cl := &wsClient{id: uuid.New().String(), telegramID: u.TelegramID, conn: conn}
	s.hub.register(cl)
	log.Debug().Str("client", cl.id).Int64("user_id", u.ID).Msg("websocket connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(pingEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := cl.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Clients only listen; the read loop ends on close or error.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.unregister(cl)
			return
		}
	}
}
