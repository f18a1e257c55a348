// Package notify pushes newly created alerts and unread counters to
// connected operator sessions. Delivery is best-effort at-most-once per
// session; the alert row remains the durable source of truth and a
// disconnected session reconciles through the polling endpoints.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/orovista/backoffice/pkg/models"
)

const (
	// EventAlertCreated announces a freshly persisted alert
	EventAlertCreated = "alert_created"
	// EventUnreadCount refreshes the operator badge
	EventUnreadCount = "unread_count"

	sendBufferSize = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
)

// Event is the wire shape of a push message
type Event struct {
	Type  string        `json:"type"`
	Alert *models.Alert `json:"alert,omitempty"`
	Count *int64        `json:"count,omitempty"`
}

// Publisher forwards locally produced payloads to other replicas
type Publisher interface {
	Publish(ctx context.Context, payload []byte)
}

// Session is one connected operator client
type Session struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans events out to every connected session. Registration and
// broadcasting run on a single goroutine; slow sessions get their message
// dropped rather than blocking the rest.
type Hub struct {
	sessions   map[*Session]struct{}
	register   chan *Session
	unregister chan *Session
	broadcast  chan []byte

	upgrader  websocket.Upgrader
	publisher Publisher
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates and starts a Hub
func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		sessions:   make(map[*Session]struct{}),
		register:   make(chan *Session, 64),
		unregister: make(chan *Session, 64),
		broadcast:  make(chan []byte, 1024),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	h.wg.Add(1)
	go h.run()
	return h
}

// SetPublisher attaches the cross-replica bridge. Call before serving.
func (h *Hub) SetPublisher(p Publisher) {
	h.publisher = p
}

func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			for s := range h.sessions {
				close(s.send)
				delete(h.sessions, s)
			}
			return
		case s := <-h.register:
			h.sessions[s] = struct{}{}
			h.logger.Debug("operator session connected", zap.String("session_id", s.id))
		case s := <-h.unregister:
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				close(s.send)
				h.logger.Debug("operator session disconnected", zap.String("session_id", s.id))
			}
		case payload := <-h.broadcast:
			for s := range h.sessions {
				select {
				case s.send <- payload:
				default:
					h.logger.Warn("dropping push for slow operator session",
						zap.String("session_id", s.id))
				}
			}
		}
	}
}

// ServeWS upgrades the request and registers the session. A stopped hub
// refuses the upgrade instead of parking pump goroutines nobody will reap.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s := &Session{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		hub:  h,
	}
	if h.ctx.Err() != nil {
		conn.Close()
		return
	}
	h.register <- s
	go s.writePump()
	go s.readPump()
}

// AlertCreated pushes a freshly persisted alert to every session
func (h *Hub) AlertCreated(alert models.Alert) {
	h.publish(Event{Type: EventAlertCreated, Alert: &alert})
}

// UnreadCount pushes the refreshed badge counter
func (h *Hub) UnreadCount(count int64) {
	h.publish(Event{Type: EventUnreadCount, Count: &count})
}

func (h *Hub) publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("push event marshaling failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	h.Deliver(payload)
	if h.publisher != nil {
		h.publisher.Publish(h.ctx, payload)
	}
}

// Deliver enqueues a payload for local sessions without ever blocking the
// caller. The bridge uses it for messages originating on other replicas.
func (h *Hub) Deliver(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("broadcast queue full, dropping push")
	}
}

// Shutdown stops the hub and closes every session. Sessions that slipped into
// the register buffer while the loop was exiting get their connections closed
// here, which unwinds their pumps.
func (h *Hub) Shutdown() {
	h.cancel()
	h.wg.Wait()
	for {
		select {
		case s := <-h.register:
			s.conn.Close()
		default:
			return
		}
	}
}

func (s *Session) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// operators only listen; reads exist to detect disconnects
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
