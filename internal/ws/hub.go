package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	EventMessageNew     = "message:new"
	EventMessageUpdated = "message:updated"
	EventMessageDeleted = "message:deleted"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Client struct {
	ProjectID int64
	UserID    int64
	Conn      *websocket.Conn
	Send      chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub fans chat events out to the clients watching a project.
type Hub struct {
	mu    sync.RWMutex
	rooms map[int64]map[*Client]struct{}
	log   *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		rooms: map[int64]map[*Client]struct{}{},
		log:   log,
	}
}

// Serve registers conn in the project room and blocks until ctx ends or
// the peer goes away.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, projectID, userID int64) {
	// Push only; reading still has to run so control frames are handled.
	ctx = conn.CloseRead(ctx)

	c := h.Join(projectID, userID, conn)
	defer h.Leave(c)

	select {
	case <-ctx.Done():
	case <-c.ctx.Done():
	}
}

func (h *Hub) Join(projectID, userID int64, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		ProjectID: projectID,
		UserID:    userID,
		Conn:      conn,
		Send:      make(chan Event, 64),
		ctx:       ctx,
		cancel:    cancel,
	}

	h.mu.Lock()
	if h.rooms[projectID] == nil {
		h.rooms[projectID] = map[*Client]struct{}{}
	}
	h.rooms[projectID][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

func (h *Hub) Leave(c *Client) {
	c.cancel()

	h.mu.Lock()
	if set, ok := h.rooms[c.ProjectID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, c.ProjectID)
		}
	}
	h.mu.Unlock()

	_ = c.Conn.Close(websocket.StatusNormalClosure, "bye")
}

// Publish queues an event for every client in the project room. A client
// whose buffer is full misses the event.
func (h *Hub) Publish(projectID int64, eventType string, data any) {
	ev := Event{Type: eventType, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[projectID] {
		select {
		case c.Send <- ev:
		default:
			h.log.Warn("dropping chat event", "project_id", projectID, "user_id", c.UserID, "type", eventType)
		}
	}
}

func (h *Hub) RoomSize(projectID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, set := range h.rooms {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.cancel()
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.Send:
			writeCtx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, c.Conn, ev)
			cancel()
			if err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
			_ = c.Conn.Ping(pingCtx)
			cancel()
		}
	}
}
