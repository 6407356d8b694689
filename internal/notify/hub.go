// Package notify delivers domain events to users through two independent
// channels: Notification documents in the store, and best-effort pushes to
// WebSocket clients grouped into rooms.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/campushub/eventhub/internal/models"
	"github.com/campushub/eventhub/internal/policy"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Room names.
const RoomAll = "all"

func UserRoom(id string) string { return "user:" + id }

func RoleRoom(role models.UserRole) string { return "role:" + string(role) }

func EventRoom(id string) string { return "event:" + id }

// isJoinable reports whether a client may join room on request.
func isJoinable(room string) bool {
	return strings.HasPrefix(room, "event:") && len(room) > len("event:")
}

func roomsFor(p policy.Principal) []string {
	return []string{UserRoom(p.UserID), RoleRoom(p.Role), RoomAll}
}

// Message is what clients receive.
type Message struct {
	Type string    `json:"type"`
	Room string    `json:"room,omitempty"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// Broadcaster pushes a message to every client in a room.
type Broadcaster interface {
	Broadcast(room string, msg Message) error
}

// ErrNoListeners is returned by Broadcast when the room is empty.
var ErrNoListeners = errors.New("no listeners in room")

// TokenVerifier resolves a bearer token to the caller.
type TokenVerifier func(token string) (policy.Principal, error)

// command is a client-to-server message.
type command struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

type client struct {
	principal policy.Principal
	send      chan Message
	rooms     map[string]struct{}
	closed    bool
}

// Hub is a process-local registry of connected clients by room. It is safe
// for concurrent use.
type Hub struct {
	log     *slog.Logger
	verify  TokenVerifier
	origins []string
	buffer  int

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

// NewHub returns a Hub accepting connections from the given origin
// patterns ("*" allows any origin).
func NewHub(log *slog.Logger, verify TokenVerifier, clientOrigin string) *Hub {
	return &Hub{
		log:     log,
		verify:  verify,
		origins: originPatterns(clientOrigin),
		buffer:  32,
		rooms:   map[string]map[*client]struct{}{},
	}
}

// originPatterns turns a comma-separated origin list into host patterns.
func originPatterns(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if u, err := url.Parse(p); err == nil && u.Host != "" {
			p = u.Host
		}
		out = append(out, p)
	}
	return out
}

// Broadcast queues msg for every client in room. A client whose buffer is
// full is disconnected instead of blocking the sender.
func (h *Hub) Broadcast(room string, msg Message) error {
	msg.Room = room
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[room]
	if len(members) == 0 {
		return ErrNoListeners
	}
	for c := range members {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("dropping slow websocket client", "user_id", c.principal.UserID, "room", room)
			h.dropLocked(c)
		}
	}
	return nil
}

// RoomSize returns the number of clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return h.RoomSize(RoomAll)
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	members := h.rooms[room]
	if members == nil {
		members = map[*client]struct{}{}
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leave(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *client, room string) {
	if members := h.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// dropLocked removes c from every room and closes its send channel, which
// ends its writer loop.
func (h *Hub) dropLocked(c *client) {
	if c.closed {
		return
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	c.closed = true
	close(c.send)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func tokenFrom(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("token"); err == nil {
		return c.Value
	}
	return ""
}

// ServeWS handles GET /ws. The caller authenticates with a token query
// parameter, bearer header or cookie, and is joined to its user, role and
// all rooms. Clients may then send {"type":"join"|"leave","room":"event:<id>"}.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	p, err := h.verify(tokenFrom(r))
	if err != nil {
		http.Error(w, `{"success":false,"message":"authentication required","data":null}`, http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.log.Debug("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &client{principal: p, send: make(chan Message, h.buffer), rooms: map[string]struct{}{}}
	for _, room := range roomsFor(p) {
		h.join(c, room)
	}
	defer h.drop(c)
	h.log.Debug("websocket connected", "user_id", p.UserID, "role", p.Role)

	go h.readLoop(ctx, cancel, conn, c)

	if err := wsjson.Write(ctx, conn, Message{Type: "ready", Data: roomsFor(p), At: time.Now().UTC()}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case msg, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "slow consumer")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, msg)
			cancelWrite()
			if err != nil {
				h.log.Debug("websocket write failed", "user_id", p.UserID, "err", err)
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *client) {
	defer cancel()
	for {
		var cmd command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			return
		}
		if !isJoinable(cmd.Room) {
			continue
		}
		switch cmd.Type {
		case "join":
			h.join(c, cmd.Room)
		case "leave":
			h.leave(c, cmd.Room)
		}
	}
}
