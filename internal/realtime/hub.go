// Package realtime pushes each connected viewer's inbox over WebSocket.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/BradenHooton/portal/internal/auth"
	"github.com/BradenHooton/portal/internal/handlers"
	"github.com/BradenHooton/portal/internal/inbox"
	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
	pkghttp "github.com/BradenHooton/portal/pkg/http"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 60 * time.Second
	readLimit  = 4 * 1024
)

// InboxSource assembles the inbox of one viewer.
type InboxSource interface {
	Inbox(ctx context.Context, viewer models.Viewer) (*inbox.Inbox, error)
}

// ProfileLoader re-reads the profile behind a connection before each push.
type ProfileLoader interface {
	GetByID(ctx context.Context, uid string) (*models.User, error)
}

// ChangeWatcher streams changes to a collection an inbox depends on.
type ChangeWatcher interface {
	Watch(ctx context.Context) (<-chan store.ChangeEvent, error)
}

// Event is the frame pushed to clients.
type Event struct {
	Type  string                  `json:"type"`
	Inbox *handlers.InboxResponse `json:"inbox,omitempty"`
	Error string                  `json:"error,omitempty"`
}

const (
	EventInbox = "inbox"
	EventError = "error"
)

var errAccountRefused = errors.New("account suspended or removed")

type client struct {
	viewer  models.Viewer
	conn    *websocket.Conn
	refresh chan struct{}
}

// Hub tracks open inbox connections and recomputes their inbox when messages
// or profiles change, when the config changes, or when a read message reaches
// its expiry.
type Hub struct {
	source   InboxSource
	profiles ProfileLoader
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub. An empty allowedOrigins accepts any origin.
func NewHub(source InboxSource, profiles ProfileLoader, allowedOrigins []string, logger *slog.Logger) *Hub {
	return &Hub{
		source:   source,
		profiles: profiles,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 {
					return true
				}
				return slices.Contains(allowedOrigins, origin) || slices.Contains(allowedOrigins, "*")
			},
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Run refreshes every connection on each change reported by watchers until
// ctx is done.
func (h *Hub) Run(ctx context.Context, watchers ...ChangeWatcher) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for _, w := range watchers {
		events, err := w.Watch(ctx)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range events {
				h.RefreshAll()
			}
		}()
	}
	return nil
}

// RefreshAll asks every connection to recompute its inbox. Pending refreshes
// coalesce.
func (h *Hub) RefreshAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.refresh <- struct{}{}:
		default:
		}
	}
}

// Connections is the number of open inbox connections.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS handles GET /ws/inbox. The viewer middleware must have run.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	viewer, ok := auth.GetViewer(r)
	if !ok {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{viewer: viewer, conn: conn, refresh: make(chan struct{}, 1)}
	c.refresh <- struct{}{}
	h.register(c)

	ctx, cancel := context.WithCancel(context.Background())
	go h.writeLoop(ctx, c)
	h.readLoop(c)

	cancel()
	h.unregister(c)
	conn.Close()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("inbox connection opened",
		slog.String("uid", c.viewer.UID),
		slog.Int("connections", n),
	)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// readLoop discards client frames and returns when the connection drops.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer of c.conn.
func (h *Hub) writeLoop(ctx context.Context, c *client) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	// Fires when the earliest read message of the last push expires.
	expiry := time.NewTimer(time.Hour)
	expiry.Stop()
	defer expiry.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.refresh:
		case <-expiry.C:
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
			continue
		}

		next, err := h.push(ctx, c)
		if err != nil {
			c.conn.Close()
			return
		}
		expiry.Stop()
		if !next.IsZero() {
			expiry.Reset(max(time.Until(next), time.Second))
		}
	}
}

// push writes the current inbox and returns the next expiry instant, if any.
// The viewer is re-read first so role or filiere changes apply at once; a
// suspended or removed account is disconnected.
func (h *Hub) push(ctx context.Context, c *client) (time.Time, error) {
	ev := Event{Type: EventInbox}
	var next time.Time

	var box *inbox.Inbox
	err := h.reloadViewer(ctx, c)
	if errors.Is(err, errAccountRefused) {
		h.logger.Info("closing inbox connection of refused account", slog.String("uid", c.viewer.UID))
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "account unavailable")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return time.Time{}, err
	}
	if err == nil {
		box, err = h.source.Inbox(ctx, c.viewer)
	}
	if err != nil {
		h.logger.Error("failed to build inbox for push",
			slog.String("uid", c.viewer.UID),
			slog.Any("error", err),
		)
		ev = Event{Type: EventError, Error: "inbox unavailable"}
	} else {
		ev.Inbox = handlers.InboxToResponse(box)
		if t, ok := inbox.NextExpiry(*box); ok {
			next = t
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		return time.Time{}, err
	}
	return next, nil
}

func (h *Hub) reloadViewer(ctx context.Context, c *client) error {
	user, err := h.profiles.GetByID(ctx, c.viewer.UID)
	if errors.Is(err, models.ErrNotFound) {
		return errAccountRefused
	}
	if err != nil {
		return err
	}
	if user.Suspended() {
		return errAccountRefused
	}
	c.viewer = models.ViewerFromUser(user)
	return nil
}
