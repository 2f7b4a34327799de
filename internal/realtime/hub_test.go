package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BradenHooton/portal/internal/auth"
	"github.com/BradenHooton/portal/internal/inbox"
	"github.com/BradenHooton/portal/internal/models"
	"github.com/BradenHooton/portal/internal/store"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSource) Inbox(ctx context.Context, viewer models.Viewer) (*inbox.Inbox, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &inbox.Inbox{
		Items: []inbox.Item{{Message: &models.Message{
			ID:        "m1",
			Title:     "hello " + viewer.UID + " as " + string(viewer.Role),
			CreatedAt: time.Now(),
		}}},
		UnreadCount: int(n),
	}, nil
}

type fakeProfiles struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{users: map[string]*models.User{
		"stu-1": {UID: "stu-1", Role: models.RoleStudent, Status: models.UserStatusActive},
	}}
}

func (f *fakeProfiles) GetByID(ctx context.Context, uid string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeProfiles) update(uid string, fn func(u *models.User)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.users[uid])
}

type feedWatcher struct {
	feed store.Feed
}

func (w feedWatcher) Watch(ctx context.Context) (<-chan store.ChangeEvent, error) {
	return w.feed.Listen(ctx)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer := models.Viewer{UID: "stu-1", Role: models.RoleStudent}
		hub.ServeWS(w, r.WithContext(auth.ContextWithViewer(r.Context(), viewer)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_PushesInboxOnConnect(t *testing.T) {
	source := &fakeSource{}
	hub := NewHub(source, newFakeProfiles(), nil, quietLogger())
	conn := dial(t, startServer(t, hub))

	ev := readEvent(t, conn)
	assert.Equal(t, EventInbox, ev.Type)
	require.NotNil(t, ev.Inbox)
	require.Len(t, ev.Inbox.Items, 1)
	assert.Equal(t, "hello stu-1 as student", ev.Inbox.Items[0].Title)
}

func TestHub_RefreshAllPushesAgain(t *testing.T) {
	source := &fakeSource{}
	hub := NewHub(source, newFakeProfiles(), nil, quietLogger())
	conn := dial(t, startServer(t, hub))

	first := readEvent(t, conn)
	require.Equal(t, 1, first.Inbox.UnreadCount)

	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 10*time.Millisecond)
	hub.RefreshAll()

	second := readEvent(t, conn)
	assert.Equal(t, 2, second.Inbox.UnreadCount)
}

func TestHub_RunRefreshesOnMessageChange(t *testing.T) {
	feed := store.NewLocalFeed(quietLogger())
	source := &fakeSource{}
	hub := NewHub(source, newFakeProfiles(), nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx, feedWatcher{feed: feed})

	conn := dial(t, startServer(t, hub))
	readEvent(t, conn)
	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 10*time.Millisecond)

	// Listen registers asynchronously with Run; publish until the push arrives.
	done := make(chan Event, 1)
	go func() {
		var ev Event
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if conn.ReadJSON(&ev) == nil {
			done <- ev
		}
	}()

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-done:
			assert.Equal(t, EventInbox, ev.Type)
			return
		case <-tick.C:
			_ = feed.Publish(ctx, store.ChangeEvent{Collection: "messages", ID: "m2", Type: store.ChangeAdded})
		case <-deadline:
			t.Fatal("no push after message change")
		}
	}
}

func TestHub_SourceErrorSendsErrorFrame(t *testing.T) {
	source := &fakeSource{err: errors.New("store down")}
	hub := NewHub(source, newFakeProfiles(), nil, quietLogger())
	conn := dial(t, startServer(t, hub))

	ev := readEvent(t, conn)
	assert.Equal(t, EventError, ev.Type)
	assert.Nil(t, ev.Inbox)
}

func TestHub_ClosedConnectionUnregisters(t *testing.T) {
	hub := NewHub(&fakeSource{}, newFakeProfiles(), nil, quietLogger())
	conn := dial(t, startServer(t, hub))
	readEvent(t, conn)
	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(&fakeSource{}, newFakeProfiles(), []string{"https://portal.example.com"}, quietLogger())
	srv := startServer(t, hub)

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHub_NoViewerIsUnauthorized(t *testing.T) {
	hub := NewHub(&fakeSource{}, newFakeProfiles(), nil, quietLogger())
	w := httptest.NewRecorder()
	hub.ServeWS(w, httptest.NewRequest("GET", "/ws/inbox", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHub_PushUsesCurrentProfile(t *testing.T) {
	profiles := newFakeProfiles()
	hub := NewHub(&fakeSource{}, profiles, nil, quietLogger())
	conn := dial(t, startServer(t, hub))
	readEvent(t, conn)
	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 10*time.Millisecond)

	profiles.update("stu-1", func(u *models.User) { u.Role = models.RoleDelegate })
	hub.RefreshAll()

	ev := readEvent(t, conn)
	require.Equal(t, EventInbox, ev.Type)
	assert.Equal(t, "hello stu-1 as delegate", ev.Inbox.Items[0].Title)
}

func TestHub_SuspendedAccountIsDisconnected(t *testing.T) {
	profiles := newFakeProfiles()
	hub := NewHub(&fakeSource{}, profiles, nil, quietLogger())
	conn := dial(t, startServer(t, hub))
	readEvent(t, conn)
	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 10*time.Millisecond)

	profiles.update("stu-1", func(u *models.User) { u.IsSuspended = true })
	hub.RefreshAll()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	assert.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RunWatchesEveryCollection(t *testing.T) {
	messages := store.NewLocalFeed(quietLogger())
	users := store.NewLocalFeed(quietLogger())
	source := &fakeSource{}
	hub := NewHub(source, newFakeProfiles(), nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx, feedWatcher{feed: messages}, feedWatcher{feed: users})

	conn := dial(t, startServer(t, hub))
	readEvent(t, conn)
	require.Eventually(t, func() bool { return hub.Connections() == 1 }, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_ = users.Publish(ctx, store.ChangeEvent{Collection: "users", ID: "stu-1", Type: store.ChangeModified})
		return source.calls.Load() >= 2
	}, 2*time.Second, 20*time.Millisecond)
}
