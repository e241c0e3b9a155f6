package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"widgets/internal/autosave"
	"widgets/internal/config"
	"widgets/internal/db"
	httpx "widgets/internal/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDebounce  = 100 * time.Millisecond
	testIndicator = 30 * time.Millisecond
)

type widgetResp struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type errorResp struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type editEvent struct {
	Type    string      `json:"type"`
	Text    *string     `json:"text"`
	Saving  *bool       `json:"saving"`
	Widget  *widgetResp `json:"widget"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

type testEnv struct {
	srv      *httptest.Server
	sessions *autosave.Manager
	dbPath   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "widgets.db")
	gdb, err := db.Open(db.DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))

	sessions := autosave.NewManager(time.Minute,
		autosave.WithDebounce(testDebounce),
		autosave.WithIndicatorDelay(testIndicator),
	)
	srv := httptest.NewServer(httpx.NewRouter(config.Config{}, gdb, sessions))

	t.Cleanup(func() {
		sessions.CloseAll()
		srv.Close()
		_ = db.Close(gdb)
	})
	return &testEnv{srv: srv, sessions: sessions, dbPath: path}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) create(t *testing.T) widgetResp {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/widgets", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[widgetResp](t, resp)
}

func (e *testEnv) get(t *testing.T, id string) widgetResp {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/widgets/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[widgetResp](t, resp)
}

func (e *testEnv) dial(t *testing.T, id string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/widgets/" + id + "/edit"
	return websocket.DefaultDialer.Dial(url, nil)
}

// readUntil returns the first event of the wanted type, collecting the ones before it.
func readUntil(t *testing.T, conn *websocket.Conn, want string, timeout time.Duration) (editEvent, []editEvent) {
	t.Helper()
	var seen []editEvent
	deadline := time.Now().Add(timeout)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var ev editEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %q event: %v (seen %+v)", want, err, seen)
		}
		if ev.Type == want {
			return ev, seen
		}
		seen = append(seen, ev)
	}
}

// drain reads events until the connection stays quiet for d.
func drain(conn *websocket.Conn, d time.Duration) []editEvent {
	var out []editEvent
	for {
		_ = conn.SetReadDeadline(time.Now().Add(d))
		var ev editEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return out
		}
		out = append(out, ev)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestCreateWidget(t *testing.T) {
	env := newTestEnv(t)

	w := env.create(t)
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, "text", w.Type)
	assert.Equal(t, "", w.Text)
	assert.False(t, w.CreatedAt.IsZero())

	got := env.get(t, w.ID)
	assert.Equal(t, got.CreatedAt.Format(time.RFC3339Nano), w.CreatedAt.Format(time.RFC3339Nano), "createdAt matches the stored value")
	assert.Equal(t, got.UpdatedAt.Format(time.RFC3339Nano), w.UpdatedAt.Format(time.RFC3339Nano))

	resp := env.do(t, http.MethodPost, "/widgets", map[string]any{"type": "TEXT"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateWidgetInvalidType(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/widgets", map[string]any{"type": "INVALID"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_request", decode[errorResp](t, resp).Error.Code)

	list := env.do(t, http.MethodGet, "/widgets", nil)
	assert.Empty(t, decode[[]widgetResp](t, list))
}

func TestListWidgets(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/widgets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]widgetResp](t, resp))

	a := env.create(t)
	b := env.create(t)

	resp = env.do(t, http.MethodGet, "/widgets", nil)
	rows := decode[[]widgetResp](t, resp)
	require.Len(t, rows, 2)
	assert.Equal(t, a.ID, rows[0].ID)
	assert.Equal(t, b.ID, rows[1].ID)
}

func TestUpdateWidget(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	resp := env.do(t, http.MethodPatch, "/widgets/"+w.ID, map[string]any{"text": "Updated text"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[widgetResp](t, resp)
	assert.Equal(t, "Updated text", updated.Text)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	assert.Equal(t, "Updated text", env.get(t, w.ID).Text)
}

func TestUpdateWidgetErrors(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	tests := []struct {
		name     string
		id       string
		body     any
		wantCode int
		wantErr  string
	}{
		{"text too long", w.ID, map[string]any{"text": strings.Repeat("x", 1001)}, http.StatusBadRequest, "bad_request"},
		{"unknown type", w.ID, map[string]any{"type": "chart"}, http.StatusBadRequest, "bad_request"},
		{"malformed id", "nope", map[string]any{"text": "x"}, http.StatusBadRequest, "bad_request"},
		{"missing widget", uuid.NewString(), map[string]any{"text": "x"}, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPatch, "/widgets/"+tt.id, tt.body)
			require.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantErr, decode[errorResp](t, resp).Error.Code)
		})
	}

	assert.Equal(t, "", env.get(t, w.ID).Text)
}

func TestDeleteWidget(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	resp := env.do(t, http.MethodDelete, "/widgets/"+w.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"success": true}, decode[map[string]any](t, resp))

	resp = env.do(t, http.MethodPatch, "/widgets/"+w.ID, map[string]any{"text": "ghost"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, decode[errorResp](t, resp).Error.Message, "widget not found")

	resp = env.do(t, http.MethodDelete, "/widgets/"+w.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, resp, err := env.dial(t, uuid.NewString())
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditAutosavesOnceAfterQuietPeriod(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	conn, _, err := env.dial(t, w.ID)
	require.NoError(t, err)
	defer conn.Close()

	first, _ := readUntil(t, conn, "state", time.Second)
	require.NotNil(t, first.Text)
	assert.Equal(t, "", *first.Text)
	assert.False(t, *first.Saving)

	for _, s := range []string{"H", "He", "Hel", "Hell", "Hello"} {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "set", "text": s}))
	}

	saved, before := readUntil(t, conn, "saved", 2*time.Second)
	require.NotNil(t, saved.Widget)
	assert.Equal(t, "Hello", saved.Widget.Text)

	var sawSaving bool
	for _, ev := range before {
		if ev.Type == "state" && ev.Saving != nil && *ev.Saving {
			sawSaving = true
		}
	}
	assert.True(t, sawSaving, "indicator raised before the commit result")

	rest := drain(conn, 4*testDebounce)
	for _, ev := range rest {
		assert.NotEqual(t, "saved", ev.Type, "exactly one commit per quiet period")
	}

	assert.Equal(t, "Hello", env.get(t, w.ID).Text)
}

func TestEditRevertWithinWindowDoesNotCommit(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	conn, _, err := env.dial(t, w.ID)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "state", time.Second)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "set", "text": "Hello"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "set", "text": ""}))

	events := drain(conn, 4*testDebounce)
	for _, ev := range events {
		assert.NotEqual(t, "saved", ev.Type)
	}

	before := env.get(t, w.ID)
	assert.Equal(t, "", before.Text)
}

func TestEditCommitFailureReportsError(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	conn, _, err := env.dial(t, w.ID)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "state", time.Second)

	long := strings.Repeat("a", 1001)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "set", "text": long}))

	ev, _ := readUntil(t, conn, "error", 2*time.Second)
	assert.Equal(t, "bad_request", ev.Code)

	// the session keeps the rejected buffer; persistence is untouched
	s, ok := env.sessions.Get(w.ID)
	require.True(t, ok)
	assert.Equal(t, long, s.Text())
	assert.Equal(t, "", env.get(t, w.ID).Text)
}

func TestEditResyncReloadsAuthoritativeText(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	conn, _, err := env.dial(t, w.ID)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "state", time.Second)

	resp := env.do(t, http.MethodPatch, "/widgets/"+w.ID, map[string]any{"text": "from elsewhere"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "set", "text": "local draft"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "resync"}))

	ev, _ := readUntil(t, conn, "state", time.Second)
	require.NotNil(t, ev.Text)
	assert.Equal(t, "from elsewhere", *ev.Text)

	for _, ev := range drain(conn, 4*testDebounce) {
		assert.NotEqual(t, "saved", ev.Type, "unsaved local draft was discarded")
	}
	assert.Equal(t, "from elsewhere", env.get(t, w.ID).Text)
}

func TestDeleteClosesEditSession(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	conn, _, err := env.dial(t, w.ID)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "state", time.Second)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "set", "text": "about to vanish"}))

	resp := env.do(t, http.MethodDelete, "/widgets/"+w.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	readUntil(t, conn, "closed", time.Second)
	assert.Eventually(t, func() bool { return env.sessions.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEditSecondConnectionDisplacesFirst(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	first, _, err := env.dial(t, w.ID)
	require.NoError(t, err)
	defer first.Close()
	readUntil(t, first, "state", time.Second)

	second, _, err := env.dial(t, w.ID)
	require.NoError(t, err)
	defer second.Close()
	readUntil(t, second, "state", time.Second)

	readUntil(t, first, "closed", time.Second)
	assert.Equal(t, 1, env.sessions.Len())
}

func TestEditSaveThenClearCommitsEmptyText(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	conn, _, err := env.dial(t, w.ID)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "state", time.Second)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "set", "text": "Hello"}))
	saved, _ := readUntil(t, conn, "saved", 2*time.Second)
	require.NotNil(t, saved.Widget)
	assert.Equal(t, "Hello", saved.Widget.Text)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "set", "text": ""}))
	saved, _ = readUntil(t, conn, "saved", 2*time.Second)
	require.NotNil(t, saved.Widget)
	assert.Equal(t, "", saved.Widget.Text)

	assert.Equal(t, "", env.get(t, w.ID).Text)
}

func TestEditDuringInFlightCommitIsPersisted(t *testing.T) {
	env := newTestEnv(t)
	w := env.create(t)

	conn, _, err := env.dial(t, w.ID)
	require.NoError(t, err)
	defer conn.Close()
	readUntil(t, conn, "state", time.Second)

	// a second connection holds the write lock so the commit blocks
	other, err := db.Open(db.DriverSQLite, env.dbPath)
	require.NoError(t, err)
	defer db.Close(other)
	lock := other.Begin()
	require.NoError(t, lock.Error)
	require.NoError(t, lock.Exec("UPDATE widgets SET text = text WHERE id = ?", w.ID).Error)
	released := false
	defer func() {
		if !released {
			lock.Rollback()
		}
	}()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "set", "text": "Hello"}))
	for {
		ev, _ := readUntil(t, conn, "state", 2*time.Second)
		if ev.Saving != nil && *ev.Saving {
			break
		}
	}

	// cleared back to the text the session started from while "Hello" is blocked
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "set", "text": ""}))
	time.Sleep(3 * testDebounce)

	require.NoError(t, lock.Rollback().Error)
	released = true

	saved, _ := readUntil(t, conn, "saved", 3*time.Second)
	require.NotNil(t, saved.Widget)
	assert.Equal(t, "Hello", saved.Widget.Text)

	saved, _ = readUntil(t, conn, "saved", 3*time.Second)
	require.NotNil(t, saved.Widget)
	assert.Equal(t, "", saved.Widget.Text)

	s, ok := env.sessions.Get(w.ID)
	require.True(t, ok)
	assert.Equal(t, "", s.Text())
	assert.Equal(t, "", s.Baseline())
	assert.Equal(t, "", env.get(t, w.ID).Text)
}
