package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/parley/internal/auth"
	"github.com/vovakirdan/parley/internal/config"
	"github.com/vovakirdan/parley/internal/core"
	"github.com/vovakirdan/parley/internal/proto"
	"github.com/vovakirdan/parley/internal/store"
	"github.com/vovakirdan/parley/internal/store/sqlite"
)

type captureMailer struct {
	mu      sync.Mutex
	tokens  map[string]string
	resets  map[string]string
	invites map[string]string
}

func (m *captureMailer) record(into *map[string]string, email, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if *into == nil {
		*into = make(map[string]string)
	}
	(*into)[email] = value
}

func (m *captureMailer) SendVerification(_ context.Context, email, token string) error {
	m.record(&m.tokens, email, token)
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.record(&m.resets, email, token)
	return nil
}

func (m *captureMailer) SendAdminInvitation(_ context.Context, email, invitedBy string) error {
	m.record(&m.invites, email, invitedBy)
	return nil
}

func (m *captureMailer) token(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}

func (m *captureMailer) resetToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets[email]
}

type testEnv struct {
	ts      *httptest.Server
	handler http.Handler
	store   *sqlite.SQLiteStore
	hub     *core.Hub
	auth    *auth.Service
	jwt     *auth.JWTConfig
	mailer  *captureMailer
}

func newTestEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.NewMigrated(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.PingInterval = 0
	cfg.HTTPRateLimit = 1000
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := zerolog.Nop()
	hub := core.NewHub(st, core.NewPresence(), &logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	mailer := &captureMailer{}
	authService := auth.NewService(st, jwtConfig, mailer, true)

	server := NewServer(hub, authService, st, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:      ts,
		handler: server.Handler,
		store:   st,
		hub:     hub,
		auth:    authService,
		jwt:     jwtConfig,
		mailer:  mailer,
	}
}

// seedUser stores a verified user and returns it with a valid token.
func (e *testEnv) seedUser(t *testing.T, first string, role store.Role) (*store.User, string) {
	t.Helper()

	user := &store.User{
		FirstName:    first,
		LastName:     "Test",
		Email:        strings.ToLower(first) + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		IsVerified:   true,
	}
	require.NoError(t, e.store.CreateUser(context.Background(), user))

	token, err := auth.GenerateToken(e.jwt, user.ID, role)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	e.handler.ServeHTTP(resp, req)
	return resp
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, wsURL(e.ts), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + token}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func wsURL(ts *httptest.Server) string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), v), resp.Body.String())
}

type rawOutbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readEvent reads frames until one with the given event name arrives.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, v any) {
	t.Helper()

	for {
		var out rawOutbound
		require.NoError(t, wsjson.Read(ctx, conn, &out), "waiting for %s", event)
		if out.Event != event {
			continue
		}
		if v != nil {
			require.NoError(t, json.Unmarshal(out.Data, v))
		}
		return
	}
}

func sendEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, proto.Inbound{Event: event, Data: payload}))
}
