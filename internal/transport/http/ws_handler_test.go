package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vovakirdan/parley/internal/config"
	"github.com/vovakirdan/parley/internal/core"
	"github.com/vovakirdan/parley/internal/mocks"
	"github.com/vovakirdan/parley/internal/proto"
	"github.com/vovakirdan/parley/internal/store"
)

func newMockedWSServer(t *testing.T, authenticator Authenticator) (*httptest.Server, *core.Hub) {
	t.Helper()

	logger := zerolog.Nop()
	hub := core.NewHub(nil, core.NewPresence(), &logger)
	cfg := config.Default()
	cfg.PingInterval = 0

	ts := httptest.NewServer(NewWSHandler(hub, authenticator, &cfg, &logger))
	t.Cleanup(ts.Close)
	return ts, hub
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestHandshakeWithoutTokenIsRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	authenticator := mocks.NewMockAuthenticator(ctrl)
	authenticator.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Times(0)

	ts, hub := newMockedWSServer(t, authenticator)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, hub.Presence().Count())
}

func TestHandshakeWithInvalidTokenIsRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	authenticator := mocks.NewMockAuthenticator(ctrl)
	authenticator.EXPECT().
		Authenticate(gomock.Any(), "forged").
		Return(core.Identity{}, errors.New("bad signature")).
		Times(1)

	ts, hub := newMockedWSServer(t, authenticator)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL(ts), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer forged"}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, hub.Presence().Count())
}

func TestHandshakeAcceptsQueryToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	authenticator := mocks.NewMockAuthenticator(ctrl)
	authenticator.EXPECT().
		Authenticate(gomock.Any(), "browser-token").
		Return(core.Identity{ID: 7, FirstName: "Ada", Role: store.RoleUser, Verified: true}, nil).
		Times(1)

	ts, hub := newMockedWSServer(t, authenticator)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(ts)+"?token=browser-token", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var online []int64
	readEvent(t, ctx, conn, proto.EventOnlineUsers, &online)
	require.Equal(t, []int64{7}, online)
	require.True(t, hub.Presence().IsOnline(7))
}

func TestPrivateMessageOverWebSocket(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.seedUser(t, "Alice", store.RoleUser)
	bob, bobToken := env.seedUser(t, "Bob", store.RoleUser)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bobConn := env.dial(t, ctx, bobToken)
	readEvent(t, ctx, bobConn, proto.EventOnlineUsers, nil)

	aliceConn := env.dial(t, ctx, aliceToken)
	var cameOnline int64
	readEvent(t, ctx, bobConn, proto.EventUserOnline, &cameOnline)
	require.Equal(t, alice.ID, cameOnline)

	sendEvent(t, ctx, aliceConn, proto.InboundPrivateMessage, proto.PrivateMessageData{RecipientID: bob.ID, Content: "hi bob"})

	var ack proto.Message
	readEvent(t, ctx, aliceConn, proto.EventMessageSent, &ack)
	require.Equal(t, "hi bob", ack.Content)
	require.Equal(t, bob.ID, *ack.RecipientID)
	require.Nil(t, ack.GroupID)

	var got proto.Message
	readEvent(t, ctx, bobConn, proto.EventPrivateMessage, &got)
	require.Equal(t, ack.ID, got.ID)
	require.Equal(t, proto.User{ID: alice.ID, FirstName: "Alice", LastName: "Test"}, got.Sender)
}

func TestGroupFlowOverWebSocket(t *testing.T) {
	env := newTestEnv(t)
	owner, ownerToken := env.seedUser(t, "Owner", store.RoleUser)
	carol, carolToken := env.seedUser(t, "Carol", store.RoleUser)

	group := &store.Group{Name: "gophers", CreatorID: owner.ID}
	require.NoError(t, env.store.CreateGroup(context.Background(), group))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ownerConn := env.dial(t, ctx, ownerToken)
	sendEvent(t, ctx, ownerConn, proto.InboundJoinGroup, proto.GroupData{GroupID: group.ID})
	readEvent(t, ctx, ownerConn, proto.EventJoinedGroup, nil)

	carolConn := env.dial(t, ctx, carolToken)
	sendEvent(t, ctx, carolConn, proto.InboundJoinGroup, proto.GroupData{GroupID: group.ID})

	var joined proto.GroupMember
	readEvent(t, ctx, ownerConn, proto.EventUserJoinedGroup, &joined)
	require.Equal(t, group.ID, joined.GroupID)
	require.Equal(t, carol.ID, joined.User.ID)

	var ack proto.GroupAck
	readEvent(t, ctx, carolConn, proto.EventJoinedGroup, &ack)
	require.Equal(t, proto.GroupAck{GroupID: group.ID, Name: "gophers"}, ack)

	sendEvent(t, ctx, carolConn, proto.InboundGroupMessage, proto.GroupMessageData{GroupID: group.ID, Content: "hello"})

	var msg proto.Message
	readEvent(t, ctx, ownerConn, proto.EventGroupMessage, &msg)
	require.Equal(t, "hello", msg.Content)
	require.Equal(t, group.ID, *msg.GroupID)

	sendEvent(t, ctx, ownerConn, proto.InboundLeaveGroup, proto.GroupData{GroupID: group.ID})
	var failure proto.Error
	readEvent(t, ctx, ownerConn, proto.EventError, &failure)
	require.Equal(t, core.ErrCodeForbidden, failure.Code)
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := env.seedUser(t, "Alice", store.RoleUser)
	bob, _ := env.seedUser(t, "Bob", store.RoleUser)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, aliceToken)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))

	var failure proto.Error
	readEvent(t, ctx, conn, proto.EventError, &failure)
	require.Equal(t, ErrCodeInvalidMessage, failure.Code)

	sendEvent(t, ctx, conn, "shout", map[string]string{"content": "hey"})
	readEvent(t, ctx, conn, proto.EventError, &failure)
	require.Equal(t, ErrCodeInvalidMessage, failure.Code)

	sendEvent(t, ctx, conn, proto.InboundJoinGroup, map[string]int{})
	readEvent(t, ctx, conn, proto.EventError, &failure)
	require.Equal(t, core.ErrCodeValidationFailed, failure.Code)

	sendEvent(t, ctx, conn, proto.InboundPrivateMessage, proto.PrivateMessageData{RecipientID: bob.ID, Content: "still here"})
	readEvent(t, ctx, conn, proto.EventMessageSent, nil)
}

func TestWebSocketRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.WSRateLimitPerMinute = 1 })
	_, aliceToken := env.seedUser(t, "Alice", store.RoleUser)
	bob, _ := env.seedUser(t, "Bob", store.RoleUser)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(t, ctx, aliceToken)
	data := proto.PrivateMessageData{RecipientID: bob.ID, Content: "spam"}
	sendEvent(t, ctx, conn, proto.InboundPrivateMessage, data)
	sendEvent(t, ctx, conn, proto.InboundPrivateMessage, data)

	var failure proto.Error
	readEvent(t, ctx, conn, proto.EventError, &failure)
	require.Equal(t, ErrCodeRateLimited, failure.Code)
}

func TestDisconnectBroadcastsOffline(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.seedUser(t, "Alice", store.RoleUser)
	_, bobToken := env.seedUser(t, "Bob", store.RoleUser)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bobConn := env.dial(t, ctx, bobToken)
	readEvent(t, ctx, bobConn, proto.EventOnlineUsers, nil)

	aliceConn, _, err := websocket.Dial(ctx, wsURL(env.ts), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + aliceToken}},
	})
	require.NoError(t, err)
	readEvent(t, ctx, bobConn, proto.EventUserOnline, nil)

	require.NoError(t, aliceConn.Close(websocket.StatusNormalClosure, "bye"))

	var wentOffline int64
	readEvent(t, ctx, bobConn, proto.EventUserOffline, &wentOffline)
	require.Equal(t, alice.ID, wentOffline)
	require.False(t, env.hub.Presence().IsOnline(alice.ID))
}
