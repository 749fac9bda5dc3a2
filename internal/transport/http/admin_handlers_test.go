package http

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/parley/internal/store"
)

func TestAdminListAndGetUsers(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seedUser(t, "Boss", store.RoleAdmin)
	for _, name := range []string{"Ann", "Ben", "Cat"} {
		env.seedUser(t, name, store.RoleUser)
	}

	resp := env.do(t, http.MethodGet, "/api/admin/users?page=2&limit=3", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var page UserPageResponse
	decodeBody(t, resp, &page)
	require.Equal(t, Pagination{Total: 4, Page: 2, Pages: 2}, page.Pagination)
	require.Len(t, page.Users, 1)
	require.Equal(t, "Cat", page.Users[0].FirstName)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/admin/users/%d", page.Users[0].ID), adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.do(t, http.MethodGet, "/api/admin/users/9999", adminToken, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAdminUserRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.seedUser(t, "Plain", store.RoleUser)

	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/admin/users", userToken, nil).Code)
	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, "/api/admin/users/1", userToken, nil).Code)
}

func TestAdminCreatesAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seedUser(t, "Boss", store.RoleAdmin)

	req := SignupRequest{FirstName: "Second", LastName: "Admin", Email: "second@example.com", Password: "Adm1n!pw"}
	resp := env.do(t, http.MethodPost, "/api/admin/users", adminToken, req)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var created UserResponse
	decodeBody(t, resp, &created)
	require.Equal(t, store.RoleAdmin, created.Role)
	require.True(t, created.IsVerified)

	resp = env.do(t, http.MethodPost, "/api/admin/users", adminToken, req)
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: "second@example.com", Password: "Adm1n!pw"})
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestAdminUpdatesUserRole(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seedUser(t, "Boss", store.RoleAdmin)
	user, userToken := env.seedUser(t, "Plain", store.RoleUser)
	path := fmt.Sprintf("/api/admin/users/%d", user.ID)

	resp := env.do(t, http.MethodPut, path, adminToken, UpdateUserRequest{FirstName: "Plain", LastName: "Test", Role: "root"})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodPut, path, adminToken, UpdateUserRequest{FirstName: "Plain", LastName: "Test", Role: store.RoleAdmin})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	// Roles are resolved per request, so the old token now passes the admin gate.
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/stats", userToken, nil).Code)

	resp = env.do(t, http.MethodPut, "/api/admin/users/9999", adminToken, UpdateUserRequest{FirstName: "No", LastName: "One", Role: store.RoleUser})
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAdminDeleteUserDropsLiveConnections(t *testing.T) {
	env := newTestEnv(t)
	admin, adminToken := env.seedUser(t, "Boss", store.RoleAdmin)
	victim, victimToken := env.seedUser(t, "Gone", store.RoleUser)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	conn := env.dial(t, ctx, victimToken)
	readEvent(t, ctx, conn, "onlineUsers", nil)

	resp := env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", admin.ID), adminToken, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", victim.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	for {
		_, _, err := conn.Read(ctx)
		if err != nil {
			require.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
			break
		}
	}
	require.False(t, env.hub.Presence().IsOnline(victim.ID))

	require.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/users/profile", victimToken, nil).Code)
	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", victim.ID), adminToken, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
