package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/parley/internal/config"
	"github.com/vovakirdan/parley/internal/core"
	"github.com/vovakirdan/parley/internal/proto"
)

const writeTimeout = 10 * time.Second

var (
	errSlowConsumer = errors.New("slow consumer")
	errSessionEnded = errors.New("session ended by server")
)

// WSHandler authenticates the handshake, upgrades the connection and bridges it to core.Client.
type WSHandler struct {
	hub  *core.Hub
	auth Authenticator
	cfg  *config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authenticator Authenticator, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, auth: authenticator, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeJSON(w, stdhttp.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	identity, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("ws handshake rejected")
		writeJSON(w, stdhttp.StatusUnauthorized, ErrorResponse{Error: "authentication failed"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.cfg.AllowedOrigins,
		InsecureSkipVerify: len(h.cfg.AllowedOrigins) == 0,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := core.NewClient(identity, h.cfg.EventBuffer)
	if err := h.hub.Connect(ctx, client); err != nil {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.hub.Disconnect(client)

	errCh := make(chan error, 3)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.pingLoop(ctx, conn)
	}()

	err = <-errCh
	status, reason := closeStatus(err)
	if status == websocket.StatusInternalError {
		h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
	}
	conn.Close(status, reason)
	cancel()
	<-errCh
	<-errCh
}

func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errSlowConsumer):
		return websocket.StatusPolicyViolation, "slow consumer"
	case errors.Is(err, errSessionEnded):
		return websocket.StatusGoingAway, "session closed"
	}
	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return s, "closing"
	case websocket.StatusMessageTooBig:
		return s, "message too big"
	}
	return websocket.StatusInternalError, err.Error()
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.cfg.WSRateLimitPerMinute, time.Minute)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			client.Send(errorEvent(ErrCodeRateLimited, "too many events, slow down"))
			continue
		}

		var inbound proto.Inbound
		if typ != websocket.MessageText || json.Unmarshal(data, &inbound) != nil {
			client.Send(errorEvent(ErrCodeInvalidMessage, "expected a JSON text frame"))
			continue
		}

		cmd, rejected := inboundToCommand(inbound)
		if rejected != nil {
			h.log.Debug().
				Str("client_id", client.ID).
				Str("event", inbound.Event).
				Str("code", rejected.Code).
				Msg("inbound rejected")
			client.Send(&core.Event{Kind: core.EventError, Error: rejected})
			continue
		}
		if err := client.Submit(ctx, cmd); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				if client.Overflowed() {
					h.log.Warn().Str("client_id", client.ID).Msg("event queue overflow, dropping client")
					return errSlowConsumer
				}
				return errSessionEnded
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, outboundFromEvent(event))
			cancel()
			if err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	if h.cfg.PingInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.PingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func errorEvent(code, msg string) *core.Event {
	return &core.Event{Kind: core.EventError, Error: &core.CoreError{Code: code, Message: msg}}
}

func writeJSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
