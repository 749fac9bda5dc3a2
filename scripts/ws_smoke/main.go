package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/parley/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	api := flag.String("api", "http://localhost:8080", "REST base URL")
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	email := flag.String("email", "tester@example.com", "login e-mail")
	password := flag.String("password", "Secret1!", "login password")
	token := flag.String("token", "", "bearer token; skips login when set")
	group := flag.Int64("group", 1, "group id to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *token == "" {
		t, err := login(ctx, *api, *email, *password)
		if err != nil {
			return err
		}
		*token = t
	}

	conn, _, err := websocket.Dial(ctx, *addr, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + *token}},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(event string, data any) error {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", event, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Event: event, Data: raw}); err != nil {
			return fmt.Errorf("send %s: %w", event, err)
		}
		return nil
	}

	if err := send(proto.InboundJoinGroup, proto.GroupData{GroupID: *group}); err != nil {
		return err
	}
	if err := send(proto.InboundGroupMessage, proto.GroupMessageData{GroupID: *group, Content: *text}); err != nil {
		return err
	}

	for {
		var outbound struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("event=%s data=%s\n", outbound.Event, string(outbound.Data))

		switch outbound.Event {
		case proto.EventGroupMessage:
			var msg proto.Message
			if err := json.Unmarshal(outbound.Data, &msg); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("groupMessage: group=%d sender=%d content=%q\n", derefID(msg.GroupID), msg.Sender.ID, msg.Content)
			return nil
		case proto.EventError:
			var e proto.Error
			if err := json.Unmarshal(outbound.Data, &e); err == nil {
				return fmt.Errorf("server error %s: %s", e.Code, e.Message)
			}
		}
	}
}

func login(ctx context.Context, api, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, api+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	return out.Token, nil
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}
