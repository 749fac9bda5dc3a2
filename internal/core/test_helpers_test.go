package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/parley/internal/store"
	"github.com/vovakirdan/parley/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// drainEvents returns whatever is queued right now without waiting.
func drainEvents(ch <-chan *Event) []*Event {
	var out []*Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countKind(events []*Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func newTestHub(t testing.TB) (*Hub, *sqlite.SQLiteStore) {
	t.Helper()

	st, err := sqlite.NewMigrated(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	return NewHub(st, NewPresence(), &logger), st
}

func seedIdentity(t testing.TB, st store.Store, first string) Identity {
	t.Helper()

	u := &store.User{
		FirstName:    first,
		LastName:     "Test",
		Email:        strings.ToLower(first) + "@example.com",
		PasswordHash: "hash",
		IsVerified:   true,
	}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return IdentityFromUser(u)
}

func seedGroup(t testing.TB, st store.Store, name string, creator Identity) *store.Group {
	t.Helper()

	g := &store.Group{Name: name, CreatorID: creator.ID}
	require.NoError(t, st.CreateGroup(context.Background(), g))
	return g
}

func connect(t *testing.T, ctx context.Context, hub *Hub, identity Identity) *Client {
	t.Helper()

	c := NewClient(identity, 0)
	require.NoError(t, hub.Connect(ctx, c))
	t.Cleanup(func() { hub.Disconnect(c) })
	return c
}
