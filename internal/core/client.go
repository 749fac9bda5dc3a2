package core

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// DefaultEventBuffer is the outbound queue size used when none is configured.
const DefaultEventBuffer = 64

// ErrClientClosed is returned when submitting to a disconnected client.
var ErrClientClosed = errors.New("client closed")

// Client is a live connection as seen by the core layer.
// One identity may own several clients.
type Client struct {
	ID       string
	Identity Identity
	Commands chan *Command
	Events   chan *Event

	mu       sync.Mutex
	closed   bool
	overflow bool

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewClient constructs a client with a fresh handle and bounded queues.
func NewClient(identity Identity, eventBuffer int) *Client {
	if eventBuffer <= 0 {
		eventBuffer = DefaultEventBuffer
	}
	return &Client{
		ID:       uuid.NewString(),
		Identity: identity,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, eventBuffer),
		done:     make(chan struct{}),
	}
}

// Send enqueues an event without blocking. A client whose queue is full is cut
// off: its queue is closed so the transport drops the connection.
func (c *Client) Send(ev *Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		c.overflow = true
		c.closed = true
		close(c.Events)
		return false
	}
}

// Submit queues a command for the client's loop.
func (c *Client) Submit(ctx context.Context, cmd *Command) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.Commands <- cmd:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Overflowed reports whether the client was cut off for falling behind.
func (c *Client) Overflowed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overflow
}

// Done is closed once the client's command loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) closeEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Events)
	}
}
