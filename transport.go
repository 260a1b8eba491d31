package dubtrack

import (
	"context"

	"github.com/DaniilShev/dubtrack-go/internal/socket"
)

// ConnState is the realtime transport's connection state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnected
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return EventConnected
	case StateFailed:
		return EventFailed
	default:
		return EventDisconnected
	}
}

// Transport is the socket layer the channel manager drives. Connection,
// reconnect and backoff mechanics belong to the implementation; the library
// only needs channels, presence and credential swaps.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Channel(name string) TransportChannel
	OnStateChange(fn func(state ConnState, err error)) (off func())
	// Reauth swaps the socket credentials: disconnect, replace token,
	// reconnect.
	Reauth(ctx context.Context, token string) error
}

// TransportChannel is one named channel on the transport.
type TransportChannel interface {
	Name() string
	Attach(ctx context.Context) error
	Subscribe(fn func(payload []byte)) (off func())
	// Presence returns nil for channels without presence capability.
	Presence() TransportPresence
}

// TransportPresence is the membership-visible mode of a presence channel.
type TransportPresence interface {
	Enter(ctx context.Context, data map[string]any) error
	Subscribe(actions []string, fn func(action string, payload []byte)) (off func())
}

// socketTransport adapts the gorilla-websocket client in internal/socket to
// the Transport boundary.
type socketTransport struct {
	c *socket.Client
}

func newSocketTransport(c *socket.Client) Transport {
	return &socketTransport{c: c}
}

func (t *socketTransport) Connect(ctx context.Context) error { return t.c.Connect(ctx) }

func (t *socketTransport) Close() error { return t.c.Close() }

func (t *socketTransport) Reauth(ctx context.Context, token string) error {
	return t.c.Reauth(ctx, token)
}

func (t *socketTransport) Channel(name string) TransportChannel {
	return &socketChannel{ch: t.c.Channel(name)}
}

func (t *socketTransport) OnStateChange(fn func(ConnState, error)) (off func()) {
	return t.c.OnStateChange(func(s socket.State, err error) {
		switch s {
		case socket.StateConnected:
			fn(StateConnected, err)
		case socket.StateFailed:
			fn(StateFailed, err)
		default:
			fn(StateDisconnected, err)
		}
	})
}

type socketChannel struct {
	ch *socket.Channel
}

func (c *socketChannel) Name() string { return c.ch.Name() }

func (c *socketChannel) Attach(ctx context.Context) error { return c.ch.Attach(ctx) }

func (c *socketChannel) Subscribe(fn func([]byte)) (off func()) {
	return c.ch.Subscribe(fn)
}

func (c *socketChannel) Presence() TransportPresence {
	p := c.ch.Presence()
	if p == nil {
		return nil
	}
	return &socketPresence{p: p}
}

type socketPresence struct {
	p *socket.Presence
}

func (s *socketPresence) Enter(ctx context.Context, data map[string]any) error {
	return s.p.Enter(ctx, data)
}

func (s *socketPresence) Subscribe(actions []string, fn func(string, []byte)) (off func()) {
	return s.p.Subscribe(actions, fn)
}
