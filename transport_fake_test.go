package dubtrack

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// fakeTransport is an in-memory Transport for exercising the channel manager
// and the dispatch pipeline without a socket.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	reauths   []string
	channels  map[string]*fakeChannel
	stateSubs []func(ConnState, error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{channels: make(map[string]*fakeChannel)}
}

func (t *fakeTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()
	t.fireState(StateConnected, nil)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.connected = false
	t.mu.Unlock()
	t.fireState(StateDisconnected, nil)
	return nil
}

func (t *fakeTransport) Reauth(ctx context.Context, token string) error {
	t.mu.Lock()
	t.reauths = append(t.reauths, token)
	t.mu.Unlock()
	t.fireState(StateDisconnected, nil)
	t.fireState(StateConnected, nil)
	return nil
}

func (t *fakeTransport) Channel(name string) TransportChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.channels[name]
	if !ok {
		ch = &fakeChannel{name: name, presence: &fakePresence{}}
		t.channels[name] = ch
	}
	return ch
}

func (t *fakeTransport) OnStateChange(fn func(ConnState, error)) (off func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateSubs = append(t.stateSubs, fn)
	return func() {}
}

func (t *fakeTransport) fireState(state ConnState, err error) {
	t.mu.Lock()
	subs := slices.Clone(t.stateSubs)
	t.mu.Unlock()
	for _, fn := range subs {
		fn(state, err)
	}
}

func (t *fakeTransport) channel(name string) *fakeChannel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channels[name]
}

func (t *fakeTransport) reauthTokens() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.reauths...)
}

type fakeChannel struct {
	name     string
	presence *fakePresence

	mu       sync.Mutex
	attaches int
	handlers []func([]byte)
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Attach(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attaches++
	return nil
}

func (c *fakeChannel) Subscribe(fn func([]byte)) (off func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
	return func() {}
}

func (c *fakeChannel) Presence() TransportPresence { return c.presence }

func (c *fakeChannel) attachCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attaches
}

// push feeds a payload to the channel's subscribers as if the server sent it.
func (c *fakeChannel) push(payload map[string]any) {
	raw, _ := json.Marshal(payload)
	c.mu.Lock()
	handlers := slices.Clone(c.handlers)
	c.mu.Unlock()
	for _, fn := range handlers {
		fn(raw)
	}
}

type fakePresence struct {
	mu       sync.Mutex
	enters   int
	handlers []func(string, []byte)
}

func (p *fakePresence) Enter(ctx context.Context, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enters++
	return nil
}

func (p *fakePresence) Subscribe(actions []string, fn func(string, []byte)) (off func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
	return func() {}
}

func (p *fakePresence) enterCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enters
}

func (p *fakePresence) fire(action string, payload []byte) {
	p.mu.Lock()
	handlers := slices.Clone(p.handlers)
	p.mu.Unlock()
	for _, fn := range handlers {
		fn(action, payload)
	}
}
