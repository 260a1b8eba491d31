package socket

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// Channel is one named multiplexed channel. Local subscriber state survives
// reconnects; server-side attachment must be redone by the owner after every
// connect.
type Channel struct {
	client *Client
	name   string

	mu   sync.Mutex
	seq  uint64
	subs map[uint64]func([]byte)

	presence *Presence
}

func newChannel(c *Client, name string) *Channel {
	ch := &Channel{
		client: c,
		name:   name,
		subs:   make(map[uint64]func([]byte)),
	}
	ch.presence = newPresence(ch)
	return ch
}

func (ch *Channel) Name() string { return ch.name }

// Attach announces interest in the channel to the server.
func (ch *Channel) Attach(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ch.client.send(frame{Action: actionAttach, Channel: ch.name})
}

// Detach withdraws the attachment.
func (ch *Channel) Detach(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ch.client.send(frame{Action: actionDetach, Channel: ch.name})
}

// Subscribe registers a handler for message payloads and returns its remover.
func (ch *Channel) Subscribe(fn func(payload []byte)) (off func()) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.seq++
	id := ch.seq
	ch.subs[id] = fn
	return func() {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		delete(ch.subs, id)
	}
}

// Presence returns the channel's presence surface.
func (ch *Channel) Presence() *Presence { return ch.presence }

func (ch *Channel) deliver(payload []byte) {
	ch.mu.Lock()
	subs := make([]func([]byte), 0, len(ch.subs))
	for _, fn := range ch.subs {
		subs = append(subs, fn)
	}
	ch.mu.Unlock()
	for _, fn := range subs {
		fn(payload)
	}
}

// Presence is the membership-visible mode of a channel: entering makes this
// connection show up in other members' enter/leave notifications.
type Presence struct {
	channel *Channel

	mu   sync.Mutex
	seq  uint64
	subs map[uint64]*presenceSub
}

type presenceSub struct {
	actions []string
	fn      func(action string, payload []byte)
}

func newPresence(ch *Channel) *Presence {
	return &Presence{channel: ch, subs: make(map[uint64]*presenceSub)}
}

// Enter announces this connection as a visible member of the channel.
func (p *Presence) Enter(ctx context.Context, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body := map[string]any{"action": "enter"}
	for k, v := range data {
		body[k] = v
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return p.channel.client.send(frame{
		Action:  actionPresence,
		Channel: p.channel.name,
		Data:    raw,
	})
}

// Subscribe registers a handler for the given presence actions and returns
// its remover.
func (p *Presence) Subscribe(actions []string, fn func(action string, payload []byte)) (off func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := p.seq
	p.subs[id] = &presenceSub{actions: slices.Clone(actions), fn: fn}
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *Presence) deliver(action string, payload []byte) {
	p.mu.Lock()
	subs := make([]*presenceSub, 0, len(p.subs))
	for _, sub := range p.subs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()
	for _, sub := range subs {
		if len(sub.actions) == 0 || slices.Contains(sub.actions, action) {
			sub.fn(action, payload)
		}
	}
}
