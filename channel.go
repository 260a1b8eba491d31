package dubtrack

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type channelKind int

const (
	channelRoom channelKind = iota
	channelUser
)

// channelSub is one registered channel subscription and its teardown hooks.
type channelSub struct {
	name        string
	kind        channelKind
	roomID      string
	attached    bool
	offMessage  func()
	offPresence func()
}

// roomResolver resolves a room id or URL slug to the full room through the
// facade, so channel names are always derived from the canonical identifier.
type roomResolver func(ctx context.Context, idOrSlug string) (*Room, error)

// channelManager owns the channel subscription set: per-room presence
// channels and the authenticated user's notification channel. It re-attaches
// everything after a reconnect and feeds every inbound payload to the
// pipeline.
type channelManager struct {
	transport   Transport
	pipeline    *pipeline
	resolveRoom roomResolver
	// token reads the current session token at transition time.
	token func() string

	mu         sync.Mutex
	subs       map[string]*channelSub
	connected  bool
	identityID string
	attachCtx  context.Context
	attachStop context.CancelFunc

	log *zap.SugaredLogger
}

func newChannelManager(transport Transport, pipeline *pipeline, resolveRoom roomResolver, token func() string, log *zap.SugaredLogger) *channelManager {
	m := &channelManager{
		transport:   transport,
		pipeline:    pipeline,
		resolveRoom: resolveRoom,
		token:       token,
		subs:        make(map[string]*channelSub),
		log:         log,
	}
	m.transport.OnStateChange(m.onStateChange)

	// Login and logout transitions trigger a socket credential refresh; the
	// transition is the trigger, not a polled flag.
	m.pipeline.emitter.On(EventLogin, func(*Event) { m.refreshCredentials() })
	m.pipeline.emitter.On(EventLogout, func(*Event) { m.refreshCredentials() })
	return m
}

func (m *channelManager) onStateChange(state ConnState, err error) {
	switch state {
	case StateConnected:
		m.mu.Lock()
		m.connected = true
		m.attachCtx, m.attachStop = context.WithCancel(context.Background())
		ctx := m.attachCtx
		subs := make([]*channelSub, 0, len(m.subs))
		for _, sub := range m.subs {
			subs = append(subs, sub)
		}
		identity := m.identityID
		m.mu.Unlock()

		for _, sub := range subs {
			if attachErr := m.attach(ctx, sub); attachErr != nil {
				m.pipeline.emitError(fmt.Errorf("reattach %s: %w", sub.name, attachErr))
			}
		}
		if identity != "" {
			m.ensureUserChannel(ctx, identity)
		}
		m.pipeline.Push(RawEvent{"type": EventConnected})

	case StateDisconnected:
		m.mu.Lock()
		m.connected = false
		if m.attachStop != nil {
			// Cancels pending re-attachments; already-dispatched listener
			// callbacks are unaffected.
			m.attachStop()
			m.attachStop = nil
		}
		for _, sub := range m.subs {
			m.detachLocked(sub)
		}
		m.mu.Unlock()
		m.pipeline.Push(RawEvent{"type": EventDisconnected})

	case StateFailed:
		m.mu.Lock()
		m.connected = false
		m.mu.Unlock()
		raw := RawEvent{"type": EventFailed}
		if err != nil {
			raw["error"] = err.Error()
		}
		m.pipeline.Push(raw)
	}
}

// JoinRoom subscribes to a room's presence channel. The room may be named by
// id or URL slug; the canonical id is resolved through the facade first.
// Fails immediately, without touching the transport, when the identifier is
// empty or the transport is disconnected.
func (m *channelManager) JoinRoom(ctx context.Context, idOrSlug string) (*Room, error) {
	if idOrSlug == "" {
		return nil, ErrMissingRoomID
	}
	m.mu.Lock()
	connected := m.connected
	m.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}

	room, err := m.resolveRoom(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}

	name := room.RealTimeChannel
	if name == "" {
		name = fmt.Sprintf("room:%s", room.ID)
	}

	m.mu.Lock()
	if existing, ok := m.subs[name]; ok && existing.attached {
		m.mu.Unlock()
		return room, nil
	}
	sub := &channelSub{name: name, kind: channelRoom, roomID: room.ID}
	m.subs[name] = sub
	m.mu.Unlock()

	if err := m.attach(ctx, sub); err != nil {
		m.mu.Lock()
		delete(m.subs, name)
		m.mu.Unlock()
		return nil, err
	}

	m.pipeline.Push(RawEvent{"type": EventJoin, "roomid": room.ID, "roomUrl": room.Slug})
	return room, nil
}

// LeaveRoom tears down the room's channel subscription.
func (m *channelManager) LeaveRoom(roomID string) error {
	if roomID == "" {
		return ErrMissingRoomID
	}
	m.mu.Lock()
	var found *channelSub
	for name, sub := range m.subs {
		if sub.kind == channelRoom && sub.roomID == roomID {
			found = sub
			delete(m.subs, name)
			break
		}
	}
	if found != nil {
		m.detachLocked(found)
	}
	m.mu.Unlock()

	if found == nil {
		return ErrNotInRoom
	}
	m.pipeline.Push(RawEvent{"type": EventLeave, "roomid": roomID})
	return nil
}

// setIdentity records the authenticated user. The user's own notification
// channel is subscribed once both the socket is connected and the identity is
// known, in either order.
func (m *channelManager) setIdentity(userID string) {
	m.mu.Lock()
	m.identityID = userID
	connected := m.connected
	ctx := m.attachCtx
	m.mu.Unlock()

	if userID != "" && connected && ctx != nil {
		m.ensureUserChannel(ctx, userID)
	}
}

func (m *channelManager) ensureUserChannel(ctx context.Context, userID string) {
	name := fmt.Sprintf("user:%s", userID)

	m.mu.Lock()
	if existing, ok := m.subs[name]; ok && existing.attached {
		m.mu.Unlock()
		return
	}
	sub := &channelSub{name: name, kind: channelUser}
	m.subs[name] = sub
	m.mu.Unlock()

	if err := m.attach(ctx, sub); err != nil {
		m.pipeline.emitError(fmt.Errorf("user channel %s: %w", name, err))
	}
}

func (m *channelManager) attach(ctx context.Context, sub *channelSub) error {
	ch := m.transport.Channel(sub.name)
	if err := ch.Attach(ctx); err != nil {
		return err
	}

	offMessage := ch.Subscribe(m.handleMessage)

	var offPresence func()
	if sub.kind == channelRoom {
		if presence := ch.Presence(); presence != nil {
			if err := presence.Enter(ctx, nil); err != nil {
				offMessage()
				return err
			}
			offPresence = presence.Subscribe([]string{"enter", "leave"}, m.handlePresence)
		}
	}

	m.mu.Lock()
	sub.attached = true
	sub.offMessage = offMessage
	sub.offPresence = offPresence
	m.mu.Unlock()
	return nil
}

func (m *channelManager) detachLocked(sub *channelSub) {
	if sub.offMessage != nil {
		sub.offMessage()
		sub.offMessage = nil
	}
	if sub.offPresence != nil {
		sub.offPresence()
		sub.offPresence = nil
	}
	sub.attached = false
}

func (m *channelManager) handleMessage(payload []byte) {
	var raw RawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		m.log.Warnw("dropping malformed channel payload", "error", err)
		return
	}
	m.pipeline.Push(raw)
}

// handlePresence injects presence notifications into the pipeline. Payloads
// without an explicit type tag become events of the internal "presence" type.
func (m *channelManager) handlePresence(action string, payload []byte) {
	raw := RawEvent{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &raw); err != nil {
			m.log.Warnw("dropping malformed presence payload", "error", err)
			return
		}
	}
	if _, tagged := raw["type"]; !tagged {
		raw["type"] = EventPresence
		raw["action"] = action
	}
	m.pipeline.Push(raw)
}

func (m *channelManager) refreshCredentials() {
	if err := m.transport.Reauth(context.Background(), m.token()); err != nil {
		m.pipeline.emitError(fmt.Errorf("refreshing socket credentials: %w", err))
	}
}
