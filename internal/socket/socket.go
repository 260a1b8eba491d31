// Package socket implements the realtime transport on a gorilla websocket
// connection: channel multiplexing, presence frames, reconnect with
// exponential backoff, and credential swaps.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateFailed
)

// ErrNotConnected is returned by operations that need a live connection.
var ErrNotConnected = errors.New("socket: not connected")

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 25 * time.Second
	maxReconnectWindow      = 2 * time.Minute
)

// Config configures the transport. Token is read at every dial so a
// credential swap picks up the current session token.
type Config struct {
	URL              string
	Token            func() string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	Logger           *zap.SugaredLogger
}

// frame is the wire envelope: every payload travels on a named channel.
type frame struct {
	Action  string          `json:"action"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

const (
	actionAttach   = "attach"
	actionDetach   = "detach"
	actionMessage  = "message"
	actionPresence = "presence"
)

// Client is the websocket transport.
type Client struct {
	cfg Config
	log *zap.SugaredLogger

	mu        sync.Mutex
	conn      *websocket.Conn
	connID    string
	connected bool
	closed    bool
	token     string
	channels  map[string]*Channel
	stateSeq  uint64
	stateSubs map[uint64]func(State, error)
	readDone  chan struct{}

	// dialMu serializes dials from Connect, Reauth, and the reconnect loop,
	// so two callers can never race a second live connection into place.
	dialMu sync.Mutex

	writeMu sync.Mutex
}

func New(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = defaultPingInterval
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		cfg:       cfg,
		log:       log,
		channels:  make(map[string]*Channel),
		stateSubs: make(map[uint64]func(State, error)),
	}
}

// Connect dials the service and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.closed = false
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		return err
	}
	c.setState(StateConnected, nil)
	return nil
}

// Close shuts the connection down for good; no reconnect is attempted.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Reauth swaps the socket credentials. On a live connection it drops the
// connection and redials with the new token; while disconnected it only
// stores the token for the next dial.
func (c *Client) Reauth(ctx context.Context, token string) error {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	c.token = token
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil
	}
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	conn.Close()
	c.setState(StateDisconnected, nil)

	if err := c.dial(ctx); err != nil {
		return err
	}
	c.setState(StateConnected, nil)
	return nil
}

// OnStateChange registers a lifecycle callback and returns its remover.
func (c *Client) OnStateChange(fn func(State, error)) (off func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateSeq++
	id := c.stateSeq
	c.stateSubs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateSubs, id)
	}
}

// Channel returns the channel with the given name, creating its local state
// on first use. Subscriptions survive reconnects; attachment does not.
func (c *Client) Channel(name string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[name]
	if !ok {
		ch = newChannel(c, name)
		c.channels[name] = ch
	}
	return ch
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token
	}
	if c.cfg.Token != nil {
		return c.cfg.Token()
	}
	return ""
}

func (c *Client) dial(ctx context.Context) error {
	target, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("socket: invalid URL %q: %w", c.cfg.URL, err)
	}
	query := target.Query()
	query.Set("connectionId", uuid.NewString())
	if token := c.currentToken(); token != "" {
		query.Set("access_token", token)
	}
	target.RawQuery = query.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return fmt.Errorf("socket: dial failed: %w", err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.connID = query.Get("connectionId")
	c.connected = true
	c.readDone = done
	c.mu.Unlock()

	c.log.Debugw("socket connected", "connectionId", query.Get("connectionId"))

	go c.readLoop(conn, done)
	go c.pingLoop(conn, done)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(conn, err)
			return
		}
		c.route(payload)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.HandshakeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) handleReadError(conn *websocket.Conn, err error) {
	c.mu.Lock()
	stale := c.conn != conn
	closed := c.closed
	if !stale {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()

	// Either Close or Reauth already replaced this connection.
	if stale {
		return
	}
	if closed {
		c.setState(StateDisconnected, nil)
		return
	}

	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.log.Warnw("socket read failed", "error", err)
	}
	c.setState(StateDisconnected, err)
	c.reconnect()
}

func (c *Client) reconnect() {
	operation := func() (bool, error) {
		c.dialMu.Lock()
		defer c.dialMu.Unlock()

		c.mu.Lock()
		closed := c.closed
		connected := c.connected
		c.mu.Unlock()
		if closed {
			return false, backoff.Permanent(errors.New("socket: closed"))
		}
		// Connect or Reauth got there first.
		if connected {
			return false, nil
		}
		if err := c.dial(context.Background()); err != nil {
			return false, err
		}
		return true, nil
	}

	dialed, err := backoff.Retry(context.Background(), operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxReconnectWindow),
	)
	if err != nil {
		c.log.Errorw("socket reconnect exhausted", "error", err)
		c.setState(StateFailed, err)
		return
	}
	if dialed {
		c.setState(StateConnected, nil)
	}
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	subs := make([]func(State, error), 0, len(c.stateSubs))
	for _, fn := range c.stateSubs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()
	for _, fn := range subs {
		fn(state, err)
	}
}

// route demuxes one inbound frame to its channel's subscribers.
func (c *Client) route(payload []byte) {
	parsed := gjson.ParseBytes(payload)
	action := parsed.Get("action").String()
	name := parsed.Get("channel").String()
	if name == "" {
		c.log.Debugw("dropping frame without channel", "action", action)
		return
	}

	c.mu.Lock()
	ch := c.channels[name]
	c.mu.Unlock()
	if ch == nil {
		return
	}

	data := []byte(parsed.Get("data").Raw)
	switch action {
	case actionPresence:
		presenceAction := gjson.GetBytes(data, "action").String()
		ch.presence.deliver(presenceAction, data)
	default:
		ch.deliver(data)
	}
}

func (c *Client) send(f frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(f)
}
