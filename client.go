// Package dubtrack is a client for the Dubtrack real-time media-room
// service: REST operations for rooms, users, playlists, chat and
// conversations, plus a normalized WebSocket event stream.
package dubtrack

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/DaniilShev/dubtrack-go/internal/requestconfig"
	"github.com/DaniilShev/dubtrack-go/internal/socket"
	"github.com/DaniilShev/dubtrack-go/option"
)

// Client is the façade over the REST API and the realtime event stream.
type Client struct {
	Options []option.RequestOption

	Room         *RoomService
	User         *UserService
	Playlist     *PlaylistService
	Chat         *ChatService
	Conversation *ConversationService

	pipeline  *pipeline
	auth      *authCoordinator
	channels  *channelManager
	transport Transport
	log       *zap.SugaredLogger

	mu        sync.Mutex
	token     string
	username  string
	password  string
	autoLogin bool
	autoJoin  bool
	rooms     []string

	closeOnce sync.Once
}

func DefaultClientOptions() []option.RequestOption {
	var defaults []option.RequestOption
	if o, ok := os.LookupEnv("DUBTRACK_BASE_URL"); ok {
		defaults = append(defaults, option.WithBaseURL(o))
	}
	return defaults
}

// NewClient builds a client backed by the real websocket transport. Auto
// login, when configured, happens on Connect rather than here, so
// construction never touches the network.
func NewClient(opts ...option.RequestOption) *Client {
	return newClient(nil, opts...)
}

func newClient(transport Transport, opts ...option.RequestOption) *Client {
	opts = append(DefaultClientOptions(), opts...)

	// Probe config: apply the options once to read the client-level settings.
	probe, err := requestconfig.NewRequestConfig(context.Background(), http.MethodGet, "", nil, nil, opts...)
	if err != nil {
		probe = &requestconfig.RequestConfig{Logger: zap.NewNop().Sugar()}
	}

	c := &Client{
		log:       probe.Logger,
		token:     probe.AuthToken,
		username:  probe.Username,
		password:  probe.Password,
		autoLogin: probe.AutoLogin,
		autoJoin:  probe.AutoJoin,
		rooms:     probe.Rooms,
	}

	// Dynamic options evaluated per request: current session token and the
	// unauthorized hook feeding the session coordinator.
	dynamic := option.RequestOptionFunc(func(r *requestconfig.RequestConfig) error {
		if t := c.currentToken(); t != "" {
			r.AuthToken = t
		}
		r.OnAccessDenied = c.handleAccessDenied
		return nil
	})
	c.Options = append(slices.Clip(opts), dynamic)

	c.pipeline = newPipeline(c.resolveUser, probe.OnlyFirstMatch, probe.Raw, c.log)
	c.auth = newAuthCoordinator(c.pipeline, c.log)

	c.Room = NewRoomService(c.Options...)
	c.Room.resolveUser = c.resolveUser
	c.User = NewUserService(c.Options...)
	c.Playlist = NewPlaylistService(c.Options...)
	c.Chat = NewChatService(c.Options...)
	c.Conversation = NewConversationService(c.Options...)
	c.Conversation.resolveUser = c.resolveUser

	if transport == nil {
		transport = newSocketTransport(socket.New(socket.Config{
			URL:    websocketURL(probe),
			Token:  c.currentToken,
			Logger: c.log,
		}))
	}
	c.transport = transport
	c.channels = newChannelManager(c.transport, c.pipeline, c.resolveRoom, c.currentToken, c.log)

	if c.autoJoin {
		c.pipeline.emitter.On(EventConnected, func(*Event) {
			rooms := slices.Clone(c.rooms)
			go c.joinConfiguredRooms(rooms)
		})
	}

	go c.pipeline.Run()
	return c
}

// websocketURL converts the effective base URL to its ws(s) counterpart.
func websocketURL(cfg *requestconfig.RequestConfig) string {
	base := cfg.DefaultBaseURL
	if cfg.BaseURL != nil {
		base = cfg.BaseURL
	}
	if base == nil {
		return ""
	}
	wsURL := base.String()
	if after, ok := strings.CutPrefix(wsURL, "https://"); ok {
		wsURL = "wss://" + after
	} else if after, ok := strings.CutPrefix(wsURL, "http://"); ok {
		wsURL = "ws://" + after
	}
	return strings.TrimSuffix(wsURL, "/") + "/ws"
}

// Connect establishes the realtime connection, performing the configured
// auto login first.
func (c *Client) Connect(ctx context.Context) error {
	if c.autoLogin && !c.auth.isLoggedIn() {
		if _, err := c.Login(ctx); err != nil {
			return fmt.Errorf("auto login: %w", err)
		}
	}
	return c.transport.Connect(ctx)
}

// Close shuts down the transport and the dispatch pipeline.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.transport.Close()
		c.pipeline.Close()
	})
	return err
}

// JoinRoom subscribes to a room's presence channel by id or URL slug.
func (c *Client) JoinRoom(ctx context.Context, idOrSlug string) (*Room, error) {
	return c.channels.JoinRoom(ctx, idOrSlug)
}

// LeaveRoom tears down a room channel subscription.
func (c *Client) LeaveRoom(roomID string) error {
	return c.channels.LeaveRoom(roomID)
}

// On registers a listener for the exact event type name; the returned
// function removes it.
func (c *Client) On(name string, fn Handler) (off func()) {
	return c.pipeline.emitter.On(name, fn)
}

// Once registers a listener removed after its first invocation.
func (c *Client) Once(name string, fn Handler) (off func()) {
	return c.pipeline.emitter.Once(name, fn)
}

// OnMatch registers a pattern listener matched against event type strings.
// Registering an equal pattern again replaces the previous callback.
func (c *Client) OnMatch(re *regexp.Regexp, fn Handler) {
	c.pipeline.patterns.add(re, fn)
}

// OffMatch removes the pattern listener equal to re. The pattern may be a
// distinct object with the same source; removing an unknown pattern is a
// no-op.
func (c *Client) OffMatch(re *regexp.Regexp) {
	c.pipeline.patterns.remove(re)
}

// Execute performs a raw API call, bypassing model construction: the caller
// chooses the destination shape.
func (c *Client) Execute(ctx context.Context, method, path string, params, res any, opts ...option.RequestOption) error {
	opts = slices.Concat(c.Options, opts)
	return requestconfig.ExecuteNewRequest(ctx, method, path, params, res, opts...)
}

func (c *Client) Get(ctx context.Context, path string, params, res any, opts ...option.RequestOption) error {
	return c.Execute(ctx, http.MethodGet, path, params, res, opts...)
}

func (c *Client) Post(ctx context.Context, path string, params, res any, opts ...option.RequestOption) error {
	return c.Execute(ctx, http.MethodPost, path, params, res, opts...)
}

func (c *Client) Put(ctx context.Context, path string, params, res any, opts ...option.RequestOption) error {
	return c.Execute(ctx, http.MethodPut, path, params, res, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, params, res any, opts ...option.RequestOption) error {
	return c.Execute(ctx, http.MethodDelete, path, params, res, opts...)
}

func (c *Client) joinConfiguredRooms(rooms []string) {
	for _, room := range rooms {
		if _, err := c.JoinRoom(context.Background(), room); err != nil {
			c.pipeline.emitError(fmt.Errorf("auto join %q: %w", room, err))
		}
	}
}

func (c *Client) resolveUser(ctx context.Context, id string) (*User, error) {
	return c.User.Get(ctx, id)
}

func (c *Client) resolveRoom(ctx context.Context, idOrSlug string) (*Room, error) {
	return c.Room.Get(ctx, idOrSlug)
}

func (c *Client) credentials() (username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username, c.password
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) handleAccessDenied() {
	c.setToken("")
	c.auth.forceLogout()
}
