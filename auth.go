package dubtrack

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/DaniilShev/dubtrack-go/internal/requestconfig"
	"github.com/DaniilShev/dubtrack-go/option"
)

// Session is the authenticated account state.
type Session struct {
	UserID   string
	Username string
	Token    string
}

// authCoordinator tracks the logged-in/logged-out state. Transitioning in
// emits a login event, transitioning out a logout event; an unauthorized
// response while logged in forces the logout transition.
type authCoordinator struct {
	mu       sync.Mutex
	loggedIn bool
	session  *Session

	pipeline *pipeline
	log      *zap.SugaredLogger
}

func newAuthCoordinator(pipeline *pipeline, log *zap.SugaredLogger) *authCoordinator {
	return &authCoordinator{pipeline: pipeline, log: log}
}

func (a *authCoordinator) loginSucceeded(s *Session) {
	a.mu.Lock()
	a.loggedIn = true
	a.session = s
	a.mu.Unlock()

	a.pipeline.Push(RawEvent{"type": EventLogin, "userid": s.UserID, "username": s.Username})
}

// loggedOut performs the LoggedIn -> LoggedOut transition; it is a no-op when
// already logged out.
func (a *authCoordinator) loggedOut() {
	a.mu.Lock()
	wasLoggedIn := a.loggedIn
	a.loggedIn = false
	a.session = nil
	a.mu.Unlock()

	if wasLoggedIn {
		a.pipeline.Push(RawEvent{"type": EventLogout})
	}
}

// forceLogout is the unauthorized-response path.
func (a *authCoordinator) forceLogout() {
	a.mu.Lock()
	wasLoggedIn := a.loggedIn
	a.mu.Unlock()
	if wasLoggedIn {
		a.log.Warnw("unauthorized response while logged in, forcing logout")
	}
	a.loggedOut()
}

func (a *authCoordinator) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loggedIn
}

// Session returns a copy of the current session, or nil when logged out.
func (a *authCoordinator) Session() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	s := *a.session
	return &s
}

type loginParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates with the stored credentials, establishes the session
// and emits the login event. The socket layer re-authenticates off that
// transition.
func (c *Client) Login(ctx context.Context, opts ...option.RequestOption) (*Session, error) {
	username, password := c.credentials()
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	opts = slices.Concat(c.Options, opts)

	var res loginResponse
	params := loginParams{Username: username, Password: password}
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodPost, "auth/dubtrack", params, &res, opts...); err != nil {
		return nil, err
	}
	c.setToken(res.Token)

	me, err := c.User.Me(ctx)
	if err != nil {
		c.setToken("")
		return nil, err
	}

	session := &Session{UserID: me.ID, Username: me.Username, Token: res.Token}
	c.auth.loginSucceeded(session)
	c.channels.setIdentity(me.ID)
	return session, nil
}

// Logout drops the session and emits the logout event.
func (c *Client) Logout(ctx context.Context, opts ...option.RequestOption) error {
	if !c.auth.isLoggedIn() {
		return ErrNotAuthenticated
	}
	opts = slices.Concat(c.Options, opts)

	err := requestconfig.ExecuteNewRequest(ctx, http.MethodDelete, "auth/session", nil, nil, opts...)
	c.setToken("")
	c.auth.loggedOut()
	c.channels.setIdentity("")
	return err
}

// Session returns the current session, or nil when logged out.
func (c *Client) Session() *Session {
	return c.auth.Session()
}
