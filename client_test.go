package dubtrack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaniilShev/dubtrack-go/internal/requestconfig"
	"github.com/DaniilShev/dubtrack-go/option"
)

// fakeAPIServer mimics the service's REST envelope for the endpoints the
// client touches during login and room join.
type fakeAPIServer struct {
	*httptest.Server

	mu         sync.Mutex
	seenTokens []string
}

func newFakeAPIServer(t *testing.T) *fakeAPIServer {
	t.Helper()
	s := &fakeAPIServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/dubtrack", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds["username"] != "tester" || creds["password"] != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.respond(w, map[string]any{"token": "tok-abc"})
	})
	mux.HandleFunc("GET /auth/session", func(w http.ResponseWriter, r *http.Request) {
		s.recordToken(r)
		s.respond(w, map[string]any{"_id": "me1", "username": "tester"})
	})
	mux.HandleFunc("GET /room/cool-room", func(w http.ResponseWriter, r *http.Request) {
		s.recordToken(r)
		s.respond(w, map[string]any{
			"_id":             "r1",
			"name":            "Cool Room",
			"roomUrl":         "cool-room",
			"realTimeChannel": "room:r1",
		})
	})
	mux.HandleFunc("GET /user/u9", func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, map[string]any{"_id": "u9", "username": "lazy"})
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *fakeAPIServer) respond(w http.ResponseWriter, data any) {
	json.NewEncoder(w).Encode(map[string]any{"code": 200, "message": "OK", "data": data})
}

func (s *fakeAPIServer) recordToken(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenTokens = append(s.seenTokens, r.Header.Get("x-auth-token"))
}

func (s *fakeAPIServer) tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seenTokens...)
}

func TestClientLoginConnectAutoJoinChatMessage(t *testing.T) {
	srv := newFakeAPIServer(t)
	tr := newFakeTransport()

	c := newClient(tr,
		option.WithBaseURL(srv.URL),
		option.WithCredentials("tester", "hunter2"),
		option.WithAutoLogin(true),
		option.WithAutoJoin(true),
		option.WithRooms("cool-room"),
	)
	t.Cleanup(func() { c.Close() })

	joined := watchEvent(c.pipeline, EventJoin)
	messages := watchEvent(c.pipeline, EventChatMessage)

	require.NoError(t, c.Connect(context.Background()))

	session := c.Session()
	require.NotNil(t, session)
	assert.Equal(t, "me1", session.UserID)
	assert.Equal(t, "tok-abc", session.Token)

	joinEv := waitEvent(t, joined)
	assert.Equal(t, "r1", joinEv.Fields["roomid"])
	assert.Equal(t, "cool-room", joinEv.Fields["roomUrl"])

	// The room channel and the user's own channel are both live.
	require.NotNil(t, tr.channel("room:r1"))
	require.NotNil(t, tr.channel("user:me1"))

	tr.channel("room:r1").push(map[string]any{
		"type":    "chat-message",
		"chatid":  "chat-1",
		"message": "hello room",
		"user":    map[string]any{"_id": "u2", "username": "bob"},
	})

	ev := waitEvent(t, messages)
	assert.Equal(t, "chat-1", ev.ChatID)
	require.NotNil(t, ev.User)
	assert.Equal(t, "bob", ev.User.Username)
	assert.Equal(t, "hello room", ev.Fields["message"])
	assert.Equal(t, "chat-1", ev.Raw["chatid"], "promoted fields survive on raw")

	// The session token rode along on every authenticated request after login.
	for _, tok := range srv.tokens() {
		assert.Equal(t, "tok-abc", tok)
	}
}

func TestClientLoginWithoutCredentials(t *testing.T) {
	tr := newFakeTransport()
	c := newClient(tr)
	t.Cleanup(func() { c.Close() })

	_, err := c.Login(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestClientAccessDeniedForcesLogout(t *testing.T) {
	srv := newFakeAPIServer(t)
	tr := newFakeTransport()

	c := newClient(tr,
		option.WithBaseURL(srv.URL),
		option.WithCredentials("tester", "hunter2"),
	)
	t.Cleanup(func() { c.Close() })

	loggedOut := watchEvent(c.pipeline, EventLogout)

	_, err := c.Login(context.Background())
	require.NoError(t, err)
	require.NotNil(t, c.Session())

	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer denied.Close()

	err = c.Get(context.Background(), "user/whoever", nil, nil, option.WithBaseURL(denied.URL))
	assert.ErrorIs(t, err, ErrAccessDenied)

	waitEvent(t, loggedOut)
	assert.Nil(t, c.Session(), "an unauthorized response drops the session")
	assert.Empty(t, c.currentToken())
}

func TestClientLogout(t *testing.T) {
	srv := newFakeAPIServer(t)
	tr := newFakeTransport()

	c := newClient(tr,
		option.WithBaseURL(srv.URL),
		option.WithCredentials("tester", "hunter2"),
	)
	t.Cleanup(func() { c.Close() })

	assert.ErrorIs(t, c.Logout(context.Background()), ErrNotAuthenticated)

	_, err := c.Login(context.Background())
	require.NoError(t, err)
	// The logout endpoint is not mocked; the local session drops regardless.
	_ = c.Logout(context.Background())
	assert.Nil(t, c.Session())
}

func TestClientRawPassthrough(t *testing.T) {
	srv := newFakeAPIServer(t)
	tr := newFakeTransport()

	c := newClient(tr, option.WithBaseURL(srv.URL))
	t.Cleanup(func() { c.Close() })

	var payload map[string]any
	require.NoError(t, c.Get(context.Background(), "user/u9", nil, &payload))
	assert.Equal(t, "lazy", payload["username"])

	var envelope map[string]any
	require.NoError(t, c.Get(context.Background(), "user/u9", nil, &envelope, option.WithRaw(true)))
	assert.Contains(t, envelope, "code", "raw mode hands back the whole envelope")
}

func TestWebsocketURL(t *testing.T) {
	cases := []struct {
		name string
		base string
		want string
	}{
		{"https", "https://api.dubtrack.fm/", "wss://api.dubtrack.fm/ws"},
		{"http", "http://localhost:8080", "ws://localhost:8080/ws"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := url.Parse(tc.base)
			require.NoError(t, err)
			cfg := &requestconfig.RequestConfig{BaseURL: u}
			assert.Equal(t, tc.want, websocketURL(cfg))
		})
	}
}
