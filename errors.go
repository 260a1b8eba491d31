package dubtrack

import (
	"errors"

	"github.com/DaniilShev/dubtrack-go/internal/requestconfig"
)

var (
	ErrMissingRoomID         = errors.New("missing required room identifier")
	ErrMissingUserID         = errors.New("missing required user identifier")
	ErrMissingChatID         = errors.New("missing required chat message identifier")
	ErrMissingPlaylistID     = errors.New("missing required playlist identifier")
	ErrMissingSongID         = errors.New("missing required song identifier")
	ErrMissingMessage        = errors.New("missing required message text")
	ErrMissingConversationID = errors.New("missing required conversation identifier")
	ErrMissingCredentials    = errors.New("missing account credentials")

	// ErrNotConnected is returned for socket operations attempted while the
	// transport is disconnected. Fatal, not retried.
	ErrNotConnected = errors.New("realtime transport is not connected")

	// ErrNotInRoom is returned when leaving a room no subscription exists
	// for.
	ErrNotInRoom = errors.New("room is not joined")

	// ErrNotAuthenticated is returned for operations that require a session
	// while the client is logged out.
	ErrNotAuthenticated = errors.New("operation requires authentication")
)

// ErrAccessDenied marks a response the service refused for lack of
// authorization. Receiving it while logged in forces a logout transition.
var ErrAccessDenied = requestconfig.ErrAccessDenied

// APIError is a structured error response from the service: a
// service-specific code, a message, and any auxiliary data.
type APIError = requestconfig.APIError
