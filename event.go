package dubtrack

import "time"

// Event type tags mirrored verbatim from the service's wire protocol.
const (
	EventChatMessage       = "chat-message"
	EventChatSkip          = "chat-skip"
	EventDeleteChatMessage = "delete-chat-message"
	EventUserJoin          = "user-join"
	EventUserLeave         = "user-leave"
	EventUserBan           = "user-ban"
	EventUserPauseQueue    = "user-pause-queue"
	EventPlaylistUpdate    = "room_playlist-update"
	EventPlaylistDub       = "room_playlist-dub"
	EventQueueUpdateDub    = "room_playlist-queue-update-dub"
	EventQueueUpdateGrabs  = "room_playlist-queue-update-grabs"
)

// Library-level lifecycle event names.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventFailed       = "failed"
	EventLogin        = "login"
	EventLogout       = "logout"
	EventJoin         = "join"
	EventLeave        = "leave"
	EventError        = "error"
	EventPresence     = "presence"
)

// RawEvent is an untyped payload exactly as received from the realtime
// transport.
type RawEvent map[string]any

// Event is a normalized realtime event: the original payload reshaped into
// typed domain objects, with a structural deep copy of the untouched raw
// payload preserved alongside.
type Event struct {
	// Type is the service's type tag, or "presence" for presence
	// notifications that carry no explicit tag.
	Type string

	// Raw is a deep copy of the payload as received. It never aliases state
	// the pipeline writes into, so listeners can always recover the original
	// wire shape.
	Raw RawEvent

	// Typed fields, populated per event family.
	User      *User
	Moderator *User
	Member    *RoomMembership
	Room      *Room
	Song      *Song
	ChatID    string
	Time      time.Time

	// Fields holds the remaining raw fields flat, minus the ones promoted
	// into typed form above.
	Fields map[string]any
}

// Handler consumes a normalized event. Handlers run inline on the dispatch
// goroutine and must not block; kick off a goroutine for slow work.
type Handler func(*Event)
