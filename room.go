package dubtrack

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/DaniilShev/dubtrack-go/internal/requestconfig"
	"github.com/DaniilShev/dubtrack-go/option"
)

// Room is a media room. Slug is the URL name the service also accepts in
// place of the id.
type Room struct {
	ID              string
	Name            string
	Slug            string
	Description     string
	UserID          string
	RealTimeChannel string
	ActiveUsers     int
	Created         time.Time
	Thumbnail       string
	Extra           map[string]any
}

var roomExclude = excludeSet("_id", "id", "name", "roomUrl", "description",
	"userid", "realTimeChannel", "activeUsers", "created", "background")

func newRoomFromPayload(p map[string]any) *Room {
	if p == nil {
		return nil
	}
	r := &Room{
		ID:              payloadString(p, "_id", "id"),
		Name:            payloadString(p, "name"),
		Slug:            payloadString(p, "roomUrl"),
		Description:     payloadString(p, "description"),
		UserID:          payloadString(p, "userid"),
		RealTimeChannel: payloadString(p, "realTimeChannel"),
		ActiveUsers:     payloadInt(p, "activeUsers"),
		Created:         coerceTime(p["created"]),
		Extra:           make(map[string]any),
	}
	if bg := payloadObject(p, "background"); bg != nil {
		r.Thumbnail = payloadString(bg, "thumbnail", "secure_url", "url")
	}
	projectFields(p, roomExclude, r.Extra)
	return r
}

// RoomService exposes the room endpoints.
type RoomService struct {
	Options []option.RequestOption

	// resolveUser backs the lazy user lookup of memberships produced from
	// room user listings.
	resolveUser userResolver
}

func NewRoomService(opts ...option.RequestOption) *RoomService {
	return &RoomService{Options: opts}
}

// Get fetches a room by id or URL slug.
func (s *RoomService) Get(ctx context.Context, idOrSlug string, opts ...option.RequestOption) (*Room, error) {
	if idOrSlug == "" {
		return nil, ErrMissingRoomID
	}
	opts = slices.Concat(s.Options, opts)

	var payload map[string]any
	path := fmt.Sprintf("room/%s", idOrSlug)
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, path, nil, &payload, opts...); err != nil {
		return nil, err
	}
	return newRoomFromPayload(payload), nil
}

// List fetches the public room directory.
func (s *RoomService) List(ctx context.Context, opts ...option.RequestOption) ([]*Room, error) {
	opts = slices.Concat(s.Options, opts)

	var payloads []map[string]any
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, "room", nil, &payloads, opts...); err != nil {
		return nil, err
	}
	rooms := make([]*Room, 0, len(payloads))
	for _, p := range payloads {
		rooms = append(rooms, newRoomFromPayload(p))
	}
	return rooms, nil
}

type CreateRoomParams struct {
	Name        string `json:"name"`
	Slug        string `json:"roomUrl"`
	Description string `json:"description,omitempty"`
}

// Create creates a room owned by the authenticated user.
func (s *RoomService) Create(ctx context.Context, params CreateRoomParams, opts ...option.RequestOption) (*Room, error) {
	opts = slices.Concat(s.Options, opts)

	var payload map[string]any
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodPost, "room", params, &payload, opts...); err != nil {
		return nil, err
	}
	return newRoomFromPayload(payload), nil
}

type UpdateRoomParams struct {
	Description   string `json:"description,omitempty"`
	WelcomeText   string `json:"welcomeMessage,omitempty"`
	MaxSongLength int    `json:"maxLengthSong,omitempty"`
}

// Update updates mutable room settings.
func (s *RoomService) Update(ctx context.Context, roomID string, params UpdateRoomParams, opts ...option.RequestOption) error {
	if roomID == "" {
		return ErrMissingRoomID
	}
	opts = slices.Concat(s.Options, opts)
	path := fmt.Sprintf("room/%s", roomID)
	return requestconfig.ExecuteNewRequest(ctx, http.MethodPut, path, params, nil, opts...)
}

// Users lists the room's current members.
func (s *RoomService) Users(ctx context.Context, roomID string, opts ...option.RequestOption) ([]*RoomMembership, error) {
	if roomID == "" {
		return nil, ErrMissingRoomID
	}
	opts = slices.Concat(s.Options, opts)

	var payloads []map[string]any
	path := fmt.Sprintf("room/%s/users", roomID)
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, path, nil, &payloads, opts...); err != nil {
		return nil, err
	}
	members := make([]*RoomMembership, 0, len(payloads))
	for _, p := range payloads {
		members = append(members, newMembershipFromPayload(p, s.resolveUser))
	}
	return members, nil
}

// Kick removes a user from the room.
func (s *RoomService) Kick(ctx context.Context, roomID, userID string, opts ...option.RequestOption) error {
	return s.moderate(ctx, http.MethodPost, roomID, userID, "kick", nil, opts...)
}

type banParams struct {
	Seconds int `json:"time,omitempty"`
}

// Ban bans a user from the room, optionally for a bounded number of seconds.
func (s *RoomService) Ban(ctx context.Context, roomID, userID string, seconds int, opts ...option.RequestOption) error {
	return s.moderate(ctx, http.MethodPost, roomID, userID, "ban", banParams{Seconds: seconds}, opts...)
}

// Unban lifts a ban.
func (s *RoomService) Unban(ctx context.Context, roomID, userID string, opts ...option.RequestOption) error {
	return s.moderate(ctx, http.MethodDelete, roomID, userID, "ban", nil, opts...)
}

// Mute silences a user in chat.
func (s *RoomService) Mute(ctx context.Context, roomID, userID string, opts ...option.RequestOption) error {
	return s.moderate(ctx, http.MethodPost, roomID, userID, "mute", nil, opts...)
}

// Unmute lifts a mute.
func (s *RoomService) Unmute(ctx context.Context, roomID, userID string, opts ...option.RequestOption) error {
	return s.moderate(ctx, http.MethodDelete, roomID, userID, "mute", nil, opts...)
}

// SetRole grants a user a role in the room. The role is a type name from the
// static role table, e.g. "mod".
func (s *RoomService) SetRole(ctx context.Context, roomID, userID, roleType string, opts ...option.RequestOption) error {
	role := RoleByType(roleType)
	return s.moderate(ctx, http.MethodPost, roomID, userID, fmt.Sprintf("role/%s", role.ID), nil, opts...)
}

// RemoveRole strips a user's room role back to the default.
func (s *RoomService) RemoveRole(ctx context.Context, roomID, userID, roleType string, opts ...option.RequestOption) error {
	role := RoleByType(roleType)
	return s.moderate(ctx, http.MethodDelete, roomID, userID, fmt.Sprintf("role/%s", role.ID), nil, opts...)
}

func (s *RoomService) moderate(ctx context.Context, method, roomID, userID, action string, params any, opts ...option.RequestOption) error {
	if roomID == "" {
		return ErrMissingRoomID
	}
	if userID == "" {
		return ErrMissingUserID
	}
	opts = slices.Concat(s.Options, opts)
	path := fmt.Sprintf("room/%s/users/%s/%s", roomID, userID, action)
	return requestconfig.ExecuteNewRequest(ctx, method, path, params, nil, opts...)
}
