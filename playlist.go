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

// Song is a playable track reference. Type names the backing provider
// ("youtube", "soundcloud") and FKID the provider-side id.
type Song struct {
	ID        string
	Name      string
	Type      string
	FKID      string
	Length    int
	Thumbnail string
	Extra     map[string]any
}

var songExclude = excludeSet("_id", "id", "songid", "name", "type", "fkid",
	"songLength", "images")

func newSongFromPayload(p map[string]any) *Song {
	if p == nil {
		return nil
	}
	s := &Song{
		ID:     payloadString(p, "_id", "id", "songid"),
		Name:   payloadString(p, "name"),
		Type:   payloadString(p, "type"),
		FKID:   payloadString(p, "fkid"),
		Length: payloadInt(p, "songLength"),
		Extra:  make(map[string]any),
	}
	if images := payloadObject(p, "images"); images != nil {
		s.Thumbnail = payloadString(images, "thumbnail", "secure_url", "url")
	}
	projectFields(p, songExclude, s.Extra)
	return s
}

// PlaylistEntry is a song's position in a playlist or room queue.
type PlaylistEntry struct {
	ID         string
	PlaylistID string
	SongID     string
	UserID     string
	Created    time.Time
	Song       *Song
	Extra      map[string]any
}

var playlistEntryExclude = excludeSet("_id", "id", "playlistid", "songid",
	"userid", "created", "_song", "song", "songInfo")

func newPlaylistEntryFromPayload(p map[string]any) *PlaylistEntry {
	if p == nil {
		return nil
	}
	e := &PlaylistEntry{
		ID:         payloadString(p, "_id", "id"),
		PlaylistID: payloadString(p, "playlistid"),
		SongID:     payloadString(p, "songid"),
		UserID:     payloadString(p, "userid"),
		Created:    coerceTime(p["created"]),
		Extra:      make(map[string]any),
	}
	if embedded := payloadObject(p, "_song", "song", "songInfo"); embedded != nil {
		e.Song = newSongFromPayload(embedded)
		if e.SongID == "" {
			e.SongID = e.Song.ID
		}
	}
	projectFields(p, playlistEntryExclude, e.Extra)
	return e
}

// Playlist is a user-owned song collection.
type Playlist struct {
	ID         string
	Name       string
	UserID     string
	TotalItems int
	Created    time.Time
	Extra      map[string]any
}

var playlistExclude = excludeSet("_id", "id", "name", "userid", "totalItems", "created")

func newPlaylistFromPayload(p map[string]any) *Playlist {
	if p == nil {
		return nil
	}
	pl := &Playlist{
		ID:         payloadString(p, "_id", "id"),
		Name:       payloadString(p, "name"),
		UserID:     payloadString(p, "userid"),
		TotalItems: payloadInt(p, "totalItems"),
		Created:    coerceTime(p["created"]),
		Extra:      make(map[string]any),
	}
	projectFields(p, playlistExclude, pl.Extra)
	return pl
}

// PlaylistService exposes the playlist endpoints of the authenticated user.
type PlaylistService struct {
	Options []option.RequestOption
}

func NewPlaylistService(opts ...option.RequestOption) *PlaylistService {
	return &PlaylistService{opts}
}

// List fetches the authenticated user's playlists.
func (s *PlaylistService) List(ctx context.Context, opts ...option.RequestOption) ([]*Playlist, error) {
	opts = slices.Concat(s.Options, opts)

	var payloads []map[string]any
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, "playlist", nil, &payloads, opts...); err != nil {
		return nil, err
	}
	lists := make([]*Playlist, 0, len(payloads))
	for _, p := range payloads {
		lists = append(lists, newPlaylistFromPayload(p))
	}
	return lists, nil
}

type createPlaylistParams struct {
	Name string `json:"name"`
}

// Create creates an empty playlist.
func (s *PlaylistService) Create(ctx context.Context, name string, opts ...option.RequestOption) (*Playlist, error) {
	opts = slices.Concat(s.Options, opts)

	var payload map[string]any
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodPost, "playlist", createPlaylistParams{Name: name}, &payload, opts...); err != nil {
		return nil, err
	}
	return newPlaylistFromPayload(payload), nil
}

// Songs lists a playlist's entries.
func (s *PlaylistService) Songs(ctx context.Context, playlistID string, opts ...option.RequestOption) ([]*PlaylistEntry, error) {
	if playlistID == "" {
		return nil, ErrMissingPlaylistID
	}
	opts = slices.Concat(s.Options, opts)

	var payloads []map[string]any
	path := fmt.Sprintf("playlist/%s/songs", playlistID)
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, path, nil, &payloads, opts...); err != nil {
		return nil, err
	}
	entries := make([]*PlaylistEntry, 0, len(payloads))
	for _, p := range payloads {
		entries = append(entries, newPlaylistEntryFromPayload(p))
	}
	return entries, nil
}

type addSongParams struct {
	Type string `json:"type"`
	FKID string `json:"fkid"`
}

// AddSong appends a provider track to a playlist.
func (s *PlaylistService) AddSong(ctx context.Context, playlistID, songType, fkid string, opts ...option.RequestOption) (*PlaylistEntry, error) {
	if playlistID == "" {
		return nil, ErrMissingPlaylistID
	}
	if fkid == "" {
		return nil, ErrMissingSongID
	}
	opts = slices.Concat(s.Options, opts)

	var payload map[string]any
	path := fmt.Sprintf("playlist/%s/songs", playlistID)
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodPost, path, addSongParams{Type: songType, FKID: fkid}, &payload, opts...); err != nil {
		return nil, err
	}
	return newPlaylistEntryFromPayload(payload), nil
}

// RemoveSong deletes an entry from a playlist.
func (s *PlaylistService) RemoveSong(ctx context.Context, playlistID, songID string, opts ...option.RequestOption) error {
	if playlistID == "" {
		return ErrMissingPlaylistID
	}
	if songID == "" {
		return ErrMissingSongID
	}
	opts = slices.Concat(s.Options, opts)
	path := fmt.Sprintf("playlist/%s/songs/%s", playlistID, songID)
	return requestconfig.ExecuteNewRequest(ctx, http.MethodDelete, path, nil, nil, opts...)
}

// Room queue operations live on RoomService since the queue belongs to the
// room, not to a user playlist.

// QueueSong pushes a provider track onto the room queue.
func (s *RoomService) QueueSong(ctx context.Context, roomID, songType, fkid string, opts ...option.RequestOption) error {
	if roomID == "" {
		return ErrMissingRoomID
	}
	if fkid == "" {
		return ErrMissingSongID
	}
	opts = slices.Concat(s.Options, opts)
	path := fmt.Sprintf("room/%s/playlist", roomID)
	return requestconfig.ExecuteNewRequest(ctx, http.MethodPost, path, addSongParams{Type: songType, FKID: fkid}, nil, opts...)
}

// ClearQueue empties the room queue.
func (s *RoomService) ClearQueue(ctx context.Context, roomID string, opts ...option.RequestOption) error {
	if roomID == "" {
		return ErrMissingRoomID
	}
	opts = slices.Concat(s.Options, opts)
	path := fmt.Sprintf("room/%s/playlist", roomID)
	return requestconfig.ExecuteNewRequest(ctx, http.MethodDelete, path, nil, nil, opts...)
}

// SkipSong votes to skip the currently playing song.
func (s *RoomService) SkipSong(ctx context.Context, roomID string, opts ...option.RequestOption) error {
	if roomID == "" {
		return ErrMissingRoomID
	}
	opts = slices.Concat(s.Options, opts)
	path := fmt.Sprintf("room/%s/playlist/active/skip", roomID)
	return requestconfig.ExecuteNewRequest(ctx, http.MethodPost, path, nil, nil, opts...)
}

type pauseQueueParams struct {
	Paused bool `json:"queuePaused"`
}

// PauseQueue toggles the authenticated user's own queue in the room.
func (s *RoomService) PauseQueue(ctx context.Context, roomID string, paused bool, opts ...option.RequestOption) error {
	if roomID == "" {
		return ErrMissingRoomID
	}
	opts = slices.Concat(s.Options, opts)
	path := fmt.Sprintf("room/%s/queue/pause", roomID)
	return requestconfig.ExecuteNewRequest(ctx, http.MethodPut, path, pauseQueueParams{Paused: paused}, nil, opts...)
}
