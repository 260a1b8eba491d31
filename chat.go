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

// ChatMessage is a message in a room's chat.
type ChatMessage struct {
	ID      string
	ChatID  string
	RoomID  string
	Message string
	Time    time.Time
	User    *User
	Extra   map[string]any
}

var chatMessageExclude = excludeSet("_id", "id", "chatid", "roomid", "message",
	"time", "created", "user")

func newChatMessageFromPayload(p map[string]any) *ChatMessage {
	if p == nil {
		return nil
	}
	m := &ChatMessage{
		ID:      payloadString(p, "_id", "id"),
		ChatID:  payloadString(p, "chatid", "_id", "id"),
		RoomID:  payloadString(p, "roomid"),
		Message: payloadString(p, "message"),
		Extra:   make(map[string]any),
	}
	if v, ok := p["time"]; ok {
		m.Time = coerceTime(v)
	} else {
		m.Time = coerceTime(p["created"])
	}
	if u := payloadObject(p, "user"); u != nil {
		m.User = newUserFromPayload(u)
	}
	projectFields(p, chatMessageExclude, m.Extra)
	return m
}

// ChatService exposes the room chat endpoints.
type ChatService struct {
	Options []option.RequestOption
}

func NewChatService(opts ...option.RequestOption) *ChatService {
	return &ChatService{opts}
}

type sendChatParams struct {
	Message string `json:"message"`
}

// Send posts a message to a room chat.
func (s *ChatService) Send(ctx context.Context, roomID, message string, opts ...option.RequestOption) (*ChatMessage, error) {
	if roomID == "" {
		return nil, ErrMissingRoomID
	}
	if message == "" {
		return nil, ErrMissingMessage
	}
	opts = slices.Concat(s.Options, opts)

	var payload map[string]any
	path := fmt.Sprintf("chat/%s", roomID)
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodPost, path, sendChatParams{Message: message}, &payload, opts...); err != nil {
		return nil, err
	}
	return newChatMessageFromPayload(payload), nil
}

// Delete removes a message from a room chat.
func (s *ChatService) Delete(ctx context.Context, roomID, chatID string, opts ...option.RequestOption) error {
	if roomID == "" {
		return ErrMissingRoomID
	}
	if chatID == "" {
		return ErrMissingChatID
	}
	opts = slices.Concat(s.Options, opts)
	path := fmt.Sprintf("chat/%s/%s", roomID, chatID)
	return requestconfig.ExecuteNewRequest(ctx, http.MethodDelete, path, nil, nil, opts...)
}

// History fetches the most recent messages of a room chat.
func (s *ChatService) History(ctx context.Context, roomID string, opts ...option.RequestOption) ([]*ChatMessage, error) {
	if roomID == "" {
		return nil, ErrMissingRoomID
	}
	opts = slices.Concat(s.Options, opts)

	var payloads []map[string]any
	path := fmt.Sprintf("chat/%s", roomID)
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, path, nil, &payloads, opts...); err != nil {
		return nil, err
	}
	messages := make([]*ChatMessage, 0, len(payloads))
	for _, p := range payloads {
		messages = append(messages, newChatMessageFromPayload(p))
	}
	return messages, nil
}
