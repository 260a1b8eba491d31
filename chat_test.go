package dubtrack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaniilShev/dubtrack-go/option"
)

func TestNewChatMessageFromPayload(t *testing.T) {
	m := newChatMessageFromPayload(map[string]any{
		"chatid":  "c1",
		"roomid":  "r1",
		"message": "hello",
		"time":    float64(1500000000000),
		"user":    map[string]any{"_id": "u1", "username": "alice"},
	})

	assert.Equal(t, "c1", m.ChatID)
	assert.Equal(t, "hello", m.Message)
	assert.Equal(t, time.UnixMilli(1500000000000), m.Time)
	require.NotNil(t, m.User)
	assert.Equal(t, "alice", m.User.Username)
}

func TestChatMessageFallsBackToCreated(t *testing.T) {
	m := newChatMessageFromPayload(map[string]any{
		"_id":     "c1",
		"created": float64(1500000000000),
	})
	assert.Equal(t, time.UnixMilli(1500000000000), m.Time)
	assert.Equal(t, "c1", m.ChatID, "the message id doubles as the chat id")
}

func TestChatServiceSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"chatid": "c1", "message": gotBody["message"]},
		})
	}))
	defer srv.Close()

	s := NewChatService(option.WithBaseURL(srv.URL))
	msg, err := s.Send(context.Background(), "r1", "hi there")
	require.NoError(t, err)
	assert.Equal(t, "/chat/r1", gotPath)
	assert.Equal(t, "hi there", gotBody["message"])
	assert.Equal(t, "c1", msg.ChatID)
}

func TestChatServiceValidation(t *testing.T) {
	s := NewChatService()
	ctx := context.Background()

	_, err := s.Send(ctx, "", "hi")
	assert.ErrorIs(t, err, ErrMissingRoomID)
	_, err = s.Send(ctx, "r1", "")
	assert.ErrorIs(t, err, ErrMissingMessage)
	assert.ErrorIs(t, s.Delete(ctx, "r1", ""), ErrMissingChatID)
	_, err = s.History(ctx, "")
	assert.ErrorIs(t, err, ErrMissingRoomID)
}
