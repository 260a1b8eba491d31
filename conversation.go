package dubtrack

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DaniilShev/dubtrack-go/internal/requestconfig"
	"github.com/DaniilShev/dubtrack-go/option"
)

// Conversation is a private message thread. When the service lists the
// participants as bare id strings only UserIDs is populated; ResolveUsers
// fetches the full users on demand. Payloads with embedded participant
// objects populate both eagerly.
type Conversation struct {
	ID            string
	Created       time.Time
	LatestMessage string
	UserIDs       []string
	Extra         map[string]any

	mu      sync.Mutex
	users   []*User
	resolve userResolver
}

var conversationExclude = excludeSet("_id", "id", "created", "latest_message",
	"usersid", "users")

func newConversationFromPayload(p map[string]any, resolve userResolver) *Conversation {
	if p == nil {
		return nil
	}
	c := &Conversation{
		ID:            payloadString(p, "_id", "id"),
		Created:       coerceTime(p["created"]),
		LatestMessage: payloadString(p, "latest_message"),
		Extra:         make(map[string]any),
		resolve:       resolve,
	}

	participants, _ := p["usersid"].([]any)
	if participants == nil {
		participants, _ = p["users"].([]any)
	}
	for _, entry := range participants {
		switch t := entry.(type) {
		case string:
			c.UserIDs = append(c.UserIDs, t)
		case map[string]any:
			u := newUserFromPayload(t)
			c.UserIDs = append(c.UserIDs, u.ID)
			c.users = append(c.users, u)
		}
	}
	// A mixed list counts as unresolved; only a fully-embedded participant
	// list is eager.
	if len(c.users) != len(c.UserIDs) {
		c.users = nil
	}

	projectFields(p, conversationExclude, c.Extra)
	return c
}

// Users returns the eagerly-embedded or previously-resolved participants, or
// nil when ResolveUsers has not run yet.
func (c *Conversation) Users() []*User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.users
}

// ResolveUsers returns the conversation's full participants, fetching each by
// id in parallel on first use. A single failed fetch fails the whole call and
// nothing is cached; there is no partial success.
func (c *Conversation) ResolveUsers(ctx context.Context) ([]*User, error) {
	c.mu.Lock()
	if c.users != nil {
		users := c.users
		c.mu.Unlock()
		return users, nil
	}
	resolve := c.resolve
	ids := slices.Clone(c.UserIDs)
	c.mu.Unlock()

	if resolve == nil {
		return nil, ErrMissingUserID
	}

	fetched := make([]*User, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			u, err := resolve(gctx, id)
			if err != nil {
				return err
			}
			fetched[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.users == nil {
		c.users = fetched
	}
	return c.users, nil
}

// ConversationService exposes the private messaging endpoints.
type ConversationService struct {
	Options []option.RequestOption

	resolveUser userResolver
}

func NewConversationService(opts ...option.RequestOption) *ConversationService {
	return &ConversationService{Options: opts}
}

// List fetches the authenticated user's conversations.
func (s *ConversationService) List(ctx context.Context, opts ...option.RequestOption) ([]*Conversation, error) {
	opts = slices.Concat(s.Options, opts)

	var payloads []map[string]any
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, "message", nil, &payloads, opts...); err != nil {
		return nil, err
	}
	conversations := make([]*Conversation, 0, len(payloads))
	for _, p := range payloads {
		conversations = append(conversations, newConversationFromPayload(p, s.resolveUser))
	}
	return conversations, nil
}

// Get fetches one conversation.
func (s *ConversationService) Get(ctx context.Context, id string, opts ...option.RequestOption) (*Conversation, error) {
	if id == "" {
		return nil, ErrMissingConversationID
	}
	opts = slices.Concat(s.Options, opts)

	var payload map[string]any
	path := fmt.Sprintf("message/%s", id)
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, path, nil, &payload, opts...); err != nil {
		return nil, err
	}
	return newConversationFromPayload(payload, s.resolveUser), nil
}

type createConversationParams struct {
	UserIDs []string `json:"usersid"`
}

// Create starts a conversation with the given participants.
func (s *ConversationService) Create(ctx context.Context, userIDs []string, opts ...option.RequestOption) (*Conversation, error) {
	if len(userIDs) == 0 {
		return nil, ErrMissingUserID
	}
	opts = slices.Concat(s.Options, opts)

	var payload map[string]any
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodPost, "message/new", createConversationParams{UserIDs: userIDs}, &payload, opts...); err != nil {
		return nil, err
	}
	return newConversationFromPayload(payload, s.resolveUser), nil
}

type sendConversationParams struct {
	Message string `json:"message"`
}

// Send posts a message to a conversation.
func (s *ConversationService) Send(ctx context.Context, id, message string, opts ...option.RequestOption) error {
	if id == "" {
		return ErrMissingConversationID
	}
	if message == "" {
		return ErrMissingMessage
	}
	opts = slices.Concat(s.Options, opts)
	path := fmt.Sprintf("message/%s", id)
	return requestconfig.ExecuteNewRequest(ctx, http.MethodPost, path, sendConversationParams{Message: message}, nil, opts...)
}

// MarkRead marks the conversation read for the authenticated user.
func (s *ConversationService) MarkRead(ctx context.Context, id string, opts ...option.RequestOption) error {
	if id == "" {
		return ErrMissingConversationID
	}
	opts = slices.Concat(s.Options, opts)
	path := fmt.Sprintf("message/%s/read", id)
	return requestconfig.ExecuteNewRequest(ctx, http.MethodPost, path, nil, nil, opts...)
}
