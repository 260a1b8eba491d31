package dubtrack

import (
	"context"
	"sync"
	"time"
)

// userResolver is the accessor capability a membership borrows from the
// facade to look up its full user. The membership never owns the facade.
type userResolver func(ctx context.Context, id string) (*User, error)

// RoomMembership ties a user to a room with a role. When the producing
// payload embedded a full user object, User is set eagerly; otherwise it is
// nil and ResolveUser fetches it on demand.
type RoomMembership struct {
	ID           string
	UserID       string
	RoomID       string
	Role         *Role
	Dubs         int
	Played       int
	SkippedQueue bool
	QueuePaused  bool
	Authorized   bool
	Created      time.Time
	Extra        map[string]any

	mu      sync.Mutex
	user    *User
	resolve userResolver
}

var membershipExclude = excludeSet("_id", "id", "userid", "roomid", "roleid",
	"dubs", "played", "skippedCount", "queuePaused", "authorized", "created",
	"_user", "user")

// newMembershipFromPayload builds a RoomMembership. The embedded user field
// is taken only when it is a full object; a bare id or anything primitive
// leaves User nil for lazy resolution.
func newMembershipFromPayload(p map[string]any, resolve userResolver) *RoomMembership {
	if p == nil {
		return nil
	}
	m := &RoomMembership{
		ID:          payloadString(p, "_id", "id"),
		UserID:      payloadString(p, "userid"),
		RoomID:      payloadString(p, "roomid"),
		Role:        newRoleFromPayload(p["roleid"]),
		Dubs:        payloadInt(p, "dubs"),
		Played:      payloadInt(p, "played"),
		QueuePaused: payloadBool(p, "queuePaused"),
		Authorized:  payloadBool(p, "authorized"),
		Created:     coerceTime(p["created"]),
		Extra:       make(map[string]any),
		resolve:     resolve,
	}
	m.SkippedQueue = payloadInt(p, "skippedCount") > 0

	if embedded := payloadObject(p, "_user", "user"); embedded != nil {
		m.user = newUserFromPayload(embedded)
		if m.UserID == "" {
			m.UserID = m.user.ID
		}
	}
	projectFields(p, membershipExclude, m.Extra)
	return m
}

// User returns the eagerly-embedded or previously-resolved user, or nil.
func (m *RoomMembership) User() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

// ResolveUser returns the membership's full user, fetching it by UserID
// through the facade on first use. The first successful result is cached and
// returned by every later call. Concurrent first calls are not deduplicated:
// each performs its own fetch and the first one to complete wins.
func (m *RoomMembership) ResolveUser(ctx context.Context) (*User, error) {
	m.mu.Lock()
	if m.user != nil {
		u := m.user
		m.mu.Unlock()
		return u, nil
	}
	resolve := m.resolve
	id := m.UserID
	m.mu.Unlock()

	if resolve == nil {
		return nil, ErrMissingUserID
	}
	if id == "" {
		return nil, ErrMissingUserID
	}

	fetched, err := resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		m.user = fetched
	}
	return m.user, nil
}
