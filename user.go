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

// User is a service account as the API and the event stream describe it.
type User struct {
	ID           string
	Username     string
	Status       int
	Dubs         int
	Created      time.Time
	ProfileImage string
	Role         *Role
	// Extra holds the raw fields the typed ones above do not cover.
	Extra map[string]any
}

var userExclude = excludeSet("_id", "id", "userid", "username", "status", "dubs",
	"created", "profileImage", "userInfo", "roleid")

// newUserFromPayload builds a User from a raw payload. Fields nested under
// userInfo are lifted so the required fields are present regardless of which
// shape the service used.
func newUserFromPayload(p map[string]any) *User {
	if p == nil {
		return nil
	}
	if info := payloadObject(p, "userInfo"); info != nil {
		merged := make(map[string]any, len(p)+len(info))
		for k, v := range info {
			merged[k] = v
		}
		for k, v := range p {
			if k == "userInfo" {
				continue
			}
			merged[k] = v
		}
		p = merged
	}

	u := &User{
		ID:       payloadString(p, "_id", "id", "userid"),
		Username: payloadString(p, "username"),
		Status:   payloadInt(p, "status"),
		Dubs:     payloadInt(p, "dubs"),
		Created:  coerceTime(p["created"]),
		Role:     newRoleFromPayload(p["roleid"]),
		Extra:    make(map[string]any),
	}
	switch img := p["profileImage"].(type) {
	case string:
		u.ProfileImage = img
	case map[string]any:
		u.ProfileImage = payloadString(img, "thumbnail", "secure_url", "url")
	}
	projectFields(p, userExclude, u.Extra)
	return u
}

// UserService exposes the user endpoints.
type UserService struct {
	Options []option.RequestOption
}

func NewUserService(opts ...option.RequestOption) *UserService {
	return &UserService{opts}
}

// Get fetches a user by id.
func (s *UserService) Get(ctx context.Context, id string, opts ...option.RequestOption) (*User, error) {
	if id == "" {
		return nil, ErrMissingUserID
	}
	opts = slices.Concat(s.Options, opts)

	var payload map[string]any
	path := fmt.Sprintf("user/%s", id)
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, path, nil, &payload, opts...); err != nil {
		return nil, err
	}
	return newUserFromPayload(payload), nil
}

// Me fetches the authenticated user.
func (s *UserService) Me(ctx context.Context, opts ...option.RequestOption) (*User, error) {
	opts = slices.Concat(s.Options, opts)

	var payload map[string]any
	if err := requestconfig.ExecuteNewRequest(ctx, http.MethodGet, "auth/session", nil, &payload, opts...); err != nil {
		return nil, err
	}
	return newUserFromPayload(payload), nil
}
