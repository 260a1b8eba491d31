package dubtrack

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipEagerEmbeddedUser(t *testing.T) {
	m := newMembershipFromPayload(map[string]any{
		"_id":    "m1",
		"roomid": "r1",
		"_user":  map[string]any{"_id": "u1", "username": "alice"},
	}, nil)

	require.NotNil(t, m.User())
	assert.Equal(t, "alice", m.User().Username)
	assert.Equal(t, "u1", m.UserID, "user id lifted from the embedded object")

	// Already embedded: no resolver needed.
	u, err := m.ResolveUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

func TestMembershipPrimitiveUserStaysNil(t *testing.T) {
	m := newMembershipFromPayload(map[string]any{
		"_id":    "m1",
		"userid": "u1",
		"roomid": "r1",
	}, nil)

	assert.Nil(t, m.User())
}

func TestMembershipResolveOnce(t *testing.T) {
	var fetches atomic.Int32
	resolve := func(ctx context.Context, id string) (*User, error) {
		fetches.Add(1)
		return &User{ID: id, Username: "fetched"}, nil
	}

	m := newMembershipFromPayload(map[string]any{"userid": "u1"}, resolve)

	first, err := m.ResolveUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fetched", first.Username)

	second, err := m.ResolveUser(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second, "the cached user resolves on later calls")
	assert.Equal(t, int32(1), fetches.Load())
}

func TestMembershipResolveFailureNotCached(t *testing.T) {
	var fetches atomic.Int32
	resolve := func(ctx context.Context, id string) (*User, error) {
		if fetches.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return &User{ID: id}, nil
	}

	m := newMembershipFromPayload(map[string]any{"userid": "u1"}, resolve)

	_, err := m.ResolveUser(context.Background())
	require.Error(t, err)

	u, err := m.ResolveUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, int32(2), fetches.Load())
}

func TestMembershipConcurrentResolveFirstCompletionWins(t *testing.T) {
	release := make(chan struct{})
	var fetches atomic.Int32
	resolve := func(ctx context.Context, id string) (*User, error) {
		n := fetches.Add(1)
		if n == 2 {
			// The second fetch parks until the first has completed.
			<-release
		}
		return &User{ID: id, Username: "fetch"}, nil
	}

	m := newMembershipFromPayload(map[string]any{"userid": "u1"}, resolve)

	var wg sync.WaitGroup
	results := make([]*User, 2)
	wg.Add(2)
	for i := range results {
		go func() {
			defer wg.Done()
			u, err := m.ResolveUser(context.Background())
			assert.NoError(t, err)
			results[i] = u
		}()
	}

	// Both fetches start; neither deduplicates the other.
	for fetches.Load() < 2 {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(2), fetches.Load(), "concurrent first calls are not deduplicated")
	assert.Same(t, results[0], results[1], "both callers observe the first completed result")
}

func TestMembershipResolveWithoutResolver(t *testing.T) {
	m := newMembershipFromPayload(map[string]any{"userid": "u1"}, nil)
	_, err := m.ResolveUser(context.Background())
	assert.Error(t, err)
}
