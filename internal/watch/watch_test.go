package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/bbs/internal/filter"
	"github.com/dyluth/bbs/pkg/bbs"
)

var (
	alice = bbs.Identity{Kind: bbs.IdentityAccount, ID: 2, Name: "alice"}
	zed   = bbs.Identity{Kind: bbs.IdentityPersona, ID: 10, Name: "Zed", AccountID: 2}
)

func setupTestClient(t *testing.T) *bbs.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := bbs.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// collector gathers streamed events.
type collector struct {
	mu            sync.Mutex
	notifications []string
	alerts        []string
}

func (c *collector) handler() Handler {
	return Handler{
		Notification: func(n *bbs.Notification) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.notifications = append(c.notifications, n.Message)
		},
		Alert: func(a *bbs.StaffAlert) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.alerts = append(c.alerts, a.Message)
		},
	}
}

func (c *collector) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notifications), len(c.alerts)
}

func TestStream(t *testing.T) {
	client := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &collector{}
	result := make(chan error, 1)
	go func() {
		result <- Stream(ctx, client, Options{Identities: []bbs.Identity{alice, zed}, Staff: true}, c.handler())
	}()

	// Publish until the subscriptions are live; Stream subscribes asynchronously
	// from the test's point of view.
	require.Eventually(t, func() bool {
		_ = client.Notify(context.Background(), &bbs.Notification{Target: alice, Message: "for alice"})
		n, _ := c.counts()
		return n > 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, client.Notify(context.Background(), &bbs.Notification{Target: zed, Message: "for zed"}))
	require.NoError(t, client.Notify(context.Background(), &bbs.Notification{Target: bbs.Identity{Kind: bbs.IdentityAccount, ID: 3, Name: "bob"}, Message: "for bob"}))
	require.NoError(t, client.Alert(context.Background(), "Board 'GEN1: Announcements' created.", alice))

	require.Eventually(t, func() bool {
		_, a := c.counts()
		return a == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		for _, m := range c.notifications {
			if m == "for zed" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	c.mu.Lock()
	assert.NotContains(t, c.notifications, "for bob")
	assert.Equal(t, []string{"Board 'GEN1: Announcements' created."}, c.alerts)
	c.mu.Unlock()

	cancel()
	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Stream did not stop after cancel")
	}
}

func TestStreamFilter(t *testing.T) {
	client := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &collector{}
	opts := Options{
		Identities: []bbs.Identity{alice},
		Filter:     &filter.Criteria{BoardGlob: "GEN*"},
	}
	go func() { _ = Stream(ctx, client, opts, c.handler()) }()

	require.Eventually(t, func() bool {
		_ = client.Notify(context.Background(), &bbs.Notification{Target: alice, BoardID: "GEN1", Message: "general"})
		n, _ := c.counts()
		return n > 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, client.Notify(context.Background(), &bbs.Notification{Target: alice, BoardID: "RP1", Message: "roleplay"}))
	require.NoError(t, client.Notify(context.Background(), &bbs.Notification{Target: alice, BoardID: "GEN2", Message: "last"}))

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.notifications) > 0 && c.notifications[len(c.notifications)-1] == "last"
	}, 2*time.Second, 20*time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.NotContains(t, c.notifications, "roleplay")
}

func TestStreamNeedsATarget(t *testing.T) {
	client := setupTestClient(t)
	err := Stream(context.Background(), client, Options{}, Handler{})
	assert.Error(t, err)
}

func TestNext(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeNotifications(ctx, alice)
	require.NoError(t, err)
	defer sub.Close()

	t.Run("returns the next notification", func(t *testing.T) {
		require.NoError(t, client.Notify(ctx, &bbs.Notification{Target: alice, BoardID: "GEN1", PostID: "1", Message: "hello"}))

		n, err := Next(ctx, sub, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "GEN1", n.BoardID)
		assert.Equal(t, "hello", n.Message)
		assert.NotEmpty(t, n.ID)
	})

	t.Run("times out", func(t *testing.T) {
		_, err := Next(ctx, sub, 50*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Next(cancelled, sub, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed subscription", func(t *testing.T) {
		other, err := client.SubscribeNotifications(ctx, zed)
		require.NoError(t, err)
		other.Close()
		_, err = Next(ctx, other, time.Second)
		assert.Error(t, err)
	})
}
