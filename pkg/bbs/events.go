package bbs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StaffAlertSystem is the system name attached to every staff alert.
const StaffAlertSystem = "BBS"

// ============================================================================
// Presence
// ============================================================================

// Connect marks an identity as connected. Connected identities are the
// candidates for new-post notifications.
func (c *Client) Connect(ctx context.Context, identity Identity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("invalid identity: %w", err)
	}
	identityJSON, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	if err := c.rdb.HSet(ctx, OnlineKey(c.instanceName, identity.Kind), identity.ID, identityJSON).Err(); err != nil {
		return fmt.Errorf("failed to connect %s %d: %w", identity.Kind, identity.ID, err)
	}
	return nil
}

// Disconnect removes an identity from the connected set. Unknown identities are ignored.
func (c *Client) Disconnect(ctx context.Context, identity Identity) error {
	if err := c.rdb.HDel(ctx, OnlineKey(c.instanceName, identity.Kind), fmt.Sprint(identity.ID)).Err(); err != nil {
		return fmt.Errorf("failed to disconnect %s %d: %w", identity.Kind, identity.ID, err)
	}
	return nil
}

// OnlineAccounts returns the connected accounts ordered by ID.
func (c *Client) OnlineAccounts(ctx context.Context) ([]Identity, error) {
	return c.online(ctx, IdentityAccount)
}

// OnlinePersonas returns the connected personas ordered by ID.
func (c *Client) OnlinePersonas(ctx context.Context) ([]Identity, error) {
	return c.online(ctx, IdentityPersona)
}

func (c *Client) online(ctx context.Context, kind IdentityKind) ([]Identity, error) {
	vals, err := c.rdb.HVals(ctx, OnlineKey(c.instanceName, kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online %ss: %w", kind, err)
	}

	identities := make([]Identity, 0, len(vals))
	for _, raw := range vals {
		var identity Identity
		if err := json.Unmarshal([]byte(raw), &identity); err != nil {
			continue
		}
		identities = append(identities, identity)
	}
	sort.Slice(identities, func(i, j int) bool { return identities[i].ID < identities[j].ID })
	return identities, nil
}

// ============================================================================
// Messaging
// ============================================================================

// Notify publishes a notification on the target identity's channel.
// Delivery is at-most-once: nobody listening means nobody gets it.
func (c *Client) Notify(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := c.rdb.Publish(ctx, IdentityChannel(c.instanceName, n.Target), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Alert publishes a staff alert sent by sender.
func (c *Client) Alert(ctx context.Context, message string, sender Identity) error {
	alert := StaffAlert{
		ID:        uuid.NewString(),
		System:    StaffAlertSystem,
		Message:   message,
		Sender:    sender,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal staff alert: %w", err)
	}
	if err := c.rdb.Publish(ctx, StaffAlertsChannel(c.instanceName), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish staff alert: %w", err)
	}
	return nil
}

// Subscription represents an active Pub/Sub subscription.
// Caller must call Close() when done to clean up resources.
type Subscription[T any] struct {
	events <-chan *T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded messages.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription[T]) Events() <-chan *T {
	return s.events
}

// Errors returns the channel of subscription errors.
// Undecodable messages are reported here and skipped.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeNotifications subscribes to the notifications of one identity.
func (c *Client) SubscribeNotifications(ctx context.Context, identity Identity) (*Subscription[Notification], error) {
	return subscribe[Notification](ctx, c.rdb, IdentityChannel(c.instanceName, identity), "notification")
}

// SubscribeStaffAlerts subscribes to staff alerts for this instance.
func (c *Client) SubscribeStaffAlerts(ctx context.Context) (*Subscription[StaffAlert], error) {
	return subscribe[StaffAlert](ctx, c.rdb, StaffAlertsChannel(c.instanceName), "staff alert")
}

// subscribe waits for Redis to confirm the subscription before returning, so
// anything published afterwards is delivered. Events are buffered (size 10).
func subscribe[T any](ctx context.Context, rdb *redis.Client, channel, label string) (*Subscription[T], error) {
	pubsub := rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s events: %w", label, err)
	}

	eventsChan := make(chan *T, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event T
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal %s event: %w", label, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
