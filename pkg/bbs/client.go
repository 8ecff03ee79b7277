package bbs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultMaxTxRetries bounds how often an optimistic transaction is retried
// when a watched key changes underneath it.
const DefaultMaxTxRetries = 50

// ErrTxContention is returned when a transaction keeps losing the race for
// its watched keys.
var ErrTxContention = errors.New("transaction retries exhausted")

// ConflictError reports a uniqueness collision (name, abbreviation, order).
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s '%s' already exists", e.Entity, e.Field, e.Value)
}

// NotEmptyError reports an unconfirmed delete of a row that still holds
// children. Count is taken inside the delete transaction.
type NotEmptyError struct {
	Entity string
	Count  int
}

func (e *NotEmptyError) Error() string {
	return fmt.Sprintf("%s is not empty (%d)", e.Entity, e.Count)
}

// Client provides instance-scoped Redis operations for the board engine.
// All keys and channels are automatically namespaced with the instance name.
// Every mutation runs as one WATCH/MULTI/EXEC transaction, so the client is
// safe for concurrent use from many goroutines and many processes.
type Client struct {
	rdb          *redis.Client
	instanceName string
	maxTxRetries int
}

// NewClient creates a new board client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: engine instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		maxTxRetries: DefaultMaxTxRetries,
	}, nil
}

// SetMaxTxRetries overrides DefaultMaxTxRetries. Values below 1 are ignored.
func (c *Client) SetMaxTxRetries(n int) {
	if n > 0 {
		c.maxTxRetries = n
	}
}

// InstanceName returns the namespace the client writes into.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// transact runs fn under WATCH on keys, retrying while another writer wins
// the race. fn must perform its writes through tx.TxPipelined.
func (c *Client) transact(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < c.maxTxRetries; attempt++ {
		err := c.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrTxContention
}

// nextID allocates a row id. Ids burnt by aborted transactions are not reused.
func (c *Client) nextID(ctx context.Context, entity string) (int64, error) {
	id, err := c.rdb.Incr(ctx, SequenceKey(c.instanceName, entity)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", entity, err)
	}
	return id, nil
}

// lookupIndex resolves a folded name/abbreviation/order index entry to a row id.
func (c *Client) lookupIndex(ctx context.Context, key, field string) (int64, error) {
	id, err := c.rdb.HGet(ctx, key, field).Int64()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// claimable returns a ConflictError when value is indexed under key by a row
// other than self.
func claimable(ctx context.Context, tx *redis.Tx, key, entity, field, value string, self int64) error {
	owner, err := tx.HGet(ctx, key, indexField(value)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check %s %s: %w", entity, field, err)
	}
	if owner == self {
		return nil
	}
	return &ConflictError{Entity: entity, Field: field, Value: value}
}

// liveFields reads fields from a row hash inside a transaction and returns
// redis.Nil when the row is missing or soft-deleted.
func liveFields(ctx context.Context, tx *redis.Tx, key string, fields ...string) ([]string, error) {
	vals, err := tx.HMGet(ctx, key, append([]string{"id", "deleted"}, fields...)...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if vals[0] == nil || stringAt(vals, 1) == "1" {
		return nil, redis.Nil
	}
	out := make([]string, len(fields))
	for i := range fields {
		out[i] = stringAt(vals, i+2)
	}
	return out, nil
}

// setLiveField writes one row field after checking the row is live.
func (c *Client) setLiveField(ctx context.Context, key, field string, value interface{}) error {
	return c.transact(ctx, func(tx *redis.Tx) error {
		if _, err := liveFields(ctx, tx, key); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, value)
			return nil
		})
		return err
	}, key)
}

// setLiveOption writes one option into configKey after checking rowKey is live.
func (c *Client) setLiveOption(ctx context.Context, rowKey, configKey, option, value string) error {
	return c.transact(ctx, func(tx *redis.Tx) error {
		if _, err := liveFields(ctx, tx, rowKey); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, configKey, option, value)
			return nil
		})
		return err
	}, rowKey)
}

func stringAt(vals []interface{}, i int) string {
	if i >= len(vals) || vals[i] == nil {
		return ""
	}
	s, _ := vals[i].(string)
	return s
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
// Lookups of soft-deleted rows report not-found too.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}

// IsConflict returns true if the error is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// IsNotEmpty returns true if the error is (or wraps) a NotEmptyError.
func IsNotEmpty(err error) bool {
	var notEmpty *NotEmptyError
	return errors.As(err, &notEmpty)
}
