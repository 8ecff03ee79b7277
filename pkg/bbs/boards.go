package bbs

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CreateBoard writes a new board into its collection, assigning its ID.
// An Order of 0 takes the next free order (highest existing + 1, or 1).
// Returns a ConflictError if the name or an explicit order is taken, and
// redis.Nil if the collection is missing or deleted.
func (c *Client) CreateBoard(ctx context.Context, b *Board) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid board: %w", err)
	}

	id, err := c.nextID(ctx, "board")
	if err != nil {
		return err
	}
	b.ID = id
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.LastActivity.IsZero() {
		b.LastActivity = b.CreatedAt
	}
	if b.NextPostNumber < 1 {
		b.NextPostNumber = 1
	}
	if b.Config == nil {
		b.Config = map[string]string{}
	}

	requested := b.Order
	collectionKey := CollectionKey(c.instanceName, b.CollectionID)
	boardsKey := CollectionBoardsKey(c.instanceName, b.CollectionID)
	names := BoardNamesKey(c.instanceName)

	err = c.transact(ctx, func(tx *redis.Tx) error {
		if _, err := liveFields(ctx, tx, collectionKey); err != nil {
			return err
		}
		orders, err := tx.HKeys(ctx, boardsKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read board orders: %w", err)
		}

		order := requested
		if order == 0 {
			order = maxOrder(orders) + 1
		} else {
			for _, existing := range orders {
				if existing == strconv.Itoa(order) {
					return &ConflictError{Entity: "board", Field: "order", Value: existing}
				}
			}
		}
		if err := claimable(ctx, tx, names, "board", "name", b.Name, 0); err != nil {
			return err
		}
		b.Order = order

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, BoardKey(c.instanceName, id), BoardToHash(b))
			if len(b.Config) > 0 {
				pipe.HSet(ctx, BoardConfigKey(c.instanceName, id), configToHash(b.Config))
			}
			pipe.HSet(ctx, boardsKey, strconv.Itoa(order), id)
			pipe.HSet(ctx, names, indexField(b.Name), id)
			pipe.ZAdd(ctx, BoardsIndexKey(c.instanceName), redis.Z{Score: float64(id), Member: id})
			return nil
		})
		return err
	}, collectionKey, boardsKey, names)
	if err != nil {
		b.Order = requested
		return fmt.Errorf("failed to create board: %w", err)
	}
	return nil
}

func maxOrder(orders []string) int {
	highest := 0
	for _, raw := range orders {
		if n := atoiDefault(raw, 0); n > highest {
			highest = n
		}
	}
	return highest
}

// MaxBoardOrder returns the highest live board order in a collection, 0 if none.
func (c *Client) MaxBoardOrder(ctx context.Context, collectionID int64) (int, error) {
	orders, err := c.rdb.HKeys(ctx, CollectionBoardsKey(c.instanceName, collectionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read board orders: %w", err)
	}
	return maxOrder(orders), nil
}

// GetBoard retrieves a live board by ID.
// Returns redis.Nil if it does not exist or has been deleted.
func (c *Client) GetBoard(ctx context.Context, id int64) (*Board, error) {
	return c.getBoard(ctx, id, false)
}

// GetBoardIncludingDeleted retrieves a board by ID even if deleted.
func (c *Client) GetBoardIncludingDeleted(ctx context.Context, id int64) (*Board, error) {
	return c.getBoard(ctx, id, true)
}

func (c *Client) getBoard(ctx context.Context, id int64, includeDeleted bool) (*Board, error) {
	hash, err := c.rdb.HGetAll(ctx, BoardKey(c.instanceName, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	b, err := HashToBoard(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize board: %w", err)
	}
	if b.Deleted && !includeDeleted {
		return nil, redis.Nil
	}

	config, err := c.rdb.HGetAll(ctx, BoardConfigKey(c.instanceName, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get board config: %w", err)
	}
	b.Config = config
	return b, nil
}

// FindBoard looks up the live board with the given order in a collection.
func (c *Client) FindBoard(ctx context.Context, collectionID int64, order int) (*Board, error) {
	id, err := c.lookupIndex(ctx, CollectionBoardsKey(c.instanceName, collectionID), strconv.Itoa(order))
	if err != nil {
		return nil, err
	}
	return c.GetBoard(ctx, id)
}

// ListBoards returns every live board ordered by collection then order.
func (c *Client) ListBoards(ctx context.Context) ([]*Board, error) {
	members, err := c.rdb.ZRange(ctx, BoardsIndexKey(c.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	boards := make([]*Board, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		b, err := c.GetBoard(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}

	sort.Slice(boards, func(i, j int) bool {
		if boards[i].CollectionID != boards[j].CollectionID {
			return boards[i].CollectionID < boards[j].CollectionID
		}
		return boards[i].Order < boards[j].Order
	})
	return boards, nil
}

// RenameBoard changes a board's name, keeping board names unique.
func (c *Client) RenameBoard(ctx context.Context, id int64, name string) error {
	key := BoardKey(c.instanceName, id)
	names := BoardNamesKey(c.instanceName)

	err := c.transact(ctx, func(tx *redis.Tx) error {
		current, err := liveFields(ctx, tx, key, "name")
		if err != nil {
			return err
		}
		if err := claimable(ctx, tx, names, "board", "name", name, id); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if indexField(current[0]) != indexField(name) {
				pipe.HDel(ctx, names, indexField(current[0]))
			}
			pipe.HSet(ctx, names, indexField(name), id)
			pipe.HSet(ctx, key, "name", name)
			return nil
		})
		return err
	}, key, names)
	if err != nil {
		return fmt.Errorf("failed to rename board: %w", err)
	}
	return nil
}

// ReorderBoard moves a board to a new order within its collection.
// Returns a ConflictError if another live board holds that order.
func (c *Client) ReorderBoard(ctx context.Context, id int64, order int) error {
	if order < 1 {
		return fmt.Errorf("invalid order: must be >= 1, got %d", order)
	}

	key := BoardKey(c.instanceName, id)
	collectionID, err := c.rdb.HGet(ctx, key, "collection_id").Int64()
	if err != nil {
		return fmt.Errorf("failed to reorder board: %w", err)
	}
	boardsKey := CollectionBoardsKey(c.instanceName, collectionID)

	err = c.transact(ctx, func(tx *redis.Tx) error {
		current, err := liveFields(ctx, tx, key, "order")
		if err != nil {
			return err
		}
		if current[0] == strconv.Itoa(order) {
			return nil
		}
		holder, err := tx.HGet(ctx, boardsKey, strconv.Itoa(order)).Int64()
		if err == nil && holder != id {
			return &ConflictError{Entity: "board", Field: "order", Value: strconv.Itoa(order)}
		}
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to check board order: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, boardsKey, current[0])
			pipe.HSet(ctx, boardsKey, strconv.Itoa(order), id)
			pipe.HSet(ctx, key, "order", order)
			return nil
		})
		return err
	}, key, boardsKey)
	if err != nil {
		return fmt.Errorf("failed to reorder board: %w", err)
	}
	return nil
}

// SetBoardLocks replaces the lockstring of a board.
func (c *Client) SetBoardLocks(ctx context.Context, id int64, locks string) error {
	if err := c.setLiveField(ctx, BoardKey(c.instanceName, id), "locks", locks); err != nil {
		return fmt.Errorf("failed to set board locks: %w", err)
	}
	return nil
}

// SetBoardOption stores one already-coerced option value.
func (c *Client) SetBoardOption(ctx context.Context, id int64, option, value string) error {
	err := c.setLiveOption(ctx, BoardKey(c.instanceName, id), BoardConfigKey(c.instanceName, id), option, value)
	if err != nil {
		return fmt.Errorf("failed to set board option: %w", err)
	}
	return nil
}

// DeleteBoard soft-deletes a board. Its name and order become free for reuse;
// its posts stay stored but are no longer reachable through the board.
//
// Unless confirmed, a board holding posts is left alone and a NotEmptyError
// is returned. The post count is read inside the transaction. Returns the
// number of posts the board held.
func (c *Client) DeleteBoard(ctx context.Context, id int64, confirmed bool) (int, error) {
	key := BoardKey(c.instanceName, id)
	collectionID, err := c.rdb.HGet(ctx, key, "collection_id").Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to delete board: %w", err)
	}
	boardsKey := CollectionBoardsKey(c.instanceName, collectionID)
	names := BoardNamesKey(c.instanceName)
	postsKey := BoardPostsKey(c.instanceName, id)

	var posts int
	err = c.transact(ctx, func(tx *redis.Tx) error {
		current, err := liveFields(ctx, tx, key, "name", "order")
		if err != nil {
			return err
		}
		n, err := tx.ZCard(ctx, postsKey).Result()
		if err != nil {
			return fmt.Errorf("failed to count posts: %w", err)
		}
		if n > 0 && !confirmed {
			return &NotEmptyError{Entity: "board", Count: int(n)}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "deleted", boolField(true))
			pipe.HDel(ctx, names, indexField(current[0]))
			pipe.HDel(ctx, boardsKey, current[1])
			pipe.ZRem(ctx, BoardsIndexKey(c.instanceName), id)
			return nil
		})
		if err == nil {
			posts = int(n)
		}
		return err
	}, key, boardsKey, names, postsKey)
	if err != nil {
		return 0, fmt.Errorf("failed to delete board: %w", err)
	}
	return posts, nil
}

// CountPosts returns the number of live posts (roots and replies) on a board.
func (c *Client) CountPosts(ctx context.Context, boardID int64) (int, error) {
	n, err := c.rdb.ZCard(ctx, BoardPostsKey(c.instanceName, boardID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return int(n), nil
}

// CountRead returns how many live posts on a board the account has read.
func (c *Client) CountRead(ctx context.Context, boardID, accountID int64) (int, error) {
	n, err := c.rdb.SCard(ctx, BoardReadsKey(c.instanceName, boardID, accountID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count read posts: %w", err)
	}
	return int(n), nil
}
