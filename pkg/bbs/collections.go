package bbs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CreateCollection writes a new collection, assigning its ID.
// Returns a ConflictError if the name or abbreviation is taken (case-insensitive).
func (c *Client) CreateCollection(ctx context.Context, col *Collection) error {
	if err := col.Validate(); err != nil {
		return fmt.Errorf("invalid collection: %w", err)
	}

	id, err := c.nextID(ctx, "collection")
	if err != nil {
		return err
	}
	col.ID = id
	if col.CreatedAt.IsZero() {
		col.CreatedAt = time.Now().UTC()
	}
	if col.Config == nil {
		col.Config = map[string]string{}
	}

	names := CollectionNamesKey(c.instanceName)
	abbreviations := CollectionAbbreviationsKey(c.instanceName)

	err = c.transact(ctx, func(tx *redis.Tx) error {
		if err := claimable(ctx, tx, names, "collection", "name", col.Name, 0); err != nil {
			return err
		}
		if err := claimable(ctx, tx, abbreviations, "collection", "abbreviation", col.Abbreviation, 0); err != nil {
			return err
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, CollectionKey(c.instanceName, id), CollectionToHash(col))
			if len(col.Config) > 0 {
				pipe.HSet(ctx, CollectionConfigKey(c.instanceName, id), configToHash(col.Config))
			}
			pipe.HSet(ctx, names, indexField(col.Name), id)
			pipe.HSet(ctx, abbreviations, indexField(col.Abbreviation), id)
			pipe.ZAdd(ctx, CollectionsIndexKey(c.instanceName), redis.Z{Score: float64(id), Member: id})
			return nil
		})
		return err
	}, names, abbreviations)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// GetCollection retrieves a live collection by ID.
// Returns redis.Nil if it does not exist or has been deleted.
func (c *Client) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	return c.getCollection(ctx, id, false)
}

// GetCollectionIncludingDeleted retrieves a collection by ID even if deleted.
func (c *Client) GetCollectionIncludingDeleted(ctx context.Context, id int64) (*Collection, error) {
	return c.getCollection(ctx, id, true)
}

func (c *Client) getCollection(ctx context.Context, id int64, includeDeleted bool) (*Collection, error) {
	hash, err := c.rdb.HGetAll(ctx, CollectionKey(c.instanceName, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	col, err := HashToCollection(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize collection: %w", err)
	}
	if col.Deleted && !includeDeleted {
		return nil, redis.Nil
	}

	config, err := c.rdb.HGetAll(ctx, CollectionConfigKey(c.instanceName, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get collection config: %w", err)
	}
	col.Config = config
	return col, nil
}

// FindCollectionByName looks up a live collection by case-insensitive name.
func (c *Client) FindCollectionByName(ctx context.Context, name string) (*Collection, error) {
	id, err := c.lookupIndex(ctx, CollectionNamesKey(c.instanceName), indexField(name))
	if err != nil {
		return nil, err
	}
	return c.GetCollection(ctx, id)
}

// FindCollectionByAbbreviation looks up a live collection by case-insensitive
// abbreviation. The empty string finds the collection without an abbreviation.
func (c *Client) FindCollectionByAbbreviation(ctx context.Context, abbreviation string) (*Collection, error) {
	id, err := c.lookupIndex(ctx, CollectionAbbreviationsKey(c.instanceName), indexField(abbreviation))
	if err != nil {
		return nil, err
	}
	return c.GetCollection(ctx, id)
}

// ListCollections returns all live collections in creation order.
func (c *Client) ListCollections(ctx context.Context) ([]*Collection, error) {
	members, err := c.rdb.ZRange(ctx, CollectionsIndexKey(c.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	collections := make([]*Collection, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		col, err := c.GetCollection(ctx, id)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		collections = append(collections, col)
	}
	return collections, nil
}

// RenameCollection changes a collection's name, keeping names unique.
func (c *Client) RenameCollection(ctx context.Context, id int64, name string) error {
	if err := c.reindexCollection(ctx, id, "name", CollectionNamesKey(c.instanceName), name); err != nil {
		return fmt.Errorf("failed to rename collection: %w", err)
	}
	return nil
}

// ReabbreviateCollection changes a collection's abbreviation, keeping
// abbreviations unique. Board ids of the collection change with it.
func (c *Client) ReabbreviateCollection(ctx context.Context, id int64, abbreviation string) error {
	if abbreviation != "" && !AbbreviationPattern.MatchString(abbreviation) {
		return fmt.Errorf("invalid abbreviation: %q", abbreviation)
	}
	if err := c.reindexCollection(ctx, id, "abbreviation", CollectionAbbreviationsKey(c.instanceName), abbreviation); err != nil {
		return fmt.Errorf("failed to reabbreviate collection: %w", err)
	}
	return nil
}

// reindexCollection swaps a uniquely indexed collection field.
func (c *Client) reindexCollection(ctx context.Context, id int64, field, indexKey, value string) error {
	key := CollectionKey(c.instanceName, id)

	return c.transact(ctx, func(tx *redis.Tx) error {
		current, err := liveFields(ctx, tx, key, field)
		if err != nil {
			return err
		}
		if err := claimable(ctx, tx, indexKey, "collection", field, value, id); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if indexField(current[0]) != indexField(value) {
				pipe.HDel(ctx, indexKey, indexField(current[0]))
			}
			pipe.HSet(ctx, indexKey, indexField(value), id)
			pipe.HSet(ctx, key, field, value)
			return nil
		})
		return err
	}, key, indexKey)
}

// SetCollectionLocks replaces the lockstring of a collection.
func (c *Client) SetCollectionLocks(ctx context.Context, id int64, locks string) error {
	if err := c.setLiveField(ctx, CollectionKey(c.instanceName, id), "locks", locks); err != nil {
		return fmt.Errorf("failed to set collection locks: %w", err)
	}
	return nil
}

// SetCollectionOption stores one already-coerced option value.
func (c *Client) SetCollectionOption(ctx context.Context, id int64, option, value string) error {
	err := c.setLiveOption(ctx, CollectionKey(c.instanceName, id), CollectionConfigKey(c.instanceName, id), option, value)
	if err != nil {
		return fmt.Errorf("failed to set collection option: %w", err)
	}
	return nil
}

// DeleteCollection soft-deletes a collection and every live board in it.
// Their names, abbreviation and orders become free for reuse.
//
// Unless confirmed, a collection holding boards is left alone and a
// NotEmptyError is returned. The board count is read inside the transaction,
// so a board created concurrently is never deleted unconfirmed. Returns the
// number of boards deleted.
func (c *Client) DeleteCollection(ctx context.Context, id int64, confirmed bool) (int, error) {
	key := CollectionKey(c.instanceName, id)
	names := CollectionNamesKey(c.instanceName)
	abbreviations := CollectionAbbreviationsKey(c.instanceName)
	boardsKey := CollectionBoardsKey(c.instanceName, id)
	boardNames := BoardNamesKey(c.instanceName)

	var deleted int
	err := c.transact(ctx, func(tx *redis.Tx) error {
		current, err := liveFields(ctx, tx, key, "name", "abbreviation")
		if err != nil {
			return err
		}

		boards, err := tx.HVals(ctx, boardsKey).Result()
		if err != nil {
			return fmt.Errorf("failed to list collection boards: %w", err)
		}
		if len(boards) > 0 && !confirmed {
			return &NotEmptyError{Entity: "collection", Count: len(boards)}
		}
		type doomedBoard struct {
			id   int64
			name string
		}
		doomed := make([]doomedBoard, 0, len(boards))
		for _, raw := range boards {
			boardID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			name, err := tx.HGet(ctx, BoardKey(c.instanceName, boardID), "name").Result()
			if err != nil && !IsNotFound(err) {
				return fmt.Errorf("failed to read board %d: %w", boardID, err)
			}
			doomed = append(doomed, doomedBoard{id: boardID, name: name})
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "deleted", boolField(true))
			pipe.HDel(ctx, names, indexField(current[0]))
			pipe.HDel(ctx, abbreviations, indexField(current[1]))
			pipe.ZRem(ctx, CollectionsIndexKey(c.instanceName), id)
			for _, b := range doomed {
				pipe.HSet(ctx, BoardKey(c.instanceName, b.id), "deleted", boolField(true))
				if b.name != "" {
					pipe.HDel(ctx, boardNames, indexField(b.name))
				}
				pipe.ZRem(ctx, BoardsIndexKey(c.instanceName), b.id)
			}
			pipe.Del(ctx, boardsKey)
			return nil
		})
		if err == nil {
			deleted = len(doomed)
		}
		return err
	}, key, names, abbreviations, boardsKey, boardNames)
	if err != nil {
		return 0, fmt.Errorf("failed to delete collection: %w", err)
	}
	return deleted, nil
}

// CountBoards returns the number of live boards in a collection.
func (c *Client) CountBoards(ctx context.Context, collectionID int64) (int, error) {
	n, err := c.rdb.HLen(ctx, CollectionBoardsKey(c.instanceName, collectionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count boards: %w", err)
	}
	return int(n), nil
}
