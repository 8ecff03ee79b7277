package bbs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CreatePost writes a new thread root. The board's next post number is
// claimed and advanced in the same transaction, so concurrent posters always
// get distinct, gap-free numbers. The author is marked as having read it.
// Returns redis.Nil if the board is missing or deleted.
func (c *Client) CreatePost(ctx context.Context, p *Post) error {
	p.ReplyNumber = 0
	return c.insertPost(ctx, p, "create post")
}

// CreateReply writes a reply to thread p.Number, claiming the next reply
// number of that thread.
func (c *Client) CreateReply(ctx context.Context, p *Post) error {
	if p.Number < 1 {
		return fmt.Errorf("failed to create reply: invalid thread number %d", p.Number)
	}
	p.ReplyNumber = -1
	return c.insertPost(ctx, p, "create reply")
}

// insertPost is shared by CreatePost (ReplyNumber 0) and CreateReply
// (ReplyNumber -1, meaning "claim the next reply number").
func (c *Client) insertPost(ctx context.Context, p *Post, action string) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid post: %w", err)
	}

	id, err := c.nextID(ctx, "post")
	if err != nil {
		return err
	}
	p.ID = id
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.ModifiedAt = p.CreatedAt

	reply := p.ReplyNumber < 0
	boardKey := BoardKey(c.instanceName, p.BoardID)
	repliesKey := BoardRepliesKey(c.instanceName, p.BoardID)
	watched := []string{boardKey}
	if reply {
		watched = append(watched, repliesKey)
	}

	err = c.transact(ctx, func(tx *redis.Tx) error {
		board, err := liveFields(ctx, tx, boardKey, "next_post_number", "post_seq")
		if err != nil {
			return err
		}
		p.Seq = int64(atoiDefault(board[1], 0)) + 1

		if reply {
			last, err := tx.HGet(ctx, repliesKey, strconv.Itoa(p.Number)).Int()
			if err != nil && !IsNotFound(err) {
				return fmt.Errorf("failed to read reply counter: %w", err)
			}
			p.ReplyNumber = last + 1
		} else {
			p.Number = atoiDefault(board[0], 1)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, PostKey(c.instanceName, id), PostToHash(p))
			if reply {
				pipe.HSet(ctx, repliesKey, strconv.Itoa(p.Number), p.ReplyNumber)
			} else {
				pipe.HIncrBy(ctx, boardKey, "next_post_number", 1)
			}
			pipe.HSet(ctx, boardKey, "last_activity_ms", p.CreatedAt.UnixMilli(), "post_seq", p.Seq)
			pipe.ZAdd(ctx, BoardPostsKey(c.instanceName, p.BoardID), redis.Z{Score: float64(p.Seq), Member: id})
			pipe.HSet(ctx, BoardPostIDsKey(c.instanceName, p.BoardID), p.PostID(), id)
			pipe.SAdd(ctx, PostReadersKey(c.instanceName, id), p.AccountID)
			pipe.SAdd(ctx, BoardReadsKey(c.instanceName, p.BoardID, p.AccountID), id)
			return nil
		})
		return err
	}, watched...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	return nil
}

// MaxReplyNumber returns the highest reply number ever issued in a thread, 0 if none.
func (c *Client) MaxReplyNumber(ctx context.Context, boardID int64, number int) (int, error) {
	n, err := c.rdb.HGet(ctx, BoardRepliesKey(c.instanceName, boardID), strconv.Itoa(number)).Int()
	if IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read reply counter: %w", err)
	}
	return n, nil
}

func (c *Client) getPost(ctx context.Context, id int64, includeDeleted bool) (*Post, error) {
	hash, err := c.rdb.HGetAll(ctx, PostKey(c.instanceName, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}

	p, err := HashToPost(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize post: %w", err)
	}
	if p.Deleted && !includeDeleted {
		return nil, redis.Nil
	}
	return p, nil
}

// FindPost looks up a live post on a board by its (number, reply) address.
func (c *Client) FindPost(ctx context.Context, boardID int64, number, replyNumber int) (*Post, error) {
	return c.findPost(ctx, boardID, number, replyNumber, false)
}

// FindPostIncludingDeleted is FindPost for audits: removed posts are returned too.
func (c *Client) FindPostIncludingDeleted(ctx context.Context, boardID int64, number, replyNumber int) (*Post, error) {
	return c.findPost(ctx, boardID, number, replyNumber, true)
}

func (c *Client) findPost(ctx context.Context, boardID int64, number, replyNumber int, includeDeleted bool) (*Post, error) {
	id, err := c.lookupIndex(ctx, BoardPostIDsKey(c.instanceName, boardID), FormatPostID(number, replyNumber))
	if err != nil {
		return nil, err
	}
	p, err := c.getPost(ctx, id, includeDeleted)
	if err != nil {
		return nil, err
	}
	if p.BoardID != boardID {
		return nil, redis.Nil
	}
	return p, nil
}

// ListPosts returns up to limit live posts in chronological order, skipping
// the newestOffset most recent ones. Paging from the newest end keeps the last
// page full when the total is not a multiple of the page size.
func (c *Client) ListPosts(ctx context.Context, boardID int64, newestOffset, limit int) ([]*Post, error) {
	if limit <= 0 || newestOffset < 0 {
		return []*Post{}, nil
	}

	members, err := c.rdb.ZRevRange(ctx, BoardPostsKey(c.instanceName, boardID), int64(newestOffset), int64(newestOffset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		cmds = append(cmds, pipe.HGetAll(ctx, PostKey(c.instanceName, id)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	posts := make([]*Post, 0, len(cmds))
	for i := len(cmds) - 1; i >= 0; i-- {
		hash := cmds[i].Val()
		if len(hash) == 0 {
			continue
		}
		p, err := HashToPost(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize post: %w", err)
		}
		if p.Deleted {
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// ReadFlags reports, per post row ID, whether the account has read it.
func (c *Client) ReadFlags(ctx context.Context, accountID int64, posts []*Post) (map[int64]bool, error) {
	flags := make(map[int64]bool, len(posts))
	if len(posts) == 0 {
		return flags, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.BoolCmd, len(posts))
	for i, p := range posts {
		cmds[i] = pipe.SIsMember(ctx, PostReadersKey(c.instanceName, p.ID), accountID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read flags: %w", err)
	}
	for i, p := range posts {
		flags[p.ID] = cmds[i].Val()
	}
	return flags, nil
}

// IsRead reports whether the account has read the post.
func (c *Client) IsRead(ctx context.Context, accountID int64, p *Post) (bool, error) {
	read, err := c.rdb.SIsMember(ctx, PostReadersKey(c.instanceName, p.ID), accountID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check read flag: %w", err)
	}
	return read, nil
}

// MarkRead records that the account has read the post. Marking twice is a no-op.
// Returns redis.Nil if the post was removed meanwhile.
func (c *Client) MarkRead(ctx context.Context, accountID int64, p *Post) error {
	key := PostKey(c.instanceName, p.ID)
	err := c.transact(ctx, func(tx *redis.Tx) error {
		if _, err := liveFields(ctx, tx, key); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, PostReadersKey(c.instanceName, p.ID), accountID)
			pipe.SAdd(ctx, BoardReadsKey(c.instanceName, p.BoardID, accountID), p.ID)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("failed to mark post read: %w", err)
	}
	return nil
}

// RemovePost soft-deletes a post. Its number is not reused.
func (c *Client) RemovePost(ctx context.Context, p *Post) error {
	key := PostKey(c.instanceName, p.ID)
	readersKey := PostReadersKey(c.instanceName, p.ID)
	now := time.Now().UTC()

	err := c.transact(ctx, func(tx *redis.Tx) error {
		if _, err := liveFields(ctx, tx, key); err != nil {
			return err
		}
		readers, err := tx.SMembers(ctx, readersKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read post readers: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "deleted", boolField(true), "modified_at_ms", now.UnixMilli())
			pipe.ZRem(ctx, BoardPostsKey(c.instanceName, p.BoardID), p.ID)
			for _, raw := range readers {
				reader, err := strconv.ParseInt(raw, 10, 64)
				if err != nil {
					continue
				}
				pipe.SRem(ctx, BoardReadsKey(c.instanceName, p.BoardID, reader), p.ID)
			}
			return nil
		})
		return err
	}, key, readersKey)
	if err != nil {
		return fmt.Errorf("failed to remove post: %w", err)
	}

	p.Deleted = true
	p.ModifiedAt = now
	return nil
}
