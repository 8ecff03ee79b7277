package bbs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func createCollection(t *testing.T, client *Client, name, abbr string) *Collection {
	t.Helper()
	col := &Collection{Name: name, Abbreviation: abbr, Locks: "read:all();admin:perm(Admin)"}
	require.NoError(t, client.CreateCollection(context.Background(), col))
	return col
}

func createBoard(t *testing.T, client *Client, collectionID int64, name string) *Board {
	t.Helper()
	b := &Board{CollectionID: collectionID, Name: name, Locks: "read:all();post:all()"}
	require.NoError(t, client.CreateBoard(context.Background(), b))
	return b
}

func newPost(boardID, accountID int64, subject string) *Post {
	return &Post{
		BoardID:     boardID,
		Subject:     subject,
		Body:        "body of " + subject,
		AccountID:   accountID,
		AccountName: fmt.Sprintf("account-%d", accountID),
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
		assert.Equal(t, DefaultMaxTxRetries, client.maxTxRetries)
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})

	t.Run("ignores non-positive retry limits", func(t *testing.T) {
		client, _ := setupTestClient(t)
		client.SetMaxTxRetries(0)
		assert.Equal(t, DefaultMaxTxRetries, client.maxTxRetries)
		client.SetMaxTxRetries(5)
		assert.Equal(t, 5, client.maxTxRetries)
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestCollections(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	gen := createCollection(t, client, "General", "GEN")
	assert.Equal(t, int64(1), gen.ID)
	assert.False(t, gen.CreatedAt.IsZero())

	t.Run("finds by name and abbreviation case-insensitively", func(t *testing.T) {
		byName, err := client.FindCollectionByName(ctx, "general")
		require.NoError(t, err)
		assert.Equal(t, gen.ID, byName.ID)

		byAbbr, err := client.FindCollectionByAbbreviation(ctx, "gen")
		require.NoError(t, err)
		assert.Equal(t, "GEN", byAbbr.Abbreviation)
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		err := client.CreateCollection(ctx, &Collection{Name: "GENERAL", Abbreviation: "G"})
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("rejects duplicate abbreviation", func(t *testing.T) {
		err := client.CreateCollection(ctx, &Collection{Name: "Other", Abbreviation: "Gen"})
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("allows a single empty abbreviation", func(t *testing.T) {
		createCollection(t, client, "Unabbreviated", "")
		err := client.CreateCollection(ctx, &Collection{Name: "Also Unabbreviated"})
		assert.True(t, IsConflict(err))

		col, err := client.FindCollectionByAbbreviation(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "Unabbreviated", col.Name)
	})

	t.Run("rejects invalid abbreviation", func(t *testing.T) {
		err := client.CreateCollection(ctx, &Collection{Name: "Bad", Abbreviation: "AB1"})
		assert.Error(t, err)
		assert.False(t, IsConflict(err))
	})

	t.Run("stores config", func(t *testing.T) {
		col := &Collection{Name: "Configured", Abbreviation: "CFG", Config: map[string]string{"description": "hi"}}
		require.NoError(t, client.CreateCollection(ctx, col))

		require.NoError(t, client.SetCollectionOption(ctx, col.ID, "default_locks", "read:all()"))
		got, err := client.GetCollection(ctx, col.ID)
		require.NoError(t, err)
		assert.Equal(t, "hi", got.Config["description"])
		assert.Equal(t, "read:all()", got.Config["default_locks"])
	})

	t.Run("lists live collections in creation order", func(t *testing.T) {
		cols, err := client.ListCollections(ctx)
		require.NoError(t, err)
		require.Len(t, cols, 3)
		assert.Equal(t, "General", cols[0].Name)
	})

	t.Run("missing collection is not found", func(t *testing.T) {
		_, err := client.GetCollection(ctx, 999)
		assert.True(t, IsNotFound(err))
	})
}

func TestRenameAndReabbreviateCollection(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	gen := createCollection(t, client, "General", "GEN")
	createCollection(t, client, "Out Of Character", "OOC")

	require.NoError(t, client.RenameCollection(ctx, gen.ID, "Main"))
	_, err := client.FindCollectionByName(ctx, "General")
	assert.True(t, IsNotFound(err), "old name should be freed")

	// renaming to own name with different case is allowed
	require.NoError(t, client.RenameCollection(ctx, gen.ID, "MAIN"))

	err = client.RenameCollection(ctx, gen.ID, "out of character")
	assert.True(t, IsConflict(err))

	require.NoError(t, client.ReabbreviateCollection(ctx, gen.ID, "M"))
	col, err := client.FindCollectionByAbbreviation(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, "MAIN", col.Name)

	err = client.ReabbreviateCollection(ctx, gen.ID, "ooc")
	assert.True(t, IsConflict(err))

	err = client.RenameCollection(ctx, 999, "Nope")
	assert.True(t, IsNotFound(err))
}

func TestDeleteCollectionCascades(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	gen := createCollection(t, client, "General", "GEN")
	board := createBoard(t, client, gen.ID, "Announcements")

	_, err := client.DeleteCollection(ctx, gen.ID, false)
	var notEmpty *NotEmptyError
	require.ErrorAs(t, err, &notEmpty)
	assert.Equal(t, 1, notEmpty.Count)
	_, err = client.GetCollection(ctx, gen.ID)
	require.NoError(t, err, "unconfirmed delete leaves the collection alone")

	n, err := client.DeleteCollection(ctx, gen.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = client.GetCollection(ctx, gen.ID)
	assert.True(t, IsNotFound(err))
	deleted, err := client.GetCollectionIncludingDeleted(ctx, gen.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)

	_, err = client.GetBoard(ctx, board.ID)
	assert.True(t, IsNotFound(err), "boards are deleted with their collection")

	// name, abbreviation and board name are free again
	again := createCollection(t, client, "General", "GEN")
	createBoard(t, client, again.ID, "Announcements")

	boards, err := client.ListBoards(ctx)
	require.NoError(t, err)
	assert.Len(t, boards, 1)
}

func TestBoards(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	gen := createCollection(t, client, "General", "GEN")

	t.Run("assigns orders max+1", func(t *testing.T) {
		first := createBoard(t, client, gen.ID, "Announcements")
		second := createBoard(t, client, gen.ID, "Chatter")
		assert.Equal(t, 1, first.Order)
		assert.Equal(t, 2, second.Order)
		assert.Equal(t, 1, second.NextPostNumber)

		explicit := &Board{CollectionID: gen.ID, Name: "Later", Order: 10}
		require.NoError(t, client.CreateBoard(ctx, explicit))
		assert.Equal(t, 10, explicit.Order)

		next := createBoard(t, client, gen.ID, "After")
		assert.Equal(t, 11, next.Order)

		max, err := client.MaxBoardOrder(ctx, gen.ID)
		require.NoError(t, err)
		assert.Equal(t, 11, max)
	})

	t.Run("rejects taken order and name", func(t *testing.T) {
		err := client.CreateBoard(ctx, &Board{CollectionID: gen.ID, Name: "Dup Order", Order: 1})
		assert.True(t, IsConflict(err))

		err = client.CreateBoard(ctx, &Board{CollectionID: gen.ID, Name: "chatter"})
		assert.True(t, IsConflict(err))
	})

	t.Run("rejects board in missing collection", func(t *testing.T) {
		err := client.CreateBoard(ctx, &Board{CollectionID: 404, Name: "Orphan"})
		assert.True(t, IsNotFound(err))
	})

	t.Run("finds by collection and order", func(t *testing.T) {
		b, err := client.FindBoard(ctx, gen.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, "Chatter", b.Name)

		_, err = client.FindBoard(ctx, gen.ID, 3)
		assert.True(t, IsNotFound(err))
	})

	t.Run("reorders and renames", func(t *testing.T) {
		b, err := client.FindBoard(ctx, gen.ID, 2)
		require.NoError(t, err)

		err = client.ReorderBoard(ctx, b.ID, 1)
		assert.True(t, IsConflict(err))

		require.NoError(t, client.ReorderBoard(ctx, b.ID, 3))
		moved, err := client.FindBoard(ctx, gen.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, b.ID, moved.ID)
		_, err = client.FindBoard(ctx, gen.ID, 2)
		assert.True(t, IsNotFound(err))

		require.NoError(t, client.RenameBoard(ctx, b.ID, "Banter"))
		renamed, err := client.GetBoard(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "Banter", renamed.Name)
	})

	t.Run("sets locks and options", func(t *testing.T) {
		b, err := client.FindBoard(ctx, gen.ID, 1)
		require.NoError(t, err)

		require.NoError(t, client.SetBoardLocks(ctx, b.ID, "read:all();post:none()"))
		require.NoError(t, client.SetBoardOption(ctx, b.ID, "ic", "true"))

		got, err := client.GetBoard(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "read:all();post:none()", got.Locks)
		assert.Equal(t, "true", got.Config["ic"])
	})

	t.Run("deletes and frees order", func(t *testing.T) {
		b, err := client.FindBoard(ctx, gen.ID, 1)
		require.NoError(t, err)
		_, err = client.DeleteBoard(ctx, b.ID, false)
		require.NoError(t, err, "an empty board needs no confirmation")

		_, err = client.GetBoard(ctx, b.ID)
		assert.True(t, IsNotFound(err))
		audit, err := client.GetBoardIncludingDeleted(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, audit.Deleted)

		reuse := &Board{CollectionID: gen.ID, Name: "Announcements", Order: 1}
		require.NoError(t, client.CreateBoard(ctx, reuse))

		_, err = client.DeleteBoard(ctx, b.ID, true)
		assert.True(t, IsNotFound(err))
	})

	t.Run("counts boards", func(t *testing.T) {
		n, err := client.CountBoards(ctx, gen.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}

func TestPostsAndReplies(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	gen := createCollection(t, client, "General", "GEN")
	board := createBoard(t, client, gen.ID, "Announcements")

	first := newPost(board.ID, 1, "Hello")
	require.NoError(t, client.CreatePost(ctx, first))
	assert.Equal(t, "1", first.PostID())

	reply := newPost(board.ID, 2, "Re: Hello")
	reply.Number = first.Number
	require.NoError(t, client.CreateReply(ctx, reply))
	assert.Equal(t, "1.1", reply.PostID())

	reply2 := newPost(board.ID, 1, "Re: Hello")
	reply2.Number = first.Number
	require.NoError(t, client.CreateReply(ctx, reply2))
	assert.Equal(t, "1.2", reply2.PostID())

	second := newPost(board.ID, 1, "Again")
	require.NoError(t, client.CreatePost(ctx, second))
	assert.Equal(t, "2", second.PostID(), "replies do not consume root numbers")

	t.Run("finds posts by address", func(t *testing.T) {
		p, err := client.FindPost(ctx, board.ID, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, reply.ID, p.ID)
		assert.Equal(t, "Re: Hello", p.Subject)

		_, err = client.FindPost(ctx, board.ID, 1, 3)
		assert.True(t, IsNotFound(err))
	})

	t.Run("lists chronologically", func(t *testing.T) {
		posts, err := client.ListPosts(ctx, board.ID, 0, 10)
		require.NoError(t, err)
		require.Len(t, posts, 4)
		ids := []string{}
		for _, p := range posts {
			ids = append(ids, p.PostID())
		}
		assert.Equal(t, []string{"1", "1.1", "1.2", "2"}, ids)

		newest, err := client.ListPosts(ctx, board.ID, 0, 2)
		require.NoError(t, err)
		require.Len(t, newest, 2)
		assert.Equal(t, "1.2", newest[0].PostID())
		assert.Equal(t, "2", newest[1].PostID())
	})

	t.Run("author has read own post", func(t *testing.T) {
		read, err := client.IsRead(ctx, 1, first)
		require.NoError(t, err)
		assert.True(t, read)

		read, err = client.IsRead(ctx, 2, first)
		require.NoError(t, err)
		assert.False(t, read)
	})

	t.Run("mark read is idempotent", func(t *testing.T) {
		require.NoError(t, client.MarkRead(ctx, 2, first))
		require.NoError(t, client.MarkRead(ctx, 2, first))

		n, err := client.CountRead(ctx, board.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, n) // reply 1.1 (own) + post 1

		flags, err := client.ReadFlags(ctx, 2, []*Post{first, second})
		require.NoError(t, err)
		assert.True(t, flags[first.ID])
		assert.False(t, flags[second.ID])
	})

	t.Run("remove leaves a gap", func(t *testing.T) {
		require.NoError(t, client.RemovePost(ctx, second))
		assert.True(t, second.Deleted)

		_, err := client.FindPost(ctx, board.ID, 2, 0)
		assert.True(t, IsNotFound(err))
		audit, err := client.FindPostIncludingDeleted(ctx, board.ID, 2, 0)
		require.NoError(t, err)
		assert.True(t, audit.Deleted)

		n, err := client.CountPosts(ctx, board.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		read, err := client.CountRead(ctx, board.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, read, "removed post drops out of read counts")

		third := newPost(board.ID, 1, "Third")
		require.NoError(t, client.CreatePost(ctx, third))
		assert.Equal(t, "3", third.PostID())

		err = client.MarkRead(ctx, 2, second)
		assert.True(t, IsNotFound(err))
	})

	t.Run("post on deleted board is not found", func(t *testing.T) {
		_, err := client.DeleteBoard(ctx, board.ID, false)
		assert.True(t, IsNotEmpty(err))

		posts, err := client.DeleteBoard(ctx, board.ID, true)
		require.NoError(t, err)
		assert.Equal(t, 4, posts)
		err = client.CreatePost(ctx, newPost(board.ID, 1, "Late"))
		assert.True(t, IsNotFound(err))
	})
}

func TestConcurrentPostNumbering(t *testing.T) {
	client, _ := setupTestClient(t)
	client.SetMaxTxRetries(1000)
	ctx := context.Background()

	gen := createCollection(t, client, "General", "GEN")
	board := createBoard(t, client, gen.ID, "Busy")

	root := newPost(board.ID, 1, "root")
	require.NoError(t, client.CreatePost(ctx, root))

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	roots := []int{}
	replies := []int{}

	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			p := newPost(board.ID, int64(i+1), "concurrent")
			assert.NoError(t, client.CreatePost(ctx, p))
			mu.Lock()
			roots = append(roots, p.Number)
			mu.Unlock()
		}(i)
		go func(i int) {
			defer wg.Done()
			p := newPost(board.ID, int64(i+1), "reply")
			p.Number = root.Number
			assert.NoError(t, client.CreateReply(ctx, p))
			mu.Lock()
			replies = append(replies, p.ReplyNumber)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	sort.Ints(roots)
	sort.Ints(replies)
	for i := 0; i < workers; i++ {
		assert.Equal(t, i+2, roots[i], "root numbers must be distinct and gap-free")
		assert.Equal(t, i+1, replies[i], "reply numbers must be distinct and gap-free")
	}

	b, err := client.GetBoard(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, workers+2, b.NextPostNumber)
}

func TestPresence(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	bob := Identity{Kind: IdentityAccount, ID: 7, Name: "bob"}
	alice := Identity{Kind: IdentityAccount, ID: 2, Name: "alice"}
	zed := Identity{Kind: IdentityPersona, ID: 4, Name: "Zed", AccountID: 2}

	require.NoError(t, client.Connect(ctx, bob))
	require.NoError(t, client.Connect(ctx, alice))
	require.NoError(t, client.Connect(ctx, zed))

	accounts, err := client.OnlineAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].Name)

	personas, err := client.OnlinePersonas(ctx)
	require.NoError(t, err)
	require.Len(t, personas, 1)
	assert.Equal(t, int64(2), personas[0].AccountID)

	require.NoError(t, client.Disconnect(ctx, bob))
	accounts, err = client.OnlineAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	err = client.Connect(ctx, Identity{Kind: "robot", ID: 1, Name: "r2"})
	assert.Error(t, err)
}

func TestNotifications(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	alice := Identity{Kind: IdentityAccount, ID: 2, Name: "alice"}
	sub, err := client.SubscribeNotifications(ctx, alice)
	require.NoError(t, err)
	defer sub.Close()

	err = client.Notify(ctx, &Notification{Target: alice, BoardID: "GEN1", PostID: "1", Message: "hello"})
	require.NoError(t, err)

	select {
	case n := <-sub.Events():
		assert.Equal(t, "hello", n.Message)
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, "GEN1", n.BoardID)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	// Close is idempotent
	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}

func TestStaffAlerts(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeStaffAlerts(ctx)
	require.NoError(t, err)
	defer sub.Close()

	sender := Identity{Kind: IdentityAccount, ID: 1, Name: "admin"}
	require.NoError(t, client.Alert(ctx, "Board Collection 'GEN: General' created.", sender))

	select {
	case alert := <-sub.Events():
		assert.Equal(t, StaffAlertSystem, alert.System)
		assert.Equal(t, "admin", alert.Sender.Name)
		assert.Contains(t, alert.Message, "GEN: General")
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for staff alert")
	}
}
