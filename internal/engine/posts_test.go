package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/bbs/pkg/bbs"
)

func postNumbers(views []PostView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.PostNumber)
	}
	return out
}

func TestPostAndReply(t *testing.T) {
	eng, client, _ := setupTestEngine(t)
	ctx := context.Background()
	seedBoard(t, eng)
	mustRun(t, eng, TargetBoard, admin, nil, "create", map[string]interface{}{"collection_id": "GEN", "name": "Chatter"})

	req := mustRun(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "Hello", "body": "World"})
	assert.Equal(t, StatusCreated, req.Status)
	assert.Equal(t, "Posted GEN1/1: Hello", req.Message)
	post := req.Results["post"].(PostView)
	assert.Equal(t, "1", post.PostNumber)
	assert.Equal(t, "alice", post.Author)
	assert.True(t, post.Read)

	// numbering is per board
	req = mustRun(t, eng, TargetPost, bob, nil, "create", map[string]interface{}{"board_id": "GEN2", "subject": "Elsewhere", "body": "x"})
	assert.Equal(t, "1", req.Results["post"].(PostView).PostNumber)

	t.Run("replies number under their parent", func(t *testing.T) {
		req := mustRun(t, eng, TargetPost, bob, nil, "reply", map[string]interface{}{"board_id": "GEN1", "post_id": "1", "body": "Hi alice"})
		reply := req.Results["post"].(PostView)
		assert.Equal(t, "1.1", reply.PostNumber)
		assert.Equal(t, "RE: Hello", reply.Subject)

		req = mustRun(t, eng, TargetPost, alice, nil, "reply", map[string]interface{}{"board_id": "GEN1", "post_id": "1.1", "body": "Hi bob"})
		reply = req.Results["post"].(PostView)
		assert.Equal(t, "1.2", reply.PostNumber, "replying to a reply threads under the root")
		assert.Equal(t, "RE: RE: Hello", reply.Subject, "the prefix is added to the target's subject as is")

		req = mustRun(t, eng, TargetPost, alice, nil, "reply", map[string]interface{}{"board_id": "GEN1", "post_id": "1", "subject": "Changing topic", "body": "x"})
		assert.Equal(t, "Changing topic", req.Results["post"].(PostView).Subject)
	})

	t.Run("replies do not consume root numbers", func(t *testing.T) {
		req := mustRun(t, eng, TargetPost, bob, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "Second", "body": "x"})
		assert.Equal(t, "2", req.Results["post"].(PostView).PostNumber)

		b, err := client.FindBoard(ctx, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, b.NextPostNumber)
	})

	t.Run("bad input", func(t *testing.T) {
		_, err := run(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "", "body": "x"})
		assert.True(t, IsBadRequest(err))

		_, err = run(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "x"})
		assert.True(t, IsBadRequest(err))

		_, err = run(t, eng, TargetPost, alice, nil, "reply", map[string]interface{}{"board_id": "GEN1", "post_id": "9", "body": "x"})
		assert.True(t, IsNotFound(err))

		_, err = run(t, eng, TargetPost, alice, nil, "reply", map[string]interface{}{"board_id": "GEN1", "post_id": "one", "body": "x"})
		assert.True(t, IsBadRequest(err))

		_, err = run(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN9", "subject": "x", "body": "x"})
		assert.True(t, IsNotFound(err))
	})

	t.Run("post lock is enforced", func(t *testing.T) {
		mustRun(t, eng, TargetBoard, admin, nil, "setLock", map[string]interface{}{"board_id": "GEN2", "lockstring": "post:perm(Admin)"})
		_, err := run(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN2", "subject": "x", "body": "x"})
		assert.True(t, IsUnauthorized(err))
		_, err = run(t, eng, TargetPost, alice, nil, "reply", map[string]interface{}{"board_id": "GEN2", "post_id": "1", "body": "x"})
		assert.True(t, IsUnauthorized(err))
	})
}

func TestListPosts(t *testing.T) {
	eng, _, _ := setupTestEngine(t)
	seedBoard(t, eng)

	t.Run("empty board", func(t *testing.T) {
		req := mustRun(t, eng, TargetPost, alice, nil, "list", map[string]interface{}{"board_id": "GEN1"})
		assert.Equal(t, 0, req.Results["pages"])
		assert.Equal(t, 0, req.Results["page"])
		assert.Empty(t, req.Results["posts"])
		assert.NotNil(t, req.Results["posts"])
	})

	for i := 1; i <= 120; i++ {
		mustRun(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{
			"board_id": "GEN1", "subject": fmt.Sprintf("Post %d", i), "body": "x",
		})
	}

	tests := []struct {
		name  string
		args  map[string]interface{}
		page  int
		first string
		last  string
		count int
	}{
		{"newest page by default", map[string]interface{}{"board_id": "GEN1", "posts_per_page": 50}, 3, "71", "120", 50},
		{"middle page", map[string]interface{}{"board_id": "GEN1", "posts_per_page": 50, "page": 2}, 2, "21", "70", 50},
		{"oldest page is short", map[string]interface{}{"board_id": "GEN1", "posts_per_page": 50, "page": 1}, 1, "1", "20", 20},
		{"page in board id", map[string]interface{}{"board_id": "GEN1.2", "posts_per_page": 50}, 2, "21", "70", 50},
		{"page past the end clamps", map[string]interface{}{"board_id": "GEN1", "posts_per_page": 50, "page": 99}, 3, "71", "120", 50},
		{"engine default page size", map[string]interface{}{"board_id": "GEN1"}, 3, "71", "120", 50},
		{"string arguments", map[string]interface{}{"board_id": "GEN1", "posts_per_page": "100", "page": "1"}, 1, "1", "20", 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mustRun(t, eng, TargetPost, bob, nil, "list", tt.args)
			posts := req.Results["posts"].([]PostView)
			require.Len(t, posts, tt.count)
			assert.Equal(t, tt.page, req.Results["page"])
			assert.Equal(t, tt.first, posts[0].PostNumber)
			assert.Equal(t, tt.last, posts[len(posts)-1].PostNumber)
			assert.Equal(t, 120, req.Results["board"].(BoardView).PostCount)
		})
	}

	t.Run("pages are counted from the page size", func(t *testing.T) {
		req := mustRun(t, eng, TargetPost, bob, nil, "list", map[string]interface{}{"board_id": "GEN1", "posts_per_page": 50})
		assert.Equal(t, 3, req.Results["pages"])
	})

	t.Run("bad paging input", func(t *testing.T) {
		_, err := run(t, eng, TargetPost, bob, nil, "list", map[string]interface{}{"board_id": "GEN1", "page": -1})
		assert.True(t, IsBadRequest(err))
		_, err = run(t, eng, TargetPost, bob, nil, "list", map[string]interface{}{"board_id": "GEN1", "posts_per_page": 0})
		assert.True(t, IsBadRequest(err))
		_, err = run(t, eng, TargetPost, bob, nil, "list", map[string]interface{}{"board_id": "GEN1.x"})
		assert.True(t, IsBadRequest(err))
	})

	t.Run("read flags are per viewer", func(t *testing.T) {
		mustRun(t, eng, TargetPost, bob, nil, "read", map[string]interface{}{"board_id": "GEN1", "post_id": "120"})
		req := mustRun(t, eng, TargetPost, bob, nil, "list", map[string]interface{}{"board_id": "GEN1", "posts_per_page": 2})
		posts := req.Results["posts"].([]PostView)
		require.Len(t, posts, 2)
		assert.False(t, posts[0].Read)
		assert.True(t, posts[1].Read)
	})

	t.Run("read lock is enforced", func(t *testing.T) {
		mustRun(t, eng, TargetBoard, admin, nil, "setLock", map[string]interface{}{"board_id": "GEN1", "lockstring": "read:perm(Admin)"})
		_, err := run(t, eng, TargetPost, bob, nil, "list", map[string]interface{}{"board_id": "GEN1"})
		assert.True(t, IsUnauthorized(err))
		_, err = run(t, eng, TargetPost, bob, nil, "read", map[string]interface{}{"board_id": "GEN1", "post_id": "1"})
		assert.True(t, IsUnauthorized(err))
	})
}

func TestReadPost(t *testing.T) {
	eng, client, _ := setupTestEngine(t)
	ctx := context.Background()
	seedBoard(t, eng)
	mustRun(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "Hello", "body": "World"})

	for i := 0; i < 2; i++ {
		req := mustRun(t, eng, TargetPost, bob, nil, "read", map[string]interface{}{"board_id": "GEN1", "post_id": "1"})
		post := req.Results["post"].(PostView)
		assert.Equal(t, "World", post.Body)
		assert.True(t, post.Read)
		assert.Nil(t, post.UserID, "readers do not see author details")
		assert.Equal(t, "GEN1", req.Results["board"].(BoardView).BoardID)
	}

	read, err := client.CountRead(ctx, 1, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, read, "reading twice leaves one marker")

	// a persona reads on behalf of its account
	mustRun(t, eng, TargetPost, alice, &zed, "read", map[string]interface{}{"board_id": "GEN1", "post_id": "1"})
	read, err = client.CountRead(ctx, 1, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, read)

	_, err = run(t, eng, TargetPost, bob, nil, "read", map[string]interface{}{"board_id": "GEN1", "post_id": "2"})
	assert.True(t, IsNotFound(err))
	_, err = run(t, eng, TargetPost, bob, nil, "read", map[string]interface{}{"board_id": "GEN1"})
	assert.True(t, IsBadRequest(err))
}

func TestRemovePost(t *testing.T) {
	eng, client, _ := setupTestEngine(t)
	ctx := context.Background()
	seedBoard(t, eng)
	mustRun(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "One", "body": "x"})
	mustRun(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "Two", "body": "x"})
	mustRun(t, eng, TargetPost, bob, nil, "reply", map[string]interface{}{"board_id": "GEN1", "post_id": "1", "body": "x"})
	mustRun(t, eng, TargetPost, bob, nil, "read", map[string]interface{}{"board_id": "GEN1", "post_id": "2"})

	t.Run("others may not remove", func(t *testing.T) {
		_, err := run(t, eng, TargetPost, bob, nil, "remove", map[string]interface{}{"board_id": "GEN1", "post_id": "2"})
		assert.True(t, IsUnauthorized(err))
	})

	t.Run("author removes and leaves a gap", func(t *testing.T) {
		req := mustRun(t, eng, TargetPost, alice, nil, "remove", map[string]interface{}{"board_id": "GEN1", "post_id": "2"})
		assert.Equal(t, "Post GEN1/2 removed.", req.Message)
		assert.True(t, req.Results["post"].(PostView).Deleted)
		assert.Equal(t, 2, req.Results["board"].(BoardView).PostCount)

		read, err := client.CountRead(ctx, 1, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, read, "only bob's own reply is still read")

		req = mustRun(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "Three", "body": "x"})
		assert.Equal(t, "3", req.Results["post"].(PostView).PostNumber)

		_, err = run(t, eng, TargetPost, alice, nil, "read", map[string]interface{}{"board_id": "GEN1", "post_id": "2"})
		assert.True(t, IsNotFound(err))
	})

	t.Run("board admin removes anything", func(t *testing.T) {
		mustRun(t, eng, TargetPost, admin, nil, "remove", map[string]interface{}{"board_id": "GEN1", "post_id": "1.1"})
		req := mustRun(t, eng, TargetPost, bob, nil, "list", map[string]interface{}{"board_id": "GEN1"})
		assert.Equal(t, []string{"1", "3"}, postNumbers(req.Results["posts"].([]PostView)))

		read, err := client.CountRead(ctx, 1, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, read, "read markers go with the post")
	})

	t.Run("author needs post access", func(t *testing.T) {
		mustRun(t, eng, TargetBoard, admin, nil, "setLock", map[string]interface{}{"board_id": "GEN1", "lockstring": "post:none()"})
		_, err := run(t, eng, TargetPost, alice, nil, "remove", map[string]interface{}{"board_id": "GEN1", "post_id": "3"})
		assert.True(t, IsUnauthorized(err))
	})
}

func TestInCharacterAndDisguisedBoards(t *testing.T) {
	eng, _, _ := setupTestEngine(t)
	seedBoard(t, eng)
	mustRun(t, eng, TargetBoard, admin, nil, "setConfig", map[string]interface{}{"board_id": "GEN1", "key": "ic", "value": "true"})

	t.Run("in-character boards need a persona", func(t *testing.T) {
		_, err := run(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "x", "body": "x"})
		assert.True(t, IsBadRequest(err))

		req := mustRun(t, eng, TargetPost, alice, &zed, "create", map[string]interface{}{"board_id": "GEN1", "subject": "Rumours", "body": "x"})
		post := req.Results["post"].(PostView)
		assert.Equal(t, "Zed", post.Author)
		require.NotNil(t, post.CharacterName)
		assert.Equal(t, "Zed", *post.CharacterName)

		req = mustRun(t, eng, TargetPost, bob, nil, "list", map[string]interface{}{"board_id": "GEN1"})
		seen := req.Results["posts"].([]PostView)[0]
		assert.Equal(t, "Zed", seen.Author)
		assert.Nil(t, seen.CharacterID)
	})

	t.Run("disguised boards hide the poster from readers", func(t *testing.T) {
		mustRun(t, eng, TargetBoard, admin, nil, "setConfig", map[string]interface{}{"board_id": "GEN1", "key": "disguise", "value": "true"})

		_, err := run(t, eng, TargetPost, alice, &zed, "create", map[string]interface{}{"board_id": "GEN1", "subject": "x", "body": "x"})
		assert.True(t, IsBadRequest(err))

		mustRun(t, eng, TargetPost, alice, &zed, "create", map[string]interface{}{"board_id": "GEN1", "subject": "Masked", "body": "x", "disguise": "A Stranger"})

		req := mustRun(t, eng, TargetPost, bob, nil, "list", map[string]interface{}{"board_id": "GEN1"})
		posts := req.Results["posts"].([]PostView)
		require.Len(t, posts, 2)
		assert.Equal(t, "A Stranger", posts[1].Author)
		assert.Nil(t, posts[1].UserName)

		req = mustRun(t, eng, TargetPost, admin, nil, "list", map[string]interface{}{"board_id": "GEN1"})
		masked := req.Results["posts"].([]PostView)[1]
		assert.Equal(t, "A Stranger (Zed)", masked.Author)
		require.NotNil(t, masked.Disguise)
		assert.Equal(t, "alice", *masked.UserName)

		req = mustRun(t, eng, TargetPost, alice, nil, "list", map[string]interface{}{"board_id": "GEN1"})
		assert.Equal(t, "A Stranger (Zed)", req.Results["posts"].([]PostView)[1].Author, "the author sees through their own disguise")
	})
}

func TestFanout(t *testing.T) {
	eng, client, rec := setupTestEngine(t)
	ctx := context.Background()
	seedBoard(t, eng)
	mustRun(t, eng, TargetBoard, admin, nil, "create", map[string]interface{}{"collection_id": "GEN", "name": "Roleplay"})
	mustRun(t, eng, TargetBoard, admin, nil, "setConfig", map[string]interface{}{"board_id": "GEN2", "key": "ic", "value": "true"})

	carol := bbs.Identity{Kind: bbs.IdentityAccount, ID: 4, Name: "carol"}
	for _, id := range []bbs.Identity{admin, alice, bob, carol, zed} {
		require.NoError(t, client.Connect(ctx, id))
	}

	t.Run("online readers are notified", func(t *testing.T) {
		mustRun(t, eng, TargetPost, alice, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "News", "body": "x"})

		got := rec.notificationsFor(bob.ID)
		require.Len(t, got, 1)
		assert.Equal(t, "New BB Message (GEN1/1) posted to 'Announcements' by alice: News", got[0].Message)
		assert.Equal(t, "GEN1", got[0].BoardID)
		assert.Equal(t, "1", got[0].PostID)
		assert.Len(t, rec.notificationsFor(alice.ID), 1, "the poster is notified too")
		assert.Empty(t, rec.notificationsFor(zed.ID), "personas are not notified on out-of-character boards")
	})

	t.Run("readers without access are skipped", func(t *testing.T) {
		mustRun(t, eng, TargetBoard, admin, nil, "setLock", map[string]interface{}{"board_id": "GEN1", "lockstring": "read:perm(Admin) or id(3)"})
		mustRun(t, eng, TargetPost, admin, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "Staff", "body": "x"})

		assert.Len(t, rec.notificationsFor(bob.ID), 2)
		assert.Len(t, rec.notificationsFor(carol.ID), 1)
		assert.Len(t, rec.notificationsFor(admin.ID), 2)
	})

	t.Run("one failed delivery does not stop the rest", func(t *testing.T) {
		rec.failFor = bob.ID
		defer func() { rec.failFor = 0 }()

		mustRun(t, eng, TargetPost, admin, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "Again", "body": "x"})
		assert.Len(t, rec.notificationsFor(bob.ID), 2)
		assert.Len(t, rec.notificationsFor(admin.ID), 3)
	})

	t.Run("in-character boards notify personas", func(t *testing.T) {
		mustRun(t, eng, TargetPost, alice, &zed, "create", map[string]interface{}{"board_id": "GEN2", "subject": "Tavern", "body": "x"})

		got := rec.notificationsFor(zed.ID)
		require.Len(t, got, 1)
		assert.Equal(t, bbs.IdentityPersona, got[0].Target.Kind)
		assert.Equal(t, "New BB Message (GEN2/1) posted to 'Roleplay' by Zed: Tavern", got[0].Message)
		assert.Len(t, rec.notificationsFor(carol.ID), 1, "accounts are not notified on in-character boards")
	})

	t.Run("disconnected identities are not notified", func(t *testing.T) {
		require.NoError(t, client.Disconnect(ctx, carol))
		mustRun(t, eng, TargetBoard, admin, nil, "setLock", map[string]interface{}{"board_id": "GEN1", "lockstring": "read:all()"})
		mustRun(t, eng, TargetPost, bob, nil, "create", map[string]interface{}{"board_id": "GEN1", "subject": "Bye", "body": "x"})
		assert.Len(t, rec.notificationsFor(carol.ID), 1)
		assert.Len(t, rec.notificationsFor(bob.ID), 3)
	})
}
