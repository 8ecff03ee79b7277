package engine

import (
	"context"
	"errors"
	"strconv"

	"github.com/dyluth/bbs/internal/options"
	"github.com/dyluth/bbs/pkg/bbs"
)

func (e *Engine) boardResult(ctx context.Context, col *bbs.Collection, b *bbs.Board) (BoardView, error) {
	n, err := e.store.CountPosts(ctx, b.ID)
	if err != nil {
		return BoardView{}, err
	}
	return e.boardView(col, b, n), nil
}

func (e *Engine) requireBoardAdmin(req *Request, col *bbs.Collection, b *bbs.Board) error {
	if !e.access.BoardAdmin(req.Actor(), col, b) {
		return unauthorized("Permission denied.")
	}
	return nil
}

func (e *Engine) createBoard(ctx context.Context, req *Request) error {
	col, err := e.collectionArg(ctx, req)
	if err != nil {
		return err
	}
	if !e.access.CollectionAdmin(req.Actor(), col) {
		return unauthorized("Permission denied.")
	}
	name, err := req.required(ArgName)
	if err != nil {
		return err
	}
	order, given, err := req.Int(ArgOrder)
	if err != nil {
		return err
	}
	if given && order < 1 {
		return badRequest("Board order must be a positive whole number.")
	}

	now := e.now()
	b := &bbs.Board{
		CollectionID:   col.ID,
		Name:           name,
		Order:          order,
		NextPostNumber: 1,
		Locks:          e.collectionOptions.Text(col.Config, options.KeyDefaultLocks),
		CreatedAt:      now,
		LastActivity:   now,
	}
	if err := e.store.CreateBoard(ctx, b); err != nil {
		return err
	}

	req.Status = StatusCreated
	req.Message = "Board '" + boardLabel(col, b) + "' created."
	req.Results["created"] = e.boardView(col, b, 0)
	e.alert(ctx, req, req.Message)
	e.logEvent("board_created", req, map[string]interface{}{
		"board_id":      boardID(col, b),
		"collection_id": col.ID,
		"name":          b.Name,
	})
	return nil
}

func (e *Engine) renameBoard(ctx context.Context, req *Request) error {
	col, b, err := e.boardArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requireBoardAdmin(req, col, b); err != nil {
		return err
	}
	name, err := req.required(ArgName)
	if err != nil {
		return err
	}

	old := boardLabel(col, b)
	if err := e.store.RenameBoard(ctx, b.ID, name); err != nil {
		return err
	}
	b.Name = name

	view, err := e.boardResult(ctx, col, b)
	if err != nil {
		return err
	}
	req.Message = "Board '" + old + "' renamed to '" + b.Name + "'."
	req.Results["board"] = view
	e.alert(ctx, req, req.Message)
	e.logEvent("board_renamed", req, map[string]interface{}{"board_id": boardID(col, b), "name": name})
	return nil
}

func (e *Engine) reorderBoard(ctx context.Context, req *Request) error {
	col, b, err := e.boardArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requireBoardAdmin(req, col, b); err != nil {
		return err
	}
	order, given, err := req.Int(ArgOrder)
	if err != nil {
		return err
	}
	if !given || order < 1 {
		return badRequest("Board order must be a positive whole number.")
	}
	if order == b.Order {
		return conflict("Board '%s' already has order %d.", boardLabel(col, b), order)
	}

	old := boardID(col, b)
	if err := e.store.ReorderBoard(ctx, b.ID, order); err != nil {
		return err
	}
	b.Order = order

	view, err := e.boardResult(ctx, col, b)
	if err != nil {
		return err
	}
	req.Message = "Board '" + old + "' is now '" + boardLabel(col, b) + "'."
	req.Results["board"] = view
	e.alert(ctx, req, req.Message)
	e.logEvent("board_reordered", req, map[string]interface{}{"from": old, "board_id": boardID(col, b)})
	return nil
}

func (e *Engine) setBoardLock(ctx context.Context, req *Request) error {
	col, b, err := e.boardArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requireBoardAdmin(req, col, b); err != nil {
		return err
	}
	lockstring, err := req.required(ArgLockstring)
	if err != nil {
		return err
	}

	merged, err := e.locks.Add(b.Locks, lockstring)
	if err != nil {
		return badRequest("Invalid lock string: %v", err)
	}
	if err := e.store.SetBoardLocks(ctx, b.ID, merged); err != nil {
		return err
	}
	b.Locks = merged

	view, err := e.boardResult(ctx, col, b)
	if err != nil {
		return err
	}
	req.Message = "Board '" + boardLabel(col, b) + "' locks set to: " + merged
	req.Results["board"] = view
	e.alert(ctx, req, req.Message)
	e.logEvent("board_locked", req, map[string]interface{}{"board_id": boardID(col, b), "locks": merged})
	return nil
}

func (e *Engine) deleteBoard(ctx context.Context, req *Request) error {
	col, b, err := e.boardArg(ctx, req)
	if err != nil {
		return err
	}
	if !e.access.CollectionAdmin(req.Actor(), col) {
		return unauthorized("Permission denied.")
	}

	posts, err := e.store.DeleteBoard(ctx, b.ID, confirmed(req, b.Name))
	var notEmpty *bbs.NotEmptyError
	if errors.As(err, &notEmpty) {
		return conflict("Board '%s' has %d posts. Supply its exact name to confirm deletion.", boardLabel(col, b), notEmpty.Count)
	}
	if err != nil {
		return err
	}

	req.Message = "Board '" + boardLabel(col, b) + "' deleted."
	req.Results["board"] = e.boardView(col, b, posts)
	e.alert(ctx, req, req.Message)
	e.logEvent("board_deleted", req, map[string]interface{}{"board_id": boardID(col, b), "posts": posts})
	return nil
}

func (e *Engine) listBoardConfig(ctx context.Context, req *Request) error {
	col, b, err := e.boardArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requireBoardAdmin(req, col, b); err != nil {
		return err
	}

	req.Results["board"] = e.boardView(col, b, 0)
	req.Results["config"] = ConfigView(e.boardOptions.List(b.Config))
	return nil
}

func (e *Engine) setBoardConfig(ctx context.Context, req *Request) error {
	col, b, err := e.boardArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requireBoardAdmin(req, col, b); err != nil {
		return err
	}

	key, value, err := coerceOption(e.boardOptions, req)
	if err != nil {
		return err
	}
	if err := e.store.SetBoardOption(ctx, b.ID, key, value); err != nil {
		return err
	}
	b.Config[key] = value

	req.Message = "Board '" + boardLabel(col, b) + "' option '" + key + "' set to '" + value + "'."
	req.Results["config"] = ConfigView(e.boardOptions.List(b.Config))
	e.alert(ctx, req, req.Message)
	e.logEvent("board_configured", req, map[string]interface{}{"board_id": boardID(col, b), "key": key, "value": value})
	return nil
}

// listBoards returns every board the actor may see, with unread counts.
func (e *Engine) listBoards(ctx context.Context, req *Request) error {
	actor := req.Actor()

	cols, err := e.store.ListCollections(ctx)
	if err != nil {
		return err
	}
	visible := make(map[int64]*bbs.Collection, len(cols))
	for _, col := range cols {
		if e.access.CollectionRead(actor, col) {
			visible[col.ID] = col
		}
	}

	boards, err := e.store.ListBoards(ctx)
	if err != nil {
		return err
	}
	entries := make([]BoardEntry, 0, len(boards))
	for _, b := range boards {
		col, ok := visible[b.CollectionID]
		if !ok {
			continue
		}
		perms := e.access.BoardPerms(actor, col, b)
		if !perms.Read {
			continue
		}

		total, err := e.store.CountPosts(ctx, b.ID)
		if err != nil {
			return err
		}
		read, err := e.store.CountRead(ctx, b.ID, req.Account.ID)
		if err != nil {
			return err
		}
		unread := total - read
		if unread < 0 {
			unread = 0
		}
		entries = append(entries, BoardEntry{
			BoardView:   e.boardView(col, b, total),
			Perms:       perms,
			UnreadCount: unread,
		})
	}

	req.Results["boards"] = entries
	req.Message = strconv.Itoa(len(entries)) + " boards."
	return nil
}
