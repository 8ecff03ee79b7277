package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/dyluth/bbs/pkg/bbs"
)

// findCollection resolves a collection reference: numeric id, then name,
// then abbreviation, all case-insensitive. Deleted collections never resolve.
func (e *Engine) findCollection(ctx context.Context, ref string) (*bbs.Collection, error) {
	ref = strings.TrimSpace(ref)

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		col, err := e.store.GetCollection(ctx, id)
		if err == nil {
			return col, nil
		}
		if !bbs.IsNotFound(err) {
			return nil, err
		}
	}

	if ref != "" {
		col, err := e.store.FindCollectionByName(ctx, ref)
		if err == nil {
			return col, nil
		}
		if !bbs.IsNotFound(err) {
			return nil, err
		}
	}

	if ref == "" || bbs.AbbreviationPattern.MatchString(ref) {
		col, err := e.store.FindCollectionByAbbreviation(ctx, ref)
		if err == nil {
			return col, nil
		}
		if !bbs.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, notFound("Board Collection '%s' not found.", ref)
}

// collectionArg resolves the collection_id argument.
func (e *Engine) collectionArg(ctx context.Context, req *Request) (*bbs.Collection, error) {
	ref, ok := req.String(ArgCollectionID)
	if !ok {
		return nil, badRequest("'%s' is required.", ArgCollectionID)
	}
	return e.findCollection(ctx, ref)
}

// findBoard resolves a board id ("GEN3") to the board and its collection.
func (e *Engine) findBoard(ctx context.Context, abbreviation string, order int, display string) (*bbs.Collection, *bbs.Board, error) {
	col, err := e.store.FindCollectionByAbbreviation(ctx, abbreviation)
	if bbs.IsNotFound(err) {
		return nil, nil, notFound("Board '%s' not found.", display)
	}
	if err != nil {
		return nil, nil, err
	}

	b, err := e.store.FindBoard(ctx, col.ID, order)
	if bbs.IsNotFound(err) {
		return nil, nil, notFound("Board '%s' not found.", display)
	}
	if err != nil {
		return nil, nil, err
	}
	return col, b, nil
}

// boardArg resolves the board_id argument. A trailing page is rejected.
func (e *Engine) boardArg(ctx context.Context, req *Request) (*bbs.Collection, *bbs.Board, error) {
	ref, err := req.required(ArgBoardID)
	if err != nil {
		return nil, nil, err
	}
	abbreviation, order, err := bbs.ParseBoardID(ref)
	if err != nil {
		return nil, nil, badRequest("Invalid board id '%s'.", ref)
	}
	return e.findBoard(ctx, abbreviation, order, ref)
}

// boardPageArg resolves board_id allowing an embedded page ("GEN3.2").
// page is 0 when unspecified.
func (e *Engine) boardPageArg(ctx context.Context, req *Request) (*bbs.Collection, *bbs.Board, int, error) {
	ref, err := req.required(ArgBoardID)
	if err != nil {
		return nil, nil, 0, err
	}
	abbreviation, order, page, err := bbs.ParseBoardRef(ref)
	if err != nil {
		return nil, nil, 0, badRequest("Invalid board id '%s'.", ref)
	}
	col, b, err := e.findBoard(ctx, abbreviation, order, ref)
	if err != nil {
		return nil, nil, 0, err
	}
	return col, b, page, nil
}

// postArg resolves the post_id argument on board b.
func (e *Engine) postArg(ctx context.Context, req *Request, col *bbs.Collection, b *bbs.Board) (*bbs.Post, error) {
	ref, err := req.required(ArgPostID)
	if err != nil {
		return nil, err
	}
	number, reply, err := bbs.ParsePostID(ref)
	if err != nil {
		return nil, badRequest("Invalid post id '%s'.", ref)
	}

	p, err := e.store.FindPost(ctx, b.ID, number, reply)
	if bbs.IsNotFound(err) {
		return nil, notFound("Post %s/%s not found.", boardID(col, b), ref)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func boardID(col *bbs.Collection, b *bbs.Board) string {
	return bbs.FormatBoardID(col.Abbreviation, b.Order)
}

func collectionLabel(col *bbs.Collection) string {
	if col.Abbreviation == "" {
		return col.Name
	}
	return col.Abbreviation + ": " + col.Name
}

func boardLabel(col *bbs.Collection, b *bbs.Board) string {
	return boardID(col, b) + ": " + b.Name
}
