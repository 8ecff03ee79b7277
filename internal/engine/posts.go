package engine

import (
	"context"
	"strings"

	"github.com/dyluth/bbs/internal/options"
	"github.com/dyluth/bbs/pkg/bbs"
)

const replyPrefix = "RE: "

// author fills in the author fields of a new post from the request.
// A persona is only recorded on in-character boards.
func (e *Engine) author(req *Request, b *bbs.Board, p *bbs.Post) error {
	p.AccountID = req.Account.ID
	p.AccountName = req.Account.Name

	if e.boardOptions.Bool(b.Config, options.KeyIC) {
		if req.Persona == nil {
			return badRequest("This board is in-character. You must post as a character.")
		}
		p.PersonaID = req.Persona.ID
		p.PersonaName = req.Persona.Name
	}

	if e.boardOptions.Bool(b.Config, options.KeyDisguise) {
		disguise, _ := req.String(ArgDisguise)
		disguise = strings.TrimSpace(disguise)
		if disguise == "" {
			return badRequest("This board requires a disguise.")
		}
		p.Disguise = disguise
	}
	return nil
}

func (e *Engine) requirePost(req *Request, col *bbs.Collection, b *bbs.Board) error {
	if !e.access.BoardPost(req.Actor(), col, b) {
		return unauthorized("Permission denied.")
	}
	return nil
}

func (e *Engine) requireRead(req *Request, col *bbs.Collection, b *bbs.Board) error {
	if !e.access.BoardRead(req.Actor(), col, b) {
		return unauthorized("Permission denied.")
	}
	return nil
}

func (e *Engine) createPost(ctx context.Context, req *Request) error {
	col, b, err := e.boardArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requirePost(req, col, b); err != nil {
		return err
	}
	subject, err := req.required(ArgSubject)
	if err != nil {
		return err
	}
	body, err := req.required(ArgBody)
	if err != nil {
		return err
	}

	p := &bbs.Post{BoardID: b.ID, Subject: subject, Body: body, CreatedAt: e.now()}
	if err := e.author(req, b, p); err != nil {
		return err
	}
	if err := e.store.CreatePost(ctx, p); err != nil {
		return err
	}

	e.posted(ctx, req, col, b, p, "post_created")
	return nil
}

func (e *Engine) replyPost(ctx context.Context, req *Request) error {
	col, b, err := e.boardArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requirePost(req, col, b); err != nil {
		return err
	}
	target, err := e.postArg(ctx, req, col, b)
	if err != nil {
		return err
	}
	body, err := req.required(ArgBody)
	if err != nil {
		return err
	}

	subject, _ := req.String(ArgSubject)
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = replyPrefix + target.Subject
	}

	p := &bbs.Post{BoardID: b.ID, Number: target.Number, Subject: subject, Body: body, CreatedAt: e.now()}
	if err := e.author(req, b, p); err != nil {
		return err
	}
	if err := e.store.CreateReply(ctx, p); err != nil {
		return err
	}

	e.posted(ctx, req, col, b, p, "reply_created")
	return nil
}

// posted fills in the results of a successful create or reply and fans out.
func (e *Engine) posted(ctx context.Context, req *Request, col *bbs.Collection, b *bbs.Board, p *bbs.Post, event string) {
	b.LastActivity = p.CreatedAt
	if !p.IsReply() {
		b.NextPostNumber = p.Number + 1
	}

	admin := e.access.BoardAdmin(req.Actor(), col, b)
	req.Status = StatusCreated
	req.Message = "Posted " + boardID(col, b) + "/" + p.PostID() + ": " + p.Subject
	req.Results["post"] = e.postView(req.Actor(), col, b, p, true, admin)
	e.logEvent(event, req, map[string]interface{}{
		"board_id": boardID(col, b),
		"post_id":  p.PostID(),
	})

	e.fanout(ctx, req, col, b, p)
}

func (e *Engine) readPost(ctx context.Context, req *Request) error {
	col, b, err := e.boardArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requireRead(req, col, b); err != nil {
		return err
	}
	p, err := e.postArg(ctx, req, col, b)
	if err != nil {
		return err
	}

	if err := e.store.MarkRead(ctx, req.Account.ID, p); err != nil {
		return err
	}

	view, err := e.boardResult(ctx, col, b)
	if err != nil {
		return err
	}
	admin := e.access.BoardAdmin(req.Actor(), col, b)
	req.Results["board"] = view
	req.Results["post"] = e.postView(req.Actor(), col, b, p, true, admin)
	return nil
}

// removePost soft-deletes a post. Its author or a board admin may remove it.
func (e *Engine) removePost(ctx context.Context, req *Request) error {
	col, b, err := e.boardArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requirePost(req, col, b); err != nil {
		return err
	}
	p, err := e.postArg(ctx, req, col, b)
	if err != nil {
		return err
	}

	isAuthor := p.AccountID == req.Account.ID ||
		(req.Persona != nil && p.PersonaID != 0 && p.PersonaID == req.Persona.ID)
	admin := e.access.BoardAdmin(req.Actor(), col, b)
	if !isAuthor && !admin {
		return unauthorized("Only the author or a board admin may remove post %s/%s.", boardID(col, b), p.PostID())
	}

	if err := e.store.RemovePost(ctx, p); err != nil {
		return err
	}

	view, err := e.boardResult(ctx, col, b)
	if err != nil {
		return err
	}
	req.Message = "Post " + boardID(col, b) + "/" + p.PostID() + " removed."
	req.Results["board"] = view
	req.Results["post"] = e.postView(req.Actor(), col, b, p, true, admin)
	e.logEvent("post_removed", req, map[string]interface{}{
		"board_id": boardID(col, b),
		"post_id":  p.PostID(),
	})
	return nil
}

// listPosts returns one page of a board. Pages are counted so the newest
// page is always full; an unspecified page means the newest.
func (e *Engine) listPosts(ctx context.Context, req *Request) error {
	col, b, page, err := e.boardPageArg(ctx, req)
	if err != nil {
		return err
	}
	if err := e.requireRead(req, col, b); err != nil {
		return err
	}

	if explicit, given, err := req.Int(ArgPage); err != nil {
		return err
	} else if given {
		page = explicit
	}
	if page < 0 {
		return badRequest("Page must be a positive whole number.")
	}
	perPage, given, err := req.Int(ArgPostsPerPage)
	if err != nil {
		return err
	}
	if !given {
		perPage = e.postsPerPage
	}
	if perPage < 1 {
		return badRequest("'%s' must be a positive whole number.", ArgPostsPerPage)
	}

	total, err := e.store.CountPosts(ctx, b.ID)
	if err != nil {
		return err
	}
	pages := (total + perPage - 1) / perPage
	if page == 0 || page > pages {
		page = pages
	}

	views := []PostView{}
	if total > 0 {
		posts, err := e.store.ListPosts(ctx, b.ID, (pages-page)*perPage, perPage)
		if err != nil {
			return err
		}
		flags, err := e.store.ReadFlags(ctx, req.Account.ID, posts)
		if err != nil {
			return err
		}
		admin := e.access.BoardAdmin(req.Actor(), col, b)
		for _, p := range posts {
			views = append(views, e.postView(req.Actor(), col, b, p, flags[p.ID], admin))
		}
	}

	req.Results["board"] = e.boardView(col, b, total)
	req.Results["page"] = page
	req.Results["pages"] = pages
	req.Results["posts"] = views
	return nil
}
