package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/dyluth/bbs/internal/options"
	"github.com/dyluth/bbs/pkg/bbs"
)

// fanout notifies every connected identity that can read the board. Personas
// are notified on in-character boards, accounts otherwise. Each target is
// handled on its own: a failed delivery is logged and the loop moves on.
func (e *Engine) fanout(ctx context.Context, req *Request, col *bbs.Collection, b *bbs.Board, p *bbs.Post) {
	if e.directory == nil || e.notifier == nil {
		return
	}

	var (
		targets []bbs.Identity
		err     error
	)
	if e.boardOptions.Bool(b.Config, options.KeyIC) {
		targets, err = e.directory.OnlinePersonas(ctx)
	} else {
		targets, err = e.directory.OnlineAccounts(ctx)
	}
	if err != nil {
		log.Printf("[Fanout] Failed to list online targets for %s: %v", boardID(col, b), err)
		return
	}

	delivered := 0
	for _, target := range targets {
		if !e.access.BoardRead(target, col, b) {
			continue
		}

		author := e.renderAuthor(target, b, p, e.access.BoardAdmin(target, col, b))
		n := &bbs.Notification{
			Target:    target,
			BoardID:   boardID(col, b),
			PostID:    p.PostID(),
			BoardName: b.Name,
			Author:    author,
			Subject:   p.Subject,
			Message: fmt.Sprintf("New BB Message (%s/%s) posted to '%s' by %s: %s",
				boardID(col, b), p.PostID(), b.Name, author, p.Subject),
			CreatedAt: p.CreatedAt,
		}
		if err := e.notifier.Notify(ctx, n); err != nil {
			log.Printf("[Fanout] Failed to notify %s %d: %v", target.Kind, target.ID, err)
			e.logEvent("notification_failed", req, map[string]interface{}{
				"target_kind": string(target.Kind),
				"target_id":   target.ID,
				"error":       err.Error(),
			})
			continue
		}
		delivered++
	}

	e.logEvent("fanout_complete", req, map[string]interface{}{
		"board_id":  boardID(col, b),
		"post_id":   p.PostID(),
		"delivered": delivered,
	})
}
