package engine

import (
	"fmt"
	"time"

	"github.com/dyluth/bbs/internal/access"
	"github.com/dyluth/bbs/internal/options"
	"github.com/dyluth/bbs/pkg/bbs"
)

// CollectionView is the serialized form of a collection.
type CollectionView struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Abbreviation string            `json:"abbreviation"`
	Locks        string            `json:"locks"`
	Config       map[string]string `json:"config"`
	BoardCount   int               `json:"board_count"`
	CreatedAt    time.Time         `json:"created_at"`
}

// BoardView is the serialized form of a board.
type BoardView struct {
	BoardID        string    `json:"board_id"`
	ID             int64     `json:"id"`
	CollectionID   int64     `json:"collection_id"`
	CollectionName string    `json:"collection_name"`
	Name           string    `json:"name"`
	Order          int       `json:"order"`
	Description    string    `json:"description,omitempty"`
	NextPostNumber int       `json:"next_post_number"`
	LastActivity   time.Time `json:"last_activity"`
	Locks          string    `json:"locks"`
	PostCount      int       `json:"post_count"`
}

// BoardEntry is one row of a board listing.
type BoardEntry struct {
	BoardView
	access.Perms
	UnreadCount int `json:"unread_count"`
}

// PostView is a post as seen by one viewer. The pointer fields are only
// filled in for privileged viewers.
type PostView struct {
	ID          int64     `json:"id"`
	PostNumber  string    `json:"post_number"`
	BoardID     string    `json:"board_id"`
	BoardName   string    `json:"board_name"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Author      string    `json:"author"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	Deleted     bool      `json:"deleted,omitempty"`

	UserID        *int64  `json:"user_id,omitempty"`
	UserName      *string `json:"user_name,omitempty"`
	CharacterID   *int64  `json:"character_id,omitempty"`
	CharacterName *string `json:"character_name,omitempty"`
	Disguise      *string `json:"disguise,omitempty"`
}

// ConfigView is a rendered option table.
type ConfigView []options.Entry

func collectionView(col *bbs.Collection, boardCount int) CollectionView {
	return CollectionView{
		ID:           col.ID,
		Name:         col.Name,
		Abbreviation: col.Abbreviation,
		Locks:        col.Locks,
		Config:       col.Config,
		BoardCount:   boardCount,
		CreatedAt:    col.CreatedAt,
	}
}

func (e *Engine) boardView(col *bbs.Collection, b *bbs.Board, postCount int) BoardView {
	return BoardView{
		BoardID:        boardID(col, b),
		ID:             b.ID,
		CollectionID:   col.ID,
		CollectionName: col.Name,
		Name:           b.Name,
		Order:          b.Order,
		Description:    e.boardOptions.Text(b.Config, options.KeyDescription),
		NextPostNumber: b.NextPostNumber,
		LastActivity:   b.LastActivity,
		Locks:          b.Locks,
		PostCount:      postCount,
	}
}

// privileged reports whether viewer may see who really wrote p.
func privileged(viewer bbs.Identity, p *bbs.Post, boardAdmin bool) bool {
	if boardAdmin || p.AccountID == viewer.Account() {
		return true
	}
	return viewer.IsPersona() && p.PersonaID != 0 && p.PersonaID == viewer.ID
}

// renderAuthor is the author line of p from viewer's point of view.
func (e *Engine) renderAuthor(viewer bbs.Identity, b *bbs.Board, p *bbs.Post, boardAdmin bool) string {
	if e.boardOptions.Bool(b.Config, options.KeyDisguise) && p.Disguise != "" {
		if privileged(viewer, p, boardAdmin) {
			return fmt.Sprintf("%s (%s)", p.Disguise, p.PosterName())
		}
		return p.Disguise
	}
	if e.boardOptions.Bool(b.Config, options.KeyIC) && p.PersonaID != 0 {
		return p.PersonaName
	}
	return p.AccountName
}

func (e *Engine) postView(viewer bbs.Identity, col *bbs.Collection, b *bbs.Board, p *bbs.Post, read, boardAdmin bool) PostView {
	view := PostView{
		ID:         p.ID,
		PostNumber: p.PostID(),
		BoardID:    boardID(col, b),
		BoardName:  b.Name,
		Subject:    p.Subject,
		Body:       p.Body,
		Author:     e.renderAuthor(viewer, b, p, boardAdmin),
		Read:       read,
		CreatedAt:  p.CreatedAt,
		ModifiedAt: p.ModifiedAt,
		Deleted:    p.Deleted,
	}

	if privileged(viewer, p, boardAdmin) {
		accountID, accountName := p.AccountID, p.AccountName
		view.UserID = &accountID
		view.UserName = &accountName
		if p.PersonaID != 0 {
			personaID, personaName := p.PersonaID, p.PersonaName
			view.CharacterID = &personaID
			view.CharacterName = &personaName
		}
		if p.Disguise != "" {
			disguise := p.Disguise
			view.Disguise = &disguise
		}
	}
	return view
}
