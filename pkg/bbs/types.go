package bbs

import (
	"fmt"
	"strings"
	"time"
)

// IdentityKind distinguishes accounts from the personas (characters) they play.
type IdentityKind string

const (
	// IdentityAccount is a login account. Read markers are always tracked per account.
	IdentityAccount IdentityKind = "account"

	// IdentityPersona is a character attached to an account for in-character boards.
	IdentityPersona IdentityKind = "persona"
)

// Identity is an account or persona as seen by the engine. The caller's
// session layer builds these; the engine never authenticates them.
type Identity struct {
	Kind        IdentityKind `json:"kind"`
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	AccountID   int64        `json:"account_id,omitempty"` // owning account, personas only
	Permissions []string     `json:"permissions,omitempty"`
}

// Validate checks that the identity is addressable.
func (i Identity) Validate() error {
	switch i.Kind {
	case IdentityAccount:
	case IdentityPersona:
		if i.AccountID <= 0 {
			return fmt.Errorf("persona %d has no owning account", i.ID)
		}
	default:
		return fmt.Errorf("unknown identity kind: %q", i.Kind)
	}
	if i.ID <= 0 {
		return fmt.Errorf("invalid identity id: %d", i.ID)
	}
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("identity name cannot be empty")
	}
	return nil
}

// IsPersona reports whether the identity is a persona.
func (i Identity) IsPersona() bool {
	return i.Kind == IdentityPersona
}

// Account returns the id of the account behind the identity.
func (i Identity) Account() int64 {
	if i.IsPersona() {
		return i.AccountID
	}
	return i.ID
}

// HasPermission does a case-insensitive permission lookup.
func (i Identity) HasPermission(perm string) bool {
	for _, p := range i.Permissions {
		if strings.EqualFold(p, perm) {
			return true
		}
	}
	return false
}

// Collection is a named, abbreviated grouping of boards.
type Collection struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Abbreviation string            `json:"abbreviation"` // may be empty
	Config       map[string]string `json:"config"`
	Locks        string            `json:"locks"`
	Deleted      bool              `json:"deleted"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Validate checks the collection fields that the store relies on.
func (c *Collection) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if c.Abbreviation != "" && !AbbreviationPattern.MatchString(c.Abbreviation) {
		return fmt.Errorf("invalid abbreviation: %q", c.Abbreviation)
	}
	return nil
}

// Board is a message container inside a collection.
type Board struct {
	ID             int64             `json:"id"`
	CollectionID   int64             `json:"collection_id"`
	Name           string            `json:"name"`
	Order          int               `json:"order"` // 0 asks the store to pick max+1
	Config         map[string]string `json:"config"`
	NextPostNumber int               `json:"next_post_number"`
	LastActivity   time.Time         `json:"last_activity"`
	Locks          string            `json:"locks"`
	Deleted        bool              `json:"deleted"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Validate checks the board fields that the store relies on.
func (b *Board) Validate() error {
	if b.CollectionID <= 0 {
		return fmt.Errorf("board must belong to a collection")
	}
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("board name cannot be empty")
	}
	if b.Order < 0 {
		return fmt.Errorf("invalid order: must be >= 0, got %d", b.Order)
	}
	return nil
}

// Post is a root message (ReplyNumber 0) or a reply in a board thread.
type Post struct {
	ID          int64     `json:"id"`
	BoardID     int64     `json:"board_id"`
	Number      int       `json:"number"`
	ReplyNumber int       `json:"reply_number"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	AccountID   int64     `json:"account_id"`
	AccountName string    `json:"account_name"`
	PersonaID   int64     `json:"persona_id,omitempty"`
	PersonaName string    `json:"persona_name,omitempty"`
	Disguise    string    `json:"disguise,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`
	Deleted     bool      `json:"deleted"`
	Seq         int64     `json:"seq"` // board-local insertion order
}

// Validate checks the post fields that the store relies on.
func (p *Post) Validate() error {
	if p.BoardID <= 0 {
		return fmt.Errorf("post must belong to a board")
	}
	if p.AccountID <= 0 {
		return fmt.Errorf("post must have an author account")
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("post subject cannot be empty")
	}
	if p.Body == "" {
		return fmt.Errorf("post body cannot be empty")
	}
	return nil
}

// PostID returns the human-facing post id ("3" or "3.2").
func (p *Post) PostID() string {
	return FormatPostID(p.Number, p.ReplyNumber)
}

// IsReply reports whether the post is a reply rather than a thread root.
func (p *Post) IsReply() bool {
	return p.ReplyNumber > 0
}

// PosterName is the persona name when one wrote the post, else the account name.
func (p *Post) PosterName() string {
	if p.PersonaID != 0 {
		return p.PersonaName
	}
	return p.AccountName
}

// Notification is a new-post line delivered to one connected identity.
type Notification struct {
	ID        string    `json:"id"`
	Target    Identity  `json:"target"`
	BoardID   string    `json:"board_id"`
	PostID    string    `json:"post_id"`
	BoardName string    `json:"board_name"`
	Author    string    `json:"author"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// StaffAlert is an administrative broadcast for staff observers.
type StaffAlert struct {
	ID        string    `json:"id"`
	System    string    `json:"system"`
	Message   string    `json:"message"`
	Sender    Identity  `json:"sender"`
	CreatedAt time.Time `json:"created_at"`
}
