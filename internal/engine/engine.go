// Package engine runs board operations: it resolves the referenced entities,
// checks capabilities, validates input, applies the mutation through the
// store and fills in the request's status, message and results.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/bbs/internal/access"
	"github.com/dyluth/bbs/internal/options"
	"github.com/dyluth/bbs/pkg/bbs"
)

// DefaultCollectionLocks is the lock string of a new collection.
const DefaultCollectionLocks = "read:all();admin:perm(Admin)"

// DefaultPostsPerPage is used when neither the request nor Config sets one.
const DefaultPostsPerPage = 50

// Target selects the operation set a request is dispatched to.
type Target string

const (
	TargetCollection Target = "collection"
	TargetBoard      Target = "board"
	TargetPost       Target = "post"
)

// Store is the persistence the engine needs. *bbs.Client implements it.
type Store interface {
	CreateCollection(ctx context.Context, col *bbs.Collection) error
	GetCollection(ctx context.Context, id int64) (*bbs.Collection, error)
	FindCollectionByName(ctx context.Context, name string) (*bbs.Collection, error)
	FindCollectionByAbbreviation(ctx context.Context, abbreviation string) (*bbs.Collection, error)
	ListCollections(ctx context.Context) ([]*bbs.Collection, error)
	RenameCollection(ctx context.Context, id int64, name string) error
	ReabbreviateCollection(ctx context.Context, id int64, abbreviation string) error
	SetCollectionLocks(ctx context.Context, id int64, locks string) error
	SetCollectionOption(ctx context.Context, id int64, option, value string) error
	DeleteCollection(ctx context.Context, id int64, confirmed bool) (int, error)
	CountBoards(ctx context.Context, collectionID int64) (int, error)

	CreateBoard(ctx context.Context, b *bbs.Board) error
	GetBoard(ctx context.Context, id int64) (*bbs.Board, error)
	FindBoard(ctx context.Context, collectionID int64, order int) (*bbs.Board, error)
	ListBoards(ctx context.Context) ([]*bbs.Board, error)
	RenameBoard(ctx context.Context, id int64, name string) error
	ReorderBoard(ctx context.Context, id int64, order int) error
	SetBoardLocks(ctx context.Context, id int64, locks string) error
	SetBoardOption(ctx context.Context, id int64, option, value string) error
	DeleteBoard(ctx context.Context, id int64, confirmed bool) (int, error)
	CountPosts(ctx context.Context, boardID int64) (int, error)
	CountRead(ctx context.Context, boardID, accountID int64) (int, error)

	CreatePost(ctx context.Context, p *bbs.Post) error
	CreateReply(ctx context.Context, p *bbs.Post) error
	FindPost(ctx context.Context, boardID int64, number, replyNumber int) (*bbs.Post, error)
	ListPosts(ctx context.Context, boardID int64, newestOffset, limit int) ([]*bbs.Post, error)
	ReadFlags(ctx context.Context, accountID int64, posts []*bbs.Post) (map[int64]bool, error)
	MarkRead(ctx context.Context, accountID int64, p *bbs.Post) error
	RemovePost(ctx context.Context, p *bbs.Post) error
}

// Directory enumerates connected identities.
type Directory interface {
	OnlineAccounts(ctx context.Context) ([]bbs.Identity, error)
	OnlinePersonas(ctx context.Context) ([]bbs.Identity, error)
}

// Notifier delivers a new-post notification to one identity.
type Notifier interface {
	Notify(ctx context.Context, n *bbs.Notification) error
}

// Alerter receives staff alerts for administrative changes.
type Alerter interface {
	Alert(ctx context.Context, message string, sender bbs.Identity) error
}

// Config is the construction-time configuration of an Engine.
type Config struct {
	InstanceName      string
	AdminOverride     string
	PostsPerPage      int
	CollectionOptions []options.Declaration // nil means options.DefaultCollectionDeclarations
	BoardOptions      []options.Declaration // nil means options.DefaultBoardDeclarations
}

type handlerFunc func(ctx context.Context, req *Request) error

// Engine dispatches requests to operation handlers. It is safe for concurrent use.
type Engine struct {
	store     Store
	directory Directory
	notifier  Notifier
	alerter   Alerter
	locks     access.Evaluator
	access    *access.Resolver

	collectionOptions *options.Table
	boardOptions      *options.Table

	instanceName string
	postsPerPage int
	handlers     map[Target]map[string]handlerFunc
	now          func() time.Time
}

// New builds an Engine. The admin override lock string and every option
// default are validated here.
func New(store Store, directory Directory, notifier Notifier, alerter Alerter, locks access.Evaluator, cfg Config) (*Engine, error) {
	if cfg.AdminOverride == "" {
		return nil, fmt.Errorf("admin override lock string cannot be empty")
	}
	if err := locks.Validate(cfg.AdminOverride); err != nil {
		return nil, fmt.Errorf("invalid admin override: %w", err)
	}

	collectionDecls := cfg.CollectionOptions
	if collectionDecls == nil {
		collectionDecls = options.DefaultCollectionDeclarations()
	}
	boardDecls := cfg.BoardOptions
	if boardDecls == nil {
		boardDecls = options.DefaultBoardDeclarations()
	}
	collectionOptions, err := options.NewTable(collectionDecls, locks.Validate)
	if err != nil {
		return nil, fmt.Errorf("invalid collection options: %w", err)
	}
	boardOptions, err := options.NewTable(boardDecls, locks.Validate)
	if err != nil {
		return nil, fmt.Errorf("invalid board options: %w", err)
	}

	perPage := cfg.PostsPerPage
	if perPage <= 0 {
		perPage = DefaultPostsPerPage
	}

	e := &Engine{
		store:             store,
		directory:         directory,
		notifier:          notifier,
		alerter:           alerter,
		locks:             locks,
		access:            access.NewResolver(locks, cfg.AdminOverride),
		collectionOptions: collectionOptions,
		boardOptions:      boardOptions,
		instanceName:      cfg.InstanceName,
		postsPerPage:      perPage,
		now:               func() time.Time { return time.Now().UTC() },
	}
	e.handlers = map[Target]map[string]handlerFunc{
		TargetCollection: {
			"create":       e.createCollection,
			"delete":       e.deleteCollection,
			"rename":       e.renameCollection,
			"reabbreviate": e.reabbreviateCollection,
			"setLock":      e.setCollectionLock,
			"listConfig":   e.listCollectionConfig,
			"setConfig":    e.setCollectionConfig,
			"list":         e.listCollections,
		},
		TargetBoard: {
			"create":     e.createBoard,
			"rename":     e.renameBoard,
			"reorder":    e.reorderBoard,
			"setLock":    e.setBoardLock,
			"delete":     e.deleteBoard,
			"listConfig": e.listBoardConfig,
			"setConfig":  e.setBoardConfig,
			"list":       e.listBoards,
		},
		TargetPost: {
			"create": e.createPost,
			"reply":  e.replyPost,
			"read":   e.readPost,
			"list":   e.listPosts,
			"remove": e.removePost,
		},
	}
	return e, nil
}

// ParseTarget maps an entity name ("collection", "boards", ...) to a Target.
func ParseTarget(s string) (Target, error) {
	switch s {
	case "collection", "collections":
		return TargetCollection, nil
	case "board", "boards":
		return TargetBoard, nil
	case "post", "posts":
		return TargetPost, nil
	}
	return "", fmt.Errorf("unknown target: %q", s)
}

// Operations lists the operation names of a target, sorted.
func (e *Engine) Operations(target Target) []string {
	names := make([]string, 0, len(e.handlers[target]))
	for name := range e.handlers[target] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs req against the target's operation set. On failure the
// returned error is an *OpError and req.Status/req.Message describe it.
func (e *Engine) Execute(ctx context.Context, target Target, req *Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = StatusOK
	}
	if req.Results == nil {
		req.Results = map[string]interface{}{}
	}
	if req.Kwargs == nil {
		req.Kwargs = map[string]interface{}{}
	}

	handler, ok := e.handlers[target][req.Operation]
	if !ok {
		return e.fail(target, req, badRequest("Unknown %s operation '%s'.", target, req.Operation))
	}
	if err := req.Account.Validate(); err != nil {
		return e.fail(target, req, badRequest("Invalid account: %v", err))
	}
	if req.Persona != nil {
		if err := req.Persona.Validate(); err != nil {
			return e.fail(target, req, badRequest("Invalid persona: %v", err))
		}
		if req.Persona.AccountID != req.Account.ID {
			return e.fail(target, req, badRequest("Persona %s does not belong to account %s.", req.Persona.Name, req.Account.Name))
		}
	}

	if err := handler(ctx, req); err != nil {
		return e.fail(target, req, err)
	}

	req.Results["success"] = true
	if req.Message != "" {
		req.Results["message"] = req.Message
	}
	return nil
}

func (e *Engine) fail(target Target, req *Request, err error) error {
	opErr := translate(err)
	req.Status = opErr.Status
	req.Message = opErr.Message
	req.Results["success"] = false
	req.Results["message"] = opErr.Message

	if opErr.Status == StatusInternal {
		log.Printf("[Engine] %s %s failed: %v", target, req.Operation, err)
	}
	e.logEvent("operation_failed", req, map[string]interface{}{
		"target":    string(target),
		"operation": req.Operation,
		"status":    string(opErr.Status),
		"message":   opErr.Message,
	})
	return opErr
}

// alert sends a staff alert. Failures are logged, never returned.
func (e *Engine) alert(ctx context.Context, req *Request, message string) {
	if e.alerter == nil {
		return
	}
	if err := e.alerter.Alert(ctx, message, req.Actor()); err != nil {
		log.Printf("[Engine] Failed to send staff alert: %v", err)
	}
}

// logEvent writes one structured JSON log line.
func (e *Engine) logEvent(eventType string, req *Request, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	if eventType == "operation_failed" || eventType == "notification_failed" {
		data["level"] = "warn"
	}
	data["component"] = "engine"
	data["event_type"] = eventType
	data["instance"] = e.instanceName
	if req != nil {
		data["request_id"] = req.ID
		data["actor"] = req.Actor().Name
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Engine] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
