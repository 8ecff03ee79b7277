// Package access resolves read/post/admin capabilities for collections and
// boards. It never mutates state.
package access

import "github.com/dyluth/bbs/pkg/bbs"

// Capabilities.
const (
	Read  = "read"
	Post  = "post"
	Admin = "admin"
)

// Evaluator is the lock-string collaborator.
type Evaluator interface {
	Validate(lockstring string) error
	Check(lockstring string, actor bbs.Identity, capability string) bool
	Add(existing, addition string) (string, error)
}

// Resolver layers entity locks with the global admin override.
type Resolver struct {
	locks    Evaluator
	override string
}

// NewResolver returns a Resolver. override is a lock string whose admin
// capability grants collection admin everywhere.
func NewResolver(locks Evaluator, override string) *Resolver {
	return &Resolver{locks: locks, override: override}
}

// Override reports whether actor holds the global admin override.
func (r *Resolver) Override(actor bbs.Identity) bool {
	return r.locks.Check(r.override, actor, Admin)
}

// CollectionAdmin is the override; the collection's own admin lock is ignored.
func (r *Resolver) CollectionAdmin(actor bbs.Identity, _ *bbs.Collection) bool {
	return r.Override(actor)
}

// CollectionRead passes the collection's read lock or collection admin.
func (r *Resolver) CollectionRead(actor bbs.Identity, c *bbs.Collection) bool {
	return r.locks.Check(c.Locks, actor, Read) || r.CollectionAdmin(actor, c)
}

// BoardAdmin passes the board's admin lock or the owning collection's admin.
func (r *Resolver) BoardAdmin(actor bbs.Identity, c *bbs.Collection, b *bbs.Board) bool {
	return r.locks.Check(b.Locks, actor, Admin) || r.CollectionAdmin(actor, c)
}

// BoardRead passes the board's read lock or board admin.
func (r *Resolver) BoardRead(actor bbs.Identity, c *bbs.Collection, b *bbs.Board) bool {
	return r.locks.Check(b.Locks, actor, Read) || r.BoardAdmin(actor, c, b)
}

// BoardPost passes the board's post lock or board admin.
func (r *Resolver) BoardPost(actor bbs.Identity, c *bbs.Collection, b *bbs.Board) bool {
	return r.locks.Check(b.Locks, actor, Post) || r.BoardAdmin(actor, c, b)
}

// Perms is the capability set of one actor on one board.
type Perms struct {
	Read  bool `json:"read_perm"`
	Post  bool `json:"post_perm"`
	Admin bool `json:"admin_perm"`
}

// BoardPerms resolves all three board capabilities at once.
func (r *Resolver) BoardPerms(actor bbs.Identity, c *bbs.Collection, b *bbs.Board) Perms {
	admin := r.BoardAdmin(actor, c, b)
	return Perms{
		Read:  admin || r.locks.Check(b.Locks, actor, Read),
		Post:  admin || r.locks.Check(b.Locks, actor, Post),
		Admin: admin,
	}
}
