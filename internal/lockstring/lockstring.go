// Package lockstring evaluates lock strings of the form
//
//	read:all();post:perm(Builder) or id(4);admin:perm(Admin) and not name(guest)
//
// Each access entry maps a capability to a boolean expression of lock
// functions combined with and, or, not and parentheses ("and" binds tighter
// than "or"). Supported functions:
//
//	all()      always passes
//	none()     never passes
//	perm(x)    the actor holds permission x (case-insensitive)
//	id(n)      the actor's id is n
//	name(x)    the actor's name is x (case-insensitive)
package lockstring

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/dyluth/bbs/pkg/bbs"
)

// Evaluator parses and checks lock strings. The zero value is ready to use.
type Evaluator struct{}

// New returns an Evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

type access struct {
	capability string
	source     string
	expr       node
}

// Validate reports the first syntax error in lockstring.
func (e *Evaluator) Validate(lockstring string) error {
	_, err := parse(lockstring)
	return err
}

// Check reports whether actor passes the capability's lock. A missing
// capability or an unparsable lock string denies.
func (e *Evaluator) Check(lockstring string, actor bbs.Identity, capability string) bool {
	entries, err := parse(lockstring)
	if err != nil {
		return false
	}
	for _, a := range entries {
		if a.capability == strings.ToLower(capability) {
			return a.expr.eval(actor)
		}
	}
	return false
}

// Add merges addition into existing. Capabilities present in addition
// replace the existing entry; others are kept in their original order.
func (e *Evaluator) Add(existing, addition string) (string, error) {
	current, err := parse(existing)
	if err != nil {
		return "", fmt.Errorf("invalid existing lock string: %w", err)
	}
	added, err := parse(addition)
	if err != nil {
		return "", err
	}

	merged := make([]access, 0, len(current)+len(added))
	index := make(map[string]int, len(current))
	for _, a := range current {
		index[a.capability] = len(merged)
		merged = append(merged, a)
	}
	for _, a := range added {
		if i, ok := index[a.capability]; ok {
			merged[i] = a
			continue
		}
		index[a.capability] = len(merged)
		merged = append(merged, a)
	}
	return render(merged), nil
}

func render(entries []access) string {
	parts := make([]string, len(entries))
	for i, a := range entries {
		parts[i] = a.capability + ":" + a.source
	}
	return strings.Join(parts, ";")
}

func parse(lockstring string) ([]access, error) {
	var entries []access
	seen := map[string]bool{}
	for _, raw := range strings.Split(lockstring, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		capability, source, ok := strings.Cut(raw, ":")
		capability = strings.ToLower(strings.TrimSpace(capability))
		source = strings.TrimSpace(source)
		if !ok || capability == "" {
			return nil, fmt.Errorf("lock %q: expected capability:expression", raw)
		}
		if seen[capability] {
			return nil, fmt.Errorf("lock %q: capability '%s' given twice", raw, capability)
		}
		seen[capability] = true

		p := &parser{input: source}
		expr, err := p.parseOr()
		if err != nil {
			return nil, fmt.Errorf("lock %q: %w", raw, err)
		}
		if p.skipSpace(); p.pos < len(p.input) {
			return nil, fmt.Errorf("lock %q: unexpected %q", raw, p.input[p.pos:])
		}
		entries = append(entries, access{capability: capability, source: source, expr: expr})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty lock string")
	}
	return entries, nil
}

type node interface {
	eval(actor bbs.Identity) bool
}

type orNode []node

func (n orNode) eval(actor bbs.Identity) bool {
	for _, child := range n {
		if child.eval(actor) {
			return true
		}
	}
	return false
}

type andNode []node

func (n andNode) eval(actor bbs.Identity) bool {
	for _, child := range n {
		if !child.eval(actor) {
			return false
		}
	}
	return true
}

type notNode struct{ child node }

func (n notNode) eval(actor bbs.Identity) bool { return !n.child.eval(actor) }

type funcNode struct {
	name string
	arg  string
}

func (n funcNode) eval(actor bbs.Identity) bool {
	switch n.name {
	case "all":
		return true
	case "none":
		return false
	case "perm":
		return actor.HasPermission(n.arg)
	case "id":
		id, _ := strconv.ParseInt(n.arg, 10, 64)
		return actor.ID == id
	case "name":
		return strings.EqualFold(actor.Name, n.arg)
	}
	return false
}

type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

// word reads an identifier without consuming it.
func (p *parser) word() string {
	p.skipSpace()
	end := p.pos
	for end < len(p.input) && (unicode.IsLetter(rune(p.input[end])) || unicode.IsDigit(rune(p.input[end])) || p.input[end] == '_') {
		end++
	}
	return p.input[p.pos:end]
}

func (p *parser) keyword(kw string) bool {
	w := p.word()
	if strings.EqualFold(w, kw) {
		p.pos += len(w)
		return true
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	var terms orNode
	for {
		term, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
		if !p.keyword("or") {
			break
		}
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return terms, nil
}

func (p *parser) parseAnd() (node, error) {
	var terms andNode
	for {
		term, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
		if !p.keyword("and") {
			break
		}
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return terms, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.keyword("not") {
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{child: child}, nil
	}

	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == '(' {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return nil, fmt.Errorf("missing ')'")
		}
		p.pos++
		return inner, nil
	}
	return p.parseFunc()
}

func (p *parser) parseFunc() (node, error) {
	name := strings.ToLower(p.word())
	if name == "" {
		if p.pos >= len(p.input) {
			return nil, fmt.Errorf("expected lock function, got end of input")
		}
		return nil, fmt.Errorf("expected lock function at %q", p.input[p.pos:])
	}
	p.pos += len(name)

	if p.pos >= len(p.input) || p.input[p.pos] != '(' {
		return nil, fmt.Errorf("expected '(' after %s", name)
	}
	closing := strings.IndexByte(p.input[p.pos:], ')')
	if closing < 0 {
		return nil, fmt.Errorf("missing ')' after %s(", name)
	}
	arg := strings.TrimSpace(p.input[p.pos+1 : p.pos+closing])
	p.pos += closing + 1

	switch name {
	case "all", "none":
		if arg != "" {
			return nil, fmt.Errorf("%s() takes no argument", name)
		}
	case "perm", "name":
		if arg == "" {
			return nil, fmt.Errorf("%s() needs an argument", name)
		}
	case "id":
		if _, err := strconv.ParseInt(arg, 10, 64); err != nil {
			return nil, fmt.Errorf("id() needs a numeric argument, got %q", arg)
		}
	default:
		return nil, fmt.Errorf("unknown lock function: %s", name)
	}
	return funcNode{name: name, arg: arg}, nil
}
