// Package options implements the typed option tables attached to collections
// and boards.
//
// Each entity kind has a Table of Declarations. Stored values are strings in
// canonical form; a missing value falls back to the declared default.
package options

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the closed set of option value types.
type Kind int

const (
	Boolean Kind = iota
	Text
	LockString
)

func (k Kind) String() string {
	switch k {
	case Boolean:
		return "Boolean"
	case Text:
		return "Text"
	case LockString:
		return "Lock"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a config-file type name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "boolean", "bool":
		return Boolean, nil
	case "text", "string":
		return Text, nil
	case "lock", "lockstring", "locks":
		return LockString, nil
	default:
		return 0, fmt.Errorf("unknown option type: %q", s)
	}
}

// ErrUnknownOption is returned for keys that have no declaration.
var ErrUnknownOption = errors.New("unknown option")

// ValueError reports a value that does not fit its declared kind.
type ValueError struct {
	Key    string
	Kind   Kind
	Value  string
	Reason string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid %s value for option '%s': %q (%s)", e.Kind, e.Key, e.Value, e.Reason)
}

// IsValueError returns true if err is (or wraps) a ValueError.
func IsValueError(err error) bool {
	var ve *ValueError
	return errors.As(err, &ve)
}

// Declaration describes one option.
type Declaration struct {
	Key         string
	Description string
	Kind        Kind
	Default     string
}

// Entry is one row of a rendered option table.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Value       string `json:"value"`
}

// Table is the declaration set for one entity kind.
type Table struct {
	decls        map[string]Declaration
	validateLock func(string) error
}

// NewTable builds a table. validateLock checks LockString values; nil
// accepts any non-empty lock string. Defaults are coerced and validated.
func NewTable(decls []Declaration, validateLock func(string) error) (*Table, error) {
	t := &Table{decls: make(map[string]Declaration, len(decls)), validateLock: validateLock}
	for _, d := range decls {
		key := strings.ToLower(strings.TrimSpace(d.Key))
		if key == "" {
			return nil, fmt.Errorf("option key cannot be empty")
		}
		if _, dup := t.decls[key]; dup {
			return nil, fmt.Errorf("duplicate option: %s", key)
		}
		d.Key = key
		t.decls[key] = d

		def, err := t.coerce(d, d.Default)
		if err != nil {
			return nil, fmt.Errorf("bad default for option '%s': %w", key, err)
		}
		d.Default = def
		t.decls[key] = d
	}
	return t, nil
}

// Lookup finds a declaration by case-insensitive key.
func (t *Table) Lookup(key string) (Declaration, bool) {
	d, ok := t.decls[strings.ToLower(strings.TrimSpace(key))]
	return d, ok
}

// Coerce validates raw against the key's declared kind and returns the
// canonical key and stored form.
func (t *Table) Coerce(key, raw string) (string, string, error) {
	d, ok := t.Lookup(key)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownOption, key)
	}
	value, err := t.coerce(d, raw)
	if err != nil {
		return "", "", err
	}
	return d.Key, value, nil
}

func (t *Table) coerce(d Declaration, raw string) (string, error) {
	switch d.Kind {
	case Boolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "yes", "on", "1":
			return "true", nil
		case "false", "no", "off", "0", "":
			return "false", nil
		}
		return "", &ValueError{Key: d.Key, Kind: d.Kind, Value: raw, Reason: "expected true or false"}
	case Text:
		return raw, nil
	case LockString:
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return "", &ValueError{Key: d.Key, Kind: d.Kind, Value: raw, Reason: "lock string cannot be empty"}
		}
		if t.validateLock != nil {
			if err := t.validateLock(raw); err != nil {
				return "", &ValueError{Key: d.Key, Kind: d.Kind, Value: raw, Reason: err.Error()}
			}
		}
		return raw, nil
	default:
		return "", fmt.Errorf("option '%s' has unsupported kind %s", d.Key, d.Kind)
	}
}

// Get returns the stored value of key, or its default.
func (t *Table) Get(config map[string]string, key string) string {
	d, ok := t.Lookup(key)
	if !ok {
		return ""
	}
	if v, ok := config[d.Key]; ok {
		return v
	}
	return d.Default
}

// Bool returns a Boolean option.
func (t *Table) Bool(config map[string]string, key string) bool {
	return t.Get(config, key) == "true"
}

// Text returns a Text or LockString option.
func (t *Table) Text(config map[string]string, key string) string {
	return t.Get(config, key)
}

// List renders every declared option, sorted by key.
func (t *Table) List(config map[string]string) []Entry {
	keys := make([]string, 0, len(t.decls))
	for k := range t.decls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		d := t.decls[k]
		entries = append(entries, Entry{
			Name:        d.Key,
			Description: d.Description,
			Type:        d.Kind.String(),
			Value:       t.Get(config, k),
		})
	}
	return entries
}

// Merge returns decls with overrides replacing same-key declarations and
// new keys appended.
func Merge(decls []Declaration, overrides []Declaration) []Declaration {
	out := make([]Declaration, 0, len(decls)+len(overrides))
	index := make(map[string]int, len(decls))
	for _, d := range decls {
		index[strings.ToLower(d.Key)] = len(out)
		out = append(out, d)
	}
	for _, o := range overrides {
		if i, ok := index[strings.ToLower(o.Key)]; ok {
			out[i] = o
			continue
		}
		index[strings.ToLower(o.Key)] = len(out)
		out = append(out, o)
	}
	return out
}

// Option keys used by the engine.
const (
	KeyDefaultLocks = "default_locks"
	KeyDescription  = "description"
	KeyIC           = "ic"
	KeyDisguise     = "disguise"
)

// DefaultCollectionDeclarations are the built-in collection options.
func DefaultCollectionDeclarations() []Declaration {
	return []Declaration{
		{Key: KeyDefaultLocks, Description: "Lock string applied to new boards.", Kind: LockString, Default: "read:all();post:all();admin:perm(Admin)"},
		{Key: KeyDescription, Description: "Short description of the collection.", Kind: Text, Default: ""},
	}
}

// DefaultBoardDeclarations are the built-in board options.
func DefaultBoardDeclarations() []Declaration {
	return []Declaration{
		{Key: KeyIC, Description: "In-character board: posts are made as personas.", Kind: Boolean, Default: "false"},
		{Key: KeyDisguise, Description: "Posts carry a disguise instead of the poster's name.", Kind: Boolean, Default: "false"},
		{Key: KeyDescription, Description: "Short description of the board.", Kind: Text, Default: ""},
	}
}
