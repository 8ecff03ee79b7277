package engine

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dyluth/bbs/pkg/bbs"
)

// Keyword argument names.
const (
	ArgCollectionID = "collection_id"
	ArgBoardID      = "board_id"
	ArgPostID       = "post_id"
	ArgName         = "name"
	ArgAbbreviation = "abbreviation"
	ArgOrder        = "order"
	ArgValidate     = "validate"
	ArgLockstring   = "lockstring"
	ArgKey          = "key"
	ArgValue        = "value"
	ArgSubject      = "subject"
	ArgBody         = "body"
	ArgDisguise     = "disguise"
	ArgPostsPerPage = "posts_per_page"
	ArgPage         = "page"
)

// Request is one operation invocation. Execute fills in Status, Message and Results.
type Request struct {
	ID        string
	Account   bbs.Identity
	Persona   *bbs.Identity
	Operation string
	Kwargs    map[string]interface{}

	Status  Status
	Message string
	Results map[string]interface{}
}

// NewRequest builds a request with a fresh ID and status OK.
func NewRequest(account bbs.Identity, persona *bbs.Identity, operation string, kwargs map[string]interface{}) *Request {
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	return &Request{
		ID:        uuid.NewString(),
		Account:   account,
		Persona:   persona,
		Operation: operation,
		Kwargs:    kwargs,
		Status:    StatusOK,
		Results:   map[string]interface{}{},
	}
}

// Actor is the identity permission checks run against: the persona if one
// is attached, else the account.
func (r *Request) Actor() bbs.Identity {
	if r.Persona != nil {
		return *r.Persona
	}
	return r.Account
}

// String returns a keyword argument as a string. Numbers are formatted.
func (r *Request) String(key string) (string, bool) {
	v, ok := r.Kwargs[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	case bool:
		return strconv.FormatBool(s), true
	}
	return "", false
}

// Int returns a keyword argument as an int. ok is false when the argument
// is absent or an empty string.
func (r *Request) Int(key string) (n int, ok bool, err error) {
	v, present := r.Kwargs[key]
	if !present || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case int:
		return x, true, nil
	case int64:
		return int(x), true, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, true, badRequest("'%s' must be a whole number.", key)
		}
		return int(x), true, nil
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, true, badRequest("'%s' must be a whole number.", key)
		}
		return int(i), true, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, true, badRequest("'%s' must be a whole number.", key)
		}
		return i, true, nil
	}
	return 0, true, badRequest("'%s' must be a whole number.", key)
}

// required returns a trimmed, non-empty string argument.
func (r *Request) required(key string) (string, error) {
	s, _ := r.String(key)
	s = strings.TrimSpace(s)
	if s == "" {
		return "", badRequest("'%s' is required.", key)
	}
	return s, nil
}
