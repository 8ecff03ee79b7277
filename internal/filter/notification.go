package filter

import (
	"path/filepath"
	"strings"

	"github.com/dyluth/bbs/pkg/bbs"
)

// Criteria defines filtering criteria for streamed notifications.
// All filters are ANDed together - a notification must match ALL criteria to pass.
type Criteria struct {
	BoardGlob string // Glob pattern for the board id (GEN*), empty = no filter
	Author    string // Case-insensitive match on the rendered author, empty = no filter
}

// Matches returns true if the notification matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(n *bbs.Notification) bool {
	// Board ids are matched upper-cased, the way they are displayed
	if c.BoardGlob != "" {
		matched, err := filepath.Match(strings.ToUpper(c.BoardGlob), strings.ToUpper(n.BoardID))
		if err != nil || !matched {
			return false
		}
	}

	if c.Author != "" && !strings.EqualFold(n.Author, c.Author) {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.BoardGlob != "" || c.Author != ""
}
