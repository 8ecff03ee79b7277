// Package listing renders operation results for the terminal.
package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/dyluth/bbs/internal/engine"
)

// OutputFormat specifies how results are written.
type OutputFormat string

const (
	// OutputFormatDefault uses tables with truncated subjects
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON writes the raw result map as indented JSON
	OutputFormatJSON OutputFormat = "json"

	// OutputFormatJSONL writes one JSON object per listed item
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputFormatDefault, "table":
		return OutputFormatDefault, nil
	case OutputFormatJSON:
		return OutputFormatJSON, nil
	case OutputFormatJSONL:
		return OutputFormatJSONL, nil
	}
	return "", fmt.Errorf("unknown output format '%s' (must be 'default', 'json' or 'jsonl')", s)
}

var (
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
	marker = color.New(color.FgGreen, color.Bold)
)

// Renderer writes results to one stream. Now is used for relative ages.
type Renderer struct {
	W      io.Writer
	Format OutputFormat
	Now    func() time.Time
}

// New returns a renderer for w.
func New(w io.Writer, format OutputFormat) *Renderer {
	return &Renderer{W: w, Format: format, Now: time.Now}
}

// Result renders the results of a finished request. The message is left to
// the caller. Unknown result shapes fall back to JSON.
func (r *Renderer) Result(req *engine.Request) error {
	if r.Format == OutputFormatJSON {
		return r.JSON(req.Results)
	}

	switch {
	case has(req.Results, "boards"):
		return r.Boards(req.Results["boards"].([]engine.BoardEntry))
	case has(req.Results, "posts"):
		return r.Posts(req.Results["board"].(engine.BoardView), req.Results["page"].(int), req.Results["pages"].(int), req.Results["posts"].([]engine.PostView))
	case has(req.Results, "collections"):
		return r.Collections(req.Results["collections"].([]engine.CollectionView))
	case has(req.Results, "config"):
		return r.Config(req.Results["config"].(engine.ConfigView))
	case req.Operation == "read" && has(req.Results, "post"):
		return r.Post(req.Results["post"].(engine.PostView))
	}
	return nil
}

func has(results map[string]interface{}, key string) bool {
	_, ok := results[key]
	return ok
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result to JSON: %w", err)
	}
	if _, err := r.W.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(r.W)
	return nil
}

// jsonl writes each item as a single line of JSON.
func jsonl[T any](w io.Writer, items []T) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal result to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// Boards writes a board listing.
func (r *Renderer) Boards(entries []engine.BoardEntry) error {
	if r.Format == OutputFormatJSONL {
		return jsonl(r.W, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.W, "No boards found")
		return nil
	}

	bold.Fprintf(r.W, "%-8s %-30s %-6s %-6s %-8s %s\n", "ID", "NAME", "POSTS", "UNREAD", "LAST", "ACCESS")
	fmt.Fprintf(r.W, "%-8s %-30s %-6s %-6s %-8s %s\n", "--------", "------------------------------", "------", "------", "--------", "------")

	collection := int64(0)
	for _, e := range entries {
		if e.CollectionID != collection {
			collection = e.CollectionID
			faint.Fprintf(r.W, "%s\n", e.CollectionName)
		}
		unread := "-"
		if e.UnreadCount > 0 {
			unread = marker.Sprintf("%d", e.UnreadCount)
		}
		fmt.Fprintf(r.W, "%-8s %-30s %-6d %-6s %-8s %s\n",
			e.BoardID,
			truncate(e.Name, 30),
			e.PostCount,
			unread,
			r.age(e.LastActivity),
			access(e),
		)
	}
	return nil
}

func access(e engine.BoardEntry) string {
	flags := []byte("---")
	if e.Read {
		flags[0] = 'r'
	}
	if e.Post {
		flags[1] = 'p'
	}
	if e.Admin {
		flags[2] = 'a'
	}
	return string(flags)
}

// Posts writes one page of a board.
func (r *Renderer) Posts(board engine.BoardView, page, pages int, posts []engine.PostView) error {
	if r.Format == OutputFormatJSONL {
		return jsonl(r.W, posts)
	}

	bold.Fprintf(r.W, "%s: %s", board.BoardID, board.Name)
	if pages > 1 {
		fmt.Fprintf(r.W, " (page %d of %d)", page, pages)
	}
	fmt.Fprintln(r.W)
	if board.Description != "" {
		faint.Fprintf(r.W, "%s\n", board.Description)
	}
	if len(posts) == 0 {
		fmt.Fprintln(r.W, "\nNo posts yet")
		return nil
	}

	fmt.Fprintf(r.W, "\n  %-8s %-40s %-20s %s\n", "POST", "SUBJECT", "AUTHOR", "AGE")
	for _, p := range posts {
		flag := " "
		if !p.Read {
			flag = marker.Sprint("*")
		}
		number := p.PostNumber
		if strings.Contains(number, ".") {
			number = "  " + number
		}
		fmt.Fprintf(r.W, "%s %-8s %-40s %-20s %s\n",
			flag,
			number,
			truncate(firstLine(p.Subject), 40),
			truncate(p.Author, 20),
			r.age(p.CreatedAt),
		)
	}

	noun := "post"
	if board.PostCount != 1 {
		noun = "posts"
	}
	fmt.Fprintf(r.W, "\n%d %s on %s\n", board.PostCount, noun, board.BoardID)
	return nil
}

// Post writes a single post in full.
func (r *Renderer) Post(p engine.PostView) error {
	if r.Format == OutputFormatJSONL {
		return jsonl(r.W, []engine.PostView{p})
	}
	bold.Fprintf(r.W, "%s/%s: %s\n", p.BoardID, p.PostNumber, p.Subject)
	fmt.Fprintf(r.W, "From: %s\n", p.Author)
	fmt.Fprintf(r.W, "Date: %s\n\n", p.CreatedAt.Format(time.RFC1123))
	fmt.Fprintln(r.W, strings.TrimRight(p.Body, "\n"))
	return nil
}

// Collections writes a collection listing.
func (r *Renderer) Collections(cols []engine.CollectionView) error {
	if r.Format == OutputFormatJSONL {
		return jsonl(r.W, cols)
	}
	if len(cols) == 0 {
		fmt.Fprintln(r.W, "No board collections found")
		return nil
	}

	bold.Fprintf(r.W, "%-5s %-8s %-30s %-6s %s\n", "ID", "ABBR", "NAME", "BOARDS", "LOCKS")
	for _, c := range cols {
		abbreviation := c.Abbreviation
		if abbreviation == "" {
			abbreviation = "-"
		}
		fmt.Fprintf(r.W, "%-5d %-8s %-30s %-6d %s\n", c.ID, abbreviation, truncate(c.Name, 30), c.BoardCount, c.Locks)
	}
	return nil
}

// Config writes an option table.
func (r *Renderer) Config(entries engine.ConfigView) error {
	if r.Format == OutputFormatJSONL {
		return jsonl(r.W, entries)
	}
	bold.Fprintf(r.W, "%-16s %-8s %-40s %s\n", "OPTION", "TYPE", "VALUE", "DESCRIPTION")
	for _, e := range entries {
		value := e.Value
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(r.W, "%-16s %-8s %-40s %s\n", e.Name, e.Type, truncate(value, 40), e.Description)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// age formats t relative to now, like "2m ago".
func (r *Renderer) age(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := r.Now().Sub(t)
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
