package bbs

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Human-facing addressing.
//
// A board id is the collection abbreviation followed by the board's order
// ("GEN3"); a bare number addresses the collection whose abbreviation is
// empty. A post id is the thread number, optionally followed by "." and the
// reply number ("12", "12.4"). Board references used for paging may carry a
// trailing ".page" ("GEN3.2").

var (
	// AbbreviationPattern matches a non-empty collection abbreviation.
	AbbreviationPattern = regexp.MustCompile(`^[A-Za-z]{1,10}$`)

	// numbers are canonical: no leading zeros, no reply 0
	boardIDPattern  = regexp.MustCompile(`^([A-Za-z]{0,10})(0|[1-9]\d*)$`)
	boardRefPattern = regexp.MustCompile(`^([A-Za-z]{0,10})(0|[1-9]\d*)(?:\.(\d+))?$`)
	postIDPattern   = regexp.MustCompile(`^(0|[1-9]\d*)(?:\.([1-9]\d*))?$`)
)

var (
	// ErrInvalidBoardID is returned when a board id does not parse.
	ErrInvalidBoardID = errors.New("invalid board id")

	// ErrInvalidPostID is returned when a post id does not parse.
	ErrInvalidPostID = errors.New("invalid post id")
)

// ParseBoardID splits a board id into collection abbreviation and order.
func ParseBoardID(input string) (abbreviation string, order int, err error) {
	m := boardIDPattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidBoardID, input)
	}
	order, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidBoardID, input)
	}
	return m[1], order, nil
}

// ParseBoardRef parses a board id with an optional trailing page number.
// page is 0 when no page was given.
func ParseBoardRef(input string) (abbreviation string, order int, page int, err error) {
	m := boardRefPattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidBoardID, input)
	}
	if order, err = strconv.Atoi(m[2]); err != nil {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidBoardID, input)
	}
	if m[3] != "" {
		if page, err = strconv.Atoi(m[3]); err != nil {
			return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidBoardID, input)
		}
	}
	return m[1], order, page, nil
}

// FormatBoardID is the inverse of ParseBoardID.
func FormatBoardID(abbreviation string, order int) string {
	return abbreviation + strconv.Itoa(order)
}

// ParsePostID splits "N" or "N.R" into thread number and reply number.
func ParsePostID(input string) (number int, replyNumber int, err error) {
	m := postIDPattern.FindStringSubmatch(strings.TrimSpace(input))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPostID, input)
	}
	if number, err = strconv.Atoi(m[1]); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPostID, input)
	}
	if m[2] != "" {
		if replyNumber, err = strconv.Atoi(m[2]); err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPostID, input)
		}
	}
	return number, replyNumber, nil
}

// FormatPostID is the inverse of ParsePostID.
func FormatPostID(number, replyNumber int) string {
	if replyNumber == 0 {
		return strconv.Itoa(number)
	}
	return fmt.Sprintf("%d.%d", number, replyNumber)
}
