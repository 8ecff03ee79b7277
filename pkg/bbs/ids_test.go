package bbs

import (
	"errors"
	"testing"
)

func TestParseBoardID(t *testing.T) {
	tests := []struct {
		input     string
		abbr      string
		order     int
		wantError bool
	}{
		{"GEN3", "GEN", 3, false},
		{"gen12", "gen", 12, false},
		{"7", "", 7, false},
		{"  OOC1 ", "OOC", 1, false},
		{"GEN", "", 0, true},
		{"3GEN", "", 0, true},
		{"GEN3.2", "", 0, true},
		{"ABCDEFGHIJK1", "", 0, true},
		{"GEN01", "", 0, true},
		{"007", "", 0, true},
		{"", "", 0, true},
	}

	for _, tt := range tests {
		abbr, order, err := ParseBoardID(tt.input)
		if tt.wantError {
			if !errors.Is(err, ErrInvalidBoardID) {
				t.Errorf("ParseBoardID(%q) error = %v, want ErrInvalidBoardID", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBoardID(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if abbr != tt.abbr || order != tt.order {
			t.Errorf("ParseBoardID(%q) = (%q, %d), want (%q, %d)", tt.input, abbr, order, tt.abbr, tt.order)
		}
	}
}

func TestParseBoardRef(t *testing.T) {
	tests := []struct {
		input string
		abbr  string
		order int
		page  int
	}{
		{"GEN3", "GEN", 3, 0},
		{"GEN3.2", "GEN", 3, 2},
		{"4.10", "", 4, 10},
	}

	for _, tt := range tests {
		abbr, order, page, err := ParseBoardRef(tt.input)
		if err != nil {
			t.Errorf("ParseBoardRef(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if abbr != tt.abbr || order != tt.order || page != tt.page {
			t.Errorf("ParseBoardRef(%q) = (%q, %d, %d), want (%q, %d, %d)",
				tt.input, abbr, order, page, tt.abbr, tt.order, tt.page)
		}
	}

	if _, _, _, err := ParseBoardRef("GEN3."); !errors.Is(err, ErrInvalidBoardID) {
		t.Errorf("ParseBoardRef(%q) error = %v, want ErrInvalidBoardID", "GEN3.", err)
	}
}

func TestParsePostID(t *testing.T) {
	tests := []struct {
		input     string
		number    int
		reply     int
		wantError bool
	}{
		{"1", 1, 0, false},
		{"12.4", 12, 4, false},
		{" 3 ", 3, 0, false},
		{"1.", 0, 0, true},
		{"a", 0, 0, true},
		{"1.2.3", 0, 0, true},
		{"01", 0, 0, true},
		{"1.0", 0, 0, true},
		{"1.02", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		number, reply, err := ParsePostID(tt.input)
		if tt.wantError {
			if !errors.Is(err, ErrInvalidPostID) {
				t.Errorf("ParsePostID(%q) error = %v, want ErrInvalidPostID", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePostID(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if number != tt.number || reply != tt.reply {
			t.Errorf("ParsePostID(%q) = (%d, %d), want (%d, %d)", tt.input, number, reply, tt.number, tt.reply)
		}
	}
}

func TestFormatIDs(t *testing.T) {
	if got := FormatBoardID("GEN", 2); got != "GEN2" {
		t.Errorf("FormatBoardID() = %q, want %q", got, "GEN2")
	}
	if got := FormatBoardID("", 5); got != "5" {
		t.Errorf("FormatBoardID() = %q, want %q", got, "5")
	}
	if got := FormatPostID(3, 0); got != "3" {
		t.Errorf("FormatPostID() = %q, want %q", got, "3")
	}
	if got := FormatPostID(3, 2); got != "3.2" {
		t.Errorf("FormatPostID() = %q, want %q", got, "3.2")
	}
}

func TestIDsRoundTrip(t *testing.T) {
	for _, id := range []string{"GEN1", "gen12", "7", "ABCDEFGHIJ30"} {
		abbr, order, err := ParseBoardID(id)
		if err != nil {
			t.Fatalf("ParseBoardID(%q) unexpected error: %v", id, err)
		}
		if got := FormatBoardID(abbr, order); got != id {
			t.Errorf("FormatBoardID(ParseBoardID(%q)) = %q", id, got)
		}
	}
	for _, id := range []string{"1", "12", "12.4", "3.10"} {
		number, reply, err := ParsePostID(id)
		if err != nil {
			t.Fatalf("ParsePostID(%q) unexpected error: %v", id, err)
		}
		if got := FormatPostID(number, reply); got != id {
			t.Errorf("FormatPostID(ParsePostID(%q)) = %q", id, got)
		}
	}
}
