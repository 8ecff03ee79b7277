package printer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)

	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects normal and diagnostic output. Nil restores the
// process streams.
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	stdout, stderr = out, errOut
}

func streams() (io.Writer, io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	return stdout, stderr
}

// Out is the current normal output stream.
func Out() io.Writer {
	out, _ := streams()
	return out
}

// Success prints an operation confirmation in green with a checkmark prefix
func Success(format string, a ...any) {
	out, _ := streams()
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(out, msg)
}

// Info prints an informational message in the default color
func Info(format string, a ...any) {
	out, _ := streams()
	fmt.Fprintf(out, format, a...)
}

// Warning prints a warning in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	out, _ := streams()
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(out, msg)
}

// Notice prints one board notification line.
func Notice(line string) {
	out, _ := streams()
	cyan.Fprint(out, "[BBS] ")
	fmt.Fprintln(out, line)
}

// Alert prints one staff alert line.
func Alert(sender, line string) {
	out, _ := streams()
	yellow.Fprintf(out, "[Staff:%s] ", sender)
	fmt.Fprintln(out, line)
}

// Error prints a formatted error with title, explanation, and suggestions to
// stderr and returns a simple error carrying the title for Cobra.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value context lines, printed in the
// order given.
func ErrorWithContext(title string, explanation string, context [][2]string, suggestions []string) error {
	_, errOut := streams()

	red.Fprintf(errOut, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(errOut, "%s\n", explanation)
	}

	if len(context) > 0 {
		fmt.Fprintf(errOut, "\n")
		for _, kv := range context {
			fmt.Fprintf(errOut, "  %s: %s\n", kv[0], kv[1])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(errOut, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(errOut, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(errOut, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(errOut, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return fmt.Errorf("%s", title)
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	out, _ := streams()
	cyan.Fprintf(out, "→ %s", fmt.Sprintf(format, a...))
}
