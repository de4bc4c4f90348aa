package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// stderr receives status lines so stdout stays clean for JSON output and the
// MCP stdio transport.
var stderr io.Writer = os.Stderr

// colorEnabled reports whether ANSI colors should be written: not disabled
// by flag or NO_COLOR, and stderr is a terminal.
func colorEnabled() bool {
	if noColor {
		return false
	}
	f, ok := stderr.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printLine(color, mark, format string, args ...any) {
	msg := mark + " " + fmt.Sprintf(format, args...)
	if colorEnabled() {
		msg = colorize(color, msg)
	}
	fmt.Fprintln(stderr, msg)
}

func printSuccess(format string, args ...any) { printLine(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { printLine(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { printLine(colorYellow, "⚠", format, args...) }

func printStatus(label string, format string, args ...any) {
	if colorEnabled() {
		label = colorize(colorBold, label+":")
	} else {
		label += ":"
	}
	fmt.Fprintf(stderr, "  %s %s\n", label, fmt.Sprintf(format, args...))
}

// statusColor highlights a suggestion's feedback status.
func statusColor(status string) string {
	switch status {
	case "accepted":
		return colorize(colorGreen, status)
	case "rejected":
		return colorize(colorRed, status)
	default:
		return colorize(colorYellow, status)
	}
}
