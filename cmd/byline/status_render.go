package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// tone classifies a status line: neutral detail, healthy, degraded or broken.
type tone int

const (
	toneInfo tone = iota
	toneGood
	toneWarn
	toneBad
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

const statusLabelWidth = 16

func statusLine(label string, t tone, detail string, colorize bool) string {
	body := toneTag(t)
	if detail != "" {
		body += " " + detail
	}
	line := fmt.Sprintf("  %-*s%s", statusLabelWidth, label, body)
	if !colorize {
		return line
	}
	color := toneColor(t)
	if color == "" {
		return line
	}
	return color + line + ansiReset
}

func toneTag(t tone) string {
	switch t {
	case toneGood:
		return "[ok]"
	case toneWarn:
		return "[warn]"
	case toneBad:
		return "[fail]"
	default:
		return "[--]"
	}
}

func toneColor(t tone) string {
	switch t {
	case toneGood:
		return ansiGreen
	case toneWarn:
		return ansiYellow
	case toneBad:
		return ansiRed
	default:
		return ""
	}
}

// sectionTitle renders a heading with a dashed underline of equal width.
func sectionTitle(title string, colorize bool) string {
	title = strings.TrimSpace(title)
	underline := strings.Repeat("-", len(title))
	if colorize {
		return ansiCyan + title + ansiReset + "\n" + underline
	}
	return title + "\n" + underline
}

func shouldColorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
