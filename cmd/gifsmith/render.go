package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/oukeidos/gifsmith/internal/apperrors"
)

var (
	isTerminal      = term.IsTerminal
	stdinIsTerminal = func() bool { return isTerminal(int(os.Stdin.Fd())) }
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
)

// palette applies styles only when w is a color-capable terminal.
type palette struct {
	enabled bool
}

func newPalette(w io.Writer) palette {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return palette{}
	}
	f, ok := w.(*os.File)
	if !ok {
		return palette{}
	}
	return palette{enabled: isTerminal(int(f.Fd()))}
}

func (p palette) render(style lipgloss.Style, s string) string {
	if !p.enabled {
		return s
	}
	return style.Render(s)
}

func (p palette) label(s string) string { return p.render(labelStyle, s) }
func (p palette) muted(s string) string { return p.render(mutedStyle, s) }
func (p palette) fail(s string) string  { return p.render(errorStyle, s) }
func (p palette) ok(s string) string    { return p.render(successStyle, s) }

func kindLabel(kind apperrors.Kind) string {
	switch kind {
	case apperrors.KindUnreachable:
		return "Cannot open file"
	case apperrors.KindUnsupportedFormat:
		return "Unsupported format"
	case apperrors.KindMalformed:
		return "Unreadable video"
	case apperrors.KindToolMissing:
		return "Missing ffmpeg"
	case apperrors.KindCanceled:
		return "Canceled"
	default:
		return "Conversion failed"
	}
}
