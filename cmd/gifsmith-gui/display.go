package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"github.com/rivo/uniseg"

	"github.com/oukeidos/gifsmith/internal/apperrors"
	"github.com/oukeidos/gifsmith/internal/media"
)

const ellipsis = "…"

// truncateGraphemes cuts s to at most max user-perceived characters,
// ending with an ellipsis when anything was dropped.
func truncateGraphemes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if uniseg.GraphemeClusterCount(s) <= max {
		return s
	}
	var b strings.Builder
	g := uniseg.NewGraphemes(s)
	for n := 0; n < max-1 && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	b.WriteString(ellipsis)
	return b.String()
}

// displayName shortens a file's base name for labels, keeping its extension
// visible when there is room for it.
func displayName(path string, max int) string {
	base := filepath.Base(path)
	if uniseg.GraphemeClusterCount(base) <= max {
		return base
	}
	ext := filepath.Ext(base)
	extLen := uniseg.GraphemeClusterCount(ext)
	if ext == "" || extLen+2 > max {
		return truncateGraphemes(base, max)
	}
	stem := strings.TrimSuffix(base, ext)
	return truncateGraphemes(stem, max-extLen) + ext
}

// candidateFromURI turns a chooser or drop result into a validator candidate.
// Local files are passed as paths; anything else is passed verbatim so the
// validator can reject it.
func candidateFromURI(uri fyne.URI) string {
	if uri == nil {
		return ""
	}
	if uri.Scheme() == "file" {
		return uri.Path()
	}
	return uri.String()
}

func failureTitle(kind apperrors.Kind) string {
	switch kind {
	case apperrors.KindUnreachable:
		return "Cannot Open File"
	case apperrors.KindUnsupportedFormat:
		return "Unsupported Format"
	case apperrors.KindMalformed:
		return "Unreadable Video"
	case apperrors.KindToolMissing:
		return "ffmpeg Not Found"
	case apperrors.KindCanceled:
		return "Canceled"
	default:
		return "Conversion Failed"
	}
}

func summarizeInput(md media.Metadata) string {
	audio := "no audio"
	if md.HasAudio {
		audio = "audio dropped"
	}
	return fmt.Sprintf("%s, %s, %s, %.2f fps, %s",
		strings.ToUpper(md.Format), md.Resolution(), md.Duration.Round(100*time.Millisecond), md.FrameRate, audio)
}
