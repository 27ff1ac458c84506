// Package formats describes the video containers gifsmith recognizes and the
// configurable subset it accepts.
package formats

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// HeaderSize is the number of leading bytes Detect inspects.
const HeaderSize = 512

// Container families. Formats in the same family share a header signature.
const (
	FamilyISOBMFF  = "isobmff"
	FamilyMatroska = "matroska"
	FamilyRIFF     = "riff"
	FamilyMPEGTS   = "mpegts"
)

// Format is a known container format.
type Format struct {
	ID         string
	Label      string
	Family     string
	Extensions []string
}

var catalog = []Format{
	{ID: "mp4", Label: "MPEG-4 video", Family: FamilyISOBMFF, Extensions: []string{".mp4"}},
	{ID: "m4v", Label: "iTunes video", Family: FamilyISOBMFF, Extensions: []string{".m4v"}},
	{ID: "mov", Label: "QuickTime movie", Family: FamilyISOBMFF, Extensions: []string{".mov", ".qt"}},
	{ID: "webm", Label: "WebM video", Family: FamilyMatroska, Extensions: []string{".webm"}},
	{ID: "mkv", Label: "Matroska video", Family: FamilyMatroska, Extensions: []string{".mkv"}},
	{ID: "avi", Label: "AVI video", Family: FamilyRIFF, Extensions: []string{".avi"}},
	{ID: "mpegts", Label: "MPEG transport stream", Family: FamilyMPEGTS, Extensions: []string{".ts", ".mts"}},
}

// DefaultAllowed mirrors the formats the macOS player stack decodes natively.
var DefaultAllowed = []string{"mp4", "mov", "m4v"}

// Catalog returns every known format in a stable order.
func Catalog() []Format {
	out := make([]Format, len(catalog))
	copy(out, catalog)
	return out
}

func byID(id string) (Format, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, f := range catalog {
		if f.ID == id {
			return f, true
		}
	}
	return Format{}, false
}

func byExtension(ext string) (Format, bool) {
	ext = strings.ToLower(ext)
	for _, f := range catalog {
		for _, e := range f.Extensions {
			if e == ext {
				return f, true
			}
		}
	}
	return Format{}, false
}

// Registry is an immutable allow-list over the catalog.
type Registry struct {
	allowed map[string]Format
}

// NewRegistry builds a registry accepting the given format IDs. Unknown IDs are an error.
func NewRegistry(allowed []string) (*Registry, error) {
	if len(allowed) == 0 {
		return nil, fmt.Errorf("allow-list is empty")
	}
	r := &Registry{allowed: make(map[string]Format, len(allowed))}
	for _, id := range allowed {
		f, ok := byID(id)
		if !ok {
			return nil, fmt.Errorf("unknown format %q (known: %s)", id, strings.Join(knownIDs(), ", "))
		}
		r.allowed[f.ID] = f
	}
	return r, nil
}

func knownIDs() []string {
	ids := make([]string, 0, len(catalog))
	for _, f := range catalog {
		ids = append(ids, f.ID)
	}
	return ids
}

// Allowed reports whether a format ID is on the allow-list.
func (r *Registry) Allowed(id string) bool {
	_, ok := r.allowed[id]
	return ok
}

// Formats returns the allowed formats in catalog order.
func (r *Registry) Formats() []Format {
	var out []Format
	for _, f := range catalog {
		if r.Allowed(f.ID) {
			out = append(out, f)
		}
	}
	return out
}

// Extensions returns the sorted file extensions of all allowed formats.
func (r *Registry) Extensions() []string {
	var exts []string
	for _, f := range r.allowed {
		exts = append(exts, f.Extensions...)
	}
	sort.Strings(exts)
	return exts
}

// Detect identifies the container of a file from its header, using the file
// extension to pick between formats of the same family. It falls back to the
// extension alone when the header is not recognized. Detect does not consult
// the allow-list.
func Detect(path string, header []byte) (Format, bool) {
	byExt, extOK := byExtension(filepath.Ext(path))
	sniffed, sniffOK := sniff(header)
	if !sniffOK {
		return byExt, extOK
	}
	if extOK && byExt.Family == sniffed.Family {
		return byExt, true
	}
	return sniffed, true
}

func sniff(h []byte) (Format, bool) {
	switch {
	case len(h) >= 12 && string(h[4:8]) == "ftyp":
		brand := string(h[8:12])
		switch {
		case brand == "qt  ":
			return byID("mov")
		case strings.HasPrefix(brand, "M4V"):
			return byID("m4v")
		default:
			return byID("mp4")
		}
	case len(h) >= 8 && isQuickTimeAtom(string(h[4:8])):
		return byID("mov")
	case len(h) >= 4 && bytes.Equal(h[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		limit := len(h)
		if limit > 64 {
			limit = 64
		}
		if bytes.Contains(h[:limit], []byte("webm")) {
			return byID("webm")
		}
		return byID("mkv")
	case len(h) >= 12 && string(h[:4]) == "RIFF" && string(h[8:12]) == "AVI ":
		return byID("avi")
	case len(h) > 188 && h[0] == 0x47 && h[188] == 0x47:
		return byID("mpegts")
	}
	return Format{}, false
}

// Legacy QuickTime files may start with a top-level atom other than ftyp.
func isQuickTimeAtom(name string) bool {
	switch name {
	case "moov", "mdat", "wide", "free", "skip", "pnot":
		return true
	}
	return false
}
