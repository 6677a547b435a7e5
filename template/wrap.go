package template

import (
	"fmt"
	"os"
	"strings"

	"github.com/randalmurphal/proofread"
)

// DefaultMarker is the placeholder replaced by the chunk text.
const DefaultMarker = "<<PAYLOAD>>"

// DefaultWrap fences the chunk so the model can tell payload from instructions.
const DefaultWrap = "```" + DefaultMarker + "```"

// Wrap is a parsed instruction template with a single payload marker.
// A Wrap is immutable and safe for concurrent use.
type Wrap struct {
	raw    string
	marker string
	before string
	after  string
}

// Parse validates raw and splits it around marker.
func Parse(raw, marker string) (*Wrap, error) {
	if marker == "" {
		return nil, fmt.Errorf("%w: %w: empty marker", proofread.ErrConfiguration, ErrMarkerMissing)
	}
	switch n := strings.Count(raw, marker); {
	case n == 0:
		return nil, fmt.Errorf("%w: %w: %q not found in wrap", proofread.ErrConfiguration, ErrMarkerMissing, marker)
	case n > 1:
		return nil, fmt.Errorf("%w: %w: %q occurs %d times", proofread.ErrConfiguration, ErrMarkerRepeated, marker, n)
	}

	before, after, _ := strings.Cut(raw, marker)
	return &Wrap{raw: raw, marker: marker, before: before, after: after}, nil
}

// MustParse is like Parse but panics on error.
// Use only with constant templates.
func MustParse(raw, marker string) *Wrap {
	w, err := Parse(raw, marker)
	if err != nil {
		panic(fmt.Sprintf("template.MustParse(%q): %v", raw, err))
	}
	return w
}

// Default returns the default wrap.
func Default() *Wrap {
	return MustParse(DefaultWrap, DefaultMarker)
}

// Render returns the wrap with payload in place of the marker.
func (w *Wrap) Render(payload string) string {
	var sb strings.Builder
	sb.Grow(len(w.before) + len(payload) + len(w.after))
	sb.WriteString(w.before)
	sb.WriteString(payload)
	sb.WriteString(w.after)
	return sb.String()
}

// Overhead returns the wrap text with the marker removed.
func (w *Wrap) Overhead() string {
	return w.before + w.after
}

// Marker returns the payload marker.
func (w *Wrap) Marker() string {
	return w.marker
}

// String returns the raw template.
func (w *Wrap) String() string {
	return w.raw
}

// LoadInstructions reads the system instructions from path.
func LoadInstructions(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read instructions: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return string(data), nil
}
