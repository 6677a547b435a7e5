package template

import "errors"

// Sentinel errors for template operations. Marker errors also match
// proofread.ErrConfiguration.
var (
	// ErrEmpty is returned when the instructions are empty.
	ErrEmpty = errors.New("template is empty")

	// ErrMarkerMissing is returned when the wrap has no payload marker.
	ErrMarkerMissing = errors.New("payload marker missing")

	// ErrMarkerRepeated is returned when the marker occurs more than once.
	ErrMarkerRepeated = errors.New("payload marker repeated")
)
