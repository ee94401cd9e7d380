package identifier

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMalformedName is matched by every FormatError.
var ErrMalformedName = errors.New("malformed video filename")

// Example is the canonical filename shown to operators when parsing fails.
const Example = "csi-1673684144607-ms-001-minutes.mp4"

// FormatError reports a segment filename that does not follow the recorder
// naming convention.
type FormatError struct {
	Name   string
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s %q: %s %s (expected format like %s)", ErrMalformedName, e.Name, e.Field, e.Reason, Example)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrMalformedName
}

// Identifier is the metadata embedded in a segment filename.
type Identifier struct {
	Tag     string
	StartMS int64
	Segment int
}

// StartNanos returns the capture start time in nanoseconds since the epoch.
func (id Identifier) StartNanos() int64 {
	return id.StartMS * 1_000_000
}

// Parse extracts the identifier from a filename or path. Only the base name
// is considered.
func Parse(name string) (Identifier, error) {
	base := filepath.Base(name)
	fields := strings.Split(base, "-")
	if len(fields) < 4 {
		return Identifier{}, &FormatError{Name: base, Field: "name", Reason: fmt.Sprintf("has %d dash-separated fields, need at least 4", len(fields))}
	}

	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Identifier{}, &FormatError{Name: base, Field: "start time", Reason: fmt.Sprintf("%q is not an integer", fields[1])}
	}
	segment, err := strconv.Atoi(fields[3])
	if err != nil {
		return Identifier{}, &FormatError{Name: base, Field: "segment index", Reason: fmt.Sprintf("%q is not an integer", fields[3])}
	}

	return Identifier{Tag: fields[0], StartMS: start, Segment: segment}, nil
}

// Format renders the canonical filename for the given identifier parts.
func Format(tag string, startMS int64, segment int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s-%d-ms-%03d-minutes.%s", tag, startMS, segment, ext)
}
