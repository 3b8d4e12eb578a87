// Package artifact reads and writes the two on-disk hand-off files of a run:
// the raw tooltip JSON produced by the scraper and the cleaned records CSV
// consumed by the sink. Writes replace the destination atomically.
package artifact

import (
	"errors"
	"fmt"
)

// ErrMalformed marks content that could be read but does not have the
// expected shape.
var ErrMalformed = errors.New("malformed artifact")

func malformed(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, path, fmt.Sprintf(format, args...))
}
