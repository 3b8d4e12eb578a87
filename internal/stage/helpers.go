package stage

import (
	"errors"

	"boxd/internal/artifact"
	"boxd/internal/services"
)

// ArtifactError classifies an artifact read or write failure for stage
// Execute methods: malformed content is a format error, everything else is I/O.
func ArtifactError(stageName, operation, path string, err error) error {
	if err == nil {
		return nil
	}
	marker := services.ErrIO
	if errors.Is(err, artifact.ErrMalformed) {
		marker = services.ErrFormat
	}
	return services.Wrap(marker, stageName, operation, path, err)
}
