// Package cleaning implements the transform step: raw tooltip artifact in,
// de-duplicated records CSV out.
package cleaning

import (
	"context"

	"boxd/internal/artifact"
	"boxd/internal/records"
	"boxd/internal/services"
	"boxd/internal/stage"
)

const stageName = "clean"

// Result describes one completed transform.
type Result struct {
	InputPath  string
	OutputPath string
	Records    []records.Record
	Stats      records.Stats
}

// Transform reads the raw artifact at inputPath, builds the record set and
// replaces the CSV at outputPath. Read failures carry services.ErrIO and
// malformed input carries services.ErrFormat; in both cases outputPath is not
// touched. Running it twice on the same input produces identical bytes.
func Transform(ctx context.Context, inputPath, outputPath string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	tooltips, err := artifact.ReadTooltips(inputPath)
	if err != nil {
		return Result{}, stage.ArtifactError(stageName, "read raw artifact", inputPath, err)
	}

	set := records.Build(tooltips)
	recs := set.Records()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := artifact.WriteRecords(outputPath, recs); err != nil {
		return Result{}, services.Wrap(services.ErrIO, stageName, "write records artifact", outputPath, err)
	}
	return Result{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Records:    recs,
		Stats:      set.Stats(),
	}, nil
}
