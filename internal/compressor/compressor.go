package compressor

import (
	"context"
	"time"

	"github.com/zhaochunqi/image-compress/internal/codec"
)

// Action describes what happened to a single file.
type Action string

const (
	// ActionCompressed means the re-encoded file was smaller and was kept.
	ActionCompressed Action = "compressed"
	// ActionOriginal means the re-encode was not smaller, so the source was copied verbatim.
	ActionOriginal Action = "original"
	// ActionSkipped means the file was not an image.
	ActionSkipped Action = "skipped"
	// ActionError means processing failed; see Result.Error.
	ActionError Action = "error"
)

// Result describes the result of processing a single file.
type Result struct {
	SourcePath      string
	OutputPath      string
	OriginalSize    int64
	CompressedSize  int64
	PercentageSaved float64
	SourceFormat    codec.Format
	OutputFormat    codec.Format
	Action          Action
	Message         string
	Success         bool
	StartedAt       time.Time
	FinishedAt      time.Time
	Error           error
}

// ErrorKind classifies Result.Error.
func (r Result) ErrorKind() Kind {
	return ErrorKind(r.Error)
}

// Compressor defines the interface for image compression.
type Compressor interface {
	// Process validates, re-encodes and writes one file into the output
	// directory. Failures are reported in the Result; Process never panics.
	Process(ctx context.Context, sourcePath string) Result
}
