package statistics

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhaochunqi/image-compress/internal/compressor"
)

// Skip reasons recorded by RecordSkip.
const (
	SkipHidden    = "hidden"
	SkipDirectory = "directory"
	SkipNotImage  = "not_image"
)

// Statistics contains counters for a watch session or a one-shot run.
type Statistics struct {
	EventsSeen      int64
	FilesProcessed  int64
	FilesCompressed int64
	FilesKept       int64
	FilesSkipped    int64
	FilesWithErrors int64

	SkippedHidden    int64
	SkippedDirectory int64
	SkippedNotImage  int64

	BytesIn  int64
	BytesOut int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64
	SavedPercent   float64

	Errors []StatError

	mutex sync.RWMutex

	FormatStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:   time.Now(),
		FormatStats: make(map[string]int64),
		Errors:      make([]StatError, 0),
	}
}

// IncrementEventsSeen counts one filesystem event delivered by the watcher.
func (s *Statistics) IncrementEventsSeen() {
	atomic.AddInt64(&s.EventsSeen, 1)
}

// RecordSkip counts a file dropped before reaching the compressor.
func (s *Statistics) RecordSkip(reason string) {
	atomic.AddInt64(&s.FilesSkipped, 1)
	switch reason {
	case SkipHidden:
		atomic.AddInt64(&s.SkippedHidden, 1)
	case SkipDirectory:
		atomic.AddInt64(&s.SkippedDirectory, 1)
	case SkipNotImage:
		atomic.AddInt64(&s.SkippedNotImage, 1)
	}
}

// Record folds one compressor result into the counters.
func (s *Statistics) Record(res compressor.Result) {
	switch res.Action {
	case compressor.ActionSkipped:
		s.RecordSkip(SkipNotImage)
		return
	case compressor.ActionError:
		s.RecordFailure(res.SourcePath, res.ErrorKind().String(), res.Message)
		return
	case compressor.ActionCompressed:
		atomic.AddInt64(&s.FilesCompressed, 1)
	case compressor.ActionOriginal:
		atomic.AddInt64(&s.FilesKept, 1)
	}

	atomic.AddInt64(&s.FilesProcessed, 1)
	atomic.AddInt64(&s.BytesIn, res.OriginalSize)
	atomic.AddInt64(&s.BytesOut, res.CompressedSize)

	s.mutex.Lock()
	s.FormatStats[fmt.Sprintf("%s -> %s", res.SourceFormat, res.OutputFormat)]++
	s.mutex.Unlock()
}

// RecordFailure counts a failed file and keeps its error.
func (s *Statistics) RecordFailure(filePath, operation, errorMsg string) {
	atomic.AddInt64(&s.FilesWithErrors, 1)
	s.AddError(filePath, operation, errorMsg)
}

// Finalize calculates duration, throughput and overall savings.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	processed := atomic.LoadInt64(&s.FilesProcessed)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(processed) / s.Duration.Seconds()
	}

	in := atomic.LoadInt64(&s.BytesIn)
	out := atomic.LoadInt64(&s.BytesOut)
	if in > 0 {
		s.SavedPercent = float64(in-out) * 100 / float64(in)
	}
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	in := atomic.LoadInt64(&s.BytesIn)
	out := atomic.LoadInt64(&s.BytesOut)

	return fmt.Sprintf(`Image Compression Statistics Summary:

Files:
		Events Seen: %d
		Processed: %d
		Compressed: %d
		Kept Original: %d
		Skipped: %d
		Errors: %d

Skipped:
		Hidden: %d
		Directories: %d
		Not Images: %d

Size:
		Bytes In: %s
		Bytes Out: %s
		Saved: %s (%.1f%%)

Performance:
		Duration: %v
		Files/Second: %.2f`,
		atomic.LoadInt64(&s.EventsSeen),
		atomic.LoadInt64(&s.FilesProcessed),
		atomic.LoadInt64(&s.FilesCompressed),
		atomic.LoadInt64(&s.FilesKept),
		atomic.LoadInt64(&s.FilesSkipped),
		atomic.LoadInt64(&s.FilesWithErrors),
		atomic.LoadInt64(&s.SkippedHidden),
		atomic.LoadInt64(&s.SkippedDirectory),
		atomic.LoadInt64(&s.SkippedNotImage),
		formatBytes(in),
		formatBytes(out),
		formatBytes(in-out),
		s.SavedPercent,
		s.Duration,
		s.FilesPerSecond)
}

// GetFormatBreakdown returns the number of files per source -> output format pair.
func (s *Statistics) GetFormatBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FormatStats) == 0 {
		return "No format statistics available"
	}

	keys := make([]string, 0, len(s.FormatStats))
	for k := range s.FormatStats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := "Format Breakdown:\n"
	for _, k := range keys {
		result += fmt.Sprintf("  %s: %d\n", k, s.FormatStats[k])
	}
	return result
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < 0 {
		return "-" + formatBytes(-bytes)
	}
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// GetFilesWithErrors returns the number of files that failed.
func (s *Statistics) GetFilesWithErrors() int64 {
	return atomic.LoadInt64(&s.FilesWithErrors)
}

// GetFilesProcessed returns the number of files written to the output directory.
func (s *Statistics) GetFilesProcessed() int64 {
	return atomic.LoadInt64(&s.FilesProcessed)
}
