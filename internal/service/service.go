// Package service routes watch events through the hidden-file filter into
// the compressor, one event at a time.
package service

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/zhaochunqi/image-compress/internal/compressor"
	"github.com/zhaochunqi/image-compress/internal/config"
	"github.com/zhaochunqi/image-compress/internal/filter"
	"github.com/zhaochunqi/image-compress/internal/logger"
	"github.com/zhaochunqi/image-compress/internal/statistics"
	"github.com/zhaochunqi/image-compress/internal/watcher"
)

// Service handles events from a watch source.
type Service struct {
	config     *config.Config
	logger     logrus.FieldLogger
	stats      *statistics.Statistics
	compressor compressor.Compressor
}

// NewService returns a new Service.
func NewService(
	cfg *config.Config,
	log logrus.FieldLogger,
	stats *statistics.Statistics,
	comp compressor.Compressor,
) *Service {
	return &Service{
		config:     cfg,
		logger:     log,
		stats:      stats,
		compressor: comp,
	}
}

// Run handles events until the channel is closed. Events still buffered
// after ctx is cancelled are drained without processing.
func (s *Service) Run(ctx context.Context, events <-chan watcher.Event) {
	s.logger.Infof("Started monitoring folder: %s", s.config.SourceDir)
	s.logger.Info("Waiting for image files...")
	for ev := range events {
		if ctx.Err() != nil {
			continue
		}
		s.Handle(ctx, ev)
	}
	s.stats.Finalize()
	s.logger.Info("Monitoring stopped")
}

// Handle dispatches a single event. It returns the compressor result and
// true when the event reached the compressor.
func (s *Service) Handle(ctx context.Context, ev watcher.Event) (compressor.Result, bool) {
	s.stats.IncrementEventsSeen()

	if ev.IsDir {
		s.stats.RecordSkip(statistics.SkipDirectory)
		return compressor.Result{}, false
	}

	var previous string
	switch ev.Kind {
	case watcher.Created:
		s.logger.Infof("Detected new file: %s", ev.Path)
	case watcher.Modified:
		s.logger.Infof("Detected file modification: %s", ev.Path)
		if hidden, ok := filter.HiddenCounterpart(ev.Path); ok {
			previous = hidden
		}
	case watcher.Renamed:
		s.logger.Infof("Detected file move: %s -> %s", ev.PreviousPath, ev.Path)
		previous = ev.PreviousPath
	default:
		s.logger.Warnf("Unknown event kind %s for %s", ev.Kind, ev.Path)
		return compressor.Result{}, false
	}

	path, ok := filter.ShouldProcess(ev.Path, previous)
	if !ok {
		s.logger.Debugf("Skipping hidden file: %s", ev.Path)
		s.stats.RecordSkip(statistics.SkipHidden)
		return compressor.Result{}, false
	}
	if filter.IsHiddenToVisible(path, previous) {
		s.logger.Infof("Detected hidden file becoming visible: %s -> %s", previous, path)
	}

	return s.process(ctx, path), true
}

// ProcessPaths runs the compressor once per path without filtering. It
// returns an error when at least one file failed.
func (s *Service) ProcessPaths(ctx context.Context, paths []string) error {
	var failed int
	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		info, err := os.Stat(path)
		if err != nil {
			logger.WithFileOperation(s.logger, path, "stat").Errorf("Cannot access file: %v", err)
			s.stats.RecordFailure(path, compressor.KindIOFailure.String(), err.Error())
			failed++
			continue
		}
		if info.IsDir() {
			s.logger.Warnf("Skipping directory: %s", path)
			s.stats.RecordSkip(statistics.SkipDirectory)
			continue
		}

		if res := s.process(ctx, path); res.Action == compressor.ActionError {
			failed++
		}
	}
	s.stats.Finalize()

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func (s *Service) process(ctx context.Context, path string) compressor.Result {
	res := s.compressor.Process(ctx, path)
	s.stats.Record(res)
	return res
}
