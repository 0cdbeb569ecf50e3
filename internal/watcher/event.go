package watcher

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/zhaochunqi/image-compress/internal/config"
)

// Kind is the type of change reported for a path.
type Kind int

const (
	Created Kind = iota
	Modified
	Renamed
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is a single filesystem change in the watched directory.
// PreviousPath is only set for Renamed events.
type Event struct {
	Kind         Kind
	Path         string
	PreviousPath string
	IsDir        bool
}

// Source delivers events for the direct children of a directory.
//
// The returned channel is closed once ctx is cancelled and the source has
// released its resources, so ranging over it doubles as a join.
type Source interface {
	Subscribe(ctx context.Context, dir string) (<-chan Event, error)
}

// NewSource returns the source selected by cfg.Watch.Mode.
func NewSource(cfg *config.Config, log logrus.FieldLogger) (Source, error) {
	switch cfg.Watch.Mode {
	case config.WatchModeNotify:
		return NewNotifySource(log, cfg.Watch.RenameWindow), nil
	case config.WatchModePoll:
		return NewPollSource(log, cfg.Watch.PollInterval), nil
	default:
		return nil, fmt.Errorf("unknown watch mode: %s", cfg.Watch.Mode)
	}
}
