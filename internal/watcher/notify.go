package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// NotifySource is a push-based Source backed by fsnotify.
type NotifySource struct {
	log          logrus.FieldLogger
	renameWindow time.Duration
}

// NewNotifySource returns a NotifySource. A Create that follows a Rename in
// the same directory within renameWindow is reported as a single Renamed event.
func NewNotifySource(log logrus.FieldLogger, renameWindow time.Duration) *NotifySource {
	return &NotifySource{log: log, renameWindow: renameWindow}
}

// Subscribe starts watching dir (non-recursively).
func (s *NotifySource) Subscribe(ctx context.Context, dir string) (<-chan Event, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch folder %s: %w", dir, err)
	}

	out := make(chan Event, 100)
	go s.run(ctx, fsWatcher, out)
	return out, nil
}

func (s *NotifySource) run(ctx context.Context, fsWatcher *fsnotify.Watcher, out chan<- Event) {
	defer close(out)
	defer fsWatcher.Close()

	p := &renamePairer{window: s.renameWindow}
	for {
		select {
		case <-ctx.Done():
			return

		case raw, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			event, emit := p.translate(raw, time.Now())
			if !emit {
				continue
			}
			event.IsDir = isDir(event.Path)
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			s.log.Warnf("Watcher error: %v", err)
		}
	}
}

// renamePairer turns fsnotify's Rename(old) + Create(new) pair into one event.
type renamePairer struct {
	window time.Duration

	pendingPath string
	pendingAt   time.Time
}

func (p *renamePairer) translate(raw fsnotify.Event, now time.Time) (Event, bool) {
	switch {
	case raw.Has(fsnotify.Rename):
		p.pendingPath = raw.Name
		p.pendingAt = now
		return Event{}, false

	case raw.Has(fsnotify.Create):
		event := Event{Kind: Created, Path: raw.Name}
		if p.pendingPath != "" &&
			now.Sub(p.pendingAt) <= p.window &&
			filepath.Dir(p.pendingPath) == filepath.Dir(raw.Name) {
			event.Kind = Renamed
			event.PreviousPath = p.pendingPath
		}
		p.pendingPath = ""
		return event, true

	case raw.Has(fsnotify.Write):
		return Event{Kind: Modified, Path: raw.Name}, true

	default:
		return Event{}, false
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
