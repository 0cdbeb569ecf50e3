package watcher

import (
	"context"
	"fmt"
	"time"

	pollwatcher "github.com/radovskyb/watcher"
	"github.com/sirupsen/logrus"
)

// PollSource is an interval-polling Source, for mounts where kernel
// notifications are not delivered (Docker volumes on macOS, network shares).
type PollSource struct {
	log      logrus.FieldLogger
	interval time.Duration
}

// NewPollSource returns a PollSource that scans the directory every interval.
func NewPollSource(log logrus.FieldLogger, interval time.Duration) *PollSource {
	return &PollSource{log: log, interval: interval}
}

// Subscribe starts polling dir (non-recursively).
func (s *PollSource) Subscribe(ctx context.Context, dir string) (<-chan Event, error) {
	w := pollwatcher.New()
	w.FilterOps(pollwatcher.Create, pollwatcher.Write, pollwatcher.Rename, pollwatcher.Move)
	if err := w.Add(dir); err != nil {
		return nil, fmt.Errorf("failed to watch folder %s: %w", dir, err)
	}

	go func() {
		if err := w.Start(s.interval); err != nil {
			s.log.Errorf("Polling watcher stopped: %v", err)
		}
	}()
	// Close is a no-op until Start is running.
	w.Wait()

	out := make(chan Event, 100)
	go s.run(ctx, w, out)
	return out, nil
}

func (s *PollSource) run(ctx context.Context, w *pollwatcher.Watcher, out chan<- Event) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			s.shutdown(w)
			return

		case raw := <-w.Event:
			event, emit := translatePoll(raw)
			if !emit {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				s.shutdown(w)
				return
			}

		case err := <-w.Error:
			s.log.Warnf("Watcher error: %v", err)

		case <-w.Closed:
			return
		}
	}
}

// shutdown closes the watcher while draining its channels, since the
// polling loop may be blocked sending an event when Close is called.
func (s *PollSource) shutdown(w *pollwatcher.Watcher) {
	go w.Close()
	for {
		select {
		case <-w.Event:
		case <-w.Error:
		case <-w.Closed:
			return
		}
	}
}

func translatePoll(raw pollwatcher.Event) (Event, bool) {
	event := Event{Path: raw.Path}
	if raw.FileInfo != nil {
		event.IsDir = raw.IsDir()
	}

	switch raw.Op {
	case pollwatcher.Create:
		event.Kind = Created
	case pollwatcher.Write:
		event.Kind = Modified
	case pollwatcher.Rename, pollwatcher.Move:
		event.Kind = Renamed
		event.PreviousPath = raw.OldPath
	default:
		return Event{}, false
	}
	return event, true
}
