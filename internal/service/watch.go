package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/abhisek/predinator/internal/model"
)

// Reload reports one artifact reload triggered by Watch.
type Reload struct {
	Version string
	Err     error
	Time    time.Time
}

// Watch watches the model directory and reloads the model when the metadata
// file is rewritten, which happens last in every artifact save. The watch is
// registered before Watch returns. Reload results are sent on the returned
// channel when a reader is ready and dropped otherwise; the channel is closed
// when ctx is done.
func (s *Service) Watch(ctx context.Context) (<-chan Reload, error) {
	dir := s.opts.ModelDir
	if dir == "" {
		return nil, errors.New("watch: model directory not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	s.log.Info().Str("dir", dir).Msg("watching model artifacts")

	out := make(chan Reload, 4)
	go s.watchLoop(ctx, w, out)
	return out, nil
}

func (s *Service) watchLoop(ctx context.Context, w *fsnotify.Watcher, out chan<- Reload) {
	defer close(out)
	defer w.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != model.MetadataFile {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.opts.WatchDebounce)
			} else {
				timer.Reset(s.opts.WatchDebounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Msg("artifact watcher error")

		case <-fire:
			fire = nil
			r := s.reload(ctx)
			select {
			case out <- r:
			default:
			}
		}
	}
}

// reload installs the artifacts on disk as the live model.
func (s *Service) reload(ctx context.Context) Reload {
	r := Reload{Time: time.Now()}
	prev := s.deps.Model.Current()
	snap, err := s.deps.Model.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("reload model artifacts, previous model kept")
		r.Err = err
		return r
	}
	r.Version = snap.Version
	if prev != nil && prev.Version == snap.Version {
		s.log.Debug().Str("version", snap.Version).Msg("artifacts unchanged")
		return r
	}
	s.log.Info().Str("version", snap.Version).Msg("model reloaded from artifacts")
	return r
}
