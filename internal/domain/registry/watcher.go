package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a Store when one of its local source files changes.
// Editors and copy tools often emit several events per save, so events are
// debounced into a single reload.
type Watcher struct {
	store    *Store
	files    map[string]struct{}
	debounce time.Duration
	logger   zerolog.Logger
}

// NewWatcher creates a Watcher for the given local source paths. S3 sources
// are not watched.
func NewWatcher(store *Store, paths []string, logger zerolog.Logger) *Watcher {
	files := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p == "" || IsS3Location(p) {
			continue
		}
		files[filepath.Clean(p)] = struct{}{}
	}
	return &Watcher{
		store:    store,
		files:    files,
		debounce: defaultDebounce,
		logger:   logger.With().Str("component", "registry_watcher").Logger(),
	}
}

// Run watches until ctx is cancelled. The parent directories are watched
// rather than the files so atomic rename-into-place updates are seen.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.files) == 0 {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("registry watcher error")
		case <-fire:
			fire = nil
			rep := w.store.Reload(ctx)
			w.logger.Info().
				Int("authorized", rep.Authorized.Records).
				Int("blacklisted", rep.Blacklisted.Records).
				Bool("degraded", rep.Degraded()).
				Msg("registry reloaded after file change")
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	_, ok := w.files[filepath.Clean(ev.Name)]
	return ok
}
