package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follow calls fn for every record of session id, then keeps watching the
// store directory and calls fn for each record appended later. It returns
// once the session has stopped or ctx is cancelled.
func Follow(ctx context.Context, store Store, id string, fn func(Record)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch before the first read so no write slips in between.
	if err := watcher.Add(store.Dir()); err != nil {
		return fmt.Errorf("watching %s: %w", store.Dir(), err)
	}

	last := 0
	emit := func() (stopped bool, err error) {
		s, err := store.Load(id)
		if err != nil {
			return false, err
		}
		for _, r := range s.Records {
			if r.Seq > last {
				fn(r)
				last = r.Seq
			}
		}
		return s.StopTime != nil, nil
	}

	stopped, err := emit()
	if err != nil {
		return err
	}
	if stopped {
		return nil
	}

	target := filepath.Base(store.Path(id))
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			// The store replaces the journal by rename, which shows up as Create.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				stopped, err := emit()
				if err != nil {
					continue // half-written or briefly missing; the next event retries
				}
				if stopped {
					return nil
				}
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
		}
	}
}
