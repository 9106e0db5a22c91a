package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fakeyudi/droidrec/internal/session"
)

func TestFollowSeesAppendsUntilStop(t *testing.T) {
	store, err := session.NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewStoreAt: %v", err)
	}
	s := &session.Session{ID: "live", StartTime: time.Now(), Records: []session.Record{}}
	s.Append("click(OK)", time.Now())
	if err := store.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var (
		mu   sync.Mutex
		seen []string
	)
	first := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- session.Follow(context.Background(), store, "live", func(r session.Record) {
			mu.Lock()
			seen = append(seen, r.Raw)
			mu.Unlock()
			select {
			case first <- struct{}{}:
			default:
			}
		})
	}()

	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("existing record was not delivered")
	}

	s.Append("back", time.Now())
	if err := store.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	stop := time.Now()
	s.Append("finish", stop)
	s.StopTime = &stop
	if err := store.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after the session stopped")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"click(OK)", "back", "finish"}
	if len(seen) != len(want) {
		t.Fatalf("seen %q, want %q", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("record %d = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestFollowStopsOnCancel(t *testing.T) {
	store, err := session.NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewStoreAt: %v", err)
	}
	s := &session.Session{ID: "idle", StartTime: time.Now(), Records: []session.Record{}}
	if err := store.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- session.Follow(ctx, store, "idle", func(session.Record) {})
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Follow ignored cancellation")
	}
}

func TestFollowUnknownSession(t *testing.T) {
	store, err := session.NewStoreAt(t.TempDir())
	if err != nil {
		t.Fatalf("NewStoreAt: %v", err)
	}
	if err := session.Follow(context.Background(), store, "nope", func(session.Record) {}); err != session.ErrNoSession {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}
