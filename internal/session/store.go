package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fakeyudi/droidrec/internal/config"
)

// ErrNoSession is returned by Load and Latest when no journal exists.
var ErrNoSession = errors.New("no recorded session")

// Store persists session journals to disk, one JSON file per session.
type Store interface {
	Save(s *Session) error
	Load(id string) (*Session, error) // returns ErrNoSession if none exists
	Latest() (*Session, error)        // most recently written journal
	Path(id string) string
	Dir() string
}

// diskStore is the concrete Store writing under the XDG data directory.
type diskStore struct {
	dir string
}

// NewStore returns a Store backed by $XDG_DATA_HOME/droidrec/sessions.
func NewStore() (Store, error) {
	base, err := config.DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	return NewStoreAt(filepath.Join(base, "sessions"))
}

// NewStoreAt returns a Store writing journals into dir.
func NewStoreAt(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &diskStore{dir: dir}, nil
}

func (d *diskStore) Dir() string { return d.dir }

func (d *diskStore) Path(id string) string {
	return filepath.Join(d.dir, id+".json")
}

// Save marshals s to JSON and writes it atomically via a temp file + os.Rename.
func (d *diskStore) Save(s *Session) (err error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist session journal: %w", err)
	}

	// Write to a temp file in the same directory so os.Rename is atomic.
	tmp, err := os.CreateTemp(d.dir, ".session-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist session journal: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist session journal: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist session journal: %w", err)
	}
	if err = os.Rename(tmpName, d.Path(s.ID)); err != nil {
		return fmt.Errorf("failed to persist session journal: %w", err)
	}
	return nil
}

// Load reads the journal of session id.
func (d *diskStore) Load(id string) (*Session, error) {
	return ReadFile(d.Path(id))
}

// Latest returns the journal with the newest modification time.
func (d *diskStore) Latest() (*Session, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list session journals: %w", err)
	}
	var (
		newest string
		at     time.Time
	)
	for _, e := range entries {
		if e.IsDir() || !IsJournal(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(at) {
			newest, at = e.Name(), info.ModTime()
		}
	}
	if newest == "" {
		return nil, ErrNoSession
	}
	return ReadFile(filepath.Join(d.dir, newest))
}

// IsJournal reports whether a file name inside the store directory is a
// session journal (and not a temp file).
func IsJournal(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

// ReadFile parses the journal at path.
// Returns ErrNoSession if the file does not exist.
func ReadFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session journal: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session journal: %w", err)
	}
	return &s, nil
}
