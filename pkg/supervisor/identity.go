package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Record is the persisted editor identity for a workspace. It is advisory:
// the live process scan always wins, and any disagreement silently corrects
// the record, never the reverse.
type Record struct {
	Workspace string    `json:"workspace"`
	PID       int       `json:"pid"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IdentityStore persists the advisory editor identity. Injectable so
// reconciliation is testable without touching disk.
type IdentityStore interface {
	Load() (Record, bool, error)
	Save(Record) error
	Clear() error
}

// FileIdentityStore keeps the record in a JSON file guarded by a flock, so
// concurrent CLI invocations against the same workspace serialize their
// read-reconcile-write cycles.
type FileIdentityStore struct {
	path string
	lock *flock.Flock
}

// NewFileIdentityStore returns a store backed by path. The flock file lives
// next to it.
func NewFileIdentityStore(path string) *FileIdentityStore {
	return &FileIdentityStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Load reads the record. The second return is false when no record exists.
func (s *FileIdentityStore) Load() (Record, bool, error) {
	if err := s.lock.Lock(); err != nil {
		return Record{}, false, fmt.Errorf("lock identity record: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read identity record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		// A corrupt record is advisory data gone bad: treat as absent.
		return Record{}, false, nil
	}
	return rec, true, nil
}

// Save writes the record atomically (temp file + rename).
func (s *FileIdentityStore) Save(rec Record) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock identity record: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".identity.*")
	if err != nil {
		return fmt.Errorf("temp identity file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write identity record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close identity record: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish identity record: %w", err)
	}
	return nil
}

// Clear removes the record.
func (s *FileIdentityStore) Clear() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock identity record: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear identity record: %w", err)
	}
	return nil
}

// MemoryIdentityStore is an in-memory IdentityStore for tests.
type MemoryIdentityStore struct {
	rec Record
	ok  bool
}

// Load returns the stored record.
func (s *MemoryIdentityStore) Load() (Record, bool, error) { return s.rec, s.ok, nil }

// Save stores the record.
func (s *MemoryIdentityStore) Save(rec Record) error {
	s.rec, s.ok = rec, true
	return nil
}

// Clear drops the record.
func (s *MemoryIdentityStore) Clear() error {
	s.rec, s.ok = Record{}, false
	return nil
}
