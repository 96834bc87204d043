// Package mailbox implements the filesystem mailbox shared with the editor
// extension. Each stage is a flat directory holding one <request_id>.json
// file per unit of work; a unit's state IS the directory its file sits in.
// All transitions are single atomic renames so a concurrent reader never
// observes a half-moved or duplicated unit.
package mailbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ferry/pkg/protocol"
)

// ErrNotFound is returned when a unit has no file in the requested stage.
// It distinguishes "not there yet" from a real I/O failure; pollers treat it
// as a normal condition, never an error.
var ErrNotFound = errors.New("not found")

// Entry describes one file in a stage listing.
type Entry struct {
	ID      string
	ModTime time.Time
}

// Mailbox is a handle on a mailbox root. It is safe for concurrent use; all
// mutation goes through the filesystem.
type Mailbox struct {
	root string
}

// New returns a Mailbox rooted at dir. Call Init before first use.
func New(dir string) *Mailbox {
	return &Mailbox{root: dir}
}

// Root returns the mailbox root directory.
func (m *Mailbox) Root() string {
	return m.root
}

// Init creates every stage directory. Idempotent.
func (m *Mailbox) Init() error {
	for _, stage := range protocol.Stages {
		if err := os.MkdirAll(filepath.Join(m.root, string(stage)), 0o700); err != nil {
			return fmt.Errorf("create stage %s: %w", stage, err)
		}
	}
	return nil
}

// Path returns the file path a unit would occupy in stage.
func (m *Mailbox) Path(stage protocol.Stage, id string) string {
	return filepath.Join(m.root, string(stage), id+".json")
}

// Put publishes v into stage under id. The file is written to a temp name in
// the same directory and renamed into place, so readers only ever see a
// fully formed file.
func (m *Mailbox) Put(stage protocol.Stage, id string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", id, err)
	}

	dir := filepath.Join(m.root, string(stage))
	tmp, err := os.CreateTemp(dir, "."+id+".*")
	if err != nil {
		return fmt.Errorf("temp file in %s: %w", stage, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", id, err)
	}

	if err := os.Rename(tmpName, m.Path(stage, id)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish %s into %s: %w", id, stage, err)
	}
	return nil
}

// Get decodes the unit id from stage into out. Returns ErrNotFound if the
// unit has no file there.
func (m *Mailbox) Get(stage protocol.Stage, id string, out any) error {
	data, err := os.ReadFile(m.Path(stage, id))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("read %s from %s: %w", id, stage, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s from %s: %w", id, stage, err)
	}
	return nil
}

// Move transitions unit id from one stage to another with a single rename.
// Exactly one caller can win a given transition: the rename fails with
// ErrNotFound for everyone who arrives after the file has already moved.
func (m *Mailbox) Move(id string, from, to protocol.Stage) error {
	if err := os.Rename(m.Path(from, id), m.Path(to, id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("move %s %s -> %s: %w", id, from, to, err)
	}
	return nil
}

// Remove deletes unit id from stage. Used only to discard invalid responses;
// request files are never removed, only moved.
func (m *Mailbox) Remove(stage protocol.Stage, id string) error {
	if err := os.Remove(m.Path(stage, id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove %s from %s: %w", id, stage, err)
	}
	return nil
}

// List returns the units currently in stage, with modification times for
// staleness checks. Temp files (dot-prefixed) are skipped.
func (m *Mailbox) List(stage protocol.Stage) ([]Entry, error) {
	dir := filepath.Join(m.root, string(stage))
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", stage, err)
	}

	var entries []Entry
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Entry vanished between ReadDir and Info: a concurrent move won.
			continue
		}
		entries = append(entries, Entry{
			ID:      strings.TrimSuffix(name, ".json"),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// Locate reports which stage currently holds unit id. Returns ErrNotFound if
// no stage does.
func (m *Mailbox) Locate(id string) (protocol.Stage, error) {
	for _, stage := range protocol.Stages {
		if _, err := os.Stat(m.Path(stage, id)); err == nil {
			return stage, nil
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("stat %s in %s: %w", id, stage, err)
		}
	}
	return "", ErrNotFound
}

// InFlight reports whether unit id occupies any non-terminal stage. Used by
// the courier's duplicate-submission check.
func (m *Mailbox) InFlight(id string) (bool, error) {
	for _, stage := range protocol.ActiveStages {
		if _, err := os.Stat(m.Path(stage, id)); err == nil {
			return true, nil
		} else if !os.IsNotExist(err) {
			return false, fmt.Errorf("stat %s in %s: %w", id, stage, err)
		}
	}
	return false, nil
}

// Counts returns the number of units per stage, for status display.
func (m *Mailbox) Counts() (map[protocol.Stage]int, error) {
	counts := make(map[protocol.Stage]int, len(protocol.Stages))
	for _, stage := range protocol.Stages {
		entries, err := m.List(stage)
		if err != nil {
			return nil, err
		}
		counts[stage] = len(entries)
	}
	return counts, nil
}
