package mailbox //nolint:testpackage // white-box tests for stage transitions

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ferry/pkg/protocol"
)

func newBox(t *testing.T) *Mailbox {
	t.Helper()
	m := New(t.TempDir())
	if err := m.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return m
}

func TestInitCreatesAllStages(t *testing.T) {
	t.Parallel()

	m := newBox(t)
	for _, stage := range protocol.Stages {
		info, err := os.Stat(filepath.Join(m.Root(), string(stage)))
		if err != nil {
			t.Fatalf("stage %s missing: %v", stage, err)
		}
		if !info.IsDir() {
			t.Errorf("stage %s is not a directory", stage)
		}
	}

	// Idempotent.
	if err := m.Init(); err != nil {
		t.Errorf("second Init: %v", err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	m := newBox(t)
	req := protocol.Request{RequestID: "u1", Instruction: "hello", Mode: protocol.ModeChat}
	if err := m.Put(protocol.StageRequests, "u1", req); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got protocol.Request
	if err := m.Get(protocol.StageRequests, "u1", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Instruction != "hello" || got.Mode != protocol.ModeChat {
		t.Errorf("round trip = %+v", got)
	}
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	m := newBox(t)
	var out protocol.Request
	if err := m.Get(protocol.StageResponses, "ghost", &out); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestMoveIsExclusive(t *testing.T) {
	t.Parallel()

	m := newBox(t)
	if err := m.Put(protocol.StageRequests, "u1", protocol.Request{RequestID: "u1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := m.Move("u1", protocol.StageRequests, protocol.StageProcessing); err != nil {
		t.Fatalf("first Move: %v", err)
	}

	// The unit must exist in exactly one stage.
	if _, err := os.Stat(m.Path(protocol.StageRequests, "u1")); !os.IsNotExist(err) {
		t.Error("file still present in requests after move")
	}
	if _, err := os.Stat(m.Path(protocol.StageProcessing, "u1")); err != nil {
		t.Errorf("file absent from processing after move: %v", err)
	}

	// A second mover must lose: the rename source is gone.
	if err := m.Move("u1", protocol.StageRequests, protocol.StageFailed); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Move = %v, want ErrNotFound", err)
	}
}

func TestListSkipsTempFiles(t *testing.T) {
	t.Parallel()

	m := newBox(t)
	if err := m.Put(protocol.StageRequests, "u1", protocol.Request{RequestID: "u1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Simulate an in-progress atomic publish and an unrelated file.
	for _, name := range []string{".u2.12345", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(m.Root(), string(protocol.StageRequests), name), []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	entries, err := m.List(protocol.StageRequests)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "u1" {
		t.Errorf("List = %+v, want only u1", entries)
	}
}

func TestLocate(t *testing.T) {
	t.Parallel()

	m := newBox(t)
	if err := m.Put(protocol.StageTimedOut, "u9", protocol.Request{RequestID: "u9"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	stage, err := m.Locate("u9")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if stage != protocol.StageTimedOut {
		t.Errorf("Locate = %s, want %s", stage, protocol.StageTimedOut)
	}

	if _, err := m.Locate("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Locate missing = %v, want ErrNotFound", err)
	}
}

func TestInFlight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stage protocol.Stage
		want  bool
	}{
		{protocol.StageRequests, true},
		{protocol.StageProcessing, true},
		{protocol.StageResponses, true},
		{protocol.StageFailed, false},
		{protocol.StageTimedOut, false},
		{protocol.StageProcessed, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.stage), func(t *testing.T) {
			t.Parallel()
			m := newBox(t)
			if err := m.Put(tt.stage, "u1", protocol.Request{RequestID: "u1"}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := m.InFlight("u1")
			if err != nil {
				t.Fatalf("InFlight: %v", err)
			}
			if got != tt.want {
				t.Errorf("InFlight in %s = %v, want %v", tt.stage, got, tt.want)
			}
		})
	}
}

func TestCounts(t *testing.T) {
	t.Parallel()

	m := newBox(t)
	for i, id := range []string{"a", "b", "c"} {
		stage := protocol.StageRequests
		if i == 2 {
			stage = protocol.StageProcessed
		}
		if err := m.Put(stage, id, protocol.Request{RequestID: id}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	counts, err := m.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[protocol.StageRequests] != 2 || counts[protocol.StageProcessed] != 1 {
		t.Errorf("Counts = %v", counts)
	}
}
