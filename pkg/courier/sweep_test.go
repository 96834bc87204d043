package courier //nolint:testpackage // white-box tests for the staleness sweep

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"ferry/pkg/mailbox"
	"ferry/pkg/protocol"
)

// ageFile backdates a mailbox file so the sweep sees it as abandoned.
func ageFile(t *testing.T, box *mailbox.Mailbox, stage protocol.Stage, id string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	if err := os.Chtimes(box.Path(stage, id), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func TestSweepRequeuesAbandonedClaim(t *testing.T) {
	t.Parallel()

	c, box := newTestCourier(t)

	req := protocol.Request{
		RequestID:   "unit-1",
		Timestamp:   protocol.FormatTimestamp(time.Now().Add(-time.Hour)),
		Instruction: "finish the migration",
		Mode:        protocol.ModeAgent,
		Model:       protocol.DefaultModel,
		Timeout:     300,
		RetryCount:  0,
		MaxRetries:  3,
		Checksum:    protocol.ChecksumPayload("finish the migration", protocol.ModeAgent, protocol.DefaultModel),
	}
	if err := box.Put(protocol.StageProcessing, "unit-1", req); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ageFile(t, box, protocol.StageProcessing, "unit-1", time.Hour)

	requeued, err := c.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if len(requeued) != 1 || requeued[0] != "unit-1" {
		t.Fatalf("requeued = %v, want [unit-1]", requeued)
	}

	var got protocol.Request
	if err := box.Get(protocol.StageRequests, "unit-1", &got); err != nil {
		t.Fatalf("unit not back in requests: %v", err)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry_count = %d, want exactly 1 increment per detection", got.RetryCount)
	}
	if _, err := os.Stat(box.Path(protocol.StageProcessing, "unit-1")); !os.IsNotExist(err) {
		t.Error("unit still present in processing")
	}

	// The requeued file is fresh, so a second sweep must leave it alone.
	again, err := c.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("second SweepStale: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second sweep requeued %v, want nothing", again)
	}
}

func TestSweepLeavesFreshClaims(t *testing.T) {
	t.Parallel()

	c, box := newTestCourier(t)
	req := mustSubmit(t, c, SubmitOptions{Instruction: "still being worked on"})
	if err := box.Move(req.RequestID, protocol.StageRequests, protocol.StageProcessing); err != nil {
		t.Fatalf("Move: %v", err)
	}

	requeued, err := c.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if len(requeued) != 0 {
		t.Errorf("sweep requeued fresh claim: %v", requeued)
	}
}

func TestSweepQuarantinesMalformed(t *testing.T) {
	t.Parallel()

	c, box := newTestCourier(t)

	// Schema-invalid: parses as JSON but has no instruction or timestamps.
	if err := os.WriteFile(box.Path(protocol.StageProcessing, "bad-1"), []byte(`{"request_id":"bad-1"}`), 0o600); err != nil {
		t.Fatalf("seed malformed: %v", err)
	}
	// Unparsable entirely.
	if err := os.WriteFile(box.Path(protocol.StageProcessing, "bad-2"), []byte(`{{{`), 0o600); err != nil {
		t.Fatalf("seed unparsable: %v", err)
	}
	ageFile(t, box, protocol.StageProcessing, "bad-1", time.Hour)
	ageFile(t, box, protocol.StageProcessing, "bad-2", time.Hour)

	requeued, err := c.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if len(requeued) != 0 {
		t.Errorf("malformed units were requeued: %v", requeued)
	}

	for _, id := range []string{"bad-1", "bad-2"} {
		stage, err := box.Locate(id)
		if err != nil {
			t.Fatalf("Locate %s: %v", id, err)
		}
		if stage != protocol.StageFailed {
			t.Errorf("%s in %s, want failed (no retry for structural errors)", id, stage)
		}
	}

	var ghost protocol.Request
	if err := box.Get(protocol.StageProcessing, "bad-1", &ghost); !errors.Is(err, mailbox.ErrNotFound) {
		t.Errorf("bad-1 still in processing: %v", err)
	}
}
