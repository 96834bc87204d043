package eventlog //nolint:testpackage // white-box tests against a temp database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ferry/pkg/protocol"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "ferry.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestAppendAndQuery(t *testing.T) {
	t.Parallel()

	log := newTestLog(t)
	ctx := context.Background()

	events := []struct{ typ, source, id, stage, payload string }{
		{TypeSubmit, "courier", "u1", "requests", "submitted"},
		{TypeTransition, "courier", "u1", "processing", "claimed"},
		{TypeRequeue, "courier", "u1", "requests", "retry 1"},
		{TypeSubmit, "courier", "u2", "requests", "submitted"},
	}
	for _, e := range events {
		if err := log.Append(ctx, e.typ, e.source, e.id, e.stage, e.payload); err != nil {
			t.Fatalf("Append %s/%s: %v", e.typ, e.id, err)
		}
	}

	all, err := log.Query(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("Query all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d events, want 4", len(all))
	}
	// Newest first.
	if all[0].RequestID != "u2" || all[3].Type != TypeSubmit {
		t.Errorf("ordering wrong: first=%+v last=%+v", all[0], all[3])
	}

	byUnit, err := log.Query(ctx, QueryOpts{RequestID: "u1"})
	if err != nil {
		t.Fatalf("Query by id: %v", err)
	}
	if len(byUnit) != 3 {
		t.Errorf("got %d events for u1, want 3", len(byUnit))
	}

	byType, err := log.Query(ctx, QueryOpts{EventType: TypeRequeue})
	if err != nil {
		t.Fatalf("Query by type: %v", err)
	}
	if len(byType) != 1 || byType[0].Payload != "retry 1" {
		t.Errorf("requeue events = %+v", byType)
	}

	limited, err := log.Query(ctx, QueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("Query limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d events with limit 2", len(limited))
	}
}

func TestQueryTimeBounds(t *testing.T) {
	t.Parallel()

	log := newTestLog(t)
	ctx := context.Background()
	if err := log.Append(ctx, TypeSubmit, "courier", "u1", "requests", ""); err != nil {
		t.Fatalf("Append: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	got, err := log.Query(ctx, QueryOpts{After: &past, Before: &future})
	if err != nil {
		t.Fatalf("Query in-window: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d events inside window, want 1", len(got))
	}

	got, err = log.Query(ctx, QueryOpts{After: &future})
	if err != nil {
		t.Fatalf("Query after-future: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d events after the future, want 0", len(got))
	}
}

func TestJudgmentRoundTrip(t *testing.T) {
	t.Parallel()

	log := newTestLog(t)
	ctx := context.Background()

	j := protocol.Judgment{
		RequestID:  "u1",
		Verdict:    protocol.VerdictSuccess,
		Confidence: 0.95,
		Reasoning:  []string{"authentic response", "slow execution: 130.0s"},
		JudgedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := log.InsertJudgment(ctx, j); err != nil {
		t.Fatalf("InsertJudgment: %v", err)
	}

	got, err := log.GetJudgment(ctx, "u1")
	if err != nil {
		t.Fatalf("GetJudgment: %v", err)
	}
	if got == nil {
		t.Fatal("judgment missing")
	}
	if got.Verdict != j.Verdict || got.Confidence != j.Confidence {
		t.Errorf("got %+v, want %+v", got, j)
	}
	if len(got.Reasoning) != 2 || got.Reasoning[1] != "slow execution: 130.0s" {
		t.Errorf("reasoning = %v", got.Reasoning)
	}
	if !got.JudgedAt.Equal(j.JudgedAt) {
		t.Errorf("judged_at = %v, want %v", got.JudgedAt, j.JudgedAt)
	}
}

func TestJudgmentUniquePerUnit(t *testing.T) {
	t.Parallel()

	log := newTestLog(t)
	ctx := context.Background()

	first := protocol.Judgment{RequestID: "u1", Verdict: protocol.VerdictSuccess, Confidence: 1.0, JudgedAt: time.Now()}
	if err := log.InsertJudgment(ctx, first); err != nil {
		t.Fatalf("first InsertJudgment: %v", err)
	}

	second := protocol.Judgment{RequestID: "u1", Verdict: protocol.VerdictFailure, Confidence: 0.9, JudgedAt: time.Now()}
	if err := log.InsertJudgment(ctx, second); !errors.Is(err, ErrAlreadyJudged) {
		t.Fatalf("second InsertJudgment = %v, want ErrAlreadyJudged", err)
	}

	// The first verdict stands.
	got, err := log.GetJudgment(ctx, "u1")
	if err != nil {
		t.Fatalf("GetJudgment: %v", err)
	}
	if got.Verdict != protocol.VerdictSuccess {
		t.Errorf("verdict = %s, want the original success", got.Verdict)
	}
}

func TestGetJudgmentAbsent(t *testing.T) {
	t.Parallel()

	log := newTestLog(t)
	got, err := log.GetJudgment(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetJudgment: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v for an unjudged unit, want nil", got)
	}
}
