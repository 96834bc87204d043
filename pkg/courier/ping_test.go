package courier //nolint:testpackage // white-box tests for the health check

import (
	"context"
	"testing"
	"time"

	"ferry/pkg/mailbox"
	"ferry/pkg/protocol"
)

// answer serves the next request in the mailbox with body, the way the
// editor extension would: claim, publish the response, drop the claim.
func answer(box *mailbox.Mailbox, body string) {
	for {
		entries, err := box.List(protocol.StageRequests)
		if err != nil || len(entries) == 0 {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		id := entries[0].ID
		if err := box.Move(id, protocol.StageRequests, protocol.StageProcessing); err != nil {
			continue
		}
		resp := protocol.Response{
			RequestID:     id,
			Success:       true,
			Response:      body,
			ExecutionTime: 0.01,
			Timestamp:     protocol.FormatTimestamp(time.Now()),
		}
		_ = box.Put(protocol.StageResponses, id, resp)
		_ = box.Remove(protocol.StageProcessing, id)
		return
	}
}

func TestPingPong(t *testing.T) {
	t.Parallel()

	c, box := newTestCourier(t)
	go answer(box, protocol.PongResponse)

	if err := c.Ping(context.Background(), 3*time.Second); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestPingRejectsWrongBody(t *testing.T) {
	t.Parallel()

	c, box := newTestCourier(t)
	go answer(box, "hello there")

	if err := c.Ping(context.Background(), 3*time.Second); err == nil {
		t.Error("Ping accepted a non-pong answer")
	}
}

func TestPingDeadChannel(t *testing.T) {
	t.Parallel()

	c, _ := newTestCourier(t)
	// Nobody answers.
	if err := c.Ping(context.Background(), 200*time.Millisecond); err == nil {
		t.Error("Ping succeeded with no editor on the other side")
	}
}
