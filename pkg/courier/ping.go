package courier

import (
	"context"
	"fmt"
	"time"

	"ferry/pkg/protocol"
)

// Ping runs the reserved health-check round trip: submit the "ping"
// instruction and expect a "pong" response with the matching request id
// within the window. This is the sole input for channel-liveness evidence.
func (c *Courier) Ping(ctx context.Context, window time.Duration) error {
	timeout := int(window / time.Second)
	if timeout < 1 {
		timeout = 1
	}

	req, accepted, err := c.Submit(ctx, SubmitOptions{
		Instruction: protocol.PingInstruction,
		Mode:        protocol.ModeChat,
		Timeout:     timeout,
		MaxRetries:  -1, // a health check never retries
	})
	if err != nil {
		return fmt.Errorf("submit ping: %w", err)
	}
	if !accepted {
		return fmt.Errorf("ping id %s already in flight", req.RequestID)
	}

	outcome, err := c.Await(ctx, req.RequestID, window)
	if err != nil {
		return fmt.Errorf("await pong: %w", err)
	}
	if outcome.Status != OutcomeCompleted {
		return fmt.Errorf("ping %s: %s", outcome.Status, outcome.Reason)
	}
	if outcome.Response.Response != protocol.PongResponse {
		return fmt.Errorf("ping answered with %q, want %q", outcome.Response.Response, protocol.PongResponse)
	}
	return nil
}
