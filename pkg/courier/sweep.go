package courier

import (
	"context"
	"errors"
	"fmt"

	"ferry/pkg/eventlog"
	"ferry/pkg/mailbox"
	"ferry/pkg/protocol"
)

// SweepStale requeues processing entries whose files have not been touched
// within the staleness threshold. This is the recovery path for an editor
// that died mid-claim without writing a response: the unit goes back to
// requests with retry_count incremented, exactly once per detection.
//
// Requests that fail schema validation are quarantined to failed instead;
// a malformed unit is a structural problem, not a transient one.
func (c *Courier) SweepStale(ctx context.Context) ([]string, error) {
	entries, err := c.box.List(protocol.StageProcessing)
	if err != nil {
		return nil, err
	}

	cutoff := c.nowFunc().Add(-c.cfg.StaleAfter)
	var requeued []string
	for _, entry := range entries {
		if entry.ModTime.After(cutoff) {
			continue
		}

		var req protocol.Request
		if err := c.box.Get(protocol.StageProcessing, entry.ID, &req); err != nil {
			if errors.Is(err, mailbox.ErrNotFound) {
				continue // the editor finished it between List and Get
			}
			if qErr := c.quarantine(ctx, entry.ID, protocol.StageProcessing, err.Error()); qErr != nil {
				return requeued, qErr
			}
			continue
		}
		if err := protocol.ValidateRequest(req); err != nil {
			if qErr := c.quarantine(ctx, entry.ID, protocol.StageProcessing, err.Error()); qErr != nil {
				return requeued, qErr
			}
			continue
		}

		// Claim via rename, then rewrite with the incremented retry count.
		if err := c.box.Move(entry.ID, protocol.StageProcessing, protocol.StageRequests); err != nil {
			if errors.Is(err, mailbox.ErrNotFound) {
				continue // lost the claim race; someone else transitioned it
			}
			return requeued, err
		}
		req.RetryCount++
		req.Timestamp = protocol.FormatTimestamp(c.nowFunc())
		if err := c.box.Put(protocol.StageRequests, entry.ID, req); err != nil {
			return requeued, err
		}
		c.track(req)

		requeued = append(requeued, entry.ID)
		c.logEvent(ctx, eventlog.TypeRequeue, entry.ID, protocol.StageRequests,
			fmt.Sprintf("stale processing entry requeued, retry %d/%d", req.RetryCount, req.MaxRetries))
	}
	return requeued, nil
}

// quarantine moves a malformed unit straight to failed. No retry: the loop
// continues and the problem is logged, not raised.
func (c *Courier) quarantine(ctx context.Context, id string, from protocol.Stage, reason string) error {
	if err := c.box.Move(id, from, protocol.StageFailed); err != nil {
		if errors.Is(err, mailbox.ErrNotFound) {
			return nil
		}
		return err
	}
	c.untrack(id)
	c.logEvent(ctx, eventlog.TypeQuarantine, id, protocol.StageFailed, reason)
	return nil
}
