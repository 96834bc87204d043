// Package courier implements the delivery coordinator: it submits units of
// work into the mailbox, polls for completion, detects loss and staleness,
// and resubmits with a bounded retry budget. The courier is the sole retry
// authority in the system; nothing above or below it re-retries.
//
// Delivery is poll-based by design (the only coordination medium is the
// filesystem). An fsnotify watcher on the responses and failed stages wakes
// the loop early, but the ticker remains the correctness mechanism.
package courier

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"ferry/pkg/eventlog"
	"ferry/pkg/mailbox"
	"ferry/pkg/protocol"

	"github.com/google/uuid"
)

const source = "courier"

// OutcomeStatus classifies how a unit of work ended.
type OutcomeStatus string

// Outcome statuses.
const (
	OutcomeCompleted OutcomeStatus = "completed" // valid response in hand
	OutcomeFailed    OutcomeStatus = "failed"    // editor reported failure, or retries exhausted
	OutcomeTimedOut  OutcomeStatus = "timed_out" // no response within the full retry budget
)

// Outcome is what a caller gets back for a submitted unit. Callers always
// receive an Outcome for delivery-level problems; only infrastructure
// failures surface as errors.
type Outcome struct {
	Status   OutcomeStatus
	Response *protocol.Response // nil unless the editor produced one
	Reason   string
	Retries  int
}

// SubmitOptions describes a unit of work to submit.
type SubmitOptions struct {
	ID          string // optional; allocated when empty
	Instruction string
	Mode        protocol.Mode // defaults to agent
	Model       string        // defaults to protocol.DefaultModel
	Timeout     int           // per-attempt seconds; defaults to Config.AttemptTimeout
	MaxRetries  int           // defaults to Config.MaxRetries; use <0 for zero retries
}

// Config holds courier configuration.
type Config struct {
	PollInterval   time.Duration // completion re-check interval (default 1s)
	StaleAfter     time.Duration // processing entries older than this are abandoned (default 10m)
	AttemptTimeout int           // default per-attempt timeout in seconds (default 300)
	MaxRetries     int           // default retry budget (default 3)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PollInterval == 0 {
		out.PollInterval = time.Second
	}
	if out.StaleAfter == 0 {
		out.StaleAfter = 10 * time.Minute
	}
	if out.AttemptTimeout == 0 {
		out.AttemptTimeout = 300
	}
	if out.MaxRetries == 0 {
		out.MaxRetries = 3
	}
	return out
}

// Courier coordinates delivery for one workspace. The editor handles one
// command context at a time, so callers run one Await per workspace; the
// courier serializes its own bookkeeping.
type Courier struct {
	box *mailbox.Mailbox
	log *eventlog.Log
	cfg Config

	mu      sync.Mutex
	pending map[string]protocol.Request // units owned until terminal

	// nowFunc allows tests to control time.
	nowFunc func() time.Time

	// newID allocates unit ids. Defaults to uuid.NewString.
	newID func() string
}

// New creates a Courier over box, logging to eventLog.
func New(cfg Config, box *mailbox.Mailbox, eventLog *eventlog.Log) *Courier {
	return &Courier{
		box:     box,
		log:     eventLog,
		cfg:     cfg.withDefaults(),
		pending: make(map[string]protocol.Request),
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

// Submit writes a new request into the requests stage. The second return is
// false when the id already occupies a non-terminal stage: duplicate
// submission is an idempotent no-op, not an error.
func (c *Courier) Submit(ctx context.Context, opts SubmitOptions) (protocol.Request, bool, error) {
	req := c.buildRequest(opts)

	if req.RequestID != "" {
		inFlight, err := c.box.InFlight(req.RequestID)
		if err != nil {
			return protocol.Request{}, false, err
		}
		if inFlight {
			c.logEvent(ctx, eventlog.TypeDuplicate, req.RequestID, protocol.StageRequests, "duplicate submission ignored")
			return req, false, nil
		}
	} else {
		req.RequestID = c.newID()
	}

	if err := c.box.Put(protocol.StageRequests, req.RequestID, req); err != nil {
		return protocol.Request{}, false, err
	}

	c.mu.Lock()
	c.pending[req.RequestID] = req
	c.mu.Unlock()

	c.logEvent(ctx, eventlog.TypeSubmit, req.RequestID, protocol.StageRequests, req.Instruction)
	return req, true, nil
}

// buildRequest fills defaults and stamps the request.
func (c *Courier) buildRequest(opts SubmitOptions) protocol.Request {
	mode := opts.Mode
	if mode == "" {
		mode = protocol.ModeAgent
	}
	model := opts.Model
	if model == "" {
		model = protocol.DefaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.cfg.AttemptTimeout
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = c.cfg.MaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	return protocol.Request{
		RequestID:   opts.ID,
		Timestamp:   protocol.FormatTimestamp(c.nowFunc()),
		Instruction: opts.Instruction,
		Mode:        mode,
		Model:       model,
		Timeout:     timeout,
		RetryCount:  0,
		MaxRetries:  maxRetries,
		Checksum:    protocol.ChecksumPayload(opts.Instruction, mode, model),
	}
}

// Await polls until unit id reaches a terminal condition or overall elapses.
// Cancellation is honored between poll iterations. Every cycle also runs the
// staleness sweep, so abandoned processing entries recover even while a
// caller is waiting on a different unit.
//
// An overall of 0 derives a budget from the request's per-attempt timeout and
// retry cap.
func (c *Courier) Await(ctx context.Context, id string, overall time.Duration) (Outcome, error) {
	req, ok := c.trackedRequest(id)
	if !ok {
		if err := c.box.Get(protocol.StageRequests, id, &req); err != nil {
			if !errors.Is(err, mailbox.ErrNotFound) {
				return Outcome{}, err
			}
			if err := c.box.Get(protocol.StageProcessing, id, &req); err != nil {
				return Outcome{}, fmt.Errorf("await %s: unit not tracked and not in mailbox: %w", id, err)
			}
		}
		c.track(req)
	}

	if overall == 0 {
		perAttempt := time.Duration(req.Timeout) * time.Second
		overall = perAttempt*time.Duration(req.MaxRetries+1) + c.cfg.PollInterval*2
	}
	deadline := c.nowFunc().Add(overall)

	wake, closeWatch := c.watch()
	defer closeWatch()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		outcome, done, err := c.checkOnce(ctx, id)
		if err != nil {
			return Outcome{}, err
		}
		if done {
			return outcome, nil
		}

		if c.nowFunc().After(deadline) {
			return c.terminalTimeout(ctx, id, "await budget exhausted")
		}

		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case <-wake:
		case <-ticker.C:
		}
	}
}

// checkOnce runs one coordinator cycle for unit id: staleness sweep, then
// terminal checks, then the per-attempt timeout.
func (c *Courier) checkOnce(ctx context.Context, id string) (Outcome, bool, error) {
	if _, err := c.SweepStale(ctx); err != nil {
		log.Printf("courier: staleness sweep: %v", err)
	}

	req, tracked := c.trackedRequest(id)

	// Editor-reported failure is terminal, but only after the report is
	// validated against the request it claims to answer: a failure file
	// carrying a foreign request_id or a timestamp from before submission is
	// as undeliverable as a stale success. Quarantined request files are
	// untracked by the time they land here and stay terminal.
	var resp protocol.Response
	err := c.box.Get(protocol.StageFailed, id, &resp)
	switch {
	case err == nil:
		if tracked {
			if vErr := protocol.ValidateResponse(req, resp); vErr != nil {
				c.logEvent(ctx, eventlog.TypeDiscard, id, protocol.StageFailed, vErr.Error())
				if rmErr := c.box.Remove(protocol.StageFailed, id); rmErr != nil && !errors.Is(rmErr, mailbox.ErrNotFound) {
					return Outcome{}, false, rmErr
				}
				return c.reprocess(ctx, req, vErr.Error())
			}
		}
		c.untrack(id)
		reason := "editor reported failure"
		if resp.ErrorMessage != nil {
			reason = *resp.ErrorMessage
		}
		c.logEvent(ctx, eventlog.TypeTransition, id, protocol.StageFailed, reason)
		return Outcome{Status: OutcomeFailed, Response: &resp, Reason: reason, Retries: req.RetryCount}, true, nil
	case errors.Is(err, mailbox.ErrNotFound):
		// keep looking
	default:
		return Outcome{}, false, err
	}

	err = c.box.Get(protocol.StageResponses, id, &resp)
	switch {
	case err == nil:
		return c.acceptOrDiscard(ctx, req, resp)
	case errors.Is(err, mailbox.ErrNotFound):
		// not yet available; fall through to the timeout check
	default:
		// Unparsable response file: discard and reprocess, same as stale.
		c.logEvent(ctx, eventlog.TypeDiscard, id, protocol.StageResponses, err.Error())
		if rmErr := c.box.Remove(protocol.StageResponses, id); rmErr != nil && !errors.Is(rmErr, mailbox.ErrNotFound) {
			return Outcome{}, false, rmErr
		}
		return c.reprocess(ctx, req, "unparsable response discarded")
	}

	// No response yet: has this attempt run out its timeout?
	submitted, tsErr := req.SubmittedAt()
	if tsErr == nil && c.nowFunc().After(submitted.Add(time.Duration(req.Timeout)*time.Second)) {
		return c.reprocess(ctx, req, "response timeout")
	}
	return Outcome{}, false, nil
}

// acceptOrDiscard validates a response against its request. A valid response
// completes the unit; an invalid one (id mismatch or timestamp ordering
// violation) is discarded and treated as "no response yet", triggering a
// reprocessing cycle rather than returning bad data to the caller.
func (c *Courier) acceptOrDiscard(ctx context.Context, req protocol.Request, resp protocol.Response) (Outcome, bool, error) {
	if err := protocol.ValidateResponse(req, resp); err != nil {
		c.logEvent(ctx, eventlog.TypeDiscard, req.RequestID, protocol.StageResponses, err.Error())
		if rmErr := c.box.Remove(protocol.StageResponses, req.RequestID); rmErr != nil && !errors.Is(rmErr, mailbox.ErrNotFound) {
			return Outcome{}, false, rmErr
		}
		return c.reprocess(ctx, req, err.Error())
	}

	c.untrack(req.RequestID)
	c.logEvent(ctx, eventlog.TypeTransition, req.RequestID, protocol.StageResponses, "response accepted")
	return Outcome{Status: OutcomeCompleted, Response: &resp, Retries: req.RetryCount}, true, nil
}

// reprocess resubmits req with an incremented retry count and a fresh
// timestamp, or terminalizes the unit when the budget is spent.
func (c *Courier) reprocess(ctx context.Context, req protocol.Request, reason string) (Outcome, bool, error) {
	if req.RetryCount >= req.MaxRetries {
		outcome, err := c.terminalTimeout(ctx, req.RequestID, "max retries exceeded: "+reason)
		return outcome, true, err
	}

	req.RetryCount++
	req.Timestamp = protocol.FormatTimestamp(c.nowFunc())

	// Reclaim whichever stage still holds the unit's file. The rename is the
	// claim; rewriting the content afterwards is safe because the courier now
	// owns the file.
	for _, stage := range []protocol.Stage{protocol.StageProcessing, protocol.StageRequests} {
		if err := c.box.Move(req.RequestID, stage, protocol.StageRequests); err == nil {
			break
		} else if !errors.Is(err, mailbox.ErrNotFound) {
			return Outcome{}, false, err
		}
	}
	if err := c.box.Put(protocol.StageRequests, req.RequestID, req); err != nil {
		return Outcome{}, false, err
	}
	c.track(req)

	c.logEvent(ctx, eventlog.TypeRequeue, req.RequestID, protocol.StageRequests,
		fmt.Sprintf("retry %d/%d: %s", req.RetryCount, req.MaxRetries, reason))
	return Outcome{}, false, nil
}

// terminalTimeout moves whatever file remains for id into timed_out and
// returns the terminal failure outcome the caller receives instead of an
// exception.
func (c *Courier) terminalTimeout(ctx context.Context, id, reason string) (Outcome, error) {
	req, _ := c.trackedRequest(id)
	c.untrack(id)

	for _, stage := range []protocol.Stage{protocol.StageRequests, protocol.StageProcessing, protocol.StageResponses} {
		if err := c.box.Move(id, stage, protocol.StageTimedOut); err == nil {
			break
		} else if !errors.Is(err, mailbox.ErrNotFound) {
			return Outcome{}, err
		}
	}

	c.logEvent(ctx, eventlog.TypeTransition, id, protocol.StageTimedOut, reason)
	return Outcome{Status: OutcomeFailed, Reason: reason, Retries: req.RetryCount}, nil
}

// Archive moves a completed unit's response into processed after a
// successful judgment.
func (c *Courier) Archive(ctx context.Context, id string) error {
	if err := c.box.Move(id, protocol.StageResponses, protocol.StageProcessed); err != nil {
		return err
	}
	c.logEvent(ctx, eventlog.TypeTransition, id, protocol.StageProcessed, "archived")
	return nil
}

func (c *Courier) track(req protocol.Request) {
	c.mu.Lock()
	c.pending[req.RequestID] = req
	c.mu.Unlock()
}

func (c *Courier) untrack(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Courier) trackedRequest(id string) (protocol.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.pending[id]
	return req, ok
}

func (c *Courier) logEvent(ctx context.Context, typ string, id string, stage protocol.Stage, payload string) {
	if c.log == nil {
		return
	}
	if err := c.log.Append(ctx, typ, source, id, string(stage), payload); err != nil {
		log.Printf("courier: log event %s/%s: %v", typ, id, err)
	}
}
