package protocol

import "fmt"

// ValidateRequest checks a decoded request against the schema. A failure is
// returned as *MalformedRequestError so callers can quarantine rather than
// abort.
func ValidateRequest(r Request) error {
	malformed := func(format string, args ...any) error {
		return &MalformedRequestError{RequestID: r.RequestID, Reason: fmt.Sprintf(format, args...)}
	}

	if r.RequestID == "" {
		return malformed("missing request_id")
	}
	if r.Instruction == "" {
		return malformed("missing instruction")
	}
	if r.Mode != ModeAgent && r.Mode != ModeChat {
		return malformed("invalid mode %q", r.Mode)
	}
	if r.Timestamp == "" {
		return malformed("missing timestamp")
	}
	if _, err := ParseTimestamp(r.Timestamp); err != nil {
		return malformed("bad timestamp %q", r.Timestamp)
	}
	if r.Timeout <= 0 {
		return malformed("timeout must be positive, got %d", r.Timeout)
	}
	if r.RetryCount < 0 {
		return malformed("negative retry_count %d", r.RetryCount)
	}
	if r.MaxRetries < 0 {
		return malformed("negative max_retries %d", r.MaxRetries)
	}
	if r.Checksum == "" {
		return malformed("missing checksum")
	}
	return nil
}

// ValidateResponse checks a response read for request req. It rejects id
// mismatches and timestamp-ordering violations; either makes the response
// discardable, never deliverable.
func ValidateResponse(req Request, resp Response) error {
	if resp.RequestID != req.RequestID {
		return &ResponseMismatchError{Want: req.RequestID, Got: resp.RequestID}
	}

	submitted, err := req.SubmittedAt()
	if err != nil {
		return &MalformedRequestError{RequestID: req.RequestID, Reason: err.Error()}
	}
	produced, err := resp.ProducedAt()
	if err != nil {
		return &StaleResponseError{RequestID: req.RequestID, SubmittedAt: req.Timestamp, ProducedAt: resp.Timestamp}
	}
	if produced.Before(submitted) {
		return &StaleResponseError{RequestID: req.RequestID, SubmittedAt: req.Timestamp, ProducedAt: resp.Timestamp}
	}
	return nil
}
