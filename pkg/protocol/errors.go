package protocol

import "fmt"

// MalformedRequestError reports a request file that failed schema validation
// on read. Malformed requests are quarantined to the failed stage without
// retry; this is a structural error, not a transient one.
type MalformedRequestError struct {
	RequestID string // may be empty if the file was unparsable
	Reason    string
}

func (e *MalformedRequestError) Error() string {
	if e.RequestID == "" {
		return fmt.Sprintf("malformed request: %s", e.Reason)
	}
	return fmt.Sprintf("malformed request %s: %s", e.RequestID, e.Reason)
}

// StaleResponseError reports a response whose timestamp predates its
// request's. A stale response is discarded and the request is resubmitted;
// it is never returned to the caller.
type StaleResponseError struct {
	RequestID   string
	SubmittedAt string
	ProducedAt  string
}

func (e *StaleResponseError) Error() string {
	return fmt.Sprintf("stale response for %s: produced_at %s predates submitted_at %s",
		e.RequestID, e.ProducedAt, e.SubmittedAt)
}

// ResponseMismatchError reports a response file whose request_id does not
// match the file it was read from. Treated like a stale response.
type ResponseMismatchError struct {
	Want string
	Got  string
}

func (e *ResponseMismatchError) Error() string {
	return fmt.Sprintf("response id mismatch: file %s carries request_id %s", e.Want, e.Got)
}
