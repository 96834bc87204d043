package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Mode selects how the editor executes an instruction.
type Mode string

// Execution modes.
const (
	ModeAgent Mode = "agent"
	ModeChat  Mode = "chat"
)

// Model constants for routing requests to the editor's completion backends.
const (
	ModelOpus   = "claude-opus-4-6"
	ModelSonnet = "claude-sonnet-4-5-20250929"
	ModelHaiku  = "claude-haiku-4-5-20251001"
)

// DefaultModel is used when a request has no explicit model set.
const DefaultModel = ModelSonnet

// TimestampLayout is the fallback layout for producers that omit the zone
// suffix. RFC3339 is tried first.
const TimestampLayout = "2006-01-02T15:04:05"

// Request is the wire form of a unit of work dropped into the requests stage.
// Field names are the protocol contract with the editor extension; do not
// rename them.
type Request struct {
	RequestID   string `json:"request_id"`
	Timestamp   string `json:"timestamp"` // ISO-8601, set at (re)submission
	Instruction string `json:"instruction"`
	Mode        Mode   `json:"mode"`
	Model       string `json:"model"`
	Timeout     int    `json:"timeout"` // seconds the editor may spend
	RetryCount  int    `json:"retry_count"`
	MaxRetries  int    `json:"max_retries"`
	Checksum    string `json:"checksum"`
}

// Response is the wire form the editor writes into responses or failed.
type Response struct {
	RequestID     string  `json:"request_id"`
	Success       bool    `json:"success"`
	Response      string  `json:"response"`
	ExecutionTime float64 `json:"execution_time"` // seconds
	Model         string  `json:"model"`
	Timestamp     string  `json:"timestamp"` // ISO-8601, must be >= request timestamp
	ErrorMessage  *string `json:"error_message"`
}

// SubmittedAt parses the request timestamp.
func (r Request) SubmittedAt() (time.Time, error) {
	return ParseTimestamp(r.Timestamp)
}

// ProducedAt parses the response timestamp.
func (r Response) ProducedAt() (time.Time, error) {
	return ParseTimestamp(r.Timestamp)
}

// ResolveModel returns the request's model or DefaultModel if empty.
func (r Request) ResolveModel() string {
	if r.Model != "" {
		return r.Model
	}
	return DefaultModel
}

// ParseTimestamp parses an ISO-8601 timestamp, accepting RFC3339 and the
// zone-less layout some producers emit.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatTimestamp renders t in the wire timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ChecksumPayload returns the hex-encoded SHA-256 checksum binding a
// request's instruction, mode and model. The editor echoes requests by id
// only; the checksum lets the courier detect a rewritten payload on requeue.
func ChecksumPayload(instruction string, mode Mode, model string) string {
	h := sha256.Sum256([]byte(instruction + "\x00" + string(mode) + "\x00" + model))
	return hex.EncodeToString(h[:])
}

// Verdict classifies a judged unit of work.
type Verdict string

// Verdict constants.
const (
	VerdictSuccess        Verdict = "success"
	VerdictPartialSuccess Verdict = "partial_success"
	VerdictFailure        Verdict = "failure"
	VerdictSystemError    Verdict = "system_error"
)

// EvidenceSource names an independent input to a judgment.
type EvidenceSource string

// Evidence sources, in the order the verdict rule consults them.
const (
	EvidenceProcessLiveness   EvidenceSource = "process_liveness"
	EvidenceChannelLiveness   EvidenceSource = "channel_liveness"
	EvidenceContentHeuristics EvidenceSource = "content_heuristics"
)

// Evidence is a single observation feeding a judgment. Evidence is
// recomputed per judgment and never reused across units.
type Evidence struct {
	Source     EvidenceSource `json:"source"`
	Value      bool           `json:"value"`
	Detail     string         `json:"detail,omitempty"`
	ObservedAt time.Time      `json:"observed_at"`
}

// Judgment is the immutable terminal record for a unit of work. A unit id is
// judged at most once; retries are new units.
type Judgment struct {
	RequestID  string    `json:"request_id"`
	Verdict    Verdict   `json:"verdict"`
	Confidence float64   `json:"confidence"` // in [0,1]
	Reasoning  []string  `json:"reasoning"`
	JudgedAt   time.Time `json:"judged_at"`
}
