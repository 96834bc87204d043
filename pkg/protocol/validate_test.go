package protocol //nolint:testpackage // white-box tests alongside validation

import (
	"errors"
	"strings"
	"testing"
)

func validRequest() Request {
	return Request{
		RequestID:   "req-1",
		Timestamp:   "2026-08-29T10:00:00Z",
		Instruction: "refactor the parser",
		Mode:        ModeAgent,
		Model:       ModelSonnet,
		Timeout:     300,
		RetryCount:  0,
		MaxRetries:  3,
		Checksum:    ChecksumPayload("refactor the parser", ModeAgent, ModelSonnet),
	}
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mutate     func(*Request)
		wantReason string
	}{
		{name: "valid", mutate: func(r *Request) {}},
		{name: "missing id", mutate: func(r *Request) { r.RequestID = "" }, wantReason: "request_id"},
		{name: "missing instruction", mutate: func(r *Request) { r.Instruction = "" }, wantReason: "instruction"},
		{name: "bad mode", mutate: func(r *Request) { r.Mode = "turbo" }, wantReason: "mode"},
		{name: "missing timestamp", mutate: func(r *Request) { r.Timestamp = "" }, wantReason: "timestamp"},
		{name: "unparsable timestamp", mutate: func(r *Request) { r.Timestamp = "noonish" }, wantReason: "timestamp"},
		{name: "zero timeout", mutate: func(r *Request) { r.Timeout = 0 }, wantReason: "timeout"},
		{name: "negative retry count", mutate: func(r *Request) { r.RetryCount = -1 }, wantReason: "retry_count"},
		{name: "negative max retries", mutate: func(r *Request) { r.MaxRetries = -1 }, wantReason: "max_retries"},
		{name: "missing checksum", mutate: func(r *Request) { r.Checksum = "" }, wantReason: "checksum"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := validRequest()
			tt.mutate(&req)

			err := ValidateRequest(req)
			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("ValidateRequest() = %v, want nil", err)
				}
				return
			}

			var malformed *MalformedRequestError
			if !errors.As(err, &malformed) {
				t.Fatalf("ValidateRequest() = %v, want *MalformedRequestError", err)
			}
			if !strings.Contains(malformed.Reason, tt.wantReason) {
				t.Errorf("reason %q does not mention %q", malformed.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidateResponse(t *testing.T) {
	t.Parallel()

	req := validRequest()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		resp := Response{RequestID: "req-1", Success: true, Response: "done", Timestamp: "2026-08-29T10:05:00Z"}
		if err := ValidateResponse(req, resp); err != nil {
			t.Errorf("ValidateResponse() = %v, want nil", err)
		}
	})

	t.Run("same instant is valid", func(t *testing.T) {
		t.Parallel()
		resp := Response{RequestID: "req-1", Timestamp: req.Timestamp}
		if err := ValidateResponse(req, resp); err != nil {
			t.Errorf("ValidateResponse() = %v, want nil for produced_at == submitted_at", err)
		}
	})

	t.Run("id mismatch", func(t *testing.T) {
		t.Parallel()
		resp := Response{RequestID: "req-2", Timestamp: "2026-08-29T10:05:00Z"}
		var mismatch *ResponseMismatchError
		if err := ValidateResponse(req, resp); !errors.As(err, &mismatch) {
			t.Errorf("ValidateResponse() = %v, want *ResponseMismatchError", err)
		}
	})

	t.Run("stale timestamp", func(t *testing.T) {
		t.Parallel()
		resp := Response{RequestID: "req-1", Timestamp: "2026-08-29T09:59:59Z"}
		var stale *StaleResponseError
		if err := ValidateResponse(req, resp); !errors.As(err, &stale) {
			t.Errorf("ValidateResponse() = %v, want *StaleResponseError", err)
		}
	})

	t.Run("unparsable response timestamp is stale", func(t *testing.T) {
		t.Parallel()
		resp := Response{RequestID: "req-1", Timestamp: "???"}
		var stale *StaleResponseError
		if err := ValidateResponse(req, resp); !errors.As(err, &stale) {
			t.Errorf("ValidateResponse() = %v, want *StaleResponseError", err)
		}
	})
}
