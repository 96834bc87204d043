package judge //nolint:testpackage // white-box tests for content heuristics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAnalyzeContent(t *testing.T) {
	t.Parallel()

	instruction := "refactor the parser to return wrapped errors"

	tests := []struct {
		name     string
		response string
		wantMock bool
	}{
		{
			name:     "authentic answer",
			response: "I moved the parser error paths onto fmt.Errorf with %w so callers can unwrap them; the refactor touches lexer.go and parser.go and every return site now carries context.",
			wantMock: false,
		},
		{
			name:     "placeholder phrase",
			response: "Here is your code: TODO: implement the rest of the parser changes yourself.",
			wantMock: true,
		},
		{
			name:     "refusal boilerplate",
			response: "As an AI language model I cannot make changes to your parser directly.",
			wantMock: true,
		},
		{
			name:     "below minimum length",
			response: "done",
			wantMock: true,
		},
		{
			name:     "empty response",
			response: "",
			wantMock: true,
		},
		{
			name:     "degenerate repetition",
			response: strings.Repeat("yes yes yes yes ", 10),
			wantMock: true,
		},
		{
			name:     "case-insensitive phrase match",
			response: "PLACEHOLDER output while the real completion is generated later on.",
			wantMock: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			report := AnalyzeContent(instruction, tt.response, 20, defaultPlaceholderPhrases)
			if report.Mock != tt.wantMock {
				t.Errorf("Mock = %v, want %v (reasons %v)", report.Mock, tt.wantMock, report.Reasons)
			}
			if report.Mock && len(report.Reasons) == 0 {
				t.Error("rejected with no reasons")
			}
		})
	}
}

func TestAnalyzeContentRelevance(t *testing.T) {
	t.Parallel()

	report := AnalyzeContent(
		"update the parser tests",
		"the parser tests now cover malformed input and the update is merged already",
		20, defaultPlaceholderPhrases)
	if report.Relevance != 1.0 {
		t.Errorf("Relevance = %.2f, want 1.0 when every instruction word appears", report.Relevance)
	}

	report = AnalyzeContent(
		"update the parser tests",
		"completely unrelated prose about gardening techniques and seasonal soil preparation",
		20, defaultPlaceholderPhrases)
	if report.Relevance != 0 {
		t.Errorf("Relevance = %.2f, want 0 with no shared words", report.Relevance)
	}

	// Relevance never rejects on its own; it only informs the quality tier.
	if report.Mock {
		t.Error("irrelevant but well-formed response flagged as mock")
	}
}

func TestLoadPhrases(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// Missing file falls back to the built-in list.
	phrases, err := LoadPhrases(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadPhrases(absent): %v", err)
	}
	if len(phrases) != len(defaultPlaceholderPhrases) {
		t.Errorf("got %d phrases, want built-in defaults", len(phrases))
	}

	path := filepath.Join(dir, "phrases.yaml")
	if err := os.WriteFile(path, []byte("phrases:\n  - foo bar\n  - baz\n"), 0o600); err != nil {
		t.Fatalf("write override: %v", err)
	}
	phrases, err = LoadPhrases(path)
	if err != nil {
		t.Fatalf("LoadPhrases: %v", err)
	}
	if len(phrases) != 2 || phrases[0] != "foo bar" {
		t.Errorf("phrases = %v", phrases)
	}

	// An empty override is a configuration error, not a silent disable.
	if err := os.WriteFile(path, []byte("phrases: []\n"), 0o600); err != nil {
		t.Fatalf("write empty override: %v", err)
	}
	if _, err := LoadPhrases(path); err == nil {
		t.Error("empty phrase list accepted")
	}

	if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
		t.Fatalf("write bad override: %v", err)
	}
	if _, err := LoadPhrases(path); err == nil {
		t.Error("unparsable phrase list accepted")
	}
}
