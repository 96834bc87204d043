package judge

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultPlaceholderPhrases flag responses that came from a template or a
// refusal rather than real completion work. Matching is case-insensitive
// substring.
var defaultPlaceholderPhrases = []string{
	"lorem ipsum",
	"placeholder",
	"your code here",
	"todo: implement",
	"not implemented",
	"mock response",
	"sample response",
	"example output",
	"dummy text",
	"as an ai language model",
	"i cannot assist",
}

// phraseFile is the YAML shape of an operator-supplied phrase list.
type phraseFile struct {
	Phrases []string `yaml:"phrases"`
}

// LoadPhrases reads a phrase-list override from path. A missing file returns
// the built-in defaults; an unreadable or empty one is an error so a typo'd
// override never silently disables the check.
func LoadPhrases(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultPlaceholderPhrases, nil
		}
		return nil, fmt.Errorf("read phrase list %s: %w", path, err)
	}

	var pf phraseFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse phrase list %s: %w", path, err)
	}
	if len(pf.Phrases) == 0 {
		return nil, fmt.Errorf("phrase list %s contains no phrases", path)
	}
	return pf.Phrases, nil
}

// ContentReport is the outcome of the content heuristics for one response.
type ContentReport struct {
	Mock            bool     // true when any heuristic rejected the response
	Reasons         []string // one line per rejecting heuristic
	Length          int
	UniqueWordRatio float64
	Relevance       float64 // |words(instruction) ∩ words(response)| / |words(instruction)|
}

// AnalyzeContent runs every content heuristic over a response body. The
// checks are independent: a response must clear all of them to count as
// authentic.
func AnalyzeContent(instruction, response string, minLength int, phrases []string) ContentReport {
	report := ContentReport{Length: len(response)}

	lower := strings.ToLower(response)
	for _, phrase := range phrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			report.Mock = true
			report.Reasons = append(report.Reasons, fmt.Sprintf("placeholder phrase %q", phrase))
			break
		}
	}

	if report.Length < minLength {
		report.Mock = true
		report.Reasons = append(report.Reasons, fmt.Sprintf("response length %d below minimum %d", report.Length, minLength))
	}

	words := tokenize(response)
	report.UniqueWordRatio = uniqueRatio(words)
	if len(words) > 0 && report.UniqueWordRatio < minUniqueWordRatio {
		report.Mock = true
		report.Reasons = append(report.Reasons, fmt.Sprintf("unique-word ratio %.2f below %.2f (degenerate repetition)",
			report.UniqueWordRatio, minUniqueWordRatio))
	}

	report.Relevance = relevance(tokenize(instruction), words)
	return report
}

// minUniqueWordRatio is the degenerate-repetition floor: below it a response
// is mostly the same words over and over.
const minUniqueWordRatio = 0.3

// tokenize lowercases and splits on non-alphanumeric runs.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

func uniqueRatio(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

func relevance(instructionWords, responseWords []string) float64 {
	if len(instructionWords) == 0 {
		return 0
	}
	inResponse := make(map[string]struct{}, len(responseWords))
	for _, w := range responseWords {
		inResponse[w] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{}, len(instructionWords))
	total := 0
	for _, w := range instructionWords {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		total++
		if _, ok := inResponse[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(total)
}
