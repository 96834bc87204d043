// Package judge produces the confidence-scored verdict for each unit of
// work. It weighs three independent evidence sources — editor process
// liveness, mailbox channel liveness, and content heuristics — so a
// placeholder or stale response is never mistaken for a real one.
//
// A judgment is written once and is immutable; re-judging a unit id fails
// with eventlog.ErrAlreadyJudged. Retries are new units.
package judge

import (
	"context"
	"fmt"
	"time"

	"ferry/pkg/eventlog"
	"ferry/pkg/protocol"
)

const source = "judge"

// ProcessProbe reports whether the editor process is alive. Satisfied by an
// adapter over the supervisor's status scan.
type ProcessProbe interface {
	Running(ctx context.Context) (bool, error)
}

// ChannelProbe verifies the mailbox round trip end to end. Satisfied by the
// courier's Ping.
type ChannelProbe interface {
	Ping(ctx context.Context, window time.Duration) error
}

// Unit is the judged view of a completed (or exhausted) unit of work.
type Unit struct {
	ID          string
	Instruction string
	Response    *protocol.Response // nil when delivery produced nothing
	Reason      string             // delivery-layer reason when Response is nil or failed
	Retries     int
}

// Config holds judge thresholds.
type Config struct {
	MinResponseLength int           // below this a response is a mock (default 20)
	QualityRelevance  float64       // secondary quality floor on relevance (default 0.2)
	PingWindow        time.Duration // channel-liveness round-trip bound (default 10s)
	SlowExecution     float64       // seconds beyond which confidence is shaved (default 120)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MinResponseLength == 0 {
		out.MinResponseLength = 20
	}
	if out.QualityRelevance == 0 {
		out.QualityRelevance = 0.2
	}
	if out.PingWindow == 0 {
		out.PingWindow = 10 * time.Second
	}
	if out.SlowExecution == 0 {
		out.SlowExecution = 120
	}
	return out
}

// Judge evaluates units against the evidence sources.
type Judge struct {
	cfg     Config
	process ProcessProbe
	channel ChannelProbe
	log     *eventlog.Log
	phrases []string

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// New creates a Judge. phrases may be nil to use the built-in placeholder
// list.
func New(cfg Config, process ProcessProbe, channel ChannelProbe, eventLog *eventlog.Log, phrases []string) *Judge {
	if phrases == nil {
		phrases = defaultPlaceholderPhrases
	}
	return &Judge{
		cfg:     cfg.withDefaults(),
		process: process,
		channel: channel,
		log:     eventLog,
		phrases: phrases,
		nowFunc: time.Now,
	}
}

// Judge collects evidence for unit and applies the verdict rule in strict
// order, first match wins. The judgment is persisted before being returned;
// a unit that already has one yields eventlog.ErrAlreadyJudged.
func (j *Judge) Judge(ctx context.Context, unit Unit) (protocol.Judgment, error) {
	evidence, err := j.collect(ctx, unit)
	if err != nil {
		return protocol.Judgment{}, err
	}

	judgment := j.verdict(unit, evidence)
	judgment.JudgedAt = j.nowFunc()

	if err := j.log.InsertJudgment(ctx, judgment); err != nil {
		return protocol.Judgment{}, err
	}
	if err := j.log.Append(ctx, eventlog.TypeJudgment, source, unit.ID, "",
		fmt.Sprintf("%s confidence=%.2f", judgment.Verdict, judgment.Confidence)); err != nil {
		return protocol.Judgment{}, err
	}
	return judgment, nil
}

// collect gathers evidence cheapest-first and short-circuits: once the
// process is known dead there is no point exercising the channel.
func (j *Judge) collect(ctx context.Context, unit Unit) ([]protocol.Evidence, error) {
	var evidence []protocol.Evidence

	alive, err := j.process.Running(ctx)
	if err != nil {
		return nil, fmt.Errorf("process liveness: %w", err)
	}
	evidence = append(evidence, protocol.Evidence{
		Source:     protocol.EvidenceProcessLiveness,
		Value:      alive,
		ObservedAt: j.nowFunc(),
	})
	if !alive {
		return evidence, nil
	}

	pingErr := j.channel.Ping(ctx, j.cfg.PingWindow)
	ev := protocol.Evidence{
		Source:     protocol.EvidenceChannelLiveness,
		Value:      pingErr == nil,
		ObservedAt: j.nowFunc(),
	}
	if pingErr != nil {
		ev.Detail = pingErr.Error()
	}
	evidence = append(evidence, ev)
	if pingErr != nil {
		return evidence, nil
	}

	if unit.Response != nil {
		report := AnalyzeContent(unit.Instruction, unit.Response.Response, j.cfg.MinResponseLength, j.phrases)
		evidence = append(evidence, protocol.Evidence{
			Source:     protocol.EvidenceContentHeuristics,
			Value:      !report.Mock,
			Detail:     fmt.Sprintf("relevance=%.2f unique=%.2f len=%d", report.Relevance, report.UniqueWordRatio, report.Length),
			ObservedAt: j.nowFunc(),
		})
	}

	return evidence, nil
}

// verdict applies the rule table in strict order, first match wins.
func (j *Judge) verdict(unit Unit, evidence []protocol.Evidence) protocol.Judgment {
	judgment := protocol.Judgment{RequestID: unit.ID}

	bySource := make(map[protocol.EvidenceSource]protocol.Evidence, len(evidence))
	for _, ev := range evidence {
		bySource[ev.Source] = ev
	}

	if ev, ok := bySource[protocol.EvidenceProcessLiveness]; !ok || !ev.Value {
		judgment.Verdict = protocol.VerdictSystemError
		judgment.Confidence = 0
		judgment.Reasoning = []string{"editor process not running"}
		return judgment
	}
	if ev, ok := bySource[protocol.EvidenceChannelLiveness]; !ok || !ev.Value {
		judgment.Verdict = protocol.VerdictSystemError
		judgment.Confidence = 0
		judgment.Reasoning = []string{"mailbox channel dead: " + bySource[protocol.EvidenceChannelLiveness].Detail}
		return judgment
	}

	if unit.Response == nil {
		judgment.Verdict = protocol.VerdictFailure
		// Both liveness probes passed, so the evidence set is complete for a
		// no-response unit.
		judgment.Confidence = 0.8
		reason := unit.Reason
		if reason == "" {
			reason = "no response received"
		}
		judgment.Reasoning = []string{reason}
		return judgment
	}

	if !unit.Response.Success {
		judgment.Verdict = protocol.VerdictFailure
		judgment.Confidence = 0.9
		reason := "editor reported failure"
		if unit.Response.ErrorMessage != nil {
			reason = *unit.Response.ErrorMessage
		}
		judgment.Reasoning = []string{reason}
		return judgment
	}

	report := AnalyzeContent(unit.Instruction, unit.Response.Response, j.cfg.MinResponseLength, j.phrases)
	if report.Mock {
		judgment.Verdict = protocol.VerdictFailure
		judgment.Confidence = 0.9
		judgment.Reasoning = append([]string{"authenticity rejected"}, report.Reasons...)
		return judgment
	}

	base := 1.0
	var reasoning []string
	if unit.Response.ExecutionTime > j.cfg.SlowExecution {
		base -= 0.05
		reasoning = append(reasoning, fmt.Sprintf("slow execution: %.1fs", unit.Response.ExecutionTime))
	}
	if unit.Response.Model != "" && unit.Response.Model != protocol.DefaultModel {
		// Informational only; model substitution is the editor's prerogative.
		reasoning = append(reasoning, "answered by model "+unit.Response.Model)
	}

	if report.Relevance < j.cfg.QualityRelevance {
		judgment.Verdict = protocol.VerdictPartialSuccess
		judgment.Confidence = base * 0.8
		judgment.Reasoning = append(reasoning,
			fmt.Sprintf("relevance %.2f below quality threshold %.2f", report.Relevance, j.cfg.QualityRelevance))
		return judgment
	}

	judgment.Verdict = protocol.VerdictSuccess
	judgment.Confidence = base
	if len(reasoning) == 0 {
		reasoning = []string{"authentic response"}
	}
	judgment.Reasoning = reasoning
	return judgment
}
