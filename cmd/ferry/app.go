package main

import (
	"context"
	"fmt"
	"os"

	"ferry/pkg/courier"
	"ferry/pkg/eventlog"
	"ferry/pkg/judge"
	"ferry/pkg/mailbox"
	"ferry/pkg/supervisor"
)

// app bundles the wired components every subcommand needs.
type app struct {
	cfg        Config
	paths      *Paths
	box        *mailbox.Mailbox
	log        *eventlog.Log
	supervisor *supervisor.Supervisor
	courier    *courier.Courier
}

// newApp resolves paths and config and wires the component graph.
func newApp() (*app, error) {
	paths, err := ResolvePaths()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(paths.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(paths.FerryHome, 0o700); err != nil {
		return nil, fmt.Errorf("create ferry home: %w", err)
	}

	box := mailbox.New(paths.resolveMailbox(cfg.Workspace))
	if err := box.Init(); err != nil {
		return nil, err
	}

	eventLog, err := eventlog.Open(paths.EventDBPath)
	if err != nil {
		return nil, err
	}

	sup := supervisor.New(
		cfg.supervisorConfig(),
		&supervisor.ExecCommandRunner{},
		supervisor.NewFileIdentityStore(paths.IdentityPath),
	)

	return &app{
		cfg:        cfg,
		paths:      paths,
		box:        box,
		log:        eventLog,
		supervisor: sup,
		courier:    courier.New(cfg.courierConfig(), box, eventLog),
	}, nil
}

// close releases the event log handle.
func (a *app) close() {
	_ = a.log.Close()
}

// newJudge builds the judge over the wired probes, loading any phrase-list
// override from ferry home.
func (a *app) newJudge() (*judge.Judge, error) {
	phrases, err := judge.LoadPhrases(a.paths.PhrasesPath)
	if err != nil {
		return nil, err
	}
	return judge.New(a.cfg.judgeConfig(), processProbe{a.supervisor}, a.courier, a.log, phrases), nil
}

// processProbe adapts the supervisor's status scan to the judge's
// ProcessProbe interface.
type processProbe struct {
	sup *supervisor.Supervisor
}

func (p processProbe) Running(ctx context.Context) (bool, error) {
	status, err := p.sup.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.Running, nil
}
