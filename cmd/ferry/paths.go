package main

import (
	"fmt"
	"os"
	"path/filepath"

	"ferry/pkg/protocol"
)

// Paths holds all resolved ferry state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	FerryHome    string // ~/.ferry or FERRY_HOME
	ConfigPath   string // config.toml (respects FERRY_HOME)
	IdentityPath string // editor.json or FERRY_IDENTITY_PATH
	EventDBPath  string // events.db or FERRY_DB_PATH
	PhrasesPath  string // phrases.yaml (respects FERRY_HOME)
	MailboxRoot  string // FERRY_MAILBOX or <workspace>/.ferry/mailbox, resolved per config
}

// ResolvePaths returns all ferry paths, respecting env var overrides.
// Environment variables:
//   - FERRY_HOME: base directory for all ferry state (default: ~/.ferry)
//   - FERRY_IDENTITY_PATH: editor identity record (default: $FERRY_HOME/editor.json)
//   - FERRY_DB_PATH: event log database (default: $FERRY_HOME/events.db)
//   - FERRY_MAILBOX: mailbox root (default: <workspace>/.ferry/mailbox)
//
// MailboxRoot is finalized by resolveMailbox once the workspace is known.
func ResolvePaths() (*Paths, error) {
	home, err := resolveFerryHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		FerryHome:    home,
		ConfigPath:   filepath.Join(home, "config.toml"),
		IdentityPath: resolvePathWithEnv("FERRY_IDENTITY_PATH", home, "editor.json"),
		EventDBPath:  resolvePathWithEnv("FERRY_DB_PATH", home, "events.db"),
		PhrasesPath:  filepath.Join(home, "phrases.yaml"),
		MailboxRoot:  os.Getenv("FERRY_MAILBOX"),
	}, nil
}

// resolveMailbox fixes the mailbox root for a workspace unless FERRY_MAILBOX
// already pinned it.
func (p *Paths) resolveMailbox(workspace string) string {
	if p.MailboxRoot != "" {
		return p.MailboxRoot
	}
	return filepath.Join(workspace, protocol.MailboxDir)
}

// resolveFerryHome returns the ferry home directory from FERRY_HOME or ~/.ferry.
func resolveFerryHome() (string, error) {
	if v := os.Getenv("FERRY_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.FerryDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
