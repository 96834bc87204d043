package main

import (
	"fmt"
	"os"
	"time"

	"ferry/pkg/courier"
	"ferry/pkg/judge"
	"ferry/pkg/supervisor"

	"github.com/pelletier/go-toml/v2"
)

// Config is the shape of $FERRY_HOME/config.toml.
type Config struct {
	// Workspace is the directory identity the editor instance is bound to.
	// Defaults to the current working directory.
	Workspace string `toml:"workspace"`

	Editor   EditorConfig   `toml:"editor"`
	Delivery DeliveryConfig `toml:"delivery"`
	Judge    JudgeConfig    `toml:"judge"`
}

// EditorConfig describes how to launch and stop the editor.
type EditorConfig struct {
	Bin             string   `toml:"bin"`  // editor executable (default "cursor")
	Args            []string `toml:"args"` // extra launch args; workspace is appended
	LaunchTimeout   int      `toml:"launch_timeout_seconds"`
	ShutdownTimeout int      `toml:"shutdown_timeout_seconds"`
}

// DeliveryConfig tunes the courier.
type DeliveryConfig struct {
	PollInterval   int `toml:"poll_interval_seconds"`
	StaleAfter     int `toml:"stale_after_minutes"`
	AttemptTimeout int `toml:"attempt_timeout_seconds"`
	MaxRetries     int `toml:"max_retries"`
}

// JudgeConfig tunes the authenticity thresholds.
type JudgeConfig struct {
	MinResponseLength int     `toml:"min_response_length"`
	QualityRelevance  float64 `toml:"quality_relevance"`
	PingWindow        int     `toml:"ping_window_seconds"`
}

// LoadConfig reads config.toml from path. A missing file yields pure
// defaults; a present but unparsable one is an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg.withDefaults()
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() (Config, error) {
	if c.Workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return c, fmt.Errorf("resolve workspace: %w", err)
		}
		c.Workspace = wd
	}
	if c.Editor.Bin == "" {
		c.Editor.Bin = "cursor"
	}
	return c, nil
}

// supervisorConfig maps the file config onto the supervisor package.
func (c Config) supervisorConfig() supervisor.Config {
	return supervisor.Config{
		Workspace:       c.Workspace,
		EditorBin:       c.Editor.Bin,
		EditorArgs:      c.Editor.Args,
		LaunchTimeout:   time.Duration(c.Editor.LaunchTimeout) * time.Second,
		ShutdownTimeout: time.Duration(c.Editor.ShutdownTimeout) * time.Second,
	}
}

// courierConfig maps the file config onto the courier package.
func (c Config) courierConfig() courier.Config {
	return courier.Config{
		PollInterval:   time.Duration(c.Delivery.PollInterval) * time.Second,
		StaleAfter:     time.Duration(c.Delivery.StaleAfter) * time.Minute,
		AttemptTimeout: c.Delivery.AttemptTimeout,
		MaxRetries:     c.Delivery.MaxRetries,
	}
}

// judgeConfig maps the file config onto the judge package.
func (c Config) judgeConfig() judge.Config {
	return judge.Config{
		MinResponseLength: c.Judge.MinResponseLength,
		QualityRelevance:  c.Judge.QualityRelevance,
		PingWindow:        time.Duration(c.Judge.PingWindow) * time.Second,
	}
}
