// Package config loads the activation core's static and runtime
// configuration: the per-bot definitions that drive intent matching,
// cooldowns, pulse scheduling, and which model tier a bot's executor
// resolves against.
//
// Static definitions live in a TOML "town file" (loaded with
// BurntSushi/toml, the same library the rest of this codebase uses for
// its other static configuration). A JSON overlay holds the handful of
// fields operators expect to change without a redeploy — enabled flags,
// cooldowns, daily caps — following the read-validate-normalize shape of
// agents_api.go.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Priority is the urgency tier of an intent signal.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the three recognized tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Signal is one pattern+filter rule a bot registers interest against.
type Signal struct {
	Pattern  string         `toml:"pattern" json:"pattern"`
	Filter   map[string]any `toml:"filter" json:"filter,omitempty"`
	Priority Priority       `toml:"priority" json:"priority"`
}

// Intent groups a bot's activation signals with its cooldown policy.
type Intent struct {
	Signals         []Signal `toml:"signals" json:"signals"`
	CooldownMinutes int      `toml:"cooldown_minutes" json:"cooldown_minutes"`
	MaxRunsPerDay   int      `toml:"max_runs_per_day" json:"max_runs_per_day"`
}

// PulseConfig controls a bot's adaptive background tick.
type PulseConfig struct {
	Enabled         bool `toml:"enabled" json:"enabled"`
	ActiveStartHour int  `toml:"active_start_hour" json:"active_start_hour"`
	ActiveEndHour   int  `toml:"active_end_hour" json:"active_end_hour"`
}

// ModelTierMap names which provider id backs each of a bot's model tiers.
type ModelTierMap struct {
	Fast    string `toml:"fast" json:"fast"`
	Default string `toml:"default" json:"default"`
	Strong  string `toml:"strong" json:"strong"`
}

// ExecConfig describes how a bot's opaque execution body is invoked.
type ExecConfig struct {
	Command string   `toml:"command" json:"command"`
	Args    []string `toml:"args" json:"args,omitempty"`
}

// BotConfig is the full static+runtime definition of one bot.
type BotConfig struct {
	Name              string       `toml:"name" json:"name"`
	DisplayName       string       `toml:"display_name" json:"display_name"`
	Description       string       `toml:"description" json:"description,omitempty"`
	Enabled           bool         `toml:"enabled" json:"enabled"`
	TimeoutMinutes    int          `toml:"timeout_minutes" json:"timeout_minutes"`
	MaxConcurrentRuns int          `toml:"max_concurrent_runs" json:"max_concurrent_runs"`
	HeartbeatHours    int          `toml:"heartbeat_hours" json:"heartbeat_hours"`
	Intent            Intent       `toml:"intent" json:"intent"`
	Pulse             PulseConfig  `toml:"pulse" json:"pulse"`
	Models            ModelTierMap `toml:"models" json:"models"`
	Exec              ExecConfig   `toml:"exec" json:"exec"`
}

// ApplyDefaults mirrors the original Python bot_config.py defaults, for
// bots loaded from the static town file or registered dynamically at
// runtime.
func (b *BotConfig) ApplyDefaults() {
	if b.TimeoutMinutes <= 0 {
		b.TimeoutMinutes = 10
	}
	if b.MaxConcurrentRuns <= 0 {
		b.MaxConcurrentRuns = 1
	}
	if b.Intent.CooldownMinutes <= 0 {
		b.Intent.CooldownMinutes = 120
	}
	if b.Intent.MaxRunsPerDay <= 0 {
		b.Intent.MaxRunsPerDay = 6
	}
	if b.Pulse.ActiveEndHour == 0 && b.Pulse.ActiveStartHour == 0 {
		b.Pulse.ActiveStartHour = 0
		b.Pulse.ActiveEndHour = 24
	}
}

// TownFile is the root of the TOML static config file.
type TownFile struct {
	Bots map[string]*BotConfig `toml:"bots"`
}

// LoadTownFile reads and validates the static per-bot definitions.
func LoadTownFile(path string) (*TownFile, error) {
	if path == "" {
		return nil, fmt.Errorf("town config path is empty")
	}

	var f TownFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parsing town config: %w", err)
	}

	if len(f.Bots) == 0 {
		return nil, fmt.Errorf("town config has no bots")
	}

	for name, b := range f.Bots {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("town config has a bot with an empty name")
		}
		b.Name = name
		if b.DisplayName == "" {
			b.DisplayName = name
		}
		for _, sig := range b.Intent.Signals {
			if !sig.Priority.Valid() {
				return nil, fmt.Errorf("bot %q: invalid signal priority %q", name, sig.Priority)
			}
		}
		b.ApplyDefaults()
	}

	return &f, nil
}

// RuntimeOverlay holds the subset of BotConfig fields operators may
// change without a redeploy. Loaded from JSON, same idiom as
// agents_api.go: read file, unmarshal, validate, leave everything else
// to the static TownFile.
type RuntimeOverlay struct {
	Version int                       `json:"version"`
	Bots    map[string]*BotOverride   `json:"bots"`
}

type BotOverride struct {
	Enabled         *bool `json:"enabled,omitempty"`
	CooldownMinutes *int  `json:"cooldown_minutes,omitempty"`
	MaxRunsPerDay   *int  `json:"max_runs_per_day,omitempty"`
}

// LoadRuntimeOverlay reads the JSON overlay file. A missing file is not
// an error — it just means no overrides are in effect.
func LoadRuntimeOverlay(path string) (*RuntimeOverlay, error) {
	if path == "" {
		return &RuntimeOverlay{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &RuntimeOverlay{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading runtime overlay: %w", err)
	}

	var o RuntimeOverlay
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parsing runtime overlay: %w", err)
	}
	return &o, nil
}

// Apply merges an overlay's overrides onto the static bot definitions
// in place, for the bots it names. Unknown bot names are ignored —
// overlays are allowed to lag behind a town file edit.
func (o *RuntimeOverlay) Apply(bots map[string]*BotConfig) {
	if o == nil {
		return
	}
	for name, ov := range o.Bots {
		b, ok := bots[name]
		if !ok || ov == nil {
			continue
		}
		if ov.Enabled != nil {
			b.Enabled = *ov.Enabled
		}
		if ov.CooldownMinutes != nil {
			b.Intent.CooldownMinutes = *ov.CooldownMinutes
		}
		if ov.MaxRunsPerDay != nil {
			b.Intent.MaxRunsPerDay = *ov.MaxRunsPerDay
		}
	}
}
