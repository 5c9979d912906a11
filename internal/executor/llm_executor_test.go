package executor

import (
	"testing"

	"github.com/jobflow-ai/activation-core/internal/config"
	"github.com/jobflow-ai/activation-core/internal/events"
)

func TestTierForPicksStrongOnHighPriorityTrigger(t *testing.T) {
	cfg := config.BotConfig{Models: config.ModelTierMap{Fast: "haiku", Default: "sonnet", Strong: "opus"}}
	trigger := events.Event{Payload: map[string]any{"priority": "high"}}
	if got := tierFor(cfg, trigger); got != "opus" {
		t.Fatalf("expected strong tier for high priority trigger, got %q", got)
	}
}

func TestTierForFallsBackToDefault(t *testing.T) {
	cfg := config.BotConfig{Models: config.ModelTierMap{Fast: "haiku", Default: "sonnet"}}
	trigger := events.Event{Payload: map[string]any{"priority": "low"}}
	if got := tierFor(cfg, trigger); got != "sonnet" {
		t.Fatalf("expected default tier for non-high priority trigger, got %q", got)
	}
}

func TestTierForFallsBackToFastWhenNoDefault(t *testing.T) {
	cfg := config.BotConfig{Models: config.ModelTierMap{Fast: "haiku"}}
	if got := tierFor(cfg, events.Event{}); got != "haiku" {
		t.Fatalf("expected fast tier when no default is configured, got %q", got)
	}
}

func TestTierForHighPriorityFallsBackWhenNoStrongConfigured(t *testing.T) {
	cfg := config.BotConfig{Models: config.ModelTierMap{Default: "sonnet"}}
	trigger := events.Event{Payload: map[string]any{"priority": "high"}}
	if got := tierFor(cfg, trigger); got != "sonnet" {
		t.Fatalf("expected default tier fallback when strong is unset, got %q", got)
	}
}
