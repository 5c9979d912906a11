package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaultsFillsUnsetFields(t *testing.T) {
	b := &BotConfig{Name: "job_scout"}
	b.ApplyDefaults()

	if b.TimeoutMinutes != 10 {
		t.Errorf("expected default timeout 10, got %d", b.TimeoutMinutes)
	}
	if b.MaxConcurrentRuns != 1 {
		t.Errorf("expected default max concurrent runs 1, got %d", b.MaxConcurrentRuns)
	}
	if b.Intent.CooldownMinutes != 120 {
		t.Errorf("expected default cooldown 120, got %d", b.Intent.CooldownMinutes)
	}
	if b.Intent.MaxRunsPerDay != 6 {
		t.Errorf("expected default max runs per day 6, got %d", b.Intent.MaxRunsPerDay)
	}
	if b.Pulse.ActiveStartHour != 0 || b.Pulse.ActiveEndHour != 24 {
		t.Errorf("expected default always-on pulse window, got %d-%d", b.Pulse.ActiveStartHour, b.Pulse.ActiveEndHour)
	}
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	b := &BotConfig{Name: "job_scout", TimeoutMinutes: 5, Intent: Intent{CooldownMinutes: 30, MaxRunsPerDay: 2}}
	b.ApplyDefaults()

	if b.TimeoutMinutes != 5 || b.Intent.CooldownMinutes != 30 || b.Intent.MaxRunsPerDay != 2 {
		t.Fatalf("expected explicit values preserved, got %+v", b)
	}
}

func TestLoadTownFileValidatesSignalPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "town.toml")
	contents := `
[bots.job_scout]
display_name = "Job Scout"
enabled = true

[[bots.job_scout.intent.signals]]
pattern = "job:found"
priority = "bogus"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadTownFile(path); err == nil {
		t.Fatal("expected an invalid priority to fail validation")
	}
}

func TestLoadTownFileAppliesNameAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "town.toml")
	contents := `
[bots.job_scout]
enabled = true

[[bots.job_scout.intent.signals]]
pattern = "job:found"
priority = "high"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadTownFile(path)
	if err != nil {
		t.Fatal(err)
	}
	bot, ok := f.Bots["job_scout"]
	if !ok {
		t.Fatal("expected job_scout to be loaded")
	}
	if bot.Name != "job_scout" {
		t.Errorf("expected Name to be set from the map key, got %q", bot.Name)
	}
	if bot.DisplayName != "job_scout" {
		t.Errorf("expected DisplayName to default to the bot name, got %q", bot.DisplayName)
	}
	if bot.Intent.CooldownMinutes != 120 {
		t.Errorf("expected defaults applied during load, got cooldown %d", bot.Intent.CooldownMinutes)
	}
}

func TestLoadTownFileRejectsEmptyBots(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "town.toml")
	if err := os.WriteFile(path, []byte("\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTownFile(path); err == nil {
		t.Fatal("expected an empty town file to fail")
	}
}

func TestLoadRuntimeOverlayMissingFileIsNotError(t *testing.T) {
	o, err := LoadRuntimeOverlay(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("expected missing overlay file to be a no-op, got %v", err)
	}
	if len(o.Bots) != 0 {
		t.Fatalf("expected empty overlay, got %+v", o)
	}
}

func TestRuntimeOverlayApplyOverridesNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.json")
	contents := `{"version":1,"bots":{"job_scout":{"enabled":false,"cooldown_minutes":15}}}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	overlay, err := LoadRuntimeOverlay(path)
	if err != nil {
		t.Fatal(err)
	}

	bots := map[string]*BotConfig{
		"job_scout": {Name: "job_scout", Enabled: true, Intent: Intent{CooldownMinutes: 120, MaxRunsPerDay: 6}},
	}
	overlay.Apply(bots)

	if bots["job_scout"].Enabled {
		t.Fatal("expected overlay to disable job_scout")
	}
	if bots["job_scout"].Intent.CooldownMinutes != 15 {
		t.Fatalf("expected overlay cooldown override, got %d", bots["job_scout"].Intent.CooldownMinutes)
	}
	if bots["job_scout"].Intent.MaxRunsPerDay != 6 {
		t.Fatalf("expected untouched field to remain, got %d", bots["job_scout"].Intent.MaxRunsPerDay)
	}
}

func TestRuntimeOverlayApplyIgnoresUnknownBots(t *testing.T) {
	overlay := &RuntimeOverlay{Bots: map[string]*BotOverride{"ghost": {}}}
	bots := map[string]*BotConfig{"job_scout": {Name: "job_scout"}}
	overlay.Apply(bots) // must not panic
	if _, ok := bots["ghost"]; ok {
		t.Fatal("overlay must not create entries for unknown bots")
	}
}
