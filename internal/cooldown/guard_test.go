package cooldown

import (
	"testing"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
)

func TestCooldownBlocksReactivationWithinWindow(t *testing.T) {
	g := NewGuard()
	cfg := config.Intent{CooldownMinutes: 60, MaxRunsPerDay: 10}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	if !g.CanActivate("job_scout", cfg, config.PriorityMedium, now) {
		t.Fatal("expected first activation to be allowed")
	}
	g.RecordActivation("job_scout", cfg, config.PriorityMedium, now)

	if g.CanActivate("job_scout", cfg, config.PriorityMedium, now.Add(30*time.Minute)) {
		t.Fatal("expected reactivation within cooldown window to be blocked")
	}
	if !g.CanActivate("job_scout", cfg, config.PriorityMedium, now.Add(61*time.Minute)) {
		t.Fatal("expected reactivation after cooldown window to be allowed")
	}
}

func TestHighPriorityHalvesCooldown(t *testing.T) {
	g := NewGuard()
	cfg := config.Intent{CooldownMinutes: 60, MaxRunsPerDay: 10}
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	g.RecordActivation("job_scout", cfg, config.PriorityHigh, now)

	if g.CanActivate("job_scout", cfg, config.PriorityHigh, now.Add(20*time.Minute)) {
		t.Fatal("expected reactivation within halved cooldown (30m) to still be blocked at 20m")
	}
	if !g.CanActivate("job_scout", cfg, config.PriorityHigh, now.Add(31*time.Minute)) {
		t.Fatal("expected reactivation allowed after halved 30m cooldown elapses")
	}
}

func TestDailyCapBlocksAfterLimit(t *testing.T) {
	g := NewGuard()
	cfg := config.Intent{CooldownMinutes: 0, MaxRunsPerDay: 2}
	now := time.Date(2026, 7, 31, 1, 0, 0, 0, time.UTC)

	g.RecordActivation("job_scout", cfg, config.PriorityMedium, now)
	g.RecordActivation("job_scout", cfg, config.PriorityMedium, now)

	if g.CanActivate("job_scout", cfg, config.PriorityMedium, now) {
		t.Fatal("expected daily cap to block a third activation")
	}
}

func TestDailyCountResetsAtUTCMidnight(t *testing.T) {
	g := NewGuard()
	cfg := config.Intent{CooldownMinutes: 0, MaxRunsPerDay: 1}
	day1 := time.Date(2026, 7, 31, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 1, 0, 1, 0, 0, time.UTC)

	g.RecordActivation("job_scout", cfg, config.PriorityMedium, day1)
	if g.CanActivate("job_scout", cfg, config.PriorityMedium, day1) {
		t.Fatal("expected daily cap to be in effect before midnight")
	}
	if !g.CanActivate("job_scout", cfg, config.PriorityMedium, day2) {
		t.Fatal("expected daily cap to reset after UTC midnight")
	}
}
