package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTownFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "town.toml")
	contents := `
[bots.job_scout]
display_name = "Job Scout"
enabled = true
timeout_minutes = 1

[bots.job_scout.exec]
command = "true"

[[bots.job_scout.intent.signals]]
pattern = "job:found"
priority = "medium"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewWiresEveryComponent(t *testing.T) {
	dir := t.TempDir()
	townPath := writeTownFile(t, dir)

	a, err := New(context.Background(), Config{TownFilePath: townPath, ReplayBufferLen: 200})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Bus == nil || a.Matcher == nil || a.Guard == nil || a.Manager == nil || a.Router == nil || a.Pulse == nil || a.Heartbeat == nil || a.Store == nil || a.Metrics == nil {
		t.Fatal("expected every component to be wired")
	}

	states := a.Manager.All()
	if len(states) != 1 || states[0].Name != "job_scout" {
		t.Fatalf("expected job_scout to be loaded from the town file, got %+v", states)
	}
}

func TestRunAndShutdownStopCleanly(t *testing.T) {
	dir := t.TempDir()
	townPath := writeTownFile(t, dir)

	a, err := New(context.Background(), Config{TownFilePath: townPath, ReplayBufferLen: 200})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(runDone)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	a.Shutdown(shutdownCtx)
}
