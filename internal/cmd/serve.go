package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/jobflow-ai/activation-core/internal/app"
)

const lockFileName = "activation-core.lock"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the activation core: event bus, router, lifecycle manager, pulse, and heartbeat monitor",
	RunE:  runServe,
}

// runServe wires and runs a single App. A file lock guards against two
// instances running against the same town config at once — the same
// single-process-ownership guarantee the teacher enforces via
// gofrs/flock elsewhere in the daemon tooling.
func runServe(cmd *cobra.Command, args []string) error {
	lockPath := filepath.Join(filepath.Dir(townFilePath), lockFileName)
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring singleton lock %q: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another activation-core instance already holds %q", lockPath)
	}
	defer fl.Unlock()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, app.Config{
		TownFilePath:   townFilePath,
		OverlayPath:    overlayPath,
		SQLDSN:         sqlDSN,
		OTLPEndpoint:   otlpEndpoint,
		ModelsFilePath: modelsConfig,
	})
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}

	log.Printf("[serve] activation core starting (%d bots loaded)", len(a.Manager.All()))

	runDone := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(runDone)
	}()

	<-ctx.Done()
	log.Printf("[serve] shutdown signal received, stopping")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	a.Shutdown(shutdownCtx)

	select {
	case <-runDone:
	case <-time.After(30 * time.Second):
		log.Printf("[serve] background loops did not stop in time")
	}

	return nil
}
