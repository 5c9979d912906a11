package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobflow-ai/activation-core/internal/app"
	"github.com/jobflow-ai/activation-core/internal/events"
)

var botsCmd = &cobra.Command{
	Use:   "bots",
	Short: "Inspect and control registered bots",
	RunE:  requireSubcommand,
}

var botsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered bot and its current state",
	RunE:  runBotsList,
}

var botsTriggerCmd = &cobra.Command{
	Use:   "trigger [bot]",
	Short: "Manually trigger a bot run",
	Args:  cobra.ExactArgs(1),
	RunE:  runBotsTrigger,
}

var botsEnableCmd = &cobra.Command{
	Use:   "enable [bot]",
	Short: "Enable a bot",
	Args:  cobra.ExactArgs(1),
	RunE:  runBotsEnable(true),
}

var botsDisableCmd = &cobra.Command{
	Use:   "disable [bot]",
	Short: "Disable a bot",
	Args:  cobra.ExactArgs(1),
	RunE:  runBotsEnable(false),
}

var botsPauseCmd = &cobra.Command{
	Use:   "pause [bot]",
	Short: "Pause a bot without disabling it",
	Args:  cobra.ExactArgs(1),
	RunE:  runBotsPause,
}

var botsResumeCmd = &cobra.Command{
	Use:   "resume [bot]",
	Short: "Resume a paused bot",
	Args:  cobra.ExactArgs(1),
	RunE:  runBotsResume,
}

func init() {
	botsCmd.AddCommand(botsListCmd, botsTriggerCmd, botsEnableCmd, botsDisableCmd, botsPauseCmd, botsResumeCmd)
}

func buildApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, app.Config{
		TownFilePath:   townFilePath,
		OverlayPath:    overlayPath,
		SQLDSN:         sqlDSN,
		OTLPEndpoint:   otlpEndpoint,
		ModelsFilePath: modelsConfig,
	})
}

func runBotsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tENABLED\tRUNS TODAY\tLAST RUN")
	for _, b := range a.Manager.All() {
		lastRun := "-"
		if !b.LastRunAt.IsZero() {
			lastRun = b.LastRunAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%d\t%s\n", b.Name, b.Status, b.Enabled, b.RunsToday, lastRun)
	}
	return w.Flush()
}

func runBotsTrigger(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	name := args[0]
	trigger := events.Event{Type: "manual:trigger", Source: events.SourceManual, Payload: map[string]any{"bot_name": name}}
	if err := a.Manager.StartBot(ctx, name, trigger, events.SourceManual); err != nil {
		return err
	}
	fmt.Printf("triggered %q, waiting for completion\n", name)

	for {
		state, ok := a.Manager.Get(name)
		if !ok || state.Status != "running" {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	fmt.Printf("%q finished\n", name)
	return nil
}

func runBotsEnable(enabled bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Shutdown(ctx)

		if err := a.Manager.SetEnabled(args[0], enabled); err != nil {
			return err
		}
		fmt.Printf("%q enabled=%v\n", args[0], enabled)
		return nil
	}
}

func runBotsPause(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)
	if err := a.Manager.PauseBot(args[0]); err != nil {
		return err
	}
	fmt.Printf("%q paused\n", args[0])
	return nil
}

func runBotsResume(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)
	if err := a.Manager.ResumeBot(args[0]); err != nil {
		return err
	}
	fmt.Printf("%q resumed\n", args[0])
	return nil
}
