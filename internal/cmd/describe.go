package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var describeCmd = &cobra.Command{
	Use:   "describe [bot]",
	Short: "Render a bot's markdown description",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func runDescribe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown(ctx)

	name := args[0]
	cfg, ok := a.Manager.Config(name)
	if !ok {
		return fmt.Errorf("bot %q is not registered", name)
	}

	md := fmt.Sprintf("# %s\n\n%s\n\n- **enabled**: %v\n- **timeout**: %dm\n- **cooldown**: %dm\n- **max runs/day**: %d\n",
		cfg.DisplayName, cfg.Description, cfg.Enabled, cfg.TimeoutMinutes, cfg.Intent.CooldownMinutes, cfg.Intent.MaxRunsPerDay)

	wordWrap := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		wordWrap = w
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wordWrap))
	if err != nil {
		return fmt.Errorf("building renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("rendering description: %w", err)
	}

	fmt.Print(out)
	return nil
}
