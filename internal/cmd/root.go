// Package cmd wires the activation core's cobra command tree: serve
// (run the core), bots (list/trigger/pause/resume/enable/disable), watch
// (a bubbletea status dashboard), and describe (glamour-rendered bot
// description).
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	townFilePath string
	overlayPath  string
	sqlDSN       string
	otlpEndpoint string
	modelsConfig string
)

// RootCmd is the activation-core CLI entry point.
var RootCmd = &cobra.Command{
	Use:   "activation-core",
	Short: "Autonomous agent activation core",
}

func init() {
	RootCmd.PersistentFlags().StringVar(&townFilePath, "town-config", "activation-core.toml", "path to the static TOML bot definitions")
	RootCmd.PersistentFlags().StringVar(&overlayPath, "overlay", "runtime-state.json", "path to the JSON runtime overlay file")
	RootCmd.PersistentFlags().StringVar(&sqlDSN, "sql-dsn", "", "MySQL DSN for the persistence store (empty = in-memory)")
	RootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP metrics collector endpoint (empty = no-op metrics)")
	RootCmd.PersistentFlags().StringVar(&modelsConfig, "models-config", "", "path to a models provider JSON file; when set, bots execute via an LLM call instead of a subprocess")

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(botsCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(describeCmd)
}

func requireSubcommand(cmd *cobra.Command, args []string) error {
	return fmt.Errorf("a subcommand is required; see --help")
}
