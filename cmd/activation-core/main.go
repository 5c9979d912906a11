// Command activation-core runs the autonomous agent activation core:
// event bus, intent matching, cooldown guard, bot lifecycle management,
// adaptive pulse scheduling, and idle-bot heartbeat detection.
package main

import (
	"fmt"
	"os"

	"github.com/jobflow-ai/activation-core/internal/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
