// Package executor defines the opaque bot-execution boundary: given a
// bot's config and the triggering event, run the bot's body and report
// back what happened. What that body actually does (call an LLM, run a
// script, hit an internal service) is deliberately not this package's
// concern — it is the "execute(cfg, trigger, ctx) -> result" contract
// described by the activation core's design notes.
//
// ProcessExecutor, the default implementation, adapts the subprocess
// invocation shape of the teacher's internal/agentloop.Executor.runCommand
// (context-bounded exec.CommandContext, environment injection, captured
// stdout/stderr with truncation) to run an external script as a bot body.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
	"github.com/jobflow-ai/activation-core/internal/events"
)

// MaxOutputSize bounds how much captured stdout/stderr a Result carries.
const MaxOutputSize = 64 * 1024

// Result is what a bot run produced.
type Result struct {
	Output       string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// BotExecutor runs one bot's opaque execution body to completion (or
// until ctx is canceled/times out) and reports the outcome.
type BotExecutor interface {
	Execute(ctx context.Context, cfg config.BotConfig, trigger events.Event) (*Result, error)
}

// ProcessExecutor runs a bot's body as an external command, the default
// implementation used when a BotConfig's Exec.Command is set.
type ProcessExecutor struct {
	// Env is injected into every child process in addition to the
	// current environment, mirroring the teacher's GT_ROLE/GT_RIG/
	// GT_TOWN_ROOT convention of passing context via env vars rather
	// than argv.
	Env map[string]string
}

// NewProcessExecutor builds a ProcessExecutor with the given extra
// environment variables (e.g. ACTIVATION_CORE_ROOT).
func NewProcessExecutor(env map[string]string) *ProcessExecutor {
	return &ProcessExecutor{Env: env}
}

// Execute runs cfg.Exec.Command with cfg.Exec.Args, passing the
// triggering event's type and bot name as environment variables, bounded
// by cfg.TimeoutMinutes.
func (p *ProcessExecutor) Execute(ctx context.Context, cfg config.BotConfig, trigger events.Event) (*Result, error) {
	if cfg.Exec.Command == "" {
		return nil, fmt.Errorf("runtime: bot %q has no exec.command configured", cfg.Name)
	}

	timeout := time.Duration(cfg.TimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, cfg.Exec.Command, cfg.Exec.Args...)
	cmd.Env = append(os.Environ(),
		"ACTIVATION_BOT_NAME="+cfg.Name,
		"ACTIVATION_TRIGGER_TYPE="+trigger.Type,
	)
	for k, v := range p.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += "STDERR: " + stderr.String()
	}
	if len(output) > MaxOutputSize {
		output = output[:MaxOutputSize] + "\n... (truncated)"
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &Result{Output: output}, fmt.Errorf("timeout: bot %q exceeded %v", cfg.Name, timeout)
		}
		return &Result{Output: output}, fmt.Errorf("runtime: bot %q exec failed: %w", cfg.Name, err)
	}

	return &Result{Output: output}, nil
}
