package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jobflow-ai/activation-core/internal/config"
	"github.com/jobflow-ai/activation-core/internal/events"
	"github.com/jobflow-ai/activation-core/internal/llm"
)

// LLMExecutor runs a bot's body as a single LLM call against whichever
// provider its config.ModelTierMap resolves to for the tier the
// triggering event's priority implies, wiring the teacher's
// internal/llm Client/retry/factory stack into the activation core as
// an alternative to ProcessExecutor.
//
// Execute runs on its own goroutine per bot run (see
// lifecycle.Manager.StartBot), so client construction/lookup must be
// safe for concurrent callers resolving different (or the same)
// provider ids at once.
type LLMExecutor struct {
	providers *config.AgentsAPIFile
	retry     llm.RetryConfig

	mu      sync.Mutex
	clients map[string]llm.Client // provider id -> constructed client, built lazily
}

// NewLLMExecutor builds an LLMExecutor resolving provider ids against
// the given models provider file (the same JSON shape as
// agents-api.json, loaded via config.LoadAgentsAPIFile).
func NewLLMExecutor(providers *config.AgentsAPIFile) *LLMExecutor {
	return &LLMExecutor{
		providers: providers,
		clients:   make(map[string]llm.Client),
		retry:     llm.RetryConfig{MaxRetries: 2, InitialBackoff: time.Second, MaxBackoff: 15 * time.Second},
	}
}

func (e *LLMExecutor) clientFor(providerID string) (llm.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[providerID]; ok {
		return c, nil
	}
	agent, err := e.providers.Resolve(providerID)
	if err != nil {
		return nil, fmt.Errorf("resolving model provider %q: %w", providerID, err)
	}
	base, err := llm.NewClient(agent.API)
	if err != nil {
		return nil, fmt.Errorf("building client for provider %q: %w", providerID, err)
	}
	c := llm.WithRetry(base, e.retry)
	e.clients[providerID] = c
	return c, nil
}

// tierFor picks the model tier name by trigger priority: a high
// priority trigger (passed via the Payload key "priority") uses the
// "strong" tier, everything else the "default" tier.
func tierFor(cfg config.BotConfig, trigger events.Event) string {
	if p, ok := trigger.Payload["priority"].(string); ok && p == "high" {
		if cfg.Models.Strong != "" {
			return cfg.Models.Strong
		}
	}
	if cfg.Models.Default != "" {
		return cfg.Models.Default
	}
	return cfg.Models.Fast
}

// Execute sends the bot's description as the system prompt and the
// trigger's event type as the user turn, and returns the model's
// response as the run's output.
func (e *LLMExecutor) Execute(ctx context.Context, cfg config.BotConfig, trigger events.Event) (*Result, error) {
	providerID := tierFor(cfg, trigger)
	if providerID == "" {
		return nil, fmt.Errorf("invalid_config: bot %q has no model tier resolvable for this trigger", cfg.Name)
	}

	client, err := e.clientFor(providerID)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.TimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: cfg.Description},
			{Role: "user", Content: fmt.Sprintf("activation trigger: %s", trigger.Type)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ClassifyError(err), err)
	}

	result := &Result{Output: resp.Content}
	if resp.Usage != nil {
		result.InputTokens = resp.Usage.PromptTokens
		result.OutputTokens = resp.Usage.CompletionTokens
	}
	return result, nil
}
