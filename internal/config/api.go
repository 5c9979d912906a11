package config

// ProviderType distinguishes how a resolved agent entry should be run.
// The activation core only cares about "api" — a remote model call — but
// the type is kept open the way the original agents-api.json schema does.
type ProviderType string

const (
	ProviderTypeAPI ProviderType = "api"
)

// APIConfig is the wire shape of the "api" block inside a models
// provider file: which endpoint, which model, how to authenticate.
type APIConfig struct {
	APIType string `json:"api_type"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key,omitempty"`

	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	ContextWindow  int               `json:"context_window,omitempty"`
	SupportsTools  bool              `json:"supports_tools,omitempty"`
	SupportsVision bool              `json:"supports_vision,omitempty"`
}
