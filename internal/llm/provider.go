// Package llm holds the optional cluster annotator. An annotator writes
// a prose review of low-confidence clusters into the run report; it runs
// after resolution and its output never feeds back into clustering,
// confidences or the export.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/mbarbier/studium/internal/model"
)

// Provider is one annotation backend
type Provider interface {
	// Name returns the provider name
	Name() string

	// Annotate reviews the given clusters and returns prose
	Annotate(ctx context.Context, req AnnotateRequest) (*AnnotateResponse, error)

	// IsAvailable checks whether the backend is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// ClusterDigest is the compact view of one cluster handed to the
// provider. Only identifiers and surface data go out; scores stay
// internal.
type ClusterDigest struct {
	EntityID   string
	Type       string
	Name       string
	Confidence float64
	Mentions   []string
	Aliases    []string
}

// AnnotateRequest is the input for one annotation call
type AnnotateRequest struct {
	Clusters []ClusterDigest

	// Prompt overrides the default prompt when non-empty
	Prompt string

	Model     string
	MaxTokens int
}

// AnnotateResponse is the provider's review
type AnnotateResponse struct {
	Review     string
	Model      string
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted backends
	APIKey string

	// BaseURL for custom endpoints (e.g. a local Ollama)
	BaseURL string

	// Timeout in seconds for one call
	Timeout int

	// MaxTokens for response generation
	MaxTokens int
}

// NewProvider creates a provider from configuration. An empty provider
// name disables annotation and returns (nil, nil).
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the run configuration block
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:  mc.Provider,
		Model:     mc.Model,
		APIKey:    mc.APIKey,
		BaseURL:   mc.BaseURL,
		Timeout:   mc.Timeout,
		MaxTokens: mc.MaxTokens,
	}
}

// BuildPrompt constructs the default review prompt. The provider is
// asked to flag suspicious merges, not to decide them; any decision
// language in the response is still just prose in the report.
func BuildPrompt(clusters []ClusterDigest) string {
	var b strings.Builder
	b.WriteString(`You are reviewing entity clusters produced by a record-linkage run over historical biographical registers.

RULES:
1. Comment ONLY on the clusters listed below. Do not invent entities, records or dates.
2. For each cluster, say whether the grouped mentions plausibly refer to one individual, and what additional evidence would settle it.
3. Do not propose merges or splits as instructions; describe doubt, not decisions.
4. Keep it to 2-3 sentences per cluster.

Clusters under review (lowest confidence first):
`)

	for i, c := range clusters {
		fmt.Fprintf(&b, "\n%d. %s %q (confidence %.2f)\n", i+1, c.Type, c.Name, c.Confidence)
		fmt.Fprintf(&b, "   records: %s\n", strings.Join(c.Mentions, ", "))
		if len(c.Aliases) > 0 {
			fmt.Fprintf(&b, "   seen as: %s\n", strings.Join(c.Aliases, "; "))
		}
	}

	return b.String()
}

const systemPrompt = "You are a careful assistant reviewing record-linkage output. You describe uncertainty in the given clusters and never invent facts beyond the listed records."
