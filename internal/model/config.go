package model

import "time"

// Config is the full run configuration. Threshold defaults come from the
// calibration corpus; everything is overridable via flags, STUDIUM_* env
// vars or ~/.studium/config.yaml.
type Config struct {
	Resolver    ResolverConfig    `yaml:"resolver" mapstructure:"resolver"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Neo4j       Neo4jConfig       `yaml:"neo4j" mapstructure:"neo4j"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
}

// ResolverConfig fixes the clustering thresholds and score weights
type ResolverConfig struct {
	// Pairs scoring at or above MergeThreshold are merge candidates
	MergeThreshold float64 `yaml:"merge_threshold" mapstructure:"merge_threshold"`
	// Pairs scoring at or below ConflictThreshold are hard separators:
	// they never share a cluster, even through a transitive chain
	ConflictThreshold float64 `yaml:"conflict_threshold" mapstructure:"conflict_threshold"`

	NameWeight float64 `yaml:"name_weight" mapstructure:"name_weight"`
	AttrWeight float64 `yaml:"attr_weight" mapstructure:"attr_weight"`
	XRefWeight float64 `yaml:"xref_weight" mapstructure:"xref_weight"`
}

// ConcurrencyConfig sizes the normalization worker pool
type ConcurrencyConfig struct {
	NormalizeWorkers int `yaml:"normalize_workers" mapstructure:"normalize_workers"`
}

// CacheConfig controls the assembler's target-lookup memoization
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// OutputConfig controls where the export and run report land
type OutputConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	ReportJSON string `yaml:"report_json" mapstructure:"report_json"`
	Verbose    bool   `yaml:"verbose" mapstructure:"verbose"`
}

// Neo4jConfig configures the optional bulk loader
type Neo4jConfig struct {
	URI            string `yaml:"uri" mapstructure:"uri"`
	User           string `yaml:"user" mapstructure:"user"`
	Password       string `yaml:"password" mapstructure:"password"`
	Database       string `yaml:"database" mapstructure:"database"`
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// LLMConfig configures the optional cluster annotator. The annotator runs
// after resolution and never affects the graph.
type LLMConfig struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"` // openai, ollama, "" (disabled)
	Model         string  `yaml:"model" mapstructure:"model"`
	APIKey        string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL       string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout       int     `yaml:"timeout" mapstructure:"timeout"` // Seconds
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Resolver: ResolverConfig{
			MergeThreshold:    0.80,
			ConflictThreshold: 0.25,
			NameWeight:        0.5,
			AttrWeight:        0.4,
			XRefWeight:        0.1,
		},
		Concurrency: ConcurrencyConfig{
			NormalizeWorkers: 8,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Output: OutputConfig{
			Dir:        "export",
			ReportJSON: "run_report.json",
		},
		Neo4j: Neo4jConfig{
			URI:            "bolt://localhost:7687",
			User:           "neo4j",
			BatchSize:      1000,
			TimeoutSeconds: 10,
		},
		LLM: LLMConfig{
			Provider:      "",
			Model:         "",
			Timeout:       30,
			MaxTokens:     1000,
			RatePerSecond: 1,
		},
	}
}
