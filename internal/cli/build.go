package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbarbier/studium/internal/pipeline"
	"github.com/mbarbier/studium/internal/schema"
)

var (
	schemaPath     string
	outputDir      string
	mergeThresh    float64
	conflictThresh float64
	buildWorkers   int
	noLookupCache  bool
	llmProvider    string
	llmModel       string
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build <factoids.jsonl>",
	Short: "Consolidate a factoid file into a knowledge graph export",
	Long: `Build runs the full consolidation pipeline on a JSONL factoid file:
- Validate and clean every record against the schema
- Cluster mentions that plausibly refer to the same individual
- Resolve relation claims against the clustered entities
- Export entities.csv and relations.csv plus a run report

Example:
  studium build registers.jsonl --schema schema.json
  studium build registers.jsonl --schema schema.json --out export/ --merge-threshold 0.85
  studium build registers.jsonl --schema schema.json --llm-provider openai`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&schemaPath, "schema", "schema.json", "entity schema file")
	buildCmd.Flags().StringVar(&outputDir, "out", "", "output directory (default from config)")

	// Resolver flags
	buildCmd.Flags().Float64Var(&mergeThresh, "merge-threshold", 0, "merge threshold override")
	buildCmd.Flags().Float64Var(&conflictThresh, "conflict-threshold", 0, "conflict threshold override")
	buildCmd.Flags().IntVar(&buildWorkers, "workers", 0, "normalization workers override")
	buildCmd.Flags().BoolVar(&noLookupCache, "no-cache", false, "disable target lookup memoization")

	// LLM flags
	buildCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "annotate weak clusters via provider (openai, ollama)")
	buildCmd.Flags().StringVar(&llmModel, "llm-model", "", "annotation model name")
}

func runBuild(cmd *cobra.Command, args []string) error {
	input := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if mergeThresh > 0 {
		cfg.Resolver.MergeThreshold = mergeThresh
	}
	if conflictThresh > 0 {
		cfg.Resolver.ConflictThreshold = conflictThresh
	}
	if buildWorkers > 0 {
		cfg.Concurrency.NormalizeWorkers = buildWorkers
	}
	if noLookupCache {
		cfg.Cache.Enabled = false
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}

	registry, err := schema.Load(schemaPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Input: %s\n", input)
		fmt.Fprintf(os.Stderr, "Schema: %s\n", schemaPath)
		fmt.Fprintf(os.Stderr, "Output: %s\n", cfg.Output.Dir)
		fmt.Fprintln(os.Stderr)
	}

	report, err := pipeline.New(registry, cfg, log).Run(context.Background(), input)
	if err != nil {
		return err
	}

	fmt.Print(pipeline.Summary(report))
	fmt.Printf("export written to %s\n", cfg.Output.Dir)
	return nil
}
