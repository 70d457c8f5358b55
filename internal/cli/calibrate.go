package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbarbier/studium/internal/calibrate"
	"github.com/mbarbier/studium/internal/schema"
)

var (
	calSchemaPath string
	calOutJSON    string
)

// calibrateCmd represents the calibrate command
var calibrateCmd = &cobra.Command{
	Use:   "calibrate <pairs.jsonl>",
	Short: "Sweep the merge threshold over a labeled pair corpus",
	Long: `Calibrate scores every labeled record pair once and evaluates a grid of
merge thresholds against the labels, reporting precision, recall and F1
per grid point.

Each input line is {"a": <factoid>, "b": <factoid>, "match": true|false}.

Example:
  studium calibrate pairs.jsonl --schema schema.json
  studium calibrate pairs.jsonl --schema schema.json --json sweep.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)

	calibrateCmd.Flags().StringVar(&calSchemaPath, "schema", "schema.json", "entity schema file")
	calibrateCmd.Flags().StringVar(&calOutJSON, "json", "", "write the full sweep as JSON")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, err := schema.Load(calSchemaPath)
	if err != nil {
		return err
	}

	pairs, err := calibrate.ReadPairs(args[0])
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("no labeled pairs in %s", args[0])
	}

	report, err := calibrate.Sweep(registry, cfg.Resolver, pairs, nil)
	if err != nil {
		return err
	}

	fmt.Printf("%d pairs (%d skipped)\n\n", report.Pairs, report.Skipped)
	fmt.Printf("%10s %10s %10s %10s\n", "threshold", "precision", "recall", "f1")
	for _, p := range report.Points {
		marker := " "
		if p.Threshold == report.Best.Threshold {
			marker = "*"
		}
		fmt.Printf("%9.2f%s %10.3f %10.3f %10.3f\n", p.Threshold, marker, p.Precision, p.Recall, p.F1)
	}
	fmt.Printf("\nbest threshold %.2f (f1 %.3f)\n", report.Best.Threshold, report.Best.F1)

	if calOutJSON != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal sweep: %w", err)
		}
		if err := os.WriteFile(calOutJSON, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write sweep: %w", err)
		}
	}
	return nil
}
