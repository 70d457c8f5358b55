package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbarbier/studium/internal/load"
)

var (
	loadDir     string
	loadWipe    bool
	loadTimeout time.Duration
)

// loadCmd represents the load command
var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Bulk-load an export into Neo4j",
	Long: `Load reads a previous export (entities.csv, relations.csv) and merges
it into a Neo4j database. Nodes are merged on id, so reloading the same
export is idempotent. With --wipe the database is cleared first.

Connection settings come from the config file or STUDIUM_NEO4J_* env
vars.

Example:
  studium load --dir export/
  studium load --dir export/ --wipe`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringVar(&loadDir, "dir", "", "export directory (default from config)")
	loadCmd.Flags().BoolVar(&loadWipe, "wipe", false, "clear the database before loading")
	loadCmd.Flags().DurationVar(&loadTimeout, "timeout", 5*time.Minute, "overall load timeout")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := loadDir
	if dir == "" {
		dir = cfg.Output.Dir
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	client, err := load.NewClient(cfg.Neo4j, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close(ctx) }()

	if err := load.NewLoader(client, cfg.Neo4j.BatchSize, log).Load(ctx, dir, loadWipe); err != nil {
		return err
	}

	fmt.Printf("loaded %s into %s\n", dir, cfg.Neo4j.URI)
	return nil
}
