package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/camertron/prismerge/internal/merge"
	"github.com/camertron/prismerge/internal/mergecfg"
	"github.com/camertron/prismerge/internal/progress"
	"github.com/camertron/prismerge/internal/schema"
	"github.com/camertron/prismerge/internal/sqlitedb"
)

var (
	schemaPath string
	outputPath string
	remove     bool
	assumeYes  bool
	minInserts int
	keepIDMaps bool
	quiet      bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "prismerge <database> [<database>...]",
	Short: "Merge SQLite databases that share a declarative schema",
	Long: `prismerge merges one or more SQLite databases into a single output
database. Every model gets its own identity-map table so foreign keys are
rewritten consistently across the merge, and rows that collide on a
model's unique constraint are deduplicated rather than duplicated.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMerge,
}

func init() {
	rootCmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "path to the schema file (required)")
	rootCmd.Flags().StringVarP(&outputPath, "output-path", "o", "", "output database path (default ./merged.db)")
	rootCmd.Flags().BoolVarP(&remove, "remove", "r", false, "delete the output path first if it already exists")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "don't prompt for confirmation before removing an existing output")
	rootCmd.Flags().IntVarP(&minInserts, "min-inserts", "m", 0, "batch flush threshold (default 1000)")
	rootCmd.Flags().BoolVarP(&keepIDMaps, "keep-id-maps", "k", false, "retain the identity-map tables in the output database")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	rootCmd.Flags().StringVar(&configPath, "config", "", "optional YAML file of CLI defaults")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg := mergecfg.Config{}
	if configPath != "" {
		loaded, err := mergecfg.Load(configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	defaults := cfg.Defaulted()

	if schemaPath == "" {
		schemaPath = defaults.SchemaPath
	}
	if schemaPath == "" {
		return fmt.Errorf("no schema file given; pass --schema or set schema_path in the --config file")
	}
	if outputPath == "" {
		outputPath = defaults.OutputPath
	}
	if minInserts == 0 {
		minInserts = defaults.MinInserts
	}
	if !keepIDMaps {
		keepIDMaps = defaults.KeepIDMaps
	}
	if !quiet {
		quiet = defaults.Quiet
	}

	s, err := schema.ParseFile(schemaPath)
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return err
	}

	if sqlitedb.Exists(outputPath) {
		if !remove {
			return fmt.Errorf("output path %s already exists; pass --remove to overwrite it", outputPath)
		}
		if !assumeYes && !confirmRemoval(outputPath) {
			return fmt.Errorf("aborted: %s was not removed", outputPath)
		}
		if err := sqlitedb.RemoveExisting(outputPath); err != nil {
			return err
		}
	}

	sources := make([]*sql.DB, 0, len(args))
	for _, path := range args {
		src, err := sqlitedb.OpenSource(path)
		if err != nil {
			sqlitedb.CloseAll(sources...)
			return err
		}
		sources = append(sources, src)
	}
	defer sqlitedb.CloseAll(sources...)

	dest, err := sqlitedb.OpenDestination(outputPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	var reporter progress.Reporter
	if quiet {
		reporter = progress.Null{}
	} else {
		reporter = progress.New(os.Stdout)
	}

	orch := &merge.Orchestrator{
		Dest:    dest,
		Sources: sources,
		Schema:  s,
		Options: merge.Options{
			Threshold:  minInserts,
			KeepIDMaps: keepIDMaps,
		},
		Reporter: reporter,
	}

	ctx := context.Background()

	started := time.Now()
	summaries, warnings, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w.String())
	}

	if !quiet {
		for _, s := range summaries {
			fmt.Println(s.String())
		}
		fmt.Printf("Merged %d database(s) into %s in %s\n", len(sources), outputPath, progress.FormatDuration(elapsed))
	}

	return nil
}

func confirmRemoval(path string) bool {
	fmt.Fprintf(os.Stderr, "%s already exists. Remove it and continue? [y/N] ", path)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
