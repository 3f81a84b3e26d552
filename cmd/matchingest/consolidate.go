package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pannadata/matchingest/internal/consolidate"
	"github.com/pannadata/matchingest/internal/logging"
)

var (
	consolidateCategory  string
	consolidatePartition string
	consolidateSynced    bool
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Fold raw records into per-category parquet artifacts",
	Long: `Rebuilds the consolidated artifact for a category from raw storage.
A full rebuild refuses to proceed when the existing artifact contains
partitions that are missing locally, because rebuilding would silently
drop their rows; pass --synced after syncing all partitions' raw
records, or --partition to merge just one partition into the existing
artifact.`,
	RunE: runConsolidate,
}

func init() {
	consolidateCmd.Flags().StringVar(&consolidateCategory, "category", "", "category to consolidate (default: all configured)")
	consolidateCmd.Flags().StringVar(&consolidatePartition, "partition", "", "merge a single league instead of a full rebuild")
	consolidateCmd.Flags().BoolVar(&consolidateSynced, "synced", false, "assert all partitions' raw records are present locally")
	rootCmd.AddCommand(consolidateCmd)
}

func runConsolidate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	c := consolidate.New(
		a.store,
		a.cfg.Consolidate,
		fmt.Sprintf("matchingest/%s", Version),
		consolidate.Deps{
			Metrics: a.met,
			Catalog: a.cat,
			Emitter: a.emitter,
			Log:     logging.Component("consolidate"),
		},
	)

	categories := a.cfg.Categories
	if consolidateCategory != "" {
		categories = []string{consolidateCategory}
	}

	ctx := cmd.Context()
	for _, category := range categories {
		var (
			res *consolidate.Result
			err error
		)
		if consolidatePartition != "" {
			res, err = c.Merge(ctx, category, consolidatePartition)
		} else {
			res, err = c.Rebuild(ctx, category, consolidateSynced)
		}
		if err != nil {
			return fmt.Errorf("consolidate %s: %w", category, err)
		}
		cmd.Printf("%-14s %d rows, %d partitions -> %s\n",
			category, res.Rows, len(res.Partitions), res.Path)
	}
	return nil
}
