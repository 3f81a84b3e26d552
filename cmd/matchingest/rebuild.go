package main

import (
	"github.com/spf13/cobra"

	"github.com/pannadata/matchingest/internal/manifest"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-manifest",
	Short: "Reconstruct the manifest from raw storage",
	Long: `Scans every raw record in storage and rewrites the manifest from
what is actually on disk. This is the recovery path for a corrupt or
lost manifest; ids previously marked unavailable are forgotten and will
be re-probed on the next run.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := manifest.Rebuild(cmd.Context(), a.man, a.store, a.cfg.Categories)
	if err != nil {
		return err
	}
	cmd.Printf("manifest rebuilt from storage: %d entries\n", n)
	return nil
}
