package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pannadata/matchingest/internal/gap"
)

var statusPartition string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print current gaps and remaining work per league",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPartition, "partition", "", "show a single league")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cfgFile)
	if err != nil {
		return err
	}
	defer a.Close()

	partitions := a.bands.Partitions()
	if statusPartition != "" {
		if _, err := a.bands.Get(statusPartition); err != nil {
			return err
		}
		partitions = []string{statusPartition}
	}

	analyzer := gap.NewAnalyzer(a.bands, a.man)
	cmd.Printf("manifest: %s (%d entries)\n\n", a.cfg.ManifestPath, a.man.Len())

	var totalRemaining int64
	for _, partition := range partitions {
		b, err := a.bands.Get(partition)
		if err != nil {
			return err
		}
		gaps, err := analyzer.GapsFor(partition)
		if err != nil {
			return err
		}

		var remaining int64
		for _, g := range gaps {
			remaining += g.Len()
		}
		totalRemaining += remaining

		if remaining == 0 {
			cmd.Printf("%-12s band [%d,%d]  complete\n", partition, b.MinID, b.MaxID)
			continue
		}

		preview := make([]string, 0, len(gaps))
		for i, g := range gaps {
			if i == 5 {
				preview = append(preview, fmt.Sprintf("... %d more", len(gaps)-i))
				break
			}
			preview = append(preview, g.String())
		}
		cmd.Printf("%-12s band [%d,%d]  %d ids in %d gaps: %s\n",
			partition, b.MinID, b.MaxID, remaining, len(gaps), strings.Join(preview, " "))
	}

	cmd.Printf("\ntotal remaining: %d ids\n", totalRemaining)
	return nil
}
