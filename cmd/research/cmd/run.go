package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"research-agent/internal/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full collect -> cluster -> research cycle",
	Long: `Run executes a single pass of the pipeline: collect documents from every
configured source, cluster and score candidate topics, and research and
synthesize an article for each surviving topic.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := loadConfigAndRunner()
		if err != nil {
			return err
		}
		defer func() {
			if err := r.Close(); err != nil {
				logger.Warn("failed to close runner", "error", err.Error())
			}
		}()

		result, err := r.Run(context.Background())
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		fmt.Printf("collected %d documents (%d duplicates dropped)\n", result.DocumentsCollected, result.DuplicatesDropped)
		fmt.Printf("discovered %d topics: %d researched, %d cache-hit, %d research_failed, %d synthesis_failed\n",
			result.TopicsDiscovered, result.ResearchedCount, result.OKCount, result.ResearchFailedCount, result.SynthesisFailedCount)
		fmt.Printf("cost: $%.4f, duration: %s\n", result.CostUSD, result.Duration)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
