package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"research-agent/internal/logger"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Sync every stored topic to the configured Notion database",
	Long: `Export upserts every stored topic to Notion (NOTION_API_KEY / NOTION_DATABASE_ID).
With no Notion credentials configured every topic is skipped rather than
erroring.`,
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

		if err := r.RunNotionSync(context.Background()); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Println("export complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
