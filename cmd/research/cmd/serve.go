package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"research-agent/internal/logger"
	"research-agent/internal/runner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run continuously on the configured collection/sync/retry schedule",
	Long: `Serve starts the scheduler and blocks: the daily collection run and the
weekly Notion sync fire on their configured cron specs
(scheduling.collection_time, scheduling.sync_day), and the dead-letter
retry sweep runs every five minutes, until interrupted.`,
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

		sched, err := runner.NewScheduler(r)
		if err != nil {
			return err
		}
		sched.Start()
		logger.Info("scheduler started, waiting for interrupt")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Info("shutting down scheduler")
		sched.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
