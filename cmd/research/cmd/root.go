// Package cmd wires the operator-facing CLI: a thin cobra front-end over
// internal/runner, using a package-level rootCmd with one var+init per
// subcommand and Execute called once from main.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"research-agent/internal/config"
	"research-agent/internal/logger"
	"research-agent/internal/runner"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "research",
	Short: "research is the Universal Topic Research Agent's operator CLI",
	Long: `research drives the topic discovery and content research pipeline:
collecting documents from configured sources, clustering and scoring
candidate topics, researching and synthesizing an article per topic, and
syncing the results to Notion.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "market config file (default ./market.yaml)")
	logger.Init()
}

// loadConfigAndRunner loads the market config from cfgFile and wires a
// Runner over it. Every subcommand goes through this so a ConfigError
// aborts consistently before any pipeline stage runs.
func loadConfigAndRunner() (*runner.Runner, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load market config: %w", err)
	}
	r, err := runner.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}
	return r, nil
}
