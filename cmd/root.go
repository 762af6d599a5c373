package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/convocatoriaspro/convocatorias/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "convocatorias",
	Short: "Funding-call search and validation service",
	Long: `convocatorias finds open Chilean funding calls (grants, scholarships,
seed capital, regional GORE funds) by asking LLM providers, normalizes the
answers into result records and checks each record against its source page.

  serve     HTTP API for searches, run history, reviews and validation
  search    run one search from the terminal and store the run
  parse     normalize a saved LLM answer into result records
  validate  score records against the pages at their source URLs
  migrate   create or check the store schema
  runs      list, show and summarize stored search runs

Configuration comes from ./config.yaml and CONVOCATORIAS_* environment
variables. Runs are stored in SQLite, Postgres or a hosted REST database
depending on store.driver.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			c.Log.Level = lvl
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
