package main

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/convocatoriaspro/convocatorias/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Cross-check records against their source pages",
	Long:  "Reads a JSON array of records (or an object with a records field) from a file or stdin and prints one validation outcome per record.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		records, err := decodeRecords(data)
		if err != nil {
			return err
		}

		if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
			cfg.Validation.MaxConcurrent = n
		}
		if d, _ := cmd.Flags().GetDuration("timeout"); d > 0 {
			cfg.Validation.TimeoutSecs = int(d.Round(time.Second) / time.Second)
		}

		env, err := initEnv(ctx, cfg, "validate")
		if err != nil {
			return err
		}
		defer env.Close()

		outcomes := env.Validator.ValidateBatch(ctx, records, cfg.Validation.MaxConcurrent,
			time.Duration(cfg.Validation.TimeoutSecs)*time.Second)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"outcomes": outcomes,
			"summary":  model.Summarize(outcomes),
		})
	},
}

// decodeRecords accepts a bare array of records or {"records": [...]}.
func decodeRecords(data []byte) ([]model.ResultRecord, error) {
	var records []model.ResultRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var wrapped struct {
		Records []model.ResultRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, eris.Wrap(err, "decode records")
	}
	return wrapped.Records, nil
}

func init() {
	validateCmd.Flags().Int("concurrency", 0, "parallel fetches per batch, 1-10 (default from config)")
	validateCmd.Flags().Duration("timeout", 0, "per-page fetch timeout (default from config)")
	rootCmd.AddCommand(validateCmd)
}
