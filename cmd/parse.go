package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Extract one funding-call record from free text",
	Long:  "Reads text from a file, or stdin when no file is given, and prints the extracted record as JSON.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		text, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "parse")
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Orchestrator.ParseText(ctx, string(text))
		if err != nil {
			return eris.Wrap(err, "parse")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// readInput returns the contents of args[0], or of stdin when args is empty
// or "-".
func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, eris.Wrap(err, "read stdin")
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", args[0])
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(parseCmd)
}
