package main

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/convocatoriaspro/convocatorias/internal/model"
	"github.com/convocatoriaspro/convocatorias/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a search and store the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		strategyFlag, _ := cmd.Flags().GetString("strategy")
		strategy, ok := model.ParseStrategy(strategyFlag)
		if !ok {
			return eris.Errorf("unknown strategy %q (want single or smart)", strategyFlag)
		}
		user, _ := cmd.Flags().GetString("user")
		q := model.SearchQuery{Text: strings.Join(args, " "), Filters: searchFilters(cmd)}

		env, err := initEnv(ctx, cfg, "search")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.Search(ctx, user, q, strategy)
		if res != nil {
			if werr := writeResult(os.Stdout, res); werr != nil {
				return werr
			}
		}
		if err != nil {
			return eris.Wrap(err, "search")
		}
		return nil
	},
}

func searchFilters(cmd *cobra.Command) model.Filters {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return strings.TrimSpace(v)
	}
	return model.Filters{
		Sector:       get("sector"),
		Location:     get("location"),
		MinAmount:    get("min-amount"),
		MaxAmount:    get("max-amount"),
		DeadlineFrom: get("deadline-from"),
		DeadlineTo:   get("deadline-to"),
		FundType:     get("fund-type"),
	}
}

func writeResult(w io.Writer, res *search.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func init() {
	searchCmd.Flags().String("strategy", string(model.StrategySingle), "search strategy (single, smart)")
	searchCmd.Flags().String("user", "", "user id recorded on the run")
	searchCmd.Flags().String("sector", "", "filter by sector")
	searchCmd.Flags().String("location", "", "filter by region or location")
	searchCmd.Flags().String("min-amount", "", "minimum amount")
	searchCmd.Flags().String("max-amount", "", "maximum amount")
	searchCmd.Flags().String("deadline-from", "", "earliest deadline (YYYY-MM-DD)")
	searchCmd.Flags().String("deadline-to", "", "latest deadline (YYYY-MM-DD)")
	searchCmd.Flags().String("fund-type", "", "filter by fund type")
	rootCmd.AddCommand(searchCmd)
}
