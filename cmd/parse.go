package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/violation-lookup/internal/browser"
	"github.com/sells-group/violation-lookup/internal/extract"
)

var parseOutput string

var parseCmd = &cobra.Command{
	Use:   "parse FILE.html",
	Short: "Parse violation cards from a saved results page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validFormat(parseOutput); err != nil {
			return err
		}
		if err := cfg.Validate("parse"); err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "parse: open page")
		}
		defer f.Close() //nolint:errcheck

		root, err := browser.ParseHTML(f)
		if err != nil {
			return err
		}
		records, err := extract.New(extractSelectors(cfg)).Cards(cmd.Context(), root)
		if err != nil {
			return err
		}
		return writeRecords(cmd.OutOrStdout(), parseOutput, records)
	},
}

func init() {
	parseCmd.Flags().StringVarP(&parseOutput, "output", "o", formatJSON, "output format: table, json or yaml")
	rootCmd.AddCommand(parseCmd)
}
