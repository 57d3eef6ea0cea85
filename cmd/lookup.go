package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/violation-lookup/internal/model"
)

var (
	lookupVehicleType string
	lookupOutput      string
)

var lookupCmd = &cobra.Command{
	Use:   "lookup PLATE[:TYPE]...",
	Short: "Look up violations for one or more plates",
	Long:  "Looks up each plate on the portal in order. TYPE is motorbike, car or electricbike and overrides --type for that plate.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validFormat(lookupOutput); err != nil {
			return err
		}
		if err := cfg.Validate("lookup"); err != nil {
			return err
		}
		if len(args) > cfg.Batch.MaxTargets {
			return eris.Errorf("at most %d plates per lookup (got %d)", cfg.Batch.MaxTargets, len(args))
		}

		targets, err := parseTargets(args, lookupVehicleType)
		if err != nil {
			return err
		}

		env, err := initLookup(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		outcomes := env.Service.LookupBatch(cmd.Context(), targets)
		return writeOutcomes(cmd.OutOrStdout(), lookupOutput, outcomes)
	},
}

// parseTargets turns PLATE[:TYPE] arguments into validated targets.
func parseTargets(args []string, defaultType string) ([]model.Target, error) {
	def, err := model.ParseVehicleClass(defaultType)
	if err != nil {
		return nil, eris.Wrap(err, "--type")
	}

	targets := make([]model.Target, 0, len(args))
	for _, arg := range args {
		plate, typ, hasType := strings.Cut(arg, ":")
		t := model.Target{PlateNumber: strings.TrimSpace(plate), VehicleClass: def}
		if hasType {
			class, err := model.ParseVehicleClass(typ)
			if err != nil {
				return nil, eris.Wrapf(err, "argument %q", arg)
			}
			t.VehicleClass = class
		}
		if err := t.Validate(); err != nil {
			return nil, eris.Wrapf(err, "argument %q", arg)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func init() {
	lookupCmd.Flags().StringVar(&lookupVehicleType, "type", string(model.VehicleClassCar), "default vehicle type: motorbike, car or electricbike")
	lookupCmd.Flags().StringVarP(&lookupOutput, "output", "o", formatTable, "output format: table, json or yaml")
	rootCmd.AddCommand(lookupCmd)
}
