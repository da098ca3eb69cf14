package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "validate PARAMETER_FILE",
		Short: "Check a parameter file and load the inputs it names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readParameters(args[0])
			if err != nil {
				return err
			}
			if _, err := loaderFor(args[0], dir).Load(cfg); err != nil {
				return err
			}
			root.log.WithField("file", args[0]).Debug("parameter file valid")

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "simulation  %s .. %s (%d days)\n", cfg.SimulationStart, cfg.SimulationEnd, cfg.Days())
			fmt.Fprintf(w, "cropping    %s .. %s\n", cfg.CropStart, cfg.CropEnd)
			for _, ref := range []struct {
				name string
				path string
			}{
				{"climate", cfg.Files.Climate.String()},
				{"crop", cfg.Files.Crop.String()},
				{"irrigation", cfg.Files.Irrigation.String()},
				{"management", cfg.Files.Management.String()},
				{"soil", cfg.Files.Soil.String()},
				{"groundwater", cfg.Files.Groundwater.String()},
				{"initial", cfg.Files.Initial.String()},
				{"off-season", cfg.Files.OffSeason.String()},
			} {
				fmt.Fprintf(w, "%-11s %s\n", ref.name, ref.path)
			}
			feat := cfg.Files.Resolve()
			fmt.Fprintf(w, "capillary rise %t, seeded initial state %t, off-season %t, irrigation %t\n",
				feat.CapillaryRise, feat.InitialSeeded, feat.OffSeason, feat.Irrigation)
			fmt.Fprintln(w, "ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "root", "", "directory of the input files (default: directory of the parameter file)")
	return cmd
}
