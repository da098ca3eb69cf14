package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
)

func newParamsCmd() *cobra.Command {
	var from, out, format string
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the reference parameter file, or normalise an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if from != "" {
				var err error
				if cfg, err = readParameters(from); err != nil {
					return err
				}
			}
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return writeParams(w, cfg, format)
		},
	}
	f := cmd.Flags()
	f.StringVar(&from, "from", "", "parameter file to read instead of the reference values")
	f.StringVarP(&out, "out", "o", "", "output file (default stdout)")
	f.StringVar(&format, "format", "positional", "output format: positional or yaml")
	return cmd
}

func writeParams(w io.Writer, cfg config.SimulationConfig, format string) error {
	switch format {
	case "positional":
		return config.WriteParameterFile(w, cfg)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
