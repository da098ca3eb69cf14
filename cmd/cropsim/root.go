package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/scenario"
)

type rootOptions struct {
	logLevel string
	logJSON  bool
	log      *logrus.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{log: logrus.New()}
	root := &cobra.Command{
		Use:   "cropsim",
		Short: "Daily crop growth and soil water balance simulator",
		Long: `cropsim advances soil water, salinity, canopy cover, rooting depth and
biomass one day at a time over a cropping season. A run is described by a
positional parameter file naming the climate, crop, soil and management inputs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			lvl, err := logrus.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.log.SetLevel(lvl)
			opts.log.SetOutput(cmd.ErrOrStderr())
			if opts.logJSON {
				opts.log.SetFormatter(&logrus.JSONFormatter{})
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", config.Env("LOG_LEVEL", "warning"), "log level (debug, info, warning, error)")
	root.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "log in JSON")

	root.AddCommand(newRunCmd(opts), newValidateCmd(opts), newParamsCmd())
	return root
}

// readParameters parses and validates the parameter file at path.
func readParameters(path string) (config.SimulationConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return config.SimulationConfig{}, err
	}
	defer f.Close()
	return config.ReadParameterFile(f)
}

// loaderFor resolves relative file references against root, or against the
// directory of the parameter file when root is empty.
func loaderFor(paramPath, root string) scenario.Loader {
	if root == "" {
		root = filepath.Dir(paramPath)
	}
	return scenario.Loader{Root: root}
}
