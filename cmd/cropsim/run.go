package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/cropsim/internal/engine"
	"github.com/LeonardoBeccarini/cropsim/internal/forcing"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
)

type runOptions struct {
	root     string
	records  string
	field    string
	lat, lon float64

	fillETo  bool
	rainZero bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run PARAMETER_FILE",
		Short: "Run a simulation and print the season summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readParameters(args[0])
			if err != nil {
				return err
			}
			in, err := loaderFor(args[0], opts.root).Load(cfg)
			if err != nil {
				return err
			}
			in.Field = entities.Field{ID: opts.field, Latitude: opts.lat, Longitude: opts.lon}
			in.Logger = root.log.WithField("field", opts.field)
			if opts.fillETo || opts.rainZero {
				gp := forcing.DefaultGapPolicy()
				gp.EToFromTemperature = opts.fillETo
				gp.RainMissingIsZero = opts.rainZero
				gp.Latitude = opts.lat
				in.GapPolicy = &gp
			}

			res, runErr := engine.Run(cmd.Context(), cfg, in)
			if opts.records != "" && len(res.Records) > 0 {
				if err := writeRecordsTo(opts.records, cmd.OutOrStdout(), res.Records); err != nil {
					return err
				}
			}
			if runErr != nil {
				return fmt.Errorf("simulation stopped after %d days: %w", len(res.Records), runErr)
			}
			printSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.root, "root", "", "directory of the input files (default: directory of the parameter file)")
	f.StringVar(&opts.records, "records", "", "write the daily records as CSV to this file, - for stdout")
	f.StringVar(&opts.field, "field", "field", "field identifier used in logs")
	f.Float64Var(&opts.lat, "lat", 0, "field latitude in degrees, used by Hargreaves ETo")
	f.Float64Var(&opts.lon, "lon", 0, "field longitude in degrees")
	f.BoolVar(&opts.fillETo, "fill-eto", false, "estimate missing ETo from temperature")
	f.BoolVar(&opts.rainZero, "rain-missing-zero", false, "treat missing rain as zero")
	return cmd
}

func printSummary(w io.Writer, res engine.Result) {
	s := res.Season
	fmt.Fprintf(w, "crop            %s\n", s.Crop)
	fmt.Fprintf(w, "days            %d\n", len(res.Records))
	fmt.Fprintf(w, "harvested       %t\n", s.Harvested)
	if s.Dead {
		fmt.Fprintf(w, "crop died       true\n")
	}
	fmt.Fprintf(w, "max canopy      %.1f %%\n", 100*s.CCMax)
	fmt.Fprintf(w, "biomass         %.3f t/ha\n", s.Biomass/100)
	fmt.Fprintf(w, "harvest index   %.3f\n", s.HI)
	fmt.Fprintf(w, "yield           %.3f t/ha\n", s.Yield)
	fmt.Fprintf(w, "irrigation      %.1f mm\n", s.Irrigation)
	t := res.Totals
	fmt.Fprintf(w, "rain            %.1f mm\n", t.Rain)
	fmt.Fprintf(w, "runoff          %.1f mm\n", t.Runoff)
	fmt.Fprintf(w, "drainage        %.1f mm\n", t.Drainage)
	fmt.Fprintf(w, "capillary rise  %.1f mm\n", t.CapillaryRise)
	fmt.Fprintf(w, "evaporation     %.1f mm\n", t.Evaporation)
	fmt.Fprintf(w, "transpiration   %.1f mm\n", t.Transpiration)
}

var recordHeader = []string{
	"day", "date", "stage", "gdd", "gdd_cum", "cc", "zr_m", "biomass_t_ha", "hi", "yield_t_ha",
	"ks_exp", "ks_sto", "ks_sen", "ks_temp", "dr_mm", "taw_mm",
	"rain_mm", "irrigation_mm", "runoff_mm", "infiltration_mm", "drainage_mm", "cap_rise_mm",
	"evaporation_mm", "transpiration_mm", "ponding_mm",
}

func writeRecordsTo(path string, stdout io.Writer, recs []engine.DailyRecord) error {
	if path == "-" {
		return writeRecords(stdout, recs)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeRecords(f, recs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeRecords(w io.Writer, recs []engine.DailyRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return err
	}
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	for _, r := range recs {
		row := []string{
			strconv.Itoa(int(r.Day)), r.Day.String(), string(r.Stage),
			num(r.GDD), num(r.GDDCum), num(r.CC), num(r.Zr), num(r.Biomass / 100), num(r.HI), num(r.Yield),
			num(r.Stress.KsExp), num(r.Stress.KsSto), num(r.Stress.KsSen), num(r.Stress.KsTemp),
			num(r.Stress.Dr), num(r.Stress.TAW),
			num(r.Fluxes.Rain), num(r.Fluxes.Irrigation), num(r.Fluxes.Runoff), num(r.Fluxes.Infiltration),
			num(r.Fluxes.Drainage), num(r.Fluxes.CapillaryRise),
			num(r.Fluxes.Evaporation), num(r.Fluxes.Transpiration), num(r.Ponding),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
