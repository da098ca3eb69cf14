package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/cropsim/internal/config"
	"github.com/LeonardoBeccarini/cropsim/internal/model/entities"
	"github.com/LeonardoBeccarini/cropsim/internal/simerr"
)

const days = 20

// writeScenario writes a parameter file plus its climate and crop inputs, returning
// the parameter file path.
func writeScenario(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.SimulationEnd = cfg.SimulationStart + days - 1
	cfg.CropEnd = cfg.SimulationEnd
	cfg.Files.Climate = config.Ref("climate.json", "")
	cfg.Files.Crop = config.Ref("maize.json", "")

	var params bytes.Buffer
	require.NoError(t, config.WriteParameterFile(&params, cfg))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "season.par"), params.Bytes(), 0o644))

	var recs []string
	for d := cfg.SimulationStart; d <= cfg.SimulationEnd; d++ {
		recs = append(recs, fmt.Sprintf(`{"day": %d, "eto": 4, "rain": 2}`, d))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "climate.json"), []byte(`{"days": [`+strings.Join(recs, ",")+`]}`), 0o644))

	crop, err := json.Marshal(entities.MaizeGDD())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maize.json"), crop, 0o644))
	return filepath.Join(dir, "season.par")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunPrintsSummaryAndRecords(t *testing.T) {
	par := writeScenario(t)
	csvPath := filepath.Join(t.TempDir(), "records.csv")

	out, err := execute(t, "run", par, "--records", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "days            20")
	assert.Contains(t, out, "yield")

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, days+1)
	assert.Equal(t, recordHeader, rows[0])
	assert.Equal(t, fmt.Sprint(int(config.Default().SimulationStart)), rows[1][0])
}

func TestRunRecordsToStdout(t *testing.T) {
	out, err := execute(t, "run", writeScenario(t), "--records", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, strings.Join(recordHeader, ",")))
}

func TestRunMissingInput(t *testing.T) {
	par := writeScenario(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(par), "maize.json")))

	_, err := execute(t, "run", par)
	var mi *simerr.MissingInputError
	require.ErrorAs(t, err, &mi)
}

func TestRunCancelled(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", writeScenario(t)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := cmd.ExecuteContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "after 0 days")
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", writeScenario(t))
	require.NoError(t, err)
	assert.Contains(t, out, "(20 days)")
	assert.Contains(t, out, "groundwater (None)")
	assert.True(t, strings.HasSuffix(out, "ok\n"))

	bad := filepath.Join(t.TempDir(), "bad.par")
	require.NoError(t, os.WriteFile(bad, []byte("7.1 : version\n"), 0o644))
	_, err = execute(t, "validate", bad)
	var ce *simerr.ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestParams(t *testing.T) {
	out, err := execute(t, "params")
	require.NoError(t, err)
	cfg, err := config.ReadParameterFile(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	out, err = execute(t, "params", "--from", writeScenario(t), "--format", "yaml")
	require.NoError(t, err)
	var back config.SimulationConfig
	require.NoError(t, yaml.Unmarshal([]byte(out), &back))
	assert.Equal(t, "climate.json", back.Files.Climate.Name)
	assert.Equal(t, config.Default().SimulationStart+days-1, back.SimulationEnd)

	_, err = execute(t, "params", "--format", "xml")
	require.Error(t, err)
}

func TestBadLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "params")
	require.Error(t, err)
}
