// Package report persists sweep results: an auto-numbered experiment
// directory holding a plot and a two-sheet workbook.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cartpole-dt-sweep/internal/config"
	"cartpole-dt-sweep/internal/logging"
	"cartpole-dt-sweep/internal/sweep"
)

const (
	PlotFile     = "plot.png"
	WorkbookFile = "experiment_data.xlsx"

	dirPrefix = "exp"
)

var ErrLengthMismatch = errors.New("result has a different number of multipliers and mean returns")

// NextExperimentDir creates and returns the next expNNN directory under
// base. The number is one more than the count of existing exp* entries;
// if that name is taken the next free number is used.
func NextExperimentDir(base string) (string, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("list results dir: %w", err)
	}
	var existing int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), dirPrefix) {
			existing++
		}
	}
	for n := existing + 1; ; n++ {
		dir := filepath.Join(base, fmt.Sprintf("%s%03d", dirPrefix, n))
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create experiment dir: %w", err)
		}
	}
}

func validate(res sweep.Result) error {
	if len(res.Multipliers) != len(res.MeanReturns) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(res.Multipliers), len(res.MeanReturns))
	}
	if len(res.Multipliers) == 0 {
		return errors.New("result is empty")
	}
	return nil
}

// Save writes the plot and workbook for res into a new experiment
// directory under base and returns that directory.
func Save(base string, params []config.Parameter, res sweep.Result) (string, error) {
	if err := validate(res); err != nil {
		return "", err
	}
	dir, err := NextExperimentDir(base)
	if err != nil {
		return "", err
	}
	if err := WritePlot(filepath.Join(dir, PlotFile), res); err != nil {
		return "", err
	}
	if err := WriteWorkbook(filepath.Join(dir, WorkbookFile), params, res); err != nil {
		return "", err
	}
	logging.New("report").Info("experiment saved", "dir", dir)
	return dir, nil
}
