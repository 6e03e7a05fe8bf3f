package report

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"cartpole-dt-sweep/internal/config"
	"cartpole-dt-sweep/internal/sweep"
)

func sampleResult() sweep.Result {
	return sweep.Result{
		Multipliers: []float64{1e-6, 1e-3, 1},
		MeanReturns: []float64{500, 420.5, 31.25},
		StdReturns:  []float64{0, 12, 4},
	}
}

func TestNextExperimentDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "results")

	tests := []struct {
		name   string
		seed   []string
		wantOK string
	}{
		{"first", nil, "exp001"},
		{"after two", []string{"exp001", "exp002"}, "exp003"},
		{"gap skips taken name", []string{"exp002"}, "exp003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(base, tt.name)
			for _, s := range tt.seed {
				if err := os.MkdirAll(filepath.Join(dir, s), 0o755); err != nil {
					t.Fatal(err)
				}
			}
			got, err := NextExperimentDir(dir)
			if err != nil {
				t.Fatalf("NextExperimentDir: %v", err)
			}
			if filepath.Base(got) != tt.wantOK {
				t.Fatalf("got %s, want %s", filepath.Base(got), tt.wantOK)
			}
			if info, err := os.Stat(got); err != nil || !info.IsDir() {
				t.Fatalf("directory not created: %v", err)
			}
		})
	}
}

func TestNextExperimentDirIncrements(t *testing.T) {
	base := t.TempDir()
	var names []string
	for i := 0; i < 3; i++ {
		dir, err := NextExperimentDir(base)
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, filepath.Base(dir))
	}
	if diff := cmp.Diff([]string{"exp001", "exp002", "exp003"}, names); diff != "" {
		t.Fatalf("numbering mismatch:\n%s", diff)
	}
}

func TestSaveWritesArtifacts(t *testing.T) {
	base := t.TempDir()
	params := append(config.Default().Parameters(), config.Parameter{Name: "run_id", Value: "abc"})
	dir, err := Save(base, params, sampleResult())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(dir) != "exp001" {
		t.Errorf("dir = %s, want exp001", dir)
	}

	img, err := os.Open(filepath.Join(dir, PlotFile))
	if err != nil {
		t.Fatalf("open plot: %v", err)
	}
	defer img.Close()
	if _, err := png.Decode(img); err != nil {
		t.Errorf("plot is not a PNG: %v", err)
	}

	f, err := excelize.OpenFile(filepath.Join(dir, WorkbookFile))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if diff := cmp.Diff([]string{ParametersSheet, ResultsSheet}, f.GetSheetList()); diff != "" {
		t.Errorf("sheet list mismatch:\n%s", diff)
	}

	paramRows, err := f.GetRows(ParametersSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(paramRows) != len(params)+1 {
		t.Fatalf("parameter rows = %d, want %d", len(paramRows), len(params)+1)
	}
	if diff := cmp.Diff([]string{"Parameter", "Value"}, paramRows[0]); diff != "" {
		t.Errorf("parameter header mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"n_timesteps", "500000"}, paramRows[1]); diff != "" {
		t.Errorf("first parameter mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"policy_net_arch", "[64 64 64]"}, paramRows[2]); diff != "" {
		t.Errorf("net arch parameter mismatch:\n%s", diff)
	}

	resultRows, err := f.GetRows(ResultsSheet, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatal(err)
	}
	res := sampleResult()
	if len(resultRows) != len(res.Multipliers)+1 {
		t.Fatalf("result rows = %d, want %d", len(resultRows), len(res.Multipliers)+1)
	}
	if diff := cmp.Diff([]string{"delta", "mean returns"}, resultRows[0]); diff != "" {
		t.Errorf("result header mismatch:\n%s", diff)
	}
	for i, row := range resultRows[1:] {
		dt, err := strconv.ParseFloat(row[0], 64)
		if err != nil || dt != res.Multipliers[i] {
			t.Errorf("row %d delta = %q, want %v", i, row[0], res.Multipliers[i])
		}
		mean, err := strconv.ParseFloat(row[1], 64)
		if err != nil || mean != res.MeanReturns[i] {
			t.Errorf("row %d mean = %q, want %v", i, row[1], res.MeanReturns[i])
		}
	}
}

func TestSaveRejectsMismatchedResult(t *testing.T) {
	base := t.TempDir()
	bad := sweep.Result{Multipliers: []float64{1, 2}, MeanReturns: []float64{3}}
	if _, err := Save(base, nil, bad); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}
	entries, _ := os.ReadDir(base)
	if len(entries) != 0 {
		t.Fatalf("no directory should be created for a bad result, found %d entries", len(entries))
	}
	if _, err := Save(base, nil, sweep.Result{}); err == nil {
		t.Fatal("expected error for empty result")
	}
}

func TestResultsTable(t *testing.T) {
	out := ResultsTable(sampleResult())
	for _, want := range []string{"dt_multip", "mean return", "1.000e-06", "420.50", "31.25"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
