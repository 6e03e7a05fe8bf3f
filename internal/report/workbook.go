package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"cartpole-dt-sweep/internal/config"
	"cartpole-dt-sweep/internal/sweep"
)

const (
	ParametersSheet = "Parameters"
	ResultsSheet    = "Results"
)

// WriteWorkbook stores params and res as two sheets of an xlsx file.
func WriteWorkbook(path string, params []config.Parameter, res sweep.Result) error {
	if err := validate(res); err != nil {
		return err
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ParametersSheet); err != nil {
		return fmt.Errorf("name parameters sheet: %w", err)
	}
	if err := setRow(f, ParametersSheet, 1, "Parameter", "Value"); err != nil {
		return err
	}
	for i, p := range params {
		if err := setRow(f, ParametersSheet, i+2, p.Name, p.Value); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(ResultsSheet); err != nil {
		return fmt.Errorf("add results sheet: %w", err)
	}
	if err := setRow(f, ResultsSheet, 1, "delta", "mean returns"); err != nil {
		return err
	}
	for i := range res.Multipliers {
		if err := setRow(f, ResultsSheet, i+2, res.Multipliers[i], res.MeanReturns[i]); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
