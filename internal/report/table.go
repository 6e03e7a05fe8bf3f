package report

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"cartpole-dt-sweep/internal/sweep"
)

// ResultsTable renders res as a terminal table, one row per multiplier.
func ResultsTable(res sweep.Result) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"#", "dt_multip", "mean return", "std"})
	for i, dt := range res.Multipliers {
		var mean, std string
		if i < len(res.MeanReturns) {
			mean = fmt.Sprintf("%.2f", res.MeanReturns[i])
		}
		if i < len(res.StdReturns) {
			std = fmt.Sprintf("%.2f", res.StdReturns[i])
		}
		w.AppendRow(table.Row{i + 1, fmt.Sprintf("%.3e", dt), mean, std})
	}
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return w.Render()
}
