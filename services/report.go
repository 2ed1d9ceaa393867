package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"flight-scraper/models"
)

// Report prints the destination ranking and the price trend.
type Report struct {
	out io.Writer
}

func NewReport(out io.Writer) *Report {
	return &Report{out: out}
}

func (r *Report) Print(rows []models.AggregateRow, trend []models.TrendPoint) {
	sep := strings.Repeat("═", 54)

	fmt.Fprintf(r.out, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(r.out, "\033[1;35m  ✈  DESTINATION RANKING\033[0m\n")
	fmt.Fprintf(r.out, "\033[1;35m%s\033[0m\n\n", sep)

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Destination", "Flights", "Avg price", "Std price", "Min price", "Avg duration", "Direct", "Score"})
	for i, row := range rows {
		t.AppendRow(table.Row{
			i + 1,
			row.Destination,
			row.Count,
			fmt.Sprintf("%.2f", row.AvgPrice),
			fmt.Sprintf("%.2f", row.StdPrice),
			fmt.Sprintf("%.2f", row.MinPrice),
			fmt.Sprintf("%.0f min", row.AvgDuration),
			fmt.Sprintf("%.0f%%", row.DirectRatio*100),
			fmt.Sprintf("%.2f", row.FinalScore),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})
	t.Render()

	if len(trend) > 0 {
		fmt.Fprintf(r.out, "\n\033[1;33m  Average price per day\033[0m\n")
		tt := table.NewWriter()
		tt.SetOutputMirror(r.out)
		tt.SetStyle(table.StyleLight)
		tt.AppendHeader(table.Row{"Destination", "Date", "Avg price"})
		for _, p := range trend {
			tt.AppendRow(table.Row{p.Destination, p.Date, fmt.Sprintf("%.2f", p.AvgPrice)})
		}
		tt.Render()
	}

	if best, err := Best(rows); err == nil {
		fmt.Fprintf(r.out, "\n  BEST DESTINATION: \033[1;32m%s\033[0m\n", best)
	}
	fmt.Fprintf(r.out, "\n\033[1;35m%s\033[0m\n\n", sep)
}
