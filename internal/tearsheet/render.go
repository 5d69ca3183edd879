package tearsheet

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Render writes the tear sheet to w as a sequence of console tables.
func (t *TearSheet) Render(w io.Writer) {
	t.renderSummary(w)
	t.renderRisk(w)
	t.renderTrades(w)
	t.renderCosts(w)
	t.renderValidation(w)
	t.renderNotes(w)
}

func newSection(w io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("%s", title)
	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 24, Align: text.AlignLeft},
		{Number: 2, WidthMin: 18, Align: text.AlignRight},
	})

	return tw
}

func (t *TearSheet) renderSummary(w io.Writer) {
	tw := newSection(w, fmt.Sprintf("STRATEGY TEAR SHEET: %s", t.Summary.StrategyName))

	tw.AppendRows([]table.Row{
		{"Period", fmt.Sprintf("%s to %s",
			t.Summary.StartDate.Format("2006-01-02"),
			t.Summary.EndDate.Format("2006-01-02"))},
		{"Initial Capital", t.Summary.InitialCapital},
		{"Final Capital", t.Summary.FinalCapital},
		{"Total Return", fmt.Sprintf("%.2f%%", t.Summary.TotalReturnPct)},
		{"Annualized Return", fmt.Sprintf("%.2f%%", t.Summary.AnnualizedReturnPct)},
	})

	tw.Render()
	fmt.Fprintln(w)
}

func (t *TearSheet) renderRisk(w io.Writer) {
	tw := newSection(w, "RISK")

	tw.AppendRows([]table.Row{
		{"Sharpe Ratio", fmt.Sprintf("%.3f", t.Risk.SharpeRatio)},
		{"Sortino Ratio", t.Risk.SortinoRatio.String()},
		{"Calmar Ratio", t.Risk.CalmarRatio.String()},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", t.Risk.MaxDrawdownPct)},
	})

	if ulcer, err := t.Risk.UlcerIndex.Take(); err == nil {
		tw.AppendRow(table.Row{"Ulcer Index", fmt.Sprintf("%.3f", ulcer)})
	}

	if pain, err := t.Risk.PainIndex.Take(); err == nil {
		tw.AppendRow(table.Row{"Pain Index", fmt.Sprintf("%.3f", pain)})
	}

	if cdar, err := t.Risk.CDaR.Take(); err == nil {
		tw.AppendRow(table.Row{"CDaR (95%)", fmt.Sprintf("%.2f%%", cdar)})
	}

	tw.Render()
	fmt.Fprintln(w)
}

func (t *TearSheet) renderTrades(w io.Writer) {
	tw := newSection(w, "TRADES")

	tw.AppendRows([]table.Row{
		{"Total Trades", t.Trades.TotalTrades},
		{"Winners / Losers", fmt.Sprintf("%d / %d", t.Trades.WinningTrades, t.Trades.LosingTrades)},
		{"Win Rate", fmt.Sprintf("%.1f%%", t.Trades.WinRate*100)},
		{"Profit Factor", t.Trades.ProfitFactor.String()},
		{"Max Consecutive Wins", t.Trades.MaxConsecutiveWins},
		{"Max Consecutive Losses", t.Trades.MaxConsecutiveLosses},
		{"Holding Days (min/med/max)", fmt.Sprintf("%d / %.1f / %d",
			t.Trades.HoldingDaysMin, t.Trades.HoldingDaysMedian, t.Trades.HoldingDaysMax)},
	})

	tw.Render()
	fmt.Fprintln(w)

	if len(t.Trades.ByDayOfWeek) > 0 {
		dw := table.NewWriter()
		dw.SetOutputMirror(w)
		dw.SetTitle("BY ENTRY WEEKDAY")
		dw.SetStyle(table.StyleRounded)
		dw.AppendHeader(table.Row{"Day", "Trades", "Wins", "Win Rate"})

		for _, day := range t.Trades.ByDayOfWeek {
			dw.AppendRow(table.Row{
				day.Day.String(),
				day.Trades,
				day.Wins,
				fmt.Sprintf("%.1f%%", day.WinRate*100),
			})
		}

		dw.Render()
		fmt.Fprintln(w)
	}
}

func (t *TearSheet) renderCosts(w io.Writer) {
	tw := newSection(w, "COSTS")

	tw.AppendRows([]table.Row{
		{"Commission", t.Costs.Commission},
		{"Slippage", t.Costs.Slippage},
		{"Market Impact", t.Costs.MarketImpact},
		{"Total", t.Costs.Total},
	})

	tw.Render()
	fmt.Fprintln(w)
}

func (t *TearSheet) renderValidation(w io.Writer) {
	ci, err := t.Confidence.Take()
	if err == nil {
		tw := newSection(w, "BOOTSTRAP 95% CONFIDENCE")

		tw.AppendRows([]table.Row{
			{"Sharpe", fmt.Sprintf("[%.3f, %.3f]", ci.SharpeLower, ci.SharpeUpper)},
			{"Win Rate", fmt.Sprintf("[%.1f%%, %.1f%%]", ci.WinRateLower*100, ci.WinRateUpper*100)},
			{"Profit Factor", fmt.Sprintf("[%.2f, %.2f]", ci.ProfitFactorLower, ci.ProfitFactorUpper)},
			{"Resamples", ci.Resamples},
		})

		tw.Render()
		fmt.Fprintln(w)
	}

	if mc, err := t.MonteCarlo.Take(); err == nil {
		tw := newSection(w, "MONTE CARLO")

		tw.AppendRows([]table.Row{
			{"Paths", mc.Paths},
			{"Final Return p5 / p50 / p95", fmt.Sprintf("%.1f%% / %.1f%% / %.1f%%",
				mc.FinalReturnPercentiles["p5"],
				mc.FinalReturnPercentiles["p50"],
				mc.FinalReturnPercentiles["p95"])},
			{"P(profit)", fmt.Sprintf("%.1f%%", mc.ProbabilityOfProfit*100)},
			{fmt.Sprintf("P(ruin at %.0f%% DD)", mc.RuinThresholdPct), fmt.Sprintf("%.1f%%", mc.ProbabilityOfRuin*100)},
		})

		tw.Render()
		fmt.Fprintln(w)
	}
}

func (t *TearSheet) renderNotes(w io.Writer) {
	if len(t.DataQualityNotes) == 0 {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("DATA QUALITY")
	tw.SetStyle(table.StyleRounded)

	for _, note := range t.DataQualityNotes {
		tw.AppendRow(table.Row{note})
	}

	tw.Render()
	fmt.Fprintln(w)
}
