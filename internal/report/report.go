// Package report renders trade information as a human-readable table.
package report

import (
	"fmt"
	"strings"

	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

const title = "Trade Information"

// Format renders a trade, its derived metrics, and the current account
// balance as a monospace table. It is pure and deterministic: the same
// inputs always produce the same text.
func Format(trade models.TradeSignal, metrics models.DerivedMetrics, balance float64) string {
	rows := make([][2]string, 0, 8+2*len(metrics.TakeProfitPips))

	rows = append(rows, [2]string{string(trade.OrderType), trade.Symbol})

	entry := utils.FormatPrice(trade.Entry)
	if trade.MarketEntry {
		entry = "NOW"
	}
	rows = append(rows, [2]string{"Entry", entry})
	rows = append(rows, [2]string{"Stop Loss", utils.FormatPips(metrics.StopLossPips)})
	for i, tpPips := range metrics.TakeProfitPips {
		rows = append(rows, [2]string{fmt.Sprintf("TP %d", i+1), utils.FormatPips(tpPips)})
	}

	rows = append(rows, [2]string{"Risk Factor", fmt.Sprintf("%.0f %%", trade.RiskFactor*100)})
	rows = append(rows, [2]string{"Position Size", utils.FormatPrice(metrics.PositionSize)})

	rows = append(rows, [2]string{"Current Balance", utils.FormatUSD(balance)})
	rows = append(rows, [2]string{"Potential Loss", utils.FormatUSD(metrics.PotentialLoss)})
	for i, profit := range metrics.PerTPProfit {
		rows = append(rows, [2]string{fmt.Sprintf("TP %d Profit", i+1), utils.FormatUSD(profit)})
	}
	rows = append(rows, [2]string{"Total Profit", utils.FormatUSD(metrics.TotalProfit)})

	return render(rows)
}

// render draws a two-column bordered table with a centered title line.
func render(rows [][2]string) string {
	keyWidth, valueWidth := len(title)/2, len(title)/2
	for _, row := range rows {
		if len(row[0]) > keyWidth {
			keyWidth = len(row[0])
		}
		if len(row[1]) > valueWidth {
			valueWidth = len(row[1])
		}
	}

	// +-2 padding per column, +1 middle separator.
	inner := keyWidth + valueWidth + 5

	var b strings.Builder
	writeBorder(&b, inner)
	pad := inner - len(title)
	left := pad / 2
	b.WriteString("|" + strings.Repeat(" ", left) + title + strings.Repeat(" ", pad-left) + "|\n")
	writeBorder(&b, inner)
	for _, row := range rows {
		fmt.Fprintf(&b, "| %-*s | %-*s |\n", keyWidth, row[0], valueWidth, row[1])
	}
	writeBorder(&b, inner)
	return strings.TrimRight(b.String(), "\n")
}

func writeBorder(b *strings.Builder, inner int) {
	b.WriteString("+" + strings.Repeat("-", inner) + "+\n")
}
