// Package risk derives pip distances, position sizing, and monetary
// projections from a parsed trade signal.
package risk

import (
	"math"
	"strconv"
	"strings"

	"signal-trader/internal/models"
)

const (
	// PositionSize is the lot size used for every trade. The sizing policy is
	// a fixed minimum lot: it does not scale with risk factor or stop-loss
	// distance. See DESIGN.md before changing this.
	PositionSize = 0.01

	// pipValue is the account-currency value of one pip for one full lot.
	pipValue = 10.0

	goldMultiplier   = 0.1
	silverMultiplier = 0.001
	twoDecimalPip    = 0.01
	fourDecimalPip   = 0.0001
)

// Multiplier returns the pip multiplier for a symbol quoted at the given
// entry price. The entry must already be a concrete number; market orders
// are resolved to a live quote before any metric is computed.
func Multiplier(symbol string, entry float64) float64 {
	switch symbol {
	case "XAUUSD":
		return goldMultiplier
	case "XAGUSD":
		return silverMultiplier
	}
	// Two-decimal quoting (JPY-style pairs) shows two or more digits before
	// the decimal point.
	text := strconv.FormatFloat(entry, 'f', -1, 64)
	dot := strings.IndexByte(text, '.')
	if dot == -1 {
		dot = len(text)
	}
	if dot >= 2 {
		return twoDecimalPip
	}
	return fourDecimalPip
}

// Compute derives the risk metrics for a trade against the current account
// balance. It is pure: no I/O, no hidden state, identical inputs yield
// identical metrics.
//
// The balance parameter is part of the contract for risk-based sizing, but
// the current sizing policy is the fixed minimum lot and ignores it.
func Compute(trade models.TradeSignal, balance float64) models.DerivedMetrics {
	_ = balance

	multiplier := Multiplier(trade.Symbol, trade.Entry)

	metrics := models.DerivedMetrics{
		PipMultiplier:  multiplier,
		StopLossPips:   pips(trade.StopLoss, trade.Entry, multiplier),
		TakeProfitPips: make([]int, 0, len(trade.TakeProfits)),
		PositionSize:   PositionSize,
		PerTPProfit:    make([]float64, 0, len(trade.TakeProfits)),
	}
	for _, tp := range trade.TakeProfits {
		metrics.TakeProfitPips = append(metrics.TakeProfitPips, pips(tp, trade.Entry, multiplier))
	}

	metrics.PotentialLoss = round2(metrics.PositionSize * pipValue * float64(metrics.StopLossPips))

	// Risk splits evenly across targets: each leg is sized 1/N of the trade.
	share := 1.0 / float64(len(metrics.TakeProfitPips))
	total := 0.0
	for _, tpPips := range metrics.TakeProfitPips {
		profit := round2(metrics.PositionSize * pipValue * share * float64(tpPips))
		metrics.PerTPProfit = append(metrics.PerTPProfit, profit)
		total += profit
	}
	metrics.TotalProfit = round2(total)

	return metrics
}

// pips converts an absolute price distance into whole pips, rounded half
// away from zero.
func pips(a, b, multiplier float64) int {
	return int(math.Round(math.Abs(a-b) / multiplier))
}

// round2 rounds to two decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
