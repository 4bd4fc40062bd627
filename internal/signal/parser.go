// Package signal parses free-form trade signals into validated trade records.
package signal

import (
	"strconv"
	"strings"

	apperrors "signal-trader/internal/errors"
	"signal-trader/internal/models"
)

// Line positions within a signal message.
const (
	lineOrder = iota
	lineEntry
	lineStopLoss
	lineTakeProfit1
	lineTakeProfit2
)

// orderKeywords are matched against the first line in this order: the
// pending-order keywords come first so that "Buy Limit" is not misread as a
// bare "Buy".
var orderKeywords = []models.OrderType{
	models.OrderBuyLimit,
	models.OrderSellLimit,
	models.OrderBuyStop,
	models.OrderSellStop,
	models.OrderBuy,
	models.OrderSell,
}

// Parse converts a raw signal message into a TradeSignal, attaching the
// given risk factor. It is total and deterministic: the same text and risk
// factor always yield the same signal. On any defect it returns a ParseError
// and no trade record at all.
//
// Expected format, one value per line; label text before the last
// whitespace-separated token of a line is ignored:
//
//	<OrderType keyword> <Symbol>
//	<Entry price or NOW>
//	<StopLoss price>
//	<TakeProfit1 price>
//	[<TakeProfit2 price>]
func Parse(text string, riskFactor float64) (*models.TradeSignal, error) {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t\r")
	}

	if len(lines) == 0 || strings.TrimSpace(lines[lineOrder]) == "" {
		return nil, apperrors.NewParseError(apperrors.ReasonMissingLine, lineOrder, "")
	}

	trade := models.TradeSignal{RiskFactor: riskFactor}

	head := strings.ToLower(lines[lineOrder])
	for _, keyword := range orderKeywords {
		if strings.Contains(head, strings.ToLower(string(keyword))) {
			trade.OrderType = keyword
			break
		}
	}
	if trade.OrderType == "" {
		return nil, apperrors.NewParseError(apperrors.ReasonInvalidOrderType, lineOrder, lines[lineOrder])
	}

	fields := strings.Fields(lines[lineOrder])
	trade.Symbol = strings.ToUpper(fields[len(fields)-1])
	if !IsTradable(trade.Symbol) {
		return nil, apperrors.NewParseError(apperrors.ReasonInvalidSymbol, lineOrder, trade.Symbol)
	}

	// Market orders execute at the live quote: the entry line is present but
	// its value is ignored. Pending orders carry a concrete entry price.
	if trade.OrderType.IsMarket() {
		trade.MarketEntry = true
	} else {
		entry, err := lastFloat(lines, lineEntry)
		if err != nil {
			return nil, err
		}
		trade.Entry = entry
	}

	stopLoss, err := lastFloat(lines, lineStopLoss)
	if err != nil {
		return nil, err
	}
	trade.StopLoss = stopLoss

	tp1, err := lastFloat(lines, lineTakeProfit1)
	if err != nil {
		return nil, err
	}
	trade.TakeProfits = []float64{tp1}

	if len(lines) > lineTakeProfit2 {
		tp2, err := lastFloat(lines, lineTakeProfit2)
		if err != nil {
			return nil, err
		}
		trade.TakeProfits = append(trade.TakeProfits, tp2)
	}

	return &trade, nil
}

// lastFloat parses the last whitespace-separated token of line i as a float.
func lastFloat(lines []string, i int) (float64, error) {
	if i >= len(lines) {
		return 0, apperrors.NewParseError(apperrors.ReasonMissingLine, i, "")
	}
	fields := strings.Fields(lines[i])
	if len(fields) == 0 {
		return 0, apperrors.NewParseError(apperrors.ReasonMissingLine, i, "")
	}
	value, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0, apperrors.NewParseError(apperrors.ReasonInvalidNumber, i, fields[len(fields)-1])
	}
	return value, nil
}
