package models

// TradeSignal is a fully parsed trading signal. The parser either populates
// every field or fails; a partially filled signal never escapes it.
type TradeSignal struct {
	OrderType   OrderType
	Symbol      string
	Entry       float64 // meaningful only when MarketEntry is false
	MarketEntry bool    // entry resolves to the live quote at execution time
	StopLoss    float64
	TakeProfits []float64 // 1 or 2 targets, in signal order
	RiskFactor  float64   // fraction of account balance risked
}

// WithEntry returns a copy of the signal with the entry resolved to a
// concrete price. The original signal is left untouched.
func (t TradeSignal) WithEntry(price float64) TradeSignal {
	resolved := t
	resolved.Entry = price
	resolved.MarketEntry = false
	resolved.TakeProfits = make([]float64, len(t.TakeProfits))
	copy(resolved.TakeProfits, t.TakeProfits)
	return resolved
}

// DerivedMetrics holds the risk metrics computed for one trade. They are
// transient: derived per message and discarded after reporting.
type DerivedMetrics struct {
	PipMultiplier  float64
	StopLossPips   int
	TakeProfitPips []int
	PositionSize   float64
	PotentialLoss  float64
	PerTPProfit    []float64
	TotalProfit    float64
}
