// Package models defines the core data types shared across the application.
package models

// OrderType identifies how an order is executed on the trading account.
type OrderType string

const (
	OrderBuy       OrderType = "Buy"
	OrderSell      OrderType = "Sell"
	OrderBuyLimit  OrderType = "Buy Limit"
	OrderSellLimit OrderType = "Sell Limit"
	OrderBuyStop   OrderType = "Buy Stop"
	OrderSellStop  OrderType = "Sell Stop"
)

// IsMarket reports whether the order executes immediately at the current
// market price rather than at a pending price level.
func (o OrderType) IsMarket() bool {
	return o == OrderBuy || o == OrderSell
}

// IsBuy reports whether the order opens a long position.
func (o OrderType) IsBuy() bool {
	return o == OrderBuy || o == OrderBuyLimit || o == OrderBuyStop
}

// AccountInformation holds the account state fetched from the trading server.
type AccountInformation struct {
	Balance  float64
	Equity   float64
	Currency string
	Broker   string
}

// SymbolPrice is the live quote for one instrument.
type SymbolPrice struct {
	Symbol string
	Bid    float64
	Ask    float64
}

// OrderResult is the trading server's response to a submitted order.
type OrderResult struct {
	OrderID     string
	NumericCode int
	StringCode  string
	Message     string
}
