// Package metaapi drives a remote MetaTrader account through the MetaApi
// cloud REST API.
package metaapi

import (
	"context"

	"signal-trader/internal/models"
)

// Account states reported by the provisioning API.
const (
	StateDeploying = "DEPLOYING"
	StateDeployed  = "DEPLOYED"

	// ConnectionStatusConnected means the API server reached the broker.
	ConnectionStatusConnected = "CONNECTED"
)

// AccountAPI manages the lifecycle of one remote trading account.
type AccountAPI interface {
	// State returns the account's deployment state.
	State(ctx context.Context) (string, error)
	// Deploy requests deployment of the account's trading terminal.
	Deploy(ctx context.Context) error
	// WaitConnected blocks until the terminal is connected to its broker or
	// ctx expires.
	WaitConnected(ctx context.Context) error
	// Connect opens a control connection to the deployed terminal.
	Connect(ctx context.Context) (Connection, error)
}

// Connection is an open control connection to a trading terminal. It exposes
// the account reads and the six order-submission primitives.
type Connection interface {
	// WaitSynchronized blocks until the terminal state is synchronized to the
	// local state or ctx expires.
	WaitSynchronized(ctx context.Context) error

	AccountInformation(ctx context.Context) (*models.AccountInformation, error)
	SymbolPrice(ctx context.Context, symbol string) (*models.SymbolPrice, error)

	MarketBuy(ctx context.Context, symbol string, volume, stopLoss, takeProfit float64) (*models.OrderResult, error)
	MarketSell(ctx context.Context, symbol string, volume, stopLoss, takeProfit float64) (*models.OrderResult, error)
	LimitBuy(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error)
	LimitSell(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error)
	StopBuy(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error)
	StopSell(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error)
}
