package metaapi

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"signal-trader/internal/config"
	"signal-trader/internal/models"
)

// tradeRetcodeDone is the MetaTrader return code for an accepted order.
const tradeRetcodeDone = 10009

// RESTClient implements AccountAPI over the MetaApi cloud REST bridge: the
// provisioning API for deploy/state and the client API for terminal calls.
// Requests are never retried; a failed call is terminal for its stage.
type RESTClient struct {
	provisioning *resty.Client
	terminal     *resty.Client
	accountID    string
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewRESTClient creates a REST client for the configured account.
func NewRESTClient(cfg config.MetaAPIConfig, logger zerolog.Logger) *RESTClient {
	newClient := func(baseURL string) *resty.Client {
		return resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("auth-token", cfg.APIToken).
			SetHeader("Accept", "application/json")
	}

	return &RESTClient{
		provisioning: newClient(cfg.ProvisioningURL),
		terminal:     newClient(cfg.ClientURL),
		accountID:    cfg.AccountID,
		pollInterval: cfg.PollInterval,
		logger:       logger,
	}
}

type accountStatus struct {
	State            string `json:"state"`
	ConnectionStatus string `json:"connectionStatus"`
}

func (c *RESTClient) status(ctx context.Context) (*accountStatus, error) {
	var status accountStatus
	resp, err := c.provisioning.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/users/current/accounts/" + c.accountID)
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching account: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &status, nil
}

// State returns the account's deployment state.
func (c *RESTClient) State(ctx context.Context) (string, error) {
	status, err := c.status(ctx)
	if err != nil {
		return "", err
	}
	return status.State, nil
}

// Deploy requests deployment of the account's trading terminal.
func (c *RESTClient) Deploy(ctx context.Context) error {
	resp, err := c.provisioning.R().
		SetContext(ctx).
		Post("/users/current/accounts/" + c.accountID + "/deploy")
	if err != nil {
		return fmt.Errorf("deploying account: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("deploying account: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// WaitConnected polls the provisioning API until the terminal reports it is
// connected to the broker, or ctx expires.
func (c *RESTClient) WaitConnected(ctx context.Context) error {
	return c.poll(ctx, func(ctx context.Context) (bool, error) {
		status, err := c.status(ctx)
		if err != nil {
			return false, err
		}
		return status.State == StateDeployed && status.ConnectionStatus == ConnectionStatusConnected, nil
	})
}

// Connect opens a control connection to the deployed terminal.
func (c *RESTClient) Connect(ctx context.Context) (Connection, error) {
	conn := &restConnection{client: c}
	// The terminal endpoint answering for this account is the signal that the
	// control connection is usable.
	resp, err := c.terminal.R().
		SetContext(ctx).
		Get("/users/current/accounts/" + c.accountID + "/server-time")
	if err != nil {
		return nil, fmt.Errorf("connecting to terminal: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("connecting to terminal: status %d: %s", resp.StatusCode(), resp.String())
	}
	return conn, nil
}

// poll runs check at the configured interval until it reports true, it
// fails, or ctx expires.
func (c *RESTClient) poll(ctx context.Context, check func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// restConnection implements Connection against the MetaApi client API.
type restConnection struct {
	client *RESTClient
}

// WaitSynchronized polls the terminal until it serves account state, which
// it does only once synchronized to the broker, or until ctx expires.
func (r *restConnection) WaitSynchronized(ctx context.Context) error {
	return r.client.poll(ctx, func(ctx context.Context) (bool, error) {
		resp, err := r.client.terminal.R().
			SetContext(ctx).
			Get("/users/current/accounts/" + r.client.accountID + "/account-information")
		if err != nil {
			return false, fmt.Errorf("checking synchronization: %w", err)
		}
		return resp.IsSuccess(), nil
	})
}

// AccountInformation fetches the account state from the trading server.
func (r *restConnection) AccountInformation(ctx context.Context) (*models.AccountInformation, error) {
	var payload struct {
		Balance  float64 `json:"balance"`
		Equity   float64 `json:"equity"`
		Currency string  `json:"currency"`
		Broker   string  `json:"broker"`
	}
	resp, err := r.client.terminal.R().
		SetContext(ctx).
		SetResult(&payload).
		Get("/users/current/accounts/" + r.client.accountID + "/account-information")
	if err != nil {
		return nil, fmt.Errorf("fetching account information: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching account information: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &models.AccountInformation{
		Balance:  payload.Balance,
		Equity:   payload.Equity,
		Currency: payload.Currency,
		Broker:   payload.Broker,
	}, nil
}

// SymbolPrice fetches the live bid/ask quote for a symbol.
func (r *restConnection) SymbolPrice(ctx context.Context, symbol string) (*models.SymbolPrice, error) {
	var payload struct {
		Symbol string  `json:"symbol"`
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
	}
	resp, err := r.client.terminal.R().
		SetContext(ctx).
		SetResult(&payload).
		Get("/users/current/accounts/" + r.client.accountID + "/symbols/" + symbol + "/current-price")
	if err != nil {
		return nil, fmt.Errorf("fetching price for %s: %w", symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching price for %s: status %d: %s", symbol, resp.StatusCode(), resp.String())
	}
	return &models.SymbolPrice{Symbol: payload.Symbol, Bid: payload.Bid, Ask: payload.Ask}, nil
}

// tradeRequest is the body of a trade call to the client API.
type tradeRequest struct {
	ActionType string  `json:"actionType"`
	Symbol     string  `json:"symbol"`
	Volume     float64 `json:"volume"`
	OpenPrice  float64 `json:"openPrice,omitempty"`
	StopLoss   float64 `json:"stopLoss"`
	TakeProfit float64 `json:"takeProfit"`
}

func (r *restConnection) trade(ctx context.Context, req tradeRequest) (*models.OrderResult, error) {
	var payload struct {
		OrderID     string `json:"orderId"`
		NumericCode int    `json:"numericCode"`
		StringCode  string `json:"stringCode"`
		Message     string `json:"message"`
	}
	resp, err := r.client.terminal.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&payload).
		Post("/users/current/accounts/" + r.client.accountID + "/trade")
	if err != nil {
		return nil, fmt.Errorf("submitting %s %s: %w", req.ActionType, req.Symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("submitting %s %s: status %d: %s", req.ActionType, req.Symbol, resp.StatusCode(), resp.String())
	}
	if payload.NumericCode != 0 && payload.NumericCode != tradeRetcodeDone {
		return nil, fmt.Errorf("trade rejected: %s (%d): %s", payload.StringCode, payload.NumericCode, payload.Message)
	}
	return &models.OrderResult{
		OrderID:     payload.OrderID,
		NumericCode: payload.NumericCode,
		StringCode:  payload.StringCode,
		Message:     payload.Message,
	}, nil
}

func (r *restConnection) MarketBuy(ctx context.Context, symbol string, volume, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return r.trade(ctx, tradeRequest{ActionType: "ORDER_TYPE_BUY", Symbol: symbol, Volume: volume, StopLoss: stopLoss, TakeProfit: takeProfit})
}

func (r *restConnection) MarketSell(ctx context.Context, symbol string, volume, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return r.trade(ctx, tradeRequest{ActionType: "ORDER_TYPE_SELL", Symbol: symbol, Volume: volume, StopLoss: stopLoss, TakeProfit: takeProfit})
}

func (r *restConnection) LimitBuy(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return r.trade(ctx, tradeRequest{ActionType: "ORDER_TYPE_BUY_LIMIT", Symbol: symbol, Volume: volume, OpenPrice: entry, StopLoss: stopLoss, TakeProfit: takeProfit})
}

func (r *restConnection) LimitSell(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return r.trade(ctx, tradeRequest{ActionType: "ORDER_TYPE_SELL_LIMIT", Symbol: symbol, Volume: volume, OpenPrice: entry, StopLoss: stopLoss, TakeProfit: takeProfit})
}

func (r *restConnection) StopBuy(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return r.trade(ctx, tradeRequest{ActionType: "ORDER_TYPE_BUY_STOP", Symbol: symbol, Volume: volume, OpenPrice: entry, StopLoss: stopLoss, TakeProfit: takeProfit})
}

func (r *restConnection) StopSell(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return r.trade(ctx, tradeRequest{ActionType: "ORDER_TYPE_SELL_STOP", Symbol: symbol, Volume: volume, OpenPrice: entry, StopLoss: stopLoss, TakeProfit: takeProfit})
}

// Ensure the REST types satisfy the interfaces.
var (
	_ AccountAPI = (*RESTClient)(nil)
	_ Connection = (*restConnection)(nil)
)
