package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "signal-trader/internal/errors"
	"signal-trader/internal/metaapi"
	"signal-trader/internal/models"
)

// fakeAccount is a scriptable metaapi.AccountAPI.
type fakeAccount struct {
	state            string
	stateErr         error
	deployErr        error
	waitConnectedErr error
	connectErr       error
	conn             *fakeConnection

	deployed       bool
	blockConnected bool
}

func (f *fakeAccount) State(ctx context.Context) (string, error) {
	return f.state, f.stateErr
}

func (f *fakeAccount) Deploy(ctx context.Context) error {
	f.deployed = true
	return f.deployErr
}

func (f *fakeAccount) WaitConnected(ctx context.Context) error {
	if f.blockConnected {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.waitConnectedErr
}

func (f *fakeAccount) Connect(ctx context.Context) (metaapi.Connection, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.conn, nil
}

// submittedOrder records one order primitive call on the fake connection.
type submittedOrder struct {
	kind       string
	symbol     string
	volume     float64
	entry      float64
	stopLoss   float64
	takeProfit float64
}

// fakeConnection is a scriptable metaapi.Connection. Orders fail per call
// index through failOrders.
type fakeConnection struct {
	syncErr    error
	blockSync  bool
	info       models.AccountInformation
	infoErr    error
	price      models.SymbolPrice
	priceErr   error
	failOrders map[int]error

	orders []submittedOrder
}

func (f *fakeConnection) WaitSynchronized(ctx context.Context) error {
	if f.blockSync {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.syncErr
}

func (f *fakeConnection) AccountInformation(ctx context.Context) (*models.AccountInformation, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	info := f.info
	return &info, nil
}

func (f *fakeConnection) SymbolPrice(ctx context.Context, symbol string) (*models.SymbolPrice, error) {
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	price := f.price
	price.Symbol = symbol
	return &price, nil
}

func (f *fakeConnection) submit(kind, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	index := len(f.orders)
	f.orders = append(f.orders, submittedOrder{kind, symbol, volume, entry, stopLoss, takeProfit})
	if err, ok := f.failOrders[index]; ok {
		return nil, err
	}
	return &models.OrderResult{
		OrderID:     fmt.Sprintf("ORDER-%d", index),
		NumericCode: 10009,
		StringCode:  "TRADE_RETCODE_DONE",
	}, nil
}

func (f *fakeConnection) MarketBuy(ctx context.Context, symbol string, volume, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return f.submit("market-buy", symbol, volume, 0, stopLoss, takeProfit)
}

func (f *fakeConnection) MarketSell(ctx context.Context, symbol string, volume, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return f.submit("market-sell", symbol, volume, 0, stopLoss, takeProfit)
}

func (f *fakeConnection) LimitBuy(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return f.submit("limit-buy", symbol, volume, entry, stopLoss, takeProfit)
}

func (f *fakeConnection) LimitSell(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return f.submit("limit-sell", symbol, volume, entry, stopLoss, takeProfit)
}

func (f *fakeConnection) StopBuy(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return f.submit("stop-buy", symbol, volume, entry, stopLoss, takeProfit)
}

func (f *fakeConnection) StopSell(ctx context.Context, symbol string, volume, entry, stopLoss, takeProfit float64) (*models.OrderResult, error) {
	return f.submit("stop-sell", symbol, volume, entry, stopLoss, takeProfit)
}

// recordingSender collects delivered messages.
type recordingSender struct {
	texts []string
	htmls []string
}

func (r *recordingSender) Reply(ctx context.Context, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingSender) ReplyHTML(ctx context.Context, html string) error {
	r.htmls = append(r.htmls, html)
	return nil
}

func testTimeouts() Timeouts {
	return Timeouts{Connect: time.Second, Synchronize: time.Second}
}

func deployedAccount(conn *fakeConnection) *fakeAccount {
	return &fakeAccount{state: metaapi.StateDeployed, conn: conn}
}

func marketBuyTrade() models.TradeSignal {
	return models.TradeSignal{
		OrderType:   models.OrderBuy,
		Symbol:      "EURUSD",
		MarketEntry: true,
		StopLoss:    1.0900,
		TakeProfits: []float64{1.1000},
		RiskFactor:  0.01,
	}
}

func TestExecuteMarketBuyResolvesEntryFromBid(t *testing.T) {
	conn := &fakeConnection{
		info:  models.AccountInformation{Balance: 10000, Currency: "USD"},
		price: models.SymbolPrice{Bid: 1.0950, Ask: 1.0952},
	}
	account := deployedAccount(conn)
	executor := NewExecutor(account, testTimeouts(), zerolog.Nop())
	sender := &recordingSender{}

	rep, err := executor.Execute(context.Background(), marketBuyTrade(), sender, true)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if rep.Trade.Entry != 1.0950 {
		t.Errorf("Entry = %v, want bid 1.0950", rep.Trade.Entry)
	}
	if rep.Balance != 10000 {
		t.Errorf("Balance = %v, want 10000", rep.Balance)
	}
	if rep.FinalState != StateDone {
		t.Errorf("FinalState = %s, want %s", rep.FinalState, StateDone)
	}
	if len(conn.orders) != 1 || conn.orders[0].kind != "market-buy" {
		t.Fatalf("orders = %+v, want one market-buy", conn.orders)
	}
	if conn.orders[0].volume != 0.01 {
		t.Errorf("volume = %v, want the full position for a single target", conn.orders[0].volume)
	}
	if account.deployed {
		t.Error("account was already deployed and must not be redeployed")
	}
	if len(sender.htmls) != 1 || !strings.Contains(sender.htmls[0], "<pre>") {
		t.Errorf("trade report not delivered as HTML: %v", sender.htmls)
	}
}

func TestExecuteMarketSellResolvesEntryFromAsk(t *testing.T) {
	conn := &fakeConnection{
		info:  models.AccountInformation{Balance: 10000},
		price: models.SymbolPrice{Bid: 1.0950, Ask: 1.0952},
	}
	executor := NewExecutor(deployedAccount(conn), testTimeouts(), zerolog.Nop())

	trade := marketBuyTrade()
	trade.OrderType = models.OrderSell
	trade.StopLoss = 1.1000
	trade.TakeProfits = []float64{1.0900}

	rep, err := executor.Execute(context.Background(), trade, nil, true)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if rep.Trade.Entry != 1.0952 {
		t.Errorf("Entry = %v, want ask 1.0952", rep.Trade.Entry)
	}
	if len(conn.orders) != 1 || conn.orders[0].kind != "market-sell" {
		t.Fatalf("orders = %+v, want one market-sell", conn.orders)
	}
}

func TestExecuteSplitsVolumeAcrossLegs(t *testing.T) {
	conn := &fakeConnection{info: models.AccountInformation{Balance: 5000}}
	executor := NewExecutor(deployedAccount(conn), testTimeouts(), zerolog.Nop())

	trade := models.TradeSignal{
		OrderType:   models.OrderBuyLimit,
		Symbol:      "GBPUSD",
		Entry:       1.2500,
		StopLoss:    1.2450,
		TakeProfits: []float64{1.2600, 1.2650},
		RiskFactor:  0.01,
	}

	rep, err := executor.Execute(context.Background(), trade, nil, true)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(conn.orders) != 2 {
		t.Fatalf("submitted %d orders, want 2", len(conn.orders))
	}
	for i, order := range conn.orders {
		if order.kind != "limit-buy" {
			t.Errorf("order %d kind = %s, want limit-buy", i, order.kind)
		}
		if order.volume != 0.005 {
			t.Errorf("order %d volume = %v, want 0.005", i, order.volume)
		}
		if order.entry != 1.2500 || order.stopLoss != 1.2450 {
			t.Errorf("order %d carries entry=%v sl=%v", i, order.entry, order.stopLoss)
		}
	}
	if conn.orders[0].takeProfit != 1.2600 || conn.orders[1].takeProfit != 1.2650 {
		t.Errorf("take profits routed wrong: %+v", conn.orders)
	}
	if len(rep.Legs) != 2 {
		t.Fatalf("report has %d legs, want 2", len(rep.Legs))
	}
}

func TestExecuteLegFailureDoesNotAbortSiblings(t *testing.T) {
	legErr := errors.New("broker rejected order")
	conn := &fakeConnection{
		info:       models.AccountInformation{Balance: 5000},
		failOrders: map[int]error{0: legErr},
	}
	executor := NewExecutor(deployedAccount(conn), testTimeouts(), zerolog.Nop())
	sender := &recordingSender{}

	trade := models.TradeSignal{
		OrderType:   models.OrderSellLimit,
		Symbol:      "EURUSD",
		Entry:       1.1000,
		StopLoss:    1.1050,
		TakeProfits: []float64{1.0950, 1.0900},
		RiskFactor:  0.01,
	}

	rep, err := executor.Execute(context.Background(), trade, sender, true)
	if err != nil {
		t.Fatalf("a leg failure must not fail the flow, got %v", err)
	}
	if rep.FinalState != StateDone {
		t.Errorf("FinalState = %s, want %s", rep.FinalState, StateDone)
	}
	if len(conn.orders) != 2 {
		t.Fatalf("submitted %d orders, want both legs attempted", len(conn.orders))
	}
	if len(rep.Legs) != 2 {
		t.Fatalf("report has %d legs, want 2", len(rep.Legs))
	}

	var orderErr *apperrors.OrderError
	if rep.Legs[0].Err == nil || !apperrors.As(rep.Legs[0].Err, &orderErr) {
		t.Fatalf("leg 0 error = %v, want an OrderError", rep.Legs[0].Err)
	}
	if orderErr.Leg != 0 || !apperrors.Is(orderErr, legErr) {
		t.Errorf("leg 0 error %v does not wrap the broker failure", orderErr)
	}
	if rep.Legs[1].Err != nil || rep.Legs[1].Result == nil {
		t.Errorf("leg 1 should have succeeded: %+v", rep.Legs[1])
	}

	var sawFailure, sawSuccess bool
	for _, text := range sender.texts {
		if strings.Contains(text, "issue entering TP 1") {
			sawFailure = true
		}
		if strings.Contains(text, "TP 2 entered successfully") {
			sawSuccess = true
		}
	}
	if !sawFailure || !sawSuccess {
		t.Errorf("per-leg messages missing (failure=%v success=%v): %v", sawFailure, sawSuccess, sender.texts)
	}
}

func TestExecuteConnectFailureAborts(t *testing.T) {
	connectErr := errors.New("terminal unreachable")
	account := &fakeAccount{state: metaapi.StateDeployed, connectErr: connectErr}
	executor := NewExecutor(account, testTimeouts(), zerolog.Nop())
	sender := &recordingSender{}

	rep, err := executor.Execute(context.Background(), marketBuyTrade(), sender, true)
	if err == nil {
		t.Fatal("Execute succeeded, want connection failure")
	}

	var connErr *apperrors.ConnectionError
	if !apperrors.As(err, &connErr) {
		t.Fatalf("error %v is not a ConnectionError", err)
	}
	if connErr.Stage != "connect" {
		t.Errorf("Stage = %q, want connect", connErr.Stage)
	}
	if !apperrors.Is(err, connectErr) {
		t.Errorf("error %v does not wrap the cause", err)
	}
	if rep.FinalState != StateFailed {
		t.Errorf("FinalState = %s, want %s", rep.FinalState, StateFailed)
	}
	if len(sender.texts)+len(sender.htmls) != 0 {
		t.Errorf("no messages should be sent before the connection is up: %v %v", sender.texts, sender.htmls)
	}
}

func TestExecuteDeploysUndeployedAccount(t *testing.T) {
	conn := &fakeConnection{info: models.AccountInformation{Balance: 100}}
	account := &fakeAccount{state: "UNDEPLOYED", conn: conn}
	executor := NewExecutor(account, testTimeouts(), zerolog.Nop())

	trade := marketBuyTrade()
	conn.price = models.SymbolPrice{Bid: 1.0950, Ask: 1.0952}

	if _, err := executor.Execute(context.Background(), trade, nil, false); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !account.deployed {
		t.Error("undeployed account was not deployed")
	}
}

func TestExecuteSkipsDeployWhileDeploying(t *testing.T) {
	conn := &fakeConnection{
		info:  models.AccountInformation{Balance: 100},
		price: models.SymbolPrice{Bid: 1.0950, Ask: 1.0952},
	}
	account := &fakeAccount{state: metaapi.StateDeploying, conn: conn}
	executor := NewExecutor(account, testTimeouts(), zerolog.Nop())

	if _, err := executor.Execute(context.Background(), marketBuyTrade(), nil, false); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if account.deployed {
		t.Error("deploy must not be requested while already deploying")
	}
}

func TestExecuteWaitConnectedTimeout(t *testing.T) {
	account := &fakeAccount{state: metaapi.StateDeployed, blockConnected: true}
	executor := NewExecutor(account, Timeouts{Connect: 10 * time.Millisecond, Synchronize: time.Second}, zerolog.Nop())

	rep, err := executor.Execute(context.Background(), marketBuyTrade(), nil, true)
	if err == nil {
		t.Fatal("Execute succeeded, want timeout")
	}
	if !apperrors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("error %v does not wrap ErrTimeout", err)
	}
	var connErr *apperrors.ConnectionError
	if !apperrors.As(err, &connErr) || connErr.Stage != "wait-connected" {
		t.Errorf("error %v should identify the wait-connected stage", err)
	}
	if rep.FinalState != StateFailed {
		t.Errorf("FinalState = %s, want %s", rep.FinalState, StateFailed)
	}
}

func TestExecuteWaitSynchronizedTimeout(t *testing.T) {
	conn := &fakeConnection{blockSync: true}
	executor := NewExecutor(deployedAccount(conn), Timeouts{Connect: time.Second, Synchronize: 10 * time.Millisecond}, zerolog.Nop())

	_, err := executor.Execute(context.Background(), marketBuyTrade(), nil, true)
	if !apperrors.Is(err, apperrors.ErrTimeout) {
		t.Errorf("error %v does not wrap ErrTimeout", err)
	}
	var connErr *apperrors.ConnectionError
	if !apperrors.As(err, &connErr) || connErr.Stage != "wait-synchronized" {
		t.Errorf("error %v should identify the wait-synchronized stage", err)
	}
}

func TestExecuteReportOnlySkipsSubmission(t *testing.T) {
	conn := &fakeConnection{
		info:  models.AccountInformation{Balance: 2500},
		price: models.SymbolPrice{Bid: 1.0950, Ask: 1.0952},
	}
	executor := NewExecutor(deployedAccount(conn), testTimeouts(), zerolog.Nop())
	sender := &recordingSender{}

	rep, err := executor.Execute(context.Background(), marketBuyTrade(), sender, false)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if rep.FinalState != StateDone {
		t.Errorf("FinalState = %s, want %s", rep.FinalState, StateDone)
	}
	if len(conn.orders) != 0 {
		t.Errorf("orders submitted in report-only mode: %+v", conn.orders)
	}
	if len(sender.htmls) != 1 {
		t.Errorf("trade report not delivered: %v", sender.htmls)
	}
	for _, text := range sender.texts {
		if strings.Contains(text, "Entering trade") {
			t.Errorf("submission message sent in report-only mode: %q", text)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateDisconnected, StateDeploying, true},
		{StateDisconnected, StateWaitingConnected, true},
		{StateDisconnected, StateSubmitting, false},
		{StateDeploying, StateWaitingConnected, true},
		{StateDeploying, StateConnecting, false},
		{StateWaitingConnected, StateConnecting, true},
		{StateConnecting, StateWaitingSynchronized, true},
		{StateWaitingSynchronized, StateSynchronized, true},
		{StateSynchronized, StateSubmitting, true},
		{StateSynchronized, StateDone, true},
		{StateSubmitting, StateDone, true},
		{StateSubmitting, StateSynchronized, false},
		{StateDone, StateFailed, false},
		{StateFailed, StateDisconnected, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	// Failure is reachable from every non-terminal state.
	for _, from := range []State{
		StateDisconnected, StateDeploying, StateWaitingConnected,
		StateConnecting, StateWaitingSynchronized, StateSynchronized, StateSubmitting,
	} {
		if !CanTransition(from, StateFailed) {
			t.Errorf("CanTransition(%s, %s) = false, want true", from, StateFailed)
		}
	}
}

func TestTerminal(t *testing.T) {
	if !StateDone.Terminal() || !StateFailed.Terminal() {
		t.Error("done and failed are terminal")
	}
	if StateSubmitting.Terminal() || StateDisconnected.Terminal() {
		t.Error("non-terminal states reported terminal")
	}
}
