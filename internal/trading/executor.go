package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "signal-trader/internal/errors"
	"signal-trader/internal/logging"
	"signal-trader/internal/metaapi"
	"signal-trader/internal/models"
	"signal-trader/internal/report"
	"signal-trader/internal/risk"
)

// Sender delivers progress and result messages back to the signal's sender.
type Sender interface {
	Reply(ctx context.Context, text string) error
	ReplyHTML(ctx context.Context, html string) error
}

// LegOutcome is the result of submitting one take-profit leg. A failed leg
// never aborts its siblings.
type LegOutcome struct {
	Leg        int
	TakeProfit float64
	Result     *models.OrderResult
	Err        error
}

// ExecutionReport summarizes one completed (or failed) execution flow.
type ExecutionReport struct {
	Trade      models.TradeSignal // entry resolved for market orders
	Metrics    models.DerivedMetrics
	Balance    float64
	Legs       []LegOutcome
	FinalState State
}

// Timeouts bounds the two blocking wait stages of the lifecycle.
type Timeouts struct {
	Connect     time.Duration
	Synchronize time.Duration
}

// Executor drives the remote account lifecycle for one trade at a time.
// Submissions against the shared account are serialized; parsing and metric
// computation run unconstrained outside the lock.
type Executor struct {
	account  metaapi.AccountAPI
	timeouts Timeouts
	logger   zerolog.Logger

	mu    sync.Mutex
	state State
}

// NewExecutor creates an executor for the given account.
func NewExecutor(account metaapi.AccountAPI, timeouts Timeouts, logger zerolog.Logger) *Executor {
	return &Executor{
		account:  account,
		timeouts: timeouts,
		logger:   logger,
		state:    StateDisconnected,
	}
}

// transition moves the lifecycle to the next state, enforcing the allowed
// transition table.
func (e *Executor) transition(to State) error {
	if !CanTransition(e.state, to) {
		return invalidTransition(e.state, to)
	}
	logging.LogStage(e.logger, string(e.state), string(to))
	e.state = to
	return nil
}

// Execute runs the full lifecycle for one trade: deploy, wait for the broker
// connection, connect, wait for synchronization, fetch the balance, resolve
// the entry price for market orders, report the derived risk, and — when
// enterTrade is set — submit one order per take-profit target.
//
// A failure before submission aborts the whole flow; a failure of one leg is
// recorded in its outcome and the remaining legs are still submitted. No
// stage is ever retried.
func (e *Executor) Execute(ctx context.Context, trade models.TradeSignal, sender Sender, enterTrade bool) (*ExecutionReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = StateDisconnected
	rep := &ExecutionReport{Trade: trade}

	fail := func(stage string, err error) (*ExecutionReport, error) {
		_ = e.transition(StateFailed)
		rep.FinalState = e.state
		return rep, apperrors.NewConnectionError(stage, err)
	}

	// 1. Deploy unless the account is already deploying or deployed.
	state, err := e.account.State(ctx)
	if err != nil {
		return fail("query-state", err)
	}
	if state != metaapi.StateDeploying && state != metaapi.StateDeployed {
		if err := e.transition(StateDeploying); err != nil {
			return fail("deploy", err)
		}
		if err := e.account.Deploy(ctx); err != nil {
			return fail("deploy", err)
		}
	}

	// 2. Wait until the terminal is connected to the broker.
	if err := e.transition(StateWaitingConnected); err != nil {
		return fail("wait-connected", err)
	}
	if err := e.await(ctx, e.timeouts.Connect, e.account.WaitConnected); err != nil {
		return fail("wait-connected", err)
	}

	// 3. Open the control connection.
	if err := e.transition(StateConnecting); err != nil {
		return fail("connect", err)
	}
	conn, err := e.account.Connect(ctx)
	if err != nil {
		return fail("connect", err)
	}

	// 4. Wait until terminal state is synchronized to the local state.
	if err := e.transition(StateWaitingSynchronized); err != nil {
		return fail("wait-synchronized", err)
	}
	if err := e.await(ctx, e.timeouts.Synchronize, conn.WaitSynchronized); err != nil {
		return fail("wait-synchronized", err)
	}
	if err := e.transition(StateSynchronized); err != nil {
		return fail("wait-synchronized", err)
	}

	// 5. Balance is a required input to the risk metrics.
	info, err := conn.AccountInformation(ctx)
	if err != nil {
		return fail("account-information", err)
	}
	rep.Balance = info.Balance

	e.reply(ctx, sender, "Successfully connected to MetaTrader!\nCalculating trade risk ... 🤔")

	// 6. Market orders resolve their entry from the live quote before any
	// metric is computed; the pip multiplier heuristic needs a concrete
	// entry price.
	if trade.MarketEntry {
		price, err := conn.SymbolPrice(ctx, trade.Symbol)
		if err != nil {
			return fail("symbol-price", err)
		}
		if trade.OrderType == models.OrderBuy {
			trade = trade.WithEntry(price.Bid)
		} else {
			trade = trade.WithEntry(price.Ask)
		}
	}
	rep.Trade = trade

	// 7. Derive and report the trade risk.
	rep.Metrics = risk.Compute(trade, rep.Balance)
	e.replyHTML(ctx, sender, "<pre>"+report.Format(trade, rep.Metrics, rep.Balance)+"</pre>")

	if !enterTrade {
		_ = e.transition(StateDone)
		rep.FinalState = e.state
		return rep, nil
	}

	// 8. One order per take-profit target, the position split evenly. Each
	// leg's outcome is reported individually and never aborts its siblings.
	if err := e.transition(StateSubmitting); err != nil {
		return fail("submit", err)
	}
	e.reply(ctx, sender, "Entering trade on MetaTrader Account ... 👨🏾‍💻")

	volume := rep.Metrics.PositionSize / float64(len(trade.TakeProfits))
	for i, takeProfit := range trade.TakeProfits {
		outcome := LegOutcome{Leg: i, TakeProfit: takeProfit}
		result, err := submitLeg(ctx, conn, trade, volume, takeProfit)
		if err != nil {
			outcome.Err = apperrors.NewOrderError(i, trade.Symbol, takeProfit, err)
			logging.LogOrderResult(e.logger, i, trade.Symbol, "", err)
			e.reply(ctx, sender, fmt.Sprintf("There was an issue entering TP %d 😕\n\nError Message:\n%v", i+1, err))
		} else {
			outcome.Result = result
			logging.LogOrderResult(e.logger, i, trade.Symbol, result.StringCode, nil)
			e.reply(ctx, sender, fmt.Sprintf("TP %d entered successfully! 💰\nResult Code: %s", i+1, result.StringCode))
		}
		rep.Legs = append(rep.Legs, outcome)
	}

	_ = e.transition(StateDone)
	rep.FinalState = e.state
	return rep, nil
}

// await runs a blocking wait stage under its configured timeout, mapping a
// deadline expiry to ErrTimeout.
func (e *Executor) await(ctx context.Context, timeout time.Duration, wait func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := wait(ctx); err != nil {
		if apperrors.Is(err, context.DeadlineExceeded) {
			return apperrors.ErrTimeout
		}
		return err
	}
	return nil
}

// submitLeg routes one take-profit leg to the order primitive matching the
// trade's order type.
func submitLeg(ctx context.Context, conn metaapi.Connection, trade models.TradeSignal, volume, takeProfit float64) (*models.OrderResult, error) {
	switch trade.OrderType {
	case models.OrderBuy:
		return conn.MarketBuy(ctx, trade.Symbol, volume, trade.StopLoss, takeProfit)
	case models.OrderSell:
		return conn.MarketSell(ctx, trade.Symbol, volume, trade.StopLoss, takeProfit)
	case models.OrderBuyLimit:
		return conn.LimitBuy(ctx, trade.Symbol, volume, trade.Entry, trade.StopLoss, takeProfit)
	case models.OrderSellLimit:
		return conn.LimitSell(ctx, trade.Symbol, volume, trade.Entry, trade.StopLoss, takeProfit)
	case models.OrderBuyStop:
		return conn.StopBuy(ctx, trade.Symbol, volume, trade.Entry, trade.StopLoss, takeProfit)
	case models.OrderSellStop:
		return conn.StopSell(ctx, trade.Symbol, volume, trade.Entry, trade.StopLoss, takeProfit)
	}
	return nil, fmt.Errorf("unknown order type %q", trade.OrderType)
}

// reply delivers a progress message, logging delivery failures instead of
// aborting the trade over them.
func (e *Executor) reply(ctx context.Context, sender Sender, text string) {
	if sender == nil {
		return
	}
	if err := sender.Reply(ctx, text); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to deliver progress message")
	}
}

func (e *Executor) replyHTML(ctx context.Context, sender Sender, html string) {
	if sender == nil {
		return
	}
	if err := sender.ReplyHTML(ctx, html); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to deliver trade report")
	}
}
