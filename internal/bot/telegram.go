// Package bot implements the Telegram front end: it authenticates the
// sender, receives raw signal text, and surfaces parsing and execution
// results back to the chat.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"signal-trader/internal/config"
	"signal-trader/internal/logging"
	"signal-trader/internal/models"
	"signal-trader/internal/signal"
	"signal-trader/internal/trading"
)

const telegramAPI = "https://api.telegram.org/bot"

// Messages sent to the chat.
const (
	msgUnauthorized = "You are not authorized to use this bot! 🙅🏽‍♂️"
	msgWelcome      = "Welcome to the FX Signal Trader bot! 📈\n\n" +
		"Send me a trade signal and I will place it on your MetaTrader account.\n" +
		"Use /help to see the expected signal format."
	msgHelp = "Send a signal as plain text, one value per line:\n\n" +
		"<OrderType> <Symbol>\n" +
		"Entry (price, or NOW for market execution)\n" +
		"Stop Loss price\n" +
		"Take Profit 1 price\n" +
		"Take Profit 2 price (optional)\n\n" +
		"Order types: Buy, Sell, Buy Limit, Sell Limit, Buy Stop, Sell Stop.\n\n" +
		"Example:\n" +
		"Buy Limit GBPUSD\n" +
		"Entry 1.2500\n" +
		"SL 1.2450\n" +
		"TP 1.2600\n" +
		"TP 1.2650"
	msgUnknownCommand = "Unknown command 🤔 Use /help to see what I understand."
)

// Trader executes a parsed signal against the trading account.
type Trader interface {
	Execute(ctx context.Context, trade models.TradeSignal, sender trading.Sender, enterTrade bool) (*trading.ExecutionReport, error)
}

// Bot is a long-polling Telegram bot. One configured username may submit
// signals; everyone else receives a fixed rejection.
type Bot struct {
	apiURL      string
	allowedUser string
	riskFactor  float64
	pollTimeout time.Duration
	trader      Trader
	client      *http.Client
	logger      zerolog.Logger

	wg     sync.WaitGroup
	offset int64
}

// New creates a Bot from configuration.
func New(cfg config.TelegramConfig, riskFactor float64, trader Trader, logger zerolog.Logger) *Bot {
	return &Bot{
		apiURL:      telegramAPI + cfg.BotToken,
		allowedUser: cfg.AllowedUser,
		riskFactor:  riskFactor,
		pollTimeout: cfg.PollTimeout,
		trader:      trader,
		client: &http.Client{
			// Long-poll requests hold the connection open for pollTimeout.
			Timeout: cfg.PollTimeout + 10*time.Second,
		},
		logger: logger,
	}
}

// Run polls for updates until ctx is cancelled. Processing failures are
// reported to the sender and never stop the loop.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info().Msg("Telegram bot started")
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Telegram bot stopping")
			return ctx.Err()
		default:
		}

		updates, err := b.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn().Err(err).Msg("Fetching updates failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= b.offset {
				b.offset = u.UpdateID + 1
			}
			b.dispatch(ctx, u.Message)
		}
	}
}

// dispatch routes one incoming message. Each trade signal runs in its own
// task; the executor serializes account access underneath.
func (b *Bot) dispatch(ctx context.Context, msg *message) {
	if msg == nil || msg.Text == "" {
		return
	}

	if strings.HasPrefix(msg.Text, "/") {
		b.handleCommand(ctx, msg)
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.handleSignal(ctx, msg)
	}()
}

func (b *Bot) handleCommand(ctx context.Context, msg *message) {
	command := strings.Fields(msg.Text)[0]
	switch command {
	case "/start":
		b.send(ctx, msg.Chat.ID, msgWelcome, false)
	case "/help":
		b.send(ctx, msg.Chat.ID, msgHelp, false)
	default:
		b.send(ctx, msg.Chat.ID, msgUnknownCommand, false)
	}
}

// handleSignal runs the full pipeline for one signal message: authorize,
// parse, execute. The sender identity is checked before any parsing happens.
func (b *Bot) handleSignal(ctx context.Context, msg *message) {
	if msg.From == nil || msg.From.Username != b.allowedUser {
		b.send(ctx, msg.Chat.ID, msgUnauthorized, false)
		return
	}

	trade, err := signal.Parse(msg.Text, b.riskFactor)
	if err != nil {
		b.logger.Error().Err(err).Msg("Signal rejected")
		b.send(ctx, msg.Chat.ID, fmt.Sprintf(
			"There was an error processing this trade 😕\n\nError: %v\n\nPlease make sure your signal format is correct.", err), false)
		return
	}
	logging.LogSignal(b.logger, string(trade.OrderType), trade.Symbol, len(trade.TakeProfits))

	sender := &chatSender{bot: b, chatID: msg.Chat.ID}
	if _, err := b.trader.Execute(ctx, *trade, sender, true); err != nil {
		b.logger.Error().Err(err).Msg("Trade execution failed")
		b.send(ctx, msg.Chat.ID, fmt.Sprintf(
			"There was an issue with the connection 😕\n\nError Message:\n%v", err), false)
	}
}

// chatSender delivers executor progress messages to the originating chat.
type chatSender struct {
	bot    *Bot
	chatID int64
}

func (s *chatSender) Reply(ctx context.Context, text string) error {
	return s.bot.sendMessage(ctx, s.chatID, text, false)
}

func (s *chatSender) ReplyHTML(ctx context.Context, html string) error {
	return s.bot.sendMessage(ctx, s.chatID, html, true)
}

// send is sendMessage with delivery failures logged instead of returned.
func (b *Bot) send(ctx context.Context, chatID int64, text string, html bool) {
	if err := b.sendMessage(ctx, chatID, text, html); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to send message")
	}
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string, html bool) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if html {
		payload["parse_mode"] = "HTML"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.apiURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	From      *user  `json:"from"`
	Chat      chat   `json:"chat"`
}

type user struct {
	Username string `json:"username"`
}

type chat struct {
	ID int64 `json:"id"`
}

func (b *Bot) getUpdates(ctx context.Context) ([]update, error) {
	url := fmt.Sprintf("%s/getUpdates?offset=%d&timeout=%d", b.apiURL, b.offset, int(b.pollTimeout.Seconds()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating updates request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	var result struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding updates: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram API reported not ok")
	}
	return result.Result, nil
}
