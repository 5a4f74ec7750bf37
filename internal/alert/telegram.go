// Package alert delivers emitted signals to a Telegram chat through the bot
// API. Delivery is best-effort: the scanner persists the signal regardless of
// the outcome here.
package alert

import (
	"context"
	"fmt"
	"time"

	"pumpwatch/internal/storage"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const telegramAPIURL = "https://api.telegram.org/bot"

// Notifier is the sink signals are pushed into.
type Notifier interface {
	Send(ctx context.Context, sig storage.Signal) error
}

// Telegram sends signal messages via the Telegram bot sendMessage endpoint.
type Telegram struct {
	token   string
	chatID  string
	apiBase string
	rest    *resty.Client
}

type sendMessageReq struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResp struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegram builds a notifier for the given bot token and chat.
func NewTelegram(token, chatID string, timeout time.Duration) *Telegram {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	return &Telegram{token: token, chatID: chatID, apiBase: telegramAPIURL, rest: r}
}

// Send posts one signal message. Non-200 responses and API-level failures are
// returned as errors; the caller decides whether they matter.
func (t *Telegram) Send(ctx context.Context, sig storage.Signal) error {
	body := sendMessageReq{
		ChatID: t.chatID,
		Text:   FormatMessage(sig),
	}

	result := &sendMessageResp{}
	resp, err := t.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		SetError(result).
		Post(t.apiBase + t.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	if resp.StatusCode() != 200 || !result.OK {
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode(), result.Description)
	}
	return nil
}

// FormatMessage renders the alert text for one signal.
func FormatMessage(sig storage.Signal) string {
	msg := fmt.Sprintf(
		"MEME PUMP SIGNAL\n\n%s | %s\nPrice: $%s\n\nPump Score: %d\nAI Probability: %d%%\n\nMomentum: %s\nLiquidity: $%.0f\n24h Volume: $%.0f",
		sig.Token, sig.Chain, sig.Price, sig.Score, sig.Probability, sig.Momentum, sig.LiquidityUSD, sig.Volume24h,
	)
	if sig.URL != "" {
		msg += "\n" + sig.URL
	}
	return msg
}

// LogNotifier is the dry-run sink: it logs the signal instead of delivering
// it anywhere.
type LogNotifier struct{}

// Send logs the signal and always succeeds.
func (LogNotifier) Send(_ context.Context, sig storage.Signal) error {
	log.Info().
		Str("token", sig.Token).
		Str("chain", sig.Chain).
		Int("score", sig.Score).
		Int("probability", sig.Probability).
		Str("momentum", string(sig.Momentum)).
		Msg("dry-run signal")
	return nil
}
