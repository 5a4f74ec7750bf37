package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pumpwatch/internal/score"
	"pumpwatch/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSignal() storage.Signal {
	return storage.Signal{
		Token:        "MEME",
		Chain:        "solana",
		Price:        "0.0042",
		Score:        73,
		Probability:  75,
		Momentum:     score.MomentumStrong,
		LiquidityUSD: 50000,
		Volume24h:    120000,
		URL:          "https://dexscreener.com/solana/abc",
		Timestamp:    time.Now().UTC(),
	}
}

func TestFormatMessage(t *testing.T) {
	msg := FormatMessage(sampleSignal())

	for _, want := range []string{
		"MEME | solana",
		"Price: $0.0042",
		"Pump Score: 73",
		"AI Probability: 75%",
		"Momentum: STRONG",
		"Liquidity: $50000",
		"24h Volume: $120000",
		"https://dexscreener.com/solana/abc",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestFormatMessage_OmitsEmptyURL(t *testing.T) {
	sig := sampleSignal()
	sig.URL = ""
	assert.NotContains(t, FormatMessage(sig), "https://")
}

func TestTelegram_Send(t *testing.T) {
	var got struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/test-token/sendMessage"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("test-token", "chat-1", time.Second)
	tg.apiBase = srv.URL + "/bot/"

	require.NoError(t, tg.Send(context.Background(), sampleSignal()))
	assert.Equal(t, "chat-1", got.ChatID)
	assert.Contains(t, got.Text, "MEME | solana")
}

func TestTelegram_SendAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegram("test-token", "chat-1", time.Second)
	tg.apiBase = srv.URL + "/bot"

	err := tg.Send(context.Background(), sampleSignal())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestLogNotifier_AlwaysSucceeds(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Send(context.Background(), sampleSignal()))
}
