package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pumpwatch/internal/score"
	"pumpwatch/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	signals []storage.Signal
	err     error
}

func (f *fakeReader) RecentSignals(n int) ([]storage.Signal, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.signals) > n {
		return f.signals[:n], nil
	}
	return f.signals, nil
}

func sampleSignals() []storage.Signal {
	return []storage.Signal{
		{
			Token: "MEME", Chain: "solana", Price: "0.0042",
			Score: 73, Probability: 75, Momentum: score.MomentumStrong,
			LiquidityUSD: 50000, Volume24h: 120000,
			Timestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestIndex_RendersSignalTable(t *testing.T) {
	d := New(&fakeReader{signals: sampleSignals()}, 5000)

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "MEME")
	assert.Contains(t, body, "75%")
	assert.Contains(t, body, "STRONG")
	assert.Contains(t, body, "$50000")
}

func TestIndex_EmptyLog(t *testing.T) {
	d := New(&fakeReader{}, 5000)

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No signals yet")
}

func TestAPISignals_ReturnsJSON(t *testing.T) {
	d := New(&fakeReader{signals: sampleSignals()}, 5000)

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []storage.Signal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "MEME", got[0].Token)
}

func TestAPISignals_EmptyLogIsEmptyArray(t *testing.T) {
	d := New(&fakeReader{}, 5000)

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/signals", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestIndex_StoreErrorIs500(t *testing.T) {
	d := New(&fakeReader{err: errors.New("db closed")}, 5000)

	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
