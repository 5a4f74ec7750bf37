// Package feed implements the market-data client for the dexscreener pairs API.
// Every field of a pair record is optional on the wire; callers must treat the
// raw record as loosely shaped and apply their own defaulting.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// TokenInfo identifies the base token of a pair.
type TokenInfo struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Liquidity holds pool liquidity figures. USD is a pointer because the feed
// omits it for thin pairs and a missing value must be distinguishable from 0.
type Liquidity struct {
	USD   *float64 `json:"usd"`
	Base  *float64 `json:"base"`
	Quote *float64 `json:"quote"`
}

// VolumeWindows holds rolling trade volume per lookback window.
type VolumeWindows struct {
	M5  *float64 `json:"m5"`
	H1  *float64 `json:"h1"`
	H6  *float64 `json:"h6"`
	H24 *float64 `json:"h24"`
}

// TxnCounts holds buy/sell transaction counts for one window.
type TxnCounts struct {
	Buys  *int `json:"buys"`
	Sells *int `json:"sells"`
}

// TxnWindows holds transaction counts per lookback window.
type TxnWindows struct {
	M5  *TxnCounts `json:"m5"`
	H1  *TxnCounts `json:"h1"`
	H24 *TxnCounts `json:"h24"`
}

// Pair is one raw feed record. Any of its sub-objects may be absent.
type Pair struct {
	ChainID     string         `json:"chainId"`
	PairAddress string         `json:"pairAddress"`
	URL         string         `json:"url"`
	PriceUsd    string         `json:"priceUsd"`
	BaseToken   *TokenInfo     `json:"baseToken"`
	Liquidity   *Liquidity     `json:"liquidity"`
	Volume      *VolumeWindows `json:"volume"`
	Txns        *TxnWindows    `json:"txns"`
}

// pairsResponse is the top-level payload. Pairs stays nil when the field is
// missing entirely, which callers treat as a malformed payload.
type pairsResponse struct {
	Pairs *[]Pair `json:"pairs"`
}

// Client fetches pair records over HTTP with a bounded timeout.
type Client struct {
	url  string
	rest *resty.Client
}

// NewClient builds a feed client for the given pairs endpoint URL.
func NewClient(url string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	return &Client{url: url, rest: r}
}

// FetchPairs performs one GET against the pairs endpoint. It returns an error
// on network failure, non-200 status, or a payload without a pairs array; all
// of these are transient from the caller's point of view.
func (c *Client) FetchPairs(ctx context.Context) ([]Pair, error) {
	var payload pairsResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&payload).
		Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode())
	}
	if payload.Pairs == nil {
		return nil, fmt.Errorf("feed payload missing pairs array")
	}
	return *payload.Pairs, nil
}
