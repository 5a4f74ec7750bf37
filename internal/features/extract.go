// Package features converts raw pair records into the fixed six-field vector
// consumed by the heuristic scorer and the classifier.
package features

import "pumpwatch/internal/feed"

// Reserved feature slots. Whale concentration and social hype are not derived
// from the feed yet; the constants keep the vector shape and the training
// schema stable until real signals land.
const (
	WhalePlaceholder = 0.25
	HypePlaceholder  = 300
)

// Vector is the immutable per-pair feature vector.
type Vector struct {
	VSR   float64 `json:"vsr"`   // 5m/1h volume spike ratio
	BP    float64 `json:"bp"`    // buy/sell pressure
	Liq   float64 `json:"liq"`   // pool liquidity in USD
	Txns  int     `json:"txns"`  // buys + sells in the 5m window
	Whale float64 `json:"whale"` // reserved
	Hype  float64 `json:"hype"`  // reserved
}

// Values returns the vector as an ordered slice matching the training schema.
func (v Vector) Values() []float64 {
	return []float64{v.VSR, v.BP, v.Liq, float64(v.Txns), v.Whale, v.Hype}
}

// Extract derives a feature vector from one raw pair record. It reports false
// when the record should be skipped: liquidity missing or below the floor.
// Every other missing field resolves to a safe default, never to an error.
func Extract(p feed.Pair, liquidityFloor float64) (Vector, bool) {
	if p.Liquidity == nil || p.Liquidity.USD == nil {
		return Vector{}, false
	}
	liq := *p.Liquidity.USD
	if liq < liquidityFloor {
		return Vector{}, false
	}

	v5 := 0.0
	v1 := 1.0
	if p.Volume != nil {
		if p.Volume.M5 != nil {
			v5 = max(*p.Volume.M5, 0)
		}
		if p.Volume.H1 != nil {
			v1 = *p.Volume.H1
		}
	}
	vsr := 0.0
	if v1 > 0 {
		vsr = v5 / v1
	}

	buys := 0
	sells := 1
	if p.Txns != nil && p.Txns.M5 != nil {
		if p.Txns.M5.Buys != nil {
			buys = max(*p.Txns.M5.Buys, 0)
		}
		if p.Txns.M5.Sells != nil {
			sells = max(*p.Txns.M5.Sells, 0)
		}
	}
	bp := float64(buys)
	if sells > 0 {
		bp = float64(buys) / float64(sells)
	}

	return Vector{
		VSR:   vsr,
		BP:    bp,
		Liq:   liq,
		Txns:  buys + sells,
		Whale: WhalePlaceholder,
		Hype:  HypePlaceholder,
	}, true
}

// Symbol returns the base token symbol or "UNKNOWN" when absent.
func Symbol(p feed.Pair) string {
	if p.BaseToken == nil || p.BaseToken.Symbol == "" {
		return "UNKNOWN"
	}
	return p.BaseToken.Symbol
}

// Chain returns the chain identifier or "UNKNOWN" when absent.
func Chain(p feed.Pair) string {
	if p.ChainID == "" {
		return "UNKNOWN"
	}
	return p.ChainID
}

// Price returns the quoted USD price string or "N/A" when absent.
func Price(p feed.Pair) string {
	if p.PriceUsd == "" {
		return "N/A"
	}
	return p.PriceUsd
}

// Volume24h returns the 24h volume or 0 when absent.
func Volume24h(p feed.Pair) float64 {
	if p.Volume == nil || p.Volume.H24 == nil {
		return 0
	}
	return *p.Volume.H24
}
