package domain

import (
	"sort"
	"strings"
)

// Coin is a point-in-time market snapshot of a single cryptocurrency.
// Identity is defined by Nameid: provider-assigned numeric IDs may drift
// between listings, so two snapshots with the same Nameid describe the
// same coin regardless of ID.
type Coin struct {
	ID              string   `json:"id"`
	Nameid          string   `json:"nameid"`
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name"`
	PriceUSD        float64  `json:"price_usd"`
	MarketCapUSD    *float64 `json:"market_cap_usd,omitempty"`
	MarketCapRank   *int     `json:"market_cap_rank,omitempty"`
	PercentChange24 *float64 `json:"percent_change_24h,omitempty"`
	Volume24        *float64 `json:"volume_24h,omitempty"`
}

// Same reports whether two snapshots describe the same coin.
func (c Coin) Same(other Coin) bool {
	return c.Nameid == other.Nameid
}

// Rank returns the market-cap rank, or fallback when unknown.
func (c Coin) Rank(fallback int) int {
	if c.MarketCapRank == nil {
		return fallback
	}
	return *c.MarketCapRank
}

// SortCoins orders coins in place by the given sort key.
// Descending for the numeric keys, ascending for alphabetical.
// The sort is stable so equal keys keep their fetch order.
func SortCoins(coins []Coin, key SortKey) {
	less := func(a, b Coin) bool {
		switch key {
		case SortVolume:
			return deref(a.Volume24) > deref(b.Volume24)
		case SortPrice:
			return a.PriceUSD > b.PriceUSD
		case SortAlphabetical:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case SortPriceChange:
			return deref(a.PercentChange24) > deref(b.PercentChange24)
		default: // SortMarketCap
			return deref(a.MarketCapUSD) > deref(b.MarketCapUSD)
		}
	}
	sort.SliceStable(coins, func(i, j int) bool { return less(coins[i], coins[j]) })
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
