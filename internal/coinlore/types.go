package coinlore

import (
	"strconv"
	"strings"

	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/domain"
)

// tickersResponse is the paginated /tickers/ payload. The info block
// carries the provider's total coin count, which drives pagination.
type tickersResponse struct {
	Data []ticker `json:"data"`
	Info struct {
		CoinsNum int   `json:"coins_num"`
		Time     int64 `json:"time"`
	} `json:"info"`
}

// ticker is a single market row as CoinLore encodes it: most numeric
// fields arrive as strings.
type ticker struct {
	ID               string  `json:"id"`
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	Nameid           string  `json:"nameid"`
	Rank             int     `json:"rank"`
	PriceUSD         string  `json:"price_usd"`
	PercentChange24h string  `json:"percent_change_24h"`
	PercentChange1h  string  `json:"percent_change_1h"`
	PercentChange7d  string  `json:"percent_change_7d"`
	PriceBTC         string  `json:"price_btc"`
	MarketCapUSD     string  `json:"market_cap_usd"`
	Volume24         float64 `json:"volume24"`
	Csupply          string  `json:"csupply"`
	Tsupply          *string `json:"tsupply"`
	Msupply          *string `json:"msupply"`
}

// toCoin decodes the stringly-typed ticker into a Coin. An unparseable
// price becomes 0; optional fields stay nil when absent or malformed.
func (t ticker) toCoin() domain.Coin {
	c := domain.Coin{
		ID:       t.ID,
		Nameid:   t.Nameid,
		Symbol:   strings.ToUpper(t.Symbol),
		Name:     t.Name,
		PriceUSD: parseFloatOrZero(t.PriceUSD),
	}

	rank := t.Rank
	c.MarketCapRank = &rank

	if v, err := strconv.ParseFloat(t.MarketCapUSD, 64); err == nil {
		c.MarketCapUSD = &v
	}
	if v, err := strconv.ParseFloat(t.PercentChange24h, 64); err == nil {
		c.PercentChange24 = &v
	}
	vol := t.Volume24
	c.Volume24 = &vol

	return c
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func toCoins(tickers []ticker) []domain.Coin {
	coins := make([]domain.Coin, 0, len(tickers))
	for _, t := range tickers {
		coins = append(coins, t.toCoin())
	}
	return coins
}
