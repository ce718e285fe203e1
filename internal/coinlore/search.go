package coinlore

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/KrzysztofLuczakDev/crypto-list-watch/internal/domain"
)

// Relevance scores. Exact matches outrank prefix matches, which outrank
// substring matches; within each band name beats symbol beats nameid.
const (
	scoreExactName      = 1000
	scoreExactSymbol    = 900
	scoreExactNameid    = 850
	scorePrefixName     = 800
	scorePrefixSymbol   = 700
	scorePrefixNameid   = 650
	scoreContainsName   = 500
	scoreContainsSymbol = 400
	scoreContainsNameid = 350

	unrankedFallback = 1000
)

// Search finds coins matching the query. CoinLore has no dedicated
// search endpoint, so this bulk-fetches one large ranking page and
// scores matches locally, boosting higher-ranked coins.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Coin, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []domain.Coin{}, nil
	}

	coins, _, err := c.FetchTop(ctx, 0, c.cfg.FavoritesScanSize)
	if err != nil {
		return nil, err
	}

	type scored struct {
		coin  domain.Coin
		score int
	}
	results := make([]scored, 0, 16)

	for _, coin := range coins {
		score := matchScore(coin, q)
		if score == 0 {
			continue
		}
		// Boost higher-ranked coins so "bit" surfaces Bitcoin before
		// obscure lookalikes.
		boost := 100 - coin.Rank(unrankedFallback)
		if boost > 0 {
			score += boost
		}
		results = append(results, scored{coin: coin, score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if len(results) > c.cfg.MaxSearchResults {
		results = results[:c.cfg.MaxSearchResults]
	}

	out := make([]domain.Coin, 0, len(results))
	for _, r := range results {
		out = append(out, r.coin)
	}

	slog.Debug("Search completed", slog.String("query", q), slog.Int("results", len(out)))
	return out, nil
}

func matchScore(coin domain.Coin, q string) int {
	name := strings.ToLower(coin.Name)
	symbol := strings.ToLower(coin.Symbol)
	nameid := strings.ToLower(coin.Nameid)

	switch {
	case name == q:
		return scoreExactName
	case symbol == q:
		return scoreExactSymbol
	case nameid == q:
		return scoreExactNameid
	case strings.HasPrefix(name, q):
		return scorePrefixName
	case strings.HasPrefix(symbol, q):
		return scorePrefixSymbol
	case strings.HasPrefix(nameid, q):
		return scorePrefixNameid
	case strings.Contains(name, q):
		return scoreContainsName
	case strings.Contains(symbol, q):
		return scoreContainsSymbol
	case strings.Contains(nameid, q):
		return scoreContainsNameid
	}
	return 0
}
