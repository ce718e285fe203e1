package domain

import "time"

// Currency is a display-currency preference. Values are lowercase
// ISO-ish codes matching the exchange-rate API keys; a handful of
// crypto tickers are allowed as display currencies too.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyEUR Currency = "eur"
	CurrencyGBP Currency = "gbp"
	CurrencyJPY Currency = "jpy"
	CurrencyCAD Currency = "cad"
	CurrencyAUD Currency = "aud"
	CurrencyCHF Currency = "chf"
	CurrencyCNY Currency = "cny"
	CurrencyNOK Currency = "nok"
	CurrencySEK Currency = "sek"
	CurrencyDKK Currency = "dkk"
	CurrencyPLN Currency = "pln"
	CurrencyCZK Currency = "czk"
	CurrencyHUF Currency = "huf"
	CurrencyRON Currency = "ron"
	CurrencyBGN Currency = "bgn"
	CurrencyHRK Currency = "hrk"
	CurrencyRSD Currency = "rsd"
	CurrencyISK Currency = "isk"
	CurrencyTRY Currency = "try"
	CurrencyRUB Currency = "rub"
	CurrencyUAH Currency = "uah"

	CurrencyBTC Currency = "btc"
	CurrencyETH Currency = "eth"
	CurrencyBNB Currency = "bnb"
	CurrencyADA Currency = "ada"
	CurrencyDOT Currency = "dot"
	CurrencySOL Currency = "sol"
)

var allCurrencies = []Currency{
	CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyJPY, CurrencyCAD,
	CurrencyAUD, CurrencyCHF, CurrencyCNY, CurrencyNOK, CurrencySEK,
	CurrencyDKK, CurrencyPLN, CurrencyCZK, CurrencyHUF, CurrencyRON,
	CurrencyBGN, CurrencyHRK, CurrencyRSD, CurrencyISK, CurrencyTRY,
	CurrencyRUB, CurrencyUAH,
	CurrencyBTC, CurrencyETH, CurrencyBNB, CurrencyADA, CurrencyDOT,
	CurrencySOL,
}

var currencySymbols = map[Currency]string{
	CurrencyUSD: "$", CurrencyEUR: "€", CurrencyGBP: "£", CurrencyJPY: "¥",
	CurrencyCAD: "C$", CurrencyAUD: "A$", CurrencyCHF: "CHF", CurrencyCNY: "¥",
	CurrencyNOK: "kr", CurrencySEK: "kr", CurrencyDKK: "kr", CurrencyPLN: "zł",
	CurrencyCZK: "Kč", CurrencyHUF: "Ft", CurrencyRON: "lei", CurrencyBGN: "лв",
	CurrencyHRK: "kn", CurrencyRSD: "дин", CurrencyISK: "kr", CurrencyTRY: "₺",
	CurrencyRUB: "₽", CurrencyUAH: "₴",
	CurrencyBTC: "₿", CurrencyETH: "Ξ", CurrencyBNB: "BNB", CurrencyADA: "₳",
	CurrencyDOT: "DOT", CurrencySOL: "SOL",
}

// ParseCurrency returns the currency for a stored raw value, defaulting
// to USD for anything unrecognized.
func ParseCurrency(raw string) Currency {
	c := Currency(raw)
	for _, known := range allCurrencies {
		if c == known {
			return c
		}
	}
	return CurrencyUSD
}

// IsCrypto reports whether the display currency is itself a cryptocurrency.
func (c Currency) IsCrypto() bool {
	switch c {
	case CurrencyBTC, CurrencyETH, CurrencyBNB, CurrencyADA, CurrencyDOT, CurrencySOL:
		return true
	}
	return false
}

// DisplayName returns the uppercase code, e.g. "EUR".
func (c Currency) DisplayName() string {
	name := make([]byte, len(c))
	for i := 0; i < len(c); i++ {
		b := c[i]
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		name[i] = b
	}
	return string(name)
}

// Symbol returns the currency glyph, falling back to the display name.
func (c Currency) Symbol() string {
	if s, ok := currencySymbols[c]; ok {
		return s
	}
	return c.DisplayName()
}

// Currencies returns every selectable display currency.
func Currencies() []Currency {
	out := make([]Currency, len(allCurrencies))
	copy(out, allCurrencies)
	return out
}

// RefreshInterval is the auto-refresh cadence preference. The raw value
// is the interval in seconds, except the special "manual" tier which
// never refreshes automatically.
type RefreshInterval string

const (
	RefreshLive          RefreshInterval = "1"
	RefreshThirtySeconds RefreshInterval = "30"
	RefreshOneMinute     RefreshInterval = "60"
	RefreshFiveMinutes   RefreshInterval = "300"
	RefreshManual        RefreshInterval = "manual"
)

// ParseRefreshInterval defaults to the 30-second tier.
func ParseRefreshInterval(raw string) RefreshInterval {
	switch RefreshInterval(raw) {
	case RefreshLive, RefreshThirtySeconds, RefreshOneMinute, RefreshFiveMinutes, RefreshManual:
		return RefreshInterval(raw)
	}
	return RefreshThirtySeconds
}

// Duration returns the tick interval and whether auto-refresh applies.
// The manual tier returns false.
func (r RefreshInterval) Duration() (time.Duration, bool) {
	switch r {
	case RefreshLive:
		return time.Second, true
	case RefreshThirtySeconds:
		return 30 * time.Second, true
	case RefreshOneMinute:
		return time.Minute, true
	case RefreshFiveMinutes:
		return 5 * time.Minute, true
	}
	return 0, false
}

// Live reports whether this is the 1-second tier, where staleness
// checking is bypassed and every tick forces a network call.
func (r RefreshInterval) Live() bool {
	d, ok := r.Duration()
	return ok && d <= time.Second
}

// SortKey orders the favorites list.
type SortKey string

const (
	SortMarketCap    SortKey = "market_cap"
	SortVolume       SortKey = "volume"
	SortPrice        SortKey = "price"
	SortAlphabetical SortKey = "alphabetical"
	SortPriceChange  SortKey = "price_change"
)

// ParseSortKey defaults to market cap.
func ParseSortKey(raw string) SortKey {
	switch SortKey(raw) {
	case SortMarketCap, SortVolume, SortPrice, SortAlphabetical, SortPriceChange:
		return SortKey(raw)
	}
	return SortMarketCap
}
