package core

import (
	"fmt"
	"sort"
	"strings"
)

// PivotCurrency is the currency every cross-currency conversion is routed through.
const PivotCurrency = "USD"

const (
	Fiat   CurrencyKind = "fiat"
	Crypto CurrencyKind = "crypto"
)

type (
	CurrencyKind string

	Currency struct {
		Code   string
		Symbol string
		Name   string
		Kind   CurrencyKind
		IsBase bool // user's default display currency
	}
)

func ParseCurrencyKind(s string) (CurrencyKind, error) {
	switch k := CurrencyKind(strings.ToLower(strings.TrimSpace(s))); k {
	case Fiat, Crypto:
		return k, nil
	default:
		return "", fmt.Errorf("%w: invalid currency kind %q", ErrInvalidArgument, s)
	}
}

// Precision is the number of fractional digits shown for amounts of this kind.
func (k CurrencyKind) Precision() int32 {
	switch k {
	case Crypto:
		return 8
	case Fiat:
		return 2
	default:
		return 2
	}
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Catalog is an immutable code -> currency index.
type Catalog struct {
	byCode map[string]Currency
}

func NewCatalog(currencies []Currency) *Catalog {
	c := &Catalog{byCode: make(map[string]Currency, len(currencies))}
	for _, cur := range currencies {
		cur.Code = NormalizeCode(cur.Code)
		c.byCode[cur.Code] = cur
	}
	return c
}

// Lookup returns the currency for code.
func (c *Catalog) Lookup(code string) (Currency, bool) {
	cur, ok := c.byCode[NormalizeCode(code)]
	return cur, ok
}

// Kind returns the kind of code and whether the code is in the catalog.
func (c *Catalog) Kind(code string) (CurrencyKind, bool) {
	cur, ok := c.Lookup(code)
	return cur.Kind, ok
}

// All returns every currency sorted by kind then code.
func (c *Catalog) All() []Currency {
	out := make([]Currency, 0, len(c.byCode))
	for _, cur := range c.byCode {
		out = append(out, cur)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == Fiat
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func (c *Catalog) Len() int {
	return len(c.byCode)
}

// DefaultCatalog returns the currencies seeded on first start.
func DefaultCatalog() *Catalog {
	currencies := make([]Currency, 0, len(fiatSeed)+len(cryptoSeed))
	for _, s := range fiatSeed {
		currencies = append(currencies, Currency{Code: s[0], Symbol: s[1], Name: s[2], Kind: Fiat, IsBase: s[0] == PivotCurrency})
	}
	for _, s := range cryptoSeed {
		currencies = append(currencies, Currency{Code: s[0], Symbol: s[1], Name: s[2], Kind: Crypto})
	}
	return NewCatalog(currencies)
}

// code, symbol, name
var fiatSeed = [][3]string{
	{"USD", "$", "US Dollar"},
	{"EUR", "€", "Euro"},
	{"GBP", "£", "British Pound"},
	{"JPY", "¥", "Japanese Yen"},
	{"CHF", "CHF", "Swiss Franc"},
	{"CAD", "C$", "Canadian Dollar"},
	{"AUD", "A$", "Australian Dollar"},
	{"NZD", "NZ$", "New Zealand Dollar"},
	{"CNY", "¥", "Chinese Yuan"},
	{"HKD", "HK$", "Hong Kong Dollar"},
	{"SGD", "S$", "Singapore Dollar"},
	{"INR", "₹", "Indian Rupee"},
	{"KRW", "₩", "South Korean Won"},
	{"BRL", "R$", "Brazilian Real"},
	{"MXN", "MX$", "Mexican Peso"},
	{"ARS", "AR$", "Argentine Peso"},
	{"SEK", "kr", "Swedish Krona"},
	{"NOK", "kr", "Norwegian Krone"},
	{"DKK", "kr", "Danish Krone"},
	{"PLN", "zł", "Polish Zloty"},
	{"CZK", "Kč", "Czech Koruna"},
	{"HUF", "Ft", "Hungarian Forint"},
	{"RON", "lei", "Romanian Leu"},
	{"TRY", "₺", "Turkish Lira"},
	{"UAH", "₴", "Ukrainian Hryvnia"},
	{"ILS", "₪", "Israeli New Shekel"},
	{"AED", "د.إ", "UAE Dirham"},
	{"SAR", "﷼", "Saudi Riyal"},
	{"ZAR", "R", "South African Rand"},
	{"KES", "KSh", "Kenyan Shilling"},
	{"NGN", "₦", "Nigerian Naira"},
	{"EGP", "E£", "Egyptian Pound"},
	{"THB", "฿", "Thai Baht"},
	{"IDR", "Rp", "Indonesian Rupiah"},
	{"MYR", "RM", "Malaysian Ringgit"},
	{"PHP", "₱", "Philippine Peso"},
	{"VND", "₫", "Vietnamese Dong"},
	{"TWD", "NT$", "New Taiwan Dollar"},
}

var cryptoSeed = [][3]string{
	{"BTC", "₿", "Bitcoin"},
	{"ETH", "Ξ", "Ethereum"},
	{"USDT", "₮", "Tether"},
	{"USDC", "USDC", "USD Coin"},
	{"BNB", "BNB", "BNB"},
	{"XRP", "XRP", "XRP"},
	{"SOL", "SOL", "Solana"},
	{"ADA", "₳", "Cardano"},
	{"DOGE", "Ð", "Dogecoin"},
	{"TRX", "TRX", "TRON"},
	{"TON", "TON", "Toncoin"},
	{"DOT", "DOT", "Polkadot"},
	{"MATIC", "MATIC", "Polygon"},
	{"LTC", "Ł", "Litecoin"},
	{"SHIB", "SHIB", "Shiba Inu"},
	{"AVAX", "AVAX", "Avalanche"},
	{"LINK", "LINK", "Chainlink"},
	{"BCH", "BCH", "Bitcoin Cash"},
	{"XLM", "XLM", "Stellar"},
	{"UNI", "UNI", "Uniswap"},
	{"ATOM", "ATOM", "Cosmos"},
	{"XMR", "ɱ", "Monero"},
	{"ETC", "ETC", "Ethereum Classic"},
	{"DAI", "DAI", "Dai"},
	{"FIL", "FIL", "Filecoin"},
	{"HBAR", "HBAR", "Hedera"},
	{"APT", "APT", "Aptos"},
	{"ARB", "ARB", "Arbitrum"},
	{"OP", "OP", "Optimism"},
	{"NEAR", "NEAR", "NEAR Protocol"},
	{"VET", "VET", "VeChain"},
	{"ICP", "ICP", "Internet Computer"},
	{"ALGO", "ALGO", "Algorand"},
	{"AAVE", "AAVE", "Aave"},
	{"MKR", "MKR", "Maker"},
	{"GRT", "GRT", "The Graph"},
	{"SAND", "SAND", "The Sandbox"},
	{"MANA", "MANA", "Decentraland"},
	{"AXS", "AXS", "Axie Infinity"},
	{"EGLD", "EGLD", "MultiversX"},
	{"XTZ", "XTZ", "Tezos"},
	{"EOS", "EOS", "EOS"},
	{"THETA", "THETA", "Theta Network"},
	{"FTM", "FTM", "Fantom"},
	{"KAS", "KAS", "Kaspa"},
	{"SUI", "SUI", "Sui"},
	{"INJ", "INJ", "Injective"},
	{"RNDR", "RNDR", "Render"},
	{"IMX", "IMX", "Immutable"},
	{"STX", "STX", "Stacks"},
	{"PEPE", "PEPE", "Pepe"},
	{"CRO", "CRO", "Cronos"},
	{"QNT", "QNT", "Quant"},
	{"FLOW", "FLOW", "Flow"},
	{"CHZ", "CHZ", "Chiliz"},
	{"ZEC", "ZEC", "Zcash"},
	{"DASH", "DASH", "Dash"},
	{"NEO", "NEO", "Neo"},
	{"KSM", "KSM", "Kusama"},
	{"CAKE", "CAKE", "PancakeSwap"},
	{"WBTC", "WBTC", "Wrapped Bitcoin"},
}
