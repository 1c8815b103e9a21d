package rates

import "strings"

// coinIDs maps currency codes to crypto price source ids.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"SOL":   "solana",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"TRX":   "tron",
	"TON":   "the-open-network",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"SHIB":  "shiba-inu",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"BCH":   "bitcoin-cash",
	"XLM":   "stellar",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"XMR":   "monero",
	"ETC":   "ethereum-classic",
	"DAI":   "dai",
	"FIL":   "filecoin",
	"HBAR":  "hedera-hashgraph",
	"APT":   "aptos",
	"ARB":   "arbitrum",
	"OP":    "optimism",
	"NEAR":  "near",
	"VET":   "vechain",
	"ICP":   "internet-computer",
	"ALGO":  "algorand",
	"AAVE":  "aave",
	"MKR":   "maker",
	"GRT":   "the-graph",
	"SAND":  "the-sandbox",
	"MANA":  "decentraland",
	"AXS":   "axie-infinity",
	"EGLD":  "elrond-erd-2",
	"XTZ":   "tezos",
	"EOS":   "eos",
	"THETA": "theta-token",
	"FTM":   "fantom",
	"KAS":   "kaspa",
	"SUI":   "sui",
	"INJ":   "injective-protocol",
	"RNDR":  "render-token",
	"IMX":   "immutable-x",
	"STX":   "blockstack",
	"PEPE":  "pepe",
	"CRO":   "crypto-com-chain",
	"QNT":   "quant-network",
	"FLOW":  "flow",
	"CHZ":   "chiliz",
	"ZEC":   "zcash",
	"DASH":  "dash",
	"NEO":   "neo",
	"KSM":   "kusama",
	"CAKE":  "pancakeswap-token",
	"WBTC":  "wrapped-bitcoin",
}

var codesByCoinID = invert(coinIDs)

// CoinID returns the price source id for a crypto currency code.
func CoinID(code string) (string, bool) {
	id, ok := coinIDs[strings.ToUpper(code)]
	return id, ok
}

// CodeForCoinID is the inverse of CoinID.
func CodeForCoinID(id string) (string, bool) {
	code, ok := codesByCoinID[strings.ToLower(id)]
	return code, ok
}

func invert(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
