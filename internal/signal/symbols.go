package signal

// MarketSentinel is the literal a sender writes on the entry line to request
// execution at the current market price. It is never a tradable symbol.
const MarketSentinel = "NOW"

// Symbols is the fixed allow-list of instrument codes the bot accepts.
var Symbols = []string{
	"AUDCAD", "AUDCHF", "AUDJPY", "AUDNZD", "AUDUSD",
	"CADCHF", "CADJPY", "CHFJPY",
	"EURAUD", "EURCAD", "EURCHF", "EURGBP", "EURJPY", "EURNZD", "EURUSD",
	"GBPAUD", "GBPCAD", "GBPCHF", "GBPJPY", "GBPNZD", "GBPUSD",
	"NZDCAD", "NZDCHF", "NZDJPY", "NZDUSD",
	"USDCAD", "USDCHF", "USDJPY",
	"XAGUSD", "XAUUSD",
}

var symbolSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Symbols))
	for _, s := range Symbols {
		set[s] = struct{}{}
	}
	return set
}()

// IsTradable reports whether s is an instrument the bot may trade.
// The market sentinel is excluded: it only ever appears as an entry price.
func IsTradable(s string) bool {
	if s == MarketSentinel {
		return false
	}
	_, ok := symbolSet[s]
	return ok
}
