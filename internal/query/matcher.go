package query

import (
	"strings"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
)

// synonym maps one human phrase to a market. The table is ordered and may map
// the same phrase to several markets ("dollar" is both USD and CAD).
type synonym struct {
	phrase string
	market market.Market
}

var synonymTable = []synonym{
	{"usd", market.Market{Quote: "btc", Base: "usd"}},
	{"dollar", market.Market{Quote: "btc", Base: "usd"}},
	{"euro", market.Market{Quote: "btc", Base: "eur"}},
	{"gbp", market.Market{Quote: "btc", Base: "gbp"}},
	{"pound", market.Market{Quote: "btc", Base: "gbp"}},
	{"british", market.Market{Quote: "btc", Base: "gbp"}},
	{"xmr", market.Market{Quote: "xmr", Base: "btc"}},
	{"monero", market.Market{Quote: "xmr", Base: "btc"}},
	{"bsq", market.Market{Quote: "bsq", Base: "btc"}},
	{"bisq", market.Market{Quote: "bsq", Base: "btc"}},
	{"brl", market.Market{Quote: "btc", Base: "brl"}},
	{"brazilian", market.Market{Quote: "btc", Base: "brl"}},
	{"brasil", market.Market{Quote: "btc", Base: "brl"}},
	{"real", market.Market{Quote: "btc", Base: "brl"}},
	{"dollar", market.Market{Quote: "btc", Base: "cad"}},
	{"canadian", market.Market{Quote: "btc", Base: "cad"}},
	{"canada", market.Market{Quote: "btc", Base: "cad"}},
	{"cad", market.Market{Quote: "btc", Base: "cad"}},
	{"loonie", market.Market{Quote: "btc", Base: "cad"}},
}

// Matcher maps free-text tokens to candidate markets and side filters. It is a
// pure function of the tokens and the static tables.
type Matcher struct {
	markets []market.Market // configured order, used to sort matched candidates
}

func NewMatcher(markets []market.Market) *Matcher {
	return &Matcher{markets: markets}
}

// Match classifies each whitespace token independently and merges the results.
//
// Market rule: a case-folded token matches a synonym when the token is a
// substring of the phrase ("us" matches "usd", "doll" matches "dollar").
// The direction of this test is deliberate: recall is preferred over
// precision because results are suggestions, and reversing it changes matched
// behavior materially.
//
// Side rule: a token adds "buys" when it is a prefix of the keyword "buys" or
// "asks", and "sells" when it is a prefix of "sells" or "bids". Note the side
// rule is a prefix test, not the substring test used for markets.
func (m *Matcher) Match(tokens []string) ResolvedQuery {
	matched := make(map[market.Market]bool)
	var buys, sells bool

	for _, token := range tokens {
		token = strings.ToLower(token)
		for _, syn := range synonymTable {
			if strings.Contains(syn.phrase, token) {
				matched[syn.market] = true
			}
		}
		if strings.HasPrefix("buys", token) || strings.HasPrefix("asks", token) {
			buys = true
		}
		if strings.HasPrefix("sells", token) || strings.HasPrefix("bids", token) {
			sells = true
		}
	}

	var rq ResolvedQuery
	for _, mk := range m.markets {
		if matched[mk] {
			rq.Markets = append(rq.Markets, mk)
		}
	}
	// Candidates outside the configured list still count as matches. They keep
	// synonym-table order after the configured ones.
	for _, syn := range synonymTable {
		if matched[syn.market] && !containsMarket(m.markets, syn.market) && !containsMarket(rq.Markets, syn.market) {
			rq.Markets = append(rq.Markets, syn.market)
		}
	}
	if buys {
		rq.Filters = append(rq.Filters, market.SideBuys)
	}
	if sells {
		rq.Filters = append(rq.Filters, market.SideSells)
	}
	return rq
}

func containsMarket(list []market.Market, mk market.Market) bool {
	for _, m := range list {
		if m == mk {
			return true
		}
	}
	return false
}
