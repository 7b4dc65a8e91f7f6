package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a lower-case currency code such as "btc" or "eur".
type Currency string

func (c Currency) Upper() string { return strings.ToUpper(string(c)) }

// Direction of an offer as seen by its maker.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Side selects one of the two ranked lists of a market's order book.
type Side string

const (
	SideBuys  Side = "buys"
	SideSells Side = "sells"
)

// Market is an ordered (quote, base) currency pair. Two markets with swapped
// currencies are distinct.
type Market struct {
	Quote Currency
	Base  Currency
}

// ParseMarket parses the canonical "quote_base" form.
func ParseMarket(s string) (Market, error) {
	quote, base, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "_")
	if !ok || quote == "" || base == "" {
		return Market{}, fmt.Errorf("invalid market %q (want quote_base)", s)
	}
	return Market{Quote: Currency(quote), Base: Currency(base)}, nil
}

// String renders the canonical "quote_base" form.
func (m Market) String() string {
	return string(m.Quote) + "_" + string(m.Base)
}

// Label renders the display form, e.g. "BTC/EUR".
func (m Market) Label() string {
	return m.Quote.Upper() + "/" + m.Base.Upper()
}

// Offer is one immutable order-book entry. Amount and MinAmount are in
// quote-currency units, Volume in base-currency units, Price in base per quote.
// Invariant: MinAmount <= Amount.
type Offer struct {
	ID            string
	Direction     Direction
	Amount        decimal.Decimal
	MinAmount     decimal.Decimal
	Volume        decimal.Decimal
	Price         decimal.Decimal
	PaymentMethod string
}

// ShortID returns the first hyphen-delimited segment of the offer id.
func (o Offer) ShortID() string {
	id, _, _ := strings.Cut(o.ID, "-")
	return id
}

// OrderBook holds both ranked offer lists of one market. Ranking order comes
// from the upstream source and is never re-sorted here.
type OrderBook struct {
	Buys  []Offer
	Sells []Offer
}

// Side returns the ranked list for the given side.
func (b OrderBook) Side(s Side) []Offer {
	if s == SideBuys {
		return b.Buys
	}
	return b.Sells
}

// Snapshot is one internally consistent view of all tracked markets' order
// books and reference mid-prices. It is replaced wholesale on each refresh and
// must never be mutated after publication.
type Snapshot struct {
	Books     map[Market]OrderBook
	Prices    map[Market]float64
	FetchedAt time.Time
}

// Book returns the order book for a market, if present.
func (s *Snapshot) Book(m Market) (OrderBook, bool) {
	b, ok := s.Books[m]
	return b, ok
}

// ReferencePrice returns the reference mid-price for a market. Absence is an
// expected condition, not an error.
func (s *Snapshot) ReferencePrice(m Market) (float64, bool) {
	p, ok := s.Prices[m]
	return p, ok && p != 0
}

// Source supplies the current snapshot. Callers must take the reference once
// per operation; the returned value is immutable.
type Source interface {
	Current() *Snapshot
}
