package query

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
)

// ResolverConfig is the static configuration the resolver consumes.
type ResolverConfig struct {
	// Markets is the full tracked market list, in answer order.
	Markets []market.Market
	// SampleMarkets get their top offers appended to the empty-query answer.
	SampleMarkets []market.Market
}

// Resolver turns one query string and one snapshot into a bounded result list.
// It holds no state between queries and is safe to invoke concurrently against
// a shared snapshot reference.
type Resolver struct {
	cfg       ResolverConfig
	matcher   *Matcher
	formatter *Formatter
	logger    *zap.SugaredLogger
}

func NewResolver(cfg ResolverConfig, formatter *Formatter, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{
		cfg:       cfg,
		matcher:   NewMatcher(cfg.Markets),
		formatter: formatter,
		logger:    logger,
	}
}

// Resolve runs the full query pipeline: tokenize, match, select, render.
// Malformed offers are skipped at item granularity; nothing here fails the
// whole query.
func (r *Resolver) Resolve(snap *market.Snapshot, rawQuery string) []ResultItem {
	rq := r.matcher.Match(strings.Fields(rawQuery))

	if len(rq.Markets) == 0 && len(rq.Filters) == 0 {
		return r.emptyQuery(snap)
	}

	var items []ResultItem
	markets := rq.Markets
	filters := rq.Filters
	if len(filters) == 0 {
		for _, m := range markets {
			if item, ok := r.overview(snap, m); ok {
				items = append(items, item)
			}
		}
		filters = []market.Side{market.SideBuys, market.SideSells}
	}
	if len(markets) == 0 {
		markets = r.cfg.Markets
	}

	for _, m := range markets {
		for _, side := range filters {
			items = append(items, r.walkBook(snap, m, side, PageDepth)...)
		}
	}

	return truncate(items, MaxResults)
}

// walkBook renders up to limit entries of one ranked list, preserving the
// snapshot's own ranking order. Lists shorter than limit are an expected
// boundary condition.
func (r *Resolver) walkBook(snap *market.Snapshot, m market.Market, side market.Side, limit int) []ResultItem {
	book, ok := snap.Book(m)
	if !ok {
		return nil
	}
	offers := book.Side(side)
	if len(offers) > limit {
		offers = offers[:limit]
	}
	var items []ResultItem
	for _, o := range offers {
		item, err := r.offerItem(o, m, snap)
		if err != nil {
			r.logger.Warnw("Skipping malformed offer", "market", m.String(), "offer_id", o.ID, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items
}

// emptyQuery is the canonical "no input" answer: one overview per configured
// market plus a small sample of top offers for the sample markets.
func (r *Resolver) emptyQuery(snap *market.Snapshot) []ResultItem {
	var items []ResultItem
	for _, m := range r.cfg.Markets {
		if item, ok := r.overview(snap, m); ok {
			items = append(items, item)
		}
	}
	for _, m := range r.cfg.SampleMarkets {
		for _, side := range []market.Side{market.SideBuys, market.SideSells} {
			items = append(items, r.walkBook(snap, m, side, 1)...)
		}
	}
	return truncate(items, MaxResults)
}

// overview summarizes one market from the second-ranked entry of each side.
// Skipping the top-of-book entry is deliberate; it tends to be noise or
// self-trades. Markets with fewer than two entries on either side have no
// overview.
func (r *Resolver) overview(snap *market.Snapshot, m market.Market) (ResultItem, bool) {
	book, ok := snap.Book(m)
	if !ok || len(book.Buys) < 2 || len(book.Sells) < 2 {
		return ResultItem{}, false
	}
	bestBuy, bestSell := book.Buys[1], book.Sells[1]

	sellLine, err := r.overviewLine(bestSell, m, snap)
	if err != nil {
		r.logger.Warnw("Skipping market overview", "market", m.String(), "error", err)
		return ResultItem{}, false
	}
	buyLine, err := r.overviewLine(bestBuy, m, snap)
	if err != nil {
		r.logger.Warnw("Skipping market overview", "market", m.String(), "error", err)
		return ResultItem{}, false
	}

	buyPrice, _ := bestBuy.Price.Float64()
	sellPrice, _ := bestSell.Price.Float64()
	spread := ""
	if sellPrice != 0 {
		spread = fmt.Sprintf("%.2f%%", (1-buyPrice/sellPrice)*100)
	}

	text := fmt.Sprintf("%s\n\n↑ Lowest ask / Spread: %s / Highest bid ↓\n\n%s",
		sellLine, spread, buyLine)

	return ResultItem{
		ID:          resultID("overview" + m.String()),
		Title:       fmt.Sprintf("%s - %d bids / %d asks", m.Label(), len(book.Buys), len(book.Sells)),
		Description: fmt.Sprintf("Overview of the %s Bisq market", m.Label()),
		Message: MessageContent{
			Text:      text,
			ParseMode: "HTML",
		},
	}, true
}

// overviewLine renders one side of the overview body: offer size plus price
// with the optional deviation clause.
func (r *Resolver) overviewLine(o market.Offer, m market.Market, snap *market.Snapshot) (string, error) {
	volume, err := market.FormatAmount(o.Volume, m.Base)
	if err != nil {
		return "", err
	}
	amount, err := market.FormatAmount(o.Amount, m.Quote)
	if err != nil {
		return "", err
	}
	price, err := market.FormatAmount(o.Price, m.Base)
	if err != nil {
		return "", err
	}
	clause := ""
	if ref, ok := snap.ReferencePrice(m); ok {
		pct, above := deviation(o.Price, ref)
		clause = fmt.Sprintf(" (%s %s market)", pct, aboveBelow(above))
	}
	return fmt.Sprintf("Offer size: <b>%s %s</b> / %s %s\nPrice: %s%s",
		volume, m.Base.Upper(), amount, m.Quote.Upper(), price, clause), nil
}

func (r *Resolver) offerItem(o market.Offer, m market.Market, snap *market.Snapshot) (ResultItem, error) {
	title, err := r.formatter.Title(o, m)
	if err != nil {
		return ResultItem{}, err
	}
	desc, err := r.formatter.Description(o, m, snap)
	if err != nil {
		return ResultItem{}, err
	}
	msg, err := r.formatter.LongMessage(o, m, snap)
	if err != nil {
		return ResultItem{}, err
	}
	return ResultItem{
		ID:          resultID(o.ID),
		Title:       title,
		Description: desc,
		Message:     msg,
		ThumbURL:    r.formatter.ThumbURL(o.Direction),
	}, nil
}

func resultID(id string) string {
	if len(id) > maxResultIDLen {
		return id[:maxResultIDLen]
	}
	return id
}

func truncate(items []ResultItem, max int) []ResultItem {
	if len(items) > max {
		return items[:max]
	}
	return items
}
