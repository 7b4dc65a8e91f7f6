package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
)

const bisqHomepage = "https://bisq.network"

// Formatter renders offers into titles, descriptions and long-form messages.
// All amounts are rendered fixed-point with exactly the owning currency's
// precision; a missing reference price omits the deviation clause entirely.
type Formatter struct {
	icons map[market.Direction]string
}

func NewFormatter(icons map[market.Direction]string) *Formatter {
	return &Formatter{icons: icons}
}

// Title renders the one-line headline, e.g.
// "You can buy 0.1234 BTC for 123.45 EUR".
func (f *Formatter) Title(o market.Offer, m market.Market) (string, error) {
	amount, err := market.FormatAmount(o.Amount, m.Quote)
	if err != nil {
		return "", err
	}
	volume, err := market.FormatAmount(o.Volume, m.Base)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("You can %s %s %s for %s %s",
		string(o.Direction), amount, m.Quote.Upper(), volume, m.Base.Upper()), nil
}

// Description renders the one-line summary including the deviation clause when
// a reference price exists for the market.
func (f *Formatter) Description(o market.Offer, m market.Market, snap *market.Snapshot) (string, error) {
	label, err := market.PaymentMethodLabel(o.PaymentMethod)
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

	var clause string
	if ref, ok := snap.ReferencePrice(m); ok {
		pct, above := deviation(o.Price, ref)
		clause = fmt.Sprintf(" (%s %s market price)", pct, aboveBelow(above))
	}
	return fmt.Sprintf("Use %s to %s %s for %s per %s%s",
		label, string(o.Direction), amount, price, m.Quote.Upper(), clause), nil
}

// LongMessage renders the rich-text body. Key figures are bold; the Bisq link
// must not unfurl a preview in the transport.
func (f *Formatter) LongMessage(o market.Offer, m market.Market, snap *market.Snapshot) (MessageContent, error) {
	label, err := market.PaymentMethodLabel(o.PaymentMethod)
	if err != nil {
		return MessageContent{}, err
	}
	amount, err := market.FormatAmount(o.Amount, m.Quote)
	if err != nil {
		return MessageContent{}, err
	}
	volume, err := market.FormatAmount(o.Volume, m.Base)
	if err != nil {
		return MessageContent{}, err
	}
	price, err := market.FormatAmount(o.Price, m.Quote)
	if err != nil {
		return MessageContent{}, err
	}
	quoteRange, baseRange, err := f.ranges(o, m)
	if err != nil {
		return MessageContent{}, err
	}

	var clause string
	if ref, ok := snap.ReferencePrice(m); ok {
		pct, above := deviation(o.Price, ref)
		clause = fmt.Sprintf(" (%s %s market)", pct, aboveBelow(above))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b><a href=%q>Bisq</a> currently has an offer to %s %s %s for %s %s</b>\n\n",
		bisqHomepage, string(o.Direction), amount, m.Quote.Upper(), volume, m.Base.Upper())
	fmt.Fprintf(&b, "Price in %s for 1 %s: %s%s\n", m.Base.Upper(), m.Quote.Upper(), price, clause)
	fmt.Fprintf(&b, "%s (min-max): %s\n", m.Quote.Upper(), quoteRange)
	fmt.Fprintf(&b, "%s (min-max): %s\n", m.Base.Upper(), baseRange)
	fmt.Fprintf(&b, "Payment method: %s\n", label)
	fmt.Fprintf(&b, "ID: %s", o.ShortID())

	return MessageContent{
		Text:                  b.String(),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}, nil
}

// ranges renders the quote and base amount ranges. Equal min and max collapse
// to a single value with no dash; the base range is derived from min*price and
// amount*price, each side rounded to its own currency's precision.
func (f *Formatter) ranges(o market.Offer, m market.Market) (quoteRange, baseRange string, err error) {
	minQuote, err := market.FormatAmount(o.MinAmount, m.Quote)
	if err != nil {
		return "", "", err
	}
	minBase, err := market.FormatAmount(o.MinAmount.Mul(o.Price), m.Base)
	if err != nil {
		return "", "", err
	}
	if o.MinAmount.Equal(o.Amount) {
		return minQuote, minBase, nil
	}
	maxQuote, err := market.FormatAmount(o.Amount, m.Quote)
	if err != nil {
		return "", "", err
	}
	maxBase, err := market.FormatAmount(o.Amount.Mul(o.Price), m.Base)
	if err != nil {
		return "", "", err
	}
	return minQuote + "-" + maxQuote, minBase + "-" + maxBase, nil
}

// AlertMessage renders the rich-text body of a below-market alert. percent is
// the (positive) fraction below the reference price; the leading marker row
// scales with it.
func (f *Formatter) AlertMessage(o market.Offer, m market.Market, ref, percent float64) (string, error) {
	label, err := market.PaymentMethodLabel(o.PaymentMethod)
	if err != nil {
		return "", err
	}
	price, err := market.FormatAmount(o.Price, m.Quote)
	if err != nil {
		return "", err
	}
	quoteRange, baseRange, err := f.ranges(o, m)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("❇️", int(math.Round(percent*100))))
	fmt.Fprintf(&b, "<b>%.2f%% lower than market price %s available on <a href=%q>Bisq</a></b>\n\n",
		percent*100, m.Quote.Upper(), bisqHomepage)
	fmt.Fprintf(&b, "Price in %s for 1 %s: %s (current market price: %v)\n", m.Base.Upper(), m.Quote.Upper(), price, ref)
	fmt.Fprintf(&b, "%s (min-max): %s\n", m.Quote.Upper(), quoteRange)
	fmt.Fprintf(&b, "%s (min-max): %s\n", m.Base.Upper(), baseRange)
	fmt.Fprintf(&b, "Payment method: %s\n", label)
	fmt.Fprintf(&b, "Offer ID: %s", o.ShortID())
	return b.String(), nil
}

// ThumbURL picks the direction icon, if one is configured.
func (f *Formatter) ThumbURL(d market.Direction) string {
	return f.icons[d]
}

// deviation computes |1 - price/ref| as a two-digit percent string and whether
// the offer sits above the reference price. The magnitude is always
// non-negative; the direction label is derived separately.
func deviation(price decimal.Decimal, ref float64) (pct string, above bool) {
	p, _ := price.Float64()
	magnitude := math.Abs(1 - p/ref)
	return fmt.Sprintf("%.2f%%", magnitude*100), p > ref
}

func aboveBelow(above bool) string {
	if above {
		return "above"
	}
	return "below"
}
