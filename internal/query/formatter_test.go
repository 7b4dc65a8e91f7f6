package query

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
)

var testIcons = map[market.Direction]string{
	market.DirectionBuy:  "https://icons.example/buy.png",
	market.DirectionSell: "https://icons.example/sell.png",
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func testOffer(t *testing.T) market.Offer {
	return market.Offer{
		ID:            "abc123-9f8e-4711",
		Direction:     market.DirectionBuy,
		Amount:        dec(t, "0.25"),
		MinAmount:     dec(t, "0.1"),
		Volume:        dec(t, "11362.5"),
		Price:         dec(t, "45450"),
		PaymentMethod: "SEPA",
	}
}

func snapWithRef(ref float64) *market.Snapshot {
	return &market.Snapshot{
		Prices: map[market.Market]float64{
			{Quote: "btc", Base: "eur"}: ref,
		},
	}
}

func TestFormatter_Title(t *testing.T) {
	f := NewFormatter(testIcons)
	m := market.Market{Quote: "btc", Base: "eur"}

	title, err := f.Title(testOffer(t), m)
	require.NoError(t, err)
	assert.Equal(t, "You can buy 0.2500 BTC for 11362.50 EUR", title)
}

func TestFormatter_Title_UnknownCurrency(t *testing.T) {
	f := NewFormatter(testIcons)

	_, err := f.Title(testOffer(t), market.Market{Quote: "btc", Base: "jpy"})
	require.Error(t, err)
}

func TestFormatter_Description(t *testing.T) {
	f := NewFormatter(testIcons)
	m := market.Market{Quote: "btc", Base: "eur"}

	// 45450 against a 45000 reference is exactly 1% above.
	desc, err := f.Description(testOffer(t), m, snapWithRef(45000))
	require.NoError(t, err)
	assert.Equal(t, "Use SEPA to buy 0.2500 for 45450.00 per BTC (1.00% above market price)", desc)
}

func TestFormatter_Description_BelowMarket(t *testing.T) {
	f := NewFormatter(testIcons)
	m := market.Market{Quote: "btc", Base: "eur"}

	o := testOffer(t)
	o.Price = dec(t, "44100")

	desc, err := f.Description(o, m, snapWithRef(45000))
	require.NoError(t, err)
	assert.Contains(t, desc, "(2.00% below market price)")
}

func TestFormatter_Description_NoReferencePrice(t *testing.T) {
	f := NewFormatter(testIcons)
	m := market.Market{Quote: "btc", Base: "eur"}

	desc, err := f.Description(testOffer(t), m, &market.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, "Use SEPA to buy 0.2500 for 45450.00 per BTC", desc)
	assert.NotContains(t, desc, "market price")
}

func TestFormatter_LongMessage(t *testing.T) {
	f := NewFormatter(testIcons)
	m := market.Market{Quote: "btc", Base: "eur"}

	msg, err := f.LongMessage(testOffer(t), m, snapWithRef(45000))
	require.NoError(t, err)

	assert.Equal(t, "HTML", msg.ParseMode)
	assert.True(t, msg.DisableWebPagePreview)

	assert.Contains(t, msg.Text, `<b><a href="https://bisq.network">Bisq</a> currently has an offer to buy 0.2500 BTC for 11362.50 EUR</b>`)
	assert.Contains(t, msg.Text, "Price in EUR for 1 BTC: 45450.0000 (1.00% above market)")
	assert.Contains(t, msg.Text, "BTC (min-max): 0.1000-0.2500")
	assert.Contains(t, msg.Text, "EUR (min-max): 4545.00-11362.50")
	assert.Contains(t, msg.Text, "Payment method: SEPA")
	assert.True(t, strings.HasSuffix(msg.Text, "ID: abc123"))
}

func TestFormatter_LongMessage_RangeCollapses(t *testing.T) {
	f := NewFormatter(testIcons)
	m := market.Market{Quote: "btc", Base: "eur"}

	o := testOffer(t)
	o.MinAmount = o.Amount

	msg, err := f.LongMessage(o, m, snapWithRef(45000))
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "BTC (min-max): 0.2500\n")
	assert.Contains(t, msg.Text, "EUR (min-max): 11362.50\n")
	assert.NotContains(t, msg.Text, "0.2500-0.2500")
}

func TestFormatter_LongMessage_UnknownPaymentMethod(t *testing.T) {
	f := NewFormatter(testIcons)
	m := market.Market{Quote: "btc", Base: "eur"}

	o := testOffer(t)
	o.PaymentMethod = "CARRIER_PIGEON"

	_, err := f.LongMessage(o, m, snapWithRef(45000))
	require.Error(t, err)
}

func TestFormatter_AlertMessage(t *testing.T) {
	f := NewFormatter(testIcons)
	m := market.Market{Quote: "btc", Base: "eur"}

	o := testOffer(t)
	o.Direction = market.DirectionSell
	o.Price = dec(t, "44100")

	text, err := f.AlertMessage(o, m, 45000, 0.02)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(text, "❇️"))
	assert.Contains(t, text, "<b>2.00% lower than market price BTC available on")
	assert.Contains(t, text, "Price in EUR for 1 BTC: 44100.0000 (current market price: 45000)")
	assert.True(t, strings.HasSuffix(text, "Offer ID: abc123"))
}

func TestFormatter_ThumbURL(t *testing.T) {
	f := NewFormatter(testIcons)
	assert.Equal(t, "https://icons.example/buy.png", f.ThumbURL(market.DirectionBuy))
	assert.Equal(t, "https://icons.example/sell.png", f.ThumbURL(market.DirectionSell))
}

func TestDeviation(t *testing.T) {
	pct, above := deviation(decimal.NewFromInt(45450), 45000)
	assert.Equal(t, "1.00%", pct)
	assert.True(t, above)

	pct, above = deviation(decimal.NewFromInt(44550), 45000)
	assert.Equal(t, "1.00%", pct)
	assert.False(t, above)

	pct, above = deviation(decimal.NewFromInt(45000), 45000)
	assert.Equal(t, "0.00%", pct)
	assert.False(t, above)
}
