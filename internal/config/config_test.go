package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
)

// load resets the process-wide viper state first; Load leaves array overrides
// behind that would leak between test cases.
func load(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	viper.Reset()
	for k, v := range env {
		t.Setenv(k, v)
	}
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, nil)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 90*time.Second, cfg.Markets.RefreshInterval)
	assert.Equal(t, 180*time.Second, cfg.Markets.MaxSnapshotAge)
	assert.Equal(t, 0.005, cfg.Alerts.Threshold)
	assert.Equal(t, 120, cfg.Security.RateLimitRPM)

	tracked := cfg.TrackedMarkets()
	require.Len(t, tracked, 7)
	assert.Equal(t, market.Market{Quote: "btc", Base: "eur"}, tracked[0])
	assert.Equal(t, market.Market{Quote: "btc", Base: "cad"}, tracked[6])

	assert.Len(t, cfg.SampleMarkets(), 2)
	assert.Len(t, cfg.AlertMarkets(), 2)

	icons := cfg.Icons()
	assert.NotEmpty(t, icons[market.DirectionBuy])
	assert.NotEmpty(t, icons[market.DirectionSell])

	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"BW_ENV":              "prod",
		"BW_HTTP_ADDR":        ":9090",
		"BW_MARKETS":          "btc_eur,xmr_btc",
		"BW_SAMPLE_MARKETS":   "btc_eur",
		"BW_ALERT_MARKETS":    "btc_eur",
		"BW_REFRESH_INTERVAL": "30s",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.Markets.RefreshInterval)

	tracked := cfg.TrackedMarkets()
	require.Len(t, tracked, 2)
	assert.Equal(t, market.Market{Quote: "xmr", Base: "btc"}, tracked[1])
}

func TestLoad_RejectsUnknownCurrency(t *testing.T) {
	_, err := load(t, map[string]string{"BW_MARKETS": "btc_doge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BW_MARKETS")
	assert.Contains(t, err.Error(), "doge")
}

func TestLoad_RejectsMalformedMarket(t *testing.T) {
	_, err := load(t, map[string]string{"BW_MARKETS": "btceur"})
	require.Error(t, err)
}

func TestLoad_RejectsEmptyMarketList(t *testing.T) {
	_, err := load(t, map[string]string{"BW_MARKETS": " "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one")
}

func TestLoad_RejectsNonPositiveInterval(t *testing.T) {
	_, err := load(t, map[string]string{"BW_REFRESH_INTERVAL": "0s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BW_REFRESH_INTERVAL")
}
