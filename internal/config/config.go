package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/bisqwatch/bisqwatch-backend/internal/market"
)

type Config struct {
	Env      string `mapstructure:"BW_ENV"`
	HTTPAddr string `mapstructure:"BW_HTTP_ADDR"`
	StateDir string `mapstructure:"BW_STATE_DIR"`

	Cache    CacheConfig    `mapstructure:",squash"`
	Markets  MarketsConfig  `mapstructure:",squash"`
	Alerts   AlertsConfig   `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type CacheConfig struct {
	RedisAddr string `mapstructure:"BW_REDIS_ADDR"`
}

type MarketsConfig struct {
	Tracked         []string      `mapstructure:"BW_MARKETS"`
	Sample          []string      `mapstructure:"BW_SAMPLE_MARKETS"`
	RefreshInterval time.Duration `mapstructure:"BW_REFRESH_INTERVAL"`
	MaxSnapshotAge  time.Duration `mapstructure:"BW_MAX_SNAPSHOT_AGE"`
	BuyIconURL      string        `mapstructure:"BW_BUY_ICON_URL"`
	SellIconURL     string        `mapstructure:"BW_SELL_ICON_URL"`

	tracked []market.Market
	sample  []market.Market
}

type AlertsConfig struct {
	// Threshold is the fraction below the reference price at which a sell
	// offer triggers an alert (0.005 = 0.5%).
	Threshold  float64  `mapstructure:"BW_ALERT_THRESHOLD"`
	WebhookURL string   `mapstructure:"BW_ALERT_WEBHOOK_URL"`
	Markets    []string `mapstructure:"BW_ALERT_MARKETS"`

	markets []market.Market
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"BW_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"BW_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // env vars already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("BW_ENV", "dev")
	viper.SetDefault("BW_HTTP_ADDR", ":8080")
	viper.SetDefault("BW_STATE_DIR", ".")
	viper.SetDefault("BW_REDIS_ADDR", "127.0.0.1:6379")
	viper.SetDefault("BW_MARKETS", "btc_eur,btc_usd,btc_gbp,xmr_btc,bsq_btc,btc_brl,btc_cad")
	viper.SetDefault("BW_SAMPLE_MARKETS", "btc_usd,btc_eur")
	viper.SetDefault("BW_REFRESH_INTERVAL", "90s")
	viper.SetDefault("BW_MAX_SNAPSHOT_AGE", "180s")
	viper.SetDefault("BW_BUY_ICON_URL", "https://raw.githubusercontent.com/pingiun/BisqBot/1124f373edacf0da1c4cd20b5cc7fbb2cf6f2e95/buy_icon.png")
	viper.SetDefault("BW_SELL_ICON_URL", "https://raw.githubusercontent.com/pingiun/BisqBot/1124f373edacf0da1c4cd20b5cc7fbb2cf6f2e95/sell_icon.png")
	viper.SetDefault("BW_ALERT_THRESHOLD", 0.005)
	viper.SetDefault("BW_ALERT_WEBHOOK_URL", "")
	viper.SetDefault("BW_ALERT_MARKETS", "btc_usd,btc_eur")
	viper.SetDefault("BW_RATE_LIMIT_RPM", 120)
	viper.SetDefault("BW_CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	// Handle array parsing for comma-separated values
	for _, key := range []string{"BW_MARKETS", "BW_SAMPLE_MARKETS", "BW_ALERT_MARKETS", "BW_CORS_ALLOWED_ORIGINS"} {
		if v := viper.GetString(key); v != "" {
			viper.Set(key, strings.Split(v, ","))
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// validate parses the market lists and rejects any market whose currencies
// have no registered precision. Failing here keeps unknown-currency errors
// out of the render path.
func (c *Config) validate() error {
	var err error
	if c.Markets.tracked, err = parseMarkets(c.Markets.Tracked); err != nil {
		return fmt.Errorf("BW_MARKETS: %w", err)
	}
	if len(c.Markets.tracked) == 0 {
		return fmt.Errorf("BW_MARKETS must list at least one market")
	}
	if c.Markets.sample, err = parseMarkets(c.Markets.Sample); err != nil {
		return fmt.Errorf("BW_SAMPLE_MARKETS: %w", err)
	}
	if c.Alerts.markets, err = parseMarkets(c.Alerts.Markets); err != nil {
		return fmt.Errorf("BW_ALERT_MARKETS: %w", err)
	}
	if c.Markets.RefreshInterval <= 0 {
		return fmt.Errorf("BW_REFRESH_INTERVAL must be positive")
	}
	if c.Alerts.Threshold < 0 {
		return fmt.Errorf("BW_ALERT_THRESHOLD must not be negative")
	}
	return nil
}

func parseMarkets(raw []string) ([]market.Market, error) {
	markets := make([]market.Market, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		m, err := market.ParseMarket(s)
		if err != nil {
			return nil, err
		}
		for _, cur := range []market.Currency{m.Quote, m.Base} {
			if !market.KnownCurrency(cur) {
				return nil, fmt.Errorf("market %s: no precision registered for %q", m.String(), cur)
			}
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// TrackedMarkets returns the parsed tracked market list, in configured order.
func (c *Config) TrackedMarkets() []market.Market { return c.Markets.tracked }

// SampleMarkets returns the markets whose top offers pad the empty-query answer.
func (c *Config) SampleMarkets() []market.Market { return c.Markets.sample }

// AlertMarkets returns the markets scanned for below-market sell offers.
func (c *Config) AlertMarkets() []market.Market { return c.Alerts.markets }

// Icons returns the per-direction thumbnail URLs.
func (c *Config) Icons() map[market.Direction]string {
	return map[market.Direction]string{
		market.DirectionBuy:  c.Markets.BuyIconURL,
		market.DirectionSell: c.Markets.SellIconURL,
	}
}

func (c *Config) IsDev() bool  { return c.Env == "dev" }
func (c *Config) IsProd() bool { return c.Env == "prod" }
