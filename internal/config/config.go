package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SymbolConfig holds the per-symbol trade parameters. A zero pip count
// means the corresponding protective level is not placed.
type SymbolConfig struct {
	Symbol         string `yaml:"symbol"`
	StopLossPips   int    `yaml:"stop_loss_pips"`
	TakeProfitPips int    `yaml:"take_profit_pips"`
}

// Instrument overrides the built-in pip-value table for one symbol.
// PipValuePerLot is the value of one pip for a standard lot in account
// currency; Point is the instrument's minimum price increment.
type Instrument struct {
	PipValuePerLot float64 `yaml:"pip_value_per_lot"`
	Point          float64 `yaml:"point"`
}

type Telegram struct {
	Token    string  `yaml:"-"` // TELEGRAM_BOT_TOKEN, env only
	AdminIDs []int64 `yaml:"admin_ids"`
}

type Venue struct {
	APIKey    string `yaml:"-"` // BINANCE_API_KEY, env only
	APISecret string `yaml:"-"` // BINANCE_API_SECRET, env only
	Testnet   bool   `yaml:"testnet"`
	Interval  string `yaml:"kline_interval"`
}

type Root struct {
	Mode                string                `yaml:"mode"` // live | paper
	Symbols             []SymbolConfig        `yaml:"symbols"`
	FastWindow          int                   `yaml:"fast_window"`
	SlowWindow          int                   `yaml:"slow_window"`
	PollIntervalSeconds int                   `yaml:"poll_interval_seconds"`
	ErrorBackoffSeconds int                   `yaml:"error_backoff_seconds"`
	RiskPercent         float64               `yaml:"risk_percent"`
	MinLot              float64               `yaml:"min_lot"`
	DailyProfitTarget   float64               `yaml:"daily_profit_target"`
	OrderDeviation      int                   `yaml:"order_deviation"`
	MetricsAddr         string                `yaml:"metrics_addr"` // empty disables the endpoint
	StartBalance        float64               `yaml:"start_balance"` // paper mode only
	Instruments         map[string]Instrument `yaml:"instruments"`
	Telegram            Telegram              `yaml:"telegram"`
	Venue               Venue                 `yaml:"venue"`
	LogLevel            string                `yaml:"log_level"`
	LogPretty           bool                  `yaml:"log_pretty"`
}

func (r Root) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalSeconds) * time.Second
}

func (r Root) ErrorBackoff() time.Duration {
	return time.Duration(r.ErrorBackoffSeconds) * time.Second
}

// Load reads the yaml config at path, applies defaults, pulls
// credentials from the environment (a .env file is honored when
// present) and validates the result.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}

	_ = godotenv.Load()
	c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	c.Venue.APIKey = os.Getenv("BINANCE_API_KEY")
	c.Venue.APISecret = os.Getenv("BINANCE_API_SECRET")

	applyDefaults(&c)

	if err := validate(c); err != nil {
		return c, err
	}
	return c, nil
}

func applyDefaults(c *Root) {
	if c.Mode == "" {
		c.Mode = "paper"
	}
	if c.FastWindow == 0 {
		c.FastWindow = 5
	}
	if c.SlowWindow == 0 {
		c.SlowWindow = 20
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = 30
	}
	if c.ErrorBackoffSeconds == 0 {
		c.ErrorBackoffSeconds = 5
	}
	if c.RiskPercent == 0 {
		c.RiskPercent = 1.0
	}
	if c.MinLot == 0 {
		c.MinLot = 0.01
	}
	if c.DailyProfitTarget == 0 {
		c.DailyProfitTarget = 500
	}
	if c.StartBalance == 0 {
		c.StartBalance = 10000
	}
	if c.OrderDeviation == 0 {
		c.OrderDeviation = 50
	}
	if c.Venue.Interval == "" {
		c.Venue.Interval = "5m"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func validate(c Root) error {
	if c.Mode != "live" && c.Mode != "paper" {
		return fmt.Errorf("invalid mode: %s", c.Mode)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	for _, s := range c.Symbols {
		if s.Symbol == "" {
			return fmt.Errorf("symbol name must not be empty")
		}
		if s.StopLossPips < 0 || s.TakeProfitPips < 0 {
			return fmt.Errorf("%s: pip counts must be >= 0", s.Symbol)
		}
	}
	if c.FastWindow <= 1 {
		return fmt.Errorf("fast_window must be > 1")
	}
	if c.SlowWindow <= c.FastWindow {
		return fmt.Errorf("slow_window must be > fast_window")
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0")
	}
	if c.RiskPercent < 0 {
		return fmt.Errorf("risk_percent must be >= 0")
	}
	if c.MinLot <= 0 {
		return fmt.Errorf("min_lot must be > 0")
	}
	if c.DailyProfitTarget <= 0 {
		return fmt.Errorf("daily_profit_target must be > 0")
	}
	if c.Mode == "live" {
		if c.Venue.APIKey == "" || c.Venue.APISecret == "" {
			return fmt.Errorf("BINANCE_API_KEY and BINANCE_API_SECRET are required in live mode")
		}
		if c.Telegram.Token == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required in live mode")
		}
		if len(c.Telegram.AdminIDs) == 0 {
			return fmt.Errorf("telegram.admin_ids must not be empty in live mode")
		}
	}
	return nil
}
