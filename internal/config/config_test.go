package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

const minimalYAML = `
mode: paper
symbols:
  - symbol: BTCUSDT
    stop_loss_pips: 50
    take_profit_pips: 100
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.FastWindow)
	assert.Equal(t, 20, cfg.SlowWindow)
	assert.Equal(t, 30, cfg.PollIntervalSeconds)
	assert.Equal(t, 5, cfg.ErrorBackoffSeconds)
	assert.Equal(t, 1.0, cfg.RiskPercent)
	assert.Equal(t, 0.01, cfg.MinLot)
	assert.Equal(t, 500.0, cfg.DailyProfitTarget)
	assert.Equal(t, 50, cfg.OrderDeviation)
	assert.Equal(t, 10000.0, cfg.StartBalance)
	assert.Equal(t, "5m", cfg.Venue.Interval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CredentialsComeFromEnvironment(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")

	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "tok", cfg.Telegram.Token)
	assert.Equal(t, "key", cfg.Venue.APIKey)
	assert.Equal(t, "secret", cfg.Venue.APISecret)
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad mode",
			yaml: "mode: yolo\nsymbols:\n  - symbol: BTCUSDT\n",
			want: "invalid mode",
		},
		{
			name: "no symbols",
			yaml: "mode: paper\n",
			want: "at least one symbol",
		},
		{
			name: "empty symbol name",
			yaml: "mode: paper\nsymbols:\n  - stop_loss_pips: 10\n",
			want: "symbol name",
		},
		{
			name: "negative pips",
			yaml: "mode: paper\nsymbols:\n  - symbol: BTCUSDT\n    stop_loss_pips: -1\n",
			want: "pip counts",
		},
		{
			name: "slow window not above fast",
			yaml: "mode: paper\nfast_window: 20\nslow_window: 10\nsymbols:\n  - symbol: BTCUSDT\n",
			want: "slow_window",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_LiveModeRequiresCredentials(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("BINANCE_API_KEY", "")
	t.Setenv("BINANCE_API_SECRET", "")

	yaml := "mode: live\nsymbols:\n  - symbol: BTCUSDT\n"
	_, err := Load(writeConfig(t, yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BINANCE_API_KEY")

	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")
	_, err = Load(writeConfig(t, yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")

	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	_, err = Load(writeConfig(t, yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin_ids")
}
