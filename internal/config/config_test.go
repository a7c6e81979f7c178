package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  log_level: debug
data:
  data_dir: /tmp/candles
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, "/tmp/candles", cfg.Data.DataDir)
	assert.Equal(t, "reports", cfg.Data.ReportDir)
	assert.Equal(t, "eod", cfg.Data.Provider)
	assert.Equal(t, 260, cfg.Data.HistoryBars)
	assert.Equal(t, "classic", cfg.Strategy.Mode)
	assert.Equal(t, 1.0, cfg.Strategy.GapATRMultiplier)
	assert.Equal(t, 120, cfg.Strategy.MinHistoryBars)
	assert.Equal(t, 20, cfg.Hybrid.SMATrendPeriod)
	assert.Equal(t, 10, cfg.Hybrid.EMAShortPeriod)
	assert.Equal(t, 21, cfg.Hybrid.EMAMidPeriod)
	assert.Equal(t, 45.0, cfg.Hybrid.RSIReadyFloor)
	assert.Equal(t, 10, cfg.Sell.TimeStopDays)
	assert.True(t, cfg.Sell.RequireSMA200)
	assert.Equal(t, 0.10, cfg.HybridSell.ProfitTargetHigh)
	assert.Equal(t, 5, cfg.Session.VolumeLookback)
	assert.Equal(t, 0.2, cfg.Session.ThinRatio)
	assert.Equal(t, "configs/holdings.yaml", cfg.Files.Holdings)
	assert.Equal(t, "data/signals.db", cfg.Log.SignalDBPath)
	assert.False(t, cfg.HybridBuy())
	assert.False(t, cfg.HybridSellMode())
}

func TestLoadExplicitZeroSurvivesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
sell:
  time_stop_days: 0
  require_sma200: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Sell.TimeStopDays) // explicit zero kept, not defaulted to 10
	assert.False(t, cfg.Sell.RequireSMA200)
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
data:
  data_dir: base-data
  report_dir: base-reports
`)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
data:
  data_dir: override-data
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override-data", cfg.Data.DataDir)
	assert.Equal(t, "base-reports", cfg.Data.ReportDir)
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle detected")
}

func TestLoadValidation(t *testing.T) {
	dir := t.TempDir()

	t.Run("bad provider", func(t *testing.T) {
		path := writeConfig(t, dir, "p.yaml", "data: {provider: kis}\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data.provider")
	})

	t.Run("bad strategy mode", func(t *testing.T) {
		path := writeConfig(t, dir, "m.yaml", "strategy: {mode: momentum}\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "strategy.mode")
	})

	t.Run("inverted rsi zone", func(t *testing.T) {
		path := writeConfig(t, dir, "z.yaml", "hybrid: {rsi_zone_low: 70, rsi_zone_high: 60}\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rsi_zone_low")
	})

	t.Run("hybrid modes accepted", func(t *testing.T) {
		path := writeConfig(t, dir, "h.yaml", "strategy: {mode: sma_ema_hybrid}\nsell: {mode: sma_ema_hybrid}\n")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.True(t, cfg.HybridBuy())
		assert.True(t, cfg.HybridSellMode())
	})
}
