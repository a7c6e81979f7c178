package config

import (
	"sab/internal/market"
	"sab/internal/signal"
)

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppLogPath  = "logs/sab.log"

	defaultDataProvider    = "eod"
	defaultDataDir         = "data"
	defaultReportDir       = "reports"
	defaultDataHistoryBars = 260
	defaultScreenLimit     = 30

	defaultStrategyMode = "classic"
	defaultSellMode     = "classic"

	defaultWatchlistPath = "configs/watchlist.txt"
	defaultHoldingsPath  = "configs/holdings.yaml"
	defaultHolidaysPath  = "data/holidays_us.json"
	defaultSignalDBPath  = "data/signals.db"
)

// ModeHybrid selects the pattern-based engines in strategy.mode / sell.mode.
const ModeHybrid = "sma_ema_hybrid"

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Session.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Hybrid.applyDefaults(keys)
	c.Sell.applyDefaults(keys)
	c.HybridSell.applyDefaults(keys)
	c.Files.applyDefaults(keys)
	c.Log.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.provider", &d.Provider, defaultDataProvider),
		stringFieldDefault("data.data_dir", &d.DataDir, defaultDataDir),
		stringFieldDefault("data.report_dir", &d.ReportDir, defaultReportDir),
		intFieldDefault("data.history_bars", &d.HistoryBars, defaultDataHistoryBars),
		intFieldDefault("data.screen_limit", &d.ScreenLimit, defaultScreenLimit),
	)
}

func (s *SessionConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	def := market.DefaultSessionSettings()
	applyFieldDefaults(keys,
		intFieldDefault("session.volume_lookback", &s.VolumeLookback, def.VolumeLookback),
		floatFieldDefault("session.thin_ratio", &s.ThinRatio, def.ThinRatio),
		floatFieldDefault("session.volume_floor", &s.VolumeFloor, def.VolumeFloor),
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	def := signal.DefaultSettings()
	applyFieldDefaults(keys,
		stringFieldDefault("strategy.mode", &s.Mode, defaultStrategyMode),
		floatFieldDefault("strategy.gap_atr_multiplier", &s.GapATRMultiplier, def.GapATRMultiplier),
		intFieldDefault("strategy.min_history_bars", &s.MinHistoryBars, def.MinHistoryBars),
		intFieldDefault("strategy.rs_lookback_days", &s.RSLookbackDays, def.RSLookbackDays),
	)
}

func (h *HybridConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	def := signal.DefaultHybridSettings()
	applyFieldDefaults(keys,
		intFieldDefault("hybrid.sma_trend_period", &h.SMATrendPeriod, def.SMATrendPeriod),
		intFieldDefault("hybrid.ema_short_period", &h.EMAShortPeriod, def.EMAShortPeriod),
		intFieldDefault("hybrid.ema_mid_period", &h.EMAMidPeriod, def.EMAMidPeriod),
		intFieldDefault("hybrid.rsi_period", &h.RSIPeriod, def.RSIPeriod),
		floatFieldDefault("hybrid.rsi_zone_low", &h.RSIZoneLow, def.RSIZoneLow),
		floatFieldDefault("hybrid.rsi_zone_high", &h.RSIZoneHigh, def.RSIZoneHigh),
		floatFieldDefault("hybrid.rsi_oversold_low", &h.RSIOversoldLow, def.RSIOversoldLow),
		floatFieldDefault("hybrid.rsi_oversold_high", &h.RSIOversoldHigh, def.RSIOversoldHigh),
		floatFieldDefault("hybrid.rsi_ready_floor", &h.RSIReadyFloor, def.RSIReadyFloor),
		intFieldDefault("hybrid.pullback_max_bars", &h.PullbackMaxBars, def.PullbackMaxBars),
		intFieldDefault("hybrid.breakout_consolidation_min_bars", &h.BreakoutConsolidationMinBars, def.BreakoutConsolidationMinBars),
		intFieldDefault("hybrid.breakout_consolidation_max_bars", &h.BreakoutConsolidationMaxBars, def.BreakoutConsolidationMaxBars),
		floatFieldDefault("hybrid.breakout_atr_buffer", &h.BreakoutATRBuffer, def.BreakoutATRBuffer),
		intFieldDefault("hybrid.volume_lookback_days", &h.VolumeLookbackDays, def.VolumeLookbackDays),
		floatFieldDefault("hybrid.max_gap_pct", &h.MaxGapPct, def.MaxGapPct),
		floatFieldDefault("hybrid.gap_atr_multiplier", &h.GapATRMultiplier, def.GapATRMultiplier),
		intFieldDefault("hybrid.sma60_period", &h.SMA60Period, def.SMA60Period),
		intFieldDefault("hybrid.min_history_bars", &h.MinHistoryBars, def.MinHistoryBars),
	)
}

func (s *SellConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	def := signal.DefaultSellSettings()
	applyFieldDefaults(keys,
		stringFieldDefault("sell.mode", &s.Mode, defaultSellMode),
		floatFieldDefault("sell.atr_trail_multiplier", &s.ATRTrailMultiplier, def.ATRTrailMultiplier),
		intFieldDefault("sell.time_stop_days", &s.TimeStopDays, def.TimeStopDays),
		boolFieldDefault("sell.require_sma200", &s.RequireSMA200, def.RequireSMA200),
		intFieldDefault("sell.ema_short", &s.EMAShort, def.EMAShortLength),
		intFieldDefault("sell.ema_long", &s.EMALong, def.EMALongLength),
		intFieldDefault("sell.rsi_period", &s.RSIPeriod, def.RSIPeriod),
		floatFieldDefault("sell.rsi_floor", &s.RSIFloor, def.RSIFloor),
		floatFieldDefault("sell.rsi_floor_alt", &s.RSIFloorAlt, def.RSIFloorAlt),
		intFieldDefault("sell.min_bars", &s.MinBars, def.MinBars),
	)
}

func (h *HybridSellConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	def := signal.DefaultHybridSellSettings()
	applyFieldDefaults(keys,
		floatFieldDefault("hybrid_sell.profit_target_low", &h.ProfitTargetLow, def.ProfitTargetLow),
		floatFieldDefault("hybrid_sell.profit_target_high", &h.ProfitTargetHigh, def.ProfitTargetHigh),
		floatFieldDefault("hybrid_sell.partial_profit_floor", &h.PartialProfitFloor, def.PartialProfitFloor),
		intFieldDefault("hybrid_sell.ema_short_period", &h.EMAShortPeriod, def.EMAShortPeriod),
		intFieldDefault("hybrid_sell.ema_mid_period", &h.EMAMidPeriod, def.EMAMidPeriod),
		intFieldDefault("hybrid_sell.sma_trend_period", &h.SMATrendPeriod, def.SMATrendPeriod),
		intFieldDefault("hybrid_sell.rsi_period", &h.RSIPeriod, def.RSIPeriod),
		floatFieldDefault("hybrid_sell.stop_loss_pct_min", &h.StopLossPctMin, def.StopLossPctMin),
		floatFieldDefault("hybrid_sell.stop_loss_pct_max", &h.StopLossPctMax, def.StopLossPctMax),
		floatFieldDefault("hybrid_sell.failed_breakout_drop_pct", &h.FailedBreakoutDropPct, def.FailedBreakoutDropPct),
		intFieldDefault("hybrid_sell.min_bars", &h.MinBars, def.MinBars),
	)
}

func (f *FilesConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("files.watchlist", &f.Watchlist, defaultWatchlistPath),
		stringFieldDefault("files.holdings", &f.Holdings, defaultHoldingsPath),
		stringFieldDefault("files.holidays_us", &f.Holidays, defaultHolidaysPath),
	)
}

func (l *LogConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("log.signal_db_path", &l.SignalDBPath, defaultSignalDBPath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return true },
		apply: func() { *target = def },
	}
}
