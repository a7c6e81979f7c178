package config

import (
	"strings"

	"sab/internal/market"
	"sab/internal/signal"
)

// Config is the full sab configuration tree.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Data       DataConfig       `yaml:"data"`
	Session    SessionConfig    `yaml:"session"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Hybrid     HybridConfig     `yaml:"hybrid"`
	Sell       SellConfig       `yaml:"sell"`
	HybridSell HybridSellConfig `yaml:"hybrid_sell"`
	FX         FXConfig         `yaml:"fx"`
	Files      FilesConfig      `yaml:"files"`
	Log        LogConfig        `yaml:"log"`
}

type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`
}

// DataConfig locates the cached candle files and the report output.
type DataConfig struct {
	Provider    string `yaml:"provider"` // "eod" or "live"
	DataDir     string `yaml:"data_dir"`
	ReportDir   string `yaml:"report_dir"`
	HistoryBars int    `yaml:"history_bars"`
	ScreenLimit int    `yaml:"screen_limit"`
}

// ResolveProvider maps the provider tag onto the closed market enum.
func (d DataConfig) ResolveProvider() market.Provider {
	return market.ResolveProvider(d.Provider)
}

// SessionConfig tunes the thin-volume heuristic of the eval-index selector.
type SessionConfig struct {
	VolumeLookback int     `yaml:"volume_lookback"`
	ThinRatio      float64 `yaml:"thin_ratio"`
	VolumeFloor    float64 `yaml:"volume_floor"`
}

func (s SessionConfig) Settings() market.SessionSettings {
	return market.SessionSettings{
		VolumeLookback: s.VolumeLookback,
		ThinRatio:      s.ThinRatio,
		VolumeFloor:    s.VolumeFloor,
	}
}

// StrategyConfig configures the classic EMA-cross buy evaluator. Mode picks
// the scan engine: "classic" or "sma_ema_hybrid".
type StrategyConfig struct {
	Mode              string  `yaml:"mode"`
	UseSMA200Filter   bool    `yaml:"use_sma200_filter"`
	GapATRMultiplier  float64 `yaml:"gap_atr_multiplier"`
	MinDollarVolume   float64 `yaml:"min_dollar_volume"`
	USMinDollarVolume float64 `yaml:"us_min_dollar_volume"`
	MinHistoryBars    int     `yaml:"min_history_bars"`
	ExcludeETFETN     bool    `yaml:"exclude_etf_etn"`
	RequireSlopeUp    bool    `yaml:"require_slope_up"`
	RSLookbackDays    int     `yaml:"rs_lookback_days"`
	RSBenchmarkReturn float64 `yaml:"rs_benchmark_return"`
	MinPrice          float64 `yaml:"min_price"`
	USMinPrice        float64 `yaml:"us_min_price"`
}

func (s StrategyConfig) Settings() signal.Settings {
	return signal.Settings{
		UseSMA200Filter:   s.UseSMA200Filter,
		GapATRMultiplier:  s.GapATRMultiplier,
		MinDollarVolume:   s.MinDollarVolume,
		USMinDollarVolume: s.USMinDollarVolume,
		MinHistoryBars:    s.MinHistoryBars,
		ExcludeETFETN:     s.ExcludeETFETN,
		RequireSlopeUp:    s.RequireSlopeUp,
		RSLookbackDays:    s.RSLookbackDays,
		RSBenchmarkReturn: s.RSBenchmarkReturn,
		MinPrice:          s.MinPrice,
		USMinPrice:        s.USMinPrice,
	}
}

// HybridConfig configures the three-pattern hybrid buy detector.
type HybridConfig struct {
	SMATrendPeriod int `yaml:"sma_trend_period"`
	EMAShortPeriod int `yaml:"ema_short_period"`
	EMAMidPeriod   int `yaml:"ema_mid_period"`
	RSIPeriod      int `yaml:"rsi_period"`

	RSIZoneLow      float64 `yaml:"rsi_zone_low"`
	RSIZoneHigh     float64 `yaml:"rsi_zone_high"`
	RSIOversoldLow  float64 `yaml:"rsi_oversold_low"`
	RSIOversoldHigh float64 `yaml:"rsi_oversold_high"`
	RSIReadyFloor   float64 `yaml:"rsi_ready_floor"`

	PullbackMaxBars              int     `yaml:"pullback_max_bars"`
	BreakoutConsolidationMinBars int     `yaml:"breakout_consolidation_min_bars"`
	BreakoutConsolidationMaxBars int     `yaml:"breakout_consolidation_max_bars"`
	BreakoutATRBuffer            float64 `yaml:"breakout_atr_buffer"`

	VolumeLookbackDays int     `yaml:"volume_lookback_days"`
	MaxGapPct          float64 `yaml:"max_gap_pct"`
	GapATRMultiplier   float64 `yaml:"gap_atr_multiplier"`

	UseSMA60Filter                 bool `yaml:"use_sma60_filter"`
	SMA60Period                    int  `yaml:"sma60_period"`
	KRBreakoutRequiresConfirmation bool `yaml:"kr_breakout_requires_confirmation"`

	MinHistoryBars    int     `yaml:"min_history_bars"`
	MinPrice          float64 `yaml:"min_price"`
	USMinPrice        float64 `yaml:"us_min_price"`
	MinDollarVolume   float64 `yaml:"min_dollar_volume"`
	USMinDollarVolume float64 `yaml:"us_min_dollar_volume"`
	ExcludeETFETN     bool    `yaml:"exclude_etf_etn"`
}

func (h HybridConfig) Settings() signal.HybridSettings {
	return signal.HybridSettings{
		SMATrendPeriod:               h.SMATrendPeriod,
		EMAShortPeriod:               h.EMAShortPeriod,
		EMAMidPeriod:                 h.EMAMidPeriod,
		RSIPeriod:                    h.RSIPeriod,
		RSIZoneLow:                   h.RSIZoneLow,
		RSIZoneHigh:                  h.RSIZoneHigh,
		RSIOversoldLow:               h.RSIOversoldLow,
		RSIOversoldHigh:              h.RSIOversoldHigh,
		RSIReadyFloor:                h.RSIReadyFloor,
		PullbackMaxBars:              h.PullbackMaxBars,
		BreakoutConsolidationMinBars: h.BreakoutConsolidationMinBars,
		BreakoutConsolidationMaxBars: h.BreakoutConsolidationMaxBars,
		BreakoutATRBuffer:            h.BreakoutATRBuffer,
		VolumeLookbackDays:           h.VolumeLookbackDays,
		MaxGapPct:                    h.MaxGapPct,
		GapATRMultiplier:             h.GapATRMultiplier,
		UseSMA60Filter:               h.UseSMA60Filter,
		SMA60Period:                  h.SMA60Period,

		KRBreakoutRequiresConfirmation: h.KRBreakoutRequiresConfirmation,

		MinHistoryBars:    h.MinHistoryBars,
		MinPrice:          h.MinPrice,
		USMinPrice:        h.USMinPrice,
		MinDollarVolume:   h.MinDollarVolume,
		USMinDollarVolume: h.USMinDollarVolume,
		ExcludeETFETN:     h.ExcludeETFETN,
	}
}

// SellConfig configures the generic exit evaluator. Mode picks the engine
// for the sell run: "classic" or "sma_ema_hybrid".
type SellConfig struct {
	Mode               string  `yaml:"mode"`
	ATRTrailMultiplier float64 `yaml:"atr_trail_multiplier"`
	TimeStopDays       int     `yaml:"time_stop_days"`
	RequireSMA200      bool    `yaml:"require_sma200"`
	EMAShort           int     `yaml:"ema_short"`
	EMALong            int     `yaml:"ema_long"`
	RSIPeriod          int     `yaml:"rsi_period"`
	RSIFloor           float64 `yaml:"rsi_floor"`
	RSIFloorAlt        float64 `yaml:"rsi_floor_alt"`
	MinBars            int     `yaml:"min_bars"`
}

func (s SellConfig) Settings() signal.SellSettings {
	return signal.SellSettings{
		ATRTrailMultiplier: s.ATRTrailMultiplier,
		TimeStopDays:       s.TimeStopDays,
		RequireSMA200:      s.RequireSMA200,
		EMAShortLength:     s.EMAShort,
		EMALongLength:      s.EMALong,
		RSIPeriod:          s.RSIPeriod,
		RSIFloor:           s.RSIFloor,
		RSIFloorAlt:        s.RSIFloorAlt,
		MinBars:            s.MinBars,
	}
}

// HybridSellConfig configures the hybrid exit evaluator.
type HybridSellConfig struct {
	ProfitTargetLow    float64 `yaml:"profit_target_low"`
	ProfitTargetHigh   float64 `yaml:"profit_target_high"`
	PartialProfitFloor float64 `yaml:"partial_profit_floor"`

	EMAShortPeriod int `yaml:"ema_short_period"`
	EMAMidPeriod   int `yaml:"ema_mid_period"`
	SMATrendPeriod int `yaml:"sma_trend_period"`
	RSIPeriod      int `yaml:"rsi_period"`

	StopLossPctMin float64 `yaml:"stop_loss_pct_min"`
	StopLossPctMax float64 `yaml:"stop_loss_pct_max"`

	FailedBreakoutDropPct float64 `yaml:"failed_breakout_drop_pct"`

	MinBars      int `yaml:"min_bars"`
	TimeStopDays int `yaml:"time_stop_days"`
}

func (h HybridSellConfig) Settings() signal.HybridSellSettings {
	return signal.HybridSellSettings{
		ProfitTargetLow:       h.ProfitTargetLow,
		ProfitTargetHigh:      h.ProfitTargetHigh,
		PartialProfitFloor:    h.PartialProfitFloor,
		EMAShortPeriod:        h.EMAShortPeriod,
		EMAMidPeriod:          h.EMAMidPeriod,
		SMATrendPeriod:        h.SMATrendPeriod,
		RSIPeriod:             h.RSIPeriod,
		StopLossPctMin:        h.StopLossPctMin,
		StopLossPctMax:        h.StopLossPctMax,
		FailedBreakoutDropPct: h.FailedBreakoutDropPct,
		MinBars:               h.MinBars,
		TimeStopDays:          h.TimeStopDays,
	}
}

// FXConfig carries the static USD→KRW display rate. No live FX lookup.
type FXConfig struct {
	USDKRW float64 `yaml:"usd_krw"`
	Note   string  `yaml:"note"`
}

// FilesConfig points at the user-maintained input files.
type FilesConfig struct {
	Watchlist string `yaml:"watchlist"`
	Holdings  string `yaml:"holdings"`
	Holidays  string `yaml:"holidays_us"`
}

// LogConfig locates the signal-run SQLite log; a blank path disables it.
type LogConfig struct {
	SignalDBPath string `yaml:"signal_db_path"`
}

// keySet tracks which field paths a config file set explicitly, so defaults
// never clobber an intentional zero.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

// fieldDefault is one defaulting rule: applied when the key is unset in the
// file and the current value still needs it.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
