package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Hybrid.validate(); err != nil {
		return err
	}
	if err := c.Sell.validate(); err != nil {
		return err
	}
	if err := c.HybridSell.validate(); err != nil {
		return err
	}
	if c.FX.USDKRW < 0 {
		return fmt.Errorf("fx.usd_krw must be >= 0")
	}
	return nil
}

func (d *DataConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(d.Provider)) {
	case "eod", "live":
	default:
		return fmt.Errorf("data.provider must be 'eod' or 'live', got %s", d.Provider)
	}
	if d.HistoryBars < 30 {
		return fmt.Errorf("data.history_bars must be >= 30")
	}
	if d.ScreenLimit <= 0 {
		return fmt.Errorf("data.screen_limit must be > 0")
	}
	return nil
}

func validateMode(key, mode string) error {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "classic", ModeHybrid:
		return nil
	default:
		return fmt.Errorf("%s must be 'classic' or '%s', got %s", key, ModeHybrid, mode)
	}
}

func (s *StrategyConfig) validate() error {
	if err := validateMode("strategy.mode", s.Mode); err != nil {
		return err
	}
	if s.GapATRMultiplier <= 0 {
		return fmt.Errorf("strategy.gap_atr_multiplier must be > 0")
	}
	if s.MinHistoryBars < 50 {
		return fmt.Errorf("strategy.min_history_bars must be >= 50")
	}
	if s.RSLookbackDays <= 0 {
		return fmt.Errorf("strategy.rs_lookback_days must be > 0")
	}
	return nil
}

func (h *HybridConfig) validate() error {
	if h.RSIZoneLow >= h.RSIZoneHigh {
		return fmt.Errorf("hybrid.rsi_zone_low must be below rsi_zone_high")
	}
	if h.RSIOversoldLow >= h.RSIOversoldHigh {
		return fmt.Errorf("hybrid.rsi_oversold_low must be below rsi_oversold_high")
	}
	if h.BreakoutConsolidationMinBars > h.BreakoutConsolidationMaxBars {
		return fmt.Errorf("hybrid.breakout_consolidation_min_bars exceeds max_bars")
	}
	if h.MaxGapPct <= 0 || h.MaxGapPct >= 1 {
		return fmt.Errorf("hybrid.max_gap_pct must be in (0, 1)")
	}
	return nil
}

func (s *SellConfig) validate() error {
	if err := validateMode("sell.mode", s.Mode); err != nil {
		return err
	}
	if s.ATRTrailMultiplier <= 0 {
		return fmt.Errorf("sell.atr_trail_multiplier must be > 0")
	}
	if s.TimeStopDays < 0 {
		return fmt.Errorf("sell.time_stop_days must be >= 0")
	}
	if s.EMAShort >= s.EMALong {
		return fmt.Errorf("sell.ema_short must be below ema_long")
	}
	if s.MinBars < 2 {
		return fmt.Errorf("sell.min_bars must be >= 2")
	}
	return nil
}

func (h *HybridSellConfig) validate() error {
	if h.ProfitTargetLow > h.ProfitTargetHigh {
		return fmt.Errorf("hybrid_sell.profit_target_low exceeds profit_target_high")
	}
	if h.StopLossPctMin > h.StopLossPctMax {
		return fmt.Errorf("hybrid_sell.stop_loss_pct_min exceeds stop_loss_pct_max")
	}
	if h.MinBars < 2 {
		return fmt.Errorf("hybrid_sell.min_bars must be >= 2")
	}
	return nil
}

// HybridBuy reports whether the scan should run the pattern detector.
func (c *Config) HybridBuy() bool {
	return strings.EqualFold(strings.TrimSpace(c.Strategy.Mode), ModeHybrid)
}

// HybridSellMode reports whether the sell run should use the hybrid rules.
func (c *Config) HybridSellMode() bool {
	return strings.EqualFold(strings.TrimSpace(c.Sell.Mode), ModeHybrid)
}
