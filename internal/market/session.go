package market

import (
	"time"

	// Embed the tz database so session classification does not depend on the
	// host having zoneinfo installed.
	_ "time/tzdata"
)

// SessionState classifies the current instant against a venue's trading day.
type SessionState int

const (
	SessionPreOpen SessionState = iota
	SessionIntraday
	SessionAfterClose
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionPreOpen:
		return "PRE_OPEN"
	case SessionIntraday:
		return "INTRADAY"
	case SessionAfterClose:
		return "AFTER_CLOSE"
	default:
		return "CLOSED"
	}
}

// HolidayLookup answers whether a YYYYMMDD calendar date is a US market
// holiday. The engine never fetches holiday data itself; the orchestrator
// snapshots a calendar and injects this function.
type HolidayLookup func(yyyymmdd string) bool

// SessionSettings tunes the thin-volume heuristic used to spot suspect
// partial prints on the most recent bar.
type SessionSettings struct {
	VolumeLookback int     // preceding bars averaged, default 5
	ThinRatio      float64 // last-bar volume vs average, default 0.2
	VolumeFloor    float64 // minimum average volume before the heuristic applies, default 1000
}

// DefaultSessionSettings returns the stock thresholds.
func DefaultSessionSettings() SessionSettings {
	return SessionSettings{VolumeLookback: 5, ThinRatio: 0.2, VolumeFloor: 1000}
}

func (s SessionSettings) normalized() SessionSettings {
	def := DefaultSessionSettings()
	if s.VolumeLookback <= 0 {
		s.VolumeLookback = def.VolumeLookback
	}
	if s.ThinRatio <= 0 {
		s.ThinRatio = def.ThinRatio
	}
	if s.VolumeFloor <= 0 {
		s.VolumeFloor = def.VolumeFloor
	}
	return s
}

var (
	seoulZone   = mustZone("Asia/Seoul")
	newYorkZone = mustZone("America/New_York")
)

func mustZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Zone returns the venue's local timezone.
func (m Market) Zone() *time.Location {
	if m == MarketUS {
		return newYorkZone
	}
	return seoulZone
}

func sessionStateAt(m Market, local time.Time) SessionState {
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return SessionClosed
	}
	minutes := local.Hour()*60 + local.Minute()
	if m == MarketUS {
		switch {
		case minutes < 9*60+30:
			return SessionPreOpen
		case minutes < 16*60:
			return SessionIntraday
		default:
			return SessionAfterClose
		}
	}
	// KR session 09:00-15:30.
	switch {
	case minutes < 9*60:
		return SessionPreOpen
	case minutes < 15*60+30:
		return SessionIntraday
	default:
		return SessionAfterClose
	}
}

// ChooseEvalIndex decides which candle represents the most recently
// completed session and is therefore safe to evaluate. It returns the index
// and whether the latest candle was dropped as still forming.
//
// Broker feeds can return a partially formed "today" bar while the market is
// open, or just after close before settlement completes. This selector is
// the single place that isolates that ambiguity from every downstream rule:
//
//   - US + INTRADAY with a bar dated today: always drop the last bar.
//   - US + PRE_OPEN/AFTER_CLOSE with a today bar on suspiciously thin
//     volume: drop it as a partial print.
//   - KR + INTRADAY with a thin today bar: drop it.
//   - Everything else keeps the last bar, including US holidays (the
//     session is forced CLOSED) and feeds whose last bar predates today.
func ChooseEvalIndex(candles Candles, meta Metadata, now time.Time, usHoliday HolidayLookup, settings SessionSettings) (int, bool) {
	if len(candles) == 0 {
		return -1, false
	}
	if len(candles) == 1 {
		return 0, false
	}
	if meta.Provider == ProviderEndOfDay {
		// End-of-day feeds have no intraday ambiguity.
		return len(candles) - 1, false
	}

	settings = settings.normalized()
	mkt := meta.Market()
	local := now.In(mkt.Zone())
	state := sessionStateAt(mkt, local)
	sessionDate := local.Format("20060102")

	idxLatest := len(candles) - 1
	last := candles[idxLatest]
	lastDate := ""
	if _, ok := last.Day(); ok {
		lastDate = last.Date
	}

	// A last bar dated before today means the feed is already end-of-day
	// complete; there is no intraday bar to be suspicious about.
	if lastDate != "" && lastDate < sessionDate {
		return idxLatest, false
	}

	veryThin := thinVolumeToday(candles, settings)

	idxEval := idxLatest
	if mkt == MarketUS {
		if usHoliday != nil && usHoliday(sessionDate) {
			state = SessionClosed
		}
		switch {
		case state == SessionIntraday && lastDate == sessionDate:
			idxEval = idxLatest - 1
		case (state == SessionPreOpen || state == SessionAfterClose) && veryThin && lastDate == sessionDate:
			idxEval = idxLatest - 1
		}
	} else {
		if state == SessionIntraday && veryThin && lastDate == sessionDate {
			idxEval = idxLatest - 1
		}
	}

	if idxEval < 0 {
		idxEval = 0
	}
	return idxEval, idxEval != idxLatest
}

// thinVolumeToday compares the last bar's volume against the average of up
// to VolumeLookback preceding bars. The heuristic only engages once the
// average clears the floor, so illiquid names are left alone.
func thinVolumeToday(candles Candles, settings SessionSettings) bool {
	idxLatest := len(candles) - 1
	start := idxLatest - settings.VolumeLookback
	if start < 0 {
		start = 0
	}
	prev := candles[start:idxLatest]
	if len(prev) == 0 {
		return false
	}
	sum := 0.0
	for _, c := range prev {
		sum += c.Volume
	}
	avg := sum / float64(len(prev))
	return avg > settings.VolumeFloor && candles[idxLatest].Volume < avg*settings.ThinRatio
}
