// Package energy implements the trapezoidal daily/lifetime energy
// integrator run once per barcode as power readings arrive.
package energy

import "time"

// GapConfig bounds how the integrator treats missed readings: a gap
// longer than Threshold is never integrated across, and it is flagged
// as a discarded production gap unless both endpoints were at or below
// LowPowerWatts.
type GapConfig struct {
	Threshold     time.Duration
	LowPowerWatts float64
}

// DefaultGapConfig matches the reference gateway's defaults: a 120
// second gap threshold and a 1.0W "not really producing" floor.
func DefaultGapConfig() GapConfig {
	return GapConfig{Threshold: 120 * time.Second, LowPowerWatts: 1.0}
}

// Accumulator is one barcode's running energy tally.
type Accumulator struct {
	DailyWh        float64
	TotalWh        float64
	DailyResetDate time.Time
	HaveResetDate  bool

	LastPowerW    float64
	LastReadingTS time.Time
	HaveLastTS    bool

	ReadingsToday int
}

// Result reports what Accumulate actually did with a reading.
type Result struct {
	IncrementWh                  float64
	DiscardedGapDuringProduction bool
}

// Accumulate folds one power reading (watts, always treated as
// non-negative) into acc at time now, integrating trapezoidally against
// the previous reading. Mirrors the reference implementation exactly:
// a new calendar day resets DailyWh (never TotalWh); a gap longer than
// cfg.Threshold is never integrated, and it is flagged as discarded
// only if either endpoint shows real production (a long low-power gap
// is skipped silently).
func Accumulate(acc *Accumulator, powerW float64, now time.Time, cfg GapConfig) Result {
	powerW = maxFloat(powerW, 0.0)

	today := now
	if !acc.HaveResetDate || !sameDate(acc.DailyResetDate, today) {
		acc.DailyWh = 0
		acc.ReadingsToday = 0
		acc.DailyResetDate = today
		acc.HaveResetDate = true
	}

	var result Result

	if acc.HaveLastTS {
		deltaSeconds := now.Sub(acc.LastReadingTS).Seconds()
		switch {
		case deltaSeconds > 0 && deltaSeconds <= cfg.Threshold.Seconds():
			incrementWh := ((acc.LastPowerW + powerW) / 2) * (deltaSeconds / 3600)
			acc.DailyWh += incrementWh
			acc.TotalWh += incrementWh
			result.IncrementWh = incrementWh
		case deltaSeconds > cfg.Threshold.Seconds():
			if acc.LastPowerW > cfg.LowPowerWatts || powerW > cfg.LowPowerWatts {
				result.DiscardedGapDuringProduction = true
			}
		}
	}

	acc.LastPowerW = powerW
	acc.LastReadingTS = now
	acc.HaveLastTS = true
	acc.ReadingsToday++

	return result
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
