// Package cadence maps an annoyance level (0-3) to reminder timing.
//
// The server side uses IdleHours/IsDue to decide whether a pair is due for
// a nudge. The device side uses Triggers to install recurring local
// notifications. Invalid levels always fall back to level 1.
package cadence

import (
	"math"
	"time"

	"github.com/hpungsan/wishpair/internal/wish"
)

// Level bounds.
const (
	MinLevel     = 0
	MaxLevel     = 3
	DefaultLevel = 1
)

var idleHours = [...]int{168, 72, 24, 12}

var labels = [...]string{"weekly", "every_3_days", "daily", "twice_daily"}

// Normalize returns level if it is within [0,3], else DefaultLevel.
func Normalize(level int) int {
	if level < MinLevel || level > MaxLevel {
		return DefaultLevel
	}
	return level
}

// NormalizeAny accepts untyped input (decoded JSON, query params) and
// returns DefaultLevel for anything that is not an integer in range.
func NormalizeAny(v any) int {
	switch n := v.(type) {
	case int:
		return Normalize(n)
	case int64:
		if n < MinLevel || n > MaxLevel {
			return DefaultLevel
		}
		return int(n)
	case float64:
		if n != math.Trunc(n) {
			return DefaultLevel
		}
		return NormalizeAny(int64(n))
	}
	return DefaultLevel
}

// Valid reports whether level is within range.
func Valid(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

// IdleHours is the minimum time between nudges for a level.
func IdleHours(level int) int {
	return idleHours[Normalize(level)]
}

// Interval is IdleHours as a time.Duration.
func Interval(level int) time.Duration {
	return time.Duration(IdleHours(level)) * time.Hour
}

// IsDue reports whether a pair last nudged at last is due again at now.
// A pair that was never nudged is always due.
func IsDue(last *time.Time, level int, now time.Time) bool {
	if last == nil || last.IsZero() {
		return true
	}
	return now.Sub(*last) >= Interval(level)
}

// Label is the human cadence name for a level.
func Label(level int) string {
	return labels[Normalize(level)]
}

// Labels returns the full level -> label map.
func Labels() map[int]string {
	m := make(map[int]string, len(labels))
	for i, l := range labels {
		m[i] = l
	}
	return m
}

// Effective picks the level used for a pair: the more demanding member wins.
func Effective(levels ...int) int {
	best := -1
	for _, l := range levels {
		if n := Normalize(l); n > best {
			best = n
		}
	}
	if best < 0 {
		return DefaultLevel
	}
	return best
}

// TriggerKind is the shape of a local notification trigger.
type TriggerKind string

const (
	TriggerWeekly   TriggerKind = "weekly"
	TriggerDaily    TriggerKind = "daily"
	TriggerInterval TriggerKind = "time_interval"
)

// Trigger is a recurring or one-shot local notification schedule.
// Weekday uses 1=Sunday ... 7=Saturday.
type Trigger struct {
	Kind    TriggerKind `json:"type"`
	Weekday int         `json:"weekday,omitempty"`
	Hour    int         `json:"hour,omitempty"`
	Minute  int         `json:"minute"`
	Seconds int         `json:"seconds,omitempty"`
	Repeats bool        `json:"repeats,omitempty"`
}

// Weekday numbers used by Trigger.
const (
	Sunday    = 1
	Wednesday = 4
	Saturday  = 7
)

// AggressiveIntervalSeconds drives level 3 on the device.
const AggressiveIntervalSeconds = 180

// WindowHour is the hour of day for a time window; unknown windows use noon.
func WindowHour(w wish.TimeWindow) int {
	switch w {
	case wish.WindowMorning:
		return 8
	case wish.WindowNight:
		return 20
	}
	return 12
}

// Triggers returns the device schedule for a level and window.
func Triggers(level int, window wish.TimeWindow) []Trigger {
	hour := WindowHour(window)
	switch Normalize(level) {
	case 0:
		return []Trigger{
			{Kind: TriggerWeekly, Weekday: Sunday, Hour: hour},
		}
	case 2:
		return []Trigger{
			{Kind: TriggerDaily, Hour: hour},
		}
	case 3:
		return []Trigger{
			{Kind: TriggerInterval, Seconds: AggressiveIntervalSeconds, Repeats: true},
		}
	default:
		return []Trigger{
			{Kind: TriggerWeekly, Weekday: Wednesday, Hour: hour},
			{Kind: TriggerWeekly, Weekday: Saturday, Hour: hour},
		}
	}
}
