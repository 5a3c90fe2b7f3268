// Package worktime holds the wall-clock arithmetic used by reports and rollups.
// Times of day are naive (no zone); a shift whose end is not after its start
// runs past midnight.
package worktime

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const day = 24 * time.Hour

// Span is the length of [start, end], rolling end to the next day when end <= start.
func Span(start, end datatypes.Time) time.Duration {
	s, e := time.Duration(start), time.Duration(end)
	if e <= s {
		e += day
	}
	return e - s
}

// Offset returns t relative to start on the shift's timeline (0 .. 24h).
func Offset(start, t datatypes.Time) time.Duration {
	d := time.Duration(t) - time.Duration(start)
	if d < 0 {
		d += day
	}
	return d
}

// BreakWithin reports whether [breakStart, breakEnd] lies inside the shift.
func BreakWithin(start, end, breakStart, breakEnd datatypes.Time) bool {
	span := Span(start, end)
	bs := Offset(start, breakStart)
	be := Offset(start, breakEnd)
	return be > bs && be <= span
}

// Hours converts d to hours rounded to 2 decimals.
func Hours(d time.Duration) float64 {
	return Round2(d.Hours())
}

func Round2(f float64) float64 {
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

// Percent returns part/whole*100 rounded to 2 decimals, 0 when whole is 0.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromFloat(part).Div(decimal.NewFromFloat(whole)).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// Clock builds a time of day.
func Clock(hour, min int) datatypes.Time {
	return datatypes.NewTime(hour, min, 0, 0)
}

// ParseClock accepts "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (datatypes.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		v[i] = n
	}
	if v[0] < 0 || v[0] > 23 || v[1] < 0 || v[1] > 59 || v[2] < 0 || v[2] > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return datatypes.NewTime(v[0], v[1], v[2], 0), nil
}

// Date returns local midnight of the given day.
func Date(year int, month time.Month, d int) datatypes.Date {
	return datatypes.Date(time.Date(year, month, d, 0, 0, 0, 0, time.Local))
}

// DateOf truncates t to local midnight.
func DateOf(t time.Time) datatypes.Date {
	t = t.In(time.Local)
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts "2006-01-02" or "20060102".
func ParseDate(s string) (datatypes.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return datatypes.Date(t), nil
		}
	}
	return datatypes.Date{}, fmt.Errorf("invalid date %q", s)
}

// DayKey formats a date as YYYY-MM-DD for map keys and log lines.
func DayKey(d datatypes.Date) string {
	return time.Time(d).Format("2006-01-02")
}
