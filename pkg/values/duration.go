package values

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration - относительная длительность вида "1h", "15m", "3M", "1Y".
// Месяцы и годы не сводятся к фиксированному числу секунд.
type Duration struct {
	Count int
	Unit  string // s, m, h, D, W, M, Y
}

var durationUnits = map[string]string{
	"s": "s", "second": "s", "seconds": "s",
	"m": "m", "minute": "m", "minutes": "m",
	"h": "h", "hour": "h", "hours": "h",
	"D": "D", "d": "D", "day": "D", "days": "D",
	"W": "W", "w": "W", "week": "W", "weeks": "W",
	"M": "M", "month": "M", "months": "M",
	"Y": "Y", "y": "Y", "year": "Y", "years": "Y",
}

// ParseDuration разбирает строку длительности
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || i == 0 && s[i] == '-') {
		i++
	}
	if i == 0 {
		return Duration{}, fmt.Errorf("invalid duration %q", s)
	}
	count, err := strconv.Atoi(s[:i])
	if err != nil {
		return Duration{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	unit, ok := durationUnits[strings.TrimSpace(s[i:])]
	if !ok {
		return Duration{}, fmt.Errorf("invalid duration unit in %q", s)
	}
	return Duration{Count: count, Unit: unit}, nil
}

// AddTo прибавляет длительность к моменту времени
func (d Duration) AddTo(t time.Time) time.Time {
	switch d.Unit {
	case "s":
		return t.Add(time.Duration(d.Count) * time.Second)
	case "m":
		return t.Add(time.Duration(d.Count) * time.Minute)
	case "h":
		return t.Add(time.Duration(d.Count) * time.Hour)
	case "D":
		return t.AddDate(0, 0, d.Count)
	case "W":
		return t.AddDate(0, 0, 7*d.Count)
	case "M":
		return t.AddDate(0, d.Count, 0)
	case "Y":
		return t.AddDate(d.Count, 0, 0)
	}
	return t
}

func (d Duration) String() string {
	return strconv.Itoa(d.Count) + d.Unit
}
