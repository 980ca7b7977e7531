package vmtop

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ChartKind identifies one of the dashboard's metric tabs.
type ChartKind string

const (
	ChartCPU     ChartKind = "cpu"
	ChartMemory  ChartKind = "memory"
	ChartNetwork ChartKind = "network"
)

// ChartKinds lists the tabs in display order.
var ChartKinds = []ChartKind{ChartCPU, ChartMemory, ChartNetwork}

func (k ChartKind) Label() string {
	switch k {
	case ChartCPU:
		return "CPU"
	case ChartMemory:
		return "Memory"
	case ChartNetwork:
		return "Network"
	default:
		return string(k)
	}
}

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders the last width values as block characters scaled to
// [0, ceiling]. A ceiling <= 0 scales to the largest value shown.
func Sparkline(values []float64, width int, ceiling float64) string {
	if width <= 0 || len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	if ceiling <= 0 {
		for _, v := range values {
			ceiling = math.Max(ceiling, v)
		}
	}

	var b strings.Builder
	for _, v := range values {
		i := 0
		if ceiling > 0 && v > 0 {
			i = int(math.Round(v / ceiling * float64(len(sparkTicks)-1)))
		}
		i = min(max(i, 0), len(sparkTicks)-1)
		b.WriteRune(sparkTicks[i])
	}
	return b.String()
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseMeasureTime reads the timestamp formats backends are known to send,
// including unix seconds or milliseconds as a decimal string.
func ParseMeasureTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f > 1e12 {
			return time.UnixMilli(int64(f)).UTC(), true
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
	return time.Time{}, false
}

// FormatDate renders a measure time as "Jan 5, 2024". Unparseable input is
// returned unchanged.
func FormatDate(s string) string {
	t, ok := ParseMeasureTime(s)
	if !ok {
		return s
	}
	return t.Format("Jan 2, 2006")
}

// formatClock renders the time of day of a measure time, or the raw value.
func formatClock(s string) string {
	t, ok := ParseMeasureTime(s)
	if !ok {
		return s
	}
	return t.Format("15:04:05")
}
