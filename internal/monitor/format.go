package monitor

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

var byteUnits = []string{"B", "KB", "MB", "GB"}

// FormatBytes renders a size in binary units with at most two decimals,
// e.g. 1536 -> "1.5 KB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	i = min(i, len(byteUnits)-1)
	v := float64(n) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + byteUnits[i]
}

// FormatDuration renders milliseconds below a second, tenths of seconds
// below a minute and tenths of minutes above.
func FormatDuration(d time.Duration) string {
	ms := float64(d) / float64(time.Millisecond)
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", int(math.Round(ms)))
	case ms < 60000:
		return fmt.Sprintf("%.1fs", ms/1000)
	default:
		return fmt.Sprintf("%.1fm", ms/60000)
	}
}
