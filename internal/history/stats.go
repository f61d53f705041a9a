package history

import (
	"fmt"
	"time"

	"github.com/i2-open/goSsfTransmitter/internal/model"
)

type SessionStats struct {
	TotalSent    int
	Succeeded    int
	Failed       int
	SuccessRate  int // whole percent, 0 when nothing was sent
	LastSent     time.Time
	LastSentText string
}

// Stats summarizes the records created at or after since.
func Stats(records []model.TransmissionRecord, since time.Time, now time.Time) SessionStats {
	stats := SessionStats{LastSentText: "never"}
	sinceMs := since.UnixMilli()
	for _, r := range records {
		if r.Timestamp < sinceMs {
			continue
		}
		stats.TotalSent++
		if r.Succeeded() {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
		if t := r.Time(); t.After(stats.LastSent) {
			stats.LastSent = t
		}
	}
	if stats.TotalSent > 0 {
		stats.SuccessRate = stats.Succeeded * 100 / stats.TotalSent
		stats.LastSentText = RelativeTime(stats.LastSent, now)
	}
	return stats
}

func RelativeTime(t time.Time, now time.Time) string {
	elapsed := now.Sub(t)
	switch {
	case elapsed < 5*time.Second:
		return "just now"
	case elapsed < time.Minute:
		return fmt.Sprintf("%ds ago", int(elapsed.Seconds()))
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	}
	return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
}
