package report

import (
	"fmt"
	"time"

	"github.com/foxseedlab/gymvoice/internal/workout"
)

type Stats struct {
	TotalVolume   int    `json:"total_volume_lbs"`
	ExerciseCount int    `json:"exercise_count"`
	CardioCount   int    `json:"cardio_count"`
	Duration      string `json:"duration"`
}

// Summarize computes the deterministic part of a report. A session still in progress
// is measured up to now.
func Summarize(s workout.Session, now time.Time) Stats {
	return Stats{
		TotalVolume:   workout.TotalVolume(s.Exercises),
		ExerciseCount: len(s.Exercises),
		CardioCount:   workout.CardioCount(s.Exercises),
		Duration:      FormatDuration(sessionDuration(s, now)),
	}
}

func sessionDuration(s workout.Session, now time.Time) time.Duration {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	d := end.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

func FormatDuration(d time.Duration) string {
	totalMinutes := int(d / time.Minute)
	hours := totalMinutes / 60
	mins := totalMinutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
