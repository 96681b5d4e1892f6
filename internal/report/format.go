package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/foxseedlab/gymvoice/internal/webhook"
	"github.com/foxseedlab/gymvoice/internal/workout"
)

const (
	reportDateLayout = "January 2, 2006"
	reportTimeLayout = "3:04 PM"
	notAvailable     = "N/A"
)

// ExerciseDetails renders an exercise the way the live workout log shows it.
func ExerciseDetails(e workout.Exercise) string {
	parts := make([]string, 0, 3)
	if e.HasStrength() {
		s := fmt.Sprintf("%d sets x %d reps", *e.Sets, *e.Reps)
		if e.Weight != nil && *e.Weight > 0 {
			s += fmt.Sprintf(" @ %s %s", formatNumber(*e.Weight), displayUnit(e.WeightUnit))
		}
		parts = append(parts, s)
	}
	if e.Duration != "" {
		parts = append(parts, "⏱️ "+e.Duration)
	}
	if e.Distance != "" {
		parts = append(parts, "📏 "+e.Distance)
	}
	if len(parts) == 0 {
		return "Details logged"
	}
	return strings.Join(parts, " • ")
}

// ExerciseSummary is the compact form used in the shareable report and in prompts.
func ExerciseSummary(e workout.Exercise) string {
	parts := make([]string, 0, 4)
	if e.HasStrength() {
		parts = append(parts, fmt.Sprintf("%dx%d", *e.Sets, *e.Reps))
	}
	if e.Weight != nil && *e.Weight > 0 {
		parts = append(parts, fmt.Sprintf("@ %s%s", formatNumber(*e.Weight), displayUnit(e.WeightUnit)))
	}
	if e.Duration != "" {
		parts = append(parts, "Time: "+e.Duration)
	}
	if e.Distance != "" {
		parts = append(parts, "Dist: "+e.Distance)
	}
	return strings.Join(parts, " • ")
}

// FormatText builds the plain-text report a user can copy or download.
func FormatText(s workout.Session, stats Stats, loc *time.Location) string {
	loc = safeLocation(loc)
	start := s.StartTime.In(loc)
	end := start
	if s.EndTime != nil {
		end = s.EndTime.In(loc)
	}
	calories, summary, recommendation := notAvailable, notAvailable, notAvailable
	if s.Analysis != nil {
		calories, summary, recommendation = s.Analysis.CaloriesBurned, s.Analysis.Summary, s.Analysis.Recommendation
	}

	lines := []string{
		fmt.Sprintf("GymVoice Workout Report - %s", start.Format(reportDateLayout)),
		fmt.Sprintf("Time: %s - %s (%s)", start.Format(reportTimeLayout), end.Format(reportTimeLayout), stats.Duration),
		fmt.Sprintf("Stats: %s | Vol: %d lbs", calories, stats.TotalVolume),
		"",
		"Summary:",
		summary,
		"",
		"Exercises:",
	}
	for _, e := range s.Exercises {
		lines = append(lines, fmt.Sprintf("- %s: %s", e.Name, ExerciseSummary(e)))
	}
	lines = append(lines, "", "Recommendation:", recommendation)
	return strings.Join(lines, "\n")
}

func buildWebhookPayload(s workout.Session, stats Stats, timezone string, loc *time.Location) webhook.ReportWebhookPayload {
	loc = safeLocation(loc)
	exercises := make([]webhook.ReportWebhookExercise, 0, len(s.Exercises))
	for _, e := range s.Exercises {
		exercises = append(exercises, webhook.ReportWebhookExercise{
			Name:       e.Name,
			Sets:       e.Sets,
			Reps:       e.Reps,
			Weight:     e.Weight,
			Unit:       string(e.WeightUnit),
			Duration:   e.Duration,
			Distance:   e.Distance,
			SourceText: e.SourceText,
		})
	}
	payload := webhook.ReportWebhookPayload{
		SchemaVersion:  webhook.ReportWebhookSchemaVersion,
		SessionID:      s.ID,
		OwnerID:        s.OwnerID,
		StartAt:        s.StartTime.In(loc).Format(time.RFC3339),
		Timezone:       timezone,
		Duration:       stats.Duration,
		ExerciseCount:  stats.ExerciseCount,
		CardioCount:    stats.CardioCount,
		TotalVolumeLbs: stats.TotalVolume,
		UserWeight:     s.UserWeight,
		UserHeight:     s.UserHeight,
		Exercises:      exercises,
		ReportText:     FormatText(s, stats, loc),
	}
	if s.EndTime != nil {
		payload.EndAt = s.EndTime.In(loc).Format(time.RFC3339)
		payload.DurationSeconds = int64(sessionDuration(s, *s.EndTime).Seconds())
	}
	if s.Analysis != nil {
		payload.CaloriesBurned = s.Analysis.CaloriesBurned
		payload.Summary = s.Analysis.Summary
		payload.Recommendation = s.Analysis.Recommendation
	}
	return payload
}

func displayUnit(u workout.WeightUnit) string {
	if u == "" {
		return string(workout.UnitLbs)
	}
	return string(u)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
