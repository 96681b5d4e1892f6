package webhook

import "context"

const ReportWebhookSchemaVersion = 1

type ReportWebhookExercise struct {
	Name       string   `json:"exercise_name"`
	Sets       *int     `json:"sets,omitempty"`
	Reps       *int     `json:"reps,omitempty"`
	Weight     *float64 `json:"weight,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Duration   string   `json:"duration,omitempty"`
	Distance   string   `json:"distance,omitempty"`
	SourceText string   `json:"voice_transcript"`
}

type ReportWebhookPayload struct {
	SchemaVersion   int                     `json:"schema_version"`
	SessionID       string                  `json:"session_id"`
	OwnerID         string                  `json:"owner_id"`
	StartAt         string                  `json:"start_at"`
	EndAt           string                  `json:"end_at"`
	Timezone        string                  `json:"timezone"`
	DurationSeconds int64                   `json:"duration_seconds"`
	Duration        string                  `json:"duration"`
	ExerciseCount   int                     `json:"exercise_count"`
	CardioCount     int                     `json:"cardio_count"`
	TotalVolumeLbs  int                     `json:"total_volume_lbs"`
	UserWeight      string                  `json:"user_weight,omitempty"`
	UserHeight      string                  `json:"user_height,omitempty"`
	CaloriesBurned  string                  `json:"calories_burned"`
	Summary         string                  `json:"summary"`
	Recommendation  string                  `json:"recommendation"`
	Exercises       []ReportWebhookExercise `json:"exercises"`
	ReportText      string                  `json:"report_text"`
}

type Sender interface {
	SendReport(ctx context.Context, payload ReportWebhookPayload) error
}
