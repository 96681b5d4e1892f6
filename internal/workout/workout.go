package workout

import "time"

type WeightUnit string

const (
	UnitLbs WeightUnit = "lbs"
	UnitKg  WeightUnit = "kg"
)

// Exercise is one logged movement. It is never mutated after the parser creates it.
type Exercise struct {
	Name       string     `json:"exercise_name"`
	Sets       *int       `json:"sets,omitempty"`
	Reps       *int       `json:"reps,omitempty"`
	Weight     *float64   `json:"weight,omitempty"`
	WeightUnit WeightUnit `json:"unit,omitempty"`
	Duration   string     `json:"duration,omitempty"`
	Distance   string     `json:"distance,omitempty"`
	SourceText string     `json:"voice_transcript"`
}

func (e Exercise) HasStrength() bool {
	return e.Sets != nil && e.Reps != nil
}

func (e Exercise) IsCardio() bool {
	return e.Duration != "" || e.Distance != ""
}

type Analysis struct {
	CaloriesBurned string `json:"calories_burned"`
	Summary        string `json:"summary"`
	Recommendation string `json:"recommendation"`
}

type Session struct {
	ID         string     `json:"session_id"`
	OwnerID    string     `json:"owner_id,omitempty"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Exercises  []Exercise `json:"exercises"`
	UserWeight string     `json:"user_weight,omitempty"`
	UserHeight string     `json:"user_height,omitempty"`
	Analysis   *Analysis  `json:"ai_analysis,omitempty"`
}

func (s Session) Completed() bool {
	return s.EndTime != nil
}

// Clone copies the exercise list so callers can hand the session out without sharing it.
func (s Session) Clone() Session {
	out := s
	if s.Exercises != nil {
		out.Exercises = make([]Exercise, len(s.Exercises))
		copy(out.Exercises, s.Exercises)
	}
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.Analysis != nil {
		a := *s.Analysis
		out.Analysis = &a
	}
	return out
}
