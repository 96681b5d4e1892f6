package workout

import (
	"errors"
	"math"
	"strings"
)

var ErrMissingName = errors.New("exercise name is missing")

// RawExercise is the shape the model is asked to return. Every field is optional
// on the wire so that a malformed response can be told apart from a missing one.
type RawExercise struct {
	ExerciseName *string  `json:"exercise_name"`
	Sets         *int     `json:"sets,omitempty"`
	Reps         *int     `json:"reps,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
	Unit         *string  `json:"unit,omitempty"`
	Duration     *string  `json:"duration,omitempty"`
	Distance     *string  `json:"distance,omitempty"`
}

// Normalize validates raw parse output. Optional fields pass through as given, except
// that counts below one, negative or non-finite weights and units outside lbs/kg are
// dropped. No unit default is applied here.
func Normalize(raw RawExercise, sourceText string) (Exercise, error) {
	if raw.ExerciseName == nil {
		return Exercise{}, ErrMissingName
	}
	name := strings.TrimSpace(*raw.ExerciseName)
	if name == "" {
		return Exercise{}, ErrMissingName
	}
	ex := Exercise{
		Name:       name,
		Sets:       positiveCount(raw.Sets),
		Reps:       positiveCount(raw.Reps),
		Weight:     validWeight(raw.Weight),
		SourceText: sourceText,
	}
	if raw.Unit != nil {
		switch u := WeightUnit(strings.ToLower(strings.TrimSpace(*raw.Unit))); u {
		case UnitLbs, UnitKg:
			ex.WeightUnit = u
		}
	}
	if raw.Duration != nil {
		ex.Duration = strings.TrimSpace(*raw.Duration)
	}
	if raw.Distance != nil {
		ex.Distance = strings.TrimSpace(*raw.Distance)
	}
	return ex, nil
}

func positiveCount(v *int) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	n := *v
	return &n
}

func validWeight(v *float64) *float64 {
	if v == nil || *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	w := *v
	return &w
}
