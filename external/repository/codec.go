package repository

import (
	"encoding/json"
	"fmt"

	"github.com/foxseedlab/gymvoice/internal/workout"
)

// Exercises and the analysis are stored as JSON documents; the exercise array keeps
// logging order.

func encodeExercises(exercises []workout.Exercise) ([]byte, error) {
	if exercises == nil {
		exercises = []workout.Exercise{}
	}
	b, err := json.Marshal(exercises)
	if err != nil {
		return nil, fmt.Errorf("encode exercises: %w", err)
	}
	return b, nil
}

func decodeExercises(b []byte) ([]workout.Exercise, error) {
	exercises := []workout.Exercise{}
	if len(b) == 0 {
		return exercises, nil
	}
	if err := json.Unmarshal(b, &exercises); err != nil {
		return nil, fmt.Errorf("decode exercises: %w", err)
	}
	return exercises, nil
}

func encodeAnalysis(a *workout.Analysis) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	return b, nil
}

func decodeAnalysis(b []byte) (*workout.Analysis, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var a workout.Analysis
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &a, nil
}
