package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/gymvoice/internal/model"
	"github.com/foxseedlab/gymvoice/internal/workout"
)

var ErrParseFailed = errors.New("could not understand the workout command")

const systemInstruction = "You are an expert fitness log parser. Analyze transcribed voice commands and extract exercise details. " +
	"Respond ONLY with a valid JSON object. Be precise: use 'duration'/'distance' for cardio, and 'sets'/'reps'/'weight' for strength."

var exerciseSchema = &model.Schema{
	Type: model.TypeObject,
	Properties: map[string]*model.Schema{
		"exercise_name": {Type: model.TypeString, Description: "The name of the exercise, e.g., 'Bench Press', 'Cycling', 'Running', 'Plank'."},
		"sets":          {Type: model.TypeInteger, Description: "The number of sets performed. Omit this field for cardio or timed exercises (e.g. running, cycling)."},
		"reps":          {Type: model.TypeInteger, Description: "The number of repetitions per set. Omit this field for cardio or timed exercises."},
		"weight":        {Type: model.TypeNumber, Description: "The weight used. Omit for non-weighted exercises."},
		"unit":          {Type: model.TypeString, Description: "The unit of weight, either 'lbs' or 'kg'. Omit if no weight used.", Enum: []string{string(workout.UnitLbs), string(workout.UnitKg)}},
		"duration":      {Type: model.TypeString, Description: "The duration of the exercise (e.g., '25 minutes', '30s', '1 hour'). Essential for cardio or timed static holds."},
		"distance":      {Type: model.TypeString, Description: "The distance covered (e.g., '5 km', '2 miles'). Essential for distance-based cardio."},
	},
	Required: []string{"exercise_name"},
}

type Service struct {
	model model.Capability
}

func NewService(m model.Capability) *Service {
	return &Service{model: m}
}

// Parse turns one free-form entry into an Exercise. It never retries and never
// returns a partial record: any failure is ErrParseFailed.
func (s *Service) Parse(ctx context.Context, text, equipmentContext string) (workout.Exercise, error) {
	if strings.TrimSpace(text) == "" {
		return workout.Exercise{}, ErrParseFailed
	}
	out, err := s.model.GenerateStructured(ctx, model.StructuredRequest{
		Task:              model.TaskParse,
		SystemInstruction: systemInstruction,
		Prompt:            buildPrompt(text, equipmentContext),
		Schema:            exerciseSchema,
	})
	if err != nil {
		slog.Error("exercise parse request failed", "error", err)
		return workout.Exercise{}, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	ex, err := decode(out, text)
	if err != nil {
		slog.Warn("exercise parse response rejected", "error", err, "response", string(out))
		return workout.Exercise{}, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return ex, nil
}

func buildPrompt(text, equipmentContext string) string {
	if equipmentContext != "" {
		return fmt.Sprintf("Context: The user is currently using the following equipment/exercise: %q. "+
			"Use this context to infer the exercise name if not explicitly stated.\nCommand: %q", equipmentContext, text)
	}
	return fmt.Sprintf("Parse the following workout command into a structured JSON object.\n"+
		"- For strength training (e.g. Bench Press, Squats), extract sets, reps, and weight.\n"+
		"- For cardio or timed activities (e.g. Cycling, Running, Plank), extract duration and/or distance. Do not invent sets/reps for these.\n"+
		"Command: %q", text)
}

func decode(out []byte, sourceText string) (workout.Exercise, error) {
	var raw workout.RawExercise
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(out)))
	if err := dec.Decode(&raw); err != nil {
		return workout.Exercise{}, fmt.Errorf("decode response: %w", err)
	}
	if raw.Unit != nil && *raw.Unit != string(workout.UnitLbs) && *raw.Unit != string(workout.UnitKg) {
		return workout.Exercise{}, fmt.Errorf("unsupported unit %q", *raw.Unit)
	}
	return workout.Normalize(raw, sourceText)
}
