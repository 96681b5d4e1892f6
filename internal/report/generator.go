package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/gymvoice/internal/model"
	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/foxseedlab/gymvoice/internal/webhook"
	"github.com/foxseedlab/gymvoice/internal/workout"
)

var (
	ErrAnalysisUnavailable = errors.New("workout analysis unavailable")
	ErrNotCompleted        = errors.New("workout session is not completed")
)

const analysisSystemInstruction = "You are an elite sports physiologist and personal trainer. Provide accurate estimations and helpful, concise advice."

var analysisSchema = &model.Schema{
	Type: model.TypeObject,
	Properties: map[string]*model.Schema{
		"calories_burned": {Type: model.TypeString, Description: "Estimated calories burned (e.g., '320 kcal')."},
		"summary":         {Type: model.TypeString, Description: "A concise summary of the workout intensity, volume, and focus areas."},
		"recommendation":  {Type: model.TypeString, Description: "Specific advice for the next workout session based on this performance."},
	},
	Required: []string{"calories_burned", "summary", "recommendation"},
}

func FallbackAnalysis() workout.Analysis {
	return workout.Analysis{
		CaloriesBurned: notAvailable,
		Summary:        "Could not generate analysis at this time.",
		Recommendation: "Keep up the good work!",
	}
}

// Generator attaches the AI analysis to completed sessions, at most once per session.
type Generator struct {
	model    model.Capability
	store    repository.History
	webhook  webhook.Sender
	timezone string
	loc      *time.Location

	mu        sync.Mutex
	inflight  map[string]struct{}
	observers []func(workout.Session)
	wg        sync.WaitGroup
}

func NewGenerator(m model.Capability, store repository.History, wh webhook.Sender, timezone string, loc *time.Location) *Generator {
	return &Generator{
		model:    m,
		store:    store,
		webhook:  wh,
		timezone: timezone,
		loc:      safeLocation(loc),
		inflight: make(map[string]struct{}),
	}
}

// OnAnalyzed registers an observer called with the merged session after each analysis.
func (g *Generator) OnAnalyzed(fn func(workout.Session)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, fn)
}

// Ensure returns the deterministic stats immediately and starts the asynchronous
// analysis when the session has none and no request is running for it.
func (g *Generator) Ensure(ctx context.Context, s workout.Session) (Stats, bool) {
	stats := Summarize(s, time.Now())
	if s.Analysis != nil || !s.Completed() {
		return stats, false
	}
	if !g.claim(s.ID) {
		return stats, false
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.release(s.ID)
		if _, err := g.generateClaimed(context.WithoutCancel(ctx), s); err != nil {
			slog.Error("workout analysis failed", "error", err, "session_id", s.ID)
		}
	}()
	return stats, true
}

// Generate is the synchronous form of Ensure. Calling it on a session that already
// has an analysis, or while a request for it is running, returns the session unchanged.
func (g *Generator) Generate(ctx context.Context, s workout.Session) (workout.Session, error) {
	if !s.Completed() {
		return s, ErrNotCompleted
	}
	if s.Analysis != nil {
		return s, nil
	}
	if !g.claim(s.ID) {
		return s, nil
	}
	defer g.release(s.ID)
	return g.generateClaimed(ctx, s)
}

// Wait blocks until every analysis started by Ensure has finished.
func (g *Generator) Wait() {
	g.wg.Wait()
}

func (g *Generator) generateClaimed(ctx context.Context, s workout.Session) (workout.Session, error) {
	stored, err := g.store.Get(ctx, s.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Warn("could not check for a stored analysis", "error", err, "session_id", s.ID)
		stored = nil
	}
	if stored != nil && stored.Analysis != nil {
		slog.Info("reusing stored workout analysis", "session_id", s.ID)
		return *stored, nil
	}

	analysis, err := g.requestAnalysis(ctx, s)
	if err != nil {
		slog.Warn("using fallback workout analysis", "error", err, "session_id", s.ID)
		analysis = FallbackAnalysis()
	}
	out := s.Clone()
	out.Analysis = &analysis

	if err := g.store.UpdateByID(ctx, s.ID, repository.Patch{Analysis: &analysis}); err != nil {
		slog.Error("failed to store workout analysis", "error", err, "session_id", s.ID)
	}
	g.deliver(ctx, out)

	g.mu.Lock()
	observers := append([]func(workout.Session){}, g.observers...)
	g.mu.Unlock()
	for _, fn := range observers {
		fn(out.Clone())
	}
	return out, nil
}

func (g *Generator) requestAnalysis(ctx context.Context, s workout.Session) (workout.Analysis, error) {
	out, err := g.model.GenerateStructured(ctx, model.StructuredRequest{
		Task:              model.TaskAnalysis,
		SystemInstruction: analysisSystemInstruction,
		Prompt:            buildAnalysisPrompt(s),
		Schema:            analysisSchema,
	})
	if err != nil {
		return workout.Analysis{}, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	var raw struct {
		CaloriesBurned *string `json:"calories_burned"`
		Summary        *string `json:"summary"`
		Recommendation *string `json:"recommendation"`
	}
	if err := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(out))).Decode(&raw); err != nil {
		return workout.Analysis{}, fmt.Errorf("%w: decode response: %v", ErrAnalysisUnavailable, err)
	}
	if raw.CaloriesBurned == nil || raw.Summary == nil || raw.Recommendation == nil {
		return workout.Analysis{}, fmt.Errorf("%w: response is missing fields", ErrAnalysisUnavailable)
	}
	return workout.Analysis{
		CaloriesBurned: *raw.CaloriesBurned,
		Summary:        *raw.Summary,
		Recommendation: *raw.Recommendation,
	}, nil
}

func (g *Generator) deliver(ctx context.Context, s workout.Session) {
	if g.webhook == nil {
		return
	}
	payload := buildWebhookPayload(s, Summarize(s, time.Now()), g.timezone, g.loc)
	if err := g.webhook.SendReport(ctx, payload); err != nil {
		slog.Error("failed to send report webhook", "error", err, "session_id", s.ID)
	}
}

func (g *Generator) claim(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[id]; busy {
		return false
	}
	g.inflight[id] = struct{}{}
	return true
}

func (g *Generator) release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, id)
}

func buildAnalysisPrompt(s workout.Session) string {
	minutes := 0
	if s.EndTime != nil {
		minutes = int(math.Round(s.EndTime.Sub(s.StartTime).Minutes()))
	}
	exercises := make([]string, 0, len(s.Exercises))
	for _, e := range s.Exercises {
		exercises = append(exercises, fmt.Sprintf("%s (%s)", e.Name, promptDetails(e)))
	}
	return fmt.Sprintf(`Analyze this workout session to provide a post-workout report.

User Profile:
- Weight: %s
- Height: %s

Workout Details:
- Total Session Duration: %d minutes
- Exercises: %s.

Task:
1. Estimate calories burned based on the intensity, exercise types (mix of cardio/strength), and user stats.
2. Write a motivating summary of the session. Mention specific achievements (e.g. "Good distance on the bike" or "Heavy lifting on bench").
3. Suggest a specific focus for the next workout.`,
		orNotSpecified(s.UserWeight), orNotSpecified(s.UserHeight), minutes, strings.Join(exercises, "; "))
}

func promptDetails(e workout.Exercise) string {
	details := make([]string, 0, 4)
	if e.HasStrength() {
		details = append(details, fmt.Sprintf("%dx%d", *e.Sets, *e.Reps))
	}
	if e.Weight != nil && *e.Weight > 0 {
		details = append(details, fmt.Sprintf("@ %s%s", formatNumber(*e.Weight), displayUnit(e.WeightUnit)))
	}
	if e.Duration != "" {
		details = append(details, "for "+e.Duration)
	}
	if e.Distance != "" {
		details = append(details, "covering "+e.Distance)
	}
	return strings.Join(details, ", ")
}

func orNotSpecified(v string) string {
	if v == "" {
		return "Not specified"
	}
	return v
}
