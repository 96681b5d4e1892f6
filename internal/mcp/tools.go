package mcp

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/gymvoice/internal/report"
	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/foxseedlab/gymvoice/internal/workout"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type workoutSummary struct {
	Session  workout.Session   `json:"session"`
	Stats    report.Stats      `json:"stats"`
	Analysis *workout.Analysis `json:"analysis"`
}

type workoutReport struct {
	workoutSummary
	Text string `json:"text"`
}

func (h *handlers) listWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	sessions, err := h.store.List(ctx, repository.ListFilter{
		OwnerID: strings.TrimSpace(req.GetString("owner_id", "")),
		Limit:   limit,
	})
	if err != nil {
		slog.Error("mcp list_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	out := make([]workoutSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summarize(s))
	}
	result, err := mcp.NewToolResultJSON(map[string]any{"workouts": out})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkoutReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil || strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	s, err := h.store.Get(ctx, strings.TrimSpace(id))
	if errors.Is(err, repository.ErrNotFound) {
		return mcp.NewToolResultError("workout not found: " + id), nil
	}
	if err != nil {
		slog.Error("mcp get_workout_report", "error", err, "session_id", id)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	summary := summarize(*s)
	result, err := mcp.NewToolResultJSON(workoutReport{
		workoutSummary: summary,
		Text:           report.FormatText(*s, summary.Stats, h.loc),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func summarize(s workout.Session) workoutSummary {
	return workoutSummary{
		Session:  s,
		Stats:    report.Summarize(s, time.Now()),
		Analysis: s.Analysis,
	}
}
