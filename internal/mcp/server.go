package mcp

import (
	"time"

	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const serverInstructions = "GymVoice workout history. List completed workouts and read their reports. Reports are read-only; analyses are never generated from here."

// New creates an MCP server exposing the workout history.
func New(store repository.History, loc *time.Location, version string) *server.MCPServer {
	s := server.NewMCPServer("GymVoice", version,
		server.WithToolCapabilities(false),
		server.WithInstructions(serverInstructions),
	)

	if loc == nil {
		loc = time.UTC
	}
	h := &handlers{store: store, loc: loc}

	s.AddTools(
		server.ServerTool{Tool: toolListWorkouts, Handler: h.listWorkouts},
		server.ServerTool{Tool: toolGetWorkoutReport, Handler: h.getWorkoutReport},
	)
	return s
}

type handlers struct {
	store repository.History
	loc   *time.Location
}

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List completed workout sessions, most recent first. Each entry includes its exercises, deterministic stats and the stored AI analysis when one exists."),
	mcp.WithString("owner_id", mcp.Description("Only return sessions of this Discord user ID")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of sessions. Defaults to 20, at most 100.")),
)

var toolGetWorkoutReport = mcp.NewTool("get_workout_report",
	mcp.WithDescription("Get one workout session with its stats, stored AI analysis and the shareable report text."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout session ID")),
)
