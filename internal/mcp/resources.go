// ABOUTME: MCP resource implementations for synced ring data.
// ABOUTME: Provides ringhealth://recent, ringhealth://today, ringhealth://sync, and ringhealth://goals.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/ringhealth/internal/models"
)

func (s *Server) registerResources() {
	// ringhealth://recent - Last week of daily summaries plus recent workouts
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "ringhealth://recent",
		Name:        "Recent Ring Data",
		Description: "Last 7 days of sleep, readiness, and activity plus the last 5 workouts",
		MIMEType:    "application/json",
	}, s.handleRecentResource)

	// ringhealth://today - Everything recorded for today
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "ringhealth://today",
		Name:        "Today's Ring Data",
		Description: "Daily summaries, workouts, notes, and meals dated today",
		MIMEType:    "application/json",
	}, s.handleTodayResource)

	// ringhealth://sync - Checkpoints and retry flags
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "ringhealth://sync",
		Name:        "Sync Status",
		Description: "Last synced date per stream, row counts, and streams flagged for retry",
		MIMEType:    "application/json",
	}, s.handleSyncResource)

	// ringhealth://goals - Active goals
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         "ringhealth://goals",
		Name:        "Active Goals",
		Description: "Goals that are currently active",
		MIMEType:    "application/json",
	}, s.handleGoalsResource)
}

// Resource handlers

func (s *Server) handleRecentResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	result := map[string]any{}
	for _, kind := range []models.StreamKind{models.StreamDailySleep, models.StreamReadiness, models.StreamActivity} {
		records, err := s.repo.RecentPayloads(ctx, kind, 7)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", kind, err)
		}
		result[string(kind)] = records
	}

	workouts, err := s.repo.RecentPayloads(ctx, models.StreamWorkouts, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	result[string(models.StreamWorkouts)] = workouts

	return jsonResource("ringhealth://recent", result)
}

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	today := time.Now().Format(models.DateLayout)

	result := map[string]any{"date": today}
	counts := map[string]int{}

	for _, kind := range models.DailyStreams {
		records, err := s.dayPayloads(ctx, kind, today)
		if err != nil {
			return nil, err
		}
		result[string(kind)] = records
		counts[string(kind)] = len(records)
	}

	workouts, err := s.repo.ListWorkoutsSince(ctx, today, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	var todayWorkouts []map[string]any
	for _, w := range workouts {
		if w.Day == today {
			todayWorkouts = append(todayWorkouts, workoutView(w))
		}
	}
	result["workouts"] = todayWorkouts
	counts["workouts"] = len(todayWorkouts)

	notes, err := s.repo.ListNotes(ctx, today, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	meals, err := s.repo.ListMeals(ctx, today, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	result["notes"] = notes
	result["meals"] = meals
	counts["notes"] = len(notes)
	counts["meals"] = len(meals)
	result["counts"] = counts

	return jsonResource("ringhealth://today", result)
}

// dayPayloads returns the payloads of a daily stream dated day. Daily
// streams hold one row per day, so the latest row is enough.
func (s *Server) dayPayloads(ctx context.Context, kind models.StreamKind, day string) ([]json.RawMessage, error) {
	records, err := s.repo.RecentPayloads(ctx, kind, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	var out []json.RawMessage
	for _, r := range records {
		var head struct {
			Day string `json:"day"`
		}
		if err := json.Unmarshal(r, &head); err == nil && head.Day == day {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Server) handleSyncResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	checkpoints, err := s.repo.ListCheckpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	flags, err := s.repo.ListRetryFlags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list retry flags: %w", err)
	}

	rows := make(map[string]int, len(models.AllStreams))
	for _, kind := range models.AllStreams {
		n, err := s.repo.CountRows(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", kind, err)
		}
		rows[string(kind)] = n
	}

	return jsonResource("ringhealth://sync", map[string]any{
		"checkpoints": checkpoints,
		"retry_flags": flags,
		"rows":        rows,
	})
}

func (s *Server) handleGoalsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	active := models.GoalActive
	goals, err := s.repo.ListGoals(ctx, &active)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	return jsonResource("ringhealth://goals", map[string]any{"goals": goals, "count": len(goals)})
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
