// ABOUTME: MCP tool implementations for ring data, sync, and the journal.
// ABOUTME: Provides sync triggers, record listings, journal CRUD, and narrative tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/ringhealth/internal/models"
	"github.com/harperreed/ringhealth/internal/narrative"
)

const defaultListLimit = 20

func (s *Server) registerTools() {
	if s.syncer != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "sync_now",
			Description: "Pull recent data from the Oura API into the local store",
		}, s.handleSyncNow)

		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "sync_status",
			Description: "Show per-stream checkpoints, retry flags, and whether a sync is running",
		}, s.handleSyncStatus)
	}

	// list_records
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_records",
		Description: "List recent synced records for one stream as Oura returned them",
	}, s.handleListRecords)

	// get_workout
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_workout",
		Description: "Get one synced workout by its Oura id",
	}, s.handleGetWorkout)

	// notes
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_note",
		Description: "Record a dated note (general, reflection, symptom, training)",
	}, s.handleAddNote)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_notes",
		Description: "List recent notes, optionally since a date",
	}, s.handleListNotes)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_note",
		Description: "Delete a note by ID or ID prefix",
	}, s.handleDeleteNote)

	// goals
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_goal",
		Description: "Create a training or health goal",
	}, s.handleAddGoal)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_goals",
		Description: "List goals, optionally filtered by status",
	}, s.handleListGoals)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "update_goal",
		Description: "Change a goal's status and optionally its current value",
	}, s.handleUpdateGoal)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_goal",
		Description: "Delete a goal by ID or ID prefix",
	}, s.handleDeleteGoal)

	// meals
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_meal",
		Description: "Log a meal",
	}, s.handleAddMeal)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_meals",
		Description: "List recent meals, optionally since a date",
	}, s.handleListMeals)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_meal",
		Description: "Delete a meal by ID or ID prefix",
	}, s.handleDeleteMeal)

	if s.narrative != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "get_digest",
			Description: "Get today's morning, afternoon, or evening health digest",
		}, s.handleGetDigest)
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "ask",
			Description: "Ask a question about recent sleep, readiness, activity, and workouts",
		}, s.handleAsk)
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "analyze_goal",
			Description: "Compute progress toward a goal and explain it",
		}, s.handleAnalyzeGoal)
	}
}

// Tool input/output types

type syncNowInput struct {
	DaysBack *int `json:"days_back,omitempty" jsonschema:"Days before today to include (default from config)"`
}

type syncOutput struct {
	Success       bool              `json:"success"`
	Start         string            `json:"start"`
	End           string            `json:"end"`
	SyncedRecords map[string]int    `json:"synced_records"`
	Failed        map[string]string `json:"failed,omitempty"`
	CorrelationID string            `json:"correlation_id"`
	Message       string            `json:"message"`
}

type emptyInput struct{}

type listRecordsInput struct {
	Stream string `json:"stream" jsonschema:"Stream name: daily_sleep, sleep_sessions, activity, readiness, stress, workouts, spo2, heart_rate"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type idInput struct {
	ID string `json:"id" jsonschema:"ID or ID prefix"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type createdOutput struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type addNoteInput struct {
	Content  string `json:"content" jsonschema:"Note text"`
	Date     string `json:"date,omitempty" jsonschema:"Day the note refers to (YYYY-MM-DD), defaults to today"`
	NoteType string `json:"note_type,omitempty" jsonschema:"general, reflection, symptom, or training"`
}

type listSinceInput struct {
	Since string `json:"since,omitempty" jsonschema:"Only entries on or after this day (YYYY-MM-DD)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results (default 20)"`
}

type addGoalInput struct {
	Title       string `json:"title" jsonschema:"Goal title"`
	GoalType    string `json:"goal_type" jsonschema:"Goal type, e.g. lower_running_hr"`
	Description string `json:"description,omitempty" jsonschema:"Longer description"`
	TargetValue string `json:"target_value,omitempty" jsonschema:"Target value"`
	TargetDate  string `json:"target_date,omitempty" jsonschema:"Target day (YYYY-MM-DD)"`
	StartDate   string `json:"start_date,omitempty" jsonschema:"Start day (YYYY-MM-DD), defaults to today"`
}

type listGoalsInput struct {
	Status string `json:"status,omitempty" jsonschema:"active, completed, or abandoned"`
}

type updateGoalInput struct {
	ID           string `json:"id" jsonschema:"Goal ID or ID prefix"`
	Status       string `json:"status" jsonschema:"active, completed, or abandoned"`
	CurrentValue string `json:"current_value,omitempty" jsonschema:"Latest measured value"`
}

type addMealInput struct {
	Description string `json:"description" jsonschema:"What was eaten"`
	Date        string `json:"date,omitempty" jsonschema:"Day eaten (YYYY-MM-DD), defaults to today"`
	Time        string `json:"time,omitempty" jsonschema:"Time eaten (HH:MM)"`
	Portion     string `json:"portion,omitempty" jsonschema:"Estimated portion"`
	Notes       string `json:"notes,omitempty" jsonschema:"Extra notes"`
}

type digestInput struct {
	Type       string `json:"type,omitempty" jsonschema:"morning, afternoon, or evening (default morning)"`
	Regenerate bool   `json:"regenerate,omitempty" jsonschema:"Ignore a cached digest for today"`
}

type digestOutput struct {
	Type    string `json:"type"`
	Date    string `json:"date"`
	Content string `json:"content"`
	Cached  bool   `json:"cached"`
}

type askInput struct {
	Question string `json:"question" jsonschema:"Question about your health data"`
}

type askOutput struct {
	Answer string `json:"answer"`
}

// Tool handlers

func (s *Server) handleSyncNow(ctx context.Context, req *mcp.CallToolRequest, input syncNowInput) (*mcp.CallToolResult, syncOutput, error) {
	days := s.daysBack
	if input.DaysBack != nil {
		days = *input.DaysBack
	}

	summary, err := s.syncer.PerformFullSync(context.WithoutCancel(ctx), days)
	if err != nil {
		return nil, syncOutput{}, fmt.Errorf("sync failed: %w", err)
	}

	out := syncOutput{
		Success:       summary.Success,
		Start:         summary.Window.Start,
		End:           summary.Window.End,
		SyncedRecords: make(map[string]int, len(summary.SyncedRecords)),
		CorrelationID: summary.CorrelationID,
	}
	total := 0
	for kind, n := range summary.SyncedRecords {
		out.SyncedRecords[string(kind)] = n
		total += n
	}
	if errs := summary.Errors(); len(errs) > 0 {
		out.Failed = make(map[string]string, len(errs))
		for kind, msg := range errs {
			out.Failed[string(kind)] = msg
		}
	}
	out.Message = fmt.Sprintf("Synced %d records from %s to %s", total, out.Start, out.End)
	if !out.Success {
		out.Message += fmt.Sprintf(" (%d streams failed)", len(out.Failed))
	}
	return nil, out, nil
}

func (s *Server) handleSyncStatus(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
	status, err := s.syncer.Status(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sync status: %w", err)
	}
	return nil, status, nil
}

func (s *Server) handleListRecords(ctx context.Context, req *mcp.CallToolRequest, input listRecordsInput) (*mcp.CallToolResult, any, error) {
	kind, err := models.ParseStream(input.Stream)
	if err != nil {
		return nil, nil, err
	}
	if input.Limit <= 0 {
		input.Limit = defaultListLimit
	}

	records, err := s.repo.RecentPayloads(ctx, kind, input.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	if len(records) == 0 {
		return nil, map[string]any{"message": fmt.Sprintf("No %s records found.", kind)}, nil
	}

	return nil, map[string]any{"stream": kind, "count": len(records), "records": records}, nil
}

func (s *Server) handleGetWorkout(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, any, error) {
	w, err := s.repo.GetWorkout(ctx, input.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("workout not found: %s", input.ID)
	}
	return nil, workoutView(w), nil
}

func (s *Server) handleAddNote(ctx context.Context, req *mcp.CallToolRequest, input addNoteInput) (*mcp.CallToolResult, createdOutput, error) {
	if input.Content == "" {
		return nil, createdOutput{}, errors.New("content is required")
	}
	n := models.NewNote(input.Content)
	if input.Date != "" {
		if !models.IsValidDay(input.Date) {
			return nil, createdOutput{}, fmt.Errorf("invalid date: %s", input.Date)
		}
		n.WithDate(input.Date)
	}
	if input.NoteType != "" {
		n.WithType(models.NoteType(input.NoteType))
	}

	if err := s.repo.CreateNote(ctx, n); err != nil {
		return nil, createdOutput{}, fmt.Errorf("failed to create note: %w", err)
	}
	return nil, createdOutput{
		ID:      shortID(n.ID),
		Message: fmt.Sprintf("Added %s note for %s (ID: %s)", n.NoteType, n.Date, shortID(n.ID)),
	}, nil
}

func (s *Server) handleListNotes(ctx context.Context, req *mcp.CallToolRequest, input listSinceInput) (*mcp.CallToolResult, any, error) {
	if input.Limit <= 0 {
		input.Limit = defaultListLimit
	}
	notes, err := s.repo.ListNotes(ctx, input.Since, input.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list notes: %w", err)
	}
	if len(notes) == 0 {
		return nil, map[string]any{"message": "No notes found."}, nil
	}
	return nil, notes, nil
}

func (s *Server) handleDeleteNote(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, simpleOutput, error) {
	if err := s.repo.DeleteNote(ctx, input.ID); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete note: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Deleted note: %s", input.ID)}, nil
}

func (s *Server) handleAddGoal(ctx context.Context, req *mcp.CallToolRequest, input addGoalInput) (*mcp.CallToolResult, createdOutput, error) {
	if input.Title == "" || input.GoalType == "" {
		return nil, createdOutput{}, errors.New("title and goal_type are required")
	}
	g := models.NewGoal(input.Title, input.GoalType).WithTarget(input.TargetValue, input.TargetDate)
	if input.Description != "" {
		g.WithDescription(input.Description)
	}
	if input.StartDate != "" {
		if !models.IsValidDay(input.StartDate) {
			return nil, createdOutput{}, fmt.Errorf("invalid start date: %s", input.StartDate)
		}
		g.WithStartDate(input.StartDate)
	}

	if err := s.repo.CreateGoal(ctx, g); err != nil {
		return nil, createdOutput{}, fmt.Errorf("failed to create goal: %w", err)
	}
	return nil, createdOutput{
		ID:      shortID(g.ID),
		Message: fmt.Sprintf("Added goal %q (ID: %s)", g.Title, shortID(g.ID)),
	}, nil
}

func (s *Server) handleListGoals(ctx context.Context, req *mcp.CallToolRequest, input listGoalsInput) (*mcp.CallToolResult, any, error) {
	var status *models.GoalStatus
	if input.Status != "" {
		if !models.IsValidGoalStatus(input.Status) {
			return nil, nil, fmt.Errorf("unknown goal status: %s", input.Status)
		}
		st := models.GoalStatus(input.Status)
		status = &st
	}

	goals, err := s.repo.ListGoals(ctx, status)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list goals: %w", err)
	}
	if len(goals) == 0 {
		return nil, map[string]any{"message": "No goals found."}, nil
	}
	return nil, goals, nil
}

func (s *Server) handleUpdateGoal(ctx context.Context, req *mcp.CallToolRequest, input updateGoalInput) (*mcp.CallToolResult, simpleOutput, error) {
	if !models.IsValidGoalStatus(input.Status) {
		return nil, simpleOutput{}, fmt.Errorf("unknown goal status: %s", input.Status)
	}
	var current *string
	if input.CurrentValue != "" {
		current = &input.CurrentValue
	}
	if err := s.repo.UpdateGoalStatus(ctx, input.ID, models.GoalStatus(input.Status), current); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to update goal: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Goal %s is now %s", input.ID, input.Status)}, nil
}

func (s *Server) handleDeleteGoal(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, simpleOutput, error) {
	if err := s.repo.DeleteGoal(ctx, input.ID); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete goal: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Deleted goal: %s", input.ID)}, nil
}

func (s *Server) handleAddMeal(ctx context.Context, req *mcp.CallToolRequest, input addMealInput) (*mcp.CallToolResult, createdOutput, error) {
	if input.Description == "" {
		return nil, createdOutput{}, errors.New("description is required")
	}
	m := models.NewMeal(input.Description)
	if input.Date != "" {
		if !models.IsValidDay(input.Date) {
			return nil, createdOutput{}, fmt.Errorf("invalid date: %s", input.Date)
		}
		m.Date = input.Date
	}
	if input.Time != "" {
		m.Time = &input.Time
	}
	if input.Portion != "" {
		m.WithPortion(input.Portion)
	}
	if input.Notes != "" {
		m.WithNotes(input.Notes)
	}

	if err := s.repo.CreateMeal(ctx, m); err != nil {
		return nil, createdOutput{}, fmt.Errorf("failed to create meal: %w", err)
	}
	return nil, createdOutput{
		ID:      shortID(m.ID),
		Message: fmt.Sprintf("Logged meal for %s (ID: %s)", m.Date, shortID(m.ID)),
	}, nil
}

func (s *Server) handleListMeals(ctx context.Context, req *mcp.CallToolRequest, input listSinceInput) (*mcp.CallToolResult, any, error) {
	if input.Limit <= 0 {
		input.Limit = defaultListLimit
	}
	meals, err := s.repo.ListMeals(ctx, input.Since, input.Limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list meals: %w", err)
	}
	if len(meals) == 0 {
		return nil, map[string]any{"message": "No meals found."}, nil
	}
	return nil, meals, nil
}

func (s *Server) handleDeleteMeal(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, simpleOutput, error) {
	if err := s.repo.DeleteMeal(ctx, input.ID); err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete meal: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Deleted meal: %s", input.ID)}, nil
}

func (s *Server) handleGetDigest(ctx context.Context, req *mcp.CallToolRequest, input digestInput) (*mcp.CallToolResult, digestOutput, error) {
	t, err := narrative.ParseDigestType(input.Type)
	if err != nil {
		return nil, digestOutput{}, err
	}
	res, err := s.narrative.Generate(ctx, t, input.Regenerate)
	if err != nil {
		return nil, digestOutput{}, fmt.Errorf("failed to generate digest: %w", err)
	}
	return nil, digestOutput{
		Type:    string(res.Digest.Type),
		Date:    res.Digest.Date,
		Content: res.Digest.Content,
		Cached:  res.Cached,
	}, nil
}

func (s *Server) handleAsk(ctx context.Context, req *mcp.CallToolRequest, input askInput) (*mcp.CallToolResult, askOutput, error) {
	answer, err := s.narrative.Ask(ctx, input.Question)
	if err != nil {
		return nil, askOutput{}, err
	}
	return nil, askOutput{Answer: answer}, nil
}

func (s *Server) handleAnalyzeGoal(ctx context.Context, req *mcp.CallToolRequest, input idInput) (*mcp.CallToolResult, any, error) {
	report, err := s.narrative.AnalyzeGoal(ctx, input.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to analyze goal: %w", err)
	}
	return nil, report, nil
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

// workoutView is the JSON shape of a stored workout.
func workoutView(w *models.Workout) map[string]any {
	return map[string]any{
		"id":                 w.ID,
		"day":                w.Day,
		"activity":           w.Activity,
		"start_datetime":     w.StartDatetime,
		"end_datetime":       w.EndDatetime,
		"calories":           w.Calories,
		"intensity":          w.Intensity,
		"average_heart_rate": w.AverageHeartRate,
		"max_heart_rate":     w.MaxHeartRate,
		"distance":           w.Distance,
		"source":             w.Source,
		"label":              w.Label,
		"synced_at":          w.SyncedAt,
	}
}
