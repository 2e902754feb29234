// ABOUTME: User-authored journal entries: notes, goals, and meals.
// ABOUTME: These feed the narrative collaborator alongside synced ring data.
package models

import (
	"time"

	"github.com/google/uuid"
)

// NoteType categorizes a free-text note.
type NoteType string

const (
	NoteGeneral    NoteType = "general"
	NoteReflection NoteType = "reflection"
	NoteSymptom    NoteType = "symptom"
	NoteTraining   NoteType = "training"
)

// IsValidNoteType checks if a string is a known note type.
func IsValidNoteType(s string) bool {
	switch NoteType(s) {
	case NoteGeneral, NoteReflection, NoteSymptom, NoteTraining:
		return true
	}
	return false
}

// Note is a dated free-text reflection.
type Note struct {
	ID        uuid.UUID `json:"id"`
	Date      string    `json:"date"`
	NoteType  NoteType  `json:"note_type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNote creates a note dated today with the general type.
func NewNote(content string) *Note {
	now := time.Now()
	return &Note{
		ID:        uuid.New(),
		Date:      now.Format(DateLayout),
		NoteType:  NoteGeneral,
		Content:   content,
		CreatedAt: now,
	}
}

// WithDate sets the calendar day the note refers to.
func (n *Note) WithDate(day string) *Note {
	n.Date = day
	return n
}

// WithType sets the note type.
func (n *Note) WithType(t NoteType) *Note {
	n.NoteType = t
	return n
}

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalAbandoned GoalStatus = "abandoned"
)

// IsValidGoalStatus checks if a string is a known goal status.
func IsValidGoalStatus(s string) bool {
	switch GoalStatus(s) {
	case GoalActive, GoalCompleted, GoalAbandoned:
		return true
	}
	return false
}

// GoalLowerRunningHR is the goal type with built-in progress tracking.
const GoalLowerRunningHR = "lower_running_hr"

// Goal is a user training or health goal.
type Goal struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	GoalType     string     `json:"goal_type"`
	TargetValue  *string    `json:"target_value,omitempty"`
	CurrentValue *string    `json:"current_value,omitempty"`
	StartDate    string     `json:"start_date"`
	TargetDate   *string    `json:"target_date,omitempty"`
	Status       GoalStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewGoal creates an active goal starting today.
func NewGoal(title, goalType string) *Goal {
	now := time.Now()
	return &Goal{
		ID:        uuid.New(),
		Title:     title,
		GoalType:  goalType,
		StartDate: now.Format(DateLayout),
		Status:    GoalActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithDescription sets the goal description.
func (g *Goal) WithDescription(d string) *Goal {
	g.Description = &d
	return g
}

// WithTarget sets the target value and optional target date.
func (g *Goal) WithTarget(value, date string) *Goal {
	if value != "" {
		g.TargetValue = &value
	}
	if date != "" {
		g.TargetDate = &date
	}
	return g
}

// WithStartDate overrides the start date.
func (g *Goal) WithStartDate(day string) *Goal {
	g.StartDate = day
	return g
}

// Meal is a logged meal.
type Meal struct {
	ID               uuid.UUID `json:"id"`
	Date             string    `json:"date"`
	Time             *string   `json:"time,omitempty"`
	Description      string    `json:"description"`
	EstimatedPortion *string   `json:"estimated_portion,omitempty"`
	Notes            *string   `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewMeal creates a meal logged now.
func NewMeal(description string) *Meal {
	now := time.Now()
	hhmm := now.Format("15:04")
	return &Meal{
		ID:          uuid.New(),
		Date:        now.Format(DateLayout),
		Time:        &hhmm,
		Description: description,
		CreatedAt:   now,
	}
}

// WithPortion sets the estimated portion.
func (m *Meal) WithPortion(p string) *Meal {
	m.EstimatedPortion = &p
	return m
}

// WithNotes sets notes on the meal.
func (m *Meal) WithNotes(notes string) *Meal {
	m.Notes = &notes
	return m
}
