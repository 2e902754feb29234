// ABOUTME: Builds the system and user prompts for each narrative kind.
// ABOUTME: Synced rows are rendered as their original vendor payloads.
package narrative

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/harperreed/ringhealth/internal/models"
)

const systemPrompt = `You are a personal health assistant reading data from the user's Oura ring.
Write like a knowledgeable, supportive coach. Reference actual numbers and connect patterns
across sleep, recovery, activity, and workouts. Be specific and actionable.`

var digestFocus = map[DigestType]string{
	DigestMorning:   "This is a morning digest. Focus on last night's sleep, today's readiness, and what to prioritize given recovery and goals.",
	DigestAfternoon: "This is an afternoon digest. Focus on activity so far, energy, and progress toward goals.",
	DigestEvening:   "This is an evening digest. Reflect on the whole day, including activity, workouts, stress, and meals, and suggest one thing for tomorrow.",
}

// BuildPrompt renders in as a system prompt and a single user message.
func BuildPrompt(in Input) (system, user string) {
	var b strings.Builder

	switch in.Kind {
	case KindDigest:
		b.WriteString(digestFocus[in.DigestType])
		b.WriteString("\n\n")
	case KindGoal:
		b.WriteString("Analyze progress toward this goal.\n\n")
	}

	b.WriteString("## Health data\n")
	if in.Kind == KindGoal {
		section(&b, "Sleep since goal start", rawRows(in.Sleep), "No sleep data")
		section(&b, "Readiness since goal start", rawRows(in.Readiness), "No readiness data")
	} else {
		section(&b, "Sleep (last 7 days)", rawRows(in.Sleep), "No sleep data")
		section(&b, "Activity (last 7 days)", rawRows(in.Activity), "No activity data")
		section(&b, "Readiness (last 7 days)", rawRows(in.Readiness), "No readiness data")
	}
	if in.Kind == KindDigest {
		section(&b, "Stress (last 7 days)", rawRows(in.Stress), "No stress data")
		section(&b, "Blood oxygen (last 7 days)", rawRows(in.SpO2), "No SpO2 data")
		section(&b, "Sleep sessions", rawRows(in.SleepSessions), "No sleep sessions")
	}
	section(&b, "Workouts", rawRows(in.Workouts), "No workouts")

	if in.Kind == KindGoal {
		section(&b, "Goal", in.Goal, "")
		section(&b, "Computed progress", in.Progress, "Not enough workouts to compute a trend")
	} else {
		section(&b, "Meals", in.Meals, "No meals logged recently")
		section(&b, "Active goals", in.Goals, "No active goals")
		section(&b, "Notes", in.Notes, "No recent notes")
	}

	b.WriteString("\n## Task\n")
	switch in.Kind {
	case KindDigest:
		b.WriteString("Start with a one to three sentence summary of the key takeaway, then a blank line, " +
			"then three to five paragraphs. Open with a greeting and close with a concrete recommendation.\n")
	case KindChat:
		fmt.Fprintf(&b, "Answer the user's question using their data in two to four paragraphs.\n\nQuestion: %s\n", in.Question)
	case KindGoal:
		b.WriteString("In two or three paragraphs cover current progress, the trend over time, " +
			"what the data suggests, and one actionable recommendation.\n")
	}
	if in.Date != "" {
		fmt.Fprintf(&b, "\nDate: %s\n", in.Date)
	}

	return systemPrompt, b.String()
}

// section writes a heading followed by v as indented JSON, or empty when v is empty.
func section(b *strings.Builder, title string, v any, empty string) {
	fmt.Fprintf(b, "\n### %s\n", title)
	if isEmpty(v) {
		if empty != "" {
			b.WriteString(empty)
			b.WriteString("\n")
		}
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(b, "(unavailable: %v)\n", err)
		return
	}
	b.Write(data)
	b.WriteString("\n")
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case []json.RawMessage:
		return len(x) == 0
	case []*models.Meal:
		return len(x) == 0
	case []*models.Goal:
		return len(x) == 0
	case []*models.Note:
		return len(x) == 0
	case *models.Goal:
		return x == nil
	case *Progress:
		return x == nil || x.TotalWorkouts == 0
	}
	return false
}

// rawRows returns each row's stored vendor payload.
func rawRows[T models.Row](rows []T) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		if raw := r.Meta().RawData; len(raw) > 0 {
			out = append(out, json.RawMessage(raw))
		}
	}
	return out
}
