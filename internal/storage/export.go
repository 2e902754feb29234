// ABOUTME: Export and import functionality for synced ring data and journal entries.
// ABOUTME: Supports JSON, YAML, and Markdown export formats; JSON round-trips.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/harperreed/ringhealth/internal/mapper"
	"github.com/harperreed/ringhealth/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportVersion is the current export file format version.
const ExportVersion = "1.0"

// ExportData represents the full export format.
// Records hold the verbatim vendor payloads per stream so an import can
// re-map them through the current schema.
type ExportData struct {
	Version     string                                  `json:"version" yaml:"version"`
	ExportedAt  time.Time                               `json:"exported_at" yaml:"exported_at"`
	Tool        string                                  `json:"tool" yaml:"tool"`
	Records     map[models.StreamKind][]json.RawMessage `json:"records" yaml:"-"`
	Checkpoints []*models.Checkpoint                    `json:"checkpoints" yaml:"checkpoints"`
	Notes       []*models.Note                          `json:"notes" yaml:"notes"`
	Goals       []*models.Goal                          `json:"goals" yaml:"goals"`
	Meals       []*models.Meal                          `json:"meals" yaml:"meals"`
}

// ImportSummary counts what an import wrote.
type ImportSummary struct {
	Records   map[models.StreamKind]int
	Malformed int
	Notes     int
	Goals     int
	Meals     int
}

// RawPayloads returns the stored vendor payloads for a stream, oldest first.
// Heart-rate samples keep no payload, so they are rebuilt from their columns.
func (d *DB) RawPayloads(ctx context.Context, kind models.StreamKind) ([]json.RawMessage, error) {
	return d.payloads(ctx, kind, false, 0)
}

// RecentPayloads returns up to limit vendor payloads for a stream, newest first.
// A limit of zero returns every payload.
func (d *DB) RecentPayloads(ctx context.Context, kind models.StreamKind, limit int) ([]json.RawMessage, error) {
	return d.payloads(ctx, kind, true, limit)
}

func (d *DB) payloads(ctx context.Context, kind models.StreamKind, newestFirst bool, limit int) ([]json.RawMessage, error) {
	if kind == models.StreamHeartRate {
		samples, err := d.ListHeartRate(ctx, limit)
		if err != nil {
			return nil, err
		}
		out := make([]json.RawMessage, len(samples))
		for i, s := range samples {
			b, err := json.Marshal(map[string]any{"timestamp": s.Timestamp, "bpm": s.BPM, "source": s.Source})
			if err != nil {
				return nil, fmt.Errorf("encode heart rate: %w", err)
			}
			if newestFirst {
				out[i] = b
			} else {
				out[len(samples)-1-i] = b
			}
		}
		return out, nil
	}

	spec, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("raw payloads: unknown stream %q", kind)
	}
	order := " ASC"
	if newestFirst {
		order = " DESC"
	}
	query, args := limitClause("SELECT raw_data FROM "+spec.table+
		" WHERE raw_data IS NOT NULL ORDER BY day"+order+", "+spec.columns[0]+order, nil, limit)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("raw payloads %s: %w", kind, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan payload: %w", err)
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}

// GetAllData retrieves all data for export.
func (d *DB) GetAllData(ctx context.Context) (*ExportData, error) {
	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now(),
		Tool:       "ringhealth",
		Records:    make(map[models.StreamKind][]json.RawMessage),
	}

	for _, kind := range models.AllStreams {
		payloads, err := d.RawPayloads(ctx, kind)
		if err != nil {
			return nil, err
		}
		if len(payloads) > 0 {
			data.Records[kind] = payloads
		}
	}

	var err error
	if data.Checkpoints, err = d.ListCheckpoints(ctx); err != nil {
		return nil, err
	}
	if data.Notes, err = d.ListNotes(ctx, "", 0); err != nil {
		return nil, err
	}
	if data.Goals, err = d.ListGoals(ctx, nil); err != nil {
		return nil, err
	}
	if data.Meals, err = d.ListMeals(ctx, "", 0); err != nil {
		return nil, err
	}
	return data, nil
}

// ImportData writes an export back into the store. Ring records are re-mapped
// from their payloads and upserted, so re-importing the same records is harmless.
// Malformed payloads are counted and skipped.
func (d *DB) ImportData(ctx context.Context, data *ExportData) (*ImportSummary, error) {
	summary := &ImportSummary{Records: make(map[models.StreamKind]int)}

	for _, kind := range models.AllStreams {
		payloads := data.Records[kind]
		if len(payloads) == 0 {
			continue
		}
		raws := make([]models.RawRecord, len(payloads))
		for i, p := range payloads {
			raws[i] = models.RawRecord(p)
		}
		rows, errs := mapper.MapBatch(kind, raws)
		summary.Malformed += len(errs)
		if len(rows) == 0 {
			continue
		}
		n, err := d.UpsertBatch(ctx, kind, rows)
		if err != nil {
			return summary, fmt.Errorf("import %s: %w", kind, err)
		}
		summary.Records[kind] = n
	}

	for _, cp := range data.Checkpoints {
		if err := d.RecordCheckpoint(ctx, cp.Stream, cp.LastSyncDate); err != nil {
			return summary, fmt.Errorf("import checkpoint: %w", err)
		}
	}
	for _, n := range data.Notes {
		if err := d.CreateNote(ctx, n); err != nil {
			return summary, fmt.Errorf("import note: %w", err)
		}
		summary.Notes++
	}
	for _, g := range data.Goals {
		if err := d.CreateGoal(ctx, g); err != nil {
			return summary, fmt.Errorf("import goal: %w", err)
		}
		summary.Goals++
	}
	for _, m := range data.Meals {
		if err := d.CreateMeal(ctx, m); err != nil {
			return summary, fmt.Errorf("import meal: %w", err)
		}
		summary.Meals++
	}
	return summary, nil
}

// ExportJSON exports all data as JSON.
func (d *DB) ExportJSON(ctx context.Context) ([]byte, error) {
	data, err := d.GetAllData(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ImportJSON imports data from JSON bytes.
func (d *DB) ImportJSON(ctx context.Context, b []byte) (*ImportSummary, error) {
	var data ExportData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if data.Version != ExportVersion {
		return nil, fmt.Errorf("unsupported export version %q", data.Version)
	}
	return d.ImportData(ctx, &data)
}

// ExportYAML exports a human-readable summary of the data as YAML.
// Vendor payloads are omitted; use JSON for a full backup.
func (d *DB) ExportYAML(ctx context.Context) ([]byte, error) {
	data, err := d.GetAllData(ctx)
	if err != nil {
		return nil, err
	}

	yamlData := struct {
		Version    string         `yaml:"version"`
		ExportedAt string         `yaml:"exported_at"`
		Tool       string         `yaml:"tool"`
		Counts     map[string]int `yaml:"counts"`
		Sync       []yamlSync     `yaml:"sync"`
		Notes      []yamlNote     `yaml:"notes,omitempty"`
		Goals      []yamlGoal     `yaml:"goals,omitempty"`
		Meals      []yamlMeal     `yaml:"meals,omitempty"`
	}{
		Version:    data.Version,
		ExportedAt: data.ExportedAt.Format(time.RFC3339),
		Tool:       data.Tool,
		Counts:     make(map[string]int),
	}

	for kind, payloads := range data.Records {
		yamlData.Counts[string(kind)] = len(payloads)
	}
	for _, cp := range data.Checkpoints {
		yamlData.Sync = append(yamlData.Sync, yamlSync{
			Stream:   string(cp.Stream),
			Through:  cp.LastSyncDate,
			SyncedAt: cp.LastSyncTimestamp.Format(time.RFC3339),
		})
	}
	for _, n := range data.Notes {
		yamlData.Notes = append(yamlData.Notes, yamlNote{
			ID: n.ID.String()[:8], Date: n.Date, Type: string(n.NoteType), Content: n.Content,
		})
	}
	for _, g := range data.Goals {
		yg := yamlGoal{ID: g.ID.String()[:8], Title: g.Title, Type: g.GoalType, Status: string(g.Status)}
		if g.TargetValue != nil {
			yg.Target = *g.TargetValue
		}
		yamlData.Goals = append(yamlData.Goals, yg)
	}
	for _, m := range data.Meals {
		ym := yamlMeal{ID: m.ID.String()[:8], Date: m.Date, Description: m.Description}
		if m.Time != nil {
			ym.Time = *m.Time
		}
		yamlData.Meals = append(yamlData.Meals, ym)
	}

	return yaml.Marshal(yamlData)
}

type yamlSync struct {
	Stream   string `yaml:"stream"`
	Through  string `yaml:"through"`
	SyncedAt string `yaml:"synced_at"`
}

type yamlNote struct {
	ID      string `yaml:"id"`
	Date    string `yaml:"date"`
	Type    string `yaml:"type"`
	Content string `yaml:"content"`
}

type yamlGoal struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Type   string `yaml:"type"`
	Status string `yaml:"status"`
	Target string `yaml:"target,omitempty"`
}

type yamlMeal struct {
	ID          string `yaml:"id"`
	Date        string `yaml:"date"`
	Time        string `yaml:"time,omitempty"`
	Description string `yaml:"description"`
}

// ExportMarkdown renders the most recent days of ring data as Markdown tables.
func (d *DB) ExportMarkdown(ctx context.Context, days int) (string, error) {
	sleep, err := d.ListSleep(ctx, days)
	if err != nil {
		return "", err
	}
	readiness, err := d.ListReadiness(ctx, days)
	if err != nil {
		return "", err
	}
	activity, err := d.ListActivity(ctx, days)
	if err != nil {
		return "", err
	}

	byDay := make(map[string][3]string)
	var order []string
	add := func(day string, col int, v string) {
		row, seen := byDay[day]
		if !seen {
			order = append(order, day)
		}
		row[col] = v
		byDay[day] = row
	}
	for _, s := range sleep {
		add(s.Day, 0, intOrDash(s.Score))
	}
	for _, r := range readiness {
		add(r.Day, 1, intOrDash(r.Score))
	}
	for _, a := range activity {
		add(a.Day, 2, intOrDash(a.Steps))
	}

	var sb strings.Builder
	now := time.Now()

	sb.WriteString(fmt.Sprintf("# Ring Health Export - %s\n\n", now.Format(models.DateLayout)))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	sb.WriteString("## Daily\n\n")
	sb.WriteString("| Day | Sleep | Readiness | Steps |\n")
	sb.WriteString("|-----|-------|-----------|-------|\n")
	sort.Sort(sort.Reverse(sort.StringSlice(order)))
	for _, day := range order {
		row := byDay[day]
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", day, dash(row[0]), dash(row[1]), dash(row[2])))
	}

	workouts, err := d.ListWorkouts(ctx, days)
	if err == nil && len(workouts) > 0 {
		sb.WriteString("\n## Workouts\n\n")
		sb.WriteString("| Day | Activity | Calories | Avg HR |\n")
		sb.WriteString("|-----|----------|----------|--------|\n")
		for _, w := range workouts {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				w.Day, w.Activity, floatOrDash(w.Calories), floatOrDash(w.AverageHeartRate)))
		}
	}

	notes, err := d.ListNotes(ctx, "", days)
	if err == nil && len(notes) > 0 {
		sb.WriteString("\n## Notes\n\n")
		for _, n := range notes {
			sb.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", n.Date, n.NoteType, n.Content))
		}
	}

	return sb.String(), nil
}

func intOrDash(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
