// ABOUTME: Orchestrator settings for full syncs.
// ABOUTME: Stream selection, empty-response policy, fan-out limit, lock TTL, and clock.
package sync

import (
	"fmt"
	"time"

	"github.com/harperreed/ringhealth/internal/models"
)

// EmptyPolicy decides what happens when a stream returns no records.
type EmptyPolicy string

const (
	// EmptySkip leaves the checkpoint untouched and reports zero records.
	EmptySkip EmptyPolicy = "skip"
	// EmptyFlag does the same and also records a retry flag for the stream.
	EmptyFlag EmptyPolicy = "flag"
)

// ParseEmptyPolicy converts a config string to an EmptyPolicy. Blank means skip.
func ParseEmptyPolicy(s string) (EmptyPolicy, error) {
	switch EmptyPolicy(s) {
	case "", EmptySkip:
		return EmptySkip, nil
	case EmptyFlag:
		return EmptyFlag, nil
	default:
		return "", fmt.Errorf("unknown empty policy %q (want skip or flag)", s)
	}
}

// Config stores sync settings.
type Config struct {
	// Streams to sync, in reporting order. Empty means every known stream.
	Streams     []models.StreamKind
	EmptyPolicy EmptyPolicy

	// Concurrency caps parallel vendor fetches.
	Concurrency int

	// LockTTL bounds how long a crashed run can block others.
	LockTTL time.Duration

	// Location is the zone "today" is computed in.
	Location *time.Location
	Now      func() time.Time
}

// DefaultConfig returns settings suitable for a personal sync.
func DefaultConfig() Config {
	return Config{
		Streams:     append([]models.StreamKind(nil), models.AllStreams...),
		EmptyPolicy: EmptySkip,
		Concurrency: 4,
		LockTTL:     10 * time.Minute,
		Location:    time.Local,
		Now:         time.Now,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() (Config, error) {
	def := DefaultConfig()
	if len(c.Streams) == 0 {
		c.Streams = def.Streams
	}
	for _, k := range c.Streams {
		if !models.IsValidStream(string(k)) {
			return c, fmt.Errorf("unknown stream: %s", k)
		}
	}
	policy, err := ParseEmptyPolicy(string(c.EmptyPolicy))
	if err != nil {
		return c, err
	}
	c.EmptyPolicy = policy
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.LockTTL <= 0 {
		c.LockTTL = def.LockTTL
	}
	if c.Location == nil {
		c.Location = def.Location
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	return c, nil
}
