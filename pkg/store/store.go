// Package store persists completed simulation runs for the HTTP API.
//
// Implementations:
//   - [MemoryStore]: process-local, for development and tests
//   - [FileStore]: one JSON file per run, for single-instance servers
//   - [MongoStore]: MongoDB collection, for multi-instance deployments
//
// Get returns (nil, nil) for an unknown ID, mirroring a cache miss; callers
// decide whether that is a NOT_FOUND.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rodysim/rody/pkg/scenario"
	"github.com/rodysim/rody/pkg/sim"
	"github.com/rodysim/rody/pkg/sink"
)

// Record is one stored run.
type Record struct {
	ID        string            `json:"id" bson:"_id"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at"`
	Scenario  scenario.Scenario `json:"scenario" bson:"scenario"`
	Format    sink.Format       `json:"format" bson:"format"`
	Summary   sim.Summary       `json:"summary" bson:"summary"`
	Output    string            `json:"output" bson:"output"`
	CacheHit  bool              `json:"cache_hit" bson:"cache_hit"`
	Warnings  []string          `json:"warnings,omitempty" bson:"warnings,omitempty"`
}

// NewRecord returns a record with a fresh ID and creation time.
func NewRecord() *Record {
	return &Record{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
}

// ValidID reports whether id is a well-formed record ID.
func ValidID(id string) bool {
	return uuid.Validate(id) == nil
}

// ListOptions page through records, newest first.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListLimit applies when ListOptions.Limit is not positive.
const DefaultListLimit = 50

// MaxListLimit caps ListOptions.Limit.
const MaxListLimit = 500

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// Store is the interface for run storage backends.
type Store interface {
	// Get returns the record with id, or nil, nil if there is none.
	Get(ctx context.Context, id string) (*Record, error)

	// Put inserts or replaces a record.
	Put(ctx context.Context, r *Record) error

	// List returns records newest first.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}

// page sorts records newest first (ID breaks ties) and applies opts.
func page(recs []*Record, opts ListOptions) []*Record {
	opts = opts.normalized()
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
	if opts.Offset >= len(recs) {
		return []*Record{}
	}
	recs = recs[opts.Offset:]
	if len(recs) > opts.Limit {
		recs = recs[:opts.Limit]
	}
	return recs
}
