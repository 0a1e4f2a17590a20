package domain

import "context"

// SourceAdapter is implemented once per external literature database. An
// adapter normalizes its database's responses into NormalizedStudy records.
// Implementations must treat "no results" as an empty slice, not an error;
// transport and payload errors may be returned and are absorbed by the
// retrieval orchestrator as an empty result for that source.
type SourceAdapter interface {
	Name() string
	Search(ctx context.Context, query string, filters AdapterFilters) ([]NormalizedStudy, error)
}

// BiasAssessor produces a heuristic bias/quality profile for one study.
// Kept narrow so the keyword heuristics can later be swapped for a trained
// classifier without touching the screening engine or GRADE calculator.
type BiasAssessor interface {
	Assess(study UnifiedStudy) QualityReport
}

// LogStore is the injectable persistence port for screening logs. A log is
// only ever written by the pipeline instance that created it; stores must be
// safe for concurrent access across queries.
type LogStore interface {
	// Create persists a new screening log keyed by its query id.
	Create(ctx context.Context, log *ScreeningLog) error

	// Update persists the current state of an existing log.
	Update(ctx context.Context, log *ScreeningLog) error

	// Get retrieves a log by query id. Returns ErrLogNotFound when absent.
	Get(ctx context.Context, queryID string) (*ScreeningLog, error)

	// List returns logs ordered by start time descending, with pagination.
	List(ctx context.Context, limit, offset int) ([]*ScreeningLog, error)

	// Delete removes a log by query id.
	Delete(ctx context.Context, queryID string) error

	// Close releases store resources.
	Close() error
}
