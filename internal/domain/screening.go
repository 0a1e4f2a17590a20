package domain

import (
	"sync"
	"time"
)

// DateRange bounds the publication dates accepted during screening.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls within [Start, End] inclusive.
func (dr DateRange) Contains(t time.Time) bool {
	return !t.Before(dr.Start) && !t.After(dr.End)
}

// DatabaseQuery records a single call to one source database, successful or
// not. One entry is appended to the screening log per adapter call.
type DatabaseQuery struct {
	Database    string         `json:"database"`
	Query       string         `json:"query"`
	Filters     AdapterFilters `json:"filters"`
	ResultCount int            `json:"result_count"`
	Timestamp   time.Time      `json:"timestamp"`
	Succeeded   bool           `json:"succeeded"`
	Error       string         `json:"error,omitempty"`
}

// ExclusionDetail is the auditable record of one screening rejection.
// Created once, never mutated.
type ExclusionDetail struct {
	StudyID        string          `json:"study_id"`
	DOI            string          `json:"doi,omitempty"`
	Title          string          `json:"title"`
	SourceDatabase string          `json:"source_database"`
	Reason         ExclusionReason `json:"exclusion_reason"`
	ReasonDetails  string          `json:"reason_details"`
}

// QualityMetrics aggregates quality statistics over the included studies.
type QualityMetrics struct {
	AverageQualityScore float64           `json:"average_quality_score"`
	EvidenceLevels      map[int]int       `json:"evidence_levels"`
	StudyTypes          map[StudyType]int `json:"study_types"`
	OpenAccessPercent   float64           `json:"open_access_percent"`
}

// ScreeningLog is the auditable per-query record of everything the pipeline
// did: every source call, every inclusion/exclusion decision, and the derived
// quality metrics. It is created at query start, mutated additively by the
// pipeline that owns it, and read-only afterward. The append methods are
// mutex-guarded because search-strategy entries arrive from concurrent
// adapter goroutines.
type ScreeningLog struct {
	mu sync.Mutex

	QueryID        string            `json:"query_id"`
	Query          string            `json:"query"`
	ExpandedQuery  string            `json:"expanded_query"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    time.Time         `json:"completed_at"`
	DateRange      *DateRange        `json:"date_range,omitempty"`
	TotalRetrieved int               `json:"total_retrieved"`
	Included       []UnifiedStudy    `json:"included_studies"`
	Excluded       []ExclusionDetail `json:"excluded_studies"`
	SearchStrategy []DatabaseQuery   `json:"search_strategy"`
	SourceCounts   map[string]int    `json:"source_counts"`
	Metrics        QualityMetrics    `json:"quality_metrics"`
}

// NewScreeningLog creates an empty log for a query run.
func NewScreeningLog(queryID, query string, dateRange *DateRange) *ScreeningLog {
	return &ScreeningLog{
		QueryID:      queryID,
		Query:        query,
		StartedAt:    time.Now().UTC(),
		DateRange:    dateRange,
		SourceCounts: make(map[string]int),
	}
}

// AppendSearch records one source database call. Safe for concurrent use;
// entries may land in any completion order across adapters.
func (l *ScreeningLog) AppendSearch(q DatabaseQuery) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.SearchStrategy = append(l.SearchStrategy, q)
	if q.Succeeded {
		l.SourceCounts[q.Database] += q.ResultCount
	}
}

// RecordDecisions stores the screening outcome. Called once, after the
// sequential screening stage.
func (l *ScreeningLog) RecordDecisions(included []UnifiedStudy, excluded []ExclusionDetail) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Included = included
	l.Excluded = excluded
}

// Finalize computes the derived quality metrics and stamps completion.
func (l *ScreeningLog) Finalize() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.CompletedAt = time.Now().UTC()
	l.Metrics = computeQualityMetrics(l.Included)
}

// SearchStrategySnapshot returns a copy of the recorded source calls.
func (l *ScreeningLog) SearchStrategySnapshot() []DatabaseQuery {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]DatabaseQuery, len(l.SearchStrategy))
	copy(out, l.SearchStrategy)
	return out
}

func computeQualityMetrics(included []UnifiedStudy) QualityMetrics {
	m := QualityMetrics{
		EvidenceLevels: make(map[int]int),
		StudyTypes:     make(map[StudyType]int),
	}
	if len(included) == 0 {
		return m
	}

	var qualitySum float64
	openAccess := 0
	for _, s := range included {
		qualitySum += s.QualityScore
		m.EvidenceLevels[s.EvidenceLevel]++
		m.StudyTypes[s.StudyType]++
		if s.IsOpenAccess {
			openAccess++
		}
	}
	m.AverageQualityScore = qualitySum / float64(len(included))
	m.OpenAccessPercent = float64(openAccess) / float64(len(included)) * 100
	return m
}
