package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evidence-triage-server/internal/domain"
)

// Orchestrator fans a query out to every registered source adapter
// concurrently, tolerates per-source failures, and merges the surviving
// result sets into one deduplicated, scored study list.
type Orchestrator struct {
	adapters       []domain.SourceAdapter
	adapterTimeout time.Duration
	defaultMax     int
	logger         *logrus.Logger
}

// NewOrchestrator creates an orchestrator over the given adapters. Adapter
// registration order determines merge order, which keeps output deterministic
// regardless of goroutine completion order.
func NewOrchestrator(adapters []domain.SourceAdapter, adapterTimeout time.Duration, defaultMax int, logger *logrus.Logger) *Orchestrator {
	if adapterTimeout <= 0 {
		adapterTimeout = 30 * time.Second
	}
	if defaultMax <= 0 {
		defaultMax = 50
	}
	return &Orchestrator{
		adapters:       adapters,
		adapterTimeout: adapterTimeout,
		defaultMax:     defaultMax,
		logger:         logger,
	}
}

// adapterOutcome is one adapter's contribution, filled into its indexed slot
// by its fan-out goroutine.
type adapterOutcome struct {
	studies  []domain.NormalizedStudy
	err      error
	duration time.Duration
}

// Retrieve queries all sources concurrently and returns the deduplicated,
// unified study list plus per-source performance metrics. Source failures
// are logged into the screening log and absorbed; even every source failing
// degrades to an empty result rather than an error.
func (o *Orchestrator) Retrieve(ctx context.Context, originalQuery, expandedQuery string, filters domain.SearchFilters, log *domain.ScreeningLog) ([]domain.UnifiedStudy, map[string]domain.DatabasePerformance) {
	adapterFilters := domain.AdapterFilters{
		MaxResults:     filters.MaxResults,
		DateRange:      filters.DateRange,
		Domain:         filters.MedicalDomain,
		OpenAccessOnly: filters.RequireOpenAccess,
	}
	if adapterFilters.MaxResults <= 0 {
		adapterFilters.MaxResults = o.defaultMax
	}

	outcomes := make([]adapterOutcome, len(o.adapters))
	done := make(chan int, len(o.adapters))

	for i, adapter := range o.adapters {
		go func(slot int, a domain.SourceAdapter) {
			defer func() {
				if r := recover(); r != nil {
					outcomes[slot].err = fmt.Errorf("adapter %s panicked: %v", a.Name(), r)
					o.logger.WithField("source", a.Name()).Errorf("Source adapter panicked: %v", r)
				}
				done <- slot
			}()

			callCtx, cancel := context.WithTimeout(ctx, o.adapterTimeout)
			defer cancel()

			start := time.Now()
			studies, err := a.Search(callCtx, expandedQuery, adapterFilters)
			outcomes[slot] = adapterOutcome{studies: studies, err: err, duration: time.Since(start)}
		}(i, adapter)
	}

	for range o.adapters {
		<-done
	}

	performance := make(map[string]domain.DatabasePerformance, len(o.adapters))
	for i, adapter := range o.adapters {
		out := outcomes[i]
		entry := domain.DatabaseQuery{
			Database:    adapter.Name(),
			Query:       expandedQuery,
			Filters:     adapterFilters,
			ResultCount: len(out.studies),
			Timestamp:   time.Now().UTC(),
			Succeeded:   out.err == nil,
		}
		if out.err != nil {
			entry.Error = out.err.Error()
			o.logger.WithFields(logrus.Fields{
				"source":   adapter.Name(),
				"duration": out.duration,
			}).WithError(domain.NewPipelineError(
				domain.ErrCodeSourceAPI, "source search failed", out.err.Error(), log.QueryID,
			)).Warn("Source search failed")
		} else {
			o.logger.WithFields(logrus.Fields{
				"source":   adapter.Name(),
				"results":  len(out.studies),
				"duration": out.duration,
			}).Debug("Source search completed")
		}
		log.AppendSearch(entry)
		performance[adapter.Name()] = domain.DatabasePerformance{
			ResultCount: len(out.studies),
			Duration:    out.duration,
			Succeeded:   out.err == nil,
		}
	}

	merged := o.merge(outcomes)
	// MaxResults caps the merged total, not just each adapter's share.
	if len(merged) > adapterFilters.MaxResults {
		merged = merged[:adapterFilters.MaxResults]
	}
	log.TotalRetrieved = len(merged)

	unified := make([]domain.UnifiedStudy, 0, len(merged))
	for _, n := range merged {
		quality := BaselineQualityScore(n)
		relevance := RelevanceScore(n, originalQuery)
		unified = append(unified, domain.UnifyStudy(n, quality, relevance))
	}
	return unified, performance
}

// merge flattens the per-adapter slots in registration order, dropping
// duplicates by DOI-or-title identity. First occurrence wins.
func (o *Orchestrator) merge(outcomes []adapterOutcome) []domain.NormalizedStudy {
	seen := make(map[string]struct{})
	var merged []domain.NormalizedStudy
	for _, out := range outcomes {
		if out.err != nil {
			continue
		}
		for _, study := range out.studies {
			key := study.DedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, study)
		}
	}
	return merged
}

// BaselineQualityScore assigns an initial quality estimate from design and
// metadata completeness. The bias assessor later refines this for trials and
// reviews; for other designs it stands as the final score.
func BaselineQualityScore(n domain.NormalizedStudy) float64 {
	score := baseScoreForType(domain.CanonicalStudyType(n.RawStudyType))

	if len(n.Abstract) > 200 {
		score += 10
	}
	if n.DOI != "" {
		score += 5
	}
	if len(n.Authors) >= 3 {
		score += 5
	}
	// Recency bonus decays over ten years.
	age := time.Since(n.PublishedAt)
	if !n.PublishedAt.IsZero() && age < 10*365*24*time.Hour {
		score += 10 * (1 - age.Hours()/(10*365*24))
	}

	return domain.ClampScore(score)
}

func baseScoreForType(st domain.StudyType) float64 {
	switch st {
	case domain.StudySystematicReview:
		return 60
	case domain.StudyRCT:
		return 55
	case domain.StudyCohort:
		return 45
	case domain.StudyCaseControl:
		return 40
	case domain.StudyCaseSeries:
		return 30
	default:
		return 25
	}
}

// RelevanceScore measures query-term overlap against the study's title and
// abstract. Title matches weigh double.
func RelevanceScore(n domain.NormalizedStudy, query string) float64 {
	terms := significantTerms(query)
	if len(terms) == 0 {
		return 50
	}

	title := strings.ToLower(n.Title)
	abstract := strings.ToLower(n.Abstract)

	var matched float64
	for _, term := range terms {
		switch {
		case strings.Contains(title, term):
			matched += 2
		case strings.Contains(abstract, term):
			matched += 1
		}
	}
	return domain.ClampScore(matched / (2 * float64(len(terms))) * 100)
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "de": {}, "do": {}, "does": {},
	"for": {}, "in": {}, "is": {}, "of": {}, "on": {}, "or": {}, "the": {},
	"to": {}, "what": {}, "with": {},
}

func significantTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		f = strings.Trim(f, `"()?.,;:`)
		if len(f) < 3 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}
