package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/evidence-triage-server/internal/domain"
)

// Pipeline runs a clinical question through every evidence stage in order:
// expansion, retrieval, screening, bias assessment, GRADE rating,
// meta-analysis, and gap analysis. Each Search call is independent and the
// pipeline is safe for concurrent queries.
type Pipeline struct {
	expander     *Expander
	orchestrator *Orchestrator
	screener     *Screener
	assessor     domain.BiasAssessor
	grader       *GRADECalculator
	meta         *MetaAnalyzer
	gaps         *GapAnalyzer
	store        domain.LogStore
	logger       *logrus.Logger
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(
	expander *Expander,
	orchestrator *Orchestrator,
	screener *Screener,
	assessor domain.BiasAssessor,
	store domain.LogStore,
	logger *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		expander:     expander,
		orchestrator: orchestrator,
		screener:     screener,
		assessor:     assessor,
		grader:       NewGRADECalculator(),
		meta:         NewMetaAnalyzer(),
		gaps:         NewGapAnalyzer(),
		store:        store,
		logger:       logger,
	}
}

// Search executes the full pipeline for one query. Only input validation
// produces an error; every downstream stage degrades to partial or empty
// results instead of failing the search.
func (p *Pipeline) Search(ctx context.Context, query string, filters domain.SearchFilters) (*domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("query", "must not be empty")
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	queryID := uuid.New().String()
	started := time.Now()
	log := domain.NewScreeningLog(queryID, query, filters.DateRange)

	expanded := p.expander.Expand(query)
	log.ExpandedQuery = expanded.Expanded

	p.logger.WithFields(logrus.Fields{
		"query_id":  queryID,
		"query":     query,
		"specialty": expanded.Specialty,
	}).Info("Evidence search started")

	studies, performance := p.orchestrator.Retrieve(ctx, query, expanded.Expanded, filters, log)

	included, excluded := p.screener.Screen(studies, filters)
	log.RecordDecisions(included, excluded)

	reports := make([]domain.QualityReport, 0, len(included))
	for i, study := range included {
		report := p.assessor.Assess(study)
		// The assessor's design-specific score supersedes the baseline.
		included[i].QualityScore = report.QualityScore
		reports = append(reports, report)
	}

	metaResult := p.meta.Pool(included)
	grade := p.grader.Assess(included, reports, metaResult)
	gaps := p.gaps.Analyze(query, included)

	log.Finalize()
	if err := p.store.Create(ctx, log); err != nil {
		// Persistence failure must not lose the computed result.
		p.logger.WithError(domain.NewPipelineError(
			domain.ErrCodeStorage, "failed to persist screening log", err.Error(), queryID,
		)).Error("Failed to persist screening log")
	}

	result := &domain.SearchResult{
		Query:               query,
		QueryID:             queryID,
		TotalRetrieved:      log.TotalRetrieved,
		IncludedStudies:     included,
		ExcludedStudies:     excluded,
		GradeAssessment:     grade,
		MetaAnalysis:        metaResult,
		EvidenceGaps:        gaps,
		DatabasePerformance: performance,
		Recommendations:     buildRecommendations(included, grade, gaps),
	}
	// Evidence gaps in a recognized specialty pull in that specialty's
	// curated search-strategy suggestions and landmark trials.
	if expanded.Specialty != "" && len(gaps) > 0 {
		result.Recommendations = append(result.Recommendations, p.expander.SearchSuggestions(expanded.Specialty)...)
		if trials := p.expander.LandmarkTrials(expanded.Specialty); len(trials) > 0 {
			result.Recommendations = append(result.Recommendations,
				"Review landmark trials in this area: "+strings.Join(trials, ", "))
		}
	}
	if filters.IncludeScreeningLog {
		result.ScreeningLog = log
	}
	if filters.IncludeBiasAssessment {
		result.QualityReports = reports
	}
	if filters.OptimizePatientLanguage {
		result.PatientSummary = renderPatientSummary(query, included, grade)
	}

	p.logger.WithFields(logrus.Fields{
		"query_id": queryID,
		"included": len(included),
		"excluded": len(excluded),
		"duration": time.Since(started),
	}).Info("Evidence search completed")

	return result, nil
}

// GetScreeningLog retrieves a persisted log by query id.
func (p *Pipeline) GetScreeningLog(ctx context.Context, queryID string) (*domain.ScreeningLog, error) {
	return p.store.Get(ctx, queryID)
}

// ListScreeningLogs returns persisted logs, newest first.
func (p *Pipeline) ListScreeningLogs(ctx context.Context, limit, offset int) ([]*domain.ScreeningLog, error) {
	return p.store.List(ctx, limit, offset)
}

// buildRecommendations derives actionable guidance from the graded evidence.
func buildRecommendations(included []domain.UnifiedStudy, grade *domain.GRADEAssessment, gaps []domain.EvidenceGap) []string {
	var recs []string

	if len(included) == 0 {
		recs = append(recs,
			"No relevant studies found for this question",
			"Consult clinical practice guidelines from specialty societies for expert consensus",
			"Check trial registries such as ClinicalTrials.gov for ongoing studies",
		)
		for _, gap := range gaps {
			if gap.Severity == domain.SeverityHigh {
				recs = append(recs, gap.Recommendation)
			}
		}
		return recs
	}

	if grade != nil {
		recs = append(recs, RenderSummary(grade))
		switch grade.Confidence {
		case domain.ConfidenceHigh:
			recs = append(recs, "The evidence supports confident clinical decision-making")
		case domain.ConfidenceModerate:
			recs = append(recs, "The evidence is usable but further research may change the estimate")
		case domain.ConfidenceLow, domain.ConfidenceVeryLow:
			recs = append(recs, "Interpret this evidence with caution; the true effect may differ substantially")
		}
	}

	for _, gap := range gaps {
		if gap.Severity == domain.SeverityHigh {
			recs = append(recs, gap.Recommendation)
		}
	}
	return recs
}

// renderPatientSummary produces a plain-language digest of the findings.
func renderPatientSummary(query string, included []domain.UnifiedStudy, grade *domain.GRADEAssessment) string {
	if len(included) == 0 {
		return fmt.Sprintf("We searched the medical literature for %q but did not find studies that directly answer this question.", query)
	}

	confidence := "uncertain"
	if grade != nil {
		switch grade.Confidence {
		case domain.ConfidenceHigh:
			confidence = "strong"
		case domain.ConfidenceModerate:
			confidence = "moderately strong"
		case domain.ConfidenceLow:
			confidence = "limited"
		case domain.ConfidenceVeryLow:
			confidence = "very limited"
		}
	}

	return fmt.Sprintf(
		"We found %d relevant studies about %q. Overall, the evidence is %s. This summary is informational and is not a substitute for advice from your clinician.",
		len(included), query, confidence)
}
