package domain

import "time"

// AdapterFilters is the filter snapshot passed to each source adapter and
// recorded verbatim in the screening log's search strategy.
type AdapterFilters struct {
	MaxResults     int        `json:"max_results"`
	DateRange      *DateRange `json:"date_range,omitempty"`
	StudyType      string     `json:"study_type,omitempty"`
	Domain         string     `json:"domain,omitempty"`
	OpenAccessOnly bool       `json:"open_access_only,omitempty"`
}

// SearchFilters is the caller-facing filter set for a comprehensive search.
type SearchFilters struct {
	DateRange               *DateRange  `json:"date_range,omitempty"`
	StudyTypes              []StudyType `json:"study_types,omitempty"`
	EvidenceLevels          []int       `json:"evidence_levels,omitempty"`
	MaxResults              int         `json:"max_results,omitempty"`
	RequireOpenAccess       bool        `json:"require_open_access,omitempty"`
	MedicalDomain           string      `json:"medical_domain,omitempty"`
	IncludeScreeningLog     bool        `json:"include_screening_log,omitempty"`
	IncludeBiasAssessment   bool        `json:"include_bias_assessment,omitempty"`
	OptimizePatientLanguage bool        `json:"optimize_patient_language,omitempty"`
}

// Validate checks the filter combination for caller input errors.
func (f *SearchFilters) Validate() error {
	if f.MaxResults < 0 {
		return NewValidationError("max_results", "must not be negative")
	}
	if f.DateRange != nil && f.DateRange.End.Before(f.DateRange.Start) {
		return NewValidationError("date_range", "end date precedes start date")
	}
	for _, st := range f.StudyTypes {
		if !st.IsValid() {
			return NewValidationError("study_types", "unknown study type "+string(st))
		}
	}
	for _, lvl := range f.EvidenceLevels {
		if lvl < 1 || lvl > 5 {
			return NewValidationError("evidence_levels", "evidence level out of range 1-5")
		}
	}
	return nil
}

// DatabasePerformance captures per-source retrieval metrics for one query.
type DatabasePerformance struct {
	ResultCount int           `json:"result_count"`
	Duration    time.Duration `json:"duration"`
	Succeeded   bool          `json:"succeeded"`
}

// SearchResult is the full outcome of a comprehensive evidence search.
type SearchResult struct {
	Query               string                         `json:"query"`
	QueryID             string                         `json:"query_id"`
	TotalRetrieved      int                            `json:"total_retrieved"`
	IncludedStudies     []UnifiedStudy                 `json:"included_studies"`
	ExcludedStudies     []ExclusionDetail              `json:"excluded_studies"`
	ScreeningLog        *ScreeningLog                  `json:"screening_log,omitempty"`
	QualityReports      []QualityReport                `json:"quality_reports,omitempty"`
	GradeAssessment     *GRADEAssessment               `json:"grade_assessment,omitempty"`
	MetaAnalysis        *MetaAnalysisResult            `json:"meta_analysis,omitempty"`
	EvidenceGaps        []EvidenceGap                  `json:"evidence_gaps,omitempty"`
	PatientSummary      string                         `json:"patient_summary,omitempty"`
	DatabasePerformance map[string]DatabasePerformance `json:"database_performance"`
	Recommendations     []string                       `json:"recommendations"`
}
