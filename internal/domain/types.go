// Package domain contains core business entities and types for biomedical
// evidence aggregation, screening, and quality grading.
//
// The screening and grading vocabulary follows the GRADE framework for rating
// confidence in a body of evidence, the RoB2 framework for randomized trials,
// and a reduced AMSTAR-2 checklist for systematic reviews.
package domain

import (
	"errors"
	"strings"
)

// StudyType is the canonical study design classification assigned to every
// retrieved study after normalization.
type StudyType string

const (
	StudySystematicReview StudyType = "SYSTEMATIC_REVIEW"
	StudyRCT              StudyType = "RCT"
	StudyCohort           StudyType = "COHORT_STUDY"
	StudyCaseControl      StudyType = "CASE_CONTROL_STUDY"
	StudyCaseSeries       StudyType = "CASE_SERIES"
	StudyOther            StudyType = "OTHER"
)

// ExclusionReason is the closed set of machine-readable reasons a study can
// be rejected during screening. Every excluded study carries exactly one.
type ExclusionReason string

const (
	ExclusionOutsideDateRange    ExclusionReason = "outside_date_range"
	ExclusionWrongStudyType      ExclusionReason = "wrong_study_type"
	ExclusionPoorQuality         ExclusionReason = "poor_quality"
	ExclusionNotRelevant         ExclusionReason = "not_relevant"
	ExclusionDuplicate           ExclusionReason = "duplicate"
	ExclusionNotTargetPopulation ExclusionReason = "not_target_population"
	ExclusionInsufficientData    ExclusionReason = "insufficient_data"
	ExclusionLanguageBarrier     ExclusionReason = "language_barrier"
	ExclusionPredatoryJournal    ExclusionReason = "predatory_journal"
	ExclusionRetracted           ExclusionReason = "retracted"
)

// DomainRating is the per-domain GRADE concern level.
type DomainRating string

const (
	RatingNoConcern          DomainRating = "no_concern"
	RatingSeriousConcern     DomainRating = "serious_concern"
	RatingVerySeriousConcern DomainRating = "very_serious_concern"
)

// Confidence is the overall GRADE confidence in a body of evidence.
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceModerate Confidence = "moderate"
	ConfidenceLow      Confidence = "low"
	ConfidenceVeryLow  Confidence = "very_low"
)

// BiasRating is the RoB2 per-domain risk-of-bias judgment for randomized trials.
type BiasRating string

const (
	BiasLow          BiasRating = "LOW"
	BiasSomeConcerns BiasRating = "SOME_CONCERNS"
	BiasHigh         BiasRating = "HIGH"
)

// ReviewConfidence is the AMSTAR-2 style overall confidence tier for
// systematic reviews.
type ReviewConfidence string

const (
	ReviewHigh          ReviewConfidence = "HIGH"
	ReviewModerate      ReviewConfidence = "MODERATE"
	ReviewLow           ReviewConfidence = "LOW"
	ReviewCriticallyLow ReviewConfidence = "CRITICALLY_LOW"
)

// GapType categorizes a detected evidence gap along PICO-plus-design lines.
type GapType string

const (
	GapPopulation   GapType = "population"
	GapIntervention GapType = "intervention"
	GapComparison   GapType = "comparison"
	GapOutcome      GapType = "outcome"
	GapStudyDesign  GapType = "study_design"
)

// GapSeverity ranks how urgently an evidence gap should be addressed.
type GapSeverity string

const (
	SeverityHigh   GapSeverity = "High"
	SeverityMedium GapSeverity = "Medium"
	SeverityLow    GapSeverity = "Low"
)

// Validation errors for evidence data integrity.
var (
	ErrLogNotFound            = errors.New("screening log not found")
	ErrInvalidStudyType       = errors.New("invalid study type")
	ErrInvalidExclusionReason = errors.New("invalid exclusion reason")
	ErrInvalidDomainRating    = errors.New("invalid GRADE domain rating")
	ErrInvalidConfidence      = errors.New("invalid GRADE confidence level")
)

// IsValid reports whether the study type is one of the canonical designs.
func (st StudyType) IsValid() bool {
	switch st {
	case StudySystematicReview, StudyRCT, StudyCohort, StudyCaseControl, StudyCaseSeries, StudyOther:
		return true
	default:
		return false
	}
}

// String returns the string representation of the study type.
func (st StudyType) String() string {
	return string(st)
}

// EvidenceLevel returns the 1-5 evidence hierarchy rank for the study type.
// Level 1 is the most rigorous design (systematic review), level 5 the least.
// The mapping is a pure function of the study type.
func (st StudyType) EvidenceLevel() int {
	switch st {
	case StudySystematicReview:
		return 1
	case StudyRCT:
		return 2
	case StudyCohort:
		return 3
	case StudyCaseControl:
		return 4
	case StudyCaseSeries:
		return 5
	default:
		return 5
	}
}

// IsQuantitative reports whether the design qualifies for effect pooling.
func (st StudyType) IsQuantitative() bool {
	return st == StudyRCT || st == StudySystematicReview
}

// CanonicalStudyType maps a raw publication-type string from any source
// database onto the canonical enum. Unrecognized strings map to StudyOther.
func CanonicalStudyType(raw string) StudyType {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "systematic review"), strings.Contains(s, "meta-analysis"),
		strings.Contains(s, "meta analysis"):
		return StudySystematicReview
	case strings.Contains(s, "randomized controlled trial"), strings.Contains(s, "randomised controlled trial"),
		strings.Contains(s, "rct"), strings.Contains(s, "clinical trial"):
		return StudyRCT
	case strings.Contains(s, "case-control"), strings.Contains(s, "case control"):
		return StudyCaseControl
	case strings.Contains(s, "cohort"), strings.Contains(s, "prospective"), strings.Contains(s, "longitudinal"):
		return StudyCohort
	case strings.Contains(s, "case series"), strings.Contains(s, "case report"):
		return StudyCaseSeries
	default:
		return StudyOther
	}
}

// IsValid reports whether the exclusion reason belongs to the closed set.
func (er ExclusionReason) IsValid() bool {
	switch er {
	case ExclusionOutsideDateRange, ExclusionWrongStudyType, ExclusionPoorQuality,
		ExclusionNotRelevant, ExclusionDuplicate, ExclusionNotTargetPopulation,
		ExclusionInsufficientData, ExclusionLanguageBarrier,
		ExclusionPredatoryJournal, ExclusionRetracted:
		return true
	default:
		return false
	}
}

// String returns the string representation of the exclusion reason.
func (er ExclusionReason) String() string {
	return string(er)
}

// IsValid validates the GRADE domain rating.
func (dr DomainRating) IsValid() bool {
	switch dr {
	case RatingNoConcern, RatingSeriousConcern, RatingVerySeriousConcern:
		return true
	default:
		return false
	}
}

// String returns the string representation of the domain rating.
func (dr DomainRating) String() string {
	return string(dr)
}

// IsValid validates the overall GRADE confidence level.
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceModerate, ConfidenceLow, ConfidenceVeryLow:
		return true
	default:
		return false
	}
}

// String returns the string representation of the confidence level.
func (c Confidence) String() string {
	return string(c)
}

// TitleCase returns the presentation form used in rendered summaries,
// e.g. "Very Low" for ConfidenceVeryLow.
func (c Confidence) TitleCase() string {
	switch c {
	case ConfidenceHigh:
		return "High"
	case ConfidenceModerate:
		return "Moderate"
	case ConfidenceLow:
		return "Low"
	case ConfidenceVeryLow:
		return "Very Low"
	default:
		return "Unknown"
	}
}

// DowngradeSteps returns how many levels below "high" the confidence sits.
// Drives the filled-glyph count in rendered GRADE summaries.
func (c Confidence) DowngradeSteps() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceModerate:
		return 1
	case ConfidenceLow:
		return 2
	case ConfidenceVeryLow:
		return 3
	default:
		return 3
	}
}

// LogFields returns structured logging fields for audit trails.
func (c Confidence) LogFields() map[string]any {
	return map[string]any{
		"confidence":      string(c),
		"downgrade_steps": c.DowngradeSteps(),
		"is_valid":        c.IsValid(),
	}
}

// Worse reports whether b is a worse (higher-risk) judgment than br.
func (br BiasRating) Worse(b BiasRating) bool {
	return b.rank() > br.rank()
}

func (br BiasRating) rank() int {
	switch br {
	case BiasLow:
		return 0
	case BiasSomeConcerns:
		return 1
	default:
		return 2
	}
}

// IsValid validates the risk-of-bias rating.
func (br BiasRating) IsValid() bool {
	switch br {
	case BiasLow, BiasSomeConcerns, BiasHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the bias rating.
func (br BiasRating) String() string {
	return string(br)
}

// DomainPoints returns the quality-score contribution of a single RoB2 domain
// with this rating. Five domains at 20 points each cap the RCT score at 100.
func (br BiasRating) DomainPoints() float64 {
	switch br {
	case BiasLow:
		return 20
	case BiasSomeConcerns:
		return 10
	default:
		return 0
	}
}

// IsValid validates the systematic review confidence tier.
func (rc ReviewConfidence) IsValid() bool {
	switch rc {
	case ReviewHigh, ReviewModerate, ReviewLow, ReviewCriticallyLow:
		return true
	default:
		return false
	}
}

// String returns the string representation of the review confidence tier.
func (rc ReviewConfidence) String() string {
	return string(rc)
}
