package service

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/evidence-triage-server/internal/domain"
)

// ScreeningConfig holds the inclusion thresholds applied by the screener.
type ScreeningConfig struct {
	MinQualityScore   float64
	MinRelevanceScore float64
}

// Screener applies the inclusion and exclusion rules to each retrieved study.
// Rules run in a fixed order and the first failing rule supplies the single
// exclusion reason; later rules are not evaluated for that study.
type Screener struct {
	config ScreeningConfig
	logger *logrus.Logger
}

// NewScreener creates a screener with the given thresholds. Non-positive
// thresholds fall back to the defaults.
func NewScreener(config ScreeningConfig, logger *logrus.Logger) *Screener {
	if config.MinQualityScore <= 0 {
		config.MinQualityScore = 40
	}
	if config.MinRelevanceScore <= 0 {
		config.MinRelevanceScore = 30
	}
	return &Screener{config: config, logger: logger}
}

// Screen partitions studies into included and excluded sets. The input order
// is preserved on both sides. Screening is sequential and deterministic.
func (s *Screener) Screen(studies []domain.UnifiedStudy, filters domain.SearchFilters) ([]domain.UnifiedStudy, []domain.ExclusionDetail) {
	included := make([]domain.UnifiedStudy, 0, len(studies))
	var excluded []domain.ExclusionDetail

	for _, study := range studies {
		if reason, details, rejected := s.screenOne(study, filters); rejected {
			excluded = append(excluded, domain.ExclusionDetail{
				StudyID:        study.ID,
				DOI:            study.DOI,
				Title:          study.Title,
				SourceDatabase: study.SourceDatabase,
				Reason:         reason,
				ReasonDetails:  details,
			})
			continue
		}
		included = append(included, study)
	}

	s.logger.WithFields(logrus.Fields{
		"screened": len(studies),
		"included": len(included),
		"excluded": len(excluded),
	}).Info("Screening completed")

	return included, excluded
}

// screenOne evaluates the rule chain for a single study. Rule order matters:
// date range, then study type, then evidence level, then open access, then
// quality, then relevance.
func (s *Screener) screenOne(study domain.UnifiedStudy, filters domain.SearchFilters) (domain.ExclusionReason, string, bool) {
	if filters.DateRange != nil && !filters.DateRange.Contains(study.PublishedAt) {
		return domain.ExclusionOutsideDateRange, fmt.Sprintf(
			"published %s, outside %s to %s",
			study.PublishedAt.Format("2006-01-02"),
			filters.DateRange.Start.Format("2006-01-02"),
			filters.DateRange.End.Format("2006-01-02"),
		), true
	}

	if len(filters.StudyTypes) > 0 && !containsStudyType(filters.StudyTypes, study.StudyType) {
		return domain.ExclusionWrongStudyType, fmt.Sprintf(
			"study type %s not in requested set %s",
			study.StudyType, joinStudyTypes(filters.StudyTypes),
		), true
	}

	if len(filters.EvidenceLevels) > 0 && !containsInt(filters.EvidenceLevels, study.EvidenceLevel) {
		return domain.ExclusionWrongStudyType, fmt.Sprintf(
			"evidence level %d not in requested set", study.EvidenceLevel,
		), true
	}

	if filters.RequireOpenAccess && !study.IsOpenAccess {
		return domain.ExclusionNotRelevant, "full text not openly accessible", true
	}

	if study.QualityScore < s.config.MinQualityScore {
		return domain.ExclusionPoorQuality, fmt.Sprintf(
			"quality score %.1f below threshold %.1f",
			study.QualityScore, s.config.MinQualityScore,
		), true
	}

	if study.RelevanceScore < s.config.MinRelevanceScore {
		return domain.ExclusionNotRelevant, fmt.Sprintf(
			"relevance score %.1f below threshold %.1f",
			study.RelevanceScore, s.config.MinRelevanceScore,
		), true
	}

	return "", "", false
}

func containsStudyType(set []domain.StudyType, st domain.StudyType) bool {
	for _, v := range set {
		if v == st {
			return true
		}
	}
	return false
}

func containsInt(set []int, n int) bool {
	for _, v := range set {
		if v == n {
			return true
		}
	}
	return false
}

func joinStudyTypes(set []domain.StudyType) string {
	parts := make([]string, len(set))
	for i, st := range set {
		parts[i] = string(st)
	}
	return strings.Join(parts, ", ")
}
