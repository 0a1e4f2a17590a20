package service

import (
	"strings"
	"time"

	"github.com/evidence-triage-server/internal/domain"
)

// GapAnalyzer scans the included evidence for missing study designs,
// populations, comparisons, and outcomes. Each detected gap carries a
// severity and a suggested remediation.
type GapAnalyzer struct{}

// NewGapAnalyzer creates a gap analyzer.
func NewGapAnalyzer() *GapAnalyzer {
	return &GapAnalyzer{}
}

// Analyze detects evidence gaps over the included set. An empty set is
// itself the most severe gap: no evidence survived screening at all.
func (g *GapAnalyzer) Analyze(query string, included []domain.UnifiedStudy) []domain.EvidenceGap {
	if len(included) == 0 {
		return []domain.EvidenceGap{{
			Type:           domain.GapStudyDesign,
			Severity:       domain.SeverityHigh,
			Description:    "No studies met the inclusion criteria for this question",
			Recommendation: "Broaden the search terms or date range; if the gap persists, this question needs primary research",
		}}
	}

	var gaps []domain.EvidenceGap
	gaps = append(gaps, g.designGaps(included)...)
	if gap, found := g.populationGap(included); found {
		gaps = append(gaps, gap)
	}
	if gap, found := g.comparisonGap(included); found {
		gaps = append(gaps, gap)
	}
	if gap, found := g.outcomeGap(included); found {
		gaps = append(gaps, gap)
	}
	if gap, found := g.recencyGap(included); found {
		gaps = append(gaps, gap)
	}
	return gaps
}

func (g *GapAnalyzer) designGaps(included []domain.UnifiedStudy) []domain.EvidenceGap {
	counts := make(map[domain.StudyType]int)
	for _, s := range included {
		counts[s.StudyType]++
	}

	var gaps []domain.EvidenceGap
	if counts[domain.StudySystematicReview] == 0 {
		gaps = append(gaps, domain.EvidenceGap{
			Type:           domain.GapStudyDesign,
			Severity:       domain.SeverityMedium,
			Description:    "No systematic reviews found for this question",
			Recommendation: "A systematic review synthesizing the available primary studies would strengthen the evidence base",
		})
	}
	if counts[domain.StudyRCT] == 0 {
		gaps = append(gaps, domain.EvidenceGap{
			Type:           domain.GapStudyDesign,
			Severity:       domain.SeverityHigh,
			Description:    "No randomized controlled trials found; evidence rests on observational designs",
			Recommendation: "Randomized trials are needed to establish causal effect",
		})
	}
	return gaps
}

var populationTerms = []string{
	"children", "pediatric", "paediatric", "elderly", "older adults",
	"women", "pregnan", "subgroup",
}

func (g *GapAnalyzer) populationGap(included []domain.UnifiedStudy) (domain.EvidenceGap, bool) {
	for _, s := range included {
		text := s.SearchableText()
		for _, term := range populationTerms {
			if strings.Contains(text, term) {
				return domain.EvidenceGap{}, false
			}
		}
	}
	return domain.EvidenceGap{
		Type:           domain.GapPopulation,
		Severity:       domain.SeverityMedium,
		Description:    "No included study reports findings for specific populations such as children, older adults, or pregnant patients",
		Recommendation: "Generalizing these results beyond the studied populations requires caution; targeted studies are needed",
	}, true
}

func (g *GapAnalyzer) comparisonGap(included []domain.UnifiedStudy) (domain.EvidenceGap, bool) {
	for _, s := range included {
		text := s.SearchableText()
		if strings.Contains(text, "versus") || strings.Contains(text, " vs ") ||
			strings.Contains(text, " vs.") || strings.Contains(text, "compared with") ||
			strings.Contains(text, "compared to") || strings.Contains(text, "head-to-head") {
			return domain.EvidenceGap{}, false
		}
	}
	return domain.EvidenceGap{
		Type:           domain.GapComparison,
		Severity:       domain.SeverityMedium,
		Description:    "No direct comparisons between alternative interventions were found",
		Recommendation: "Head-to-head trials comparing the candidate interventions would inform treatment choice",
	}, true
}

func (g *GapAnalyzer) outcomeGap(included []domain.UnifiedStudy) (domain.EvidenceGap, bool) {
	for _, s := range included {
		text := s.SearchableText()
		if strings.Contains(text, "long-term") || strings.Contains(text, "long term") ||
			strings.Contains(text, "follow-up of") || strings.Contains(text, "5-year") ||
			strings.Contains(text, "10-year") {
			return domain.EvidenceGap{}, false
		}
	}
	return domain.EvidenceGap{
		Type:           domain.GapOutcome,
		Severity:       domain.SeverityLow,
		Description:    "No included study reports long-term outcomes",
		Recommendation: "Extended follow-up studies would clarify durability of effect and late harms",
	}, true
}

func (g *GapAnalyzer) recencyGap(included []domain.UnifiedStudy) (domain.EvidenceGap, bool) {
	cutoff := time.Now().AddDate(-2, 0, 0)
	for _, s := range included {
		if s.PublishedAt.After(cutoff) {
			return domain.EvidenceGap{}, false
		}
	}
	return domain.EvidenceGap{
		Type:           domain.GapIntervention,
		Severity:       domain.SeverityMedium,
		Description:    "No evidence published in the last two years; current practice may have moved past the studied interventions",
		Recommendation: "Updated studies reflecting current intervention protocols are needed",
	}, true
}
