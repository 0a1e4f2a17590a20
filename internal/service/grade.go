package service

import (
	"fmt"
	"strings"

	"github.com/evidence-triage-server/internal/domain"
)

// GRADECalculator rates overall confidence in a body of evidence across the
// five GRADE domains. All judgments are deterministic functions of the
// included studies, their quality reports, and the pooled result when one
// exists.
type GRADECalculator struct{}

// NewGRADECalculator creates a GRADE calculator.
func NewGRADECalculator() *GRADECalculator {
	return &GRADECalculator{}
}

// Assess rates the five domains and combines them into the overall
// confidence. Returns nil when there are no included studies to rate.
func (g *GRADECalculator) Assess(included []domain.UnifiedStudy, reports []domain.QualityReport, meta *domain.MetaAnalysisResult) *domain.GRADEAssessment {
	if len(included) == 0 {
		return nil
	}

	assessment := &domain.GRADEAssessment{
		RiskOfBias:      rateRiskOfBias(included, reports),
		Inconsistency:   rateInconsistency(included, meta),
		Indirectness:    rateIndirectness(included),
		Imprecision:     rateImprecision(included, meta),
		PublicationBias: ratePublicationBias(included),
	}

	assessment.Confidence = CombineDomains(assessment)
	for _, nd := range assessment.Domains() {
		if nd.Domain.Rating != domain.RatingNoConcern && nd.Domain.Reason != "" {
			assessment.Reasons = append(assessment.Reasons, nd.Label+": "+nd.Domain.Reason)
		}
	}
	return assessment
}

// DefaultAssessment seeds a GRADE assessment from study design alone, for
// callers that need a starting point before any study text is available.
// Randomized and review designs start clean; everything else starts one
// level down for observational design.
func DefaultAssessment(design domain.StudyType) *domain.GRADEAssessment {
	a := &domain.GRADEAssessment{
		RiskOfBias:      domain.GRADEDomain{Rating: domain.RatingNoConcern},
		Inconsistency:   domain.GRADEDomain{Rating: domain.RatingNoConcern},
		Indirectness:    domain.GRADEDomain{Rating: domain.RatingNoConcern},
		Imprecision:     domain.GRADEDomain{Rating: domain.RatingNoConcern},
		PublicationBias: domain.GRADEDomain{Rating: domain.RatingNoConcern},
	}
	switch design {
	case domain.StudyRCT, domain.StudySystematicReview:
	default:
		a.RiskOfBias = domain.GRADEDomain{
			Rating: domain.RatingSeriousConcern,
			Reason: "Observational study design",
		}
	}
	a.Confidence = CombineDomains(a)
	for _, nd := range a.Domains() {
		if nd.Domain.Rating != domain.RatingNoConcern && nd.Domain.Reason != "" {
			a.Reasons = append(a.Reasons, nd.Label+": "+nd.Domain.Reason)
		}
	}
	return a
}

// CombineDomains maps the five domain ratings onto the overall confidence.
// All domains clean gives high confidence. Any very serious concern drops
// straight to very low. Otherwise one serious concern costs one level and
// two or more cost two.
func CombineDomains(a *domain.GRADEAssessment) domain.Confidence {
	serious, verySerious := 0, 0
	for _, nd := range a.Domains() {
		switch nd.Domain.Rating {
		case domain.RatingSeriousConcern:
			serious++
		case domain.RatingVerySeriousConcern:
			verySerious++
		}
	}

	if verySerious > 0 {
		return domain.ConfidenceVeryLow
	}
	switch serious {
	case 0:
		return domain.ConfidenceHigh
	case 1:
		return domain.ConfidenceModerate
	default:
		return domain.ConfidenceLow
	}
}

// RenderSummary produces the glyph-bar confidence header, e.g.
// "⊕⊕⊕⊖ Overall confidence in the evidence: Moderate", followed by one
// labeled line per domain with concerns. The filled-glyph count is four
// minus the downgrade steps.
func RenderSummary(a *domain.GRADEAssessment) string {
	filled := 4 - a.Confidence.DowngradeSteps()
	var b strings.Builder
	for i := 0; i < 4; i++ {
		if i < filled {
			b.WriteRune('⊕')
		} else {
			b.WriteRune('⊖')
		}
	}
	fmt.Fprintf(&b, " Overall confidence in the evidence: %s", a.Confidence.TitleCase())
	for _, nd := range a.Domains() {
		if nd.Domain.Rating != domain.RatingNoConcern && nd.Domain.Reason != "" {
			b.WriteString("\n" + nd.Label + ": " + nd.Domain.Reason)
		}
	}
	return b.String()
}

func rateRiskOfBias(included []domain.UnifiedStudy, reports []domain.QualityReport) domain.GRADEDomain {
	highRisk := 0
	assessed := 0
	for _, r := range reports {
		switch {
		case r.RoB != nil:
			assessed++
			if r.RoB.Overall == domain.BiasHigh {
				highRisk++
			}
		case r.AMSTAR != nil:
			assessed++
			if r.AMSTAR.Confidence == domain.ReviewCriticallyLow {
				highRisk++
			}
		}
	}

	if assessed > 0 {
		ratio := float64(highRisk) / float64(assessed)
		switch {
		case ratio > 0.5:
			return domain.GRADEDomain{
				Rating: domain.RatingVerySeriousConcern,
				Reason: fmt.Sprintf("%d of %d assessed studies at high risk of bias", highRisk, assessed),
			}
		case ratio > 0.25:
			return domain.GRADEDomain{
				Rating: domain.RatingSeriousConcern,
				Reason: fmt.Sprintf("%d of %d assessed studies at high risk of bias", highRisk, assessed),
			}
		}
	}

	if avg := averageQuality(included); avg < 50 {
		return domain.GRADEDomain{
			Rating: domain.RatingSeriousConcern,
			Reason: fmt.Sprintf("average quality score %.0f indicates methodological weaknesses", avg),
		}
	}
	return domain.GRADEDomain{Rating: domain.RatingNoConcern}
}

func rateInconsistency(included []domain.UnifiedStudy, meta *domain.MetaAnalysisResult) domain.GRADEDomain {
	if meta != nil {
		switch {
		case meta.ISquared > 75:
			return domain.GRADEDomain{
				Rating: domain.RatingVerySeriousConcern,
				Reason: fmt.Sprintf("substantial statistical heterogeneity (I² = %.0f%%)", meta.ISquared),
			}
		case meta.ISquared > 50:
			return domain.GRADEDomain{
				Rating: domain.RatingSeriousConcern,
				Reason: fmt.Sprintf("moderate statistical heterogeneity (I² = %.0f%%)", meta.ISquared),
			}
		}
		return domain.GRADEDomain{Rating: domain.RatingNoConcern}
	}

	// Without a pooled estimate, a mix of many designs is the only
	// inconsistency signal available.
	types := make(map[domain.StudyType]struct{})
	for _, s := range included {
		types[s.StudyType] = struct{}{}
	}
	if len(types) >= 4 {
		return domain.GRADEDomain{
			Rating: domain.RatingSeriousConcern,
			Reason: fmt.Sprintf("evidence spans %d study designs with no pooled estimate", len(types)),
		}
	}
	return domain.GRADEDomain{Rating: domain.RatingNoConcern}
}

func rateIndirectness(included []domain.UnifiedStudy) domain.GRADEDomain {
	var sum float64
	for _, s := range included {
		sum += s.RelevanceScore
	}
	avg := sum / float64(len(included))
	switch {
	case avg < 30:
		return domain.GRADEDomain{
			Rating: domain.RatingVerySeriousConcern,
			Reason: fmt.Sprintf("average relevance %.0f; evidence addresses the question only indirectly", avg),
		}
	case avg < 50:
		return domain.GRADEDomain{
			Rating: domain.RatingSeriousConcern,
			Reason: fmt.Sprintf("average relevance %.0f; partial match to the question asked", avg),
		}
	}
	return domain.GRADEDomain{Rating: domain.RatingNoConcern}
}

func rateImprecision(included []domain.UnifiedStudy, meta *domain.MetaAnalysisResult) domain.GRADEDomain {
	if meta != nil && meta.CIUpper > 0 && meta.CILower > 0 {
		if meta.CIUpper/meta.CILower > 4 {
			return domain.GRADEDomain{
				Rating: domain.RatingSeriousConcern,
				Reason: fmt.Sprintf("wide pooled confidence interval (%.2f to %.2f)", meta.CILower, meta.CIUpper),
			}
		}
	}

	switch {
	case len(included) == 1:
		return domain.GRADEDomain{
			Rating: domain.RatingVerySeriousConcern,
			Reason: "a single study cannot establish a precise effect",
		}
	case len(included) < 3:
		return domain.GRADEDomain{
			Rating: domain.RatingSeriousConcern,
			Reason: fmt.Sprintf("only %d studies available", len(included)),
		}
	}
	return domain.GRADEDomain{Rating: domain.RatingNoConcern}
}

func ratePublicationBias(included []domain.UnifiedStudy) domain.GRADEDomain {
	sources := make(map[string]struct{})
	for _, s := range included {
		sources[s.SourceDatabase] = struct{}{}
	}
	if len(sources) == 1 && len(included) < 5 {
		return domain.GRADEDomain{
			Rating: domain.RatingSeriousConcern,
			Reason: "small evidence base drawn from a single database",
		}
	}
	return domain.GRADEDomain{Rating: domain.RatingNoConcern}
}

func averageQuality(studies []domain.UnifiedStudy) float64 {
	if len(studies) == 0 {
		return 0
	}
	var sum float64
	for _, s := range studies {
		sum += s.QualityScore
	}
	return sum / float64(len(studies))
}
