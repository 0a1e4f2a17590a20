package service

import (
	"fmt"
	"strings"

	"github.com/evidence-triage-server/internal/domain"
)

// HeuristicBiasAssessor judges study quality from abstract text. Randomized
// trials get a RoB2 five-domain profile; systematic reviews get a reduced
// twelve-item AMSTAR-2 checklist. Other designs carry no design-specific
// instrument and receive a fixed default score.
//
// The heuristics look for methodological reporting keywords, so a well
// conducted study with a terse abstract will rate worse than it deserves.
// That is the acceptable failure mode: screening should be conservative.
type HeuristicBiasAssessor struct{}

// NewHeuristicBiasAssessor creates the keyword-based assessor.
func NewHeuristicBiasAssessor() *HeuristicBiasAssessor {
	return &HeuristicBiasAssessor{}
}

// defaultDesignScore is the quality score for designs without a dedicated
// assessment instrument.
const defaultDesignScore = 50

// Assess produces the quality report for one study. For RCTs the quality
// score is recomputed from the RoB2 domain ratings; for systematic reviews
// from the AMSTAR score; every other design gets the fixed default.
func (a *HeuristicBiasAssessor) Assess(study domain.UnifiedStudy) domain.QualityReport {
	report := domain.QualityReport{
		StudyID:   study.ID,
		Title:     study.Title,
		StudyType: study.StudyType,
	}

	text := study.SearchableText()
	switch study.StudyType {
	case domain.StudyRCT:
		profile := assessRoB2(text)
		report.RoB = &profile
		report.QualityScore = rob2QualityScore(profile)
		report.Recommendations = rob2Recommendations(profile)
	case domain.StudySystematicReview:
		profile := assessAMSTAR(text)
		report.AMSTAR = &profile
		report.QualityScore = amstarQualityScore(profile)
		report.Recommendations = amstarRecommendations(profile)
	default:
		report.QualityScore = defaultDesignScore
	}

	return report
}

// rob2Domain holds the keyword evidence for one RoB2 domain. Positive hits
// suggest low risk, negative hits high risk; neither means some concerns.
type rob2Domain struct {
	positive []string
	negative []string
}

var rob2Domains = []rob2Domain{
	{ // randomization process
		positive: []string{"computer-generated", "random sequence", "randomly assigned", "randomisation", "randomization", "allocation concealment", "sealed envelope"},
		negative: []string{"quasi-random", "alternate allocation", "allocation by availability"},
	},
	{ // deviations from intended interventions
		positive: []string{"double-blind", "double blind", "triple-blind", "placebo-controlled", "placebo controlled", "intention-to-treat", "intention to treat"},
		negative: []string{"open-label", "open label", "unblinded", "per-protocol only"},
	},
	{ // missing outcome data
		positive: []string{"complete follow-up", "no loss to follow-up", "all participants completed", "retention of 9"},
		negative: []string{"high dropout", "lost to follow-up", "substantial attrition", "withdrew consent"},
	},
	{ // measurement of the outcome
		positive: []string{"blinded outcome", "blinded assessor", "objective outcome", "adjudication committee", "mortality"},
		negative: []string{"self-reported", "unblinded assessment", "subjective outcome"},
	},
	{ // selection of the reported result
		positive: []string{"pre-registered", "preregistered", "prespecified", "pre-specified", "clinicaltrials.gov", "registered protocol", "primary endpoint"},
		negative: []string{"post hoc", "post-hoc", "exploratory analysis only", "outcome switching"},
	},
}

// assessRoB2 rates the five RoB2 domains from abstract text. Overall is the
// worst domain rating.
func assessRoB2(text string) domain.RoBProfile {
	ratings := make([]domain.BiasRating, len(rob2Domains))
	for i, d := range rob2Domains {
		ratings[i] = rateDomain(text, d)
	}

	profile := domain.RoBProfile{
		Randomization:     ratings[0],
		Deviations:        ratings[1],
		MissingData:       ratings[2],
		OutcomeMeasure:    ratings[3],
		ReportedSelection: ratings[4],
	}

	overall := domain.BiasLow
	for _, r := range profile.DomainRatings() {
		if overall.Worse(r) {
			overall = r
		}
	}
	profile.Overall = overall
	return profile
}

func rateDomain(text string, d rob2Domain) domain.BiasRating {
	for _, kw := range d.negative {
		if strings.Contains(text, kw) {
			return domain.BiasHigh
		}
	}
	for _, kw := range d.positive {
		if strings.Contains(text, kw) {
			return domain.BiasLow
		}
	}
	return domain.BiasSomeConcerns
}

// rob2QualityScore sums the per-domain point contributions, 0 to 100.
func rob2QualityScore(p domain.RoBProfile) float64 {
	var score float64
	for _, r := range p.DomainRatings() {
		score += r.DomainPoints()
	}
	return score
}

var rob2DomainNames = []string{
	"randomization process",
	"deviations from intended interventions",
	"missing outcome data",
	"outcome measurement",
	"selection of the reported result",
}

func rob2Recommendations(p domain.RoBProfile) []string {
	var recs []string
	for i, r := range p.DomainRatings() {
		if r == domain.BiasHigh {
			recs = append(recs, fmt.Sprintf("High risk of bias in %s; interpret with caution", rob2DomainNames[i]))
		}
	}
	if p.Overall == domain.BiasLow {
		recs = append(recs, "Low overall risk of bias; findings can be weighted accordingly")
	}
	return recs
}

// amstarCheck is one entry of the reduced AMSTAR-2 checklist, with the
// keywords whose presence marks the item as met.
type amstarCheck struct {
	name     string
	critical bool
	keywords []string
}

var amstarChecks = []amstarCheck{
	{"PICO components in research question", false, []string{"population", "intervention", "outcome", "pico"}},
	{"Protocol registered before review", true, []string{"prospero", "registered protocol", "pre-registered", "preregistered"}},
	{"Comprehensive literature search", true, []string{"medline", "embase", "cochrane", "multiple databases", "comprehensive search"}},
	{"Duplicate study selection", false, []string{"two reviewers", "independently screened", "duplicate", "independent reviewers"}},
	{"Duplicate data extraction", false, []string{"independently extracted", "two authors extracted", "dual extraction"}},
	{"Excluded studies listed and justified", false, []string{"excluded studies", "reasons for exclusion", "prisma"}},
	{"Included studies described in detail", false, []string{"characteristics of included", "study characteristics", "baseline characteristics"}},
	{"Risk of bias assessed", true, []string{"risk of bias", "quality assessment", "rob2", "cochrane risk", "grade"}},
	{"Appropriate meta-analytic methods", false, []string{"random-effects", "random effects", "fixed-effect", "pooled", "meta-analysis"}},
	{"Heterogeneity investigated", false, []string{"heterogeneity", "i2", "subgroup analysis", "sensitivity analysis"}},
	{"Publication bias assessed", true, []string{"funnel plot", "publication bias", "egger"}},
	{"Conflicts of interest reported", false, []string{"conflict of interest", "conflicts of interest", "funding", "competing interests"}},
}

// assessAMSTAR evaluates the reduced checklist against abstract text and
// derives the confidence tier from the critical-item and total counts.
func assessAMSTAR(text string) domain.AMSTARProfile {
	profile := domain.AMSTARProfile{Items: make([]domain.AMSTARItem, 0, len(amstarChecks))}

	for _, check := range amstarChecks {
		met := false
		for _, kw := range check.keywords {
			if strings.Contains(text, kw) {
				met = true
				break
			}
		}
		profile.Items = append(profile.Items, domain.AMSTARItem{Name: check.name, Met: met, Critical: check.critical})
		if met {
			profile.Score++
			if check.critical {
				profile.CriticalMet++
			}
		}
	}

	profile.Confidence = amstarTier(profile.CriticalMet, profile.Score)
	return profile
}

// amstarTier maps critical-item and total counts onto the confidence tier.
// All four critical items plus a near-complete checklist is high confidence;
// missing critical items degrade the tier stepwise.
func amstarTier(criticalMet, score int) domain.ReviewConfidence {
	switch {
	case criticalMet == 4 && score >= 10:
		return domain.ReviewHigh
	case criticalMet >= 3 && score >= 8:
		return domain.ReviewModerate
	case criticalMet >= 2 && score >= 6:
		return domain.ReviewLow
	default:
		return domain.ReviewCriticallyLow
	}
}

// amstarQualityScore scales the 12-item score onto [0,100].
func amstarQualityScore(p domain.AMSTARProfile) float64 {
	return float64(p.Score) / float64(len(amstarChecks)) * 100
}

func amstarRecommendations(p domain.AMSTARProfile) []string {
	var recs []string
	for _, item := range p.Items {
		if item.Critical && !item.Met {
			recs = append(recs, fmt.Sprintf("Critical AMSTAR-2 item not reported: %s", item.Name))
		}
	}
	if p.Confidence == domain.ReviewCriticallyLow {
		recs = append(recs, "Critically low confidence; this review should not be relied on for decisions")
	}
	return recs
}
