package service

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/evidence-triage-server/internal/domain"
)

// MetaAnalyzer pools ratio effect estimates reported in study abstracts.
// It only runs when at least two quantitative studies report a parseable
// effect; otherwise pooling is skipped entirely rather than approximated.
type MetaAnalyzer struct{}

// NewMetaAnalyzer creates a meta-analyzer.
func NewMetaAnalyzer() *MetaAnalyzer {
	return &MetaAnalyzer{}
}

// studyEffect is one extracted ratio estimate on the log scale.
type studyEffect struct {
	logEffect float64
	variance  float64
}

// effectPattern matches reported ratio measures with a 95% CI, e.g.
// "OR 0.82, 95% CI 0.71-0.94", "hazard ratio 1.25 (95% CI 1.05 to 1.48)",
// "RR = 0.90; 95% confidence interval, 0.80 to 1.01".
var effectPattern = regexp.MustCompile(
	`(?i)(?:odds ratio|hazard ratio|risk ratio|relative risk|\bOR\b|\bHR\b|\bRR\b)[,:=\s]*` +
		`(\d+\.?\d*)\s*[,;(\[]*\s*95%\s*(?:CI|confidence interval)[,:=\s]*` +
		`(\d+\.?\d*)\s*(?:-|–|to|,)\s*(\d+\.?\d*)`)

// Pool extracts effects from the included studies and combines them with a
// DerSimonian-Laird random-effects model. Returns nil when fewer than two
// quantitative studies report a usable effect.
func (m *MetaAnalyzer) Pool(included []domain.UnifiedStudy) *domain.MetaAnalysisResult {
	var effects []studyEffect
	for _, s := range included {
		if !s.StudyType.IsQuantitative() {
			continue
		}
		if eff, ok := extractEffect(s.Abstract); ok {
			effects = append(effects, eff)
		}
	}
	if len(effects) < 2 {
		return nil
	}
	return poolRandomEffects(effects)
}

// extractEffect parses the first ratio-with-CI expression from the abstract
// and converts it to a log effect with variance derived from the CI width.
func extractEffect(abstract string) (studyEffect, bool) {
	match := effectPattern.FindStringSubmatch(abstract)
	if match == nil {
		return studyEffect{}, false
	}

	point, err1 := strconv.ParseFloat(match[1], 64)
	lower, err2 := strconv.ParseFloat(match[2], 64)
	upper, err3 := strconv.ParseFloat(match[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return studyEffect{}, false
	}
	if point <= 0 || lower <= 0 || upper <= lower {
		return studyEffect{}, false
	}

	// SE from the CI width on the log scale: (ln(upper) - ln(lower)) / 3.92.
	se := (math.Log(upper) - math.Log(lower)) / (2 * 1.96)
	if se <= 0 {
		return studyEffect{}, false
	}
	return studyEffect{logEffect: math.Log(point), variance: se * se}, true
}

// poolRandomEffects runs DerSimonian-Laird pooling over the log effects.
func poolRandomEffects(effects []studyEffect) *domain.MetaAnalysisResult {
	k := float64(len(effects))

	// Fixed-effect weights and pooled estimate, needed for Q.
	var sumW, sumWY, sumW2 float64
	for _, e := range effects {
		w := 1 / e.variance
		sumW += w
		sumWY += w * e.logEffect
		sumW2 += w * w
	}
	fixed := sumWY / sumW

	var q float64
	for _, e := range effects {
		w := 1 / e.variance
		q += w * (e.logEffect - fixed) * (e.logEffect - fixed)
	}

	// Between-study variance (tau squared), floored at zero.
	df := k - 1
	tau2 := 0.0
	if denom := sumW - sumW2/sumW; denom > 0 {
		tau2 = math.Max(0, (q-df)/denom)
	}

	// Random-effects weights incorporate tau squared.
	var reSumW, reSumWY float64
	for _, e := range effects {
		w := 1 / (e.variance + tau2)
		reSumW += w
		reSumWY += w * e.logEffect
	}
	pooledLog := reSumWY / reSumW
	pooledSE := math.Sqrt(1 / reSumW)

	iSquared := 0.0
	if q > df {
		iSquared = (q - df) / q * 100
	}

	result := &domain.MetaAnalysisResult{
		PooledEffect:  round2(math.Exp(pooledLog)),
		CILower:       round2(math.Exp(pooledLog - 1.96*pooledSE)),
		CIUpper:       round2(math.Exp(pooledLog + 1.96*pooledSE)),
		ISquared:      round2(iSquared),
		StudiesPooled: len(effects),
		Quality:       poolQuality(len(effects), iSquared),
	}
	result.Interpretation = interpretPooled(result)
	return result
}

func poolQuality(studies int, iSquared float64) string {
	switch {
	case studies >= 5 && iSquared < 50:
		return "good"
	case studies >= 3 && iSquared < 75:
		return "moderate"
	default:
		return "limited"
	}
}

func interpretPooled(r *domain.MetaAnalysisResult) string {
	direction := "no clear effect"
	if r.CIUpper < 1 {
		direction = "a protective effect"
	} else if r.CILower > 1 {
		direction = "an increased risk"
	}
	return fmt.Sprintf(
		"Pooled estimate %.2f (95%% CI %.2f to %.2f) across %d studies suggests %s; I² = %.0f%%.",
		r.PooledEffect, r.CILower, r.CIUpper, r.StudiesPooled, direction, r.ISquared)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
