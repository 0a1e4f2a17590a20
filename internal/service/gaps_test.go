package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidence-triage-server/internal/domain"
)

func TestGapAnalyzer_NoResultsIsHighSeverityGap(t *testing.T) {
	g := NewGapAnalyzer()

	gaps := g.Analyze("obscure intervention", nil)

	require.Len(t, gaps, 1)
	assert.Equal(t, domain.GapStudyDesign, gaps[0].Type)
	assert.Equal(t, domain.SeverityHigh, gaps[0].Severity)
	assert.NotEmpty(t, gaps[0].Recommendation)
}

func TestGapAnalyzer_MissingDesigns(t *testing.T) {
	g := NewGapAnalyzer()
	included := []domain.UnifiedStudy{
		{
			ID:          "cohort",
			StudyType:   domain.StudyCohort,
			Abstract:    "A prospective cohort compared with usual care over long-term follow-up in older adults.",
			PublishedAt: time.Now().AddDate(-1, 0, 0),
		},
	}

	gaps := g.Analyze("some question", included)

	var types []domain.GapType
	for _, gap := range gaps {
		types = append(types, gap.Type)
	}
	// No systematic review and no RCT both register as design gaps.
	assert.Equal(t, []domain.GapType{domain.GapStudyDesign, domain.GapStudyDesign}, types)
}

func TestGapAnalyzer_CompleteEvidenceHasNoGaps(t *testing.T) {
	g := NewGapAnalyzer()
	included := []domain.UnifiedStudy{
		{
			ID:          "sr",
			StudyType:   domain.StudySystematicReview,
			Abstract:    "Review including subgroup analyses of older adults and children with long-term outcomes.",
			PublishedAt: time.Now().AddDate(-1, 0, 0),
		},
		{
			ID:          "rct",
			StudyType:   domain.StudyRCT,
			Abstract:    "Drug A versus drug B in women, with 5-year follow-up.",
			PublishedAt: time.Now().AddDate(-2, 0, 0),
		},
	}

	gaps := g.Analyze("drug A", included)

	assert.Empty(t, gaps)
}

func TestGapAnalyzer_DetectsMissingComparisonAndPopulation(t *testing.T) {
	g := NewGapAnalyzer()
	included := []domain.UnifiedStudy{
		{
			ID:          "sr",
			StudyType:   domain.StudySystematicReview,
			Abstract:    "Single-arm evidence on treatment effect with long-term follow-up.",
			PublishedAt: time.Now().AddDate(-1, 0, 0),
		},
		{
			ID:          "rct",
			StudyType:   domain.StudyRCT,
			Abstract:    "Placebo-controlled long-term assessment of the intervention.",
			PublishedAt: time.Now().AddDate(-1, 0, 0),
		},
	}

	gaps := g.Analyze("treatment", included)

	byType := make(map[domain.GapType]domain.EvidenceGap)
	for _, gap := range gaps {
		byType[gap.Type] = gap
	}
	assert.Contains(t, byType, domain.GapPopulation)
	assert.Contains(t, byType, domain.GapComparison)
	assert.NotContains(t, byType, domain.GapOutcome)
}

func TestGapAnalyzer_StaleEvidence(t *testing.T) {
	g := NewGapAnalyzer()
	included := []domain.UnifiedStudy{
		{
			ID:          "old-sr",
			StudyType:   domain.StudySystematicReview,
			Abstract:    "Older review versus placebo in children with long-term outcomes.",
			PublishedAt: time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "old-rct",
			StudyType:   domain.StudyRCT,
			Abstract:    "Trial versus placebo in children with long-term outcomes.",
			PublishedAt: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	gaps := g.Analyze("treatment", included)

	require.Len(t, gaps, 1)
	assert.Equal(t, domain.GapIntervention, gaps[0].Type)
	assert.Equal(t, domain.SeverityMedium, gaps[0].Severity)
}
