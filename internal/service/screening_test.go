package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidence-triage-server/internal/domain"
)

func passingStudy(id string) domain.UnifiedStudy {
	return domain.UnifiedStudy{
		ID:             id,
		Title:          "Aspirin trial " + id,
		SourceDatabase: "PubMed",
		PublishedAt:    time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
		StudyType:      domain.StudyRCT,
		EvidenceLevel:  2,
		QualityScore:   70,
		RelevanceScore: 80,
		IsOpenAccess:   true,
	}
}

func TestScreener_IncludesPassingStudy(t *testing.T) {
	s := NewScreener(ScreeningConfig{}, testLogger())

	included, excluded := s.Screen([]domain.UnifiedStudy{passingStudy("a")}, domain.SearchFilters{})

	assert.Len(t, included, 1)
	assert.Empty(t, excluded)
}

func TestScreener_FirstFailingRuleWins(t *testing.T) {
	// A study that violates both the date range and the quality threshold
	// must be excluded for the date range: rules run in a fixed order and
	// the first failure short-circuits.
	study := passingStudy("a")
	study.PublishedAt = time.Date(1995, 1, 1, 0, 0, 0, 0, time.UTC)
	study.QualityScore = 5

	filters := domain.SearchFilters{DateRange: &domain.DateRange{
		Start: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}}

	s := NewScreener(ScreeningConfig{}, testLogger())
	included, excluded := s.Screen([]domain.UnifiedStudy{study}, filters)

	assert.Empty(t, included)
	require.Len(t, excluded, 1)
	assert.Equal(t, domain.ExclusionOutsideDateRange, excluded[0].Reason)
}

func TestScreener_ExclusionReasons(t *testing.T) {
	s := NewScreener(ScreeningConfig{MinQualityScore: 40, MinRelevanceScore: 30}, testLogger())

	tests := []struct {
		name    string
		mutate  func(*domain.UnifiedStudy)
		filters domain.SearchFilters
		reason  domain.ExclusionReason
	}{
		{
			name:   "wrong study type",
			mutate: func(u *domain.UnifiedStudy) { u.StudyType = domain.StudyCaseSeries },
			filters: domain.SearchFilters{
				StudyTypes: []domain.StudyType{domain.StudyRCT, domain.StudySystematicReview},
			},
			reason: domain.ExclusionWrongStudyType,
		},
		{
			name:    "evidence level not requested",
			mutate:  func(u *domain.UnifiedStudy) { u.EvidenceLevel = 5 },
			filters: domain.SearchFilters{EvidenceLevels: []int{1, 2}},
			reason:  domain.ExclusionWrongStudyType,
		},
		{
			name:   "poor quality",
			mutate: func(u *domain.UnifiedStudy) { u.QualityScore = 20 },
			reason: domain.ExclusionPoorQuality,
		},
		{
			name:   "not relevant",
			mutate: func(u *domain.UnifiedStudy) { u.RelevanceScore = 10 },
			reason: domain.ExclusionNotRelevant,
		},
		{
			name:    "closed access when open access required",
			mutate:  func(u *domain.UnifiedStudy) { u.IsOpenAccess = false },
			filters: domain.SearchFilters{RequireOpenAccess: true},
			reason:  domain.ExclusionNotRelevant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			study := passingStudy("x")
			tt.mutate(&study)

			included, excluded := s.Screen([]domain.UnifiedStudy{study}, tt.filters)

			assert.Empty(t, included)
			require.Len(t, excluded, 1)
			assert.Equal(t, tt.reason, excluded[0].Reason)
			assert.True(t, excluded[0].Reason.IsValid())
			assert.NotEmpty(t, excluded[0].ReasonDetails)
		})
	}
}

func TestScreener_OpenAccessRuleRunsBeforeQuality(t *testing.T) {
	study := passingStudy("a")
	study.IsOpenAccess = false
	study.QualityScore = 5

	s := NewScreener(ScreeningConfig{}, testLogger())
	_, excluded := s.Screen([]domain.UnifiedStudy{study}, domain.SearchFilters{RequireOpenAccess: true})

	require.Len(t, excluded, 1)
	assert.Equal(t, domain.ExclusionNotRelevant, excluded[0].Reason)
	assert.Contains(t, excluded[0].ReasonDetails, "openly accessible")
}

func TestScreener_EveryStudyLandsExactlyOnce(t *testing.T) {
	studies := []domain.UnifiedStudy{passingStudy("a"), passingStudy("b"), passingStudy("c")}
	studies[1].QualityScore = 10

	s := NewScreener(ScreeningConfig{}, testLogger())
	included, excluded := s.Screen(studies, domain.SearchFilters{})

	assert.Equal(t, len(studies), len(included)+len(excluded))
	assert.Equal(t, "a", included[0].ID)
	assert.Equal(t, "c", included[1].ID)
	assert.Equal(t, "b", excluded[0].StudyID)
}

func TestScreener_PreservesInputOrder(t *testing.T) {
	studies := []domain.UnifiedStudy{passingStudy("first"), passingStudy("second"), passingStudy("third")}

	s := NewScreener(ScreeningConfig{}, testLogger())
	included, _ := s.Screen(studies, domain.SearchFilters{})

	require.Len(t, included, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{included[0].ID, included[1].ID, included[2].ID})
}
