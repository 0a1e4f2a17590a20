package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidence-triage-server/internal/domain"
)

func TestExtractEffect(t *testing.T) {
	tests := []struct {
		name     string
		abstract string
		ok       bool
	}{
		{"odds ratio with dash CI", "The odds ratio was 0.82, 95% CI 0.71-0.94 for the primary outcome.", true},
		{"hazard ratio with to CI", "Treatment reduced events (hazard ratio 0.75, 95% CI 0.62 to 0.91).", true},
		{"abbreviated RR", "RR 1.24, 95% CI 1.05-1.47 in the exposed group.", true},
		{"confidence interval spelled out", "OR 0.90; 95% confidence interval, 0.80 to 1.01.", true},
		{"no effect reported", "Patients improved substantially over the study period.", false},
		{"CI without point estimate", "The 95% CI spanned 0.8 to 1.2.", false},
		{"inverted interval rejected", "OR 0.82, 95% CI 0.94-0.71.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := extractEffect(tt.abstract)
			if ok != tt.ok {
				t.Errorf("extractEffect(%q) ok = %v, want %v", tt.abstract, ok, tt.ok)
			}
		})
	}
}

func quantStudy(id, abstract string) domain.UnifiedStudy {
	return domain.UnifiedStudy{ID: id, StudyType: domain.StudyRCT, Abstract: abstract}
}

func TestMetaAnalyzer_PoolsConsistentEffects(t *testing.T) {
	m := NewMetaAnalyzer()
	studies := []domain.UnifiedStudy{
		quantStudy("a", "Aspirin reduced events, odds ratio 0.80, 95% CI 0.70-0.92."),
		quantStudy("b", "We observed OR 0.85, 95% CI 0.74-0.97 for the composite endpoint."),
		quantStudy("c", "The hazard ratio was 0.78, 95% CI 0.66 to 0.92."),
	}

	result := m.Pool(studies)

	require.NotNil(t, result)
	assert.Equal(t, 3, result.StudiesPooled)
	assert.Greater(t, result.PooledEffect, 0.7)
	assert.Less(t, result.PooledEffect, 0.9)
	assert.Less(t, result.CILower, result.PooledEffect)
	assert.Greater(t, result.CIUpper, result.PooledEffect)
	assert.Less(t, result.ISquared, 25.0, "consistent effects should show little heterogeneity")
	assert.Contains(t, result.Interpretation, "protective")
}

func TestMetaAnalyzer_DetectsHeterogeneity(t *testing.T) {
	m := NewMetaAnalyzer()
	studies := []domain.UnifiedStudy{
		quantStudy("a", "Odds ratio 0.40, 95% CI 0.35-0.46."),
		quantStudy("b", "Odds ratio 1.80, 95% CI 1.60-2.03."),
		quantStudy("c", "Odds ratio 0.95, 95% CI 0.88-1.03."),
	}

	result := m.Pool(studies)

	require.NotNil(t, result)
	assert.Greater(t, result.ISquared, 75.0)
	assert.Equal(t, "limited", result.Quality)
}

func TestMetaAnalyzer_RequiresTwoParseableEffects(t *testing.T) {
	m := NewMetaAnalyzer()

	tests := []struct {
		name    string
		studies []domain.UnifiedStudy
	}{
		{"no studies", nil},
		{"one parseable effect", []domain.UnifiedStudy{
			quantStudy("a", "OR 0.80, 95% CI 0.70-0.92."),
			quantStudy("b", "No numeric effect reported here."),
		}},
		{"quantitative designs only", []domain.UnifiedStudy{
			{ID: "a", StudyType: domain.StudyCohort, Abstract: "OR 0.80, 95% CI 0.70-0.92."},
			{ID: "b", StudyType: domain.StudyCaseSeries, Abstract: "OR 0.85, 95% CI 0.74-0.97."},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := m.Pool(tt.studies); result != nil {
				t.Errorf("Pool() = %+v, want nil", result)
			}
		})
	}
}

func TestMetaAnalyzer_NullEffectInterpretation(t *testing.T) {
	m := NewMetaAnalyzer()
	studies := []domain.UnifiedStudy{
		quantStudy("a", "OR 0.98, 95% CI 0.85-1.13."),
		quantStudy("b", "OR 1.02, 95% CI 0.90-1.16."),
	}

	result := m.Pool(studies)

	require.NotNil(t, result)
	assert.Contains(t, result.Interpretation, "no clear effect")
}
