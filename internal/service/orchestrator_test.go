package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidence-triage-server/internal/domain"
)

type fakeAdapter struct {
	name    string
	studies []domain.NormalizedStudy
	err     error
	delay   time.Duration
	panics  bool
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Search(ctx context.Context, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, error) {
	if f.panics {
		panic("adapter exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.studies, f.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func normStudy(id, doi, title, source string) domain.NormalizedStudy {
	return domain.NormalizedStudy{
		ID:             id,
		DOI:            doi,
		Title:          title,
		Abstract:       "A randomized controlled trial of aspirin for cardiovascular prevention with a substantial methods section describing allocation and blinding in detail for scoring purposes.",
		SourceDatabase: source,
		RawStudyType:   "Randomized Controlled Trial",
		PublishedAt:    time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestOrchestrator_MergesAllSources(t *testing.T) {
	adapters := []domain.SourceAdapter{
		&fakeAdapter{name: "PubMed", studies: []domain.NormalizedStudy{normStudy("p1", "10.1/a", "Aspirin trial one", "PubMed")}},
		&fakeAdapter{name: "PLOS", studies: []domain.NormalizedStudy{normStudy("x1", "10.1/b", "Aspirin trial two", "PLOS")}},
	}
	o := NewOrchestrator(adapters, time.Second, 50, testLogger())
	log := domain.NewScreeningLog("q1", "aspirin", nil)

	studies, perf := o.Retrieve(context.Background(), "aspirin", "aspirin expanded", domain.SearchFilters{}, log)

	assert.Len(t, studies, 2)
	assert.Equal(t, 2, log.TotalRetrieved)
	assert.True(t, perf["PubMed"].Succeeded)
	assert.True(t, perf["PLOS"].Succeeded)
	assert.Len(t, log.SearchStrategySnapshot(), 2)
}

func TestOrchestrator_DeduplicatesByDOI(t *testing.T) {
	// Same article in two databases under different DOI casing and a
	// resolver prefix; first registered adapter wins.
	adapters := []domain.SourceAdapter{
		&fakeAdapter{name: "PubMed", studies: []domain.NormalizedStudy{normStudy("p1", "10.1016/S0140-6736(19)30001-1", "Aspirin outcomes", "PubMed")}},
		&fakeAdapter{name: "PLOS", studies: []domain.NormalizedStudy{normStudy("x9", "https://doi.org/10.1016/s0140-6736(19)30001-1", "Aspirin outcomes", "PLOS")}},
	}
	o := NewOrchestrator(adapters, time.Second, 50, testLogger())
	log := domain.NewScreeningLog("q1", "aspirin", nil)

	studies, _ := o.Retrieve(context.Background(), "aspirin", "aspirin", domain.SearchFilters{}, log)

	require.Len(t, studies, 1)
	assert.Equal(t, "PubMed", studies[0].SourceDatabase)
}

func TestOrchestrator_DeduplicatesByTitleWhenNoDOI(t *testing.T) {
	adapters := []domain.SourceAdapter{
		&fakeAdapter{name: "TRIP", studies: []domain.NormalizedStudy{normStudy("t1", "", "Aspirin  For   Prevention", "TRIP")}},
		&fakeAdapter{name: "BMC", studies: []domain.NormalizedStudy{normStudy("b1", "", "aspirin for prevention", "BMC")}},
	}
	o := NewOrchestrator(adapters, time.Second, 50, testLogger())
	log := domain.NewScreeningLog("q1", "aspirin", nil)

	studies, _ := o.Retrieve(context.Background(), "aspirin", "aspirin", domain.SearchFilters{}, log)

	assert.Len(t, studies, 1)
}

func TestOrchestrator_PartialFailureTolerated(t *testing.T) {
	adapters := []domain.SourceAdapter{
		&fakeAdapter{name: "PubMed", studies: []domain.NormalizedStudy{normStudy("p1", "10.1/a", "Aspirin trial", "PubMed")}},
		&fakeAdapter{name: "TRIP", err: errors.New("upstream down")},
	}
	o := NewOrchestrator(adapters, time.Second, 50, testLogger())
	log := domain.NewScreeningLog("q1", "aspirin", nil)

	studies, perf := o.Retrieve(context.Background(), "aspirin", "aspirin", domain.SearchFilters{}, log)

	assert.Len(t, studies, 1)
	assert.False(t, perf["TRIP"].Succeeded)

	var tripEntry domain.DatabaseQuery
	for _, entry := range log.SearchStrategySnapshot() {
		if entry.Database == "TRIP" {
			tripEntry = entry
		}
	}
	assert.False(t, tripEntry.Succeeded)
	assert.Contains(t, tripEntry.Error, "upstream down")
}

func TestOrchestrator_AllSourcesFailedDegradesToEmpty(t *testing.T) {
	// Every source down is still a valid zero-evidence outcome, not an
	// error; the failures are only visible in the log and metrics.
	adapters := []domain.SourceAdapter{
		&fakeAdapter{name: "PubMed", err: errors.New("down")},
		&fakeAdapter{name: "PLOS", err: errors.New("down")},
	}
	o := NewOrchestrator(adapters, time.Second, 50, testLogger())
	log := domain.NewScreeningLog("q1", "aspirin", nil)

	studies, perf := o.Retrieve(context.Background(), "aspirin", "aspirin", domain.SearchFilters{}, log)

	assert.Empty(t, studies)
	assert.Zero(t, log.TotalRetrieved)
	assert.False(t, perf["PubMed"].Succeeded)
	assert.False(t, perf["PLOS"].Succeeded)
	require.Len(t, log.SearchStrategySnapshot(), 2)
	for _, entry := range log.SearchStrategySnapshot() {
		assert.False(t, entry.Succeeded)
		assert.Contains(t, entry.Error, "down")
	}
}

func TestOrchestrator_RecoversAdapterPanic(t *testing.T) {
	adapters := []domain.SourceAdapter{
		&fakeAdapter{name: "PubMed", studies: []domain.NormalizedStudy{normStudy("p1", "10.1/a", "Aspirin trial", "PubMed")}},
		&fakeAdapter{name: "BMC", panics: true},
	}
	o := NewOrchestrator(adapters, time.Second, 50, testLogger())
	log := domain.NewScreeningLog("q1", "aspirin", nil)

	studies, perf := o.Retrieve(context.Background(), "aspirin", "aspirin", domain.SearchFilters{}, log)

	assert.Len(t, studies, 1)
	assert.False(t, perf["BMC"].Succeeded)
}

func TestOrchestrator_SlowAdapterTimesOut(t *testing.T) {
	adapters := []domain.SourceAdapter{
		&fakeAdapter{name: "PubMed", studies: []domain.NormalizedStudy{normStudy("p1", "10.1/a", "Aspirin trial", "PubMed")}},
		&fakeAdapter{name: "TRIP", delay: 5 * time.Second},
	}
	o := NewOrchestrator(adapters, 50*time.Millisecond, 50, testLogger())
	log := domain.NewScreeningLog("q1", "aspirin", nil)

	start := time.Now()
	studies, perf := o.Retrieve(context.Background(), "aspirin", "aspirin", domain.SearchFilters{}, log)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, studies, 1)
	assert.False(t, perf["TRIP"].Succeeded)
}

func TestRelevanceScore(t *testing.T) {
	study := domain.NormalizedStudy{
		Title:    "Aspirin for primary prevention of cardiovascular events",
		Abstract: "Low-dose aspirin reduced cardiovascular events in this trial.",
	}

	high := RelevanceScore(study, "aspirin cardiovascular prevention")
	low := RelevanceScore(study, "metformin thyroid nodules")

	assert.Greater(t, high, 80.0)
	assert.Equal(t, 0.0, low)
}

func TestBaselineQualityScore_RanksDesigns(t *testing.T) {
	review := domain.NormalizedStudy{RawStudyType: "Systematic Review", PublishedAt: time.Now().AddDate(-1, 0, 0)}
	series := domain.NormalizedStudy{RawStudyType: "Case Series", PublishedAt: time.Now().AddDate(-1, 0, 0)}

	assert.Greater(t, BaselineQualityScore(review), BaselineQualityScore(series))
}
