package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidence-triage-server/internal/domain"
)

func TestPubMedAdapter_Search(t *testing.T) {
	searchXML := `<?xml version="1.0"?>
<eSearchResult>
	<Count>1</Count>
	<IdList>
		<Id>31892345</Id>
	</IdList>
</eSearchResult>`

	fetchXML := `<?xml version="1.0"?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation>
			<PMID>31892345</PMID>
			<Article>
				<ArticleTitle>Aspirin for primary prevention of cardiovascular events</ArticleTitle>
				<Abstract>
					<AbstractText>Randomized trial of low-dose aspirin.</AbstractText>
				</Abstract>
				<AuthorList>
					<Author><LastName>Smith</LastName><ForeName>Jane</ForeName></Author>
				</AuthorList>
				<Journal>
					<Title>The Lancet</Title>
					<JournalIssue><PubDate><Year>2019</Year><Month>Mar</Month></PubDate></JournalIssue>
				</Journal>
				<PublicationTypeList>
					<PublicationType>Randomized Controlled Trial</PublicationType>
				</PublicationTypeList>
			</Article>
		</MedlineCitation>
		<PubmedData>
			<ArticleIdList>
				<ArticleId IdType="doi">10.1016/s0140-6736(19)30001-1</ArticleId>
			</ArticleIdList>
		</PubmedData>
	</PubmedArticle>
</PubmedArticleSet>`

	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Header().Set("Content-Type", "application/xml")
		if requestCount == 1 {
			fmt.Fprint(w, searchXML)
		} else {
			fmt.Fprint(w, fetchXML)
		}
	}))
	defer server.Close()

	adapter := NewPubMedAdapter(PubMedConfig{BaseURL: server.URL + "/", Timeout: 5 * time.Second})
	studies, err := adapter.Search(context.Background(), "aspirin cardiovascular prevention", domain.AdapterFilters{MaxResults: 10})

	require.NoError(t, err)
	require.Len(t, studies, 1)
	s := studies[0]
	assert.Equal(t, "PMID:31892345", s.ID)
	assert.Equal(t, "10.1016/s0140-6736(19)30001-1", s.DOI)
	assert.Equal(t, "Aspirin for primary prevention of cardiovascular events", s.Title)
	assert.Equal(t, []string{"Jane Smith"}, s.Authors)
	assert.Equal(t, "The Lancet", s.Journal)
	assert.Equal(t, "PubMed", s.SourceDatabase)
	assert.Equal(t, "Randomized Controlled Trial", s.RawStudyType)
	assert.Equal(t, 2019, s.PublishedAt.Year())
	assert.Equal(t, time.March, s.PublishedAt.Month())
}

func TestPubMedAdapter_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><eSearchResult><Count>0</Count><IdList></IdList></eSearchResult>`)
	}))
	defer server.Close()

	adapter := NewPubMedAdapter(PubMedConfig{BaseURL: server.URL + "/", Timeout: 5 * time.Second})
	studies, err := adapter.Search(context.Background(), "nonexistent condition xyzzy", domain.AdapterFilters{})

	require.NoError(t, err)
	assert.Empty(t, studies)
}

func TestPubMedAdapter_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewPubMedAdapter(PubMedConfig{BaseURL: server.URL + "/", Timeout: 5 * time.Second})
	_, err := adapter.Search(context.Background(), "aspirin", domain.AdapterFilters{})

	assert.Error(t, err)
}

func TestPLOSAdapter_Search(t *testing.T) {
	plosJSON := `{
		"response": {
			"numFound": 1,
			"docs": [
				{
					"id": "10.1371/journal.pmed.1003212",
					"title_display": "Statin therapy in older adults: a systematic review",
					"abstract": ["We systematically reviewed statin trials."],
					"author_display": ["A. Reviewer", "B. Author"],
					"journal": "PLOS Medicine",
					"publication_date": "2020-06-15T00:00:00Z",
					"article_type": "Research Article",
					"subject": ["Cardiology"]
				}
			]
		}
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, plosJSON)
	}))
	defer server.Close()

	adapter := NewPLOSAdapter(PLOSConfig{BaseURL: server.URL, Timeout: 5 * time.Second})
	studies, err := adapter.Search(context.Background(), "statin older adults", domain.AdapterFilters{})

	require.NoError(t, err)
	require.Len(t, studies, 1)
	s := studies[0]
	assert.Equal(t, "10.1371/journal.pmed.1003212", s.DOI)
	assert.Equal(t, "PLOS", s.SourceDatabase)
	assert.True(t, s.OpenAccess)
	assert.Equal(t, 2020, s.PublishedAt.Year())
	assert.Equal(t, "We systematically reviewed statin trials.", s.Abstract)
}

func TestBMCAdapter_Search(t *testing.T) {
	bmcJSON := `{
		"records": [
			{
				"doi": "10.1186/s12872-021-01925-7",
				"title": "Anticoagulation in atrial fibrillation: a cohort study",
				"abstract": "Prospective cohort of anticoagulated patients.",
				"publicationName": "BMC Cardiovascular Disorders",
				"publicationDate": "2021-02-10",
				"contentType": "Article",
				"genre": "OriginalPaper",
				"creators": [{"creator": "Chen, Li"}],
				"url": [{"value": "https://doi.org/10.1186/s12872-021-01925-7"}]
			}
		]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, bmcJSON)
	}))
	defer server.Close()

	adapter := NewBMCAdapter(BMCConfig{BaseURL: server.URL, Timeout: 5 * time.Second})
	studies, err := adapter.Search(context.Background(), "anticoagulation atrial fibrillation", domain.AdapterFilters{})

	require.NoError(t, err)
	require.Len(t, studies, 1)
	assert.Equal(t, "BMC", studies[0].SourceDatabase)
	assert.True(t, studies[0].OpenAccess)
	assert.Equal(t, []string{"Chen, Li"}, studies[0].Authors)
}

func TestTRIPAdapter_SearchFiltersDates(t *testing.T) {
	tripXML := `<?xml version="1.0"?>
<tripanswers>
	<total>2</total>
	<documents>
		<document>
			<id>100</id>
			<title>Thrombolysis guidelines update</title>
			<link>https://example.org/one</link>
			<snippet>Guideline summary.</snippet>
			<publication>Trip</publication>
			<pubDate>2024-05-01</pubDate>
			<category>Systematic Reviews</category>
		</document>
		<document>
			<id>101</id>
			<title>An older trial</title>
			<link>https://example.org/two</link>
			<snippet>Old evidence.</snippet>
			<publication>Trip</publication>
			<pubDate>2001-01-01</pubDate>
			<category>Controlled Trials</category>
		</document>
	</documents>
</tripanswers>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, tripXML)
	}))
	defer server.Close()

	adapter := NewTRIPAdapter(TRIPConfig{BaseURL: server.URL, Timeout: 5 * time.Second})
	filters := domain.AdapterFilters{DateRange: &domain.DateRange{
		Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}}
	studies, err := adapter.Search(context.Background(), "thrombolysis", filters)

	require.NoError(t, err)
	require.Len(t, studies, 1)
	assert.Equal(t, "TRIP:100", studies[0].ID)
	assert.Equal(t, "Systematic Review", studies[0].RawStudyType)
}

type stubAdapter struct {
	name    string
	studies []domain.NormalizedStudy
	err     error
	calls   int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Search(ctx context.Context, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, error) {
	s.calls++
	return s.studies, s.err
}

func TestRateLimitedAdapter_ExhaustsQuota(t *testing.T) {
	stub := &stubAdapter{name: "PubMed", studies: []domain.NormalizedStudy{{ID: "x"}}}
	limited := NewRateLimitedAdapter(stub, 2)

	_, err := limited.Search(context.Background(), "q", domain.AdapterFilters{})
	require.NoError(t, err)
	_, err = limited.Search(context.Background(), "q", domain.AdapterFilters{})
	require.NoError(t, err)

	_, err = limited.Search(context.Background(), "q", domain.AdapterFilters{})
	require.Error(t, err)

	var rle *domain.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "PubMed", rle.Source)
	assert.Equal(t, 2, stub.calls)
}

func TestBreakerAdapter_OpensAfterFailures(t *testing.T) {
	stub := &stubAdapter{name: "TRIP", err: errors.New("upstream down")}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	wrapped := NewBreakerAdapter(stub, logger)

	for i := 0; i < 5; i++ {
		_, err := wrapped.Search(context.Background(), "q", domain.AdapterFilters{})
		assert.Error(t, err)
	}

	callsBefore := stub.calls
	_, err := wrapped.Search(context.Background(), "q", domain.AdapterFilters{})
	assert.Error(t, err)
	assert.Equal(t, callsBefore, stub.calls, "open breaker should not reach the adapter")
}
