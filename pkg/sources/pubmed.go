// Package sources contains one adapter per external literature database.
// Each adapter normalizes its database's API responses into the common
// domain.NormalizedStudy record, plus resilience wrappers (rate limiting,
// circuit breaking, caching) the orchestrator composes around them.
package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evidence-triage-server/internal/domain"
)

// PubMedAdapter queries NCBI PubMed through the E-utilities endpoints.
type PubMedAdapter struct {
	baseURL    string
	apiKey     string
	email      string
	httpClient *http.Client
	maxResults int
}

// PubMedConfig contains configuration for the PubMed adapter.
type PubMedConfig struct {
	BaseURL    string
	APIKey     string
	Email      string // requested by NCBI for large-scale queries
	Timeout    time.Duration
	MaxResults int
}

// NewPubMedAdapter creates a new PubMed adapter.
func NewPubMedAdapter(config PubMedConfig) *PubMedAdapter {
	if config.BaseURL == "" {
		config.BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	}
	if config.MaxResults == 0 {
		config.MaxResults = 50
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &PubMedAdapter{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		email:      config.Email,
		httpClient: &http.Client{Timeout: config.Timeout},
		maxResults: config.MaxResults,
	}
}

// Name returns the source database tag.
func (p *PubMedAdapter) Name() string { return "PubMed" }

// pubmedSearchResponse represents the XML response from esearch.
type pubmedSearchResponse struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
}

// pubmedFetchResponse represents the XML response from efetch.
type pubmedFetchResponse struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			ArticleTitle string `xml:"ArticleTitle"`
			Abstract     struct {
				AbstractText []string `xml:"AbstractText"`
			} `xml:"Abstract"`
			AuthorList struct {
				Authors []struct {
					LastName string `xml:"LastName"`
					ForeName string `xml:"ForeName"`
				} `xml:"Author"`
			} `xml:"AuthorList"`
			Journal struct {
				Title        string `xml:"Title"`
				JournalIssue struct {
					PubDate struct {
						Year  string `xml:"Year"`
						Month string `xml:"Month"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			PublicationTypeList struct {
				Types []string `xml:"PublicationType"`
			} `xml:"PublicationTypeList"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		ArticleIDList struct {
			IDs []struct {
				Type  string `xml:"IdType,attr"`
				Value string `xml:",chardata"`
			} `xml:"ArticleId"`
		} `xml:"ArticleIdList"`
	} `xml:"PubmedData"`
}

// Search queries PubMed and normalizes the hits. A query with no matches
// returns an empty slice and no error.
func (p *PubMedAdapter) Search(ctx context.Context, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, error) {
	pmids, err := p.searchIDs(ctx, query, filters)
	if err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}
	if len(pmids) == 0 {
		return []domain.NormalizedStudy{}, nil
	}

	limit := p.maxResults
	if filters.MaxResults > 0 && filters.MaxResults < limit {
		limit = filters.MaxResults
	}
	if len(pmids) > limit {
		pmids = pmids[:limit]
	}

	articles, err := p.fetchArticles(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch: %w", err)
	}

	return p.normalize(articles), nil
}

func (p *PubMedAdapter) searchIDs(ctx context.Context, query string, filters domain.AdapterFilters) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmode": {"xml"},
		"retmax":  {fmt.Sprintf("%d", p.maxResults)},
	}
	if filters.DateRange != nil {
		params.Set("datetype", "pdat")
		params.Set("mindate", filters.DateRange.Start.Format("2006/01/02"))
		params.Set("maxdate", filters.DateRange.End.Format("2006/01/02"))
	}
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}
	if p.email != "" {
		params.Set("email", p.email)
	}

	body, err := p.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var resp pubmedSearchResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return resp.IDList.IDs, nil
}

func (p *PubMedAdapter) fetchArticles(ctx context.Context, pmids []string) ([]pubmedArticle, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	body, err := p.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var resp pubmedFetchResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse fetch response: %w", err)
	}
	return resp.Articles, nil
}

func (p *PubMedAdapter) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	fullURL := fmt.Sprintf("%s%s?%s", p.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PubMed returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (p *PubMedAdapter) normalize(articles []pubmedArticle) []domain.NormalizedStudy {
	studies := make([]domain.NormalizedStudy, 0, len(articles))

	for _, a := range articles {
		art := a.MedlineCitation.Article

		var authors []string
		for _, au := range art.AuthorList.Authors {
			name := strings.TrimSpace(au.ForeName + " " + au.LastName)
			if name != "" {
				authors = append(authors, name)
			}
		}

		var doi string
		for _, id := range a.PubmedData.ArticleIDList.IDs {
			if id.Type == "doi" {
				doi = strings.TrimSpace(id.Value)
			}
		}

		pmid := a.MedlineCitation.PMID
		studies = append(studies, domain.NormalizedStudy{
			ID:             "PMID:" + pmid,
			DOI:            doi,
			Title:          cleanMarkup(art.ArticleTitle),
			Abstract:       cleanMarkup(strings.Join(art.Abstract.AbstractText, " ")),
			Authors:        authors,
			Journal:        art.Journal.Title,
			PublishedAt:    parsePubDate(art.Journal.JournalIssue.PubDate.Year, art.Journal.JournalIssue.PubDate.Month),
			URL:            "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/",
			SourceDatabase: p.Name(),
			RawStudyType:   strings.Join(art.PublicationTypeList.Types, "; "),
			OpenAccess:     false, // PubMed indexes both; open access is not derivable from efetch alone
		})
	}

	return studies
}

// parsePubDate builds a publication date from PubMed's year/month strings.
// Missing parts default to January 1 so date-range screening stays defined.
func parsePubDate(year, month string) time.Time {
	if year == "" {
		return time.Time{}
	}
	m := time.January
	if month != "" {
		if parsed, err := time.Parse("Jan", month); err == nil {
			m = parsed.Month()
		} else if parsed, err := time.Parse("1", month); err == nil {
			m = parsed.Month()
		}
	}
	var y int
	if _, err := fmt.Sscanf(year, "%d", &y); err != nil {
		return time.Time{}
	}
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// cleanMarkup strips the inline formatting tags PubMed leaves in titles and
// abstracts.
func cleanMarkup(value string) string {
	cleaners := []string{
		"<b>", "</b>",
		"<i>", "</i>",
		"<em>", "</em>",
		"<strong>", "</strong>",
		"<sub>", "</sub>",
		"<sup>", "</sup>",
	}
	result := value
	for _, cleaner := range cleaners {
		result = strings.ReplaceAll(result, cleaner, "")
	}
	return strings.TrimSpace(result)
}
