package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evidence-triage-server/internal/domain"
)

// PLOSAdapter queries the PLOS Solr search API. All PLOS content is open
// access.
type PLOSAdapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxResults int
}

// PLOSConfig contains configuration for the PLOS adapter.
type PLOSConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxResults int
}

// NewPLOSAdapter creates a new PLOS adapter.
func NewPLOSAdapter(config PLOSConfig) *PLOSAdapter {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.plos.org/search"
	}
	if config.MaxResults == 0 {
		config.MaxResults = 50
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &PLOSAdapter{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
		maxResults: config.MaxResults,
	}
}

// Name returns the source database tag.
func (p *PLOSAdapter) Name() string { return "PLOS" }

// plosResponse represents the Solr JSON envelope returned by the search API.
type plosResponse struct {
	Response struct {
		NumFound int       `json:"numFound"`
		Docs     []plosDoc `json:"docs"`
	} `json:"response"`
}

type plosDoc struct {
	ID              string   `json:"id"` // the DOI
	TitleDisplay    string   `json:"title_display"`
	Abstract        []string `json:"abstract"`
	AuthorDisplay   []string `json:"author_display"`
	Journal         string   `json:"journal"`
	PublicationDate string   `json:"publication_date"`
	ArticleType     string   `json:"article_type"`
	Subject         []string `json:"subject"`
}

// Search queries PLOS and normalizes the hits.
func (p *PLOSAdapter) Search(ctx context.Context, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, error) {
	rows := p.maxResults
	if filters.MaxResults > 0 && filters.MaxResults < rows {
		rows = filters.MaxResults
	}

	q := fmt.Sprintf("everything:%q", query)
	if filters.DateRange != nil {
		q += fmt.Sprintf(" AND publication_date:[%sT00:00:00Z TO %sT23:59:59Z]",
			filters.DateRange.Start.Format("2006-01-02"), filters.DateRange.End.Format("2006-01-02"))
	}

	params := url.Values{
		"q":    {q},
		"wt":   {"json"},
		"rows": {fmt.Sprintf("%d", rows)},
		"fl":   {"id,title_display,abstract,author_display,journal,publication_date,article_type,subject"},
	}
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	fullURL := fmt.Sprintf("%s?%s", p.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("plos search: failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plos search: failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plos search: PLOS returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("plos search: failed to read response: %w", err)
	}

	var parsed plosResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("plos search: failed to parse response: %w", err)
	}

	return p.normalize(parsed.Response.Docs), nil
}

func (p *PLOSAdapter) normalize(docs []plosDoc) []domain.NormalizedStudy {
	studies := make([]domain.NormalizedStudy, 0, len(docs))

	for _, d := range docs {
		var published time.Time
		if d.PublicationDate != "" {
			if t, err := time.Parse(time.RFC3339, d.PublicationDate); err == nil {
				published = t.UTC()
			} else if t, err := time.Parse("2006-01-02", strings.SplitN(d.PublicationDate, "T", 2)[0]); err == nil {
				published = t.UTC()
			}
		}

		studies = append(studies, domain.NormalizedStudy{
			ID:             d.ID,
			DOI:            d.ID,
			Title:          strings.TrimSpace(d.TitleDisplay),
			Abstract:       strings.TrimSpace(strings.Join(d.Abstract, " ")),
			Authors:        d.AuthorDisplay,
			Journal:        d.Journal,
			PublishedAt:    published,
			URL:            "https://doi.org/" + d.ID,
			SourceDatabase: p.Name(),
			RawStudyType:   d.ArticleType,
			OpenAccess:     true,
		})
	}

	return studies
}
