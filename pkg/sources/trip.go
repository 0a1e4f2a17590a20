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

// TRIPAdapter queries the Trip evidence database, which indexes clinical
// answers, guidelines, and controlled trials with an evidence-category tag
// per result.
type TRIPAdapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxResults int
}

// TRIPConfig contains configuration for the Trip adapter.
type TRIPConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxResults int
}

// NewTRIPAdapter creates a new Trip adapter.
func NewTRIPAdapter(config TRIPConfig) *TRIPAdapter {
	if config.BaseURL == "" {
		config.BaseURL = "https://www.tripdatabase.com/api/search"
	}
	if config.MaxResults == 0 {
		config.MaxResults = 50
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &TRIPAdapter{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
		maxResults: config.MaxResults,
	}
}

// Name returns the source database tag.
func (t *TRIPAdapter) Name() string { return "TRIP" }

// tripResponse represents the Trip XML search envelope.
type tripResponse struct {
	XMLName xml.Name  `xml:"tripanswers"`
	Total   int       `xml:"total"`
	Docs    []tripDoc `xml:"documents>document"`
}

type tripDoc struct {
	ID          string `xml:"id"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Snippet     string `xml:"snippet"`
	Publication string `xml:"publication"`
	PubDate     string `xml:"pubDate"`
	Category    string `xml:"category"`
	DOI         string `xml:"doi"`
}

// Search queries Trip and normalizes the hits.
func (t *TRIPAdapter) Search(ctx context.Context, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, error) {
	limit := t.maxResults
	if filters.MaxResults > 0 && filters.MaxResults < limit {
		limit = filters.MaxResults
	}

	params := url.Values{
		"criteria": {query},
		"max":      {fmt.Sprintf("%d", limit)},
	}
	if t.apiKey != "" {
		params.Set("key", t.apiKey)
	}

	fullURL := fmt.Sprintf("%s?%s", t.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("trip search: failed to create request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trip search: failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trip search: Trip returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("trip search: failed to read response: %w", err)
	}

	var parsed tripResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("trip search: failed to parse response: %w", err)
	}

	studies := t.normalize(parsed.Docs, filters)
	return studies, nil
}

func (t *TRIPAdapter) normalize(docs []tripDoc, filters domain.AdapterFilters) []domain.NormalizedStudy {
	studies := make([]domain.NormalizedStudy, 0, len(docs))

	for _, d := range docs {
		var published time.Time
		for _, layout := range []string{time.RFC1123, time.RFC1123Z, "2006-01-02", "Mon, 2 Jan 2006 15:04:05 MST"} {
			if parsed, err := time.Parse(layout, d.PubDate); err == nil {
				published = parsed.UTC()
				break
			}
		}

		// Trip's date filtering happens client-side; the API has no
		// publication-date parameter.
		if filters.DateRange != nil && !published.IsZero() && !filters.DateRange.Contains(published) {
			continue
		}

		studies = append(studies, domain.NormalizedStudy{
			ID:             "TRIP:" + d.ID,
			DOI:            d.DOI,
			Title:          strings.TrimSpace(d.Title),
			Abstract:       strings.TrimSpace(d.Snippet),
			Journal:        d.Publication,
			PublishedAt:    published,
			URL:            d.Link,
			SourceDatabase: t.Name(),
			RawStudyType:   categoryToStudyType(d.Category),
			OpenAccess:     false,
		})
	}

	return studies
}

// categoryToStudyType translates Trip's evidence categories into raw study
// type strings the canonical mapper understands.
func categoryToStudyType(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "systematic reviews", "systematic review", "evidence synthesis":
		return "Systematic Review"
	case "controlled trials", "controlled trial", "key primary research":
		return "Randomized Controlled Trial"
	case "observational", "primary research":
		return "Cohort Study"
	default:
		return category
	}
}
