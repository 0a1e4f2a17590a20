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

// BMCAdapter queries the Springer Nature open access API, which covers the
// BMC journal portfolio. Everything it returns is open access.
type BMCAdapter struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxResults int
}

// BMCConfig contains configuration for the BMC adapter.
type BMCConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxResults int
}

// NewBMCAdapter creates a new BMC adapter.
func NewBMCAdapter(config BMCConfig) *BMCAdapter {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.springernature.com/openaccess/json"
	}
	if config.MaxResults == 0 {
		config.MaxResults = 50
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &BMCAdapter{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: config.Timeout},
		maxResults: config.MaxResults,
	}
}

// Name returns the source database tag.
func (b *BMCAdapter) Name() string { return "BMC" }

// bmcResponse represents the Springer open access JSON envelope.
type bmcResponse struct {
	Records []bmcRecord `json:"records"`
}

type bmcRecord struct {
	DOI             string `json:"doi"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	PublicationName string `json:"publicationName"`
	PublicationDate string `json:"publicationDate"`
	ContentType     string `json:"contentType"`
	Genre           string `json:"genre"`
	Creators        []struct {
		Creator string `json:"creator"`
	} `json:"creators"`
	URL []struct {
		Value string `json:"value"`
	} `json:"url"`
}

// Search queries the BMC portfolio and normalizes the hits.
func (b *BMCAdapter) Search(ctx context.Context, query string, filters domain.AdapterFilters) ([]domain.NormalizedStudy, error) {
	limit := b.maxResults
	if filters.MaxResults > 0 && filters.MaxResults < limit {
		limit = filters.MaxResults
	}

	q := query
	if filters.DateRange != nil {
		q += fmt.Sprintf(" onlinedatefrom:%s onlinedateto:%s",
			filters.DateRange.Start.Format("2006-01-02"), filters.DateRange.End.Format("2006-01-02"))
	}

	params := url.Values{
		"q": {q},
		"p": {fmt.Sprintf("%d", limit)},
	}
	if b.apiKey != "" {
		params.Set("api_key", b.apiKey)
	}

	fullURL := fmt.Sprintf("%s?%s", b.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("bmc search: failed to create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bmc search: failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bmc search: Springer API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bmc search: failed to read response: %w", err)
	}

	var parsed bmcResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("bmc search: failed to parse response: %w", err)
	}

	return b.normalize(parsed.Records), nil
}

func (b *BMCAdapter) normalize(records []bmcRecord) []domain.NormalizedStudy {
	studies := make([]domain.NormalizedStudy, 0, len(records))

	for _, r := range records {
		var authors []string
		for _, c := range r.Creators {
			if name := strings.TrimSpace(c.Creator); name != "" {
				authors = append(authors, name)
			}
		}

		var link string
		if len(r.URL) > 0 {
			link = r.URL[0].Value
		} else if r.DOI != "" {
			link = "https://doi.org/" + r.DOI
		}

		var published time.Time
		if t, err := time.Parse("2006-01-02", r.PublicationDate); err == nil {
			published = t.UTC()
		}

		rawType := r.Genre
		if rawType == "" {
			rawType = r.ContentType
		}

		studies = append(studies, domain.NormalizedStudy{
			ID:             r.DOI,
			DOI:            r.DOI,
			Title:          strings.TrimSpace(r.Title),
			Abstract:       strings.TrimSpace(r.Abstract),
			Authors:        authors,
			Journal:        r.PublicationName,
			PublishedAt:    published,
			URL:            link,
			SourceDatabase: b.Name(),
			RawStudyType:   rawType,
			OpenAccess:     true,
		})
	}

	return studies
}
