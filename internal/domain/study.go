package domain

import (
	"strings"
	"time"
)

// NormalizedStudy is the common study record every source adapter produces
// from its database-specific payload. It is immutable once created and owned
// by the retrieval orchestrator until converted to a UnifiedStudy.
type NormalizedStudy struct {
	ID             string    `json:"id"`  // source-local identifier
	DOI            string    `json:"doi"` // preferred identity when present
	Title          string    `json:"title"`
	Abstract       string    `json:"abstract"`
	Authors        []string  `json:"authors"`
	Journal        string    `json:"journal"`
	PublishedAt    time.Time `json:"published_at"`
	URL            string    `json:"url"`
	SourceDatabase string    `json:"source_database"`
	RawStudyType   string    `json:"raw_study_type"`
	OpenAccess     bool      `json:"open_access"`
}

// UnifiedStudy is the internal canonical form every pipeline stage after
// retrieval operates on. EvidenceLevel is always derived from StudyType;
// quality and relevance scores are clamped to [0,100].
type UnifiedStudy struct {
	ID             string    `json:"id"`
	DOI            string    `json:"doi,omitempty"`
	Title          string    `json:"title"`
	Abstract       string    `json:"abstract,omitempty"`
	Authors        []string  `json:"authors,omitempty"`
	Journal        string    `json:"journal,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
	URL            string    `json:"url,omitempty"`
	SourceDatabase string    `json:"source_database"`
	RawStudyType   string    `json:"raw_study_type,omitempty"`

	StudyType      StudyType `json:"study_type"`
	EvidenceLevel  int       `json:"evidence_level"`
	QualityScore   float64   `json:"quality_score"`
	RelevanceScore float64   `json:"relevance_score"`
	IsOpenAccess   bool      `json:"is_open_access"`
	Subjects       []string  `json:"subjects,omitempty"`
}

// UnifyStudy converts a normalized source record into the canonical form.
// The caller supplies pre-computed quality and relevance scores; both are
// clamped into [0,100]. EvidenceLevel is derived from the canonical type.
func UnifyStudy(n NormalizedStudy, qualityScore, relevanceScore float64) UnifiedStudy {
	st := CanonicalStudyType(n.RawStudyType)
	return UnifiedStudy{
		ID:             n.ID,
		DOI:            n.DOI,
		Title:          n.Title,
		Abstract:       n.Abstract,
		Authors:        n.Authors,
		Journal:        n.Journal,
		PublishedAt:    n.PublishedAt,
		URL:            n.URL,
		SourceDatabase: n.SourceDatabase,
		RawStudyType:   n.RawStudyType,
		StudyType:      st,
		EvidenceLevel:  st.EvidenceLevel(),
		QualityScore:   ClampScore(qualityScore),
		RelevanceScore: ClampScore(relevanceScore),
		IsOpenAccess:   n.OpenAccess,
	}
}

// ClampScore bounds a score into the [0,100] range.
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// DedupKey returns the identity key used for cross-source deduplication:
// the normalized DOI when present, otherwise the normalized title.
func (n NormalizedStudy) DedupKey() string {
	if doi := NormalizeDOI(n.DOI); doi != "" {
		return "doi:" + doi
	}
	return "title:" + NormalizeTitle(n.Title)
}

// NormalizeDOI lowercases a DOI and strips common resolver prefixes so the
// same article registered under different URLs collapses to one identity.
func NormalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		d = strings.TrimPrefix(d, prefix)
	}
	return d
}

// NormalizeTitle lowercases a title and collapses internal whitespace.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// SearchableText concatenates the text fields the heuristic assessors scan.
func (u UnifiedStudy) SearchableText() string {
	return strings.ToLower(u.Title + " " + u.Abstract)
}
