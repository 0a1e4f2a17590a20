// Package service implements the evidence pipeline: query expansion,
// concurrent retrieval, screening, bias assessment, GRADE rating,
// meta-analysis, and gap analysis.
package service

import (
	"sort"
	"strings"

	"github.com/evidence-triage-server/internal/config"
)

// ExpandedQuery is the outcome of deterministic query expansion. Expanded is
// always a superset string of the original query.
type ExpandedQuery struct {
	Original        string   `json:"original"`
	Expanded        string   `json:"expanded"`
	Specialty       string   `json:"specialty,omitempty"`
	SynonymsApplied []string `json:"synonyms_applied,omitempty"`
}

// Expander rewrites free-text clinical questions into boolean search
// expressions using the configured vocabulary. Expansion is a pure function
// of the query and vocabulary: no I/O, no randomness.
type Expander struct {
	vocab *config.Vocabulary
}

// NewExpander creates an expander over the given vocabulary.
func NewExpander(vocab *config.Vocabulary) *Expander {
	return &Expander{vocab: vocab}
}

// Expand rewrites recognized terms into OR-groups, appends an evidence-type
// boost clause, and, when a specialty is detected, appends that specialty's
// landmark-trial terms. With nothing recognized it degrades to the term
// boost alone; it never fails.
func (e *Expander) Expand(query string) ExpandedQuery {
	result := ExpandedQuery{Original: query}
	lower := strings.ToLower(query)

	// Deterministic iteration: apply synonym keys in sorted order so the
	// same query always produces the same expansion.
	keys := make([]string, 0, len(e.vocab.Synonyms))
	for k := range e.vocab.Synonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	expanded := query
	for _, term := range keys {
		idx := strings.Index(strings.ToLower(expanded), term)
		if idx < 0 {
			continue
		}
		group := buildSynonymGroup(term, e.vocab.Synonyms[term])
		expanded = expanded[:idx] + group + expanded[idx+len(term):]
		result.SynonymsApplied = append(result.SynonymsApplied, term)
	}

	if boost := e.evidenceBoostClause(); boost != "" {
		expanded += " " + boost
	}

	if specialty := e.DetectSpecialty(lower); specialty != "" {
		result.Specialty = specialty
		if trials := e.vocab.Specialties[specialty].LandmarkTrials; len(trials) > 0 {
			expanded += " OR (" + strings.Join(quoteAll(trials), " OR ") + ")"
		}
	}

	result.Expanded = expanded
	return result
}

// DetectSpecialty returns the first specialty (in sorted name order) whose
// keywords match the query, or the empty string.
func (e *Expander) DetectSpecialty(lowerQuery string) string {
	names := make([]string, 0, len(e.vocab.Specialties))
	for name := range e.vocab.Specialties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, kw := range e.vocab.Specialties[name].Keywords {
			if strings.Contains(lowerQuery, strings.ToLower(kw)) {
				return name
			}
		}
	}
	return ""
}

// SearchSuggestions returns the configured search-strategy suggestions for
// a detected specialty, or nil for an unknown one.
func (e *Expander) SearchSuggestions(specialty string) []string {
	return e.vocab.Specialties[specialty].SearchSuggestions
}

// LandmarkTrials returns the configured landmark-trial identifiers for a
// detected specialty, or nil for an unknown one.
func (e *Expander) LandmarkTrials(specialty string) []string {
	return e.vocab.Specialties[specialty].LandmarkTrials
}

func (e *Expander) evidenceBoostClause() string {
	if len(e.vocab.EvidenceBoost) == 0 {
		return ""
	}
	return "AND (" + strings.Join(quoteAll(e.vocab.EvidenceBoost), " OR ") + ")"
}

func buildSynonymGroup(term string, synonyms []string) string {
	parts := append([]string{quote(term)}, quoteAll(synonyms)...)
	return "(" + strings.Join(parts, " OR ") + ")"
}

func quoteAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = quote(t)
	}
	return out
}

func quote(term string) string {
	if strings.ContainsAny(term, " -") {
		return `"` + term + `"`
	}
	return term
}
