package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Specialty describes one medical specialty's retrieval vocabulary: the
// keywords that detect it in a free-text query, the landmark trial
// identifiers appended to expanded queries, and search-strategy suggestions
// surfaced alongside detected evidence gaps.
type Specialty struct {
	Keywords          []string `mapstructure:"keywords"`
	LandmarkTrials    []string `mapstructure:"landmark_trials"`
	SearchSuggestions []string `mapstructure:"search_suggestions"`
}

// Vocabulary holds the domain tables that drive query expansion and
// specialty-specific gap analysis. It is data, not code: deployments can
// grow coverage by shipping a new YAML file without touching pipeline logic.
type Vocabulary struct {
	Synonyms      map[string][]string  `mapstructure:"synonyms"`
	EvidenceBoost []string             `mapstructure:"evidence_boost"`
	Specialties   map[string]Specialty `mapstructure:"specialties"`
}

// LoadVocabulary reads a vocabulary YAML file. An empty path returns the
// compiled-in default tables.
func LoadVocabulary(path string) (*Vocabulary, error) {
	if path == "" {
		return DefaultVocabulary(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file %s: %w", path, err)
	}

	vocab := &Vocabulary{}
	if err := v.Unmarshal(vocab); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vocabulary: %w", err)
	}
	if len(vocab.Synonyms) == 0 && len(vocab.Specialties) == 0 {
		return nil, fmt.Errorf("vocabulary file %s contains no synonym or specialty tables", path)
	}
	return vocab, nil
}

// DefaultVocabulary returns the compiled-in synonym and specialty tables.
// These mirror configs/vocabulary.yaml and serve as the fallback when no
// external file is configured.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		Synonyms: map[string][]string{
			"heart attack":        {"myocardial infarction", "MI", "acute coronary syndrome"},
			"stroke":              {"cerebrovascular accident", "CVA", "cerebral infarction"},
			"high blood pressure": {"hypertension", "elevated blood pressure"},
			"aspirin":             {"acetylsalicylic acid", "ASA"},
			"heart failure":       {"cardiac failure", "congestive heart failure", "CHF"},
			"diabetes":            {"diabetes mellitus", "type 2 diabetes", "T2DM"},
			"blood thinner":       {"anticoagulant", "antithrombotic"},
			"cholesterol":         {"hyperlipidemia", "dyslipidemia", "LDL"},
			"kidney disease":      {"chronic kidney disease", "renal insufficiency", "CKD"},
			"cancer":              {"neoplasm", "malignancy", "carcinoma"},
			"depression":          {"major depressive disorder", "MDD"},
			"blood clot":          {"thrombosis", "thromboembolism", "VTE"},
		},
		EvidenceBoost: []string{
			"systematic review", "meta-analysis", "randomized controlled trial",
		},
		Specialties: map[string]Specialty{
			"cardiology": {
				Keywords: []string{
					"cardiovascular", "cardiac", "heart", "coronary", "myocardial",
					"aspirin", "statin", "hypertension", "atrial fibrillation",
				},
				LandmarkTrials: []string{
					"ISIS-2", "HOPE", "JUPITER", "ASCOT", "ARISTOTLE", "PARADIGM-HF",
				},
				SearchSuggestions: []string{
					"Search trial registries for ongoing cardiovascular outcome trials",
					"Consider AHA/ACC and ESC guideline evidence reviews",
				},
			},
			"oncology": {
				Keywords: []string{
					"cancer", "tumor", "tumour", "oncology", "chemotherapy",
					"carcinoma", "metastatic", "immunotherapy",
				},
				LandmarkTrials: []string{
					"KEYNOTE-189", "CheckMate-067", "IMpower150", "FLAURA",
				},
				SearchSuggestions: []string{
					"Search ClinicalTrials.gov for active oncology trials",
					"Consider NCCN and ESMO guideline evidence reviews",
				},
			},
			"neurology": {
				Keywords: []string{
					"stroke", "neurological", "seizure", "epilepsy", "multiple sclerosis",
					"parkinson", "alzheimer", "migraine",
				},
				LandmarkTrials: []string{
					"NINDS", "DAWN", "DEFUSE 3", "CLARITY",
				},
				SearchSuggestions: []string{
					"Search stroke registries and AAN guideline reviews",
				},
			},
			"endocrinology": {
				Keywords: []string{
					"diabetes", "diabetic", "insulin", "glycemic", "thyroid",
					"metformin", "obesity",
				},
				LandmarkTrials: []string{
					"UKPDS", "DCCT", "EMPA-REG OUTCOME", "LEADER", "SUSTAIN-6",
				},
				SearchSuggestions: []string{
					"Consider ADA and EASD standards-of-care evidence reviews",
				},
			},
			"infectious_disease": {
				Keywords: []string{
					"infection", "antibiotic", "antimicrobial", "sepsis", "covid",
					"influenza", "vaccine",
				},
				LandmarkTrials: []string{
					"RECOVERY", "ACTT-1", "PROWESS",
				},
				SearchSuggestions: []string{
					"Search WHO and IDSA guideline evidence reviews",
				},
			},
		},
	}
}
