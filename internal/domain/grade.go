package domain

// GRADEDomain holds one of the five GRADE assessment domains: its concern
// rating and the free-text reason behind any downgrade.
type GRADEDomain struct {
	Rating DomainRating `json:"rating"`
	Reason string       `json:"reason,omitempty"`
}

// GRADEAssessment is the five-domain GRADE profile for a body of evidence
// plus the combined overall confidence. Pure data, constructed fresh per
// evidence set and never mutated afterward.
type GRADEAssessment struct {
	RiskOfBias      GRADEDomain `json:"risk_of_bias"`
	Inconsistency   GRADEDomain `json:"inconsistency"`
	Indirectness    GRADEDomain `json:"indirectness"`
	Imprecision     GRADEDomain `json:"imprecision"`
	PublicationBias GRADEDomain `json:"publication_bias"`

	Confidence Confidence `json:"confidence"`
	Reasons    []string   `json:"reasons,omitempty"`
}

// NamedDomain pairs a GRADE domain with its presentation label.
type NamedDomain struct {
	Label  string
	Domain GRADEDomain
}

// Domains returns the five domains in declaration order. Reason collection
// and summary rendering both depend on this ordering.
func (a *GRADEAssessment) Domains() []NamedDomain {
	return []NamedDomain{
		{"Risk of bias", a.RiskOfBias},
		{"Inconsistency", a.Inconsistency},
		{"Indirectness", a.Indirectness},
		{"Imprecision", a.Imprecision},
		{"Publication bias", a.PublicationBias},
	}
}

// RoBProfile is the RoB2-style risk-of-bias profile for a randomized trial.
// Overall is the worst rating across the five domains, never an average.
type RoBProfile struct {
	Randomization     BiasRating `json:"randomization_process"`
	Deviations        BiasRating `json:"intervention_deviations"`
	MissingData       BiasRating `json:"missing_outcome_data"`
	OutcomeMeasure    BiasRating `json:"outcome_measurement"`
	ReportedSelection BiasRating `json:"reported_result_selection"`
	Overall           BiasRating `json:"overall"`
}

// DomainRatings returns the five RoB2 domains in assessment order.
func (p RoBProfile) DomainRatings() []BiasRating {
	return []BiasRating{p.Randomization, p.Deviations, p.MissingData, p.OutcomeMeasure, p.ReportedSelection}
}

// AMSTARItem is one entry of the reduced 12-item AMSTAR-2 checklist.
type AMSTARItem struct {
	Name     string `json:"name"`
	Met      bool   `json:"met"`
	Critical bool   `json:"critical"`
}

// AMSTARProfile is the methodological checklist result for a systematic
// review: raw score out of 12 and the derived confidence tier.
type AMSTARProfile struct {
	Items       []AMSTARItem     `json:"items"`
	Score       int              `json:"score"`
	CriticalMet int              `json:"critical_met"`
	Confidence  ReviewConfidence `json:"confidence"`
}

// QualityReport is the per-study output of the bias/quality assessor.
// Exactly one of RoB or AMSTAR is populated depending on the study design.
type QualityReport struct {
	StudyID         string         `json:"study_id"`
	Title           string         `json:"title"`
	StudyType       StudyType      `json:"study_type"`
	RoB             *RoBProfile    `json:"risk_of_bias,omitempty"`
	AMSTAR          *AMSTARProfile `json:"amstar,omitempty"`
	QualityScore    float64        `json:"quality_score"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// MetaAnalysisResult is the pooled-effect summary across qualifying studies.
type MetaAnalysisResult struct {
	PooledEffect   float64 `json:"pooled_effect"`
	CILower        float64 `json:"ci_lower"`
	CIUpper        float64 `json:"ci_upper"`
	ISquared       float64 `json:"i_squared"`
	StudiesPooled  int     `json:"studies_pooled"`
	Quality        string  `json:"quality"`
	Interpretation string  `json:"interpretation"`
}

// EvidenceGap describes one missing evidence category detected over the
// included-study set, with a suggested remediation.
type EvidenceGap struct {
	Type           GapType     `json:"gap_type"`
	Severity       GapSeverity `json:"severity"`
	Description    string      `json:"description"`
	Recommendation string      `json:"recommendation"`
}
