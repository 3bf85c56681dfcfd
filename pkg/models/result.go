package models

// CanonicalResult is the normalized, internal form of an AI answer
// used by the handlers and database layer.
//
// External services return several envelope shapes; everything is
// mapped into this structure first, then served and persisted from it.
// A result carries either the doubt shape (AIResponse/OriginalDoubt)
// or the essay shape (FinalScore/Competencies/Feedback/OriginalEssay);
// the two are produced by different endpoints and never merged.
type CanonicalResult struct {
	AIResponse    string             `json:"aiResponse,omitempty"`
	OriginalDoubt string             `json:"originalDoubt,omitempty"`
	FinalScore    *float64           `json:"finalScore,omitempty"`
	Competencies  map[string]float64 `json:"competencies,omitempty"`
	Feedback      *Feedback          `json:"feedback,omitempty"`
	OriginalEssay string             `json:"originalEssay,omitempty"`
	DoubtImageURL string             `json:"doubtImageUrl,omitempty"`
	DoubtImages   []string           `json:"doubtImages,omitempty"`
	Topic         string             `json:"topic,omitempty"`

	// Raw keeps the original upstream object for diagnostics only.
	Raw map[string]any `json:"-"`
}

// Feedback is the structured commentary attached to an essay score.
// Every field defaults to empty rather than absent so consumers never
// branch on presence.
type Feedback struct {
	Summary            string            `json:"summary"`
	Improvements       []string          `json:"improvements"`
	Attention          []string          `json:"attention"`
	Congratulations    []string          `json:"congratulations"`
	CompetencyFeedback map[string]string `json:"competencyFeedback"`
}

// EnsureDefaults fills nil slices and maps so the struct serializes to
// empty values instead of null.
func (f *Feedback) EnsureDefaults() {
	if f.Improvements == nil {
		f.Improvements = []string{}
	}
	if f.Attention == nil {
		f.Attention = []string{}
	}
	if f.Congratulations == nil {
		f.Congratulations = []string{}
	}
	if f.CompetencyFeedback == nil {
		f.CompetencyFeedback = map[string]string{}
	}
}

// EmptyFeedback returns the zero-value feedback structure.
func EmptyFeedback() *Feedback {
	f := &Feedback{}
	f.EnsureDefaults()
	return f
}
