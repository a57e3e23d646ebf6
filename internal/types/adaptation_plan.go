package types

// AdaptationPlan is the structured output of the generator. The shape
// mirrors the JSON schema the model is constrained to; top-level
// fields are mandatory, nested detail is best-effort.
type AdaptationPlan struct {
	Version         string            `json:"version"`
	Student         PlanStudent       `json:"student"`
	AdaptedActivity AdaptedActivity   `json:"adapted_activity"`
	AdultGuidance   AdultGuidance     `json:"adult_guidance"`
	Accessibility   PlanAccessibility `json:"accessibility"`
	QuickAssessment QuickAssessment   `json:"quick_assessment"`
}

type PlanStudent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AdaptedActivity struct {
	Title           string         `json:"title"`
	RewrittenPrompt string         `json:"rewritten_prompt"`
	Objectives      []string       `json:"objectives"`
	Items           []PlanItem     `json:"items"`
	Strategies      []PlanStrategy `json:"strategies"`
}

// Item types the generator may emit.
const (
	PlanItemMultipleChoice = "multiple_choice"
	PlanItemShortAnswer    = "short_answer"
	PlanItemMatching       = "matching"
	PlanItemSequencing     = "sequencing"
	PlanItemColoring       = "coloring"
	PlanItemCutting        = "cutting"
)

type PlanItem struct {
	Order                    int      `json:"order"`
	Type                     string   `json:"type"`
	Statement                string   `json:"statement"`
	SupportHint              string   `json:"support_hint,omitempty"`
	Materials                []string `json:"materials,omitempty"`
	VisualAids               []string `json:"visual_aids,omitempty"`
	StepByStep               []string `json:"step_by_step,omitempty"`
	SuggestedDurationSeconds int      `json:"suggested_duration_seconds,omitempty"`
}

// PlanStrategy records one applied strategy and why it was chosen.
// StrategyID refers back to the knowledge entry when the strategy came
// from retrieval.
type PlanStrategy struct {
	StrategyID   string `json:"strategy_id"`
	StrategyName string `json:"strategy_name"`
	Rationale    string `json:"rationale"`
}

type AdultGuidance struct {
	HowToPresent          []string `json:"how_to_present"`
	CommonMistakesToAvoid []string `json:"common_mistakes_to_avoid"`
	SuccessSignals        []string `json:"success_signals"`
}

type PlanAccessibility struct {
	FontScale           float64  `json:"font_scale"`
	UppercaseFont       bool     `json:"uppercase_font"`
	LineSpacing         float64  `json:"line_spacing"`
	HighContrast        bool     `json:"high_contrast"`
	ColorUse            string   `json:"color_use"`
	ReducedStimuli      bool     `json:"reduced_stimuli"`
	VisualSupports      bool     `json:"visual_supports"`
	ChunkedSteps        bool     `json:"chunked_steps"`
	SensoryAlternatives []string `json:"sensory_alternatives,omitempty"`
}

// DefaultAssessmentRubric is the fixed 0-2 scale dimensions every plan
// asks the adult to score.
var DefaultAssessmentRubric = []string{"engagement", "comprehension", "autonomy"}

type QuickAssessment struct {
	Rubric             []string `json:"rubric"`
	ObservableCriteria []string `json:"observable_criteria"`
}

// RunArtifacts is the Artifacts payload stored on a ready run: storage
// keys of the rendered outputs.
type RunArtifacts struct {
	HTMLKey string `json:"html_key"`
	TextKey string `json:"text_key"`
	PNGKey  string `json:"png_key,omitempty"`
}

// PlanPreview is the summary returned with a terminal Ready status.
type PlanPreview struct {
	ObjectiveCount int      `json:"objective_count"`
	ItemCount      int      `json:"item_count"`
	Strategies     []string `json:"strategies"`
}
