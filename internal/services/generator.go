package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
	"github.com/yungbote/adapta-backend/internal/utils"
)

// PlanGenerator produces an adaptation plan from the student profile,
// the extracted activity text, a coarse layout summary of the pages
// and the retrieved knowledge entries.
type PlanGenerator interface {
	Generate(ctx context.Context, student *types.Student, activityText, layoutHint string, matches []RetrievedEntry) (*types.AdaptationPlan, error)
}

// NewPlanGeneratorFromEnv returns the model-backed generator when
// GEN_PROVIDER=openai and a key is configured, otherwise the local
// heuristic generator.
func NewPlanGeneratorFromEnv(log *logger.Logger, client *OpenAIClient) PlanGenerator {
	provider := strings.ToLower(utils.GetEnv(log, "GEN_PROVIDER", "local"))
	if provider == "openai" && client != nil && client.Configured() {
		return &openAIGenerator{client: client, log: log}
	}
	return &heuristicGenerator{log: log}
}

// ValidatePlan checks the structural contract a plan must satisfy
// before rendering: a version, at least one item with a statement,
// some adult guidance and the assessment rubric. Nested detail is
// best-effort and not enforced.
func ValidatePlan(plan *types.AdaptationPlan) error {
	if plan == nil {
		return fmt.Errorf("%w: plan is nil", ErrValidationFailed)
	}
	if plan.Version == "" {
		return fmt.Errorf("%w: missing version", ErrValidationFailed)
	}
	if len(plan.AdaptedActivity.Items) == 0 {
		return fmt.Errorf("%w: no activity items", ErrValidationFailed)
	}
	for i, item := range plan.AdaptedActivity.Items {
		if strings.TrimSpace(item.Statement) == "" {
			return fmt.Errorf("%w: item %d has an empty statement", ErrValidationFailed, i+1)
		}
	}
	guidance := len(plan.AdultGuidance.HowToPresent) +
		len(plan.AdultGuidance.CommonMistakesToAvoid) +
		len(plan.AdultGuidance.SuccessSignals)
	if guidance == 0 {
		return fmt.Errorf("%w: no adult guidance", ErrValidationFailed)
	}
	if len(plan.QuickAssessment.Rubric) == 0 {
		return fmt.Errorf("%w: missing assessment rubric", ErrValidationFailed)
	}
	return nil
}

// FallbackPlan builds a conservative plan from the student identity
// alone. It is used when generation or validation fails and is
// guaranteed to pass ValidatePlan.
func FallbackPlan(student *types.Student) *types.AdaptationPlan {
	name := firstName(student.FullName)
	return &types.AdaptationPlan{
		Version: "1.0",
		Student: types.PlanStudent{ID: student.ID.String(), Name: student.FullName},
		AdaptedActivity: types.AdaptedActivity{
			Title:           fmt.Sprintf("Adapted activity for %s", name),
			RewrittenPrompt: fmt.Sprintf("%s, read the activity together with an adult and answer one question at a time.", name),
			Objectives:      []string{"Work through the activity at a comfortable pace"},
			Items: []types.PlanItem{{
				Order:       1,
				Type:        types.PlanItemShortAnswer,
				Statement:   fmt.Sprintf("%s, read the activity together with an adult and answer one question at a time.", name),
				SupportHint: "Break the activity into small steps and confirm understanding after each one.",
				StepByStep: []string{
					"Read the question aloud together",
					"Talk about what the question asks",
					"Answer it before looking at the next one",
				},
				SuggestedDurationSeconds: 300,
			}},
			Strategies: []types.PlanStrategy{{
				StrategyID:   "adult-support-pacing",
				StrategyName: "Simplified pacing with adult support",
				Rationale:    "Conservative default when no tailored generation is available",
			}},
		},
		AdultGuidance: types.AdultGuidance{
			HowToPresent:          []string{"Present the activity in a calm, low-distraction setting"},
			CommonMistakesToAvoid: []string{"Do not rush the answers or fill them in yourself"},
			SuccessSignals:        []string{"Stays with the activity through a full question"},
		},
		Accessibility: types.PlanAccessibility{
			FontScale:           1.4,
			LineSpacing:         1.8,
			HighContrast:        true,
			ColorUse:            "few colors, strong contrast",
			ReducedStimuli:      true,
			VisualSupports:      true,
			ChunkedSteps:        true,
			SensoryAlternatives: []string{"Offer counting objects to handle while answering"},
		},
		QuickAssessment: types.QuickAssessment{
			Rubric: types.DefaultAssessmentRubric,
			ObservableCriteria: []string{
				"Engages with at least one question",
				"Asks for help instead of abandoning the task",
			},
		},
	}
}

// heuristicGenerator builds a plan from deterministic rules over the
// profile and the activity text. It keeps offline deployments and
// tests independent of any model API.
type heuristicGenerator struct {
	log *logger.Logger
}

var numberPattern = regexp.MustCompile(`\d+`)

func (g *heuristicGenerator) Generate(ctx context.Context, student *types.Student, activityText, layoutHint string, matches []RetrievedEntry) (*types.AdaptationPlan, error) {
	name := firstName(student.FullName)
	interest := primaryInterest(student.SpecialInterests)
	diagnoses := decodeStringList(student.Diagnoses)

	hasAddition := strings.Contains(activityText, "+")
	hasSubtraction := strings.Contains(activityText, "-")
	numbers := numberPattern.FindAllString(activityText, -1)
	if len(numbers) == 0 {
		numbers = []string{"2", "3", "5"}
	}

	strategies := appliedStrategies(name, interest, matches)

	var items []types.PlanItem
	switch {
	case hasAddition:
		items = additionItems(name, interest, numbers)
	case hasSubtraction:
		items = subtractionItems(name, interest, numbers)
	default:
		items = []types.PlanItem{{
			Order:       1,
			Type:        types.PlanItemShortAnswer,
			Statement:   simplifyStatement(activityText, name, interest),
			SupportHint: "Read the question aloud and point to each part while reading.",
			Materials:   []string{"Printed activity", "Counting objects", "Colored pencils"},
			StepByStep: []string{
				"Read the question aloud together",
				"Point to the part being talked about",
				"Answer one part at a time",
			},
			SuggestedDurationSeconds: 300,
		}}
	}

	objectives := []string{
		fmt.Sprintf("Connect the activity content with %s's interests", name),
		"Reduce anxiety through familiar elements",
		"Build on identified strengths",
	}
	if interest != "" {
		objectives[0] = fmt.Sprintf("Connect the activity content with %s's interest in %s", name, interest)
	}

	plan := &types.AdaptationPlan{
		Version: "1.0",
		Student: types.PlanStudent{ID: student.ID.String(), Name: student.FullName},
		AdaptedActivity: types.AdaptedActivity{
			Title:           fmt.Sprintf("Adapted activity for %s", name),
			RewrittenPrompt: simplifyStatement(activityText, name, interest),
			Objectives:      objectives,
			Items:           items,
			Strategies:      strategies,
		},
		AdultGuidance: adultGuidance(name, interest, diagnoses),
		Accessibility: types.PlanAccessibility{
			FontScale:      1.4,
			LineSpacing:    1.8,
			HighContrast:   true,
			ColorUse:       "few colors, strong contrast",
			ReducedStimuli: true,
			VisualSupports: true,
			ChunkedSteps:   true,
		},
		QuickAssessment: types.QuickAssessment{
			Rubric: types.DefaultAssessmentRubric,
			ObservableCriteria: []string{
				fmt.Sprintf("%s completes at least one item without help", name),
				"Asks for help instead of abandoning the task",
			},
		},
	}
	return plan, nil
}

// appliedStrategies turns retrieval matches into the plan's strategy
// list, each with a short rationale tied to the entry.
func appliedStrategies(name, interest string, matches []RetrievedEntry) []types.PlanStrategy {
	var strategies []types.PlanStrategy
	for _, match := range matches {
		if match.Entry == nil || match.Entry.GroupLabel == "" {
			continue
		}
		rationale := "Ranked relevant to this activity by the knowledge retriever"
		if len(match.Entry.TargetConditions) > 0 {
			rationale = fmt.Sprintf("Targets %s and ranked relevant to this activity",
				strings.Join(match.Entry.TargetConditions, ", "))
		}
		strategies = append(strategies, types.PlanStrategy{
			StrategyID:   match.Entry.ID,
			StrategyName: match.Entry.GroupLabel,
			Rationale:    rationale,
		})
		if len(strategies) == 3 {
			break
		}
	}
	if interest != "" {
		strategies = append(strategies, types.PlanStrategy{
			StrategyID:   "special-interest-bridge",
			StrategyName: fmt.Sprintf("Special interest bridge: %s", interest),
			Rationale:    fmt.Sprintf("Familiar themes lower anxiety, and %s responds to %s", name, interest),
		})
	}
	if len(strategies) == 0 {
		strategies = []types.PlanStrategy{{
			StrategyID:   "step-by-step",
			StrategyName: "Structured step-by-step presentation",
			Rationale:    "No retrieval matches were available for this activity",
		}}
	}
	return strategies
}

func additionItems(name, interest string, numbers []string) []types.PlanItem {
	if len(numbers) > 3 {
		numbers = numbers[:3]
	}
	theme := interest
	if theme == "" {
		theme = "blocks"
	}
	var items []types.PlanItem
	for i, raw := range numbers {
		first, _ := strconv.Atoi(raw)
		second := first + 1
		if i+1 < len(numbers) {
			if parsed, err := strconv.Atoi(numbers[i+1]); err == nil {
				second = parsed
			}
		}
		items = append(items, types.PlanItem{
			Order: i + 1,
			Type:  types.PlanItemShortAnswer,
			Statement: fmt.Sprintf("%s, if you have %d %s and get %d more, how many do you have in total? Show %d + %d with your materials.",
				name, first, theme, second, first, second),
			SupportHint: fmt.Sprintf("Count out %d objects, then %d more, then count everything together.", first, second),
			Materials:   []string{"Counting blocks", "Paper and pencil"},
			VisualAids:  []string{fmt.Sprintf("Row of %d objects next to a row of %d", first, second)},
			StepByStep: []string{
				fmt.Sprintf("Count out %d objects", first),
				fmt.Sprintf("Add %d more objects", second),
				"Count everything together and say the total",
			},
			SuggestedDurationSeconds: 180,
		})
	}
	return items
}

func subtractionItems(name, interest string, numbers []string) []types.PlanItem {
	theme := interest
	if theme == "" {
		theme = "blocks"
	}
	first := 5
	second := 1
	if len(numbers) > 0 {
		if parsed, err := strconv.Atoi(numbers[0]); err == nil && parsed > 1 {
			first = parsed
		}
	}
	if len(numbers) > 1 {
		if parsed, err := strconv.Atoi(numbers[1]); err == nil && parsed < first {
			second = parsed
		}
	}
	return []types.PlanItem{{
		Order: 1,
		Type:  types.PlanItemShortAnswer,
		Statement: fmt.Sprintf("%s, you have %d %s and %d go away. How many are left? Show %d - %d with your materials.",
			name, first, theme, second, first, second),
		SupportHint: fmt.Sprintf("Build a group of %d objects, remove %d, and count what remains.", first, second),
		Materials:   []string{"Counting blocks"},
		VisualAids:  []string{fmt.Sprintf("Group of %d objects with %d crossed out", first, second)},
		StepByStep: []string{
			fmt.Sprintf("Build a group of %d objects", first),
			fmt.Sprintf("Take %d away", second),
			"Count what is left and say the answer",
		},
		SuggestedDurationSeconds: 180,
	}}
}

func adultGuidance(name, interest string, diagnoses []string) types.AdultGuidance {
	present := []string{
		fmt.Sprintf("Start by connecting the activity with %s's interests", name),
		"Prepare the materials listed on each item before starting",
		fmt.Sprintf("Let %s handle concrete objects before moving to the abstract question", name),
	}
	if interest != "" {
		present[0] = fmt.Sprintf("Start by talking about %s before introducing the activity", interest)
	}
	mistakes := []string{
		"Do not rush the answers or fill them in yourself",
		"Avoid presenting every item at once",
	}
	if len(diagnoses) > 0 {
		mistakes = append(mistakes, fmt.Sprintf("Avoid long or layered instructions (%s)", strings.Join(diagnoses, ", ")))
	}
	return types.AdultGuidance{
		HowToPresent:          present,
		CommonMistakesToAvoid: mistakes,
		SuccessSignals: []string{
			fmt.Sprintf("%s stays at the table through a full item", name),
			"Answers without repeated prompting",
			"Celebrates or shows interest in a completed step",
		},
	}
}

// simplifyStatement rewrites the original text into a short direct
// instruction addressed to the student.
func simplifyStatement(text, name, interest string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		if interest != "" {
			return fmt.Sprintf("%s, let's use %s to work through this activity together, one step at a time.", name, interest)
		}
		return fmt.Sprintf("%s, let's work through this activity together, one step at a time.", name)
	}
	if short := truncateRunes(trimmed, 200); short != trimmed {
		trimmed = short + "..."
	}
	return fmt.Sprintf("%s, read this with an adult: %s", name, trimmed)
}

// truncateRunes cuts s to at most max runes, never splitting a
// multi-byte character.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func firstName(full string) string {
	fields := strings.Fields(strings.TrimSpace(full))
	if len(fields) == 0 {
		return "Student"
	}
	return fields[0]
}

func primaryInterest(interests string) string {
	first := strings.Split(interests, ",")[0]
	return strings.TrimSpace(first)
}

func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}
