package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
)

const generatorSystemPrompt = `You are a specialist in evidence-based pedagogical adaptations for students with special educational needs (autism, ADHD, dyslexia and related profiles).

INSTRUCTIONS:
- Use ONLY the provided information: STUDENT_PROFILE, ORIGINAL_ACTIVITY, DETECTED_LAYOUT and RELEVANT_KNOWLEDGE
- Do NOT invent facts that were not provided
- If important information is missing, propose safe and conservative alternatives
- Respond ONLY with valid JSON conforming to the response schema
- Focus on practical, implementable adaptations

PRINCIPLES:
1. Simplicity: reduce cognitive load
2. Clarity: use direct, concrete language
3. Structure: organize information predictably
4. Support: provide visual and tactile aids where needed
5. Autonomy: promote gradual independence`

// openAIGenerator produces the plan through a schema-constrained chat
// completion.
type openAIGenerator struct {
	client *OpenAIClient
	log    *logger.Logger
}

func (g *openAIGenerator) Generate(ctx context.Context, student *types.Student, activityText, layoutHint string, matches []RetrievedEntry) (*types.AdaptationPlan, error) {
	userPrompt, err := buildGeneratorPrompt(student, activityText, layoutHint, matches)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	raw, err := g.client.GenerateJSON(ctx, generatorSystemPrompt, userPrompt, "adaptation_plan", adaptationPlanSchema())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	var plan types.AdaptationPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("%w: model returned unparsable JSON: %v", ErrGenerationFailed, err)
	}
	// The model does not get to rename the student.
	plan.Student = types.PlanStudent{ID: student.ID.String(), Name: student.FullName}
	if plan.Version == "" {
		plan.Version = "1.0"
	}
	if len(plan.QuickAssessment.Rubric) == 0 {
		plan.QuickAssessment.Rubric = types.DefaultAssessmentRubric
	}
	return &plan, nil
}

func buildGeneratorPrompt(student *types.Student, activityText, layoutHint string, matches []RetrievedEntry) (string, error) {
	profile, err := json.MarshalIndent(student, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode student profile: %v", err)
	}
	knowledge := make([]map[string]interface{}, 0, len(matches))
	for _, match := range matches {
		item := map[string]interface{}{
			"source_kind": match.SourceKind,
			"source_id":   match.SourceID,
			"similarity":  match.Similarity,
			"content":     match.Content,
		}
		if match.Entry != nil {
			item["entry"] = match.Entry
		}
		knowledge = append(knowledge, item)
	}
	knowledgeJSON, err := json.MarshalIndent(knowledge, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode knowledge matches: %v", err)
	}
	if layoutHint == "" {
		layoutHint = "unavailable"
	}
	return fmt.Sprintf(`STUDENT_PROFILE:
%s

ORIGINAL_ACTIVITY:
%s

DETECTED_LAYOUT:
%s

RELEVANT_KNOWLEDGE:
%s

Analyze the student profile, identify the main challenges based on the relevant knowledge, and adapt the original activity. Return ONLY the filled JSON.`,
		profile, activityText, layoutHint, knowledgeJSON), nil
}

func adaptationPlanSchema() map[string]interface{} {
	stringArray := map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"version", "student", "adapted_activity", "adult_guidance", "accessibility", "quick_assessment"},
		"properties": map[string]interface{}{
			"version": map[string]interface{}{"type": "string"},
			"student": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"id", "name"},
				"properties": map[string]interface{}{
					"id":   map[string]interface{}{"type": "string"},
					"name": map[string]interface{}{"type": "string"},
				},
			},
			"adapted_activity": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"title", "rewritten_prompt", "objectives", "items", "strategies"},
				"properties": map[string]interface{}{
					"title":            map[string]interface{}{"type": "string"},
					"rewritten_prompt": map[string]interface{}{"type": "string"},
					"objectives":       stringArray,
					"strategies": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type":                 "object",
							"additionalProperties": false,
							"required":             []string{"strategy_id", "strategy_name", "rationale"},
							"properties": map[string]interface{}{
								"strategy_id":   map[string]interface{}{"type": "string"},
								"strategy_name": map[string]interface{}{"type": "string"},
								"rationale":     map[string]interface{}{"type": "string"},
							},
						},
					},
					"items": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type":                 "object",
							"additionalProperties": false,
							"required": []string{"order", "type", "statement", "support_hint", "materials",
								"visual_aids", "step_by_step", "suggested_duration_seconds"},
							"properties": map[string]interface{}{
								"order": map[string]interface{}{"type": "integer"},
								"type": map[string]interface{}{
									"type": "string",
									"enum": []string{
										types.PlanItemMultipleChoice,
										types.PlanItemShortAnswer,
										types.PlanItemMatching,
										types.PlanItemSequencing,
										types.PlanItemColoring,
										types.PlanItemCutting,
									},
								},
								"statement":                  map[string]interface{}{"type": "string"},
								"support_hint":               map[string]interface{}{"type": "string"},
								"materials":                  stringArray,
								"visual_aids":                stringArray,
								"step_by_step":               stringArray,
								"suggested_duration_seconds": map[string]interface{}{"type": "integer"},
							},
						},
					},
				},
			},
			"adult_guidance": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"how_to_present", "common_mistakes_to_avoid", "success_signals"},
				"properties": map[string]interface{}{
					"how_to_present":           stringArray,
					"common_mistakes_to_avoid": stringArray,
					"success_signals":          stringArray,
				},
			},
			"accessibility": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required": []string{"font_scale", "uppercase_font", "line_spacing", "high_contrast",
					"color_use", "reduced_stimuli", "visual_supports", "chunked_steps", "sensory_alternatives"},
				"properties": map[string]interface{}{
					"font_scale":           map[string]interface{}{"type": "number"},
					"uppercase_font":       map[string]interface{}{"type": "boolean"},
					"line_spacing":         map[string]interface{}{"type": "number"},
					"high_contrast":        map[string]interface{}{"type": "boolean"},
					"color_use":            map[string]interface{}{"type": "string"},
					"reduced_stimuli":      map[string]interface{}{"type": "boolean"},
					"visual_supports":      map[string]interface{}{"type": "boolean"},
					"chunked_steps":        map[string]interface{}{"type": "boolean"},
					"sensory_alternatives": stringArray,
				},
			},
			"quick_assessment": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"rubric", "observable_criteria"},
				"properties": map[string]interface{}{
					"rubric":              stringArray,
					"observable_criteria": stringArray,
				},
			},
		},
	}
}
