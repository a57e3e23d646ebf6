package services

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderHTMLContainsStudentAndItems(t *testing.T) {
	renderer := NewRenderer(nil)
	plan := FallbackPlan(testStudent())
	html, err := renderer.RenderHTML(plan)
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	out := string(html)
	if !strings.Contains(out, "Miguel Santos") {
		t.Fatal("html artifact missing student name")
	}
	if !strings.Contains(out, plan.AdaptedActivity.Items[0].Statement) {
		t.Fatal("html artifact missing item statement")
	}
	// Accessibility block drives the styling.
	if !strings.Contains(out, "font-size: 22px") {
		t.Fatalf("expected font scale 1.4 to yield 22px, got: %s", out[:200])
	}
}

func TestRenderHTMLEscapesContent(t *testing.T) {
	renderer := NewRenderer(nil)
	plan := FallbackPlan(testStudent())
	plan.AdaptedActivity.Items[0].Statement = `<script>alert("x")</script>`
	html, err := renderer.RenderHTML(plan)
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if strings.Contains(string(html), "<script>") {
		t.Fatal("html artifact did not escape markup in plan content")
	}
}

func TestRenderTextTranscript(t *testing.T) {
	renderer := NewRenderer(nil)
	plan := FallbackPlan(testStudent())
	text, err := renderer.RenderText(plan)
	if err != nil {
		t.Fatalf("RenderText() error = %v", err)
	}
	out := string(text)
	for _, want := range []string{"Miguel Santos", "OBJECTIVES", "ACTIVITY", "GUIDANCE FOR THE ADULT", "QUICK ASSESSMENT"} {
		if !strings.Contains(out, want) {
			t.Fatalf("text artifact missing %q:\n%s", want, out)
		}
	}
}

func TestRenderIncludesAssessmentAndStrategies(t *testing.T) {
	renderer := NewRenderer(nil)
	plan := FallbackPlan(testStudent())

	html, err := renderer.RenderHTML(plan)
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	for _, want := range []string{
		"Quick assessment", "engagement", "comprehension", "autonomy",
		"Applied strategies", plan.AdaptedActivity.Strategies[0].StrategyName,
		"How to present", "Common mistakes to avoid", "Signs of success",
		plan.AdaptedActivity.RewrittenPrompt,
	} {
		if !strings.Contains(string(html), want) {
			t.Fatalf("html artifact missing %q", want)
		}
	}

	text, err := renderer.RenderText(plan)
	if err != nil {
		t.Fatalf("RenderText() error = %v", err)
	}
	for _, want := range []string{"APPLIED STRATEGIES", "engagement", "Signs of success"} {
		if !strings.Contains(string(text), want) {
			t.Fatalf("text artifact missing %q:\n%s", want, text)
		}
	}
}

func TestRenderPNGProducesImage(t *testing.T) {
	renderer := NewRenderer(nil)
	plan := FallbackPlan(testStudent())
	data, err := renderer.RenderPNG(plan)
	if err != nil {
		t.Fatalf("RenderPNG() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatal("png artifact does not start with PNG magic bytes")
	}
}
