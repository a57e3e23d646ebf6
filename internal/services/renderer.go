package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
)

// Renderer serializes a validated plan into the artifacts served to
// clients: a styled HTML document, a plain-text transcript and a
// printable PNG.
type Renderer struct {
	log *logger.Logger
}

func NewRenderer(log *logger.Logger) *Renderer {
	return &Renderer{log: log}
}

// Styling follows the plan's accessibility block: font scale and
// contrast come from the generator, not from fixed CSS.
var htmlTemplate = template.Must(template.New("plan").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Plan.AdaptedActivity.Title}}</title>
<style>
  body {
    font-family: Arial, Helvetica, sans-serif;
    font-size: {{.FontSize}}px;
    line-height: {{.LineHeight}};
    color: {{.TextColor}};
    background: {{.Background}};
    max-width: 800px;
    margin: 2rem auto;
    padding: 0 1rem;
  }
  h1 { font-size: 1.6em; }
  h2 { font-size: 1.2em; margin-top: 1.5em; }
  .item {
    border: 2px solid {{.TextColor}};
    border-radius: 8px;
    padding: 1em;
    margin: 1em 0;
    {{if .Uppercase}}text-transform: uppercase;{{end}}
  }
  .hint { font-style: italic; margin-top: 0.5em; }
  .steps { margin-top: 0.5em; }
  ul, ol { padding-left: 1.4em; }
</style>
</head>
<body>
<h1>{{.Plan.AdaptedActivity.Title}}</h1>
<p>Prepared for <strong>{{.Plan.Student.Name}}</strong></p>
{{if .Plan.AdaptedActivity.RewrittenPrompt}}<p>{{.Plan.AdaptedActivity.RewrittenPrompt}}</p>{{end}}

<h2>Objectives</h2>
<ul>
{{range .Plan.AdaptedActivity.Objectives}}<li>{{.}}</li>
{{end}}</ul>

<h2>Activity</h2>
{{range .Plan.AdaptedActivity.Items}}<div class="item">
<p><strong>{{.Order}}.</strong> {{.Statement}}</p>
{{if .SupportHint}}<p class="hint">{{.SupportHint}}</p>{{end}}
{{if .StepByStep}}<ol class="steps">
{{range .StepByStep}}<li>{{.}}</li>
{{end}}</ol>{{end}}
{{if .Materials}}<ul>
{{range .Materials}}<li>{{.}}</li>
{{end}}</ul>{{end}}
{{if .VisualAids}}<ul>
{{range .VisualAids}}<li>{{.}}</li>
{{end}}</ul>{{end}}
</div>
{{end}}

{{if .Plan.AdaptedActivity.Strategies}}<h2>Applied strategies</h2>
<ul>
{{range .Plan.AdaptedActivity.Strategies}}<li><strong>{{.StrategyName}}</strong>{{if .Rationale}}: {{.Rationale}}{{end}}</li>
{{end}}</ul>{{end}}

<h2>Guidance for the adult</h2>
<h3>How to present</h3>
<ul>
{{range .Plan.AdultGuidance.HowToPresent}}<li>{{.}}</li>
{{end}}</ul>
<h3>Common mistakes to avoid</h3>
<ul>
{{range .Plan.AdultGuidance.CommonMistakesToAvoid}}<li>{{.}}</li>
{{end}}</ul>
<h3>Signs of success</h3>
<ul>
{{range .Plan.AdultGuidance.SuccessSignals}}<li>{{.}}</li>
{{end}}</ul>

<h2>Quick assessment</h2>
<p>Score each dimension from 0 to 2:</p>
<ul>
{{range .Plan.QuickAssessment.Rubric}}<li>{{.}}</li>
{{end}}</ul>
{{if .Plan.QuickAssessment.ObservableCriteria}}<p>Watch for:</p>
<ul>
{{range .Plan.QuickAssessment.ObservableCriteria}}<li>{{.}}</li>
{{end}}</ul>{{end}}
</body>
</html>
`))

type htmlTemplateData struct {
	Plan       *types.AdaptationPlan
	FontSize   int
	LineHeight string
	TextColor  string
	Background string
	Uppercase  bool
}

func (r *Renderer) RenderHTML(plan *types.AdaptationPlan) ([]byte, error) {
	fontScale := plan.Accessibility.FontScale
	if fontScale <= 0 {
		fontScale = 1.0
	}
	data := htmlTemplateData{
		Plan:       plan,
		FontSize:   int(16 * fontScale),
		LineHeight: "1.5",
		TextColor:  "#333333",
		Background: "#ffffff",
		Uppercase:  plan.Accessibility.UppercaseFont,
	}
	if plan.Accessibility.HighContrast {
		data.TextColor = "#000000"
	}
	if plan.Accessibility.ReducedStimuli {
		data.Background = "#fdfdf8"
	}
	if spacing := plan.Accessibility.LineSpacing; spacing > 0 {
		data.LineHeight = fmt.Sprintf("%.1f", spacing)
	} else if plan.Accessibility.ChunkedSteps {
		data.LineHeight = "1.8"
	}
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: html: %v", ErrRenderingFailed, err)
	}
	return buf.Bytes(), nil
}

// RenderText writes the transcript used by screen readers and plain
// channels.
func (r *Renderer) RenderText(plan *types.AdaptationPlan) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", plan.AdaptedActivity.Title)
	fmt.Fprintf(&b, "Prepared for %s\n\n", plan.Student.Name)
	if plan.AdaptedActivity.RewrittenPrompt != "" {
		fmt.Fprintf(&b, "%s\n\n", plan.AdaptedActivity.RewrittenPrompt)
	}

	b.WriteString("OBJECTIVES\n")
	for _, objective := range plan.AdaptedActivity.Objectives {
		fmt.Fprintf(&b, "- %s\n", objective)
	}

	b.WriteString("\nACTIVITY\n")
	for _, item := range plan.AdaptedActivity.Items {
		fmt.Fprintf(&b, "%d. %s\n", item.Order, item.Statement)
		if item.SupportHint != "" {
			fmt.Fprintf(&b, "   Hint: %s\n", item.SupportHint)
		}
		for _, step := range item.StepByStep {
			fmt.Fprintf(&b, "   > %s\n", step)
		}
		for _, material := range item.Materials {
			fmt.Fprintf(&b, "   * %s\n", material)
		}
	}

	if len(plan.AdaptedActivity.Strategies) > 0 {
		b.WriteString("\nAPPLIED STRATEGIES\n")
		for _, strategy := range plan.AdaptedActivity.Strategies {
			fmt.Fprintf(&b, "- %s", strategy.StrategyName)
			if strategy.Rationale != "" {
				fmt.Fprintf(&b, ": %s", strategy.Rationale)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nGUIDANCE FOR THE ADULT\n")
	writeGuidanceSection(&b, "How to present", plan.AdultGuidance.HowToPresent)
	writeGuidanceSection(&b, "Common mistakes to avoid", plan.AdultGuidance.CommonMistakesToAvoid)
	writeGuidanceSection(&b, "Signs of success", plan.AdultGuidance.SuccessSignals)

	b.WriteString("\nQUICK ASSESSMENT\n")
	writeGuidanceSection(&b, "Score 0-2 on", plan.QuickAssessment.Rubric)
	writeGuidanceSection(&b, "Watch for", plan.QuickAssessment.ObservableCriteria)
	return []byte(b.String()), nil
}

func writeGuidanceSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, line := range lines {
		fmt.Fprintf(b, "- %s\n", line)
	}
}

const (
	pngWidth   = 1240
	pngHeight  = 1754
	pngMargin  = 80.0
	pngLineGap = 1.5
)

// RenderPNG draws a single printable page. Long plans get truncated
// at the page boundary; the HTML artifact is the complete rendition.
func (r *Renderer) RenderPNG(plan *types.AdaptationPlan) ([]byte, error) {
	dc := gg.NewContext(pngWidth, pngHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)

	fontScale := plan.Accessibility.FontScale
	if fontScale <= 0 {
		fontScale = 1.0
	}
	titleFace, err := goFontFace(34 * fontScale)
	if err != nil {
		return nil, fmt.Errorf("%w: png: %v", ErrRenderingFailed, err)
	}
	bodyFace, err := goFontFace(22 * fontScale)
	if err != nil {
		return nil, fmt.Errorf("%w: png: %v", ErrRenderingFailed, err)
	}

	maxWidth := float64(pngWidth) - 2*pngMargin
	y := pngMargin

	dc.SetFontFace(titleFace)
	y = drawWrapped(dc, plan.AdaptedActivity.Title, pngMargin, y, maxWidth)
	dc.SetFontFace(bodyFace)
	y = drawWrapped(dc, fmt.Sprintf("Prepared for %s", plan.Student.Name), pngMargin, y, maxWidth)
	if plan.AdaptedActivity.RewrittenPrompt != "" {
		y = drawWrapped(dc, plan.AdaptedActivity.RewrittenPrompt, pngMargin, y, maxWidth)
	}
	y += 20

	for _, item := range plan.AdaptedActivity.Items {
		y = drawWrapped(dc, fmt.Sprintf("%d. %s", item.Order, item.Statement), pngMargin, y, maxWidth)
		if item.SupportHint != "" {
			y = drawWrapped(dc, "Hint: "+item.SupportHint, pngMargin+30, y, maxWidth-30)
		}
		y += 16
		if y > float64(pngHeight)-pngMargin {
			break
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("%w: png encode: %v", ErrRenderingFailed, err)
	}
	return buf.Bytes(), nil
}

// drawWrapped renders word-wrapped text and returns the next baseline.
func drawWrapped(dc *gg.Context, text string, x, y, maxWidth float64) float64 {
	lines := dc.WordWrap(text, maxWidth)
	_, lineHeight := dc.MeasureString("M")
	for _, line := range lines {
		y += lineHeight * pngLineGap
		if y > float64(pngHeight)-pngMargin {
			return y
		}
		dc.DrawString(line, x, y)
	}
	return y
}

func goFontFace(points float64) (font.Face, error) {
	parsed, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(parsed, &truetype.Options{
		Size:    points,
		Hinting: font.HintingNone,
	}), nil
}
