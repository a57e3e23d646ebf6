package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/utils"
)

// OcrWord is one recognized word with its bounding box, in page pixel
// coordinates.
type OcrWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Block      int     `json:"block"`
	Line       int     `json:"line"`
}

// OcrResult is the recognition output for one page image.
type OcrResult struct {
	Text          string    `json:"text"`
	AvgConfidence float64   `json:"avg_confidence"`
	Words         []OcrWord `json:"words"`
}

// OcrProvider recognizes text in a PNG page image.
type OcrProvider interface {
	Name() string
	RecognizePNG(ctx context.Context, pngData []byte) (*OcrResult, error)
}

// NewOcrProviderFromEnv picks the engine: OCR_ENGINE=gcp_vision uses
// the Vision API, anything else runs local tesseract.
func NewOcrProviderFromEnv(log *logger.Logger) (OcrProvider, error) {
	engine := strings.ToLower(utils.GetEnv(log, "OCR_ENGINE", "tesseract"))
	if engine == "gcp_vision" {
		return NewVisionOcrProvider(log)
	}
	return NewTesseractProvider(log), nil
}

// tesseractProvider shells out to tesseract twice per page: a plain
// text pass and a TSV pass for per-word boxes and confidences.
type tesseractProvider struct {
	langs   string
	timeout time.Duration
	log     *logger.Logger
}

func NewTesseractProvider(log *logger.Logger) OcrProvider {
	return &tesseractProvider{
		langs:   utils.GetEnv(log, "OCR_LANGS", "por+eng"),
		timeout: time.Duration(utils.GetEnvAsInt(log, "OCR_TIMEOUT_SECONDS", 60)) * time.Second,
		log:     log,
	}
}

func (p *tesseractProvider) Name() string {
	return "tesseract"
}

func (p *tesseractProvider) RecognizePNG(ctx context.Context, pngData []byte) (*OcrResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	workDir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "page.png")
	if err := os.WriteFile(inputPath, pngData, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage page image: %w", err)
	}

	text, err := p.run(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	tsv, err := p.run(ctx, inputPath, "tsv")
	if err != nil {
		return nil, err
	}

	words := parseTesseractTSV(tsv)
	return &OcrResult{
		Text:          strings.TrimSpace(text),
		AvgConfidence: avgConfidence(words),
		Words:         words,
	}, nil
}

func (p *tesseractProvider) run(ctx context.Context, inputPath string, extraArgs ...string) (string, error) {
	args := []string{inputPath, "stdout", "-l", p.langs, "--oem", "1", "--psm", "3"}
	args = append(args, extraArgs...)
	cmd := exec.CommandContext(ctx, "tesseract", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(stderr.String(), 300))
	}
	return stdout.String(), nil
}

// parseTesseractTSV reads the TSV layout output. Only level-5 rows
// (words) with a non-negative confidence and non-empty text count.
func parseTesseractTSV(tsv string) []OcrWord {
	var words []OcrWord
	lines := strings.Split(tsv, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		level, err := strconv.Atoi(cols[0])
		if err != nil || level != 5 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		block, _ := strconv.Atoi(cols[2])
		lineNum, _ := strconv.Atoi(cols[4])
		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])
		words = append(words, OcrWord{
			Text:       text,
			Confidence: conf,
			Left:       left,
			Top:        top,
			Width:      width,
			Height:     height,
			Block:      block,
			Line:       lineNum,
		})
	}
	return words
}

// avgConfidence is the mean word confidence, 0 when no words were
// recognized.
func avgConfidence(words []OcrWord) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}
