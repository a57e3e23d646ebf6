package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/utils"
)

// PageImage is one rasterized page, PNG-encoded, numbered from 1.
type PageImage struct {
	Number int
	PNG    []byte
	Width  int
	Height int
}

// Rasterizer turns an uploaded document into an ordered sequence of
// page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte) ([]PageImage, error)
}

// popplerRasterizer shells out to pdftoppm for paginated documents and
// passes single images through as one page.
type popplerRasterizer struct {
	dpi     int
	timeout time.Duration
	log     *logger.Logger
}

func NewRasterizer(log *logger.Logger) Rasterizer {
	return &popplerRasterizer{
		dpi:     utils.GetEnvAsInt(log, "RASTER_DPI", 200),
		timeout: time.Duration(utils.GetEnvAsInt(log, "RASTER_TIMEOUT_SECONDS", 120)) * time.Second,
		log:     log,
	}
}

func (r *popplerRasterizer) Rasterize(ctx context.Context, data []byte) ([]PageImage, error) {
	switch classifyDocument(data) {
	case "pdf":
		return r.rasterizePDF(ctx, data)
	case "png":
		return singlePageFromImage(data, "png")
	case "jpeg":
		return singlePageFromImage(data, "jpeg")
	default:
		return nil, fmt.Errorf("%w: unrecognized magic bytes", ErrUnsupportedFormat)
	}
}

// classifyDocument sniffs the leading magic bytes. Extension and
// client-supplied mime type are not trusted.
func classifyDocument(data []byte) string {
	switch {
	case len(data) >= 5 && bytes.HasPrefix(data, []byte("%PDF-")):
		return "pdf"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "png"
	case len(data) >= 3 && bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return "jpeg"
	default:
		return ""
	}
}

func singlePageFromImage(data []byte, format string) ([]PageImage, error) {
	var (
		img image.Image
		err error
	)
	switch format {
	case "png":
		img, err = png.Decode(bytes.NewReader(data))
	case "jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %v", ErrRasterizationFailed, format, err)
	}
	bounds := img.Bounds()
	pngData := data
	if format != "png" {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: failed to re-encode page: %v", ErrRasterizationFailed, err)
		}
		pngData = buf.Bytes()
	}
	return []PageImage{{
		Number: 1,
		PNG:    pngData,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}}, nil
}

func (r *popplerRasterizer) rasterizePDF(ctx context.Context, data []byte) ([]PageImage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	workDir, err := os.MkdirTemp("", "raster-*")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create temp dir: %v", ErrRasterizationFailed, err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(inputPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("%w: failed to stage input: %v", ErrRasterizationFailed, err)
	}

	pageCount, err := r.pdfPageCount(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrRasterizationFailed)
	}

	prefix := filepath.Join(workDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", strconv.Itoa(r.dpi), inputPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%w: pdftoppm: %v: %s", ErrRasterizationFailed, err, truncate(string(out), 300))
	}

	pages, err := collectPageImages(workDir, "page")
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no pages", ErrRasterizationFailed)
	}
	return pages, nil
}

func (r *popplerRasterizer) pdfPageCount(ctx context.Context, path string) (int, error) {
	out, err := exec.CommandContext(ctx, "pdfinfo", path).Output()
	if err != nil {
		return 0, fmt.Errorf("%w: pdfinfo: %v", ErrRasterizationFailed, err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, "Pages:"))
		count, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%w: pdfinfo reported unparsable page count %q", ErrRasterizationFailed, value)
		}
		return count, nil
	}
	return 0, fmt.Errorf("%w: pdfinfo output missing page count", ErrRasterizationFailed)
}

// collectPageImages reads prefix-N.png outputs and orders them by the
// embedded page index. Lexical order is wrong past 9 pages (page-10
// sorts before page-2), so the suffix is parsed numerically.
func collectPageImages(dir, prefix string) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list raster output: %v", ErrRasterizationFailed, err)
	}
	var pages []PageImage
	for _, entry := range entries {
		name := entry.Name()
		number, ok := parsePageNumber(name, prefix)
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read page %q: %v", ErrRasterizationFailed, name, err)
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid page image %q: %v", ErrRasterizationFailed, name, err)
		}
		pages = append(pages, PageImage{Number: number, PNG: data, Width: cfg.Width, Height: cfg.Height})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// parsePageNumber extracts N from "<prefix>-N.png". pdftoppm may
// zero-pad the index depending on page count.
func parsePageNumber(name, prefix string) (int, bool) {
	if !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".png") {
		return 0, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, prefix+"-"), ".png")
	number, err := strconv.Atoi(raw)
	if err != nil || number < 1 {
		return 0, false
	}
	return number, true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
