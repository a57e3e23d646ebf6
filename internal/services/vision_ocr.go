package services

import (
	"context"
	"fmt"
	"os"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/utils"
)

// visionOcrProvider recognizes text through the Vision API's document
// text detection. Used when local tesseract quality is insufficient.
type visionOcrProvider struct {
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
	log     *logger.Logger
}

func NewVisionOcrProvider(log *logger.Logger) (OcrProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var opts []option.ClientOption
	if credsJSON := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"); credsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credsJSON)))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &visionOcrProvider{
		client:  client,
		timeout: time.Duration(utils.GetEnvAsInt(log, "OCR_TIMEOUT_SECONDS", 60)) * time.Second,
		log:     log,
	}, nil
}

func (p *visionOcrProvider) Name() string {
	return "gcp_vision"
}

func (p *visionOcrProvider) RecognizePNG(ctx context.Context, pngData []byte) (*OcrResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: pngData},
			Features: []*visionpb.Feature{{
				Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION,
			}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return &OcrResult{}, nil
	}
	annotation := resp.Responses[0].FullTextAnnotation
	if respErr := resp.Responses[0].Error; respErr != nil {
		return nil, fmt.Errorf("vision annotate: %s", respErr.Message)
	}
	if annotation == nil {
		return &OcrResult{}, nil
	}

	words := visionWords(annotation)
	return &OcrResult{
		Text:          annotation.Text,
		AvgConfidence: avgConfidence(words),
		Words:         words,
	}, nil
}

// visionWords flattens the page/block/paragraph/word hierarchy into
// the same word list tesseract produces. Vision confidences are 0..1,
// scaled to 0..100 to match.
func visionWords(annotation *visionpb.TextAnnotation) []OcrWord {
	var words []OcrWord
	for _, page := range annotation.Pages {
		for blockIdx, block := range page.Blocks {
			for paraIdx, para := range block.Paragraphs {
				for _, word := range para.Words {
					var text string
					for _, symbol := range word.Symbols {
						text += symbol.Text
					}
					if text == "" {
						continue
					}
					left, top, width, height := boundingBox(word.BoundingBox)
					words = append(words, OcrWord{
						Text:       text,
						Confidence: float64(word.Confidence) * 100,
						Left:       left,
						Top:        top,
						Width:      width,
						Height:     height,
						Block:      blockIdx + 1,
						Line:       paraIdx + 1,
					})
				}
			}
		}
	}
	return words
}

func boundingBox(poly *visionpb.BoundingPoly) (left, top, width, height int) {
	if poly == nil || len(poly.Vertices) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY := int(poly.Vertices[0].X), int(poly.Vertices[0].Y)
	maxX, maxY := minX, minY
	for _, v := range poly.Vertices[1:] {
		x, y := int(v.X), int(v.Y)
		if x < minX {
			minX = x
		}
		if y < minY {
			minY = y
		}
		if x > maxX {
			maxX = x
		}
		if y > maxY {
			maxY = y
		}
	}
	return minX, minY, maxX - minX, maxY - minY
}
