package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/repos"
	"github.com/yungbote/adapta-backend/internal/types"
	"github.com/yungbote/adapta-backend/internal/utils"
)

// AdaptationService owns the async pipeline: it enqueues runs, claims
// them from the durable queue and walks each run through the stage
// machine until it is ready or failed.
type AdaptationService struct {
	db           *gorm.DB
	runRepo      repos.AdaptationRunRepo
	activityRepo repos.ActivityRepo
	studentRepo  repos.StudentRepo
	pageRepo     repos.ActivityPageRepo
	ocrRepo      repos.OcrExtractionRepo
	storage      Storage
	rasterizer   Rasterizer
	ocr          OcrProvider
	embeddings   *EmbeddingService
	retriever    *Retriever
	generator    PlanGenerator
	renderer     *Renderer
	log          *logger.Logger

	pollInterval   time.Duration
	heartbeatEvery time.Duration
	staleAfter     time.Duration
	ocrParallel    int64
	topK           int
}

type AdaptationDeps struct {
	DB           *gorm.DB
	RunRepo      repos.AdaptationRunRepo
	ActivityRepo repos.ActivityRepo
	StudentRepo  repos.StudentRepo
	PageRepo     repos.ActivityPageRepo
	OcrRepo      repos.OcrExtractionRepo
	Storage      Storage
	Rasterizer   Rasterizer
	Ocr          OcrProvider
	Embeddings   *EmbeddingService
	Retriever    *Retriever
	Generator    PlanGenerator
	Renderer     *Renderer
	Log          *logger.Logger
}

func NewAdaptationService(deps AdaptationDeps) *AdaptationService {
	log := deps.Log
	return &AdaptationService{
		db:           deps.DB,
		runRepo:      deps.RunRepo,
		activityRepo: deps.ActivityRepo,
		studentRepo:  deps.StudentRepo,
		pageRepo:     deps.PageRepo,
		ocrRepo:      deps.OcrRepo,
		storage:      deps.Storage,
		rasterizer:   deps.Rasterizer,
		ocr:          deps.Ocr,
		embeddings:   deps.Embeddings,
		retriever:    deps.Retriever,
		generator:    deps.Generator,
		renderer:     deps.Renderer,
		log:          log,

		pollInterval:   time.Duration(utils.GetEnvAsInt(log, "WORKER_POLL_SECONDS", 2)) * time.Second,
		heartbeatEvery: time.Duration(utils.GetEnvAsInt(log, "WORKER_HEARTBEAT_SECONDS", 15)) * time.Second,
		staleAfter:     time.Duration(utils.GetEnvAsInt(log, "WORKER_STALE_SECONDS", 120)) * time.Second,
		ocrParallel:    int64(utils.GetEnvAsInt(log, "OCR_PARALLELISM", 3)),
		topK:           utils.GetEnvAsInt(log, "RETRIEVAL_TOP_K", 5),
	}
}

// Enqueue records a new run for the activity. If the activity already
// has a run in flight the caller is attached to that run instead of
// queueing a duplicate.
func (s *AdaptationService) Enqueue(ctx context.Context, activityID, studentID, userID uuid.UUID) (*types.AdaptationRun, error) {
	if existing, err := s.runRepo.GetActiveByActivityID(ctx, activityID, nil); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check active runs: %w", err)
	}
	run := &types.AdaptationRun{
		ActivityID: activityID,
		StudentID:  studentID,
		UserID:     userID,
		Status:     types.RunStatusPending,
	}
	if err := s.runRepo.Create(ctx, run, nil); err != nil {
		return nil, fmt.Errorf("failed to enqueue run: %w", err)
	}
	s.log.Info("Adaptation run enqueued", "run_id", run.ID.String(), "student_id", studentID.String())
	return run, nil
}

// StartWorker launches the claim loop. It returns immediately; the
// loop stops when ctx is cancelled.
func (s *AdaptationService) StartWorker(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		sweep := time.NewTicker(s.staleAfter)
		defer sweep.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweep.C:
				if n, err := s.runRepo.FailStale(ctx, s.staleAfter); err != nil {
					s.log.Warn("Stale run sweep failed", "error", err)
				} else if n > 0 {
					s.log.Warn("Failed stale runs", "count", n)
				}
			case <-ticker.C:
				run, err := s.runRepo.ClaimNextRunnable(ctx)
				if err != nil {
					if !errors.Is(err, gorm.ErrRecordNotFound) {
						s.log.Warn("Failed to claim run", "error", err)
					}
					continue
				}
				s.processRun(ctx, run)
			}
		}
	}()
}

// ProcessNext claims and processes a single run. Exposed for tests
// and one-shot invocations; returns gorm.ErrRecordNotFound when the
// queue is empty.
func (s *AdaptationService) ProcessNext(ctx context.Context) error {
	run, err := s.runRepo.ClaimNextRunnable(ctx)
	if err != nil {
		return err
	}
	s.processRun(ctx, run)
	return nil
}

// processRun walks one claimed run through the stage machine. The run
// arrives already in rasterizing. Every transition is persisted before
// the stage's work product is needed by the next stage, and any
// unrecoverable error flips the run to failed with a short
// stage-attributed message.
func (s *AdaptationService) processRun(ctx context.Context, run *types.AdaptationRun) {
	log := s.log.With("run_id", run.ID.String(), "activity_id", run.ActivityID.String())

	stopHeartbeat := s.startHeartbeat(ctx, run.ID)
	defer stopHeartbeat()

	fail := func(stage string, err error) {
		log.Error("Run failed", "stage", stage, "error", err)
		message := fmt.Sprintf("%s: %s", stage, publicErrorMessage(err))
		markErr := s.runRepo.MarkFailed(ctx, run.ID, message, nil)
		if markErr != nil && !errors.Is(markErr, repos.ErrStaleTransition) {
			log.Error("Failed to mark run failed", "error", markErr)
		}
		if markErr == nil {
			s.mirrorStudent(ctx, log, run.StudentID, types.RunStatusFailed)
		}
	}
	advance := func(from, to string, extra map[string]interface{}) bool {
		if err := s.runRepo.AdvanceStatus(ctx, run.ID, from, to, extra, nil); err != nil {
			if errors.Is(err, repos.ErrStaleTransition) {
				log.Warn("Lost run ownership, abandoning", "from", from, "to", to)
			} else {
				log.Error("Failed to advance run", "from", from, "to", to, "error", err)
			}
			return false
		}
		return true
	}

	activity, err := s.activityRepo.GetByID(ctx, run.ActivityID, nil)
	if err != nil {
		fail("rasterizing", fmt.Errorf("activity missing: %w", err))
		return
	}
	student, err := s.studentRepo.GetByID(ctx, run.StudentID, nil)
	if err != nil {
		fail("rasterizing", fmt.Errorf("student missing: %w", err))
		return
	}

	// Stage: rasterizing.
	pages, err := s.rasterize(ctx, activity)
	if err != nil {
		fail("rasterizing", err)
		return
	}
	if !advance(types.RunStatusRasterizing, types.RunStatusExtractingText, nil) {
		return
	}

	// Stage: extracting_text.
	activityText, layoutHint, err := s.extractText(ctx, log, pages)
	if err != nil {
		fail("extracting_text", err)
		return
	}
	if !advance(types.RunStatusExtractingText, types.RunStatusGenerating, nil) {
		return
	}

	// Stage: generating. Retrieval misses degrade to an empty set; a
	// broken or malformed generation falls back to the conservative
	// plan rather than failing the run.
	matches, err := s.retriever.Query(ctx, retrievalQuery(student, activityText), s.topK, []string{types.EmbeddingSourceKnowledge})
	if err != nil {
		log.Warn("Retrieval failed, generating without grounding", "error", err)
		matches = nil
	}
	plan, err := s.generator.Generate(ctx, student, activityText, layoutHint, matches)
	if err != nil {
		log.Warn("Generation failed, using fallback plan", "error", err)
		plan = FallbackPlan(student)
	}
	if err := ValidatePlan(plan); err != nil {
		log.Warn("Generated plan invalid, using fallback plan", "error", err)
		plan = FallbackPlan(student)
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		fail("generating", fmt.Errorf("failed to encode plan: %w", err))
		return
	}
	if !advance(types.RunStatusGenerating, types.RunStatusRendering, map[string]interface{}{
		"plan": datatypes.JSON(planJSON),
	}) {
		return
	}

	// Stage: rendering. The only stage left with no fallback.
	artifacts, err := s.render(ctx, run, plan)
	if err != nil {
		fail("rendering", err)
		return
	}
	artifactsJSON, err := json.Marshal(artifacts)
	if err != nil {
		fail("rendering", fmt.Errorf("failed to encode artifacts: %w", err))
		return
	}
	if !advance(types.RunStatusRendering, types.RunStatusReady, map[string]interface{}{
		"artifacts": datatypes.JSON(artifactsJSON),
		"error":     "",
	}) {
		return
	}
	s.mirrorStudent(ctx, log, run.StudentID, types.RunStatusReady)
	log.Info("Adaptation run ready", "pages", len(pages))
}

// mirrorStudent copies the terminal run status onto the student row so
// profile listings show it without joining runs. Ready also stamps the
// last adaptation time.
func (s *AdaptationService) mirrorStudent(ctx context.Context, log *logger.Logger, studentID uuid.UUID, status string) {
	fields := map[string]interface{}{"activity_status": status}
	if status == types.RunStatusReady {
		fields["last_adaptation_at"] = time.Now().UTC()
	}
	if err := s.studentRepo.UpdateFields(ctx, studentID, fields, nil); err != nil {
		log.Warn("Failed to mirror run status onto student", "error", err)
	}
}

// retrievalQuery builds the composite retrieval query from the student
// identity, their diagnoses and the opening of the extracted text.
func retrievalQuery(student *types.Student, activityText string) string {
	parts := []string{student.FullName}
	parts = append(parts, decodeStringList(student.Diagnoses)...)
	if text := truncateRunes(strings.TrimSpace(activityText), 200); text != "" {
		parts = append(parts, text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (s *AdaptationService) startHeartbeat(ctx context.Context, runID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.runRepo.Heartbeat(ctx, runID); err != nil {
					s.log.Warn("Heartbeat failed", "run_id", runID.String(), "error", err)
				}
			}
		}
	}()
	var once bool
	return func() {
		if !once {
			once = true
			close(done)
		}
	}
}

// rasterize converts the original upload into stored page images and
// page rows, returning the pages in order.
func (s *AdaptationService) rasterize(ctx context.Context, activity *types.Activity) ([]types.ActivityPage, error) {
	original, err := s.storage.Get(ctx, activity.UploadKey)
	if err != nil {
		return nil, fmt.Errorf("%w: original upload unavailable: %v", ErrRasterizationFailed, err)
	}
	images, err := s.rasterizer.Rasterize(ctx, original)
	if err != nil {
		return nil, err
	}
	pages := make([]types.ActivityPage, 0, len(images))
	for _, img := range images {
		key := fmt.Sprintf("activities/%s/pages/page-%d.png", activity.ID, img.Number)
		if err := s.storage.Put(ctx, key, img.PNG, "image/png"); err != nil {
			return nil, fmt.Errorf("%w: failed to store page %d: %v", ErrRasterizationFailed, img.Number, err)
		}
		page := types.ActivityPage{
			ActivityID: activity.ID,
			PageNumber: img.Number,
			ImageKey:   key,
			Width:      img.Width,
			Height:     img.Height,
		}
		if err := s.pageRepo.Upsert(ctx, &page, nil); err != nil {
			return nil, fmt.Errorf("%w: failed to record page %d: %v", ErrRasterizationFailed, img.Number, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// extractText OCRs all pages with bounded parallelism and returns the
// concatenated text in page order plus a per-page layout summary for
// the generator. A single page failing is logged and skipped; every
// page failing or yielding blank text fails the stage.
func (s *AdaptationService) extractText(ctx context.Context, log *logger.Logger, pages []types.ActivityPage) (string, string, error) {
	texts := make([]string, len(pages))
	layouts := make([]string, len(pages))
	sem := semaphore.NewWeighted(s.ocrParallel)
	group, groupCtx := errgroup.WithContext(ctx)

	for i, page := range pages {
		i, page := i, page
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			pngData, err := s.storage.Get(groupCtx, page.ImageKey)
			if err != nil {
				log.Warn("Page image unavailable, skipping", "page", page.PageNumber, "error", err)
				return nil
			}
			result, err := s.ocr.RecognizePNG(groupCtx, pngData)
			if err != nil {
				log.Warn("OCR failed on page, skipping", "page", page.PageNumber, "error", err)
				return nil
			}
			layoutJSON, err := json.Marshal(result.Words)
			if err != nil {
				return fmt.Errorf("failed to encode layout for page %d: %w", page.PageNumber, err)
			}
			extraction := types.OcrExtraction{
				ActivityPageID: page.ID,
				Engine:         s.ocr.Name(),
				RawText:        result.Text,
				AvgConfidence:  result.AvgConfidence,
				Layout:         datatypes.JSON(layoutJSON),
			}
			if err := s.ocrRepo.Upsert(groupCtx, &extraction, nil); err != nil {
				return fmt.Errorf("failed to record extraction for page %d: %w", page.PageNumber, err)
			}
			if err := s.embeddings.IndexOcrExtraction(groupCtx, extraction.ID, result.Text); err != nil {
				log.Warn("Failed to index extraction", "page", page.PageNumber, "error", err)
			}
			texts[i] = result.Text
			layouts[i] = layoutSummary(page.PageNumber, result.Words)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return "", "", err
	}

	var nonEmpty []string
	for _, text := range texts {
		if strings.TrimSpace(text) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(text))
		}
	}
	if len(nonEmpty) == 0 {
		return "", "", ErrNoExtractableText
	}
	var summaries []string
	for _, layout := range layouts {
		if layout != "" {
			summaries = append(summaries, layout)
		}
	}
	return strings.Join(nonEmpty, "\n\n"), strings.Join(summaries, "\n"), nil
}

// layoutSummary condenses the word boxes of one page into a line the
// generator can reason about.
func layoutSummary(pageNumber int, words []OcrWord) string {
	if len(words) == 0 {
		return ""
	}
	blocks := make(map[int]bool)
	lines := make(map[[2]int]bool)
	for _, word := range words {
		blocks[word.Block] = true
		lines[[2]int{word.Block, word.Line}] = true
	}
	return fmt.Sprintf("page %d: %d words in %d blocks over %d lines",
		pageNumber, len(words), len(blocks), len(lines))
}

func (s *AdaptationService) render(ctx context.Context, run *types.AdaptationRun, plan *types.AdaptationPlan) (*types.RunArtifacts, error) {
	htmlData, err := s.renderer.RenderHTML(plan)
	if err != nil {
		return nil, err
	}
	textData, err := s.renderer.RenderText(plan)
	if err != nil {
		return nil, err
	}
	pngData, err := s.renderer.RenderPNG(plan)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("activities/%s/runs/%s", run.ActivityID, run.ID)
	artifacts := &types.RunArtifacts{
		HTMLKey: base + "/adapted.html",
		TextKey: base + "/adapted.txt",
		PNGKey:  base + "/adapted.png",
	}
	if err := s.storage.Put(ctx, artifacts.HTMLKey, htmlData, "text/html; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("%w: failed to store html artifact: %v", ErrRenderingFailed, err)
	}
	if err := s.storage.Put(ctx, artifacts.TextKey, textData, "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("%w: failed to store text artifact: %v", ErrRenderingFailed, err)
	}
	if err := s.storage.Put(ctx, artifacts.PNGKey, pngData, "image/png"); err != nil {
		return nil, fmt.Errorf("%w: failed to store png artifact: %v", ErrRenderingFailed, err)
	}
	return artifacts, nil
}

// publicErrorMessage maps an internal error to the short message shown
// to polling clients. Sentinels map to fixed phrasing; anything else
// is summarized without internal detail.
func publicErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "the uploaded file format is not supported"
	case errors.Is(err, ErrRasterizationFailed):
		return "the document could not be converted to pages"
	case errors.Is(err, ErrNoExtractableText):
		return "no readable text was found in the document"
	case errors.Is(err, ErrRenderingFailed):
		return "the adapted activity could not be rendered"
	default:
		return "an internal error interrupted the adaptation"
	}
}
