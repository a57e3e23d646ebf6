package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/repos"
	"github.com/yungbote/adapta-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

type fakeOcr struct {
	text string
	err  error
}

func (f *fakeOcr) Name() string { return "fake" }

func (f *fakeOcr) RecognizePNG(ctx context.Context, pngData []byte) (*OcrResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	words := parseWordsFromText(f.text)
	return &OcrResult{Text: f.text, AvgConfidence: avgConfidence(words), Words: words}, nil
}

func parseWordsFromText(text string) []OcrWord {
	var words []OcrWord
	for i, token := range strings.Fields(text) {
		words = append(words, OcrWord{Text: token, Confidence: 90, Left: i * 50, Top: 10, Width: 40, Height: 30, Block: 1, Line: 1})
	}
	return words
}

type failingRasterizer struct{}

func (failingRasterizer) Rasterize(ctx context.Context, data []byte) ([]PageImage, error) {
	return nil, fmt.Errorf("%w: corrupt document", ErrRasterizationFailed)
}

// countingGenerator records whether generation was attempted and what
// inputs it received.
type countingGenerator struct {
	inner      PlanGenerator
	calls      int
	lastLayout string
}

func (g *countingGenerator) Generate(ctx context.Context, student *types.Student, activityText, layoutHint string, matches []RetrievedEntry) (*types.AdaptationPlan, error) {
	g.calls++
	g.lastLayout = layoutHint
	return g.inner.Generate(ctx, student, activityText, layoutHint, matches)
}

type pipelineHarness struct {
	db           *gorm.DB
	svc          *AdaptationService
	storage      Storage
	runRepo      repos.AdaptationRunRepo
	pageRepo     repos.ActivityPageRepo
	ocrRepo      repos.OcrExtractionRepo
	activityRepo repos.ActivityRepo
	studentRepo  repos.StudentRepo
	generator    *countingGenerator
	student      *types.Student
	activity     *types.Activity
}

// newPipelineHarness wires the full pipeline against sqlite, local
// storage and fake providers, with one student and one uploaded
// activity in place.
func newPipelineHarness(t *testing.T, rasterizer Rasterizer, ocr OcrProvider, upload []byte, indexKnowledge bool) *pipelineHarness {
	t.Helper()
	gormDB := testDB(t)
	ctx := context.Background()

	storage, err := NewLocalStorage(nil, t.TempDir())
	if err != nil {
		t.Fatalf("failed to init storage: %v", err)
	}
	runRepo := repos.NewAdaptationRunRepo(gormDB, nil)
	activityRepo := repos.NewActivityRepo(gormDB, nil)
	studentRepo := repos.NewStudentRepo(gormDB, nil)
	pageRepo := repos.NewActivityPageRepo(gormDB, nil)
	ocrRepo := repos.NewOcrExtractionRepo(gormDB, nil)
	embeddingRepo := repos.NewEmbeddingRepo(gormDB, nil)

	embedder := NewLocalEmbedder(128)
	store := testKnowledgeStore(t)
	embeddings := NewEmbeddingService(embeddingRepo, embedder, nil)
	if indexKnowledge {
		if err := embeddings.ReindexKnowledge(ctx, store); err != nil {
			t.Fatalf("failed to index knowledge: %v", err)
		}
	}
	generator := &countingGenerator{inner: &heuristicGenerator{}}

	svc := NewAdaptationService(AdaptationDeps{
		DB:           gormDB,
		RunRepo:      runRepo,
		ActivityRepo: activityRepo,
		StudentRepo:  studentRepo,
		PageRepo:     pageRepo,
		OcrRepo:      ocrRepo,
		Storage:      storage,
		Rasterizer:   rasterizer,
		Ocr:          ocr,
		Embeddings:   embeddings,
		Retriever:    NewRetriever(embeddingRepo, embedder, store, nil),
		Generator:    generator,
		Renderer:     NewRenderer(nil),
		Log:          testLogger(t),
	})

	student := testStudent()
	student.UserID = uuid.New()
	if err := studentRepo.Create(ctx, student, nil); err != nil {
		t.Fatalf("failed to create student: %v", err)
	}
	activity := &types.Activity{
		ID:           uuid.New(),
		StudentID:    student.ID,
		Title:        "math worksheet",
		OriginalName: "math.png",
		MimeType:     "image/png",
		UploadKey:    "uploads/math.png",
	}
	if err := storage.Put(ctx, activity.UploadKey, upload, "image/png"); err != nil {
		t.Fatalf("failed to store upload: %v", err)
	}
	if err := activityRepo.Create(ctx, activity, nil); err != nil {
		t.Fatalf("failed to create activity: %v", err)
	}

	return &pipelineHarness{
		db:           gormDB,
		svc:          svc,
		storage:      storage,
		runRepo:      runRepo,
		pageRepo:     pageRepo,
		ocrRepo:      ocrRepo,
		activityRepo: activityRepo,
		studentRepo:  studentRepo,
		generator:    generator,
		student:      student,
		activity:     activity,
	}
}

func (h *pipelineHarness) enqueueAndProcess(t *testing.T) *types.AdaptationRun {
	t.Helper()
	ctx := context.Background()
	run, err := h.svc.Enqueue(ctx, h.activity.ID, h.student.ID, h.student.UserID)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := h.svc.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext() error = %v", err)
	}
	final, err := h.runRepo.GetByID(ctx, run.ID, nil)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	return final
}

func TestPipelineLegibleImageReachesReady(t *testing.T) {
	ocr := &fakeOcr{text: "2 + 3 = ?"}
	h := newPipelineHarness(t, NewRasterizer(nil), ocr, tinyPNG(t, 100, 60), true)
	ctx := context.Background()

	run := h.enqueueAndProcess(t)
	if run.Status != types.RunStatusReady {
		t.Fatalf("run status = %q (error %q), want ready", run.Status, run.Error)
	}

	pages, err := h.pageRepo.ListByActivityID(ctx, h.activity.ID, nil)
	if err != nil || len(pages) != 1 {
		t.Fatalf("pages = %d (err %v), want 1", len(pages), err)
	}
	extraction, err := h.ocrRepo.GetByPageID(ctx, pages[0].ID, nil)
	if err != nil {
		t.Fatalf("extraction missing: %v", err)
	}
	if extraction.RawText != "2 + 3 = ?" || extraction.AvgConfidence != 90 {
		t.Fatalf("unexpected extraction: %+v", extraction)
	}

	var artifacts types.RunArtifacts
	if err := json.Unmarshal(run.Artifacts, &artifacts); err != nil {
		t.Fatalf("failed to decode artifacts: %v", err)
	}
	html, err := h.storage.Get(ctx, artifacts.HTMLKey)
	if err != nil {
		t.Fatalf("html artifact unreadable: %v", err)
	}
	if !strings.Contains(string(html), h.student.FullName) {
		t.Fatal("html artifact does not contain the student's name")
	}
	text, err := h.storage.Get(ctx, artifacts.TextKey)
	if err != nil {
		t.Fatalf("text artifact unreadable: %v", err)
	}
	if !strings.Contains(string(text), "Miguel") {
		t.Fatal("text artifact does not contain the student's name")
	}
	if h.generator.calls != 1 {
		t.Fatalf("generator called %d times, want 1", h.generator.calls)
	}
	if !strings.Contains(h.generator.lastLayout, "page 1:") {
		t.Fatalf("generator did not receive the layout summary: %q", h.generator.lastLayout)
	}

	// The terminal status is mirrored onto the student row.
	student, err := h.studentRepo.GetByID(ctx, h.student.ID, nil)
	if err != nil {
		t.Fatalf("failed to reload student: %v", err)
	}
	if student.ActivityStatus != types.RunStatusReady {
		t.Fatalf("student activity status = %q, want ready", student.ActivityStatus)
	}
	if student.LastAdaptationAt == nil {
		t.Fatal("student last adaptation time not set")
	}
}

func TestPipelineCorruptFileFailsAtRasterization(t *testing.T) {
	h := newPipelineHarness(t, failingRasterizer{}, &fakeOcr{text: "ignored"}, []byte("garbage"), true)
	ctx := context.Background()

	run := h.enqueueAndProcess(t)
	if run.Status != types.RunStatusFailed {
		t.Fatalf("run status = %q, want failed", run.Status)
	}
	if !strings.HasPrefix(run.Error, "rasterizing:") {
		t.Fatalf("error not attributed to rasterization: %q", run.Error)
	}
	pages, err := h.pageRepo.ListByActivityID(ctx, h.activity.ID, nil)
	if err != nil {
		t.Fatalf("ListByActivityID() error = %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("corrupt upload produced %d pages, want 0", len(pages))
	}
	if h.generator.calls != 0 {
		t.Fatal("generator must not run after rasterization failure")
	}
	student, err := h.studentRepo.GetByID(ctx, h.student.ID, nil)
	if err != nil {
		t.Fatalf("failed to reload student: %v", err)
	}
	if student.ActivityStatus != types.RunStatusFailed {
		t.Fatalf("student activity status = %q, want failed", student.ActivityStatus)
	}
	if student.LastAdaptationAt != nil {
		t.Fatal("failed run must not stamp a last adaptation time")
	}
}

func TestPipelineEmptyTextFailsWithoutGeneration(t *testing.T) {
	h := newPipelineHarness(t, NewRasterizer(nil), &fakeOcr{text: "   "}, tinyPNG(t, 80, 40), true)

	run := h.enqueueAndProcess(t)
	if run.Status != types.RunStatusFailed {
		t.Fatalf("run status = %q, want failed", run.Status)
	}
	if !strings.HasPrefix(run.Error, "extracting_text:") {
		t.Fatalf("error not attributed to text extraction: %q", run.Error)
	}
	if !strings.Contains(run.Error, "no readable text") {
		t.Fatalf("error message not mapped for clients: %q", run.Error)
	}
	if h.generator.calls != 0 {
		t.Fatal("generator must not run when no text was extracted")
	}
}

func TestPipelineEmptyRetrievalStillReachesReady(t *testing.T) {
	// No knowledge indexed at all: retrieval returns an empty set and
	// generation proceeds without grounding.
	h := newPipelineHarness(t, NewRasterizer(nil), &fakeOcr{text: "draw a circle"}, tinyPNG(t, 80, 40), false)

	run := h.enqueueAndProcess(t)
	if run.Status != types.RunStatusReady {
		t.Fatalf("run status = %q (error %q), want ready", run.Status, run.Error)
	}
	var plan types.AdaptationPlan
	if err := json.Unmarshal(run.Plan, &plan); err != nil {
		t.Fatalf("failed to decode plan: %v", err)
	}
	if err := ValidatePlan(&plan); err != nil {
		t.Fatalf("persisted plan invalid: %v", err)
	}
}

func TestReprocessKeepsOnePageAndExtraction(t *testing.T) {
	h := newPipelineHarness(t, NewRasterizer(nil), &fakeOcr{text: "2 + 3 = ?"}, tinyPNG(t, 100, 60), true)
	ctx := context.Background()

	first := h.enqueueAndProcess(t)
	if first.Status != types.RunStatusReady {
		t.Fatalf("first run status = %q (error %q), want ready", first.Status, first.Error)
	}
	second := h.enqueueAndProcess(t)
	if second.Status != types.RunStatusReady {
		t.Fatalf("second run status = %q (error %q), want ready", second.Status, second.Error)
	}

	// Re-running the pipeline over the same activity replaces the page
	// and extraction rows in place instead of orphaning duplicates.
	pages, err := h.pageRepo.ListByActivityID(ctx, h.activity.ID, nil)
	if err != nil || len(pages) != 1 {
		t.Fatalf("pages after reprocess = %d (err %v), want 1", len(pages), err)
	}
	var extractionCount int64
	if err := h.db.Model(&types.OcrExtraction{}).Count(&extractionCount).Error; err != nil {
		t.Fatalf("failed to count extractions: %v", err)
	}
	if extractionCount != 1 {
		t.Fatalf("extractions after reprocess = %d, want 1", extractionCount)
	}
	extraction, err := h.ocrRepo.GetByPageID(ctx, pages[0].ID, nil)
	if err != nil {
		t.Fatalf("extraction missing for surviving page: %v", err)
	}
	if extraction.ActivityPageID != pages[0].ID {
		t.Fatalf("extraction points at page %s, want %s", extraction.ActivityPageID, pages[0].ID)
	}
	var ocrEmbeddings int64
	if err := h.db.Model(&types.EmbeddingRecord{}).
		Where("source_kind = ?", types.EmbeddingSourceOcr).
		Count(&ocrEmbeddings).Error; err != nil {
		t.Fatalf("failed to count ocr embeddings: %v", err)
	}
	if ocrEmbeddings != 1 {
		t.Fatalf("ocr embeddings after reprocess = %d, want 1", ocrEmbeddings)
	}
}

func TestRetrievalQueryCombinesProfileAndText(t *testing.T) {
	student := testStudent()
	longText := strings.Repeat("count the dinosaurs ", 30)
	query := retrievalQuery(student, longText)

	if !strings.HasPrefix(query, "Miguel Santos") {
		t.Fatalf("query does not start with the student name: %q", query)
	}
	for _, want := range []string{"autism", "ADHD", "count the dinosaurs"} {
		if !strings.Contains(query, want) {
			t.Fatalf("query missing %q: %q", want, query)
		}
	}
	// Only the opening of the text participates.
	if strings.Contains(query, longText) {
		t.Fatal("query carries the full activity text instead of a truncated slice")
	}

	// Blank text still yields a profile-only query.
	if got := retrievalQuery(student, "   "); !strings.Contains(got, "Miguel Santos") || strings.HasSuffix(got, " ") {
		t.Fatalf("profile-only query malformed: %q", got)
	}
}

func TestEnqueueAttachesToActiveRun(t *testing.T) {
	h := newPipelineHarness(t, NewRasterizer(nil), &fakeOcr{text: "2 + 2"}, tinyPNG(t, 80, 40), true)
	ctx := context.Background()

	first, err := h.svc.Enqueue(ctx, h.activity.ID, h.student.ID, h.student.UserID)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	second, err := h.svc.Enqueue(ctx, h.activity.ID, h.student.ID, h.student.UserID)
	if err != nil {
		t.Fatalf("second Enqueue() error = %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("duplicate enqueue created a second active run")
	}

	if err := h.svc.ProcessNext(ctx); err != nil {
		t.Fatalf("ProcessNext() error = %v", err)
	}
	// After the run is terminal a new enqueue starts a fresh run.
	third, err := h.svc.Enqueue(ctx, h.activity.ID, h.student.ID, h.student.UserID)
	if err != nil {
		t.Fatalf("third Enqueue() error = %v", err)
	}
	if third.ID == first.ID {
		t.Fatal("enqueue after terminal run did not create a new run")
	}
}
