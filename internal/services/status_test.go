package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/adapta-backend/internal/requestdata"
	"github.com/yungbote/adapta-backend/internal/types"
)

func (h *pipelineHarness) statusService() *StatusService {
	return NewStatusService(h.runRepo, h.activityRepo, h.studentRepo, h.storage, nil, nil)
}

func ownerContext(userID uuid.UUID) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{UserID: &userID})
}

func TestGetActivityStatusRequiresAuth(t *testing.T) {
	h := newPipelineHarness(t, NewRasterizer(nil), &fakeOcr{text: "2 + 2"}, tinyPNG(t, 80, 40), false)
	svc := h.statusService()

	if _, err := svc.GetActivityStatus(context.Background(), h.activity.ID); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("anonymous poll error = %v, want ErrNotAuthenticated", err)
	}
	// Another user's activity reads as not found, never as forbidden.
	if _, err := svc.GetActivityStatus(ownerContext(uuid.New()), h.activity.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign poll error = %v, want ErrNotFound", err)
	}
}

func TestGetActivityStatusBeforeAnyRun(t *testing.T) {
	h := newPipelineHarness(t, NewRasterizer(nil), &fakeOcr{text: "2 + 2"}, tinyPNG(t, 80, 40), false)

	status, err := h.statusService().GetActivityStatus(ownerContext(h.student.UserID), h.activity.ID)
	if err != nil {
		t.Fatalf("GetActivityStatus() error = %v", err)
	}
	if status.Status != types.RunStatusPending {
		t.Fatalf("status = %q, want pending", status.Status)
	}
	if status.ProgressPercent != 10 {
		t.Fatalf("progress = %d, want 10", status.ProgressPercent)
	}
	if status.RunID != "" || status.Artifacts != nil || status.Preview != nil {
		t.Fatalf("pending payload carries run details: %+v", status)
	}
	if status.Message == "" || status.Icon == "" {
		t.Fatal("pending payload missing message or icon")
	}
}

func TestGetActivityStatusReady(t *testing.T) {
	h := newPipelineHarness(t, NewRasterizer(nil), &fakeOcr{text: "2 + 3 = ?"}, tinyPNG(t, 80, 40), true)
	run := h.enqueueAndProcess(t)
	if run.Status != types.RunStatusReady {
		t.Fatalf("run status = %q (error %q), want ready", run.Status, run.Error)
	}

	status, err := h.statusService().GetActivityStatus(ownerContext(h.student.UserID), h.activity.ID)
	if err != nil {
		t.Fatalf("GetActivityStatus() error = %v", err)
	}
	if status.Status != types.RunStatusReady || status.ProgressPercent != 100 {
		t.Fatalf("ready payload: status=%q progress=%d", status.Status, status.ProgressPercent)
	}
	if status.RunID != run.ID.String() {
		t.Fatalf("run id = %q, want %q", status.RunID, run.ID)
	}
	if status.Artifacts == nil || status.Artifacts.HTMLKey == "" {
		t.Fatalf("ready payload missing artifacts: %+v", status.Artifacts)
	}
	if status.Preview == nil || status.Preview.ItemCount == 0 {
		t.Fatalf("ready payload missing preview: %+v", status.Preview)
	}
}

func TestGetActivityStatusFailed(t *testing.T) {
	h := newPipelineHarness(t, failingRasterizer{}, &fakeOcr{text: "ignored"}, []byte("garbage"), false)
	run := h.enqueueAndProcess(t)
	if run.Status != types.RunStatusFailed {
		t.Fatalf("run status = %q, want failed", run.Status)
	}

	status, err := h.statusService().GetActivityStatus(ownerContext(h.student.UserID), h.activity.ID)
	if err != nil {
		t.Fatalf("GetActivityStatus() error = %v", err)
	}
	if status.Status != types.RunStatusFailed || status.ProgressPercent != 0 {
		t.Fatalf("failed payload: status=%q progress=%d", status.Status, status.ProgressPercent)
	}
	if status.Error == "" || !strings.HasPrefix(status.Error, "rasterizing:") {
		t.Fatalf("failed payload error = %q", status.Error)
	}
	if strings.Contains(status.Error, "corrupt document") {
		t.Fatalf("raw internal error leaked to client: %q", status.Error)
	}
	if status.Artifacts != nil {
		t.Fatal("failed payload must not carry artifacts")
	}
}

func TestGetArtifact(t *testing.T) {
	h := newPipelineHarness(t, NewRasterizer(nil), &fakeOcr{text: "2 + 3 = ?"}, tinyPNG(t, 80, 40), true)
	svc := h.statusService()
	ctx := ownerContext(h.student.UserID)

	// Nothing is downloadable until a run is ready.
	if _, _, _, err := svc.GetArtifact(ctx, h.activity.ID, "html"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("artifact before ready error = %v, want ErrNotFound", err)
	}

	run := h.enqueueAndProcess(t)
	if run.Status != types.RunStatusReady {
		t.Fatalf("run status = %q (error %q), want ready", run.Status, run.Error)
	}

	html, contentType, filename, err := svc.GetArtifact(ctx, h.activity.ID, "")
	if err != nil {
		t.Fatalf("GetArtifact(html) error = %v", err)
	}
	if contentType != "text/html; charset=utf-8" {
		t.Fatalf("html content type = %q", contentType)
	}
	if filename != "adapted.html" {
		t.Fatalf("html download filename = %q, want adapted.html", filename)
	}
	if !strings.Contains(string(html), h.student.FullName) {
		t.Fatal("html artifact does not contain the student's name")
	}

	png, contentType, filename, err := svc.GetArtifact(ctx, h.activity.ID, "png")
	if err != nil {
		t.Fatalf("GetArtifact(png) error = %v", err)
	}
	if contentType != "image/png" {
		t.Fatalf("png content type = %q", contentType)
	}
	if filename != "adapted.png" {
		t.Fatalf("png download filename = %q, want adapted.png", filename)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("png artifact missing magic bytes")
	}

	if _, _, _, err := svc.GetArtifact(ctx, h.activity.ID, "docx"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown kind error = %v, want ErrNotFound", err)
	}
	if _, _, _, err := svc.GetArtifact(ownerContext(uuid.New()), h.activity.ID, "html"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign artifact fetch error = %v, want ErrNotFound", err)
	}
}
