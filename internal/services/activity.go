package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/repos"
	"github.com/yungbote/adapta-backend/internal/types"
)

// ActivityService handles uploads and activity lookups. An upload
// stores the original document, records the activity and enqueues an
// adaptation run in one call.
type ActivityService struct {
	activityRepo repos.ActivityRepo
	pageRepo     repos.ActivityPageRepo
	students     *StudentService
	storage      Storage
	adaptation   *AdaptationService
	log          *logger.Logger
}

func NewActivityService(activityRepo repos.ActivityRepo, pageRepo repos.ActivityPageRepo, students *StudentService, storage Storage, adaptation *AdaptationService, log *logger.Logger) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
		pageRepo:     pageRepo,
		students:     students,
		storage:      storage,
		adaptation:   adaptation,
		log:          log,
	}
}

// UploadResult pairs the created activity with the run the caller
// should poll.
type UploadResult struct {
	Activity *types.Activity      `json:"activity"`
	Run      *types.AdaptationRun `json:"run"`
}

// UploadActivity validates the format eagerly so an unsupported file
// is rejected at upload time instead of failing asynchronously.
func (s *ActivityService) UploadActivity(ctx context.Context, studentID uuid.UUID, originalName, mimeType string, data []byte) (*UploadResult, error) {
	student, err := s.students.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrUnsupportedFormat)
	}
	if classifyDocument(data) == "" {
		return nil, fmt.Errorf("%w: only PDF, PNG and JPEG uploads are accepted", ErrUnsupportedFormat)
	}

	activityID := uuid.New()
	uploadKey := fmt.Sprintf("activities/%s/original%s", activityID, uploadExtension(data))
	if err := s.storage.Put(ctx, uploadKey, data, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	activity := &types.Activity{
		ID:           activityID,
		StudentID:    student.ID,
		Title:        strings.TrimSuffix(originalName, extensionOf(originalName)),
		OriginalName: originalName,
		MimeType:     mimeType,
		UploadKey:    uploadKey,
	}
	if err := s.activityRepo.Create(ctx, activity, nil); err != nil {
		return nil, fmt.Errorf("failed to record activity: %w", err)
	}
	run, err := s.adaptation.Enqueue(ctx, activity.ID, student.ID, student.UserID)
	if err != nil {
		return nil, err
	}
	s.log.Info("Activity uploaded", "student_id", student.ID.String(), "run_id", run.ID.String())
	return &UploadResult{Activity: activity, Run: run}, nil
}

func (s *ActivityService) GetActivity(ctx context.Context, id uuid.UUID) (*types.Activity, error) {
	activity, err := s.activityRepo.GetByID(ctx, id, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	if _, err := s.students.GetStudent(ctx, activity.StudentID); err != nil {
		return nil, err
	}
	return activity, nil
}

func (s *ActivityService) ListActivities(ctx context.Context, studentID uuid.UUID) ([]types.Activity, error) {
	if _, err := s.students.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return s.activityRepo.ListByStudentID(ctx, studentID, nil)
}

func (s *ActivityService) ListPages(ctx context.Context, activityID uuid.UUID) ([]types.ActivityPage, error) {
	if _, err := s.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	return s.pageRepo.ListByActivityID(ctx, activityID, nil)
}

// Reprocess enqueues a fresh run for an existing activity.
func (s *ActivityService) Reprocess(ctx context.Context, activityID uuid.UUID) (*types.AdaptationRun, error) {
	activity, err := s.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	student, err := s.students.GetStudent(ctx, activity.StudentID)
	if err != nil {
		return nil, err
	}
	return s.adaptation.Enqueue(ctx, activity.ID, student.ID, student.UserID)
}

func uploadExtension(data []byte) string {
	switch classifyDocument(data) {
	case "pdf":
		return ".pdf"
	case "png":
		return ".png"
	case "jpeg":
		return ".jpg"
	default:
		return ""
	}
}

func extensionOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx:]
}
