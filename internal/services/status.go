package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/repos"
	"github.com/yungbote/adapta-backend/internal/requestdata"
	"github.com/yungbote/adapta-backend/internal/types"
	"github.com/yungbote/adapta-backend/internal/utils"
)

// StatusResponse is the polling payload. Artifacts and Preview are
// present only when the run is terminal Ready.
type StatusResponse struct {
	ActivityID      string              `json:"activity_id"`
	RunID           string              `json:"run_id,omitempty"`
	Status          string              `json:"status"`
	ProgressPercent int                 `json:"progress_percent"`
	Message         string              `json:"message"`
	Icon            string              `json:"icon"`
	Error           string              `json:"error,omitempty"`
	Artifacts       *types.RunArtifacts `json:"artifacts,omitempty"`
	Preview         *types.PlanPreview  `json:"preview,omitempty"`
}

// StatusService answers poll requests. Every lookup enforces that the
// requester owns the activity; lookups on other users' activities
// answer "not found", never "forbidden".
type StatusService struct {
	runRepo      repos.AdaptationRunRepo
	activityRepo repos.ActivityRepo
	studentRepo  repos.StudentRepo
	storage      Storage
	cache        *redis.Client
	cacheTTL     time.Duration
	log          *logger.Logger
}

func NewStatusService(runRepo repos.AdaptationRunRepo, activityRepo repos.ActivityRepo, studentRepo repos.StudentRepo, storage Storage, cache *redis.Client, log *logger.Logger) *StatusService {
	return &StatusService{
		runRepo:      runRepo,
		activityRepo: activityRepo,
		studentRepo:  studentRepo,
		storage:      storage,
		cache:        cache,
		cacheTTL:     time.Duration(utils.GetEnvAsInt(log, "STATUS_CACHE_TTL_SECONDS", 2)) * time.Second,
		log:          log,
	}
}

// NewStatusCacheFromEnv returns a redis client when REDIS_ADDR is set,
// nil otherwise. The status service treats a nil cache as disabled.
func NewStatusCacheFromEnv(log *logger.Logger) *redis.Client {
	addr := utils.GetEnv(log, "REDIS_ADDR", "")
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: utils.GetEnv(log, "REDIS_PASSWORD", ""),
		DB:       utils.GetEnvAsInt(log, "REDIS_DB", 0),
	})
	log.Info("Status cache enabled", "addr", addr)
	return client
}

func statusMessage(status string) (message, icon string) {
	switch status {
	case types.RunStatusPending:
		return "Waiting in the queue...", "🔄"
	case types.RunStatusRasterizing:
		return "Converting the document into pages...", "📄"
	case types.RunStatusExtractingText:
		return "Reading the activity text...", "🔍"
	case types.RunStatusGenerating:
		return "Generating the personalized adaptation...", "🧠"
	case types.RunStatusRendering:
		return "Preparing the final result...", "🎨"
	case types.RunStatusReady:
		return "Adaptation completed!", "✅"
	case types.RunStatusFailed:
		return "The adaptation could not be completed.", "❌"
	default:
		return "Unknown status", "❓"
	}
}

// GetActivityStatus resolves the latest run of the activity into a
// polling payload.
func (s *StatusService) GetActivityStatus(ctx context.Context, activityID uuid.UUID) (*StatusResponse, error) {
	activity, err := s.authorizeActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}

	cacheKey := "status:" + activityID.String()
	if cached := s.cacheGet(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	response := &StatusResponse{ActivityID: activity.ID.String()}
	run, err := s.runRepo.GetLatestByActivityID(ctx, activityID, nil)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load run: %w", err)
		}
		response.Status = types.RunStatusPending
	} else {
		response.RunID = run.ID.String()
		response.Status = run.Status
		response.Error = run.Error
		if run.Status == types.RunStatusReady {
			s.attachReadyPayload(response, run)
		}
	}
	response.ProgressPercent = types.RunProgress(response.Status)
	response.Message, response.Icon = statusMessage(response.Status)

	s.cacheSet(ctx, cacheKey, response)
	return response, nil
}

func (s *StatusService) attachReadyPayload(response *StatusResponse, run *types.AdaptationRun) {
	var artifacts types.RunArtifacts
	if err := json.Unmarshal(run.Artifacts, &artifacts); err == nil {
		response.Artifacts = &artifacts
	}
	var plan types.AdaptationPlan
	if err := json.Unmarshal(run.Plan, &plan); err == nil {
		strategies := make([]string, 0, len(plan.AdaptedActivity.Strategies))
		for _, strategy := range plan.AdaptedActivity.Strategies {
			strategies = append(strategies, strategy.StrategyName)
		}
		response.Preview = &types.PlanPreview{
			ObjectiveCount: len(plan.AdaptedActivity.Objectives),
			ItemCount:      len(plan.AdaptedActivity.Items),
			Strategies:     strategies,
		}
	}
}

// GetArtifact streams one rendered artifact of the latest ready run.
// The returned filename is what the download should be saved as.
func (s *StatusService) GetArtifact(ctx context.Context, activityID uuid.UUID, kind string) ([]byte, string, string, error) {
	if _, err := s.authorizeActivity(ctx, activityID); err != nil {
		return nil, "", "", err
	}
	run, err := s.runRepo.GetLatestByActivityID(ctx, activityID, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", "", ErrNotFound
		}
		return nil, "", "", fmt.Errorf("failed to load run: %w", err)
	}
	if run.Status != types.RunStatusReady {
		return nil, "", "", fmt.Errorf("%w: no ready artifact", ErrNotFound)
	}
	var artifacts types.RunArtifacts
	if err := json.Unmarshal(run.Artifacts, &artifacts); err != nil {
		return nil, "", "", fmt.Errorf("failed to decode artifacts: %w", err)
	}
	var key, contentType, filename string
	switch kind {
	case "html", "":
		key, contentType, filename = artifacts.HTMLKey, "text/html; charset=utf-8", "adapted.html"
	case "txt":
		key, contentType, filename = artifacts.TextKey, "text/plain; charset=utf-8", "adapted.txt"
	case "png":
		key, contentType, filename = artifacts.PNGKey, "image/png", "adapted.png"
	default:
		return nil, "", "", fmt.Errorf("%w: unknown artifact kind %q", ErrNotFound, kind)
	}
	if key == "" {
		return nil, "", "", ErrNotFound
	}
	data, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, "", "", err
	}
	return data, contentType, filename, nil
}

// authorizeActivity loads the activity and verifies the caller owns
// it through the student record.
func (s *StatusService) authorizeActivity(ctx context.Context, activityID uuid.UUID) (*types.Activity, error) {
	data := requestdata.GetRequestData(ctx)
	if data == nil || data.UserID == nil {
		return nil, ErrNotAuthenticated
	}
	activity, err := s.activityRepo.GetByID(ctx, activityID, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}
	student, err := s.studentRepo.GetByID(ctx, activity.StudentID, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}
	if student.UserID != *data.UserID {
		return nil, ErrNotFound
	}
	return activity, nil
}

func (s *StatusService) cacheGet(ctx context.Context, key string) *StatusResponse {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var response StatusResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil
	}
	return &response
}

func (s *StatusService) cacheSet(ctx context.Context, key string, response *StatusResponse) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return
	}
	ttl := s.cacheTTL
	if types.RunStatusTerminal(response.Status) {
		ttl = time.Minute
	}
	if err := s.cache.Set(ctx, key, raw, ttl).Err(); err != nil {
		s.log.Debug("Status cache write failed", "error", err)
	}
}
