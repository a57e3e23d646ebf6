package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/types"
)

// ErrStaleTransition is returned when a status update finds the run no
// longer in the expected predecessor status. Callers treat it as "lost
// the race" and stop touching the run.
var ErrStaleTransition = errors.New("run is not in the expected status")

type AdaptationRunRepo interface {
	Create(ctx context.Context, run *types.AdaptationRun, tx *gorm.DB) error
	GetByID(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*types.AdaptationRun, error)
	GetLatestByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) (*types.AdaptationRun, error)
	GetActiveByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) (*types.AdaptationRun, error)
	ClaimNextRunnable(ctx context.Context) (*types.AdaptationRun, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, from, to string, extra map[string]interface{}, tx *gorm.DB) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string, tx *gorm.DB) error
	FailStale(ctx context.Context, olderThan time.Duration) (int64, error)
	Heartbeat(ctx context.Context, id uuid.UUID) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, tx *gorm.DB) error
}

type adaptationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAdaptationRunRepo(db *gorm.DB, log *logger.Logger) AdaptationRunRepo {
	return &adaptationRunRepo{db: db, log: log}
}

func (r *adaptationRunRepo) dbFrom(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *adaptationRunRepo) Create(ctx context.Context, run *types.AdaptationRun, tx *gorm.DB) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.RunStatusPending
	}
	return r.dbFrom(tx).WithContext(ctx).Create(run).Error
}

func (r *adaptationRunRepo) GetByID(ctx context.Context, id uuid.UUID, tx *gorm.DB) (*types.AdaptationRun, error) {
	var run types.AdaptationRun
	if err := r.dbFrom(tx).WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *adaptationRunRepo) GetLatestByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) (*types.AdaptationRun, error) {
	var run types.AdaptationRun
	if err := r.dbFrom(tx).WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("created_at DESC").
		First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// GetActiveByActivityID returns the non-terminal run for an activity,
// if any. Used to attach duplicate enqueues to the run in flight.
func (r *adaptationRunRepo) GetActiveByActivityID(ctx context.Context, activityID uuid.UUID, tx *gorm.DB) (*types.AdaptationRun, error) {
	var run types.AdaptationRun
	if err := r.dbFrom(tx).WithContext(ctx).
		Where("activity_id = ? AND status NOT IN ?", activityID,
			[]string{types.RunStatusReady, types.RunStatusFailed}).
		Order("created_at DESC").
		First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ClaimNextRunnable atomically picks the oldest pending run and moves
// it to rasterizing under a row lock, so concurrent workers never grab
// the same run twice. sqlite has no row locks; its writes are
// serialized anyway.
func (r *adaptationRunRepo) ClaimNextRunnable(ctx context.Context) (*types.AdaptationRun, error) {
	var claimed *types.AdaptationRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		var run types.AdaptationRun
		if err := query.
			Where("status = ?", types.RunStatusPending).
			Order("created_at ASC").
			First(&run).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":       types.RunStatusRasterizing,
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		}
		if err := tx.Model(&types.AdaptationRun{}).Where("id = ?", run.ID).Updates(updates).Error; err != nil {
			return err
		}
		run.Status = types.RunStatusRasterizing
		run.Attempts++
		run.LockedAt = &now
		run.HeartbeatAt = &now
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// AdvanceStatus moves a run one step forward. The update is guarded by
// the expected predecessor status; if another writer got there first
// the call returns ErrStaleTransition and changes nothing, which keeps
// the persisted progression strictly monotonic.
func (r *adaptationRunRepo) AdvanceStatus(ctx context.Context, id uuid.UUID, from, to string, extra map[string]interface{}, tx *gorm.DB) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	result := r.dbFrom(tx).WithContext(ctx).
		Model(&types.AdaptationRun{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkFailed is valid from any non-terminal status. A failed run never
// carries a plan, so any plan persisted before the failure is cleared.
func (r *adaptationRunRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string, tx *gorm.DB) error {
	result := r.dbFrom(tx).WithContext(ctx).
		Model(&types.AdaptationRun{}).
		Where("id = ? AND status NOT IN ?", id,
			[]string{types.RunStatusReady, types.RunStatusFailed}).
		Updates(map[string]interface{}{
			"status":     types.RunStatusFailed,
			"error":      message,
			"plan":       nil,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// FailStale marks in-flight runs whose worker stopped heartbeating as
// failed. Runs survive process restarts as failed rather than hanging
// in a non-terminal status forever.
func (r *adaptationRunRepo) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result := r.db.WithContext(ctx).
		Model(&types.AdaptationRun{}).
		Where("status NOT IN ? AND status <> ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?",
			[]string{types.RunStatusReady, types.RunStatusFailed}, types.RunStatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":     types.RunStatusFailed,
			"error":      "run interrupted: worker heartbeat expired",
			"plan":       nil,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

func (r *adaptationRunRepo) Heartbeat(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&types.AdaptationRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}

func (r *adaptationRunRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}, tx *gorm.DB) error {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["updated_at"] = time.Now().UTC()
	return r.dbFrom(tx).WithContext(ctx).
		Model(&types.AdaptationRun{}).
		Where("id = ?", id).
		Updates(fields).Error
}
