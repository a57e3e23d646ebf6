package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Run statuses. The status doubles as the pipeline stage: a run moves
// strictly forward through the Runnable order below and never returns
// to an earlier status. Ready and Failed are terminal.
const (
	RunStatusPending        = "pending"
	RunStatusRasterizing    = "rasterizing"
	RunStatusExtractingText = "extracting_text"
	RunStatusGenerating     = "generating"
	RunStatusRendering      = "rendering"
	RunStatusReady          = "ready"
	RunStatusFailed         = "failed"
)

// RunStatusOrder is the forward progression of a healthy run.
var RunStatusOrder = []string{
	RunStatusPending,
	RunStatusRasterizing,
	RunStatusExtractingText,
	RunStatusGenerating,
	RunStatusRendering,
	RunStatusReady,
}

// RunProgress maps a status to the coarse percentage reported to
// polling clients.
func RunProgress(status string) int {
	switch status {
	case RunStatusPending, RunStatusRasterizing:
		return 10
	case RunStatusExtractingText:
		return 45
	case RunStatusGenerating:
		return 70
	case RunStatusRendering:
		return 90
	case RunStatusReady:
		return 100
	default:
		return 0
	}
}

// RunStatusTerminal reports whether a run in the given status can
// still move.
func RunStatusTerminal(status string) bool {
	return status == RunStatusReady || status == RunStatusFailed
}

// AdaptationRun is one attempt to adapt an activity for a student. It
// is the durable queue entry the worker claims and the record polled
// for status.
type AdaptationRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityID  uuid.UUID      `gorm:"index;not null" json:"activity_id"`
	Activity    *Activity      `gorm:"constraint:OnDelete:CASCADE;foreignKey:ActivityID;references:ID" json:"-"`
	StudentID   uuid.UUID      `gorm:"index;not null" json:"student_id"`
	UserID      uuid.UUID      `gorm:"index;not null" json:"user_id"`
	Status      string         `gorm:"index;not null;default:pending" json:"status"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	Plan        datatypes.JSON `gorm:"type:jsonb;column:plan" json:"plan,omitempty"`
	Artifacts   datatypes.JSON `gorm:"type:jsonb;column:artifacts" json:"artifacts,omitempty"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LockedAt    *time.Time     `gorm:"column:locked_at" json:"-"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at" json:"-"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (AdaptationRun) TableName() string {
	return "adaptation_run"
}
