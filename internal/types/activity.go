package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Activity is one uploaded school activity document (PDF or image).
// UploadKey is the storage key of the original upload; pages and
// extractions hang off it by foreign key.
type Activity struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    uuid.UUID      `gorm:"index;not null" json:"student_id"`
	Student      *Student       `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"-"`
	Title        string         `gorm:"column:title" json:"title"`
	OriginalName string         `gorm:"column:original_name" json:"original_name"`
	MimeType     string         `gorm:"column:mime_type" json:"mime_type"`
	UploadKey    string         `gorm:"not null;column:upload_key" json:"upload_key"`
	Metadata     datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (Activity) TableName() string {
	return "activity"
}
