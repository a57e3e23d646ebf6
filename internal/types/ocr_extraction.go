package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OcrExtraction holds the recognized text of one activity page. There
// is at most one extraction per page; re-running OCR overwrites it.
type OcrExtraction struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityPageID uuid.UUID      `gorm:"uniqueIndex;not null;column:activity_page_id" json:"activity_page_id"`
	ActivityPage   *ActivityPage  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ActivityPageID;references:ID" json:"-"`
	Engine         string         `gorm:"column:engine" json:"engine"`
	RawText        string         `gorm:"column:raw_text" json:"raw_text"`
	AvgConfidence  float64        `gorm:"column:avg_confidence" json:"avg_confidence"`
	Layout         datatypes.JSON `gorm:"type:jsonb;column:layout" json:"layout"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (OcrExtraction) TableName() string {
	return "ocr_extraction"
}
