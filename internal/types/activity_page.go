package types

import (
	"time"

	"github.com/google/uuid"
)

// ActivityPage is one rasterized page image of an activity. PageNumber
// is 1-based and unique per activity.
type ActivityPage struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityID uuid.UUID `gorm:"uniqueIndex:idx_activity_page;not null" json:"activity_id"`
	Activity   *Activity `gorm:"constraint:OnDelete:CASCADE;foreignKey:ActivityID;references:ID" json:"-"`
	PageNumber int       `gorm:"uniqueIndex:idx_activity_page;not null;column:page_number" json:"page_number"`
	ImageKey   string    `gorm:"not null;column:image_key" json:"image_key"`
	Width      int       `gorm:"column:width" json:"width"`
	Height     int       `gorm:"column:height" json:"height"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (ActivityPage) TableName() string {
	return "activity_page"
}
