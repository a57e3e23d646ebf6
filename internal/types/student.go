package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Student is the learner profile that drives adaptation decisions.
// Profile fields are free-form text gathered from the intake form; the
// generator quotes them verbatim into the model prompt.
type Student struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"index;not null" json:"user_id"`
	User               *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	FullName           string         `gorm:"not null;column:full_name" json:"full_name"`
	Age                int            `gorm:"column:age" json:"age"`
	Diagnoses          datatypes.JSON `gorm:"type:jsonb;column:diagnoses" json:"diagnoses"`
	SpecialInterests   string         `gorm:"column:special_interests" json:"special_interests"`
	Strengths          string         `gorm:"column:strengths" json:"strengths"`
	RewardSystem       string         `gorm:"column:reward_system" json:"reward_system"`
	AttentionSpan      string         `gorm:"column:attention_span" json:"attention_span"`
	CommunicationStyle string         `gorm:"column:communication_style" json:"communication_style"`
	SensoryProfile     datatypes.JSON `gorm:"type:jsonb;column:sensory_profile" json:"sensory_profile"`
	LearningGoals      string         `gorm:"column:learning_goals" json:"learning_goals"`

	// Denormalized mirror of the student's latest terminal run, kept
	// current by the pipeline so listings avoid a join on runs.
	ActivityStatus   string     `gorm:"column:activity_status" json:"activity_status,omitempty"`
	LastAdaptationAt *time.Time `gorm:"column:last_adaptation_at" json:"last_adaptation_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Student) TableName() string {
	return "student"
}
