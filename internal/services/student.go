package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/repos"
	"github.com/yungbote/adapta-backend/internal/requestdata"
	"github.com/yungbote/adapta-backend/internal/types"
)

type StudentService struct {
	repo repos.StudentRepo
	log  *logger.Logger
}

func NewStudentService(repo repos.StudentRepo, log *logger.Logger) *StudentService {
	return &StudentService{repo: repo, log: log}
}

// StudentInput is the profile payload from the intake form.
type StudentInput struct {
	FullName           string   `json:"full_name"`
	Age                int      `json:"age"`
	Diagnoses          []string `json:"diagnoses"`
	SpecialInterests   string   `json:"special_interests"`
	Strengths          string   `json:"strengths"`
	RewardSystem       string   `json:"reward_system"`
	AttentionSpan      string   `json:"attention_span"`
	CommunicationStyle string   `json:"communication_style"`
	LearningGoals      string   `json:"learning_goals"`
}

func (s *StudentService) CreateStudent(ctx context.Context, input StudentInput) (*types.Student, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.FullName) == "" {
		return nil, fmt.Errorf("full name is required")
	}
	diagnosesJSON, err := json.Marshal(input.Diagnoses)
	if err != nil {
		return nil, fmt.Errorf("failed to encode diagnoses: %w", err)
	}
	student := &types.Student{
		UserID:             userID,
		FullName:           strings.TrimSpace(input.FullName),
		Age:                input.Age,
		Diagnoses:          datatypes.JSON(diagnosesJSON),
		SpecialInterests:   strings.TrimSpace(input.SpecialInterests),
		Strengths:          strings.TrimSpace(input.Strengths),
		RewardSystem:       strings.TrimSpace(input.RewardSystem),
		AttentionSpan:      strings.TrimSpace(input.AttentionSpan),
		CommunicationStyle: strings.TrimSpace(input.CommunicationStyle),
		LearningGoals:      strings.TrimSpace(input.LearningGoals),
	}
	if err := s.repo.Create(ctx, student, nil); err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	s.log.Info("Student created", "student_id", student.ID.String())
	return student, nil
}

func (s *StudentService) GetStudent(ctx context.Context, id uuid.UUID) (*types.Student, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	student, err := s.repo.GetByID(ctx, id, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}
	if student.UserID != userID {
		return nil, ErrNotFound
	}
	return student, nil
}

func (s *StudentService) ListStudents(ctx context.Context) ([]types.Student, error) {
	userID, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByUserID(ctx, userID, nil)
}

func (s *StudentService) UpdateStudent(ctx context.Context, id uuid.UUID, input StudentInput) (*types.Student, error) {
	if _, err := s.GetStudent(ctx, id); err != nil {
		return nil, err
	}
	diagnosesJSON, err := json.Marshal(input.Diagnoses)
	if err != nil {
		return nil, fmt.Errorf("failed to encode diagnoses: %w", err)
	}
	fields := map[string]interface{}{
		"full_name":           strings.TrimSpace(input.FullName),
		"age":                 input.Age,
		"diagnoses":           datatypes.JSON(diagnosesJSON),
		"special_interests":   strings.TrimSpace(input.SpecialInterests),
		"strengths":           strings.TrimSpace(input.Strengths),
		"reward_system":       strings.TrimSpace(input.RewardSystem),
		"attention_span":      strings.TrimSpace(input.AttentionSpan),
		"communication_style": strings.TrimSpace(input.CommunicationStyle),
		"learning_goals":      strings.TrimSpace(input.LearningGoals),
	}
	if err := s.repo.UpdateFields(ctx, id, fields, nil); err != nil {
		return nil, fmt.Errorf("failed to update student: %w", err)
	}
	return s.repo.GetByID(ctx, id, nil)
}

func (s *StudentService) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetStudent(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id, nil)
}

func currentUserID(ctx context.Context) (uuid.UUID, error) {
	data := requestdata.GetRequestData(ctx)
	if data == nil || data.UserID == nil {
		return uuid.Nil, ErrNotAuthenticated
	}
	return *data.UserID, nil
}
