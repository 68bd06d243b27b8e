package services

import (
	"context"
	"errors"
	"fmt"

	"testdesk/models"

	"gorm.io/gorm"
)

type QuestionService struct {
	db *gorm.DB
}

func NewQuestionService(db *gorm.DB) *QuestionService {
	return &QuestionService{db: db}
}

type CreateQuestionRequest struct {
	Question    string                    `json:"question" binding:"required"`
	Explanation *string                   `json:"explanation"`
	Type        string                    `json:"type" binding:"required,questiontype"`
	CorrectType string                    `json:"correct_type" binding:"omitempty,correcttype"`
	Paragraph   *string                   `json:"paragraph"`
	Options     []CreateOptionRequest     `json:"options" binding:"omitempty,dive"`
	Attachments []CreateAttachmentRequest `json:"attachments" binding:"omitempty,dive"`
	Children    []CreateQuestionRequest   `json:"children" binding:"omitempty,dive"`
}

type CreateOptionRequest struct {
	Value   string `json:"value" binding:"required"`
	Correct bool   `json:"correct"`
}

type CreateAttachmentRequest struct {
	URL  string `json:"url" binding:"required,url"`
	Type string `json:"type" binding:"required"`
}

func (s *QuestionService) CreateQuestion(ctx context.Context, userID string, req *CreateQuestionRequest) (*models.Question, error) {
	if err := validateQuestion(req, false); err != nil {
		return nil, err
	}

	// Start transaction
	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	question, err := createQuestion(tx, userID, nil, 0, req)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	for i := range req.Children {
		if _, err := createQuestion(tx, userID, &question.ID, i, &req.Children[i]); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// Commit transaction
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return s.GetQuestion(ctx, question.ID)
}

func createQuestion(tx *gorm.DB, userID string, parentID *string, position int, req *CreateQuestionRequest) (*models.Question, error) {
	correctType := req.CorrectType
	if correctType == "" {
		correctType = models.CorrectTypeSingle
	}

	question := models.Question{
		Question:    req.Question,
		Explanation: req.Explanation,
		Type:        req.Type,
		CorrectType: correctType,
		Paragraph:   req.Paragraph,
		ParentID:    parentID,
		Position:    position,
		CreatedByID: userID,
	}
	if err := tx.Create(&question).Error; err != nil {
		return nil, err
	}

	for i, optReq := range req.Options {
		option := models.Option{
			QuestionID: question.ID,
			Value:      optReq.Value,
			Correct:    optReq.Correct,
			Position:   i,
		}
		if err := tx.Create(&option).Error; err != nil {
			return nil, err
		}
	}

	for _, attReq := range req.Attachments {
		attachment := models.Attachment{
			QuestionID: question.ID,
			URL:        attReq.URL,
			Type:       attReq.Type,
		}
		if err := tx.Create(&attachment).Error; err != nil {
			return nil, err
		}
	}

	return &question, nil
}

func validateQuestion(req *CreateQuestionRequest, child bool) error {
	if req.Type == models.QuestionTypeComprehensive {
		if child {
			return fmt.Errorf("%w: comprehension questions cannot be nested", ErrInvalidQuestion)
		}
		if len(req.Children) == 0 {
			return fmt.Errorf("%w: comprehension question needs at least one child", ErrInvalidQuestion)
		}
		for i := range req.Children {
			if err := validateQuestion(&req.Children[i], true); err != nil {
				return err
			}
		}
		return nil
	}

	if len(req.Children) > 0 {
		return fmt.Errorf("%w: only comprehension questions can have children", ErrInvalidQuestion)
	}
	if len(req.Options) < 2 {
		return fmt.Errorf("%w: at least two options are required", ErrInvalidQuestion)
	}

	correctCount := 0
	for _, o := range req.Options {
		if o.Correct {
			correctCount++
		}
	}
	switch {
	case req.CorrectType == models.CorrectTypeMultiple && correctCount == 0:
		return fmt.Errorf("%w: at least one option must be correct", ErrInvalidQuestion)
	case req.CorrectType != models.CorrectTypeMultiple && correctCount != 1:
		return fmt.Errorf("%w: exactly one option must be correct", ErrInvalidQuestion)
	}
	return nil
}

func (s *QuestionService) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	var question models.Question
	err := s.db.WithContext(ctx).
		Preload("Options", orderByPosition).
		Preload("Attachments").
		Preload("Children", orderByPosition).
		Preload("Children.Options", orderByPosition).
		Preload("Children.Attachments").
		First(&question, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return &question, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, created_at ASC")
}
