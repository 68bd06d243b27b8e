package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"testdesk/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnswerService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewAnswerService(db *gorm.DB, notifier Notifier) *AnswerService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &AnswerService{
		db:       db,
		notifier: notifier,
	}
}

type SaveAnswerRequest struct {
	AttemptID        string          `json:"attempt_id" binding:"required"`
	QuestionID       string          `json:"question_id" binding:"required"`
	SectionID        string          `json:"section_id" binding:"required"`
	SelectedAnswer   json.RawMessage `json:"selected_answer"`
	MarkedForReview  bool            `json:"marked_for_review"`
	TimeTakenSeconds int             `json:"time_taken_seconds" binding:"min=0"`
}

// SaveAnswer records the latest selection for a question in one upsert, so
// repeated or concurrent saves for the same question keep exactly one row.
// The attempt row is locked for the duration, which orders the save against
// a concurrent SubmitAttempt.
func (s *AnswerService) SaveAnswer(ctx context.Context, req *SaveAnswerRequest) (*models.StudentTestAnswer, error) {
	var selected datatypes.JSON
	if raw := bytes.TrimSpace(req.SelectedAnswer); len(raw) > 0 && string(raw) != "null" {
		selected = datatypes.JSON(raw)
	}

	var saved models.StudentTestAnswer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockOpenAttempt(tx, req.AttemptID); err != nil {
			return err
		}

		answer := models.StudentTestAnswer{
			AttemptID:        req.AttemptID,
			QuestionID:       req.QuestionID,
			SectionID:        req.SectionID,
			SelectedAnswer:   selected,
			MarkedForReview:  req.MarkedForReview,
			Status:           AnswerStatus(selected),
			TimeTakenSeconds: req.TimeTakenSeconds,
		}

		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"selected_answer", "marked_for_review", "status", "time_taken_seconds", "updated_at",
			}),
		}).Create(&answer).Error
		if err != nil {
			return err
		}

		// The generated id is discarded when the row already existed.
		return tx.First(&saved, "attempt_id = ? AND question_id = ?", req.AttemptID, req.QuestionID).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(req.AttemptID, EventAnswerSaved, map[string]interface{}{
		"attempt_id":  saved.AttemptID,
		"question_id": saved.QuestionID,
		"status":      saved.Status,
	})

	return &saved, nil
}

// lockOpenAttempt reads the attempt with a row lock held until tx ends and
// rejects attempts that are already submitted.
func lockOpenAttempt(tx *gorm.DB, attemptID string) (*models.StudentTestAttempt, error) {
	var attempt models.StudentTestAttempt
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "test_id", "user_id", "submitted_at").
		First(&attempt, "id = ?", attemptID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.IsSubmitted() {
		return nil, ErrAlreadySubmitted
	}
	return &attempt, nil
}
