package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	AnswerStatusAnswered   = "ANSWERED"
	AnswerStatusUnanswered = "UNANSWERED"
)

// StudentTestAnswer is unique per (attempt, question). SelectedAnswer is kept
// as the raw JSON the client sent; its shape is only interpreted at grading.
type StudentTestAnswer struct {
	ID               string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	AttemptID        string         `json:"attempt_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_question"`
	QuestionID       string         `json:"question_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_attempt_question"`
	SectionID        string         `json:"section_id" gorm:"type:varchar(36);not null"`
	SelectedAnswer   datatypes.JSON `json:"selected_answer"`
	MarkedForReview  bool           `json:"marked_for_review" gorm:"not null;default:false"`
	Status           string         `json:"status" gorm:"not null;default:'UNANSWERED'"`
	TimeTakenSeconds int            `json:"time_taken_seconds" gorm:"not null;default:0"`
	IsCorrect        *bool          `json:"is_correct"`
	MarksScored      *float64       `json:"marks_scored"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	// Relationships
	Section *TestSection `json:"section,omitempty" gorm:"foreignKey:SectionID"`
}

func (a *StudentTestAnswer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
