package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StudentTestAttempt is one student's run through a test. SubmittedAt is the
// terminal marker: aggregates are only meaningful once it is set, and the
// attempt is immutable afterwards.
type StudentTestAttempt struct {
	ID          string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	TestID      string     `json:"test_id" gorm:"type:varchar(36);not null;index"`
	UserID      string     `json:"user_id" gorm:"type:varchar(36);not null;index"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`

	TotalTimeTaken     int     `json:"total_time_taken" gorm:"not null;default:0"`
	TotalMarks         float64 `json:"total_marks" gorm:"not null;default:0"`
	NegativeMarks      float64 `json:"negative_marks" gorm:"not null;default:0"`
	FinalScore         float64 `json:"final_score" gorm:"not null;default:0"`
	CorrectCount       int     `json:"correct_count" gorm:"not null;default:0"`
	WrongCount         int     `json:"wrong_count" gorm:"not null;default:0"`
	UnansweredCount    int     `json:"unanswered_count" gorm:"not null;default:0"`
	AnsweredCount      int     `json:"answered_count" gorm:"not null;default:0"`
	AvgTimePerQuestion int     `json:"avg_time_per_question" gorm:"not null;default:0"`
	MaxPossibleMarks   float64 `json:"max_possible_marks" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Test         *Test                `json:"test,omitempty"`
	Answers      []StudentTestAnswer  `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
	SectionStats []StudentSectionStat `json:"section_stats,omitempty" gorm:"foreignKey:AttemptID"`
}

func (a *StudentTestAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now().UTC()
	}
	return nil
}

func (a *StudentTestAttempt) IsSubmitted() bool {
	return a.SubmittedAt != nil
}

// StudentSectionStat holds the per-section slice of an attempt's aggregates,
// written once at submission.
type StudentSectionStat struct {
	ID              string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	AttemptID       string    `json:"attempt_id" gorm:"type:varchar(36);not null;index"`
	SectionID       string    `json:"section_id" gorm:"type:varchar(36);not null"`
	CorrectCount    int       `json:"correct_count"`
	WrongCount      int       `json:"wrong_count"`
	UnansweredCount int       `json:"unanswered_count"`
	AnsweredCount   int       `json:"answered_count"`
	TotalMarks      float64   `json:"total_marks"`
	NegativeMarks   float64   `json:"negative_marks"`
	Score           float64   `json:"score"`
	TimeTaken       int       `json:"time_taken"`
	CreatedAt       time.Time `json:"created_at"`

	// Relationships
	Section *TestSection `json:"section,omitempty" gorm:"foreignKey:SectionID"`
}

func (s *StudentSectionStat) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
