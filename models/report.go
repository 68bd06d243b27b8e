package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReportStatusOpen      = "OPEN"
	ReportStatusResolved  = "RESOLVED"
	ReportStatusDismissed = "DISMISSED"
)

// QuestionReport is a student's complaint about a question seen during an
// attempt. Reports on a comprehension child point QuestionID at the parent
// and ChildQuestionID at the child.
type QuestionReport struct {
	ID                string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	AttemptID         string     `json:"attempt_id" gorm:"type:varchar(36);not null;index"`
	QuestionID        string     `json:"question_id" gorm:"type:varchar(36);not null"`
	ChildQuestionID   *string    `json:"child_question_id" gorm:"type:varchar(36)"`
	SectionID         string     `json:"section_id" gorm:"type:varchar(36);not null"`
	ReportedBy        string     `json:"reported_by" gorm:"type:varchar(36);not null;index"`
	Reason            string     `json:"reason" gorm:"not null"`
	Status            string     `json:"status" gorm:"not null;default:'OPEN';index"`
	ResolutionRemarks *string    `json:"resolution_remarks"`
	ResolvedAt        *time.Time `json:"resolved_at"`
	ResolvedBy        *string    `json:"resolved_by" gorm:"type:varchar(36)"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Relationships
	Question      *Question           `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	ChildQuestion *Question           `json:"child_question,omitempty" gorm:"foreignKey:ChildQuestionID"`
	Section       *TestSection        `json:"section,omitempty" gorm:"foreignKey:SectionID"`
	Attempt       *StudentTestAttempt `json:"attempt,omitempty" gorm:"foreignKey:AttemptID"`
}

func (r *QuestionReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReportStatusOpen
	}
	return nil
}
