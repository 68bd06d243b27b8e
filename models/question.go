package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	QuestionTypeSimple        = "SIMPLE"
	QuestionTypeComprehensive = "COMPREHENSIVE"

	CorrectTypeSingle   = "SINGLE"
	CorrectTypeMultiple = "MULTIPLE"
)

// Question is a live question-bank entry. Tests never grade against it
// directly; they grade against the snapshot taken when it was placed.
type Question struct {
	ID          string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	Question    string         `json:"question" gorm:"not null"`
	Explanation *string        `json:"explanation"`
	Type        string         `json:"type" gorm:"not null;default:'SIMPLE'"`
	CorrectType string         `json:"correct_type" gorm:"not null;default:'SINGLE'"`
	Paragraph   *string        `json:"paragraph"`
	ParentID    *string        `json:"parent_id" gorm:"type:varchar(36);index"`
	Position    int            `json:"position" gorm:"not null;default:0"`
	CreatedByID string         `json:"created_by_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Options     []Option     `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
	Attachments []Attachment `json:"attachments,omitempty" gorm:"foreignKey:QuestionID"`
	Children    []Question   `json:"children,omitempty" gorm:"foreignKey:ParentID"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

type Option struct {
	ID         string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	QuestionID string    `json:"question_id" gorm:"type:varchar(36);not null;index"`
	Value      string    `json:"value" gorm:"not null"`
	Correct    bool      `json:"correct" gorm:"not null;default:false"`
	Position   int       `json:"position" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (o *Option) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

type Attachment struct {
	ID         string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	QuestionID string    `json:"question_id" gorm:"type:varchar(36);not null;index"`
	URL        string    `json:"url" gorm:"not null"`
	Type       string    `json:"type"` // IMAGE, AUDIO, PDF, ...
	CreatedAt  time.Time `json:"created_at"`
}

func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
