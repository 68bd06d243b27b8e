package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Test struct {
	ID             string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name           string         `json:"name" gorm:"not null"`
	DurationMin    int            `json:"duration_min" gorm:"not null;default:0"`
	Type           string         `json:"type"`
	AllowNegative  bool           `json:"allow_negative" gorm:"not null;default:false"`
	IsMultiSection bool           `json:"is_multi_section" gorm:"not null;default:false"`
	Instructions   *string        `json:"instructions"`
	CourseID       *string        `json:"course_id" gorm:"type:varchar(36);index"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Sections []TestSection `json:"sections,omitempty" gorm:"foreignKey:TestID"`
}

func (t *Test) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TestSection carries the default marking policy for its placements.
type TestSection struct {
	ID            string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	TestID        string    `json:"test_id" gorm:"type:varchar(36);not null;index"`
	Name          string    `json:"name" gorm:"not null"`
	MarksPerQn    float64   `json:"marks_per_qn" gorm:"not null"`
	NegativeMarks *float64  `json:"negative_marks"`
	Position      int       `json:"position" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relationships
	Questions []TestQuestion `json:"questions,omitempty" gorm:"foreignKey:SectionID"`
}

func (s *TestSection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// TestQuestion places a question into a section. QuestionSnapshot is the
// frozen payload grading binds to; Marks and NegativeMarks override the
// section defaults when set.
type TestQuestion struct {
	ID               string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	SectionID        string         `json:"section_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_section_question"`
	QuestionID       string         `json:"question_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_section_question"`
	Marks            *float64       `json:"marks"`
	NegativeMarks    *float64       `json:"negative_marks"`
	QuestionSnapshot datatypes.JSON `json:"question_snapshot"`
	Position         int            `json:"position" gorm:"not null;default:0"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	// Relationships
	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (q *TestQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}
