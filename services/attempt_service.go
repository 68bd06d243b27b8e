package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"testdesk/models"

	"gorm.io/gorm"
)

type AttemptService struct {
	db       *gorm.DB
	catalog  *CatalogService
	locker   SubmitLocker
	notifier Notifier
}

func NewAttemptService(db *gorm.DB, catalog *CatalogService, locker SubmitLocker, notifier Notifier) *AttemptService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &AttemptService{
		db:       db,
		catalog:  catalog,
		locker:   locker,
		notifier: notifier,
	}
}

type StartAttemptRequest struct {
	TestID string `json:"test_id" binding:"required"`
}

type SubmitAttemptRequest struct {
	AttemptID string `json:"attempt_id" binding:"required"`
}

// AttemptResult is an attempt with its answers, section stats and test
// header. Leaves is only filled in by SubmitAttempt.
type AttemptResult struct {
	Attempt        *models.StudentTestAttempt `json:"attempt"`
	TotalQuestions int                        `json:"total_questions"`
	Leaves         []LeafOutcome              `json:"leaves,omitempty"`
}

func (s *AttemptService) StartAttempt(ctx context.Context, testID, userID string) (*models.StudentTestAttempt, error) {
	var test models.Test
	if err := s.db.WithContext(ctx).Select("id").First(&test, "id = ?", testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}

	attempt := models.StudentTestAttempt{
		TestID:    testID,
		UserID:    userID,
		StartedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		return nil, err
	}

	s.notifier.Notify(attempt.ID, EventAttemptStarted, map[string]interface{}{
		"attempt_id": attempt.ID,
		"test_id":    attempt.TestID,
		"user_id":    attempt.UserID,
	})

	return &attempt, nil
}

// SubmitAttempt grades and finalizes an attempt at most once. The redis
// lock keeps concurrent submitters from grading in parallel; the
// conditional update on submitted_at is what guarantees a single winner.
func (s *AttemptService) SubmitAttempt(ctx context.Context, attemptID string) (*AttemptResult, error) {
	release, err := s.locker.Acquire(ctx, attemptID)
	if errors.Is(err, ErrSubmitInProgress) {
		// The holder may have finished while we waited.
		var current models.StudentTestAttempt
		if s.db.WithContext(ctx).Select("id", "submitted_at").First(&current, "id = ?", attemptID).Error == nil && current.IsSubmitted() {
			return nil, ErrAlreadySubmitted
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	defer release()

	var attempt models.StudentTestAttempt
	if err := s.db.WithContext(ctx).First(&attempt, "id = ?", attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}
	if attempt.IsSubmitted() {
		return nil, ErrAlreadySubmitted
	}

	tree, err := s.catalog.LoadTree(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test %s: %w", attempt.TestID, err)
	}

	var report *GradeReport
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Saves hold the same row lock, so the answers read below are final.
		if _, err := lockOpenAttempt(tx, attemptID); err != nil {
			return err
		}

		var answers []models.StudentTestAnswer
		if err := tx.Where("attempt_id = ?", attemptID).Find(&answers).Error; err != nil {
			return err
		}

		report = GradeAttempt(tree, answers)

		// Claim the attempt first so a concurrent finalizer blocks here and
		// then sees zero rows.
		now := time.Now().UTC()
		res := tx.Model(&models.StudentTestAttempt{}).
			Where("id = ? AND submitted_at IS NULL", attemptID).
			Updates(map[string]interface{}{
				"submitted_at":          now,
				"total_time_taken":      report.TotalTimeTaken,
				"total_marks":           report.TotalMarks,
				"negative_marks":        report.NegativeMarks,
				"final_score":           report.FinalScore(),
				"correct_count":         report.CorrectCount,
				"wrong_count":           report.WrongCount,
				"unanswered_count":      report.UnansweredCount,
				"answered_count":        report.AnsweredCount,
				"avg_time_per_question": report.AvgTimePerQuestion(),
				"max_possible_marks":    report.MaxPossibleMarks,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadySubmitted
		}

		for _, leaf := range report.Leaves {
			if leaf.AnswerID == "" {
				continue
			}
			err := tx.Model(&models.StudentTestAnswer{}).
				Where("id = ?", leaf.AnswerID).
				Updates(map[string]interface{}{
					"is_correct":   leaf.IsCorrect,
					"marks_scored": leaf.MarksScored,
				}).Error
			if err != nil {
				return err
			}
		}

		if len(report.Sections) == 0 {
			return nil
		}
		stats := make([]models.StudentSectionStat, 0, len(report.Sections))
		for _, st := range report.Sections {
			stats = append(stats, models.StudentSectionStat{
				AttemptID:       attemptID,
				SectionID:       st.SectionID,
				CorrectCount:    st.CorrectCount,
				WrongCount:      st.WrongCount,
				UnansweredCount: st.UnansweredCount,
				AnsweredCount:   st.AnsweredCount,
				TotalMarks:      st.TotalMarks,
				NegativeMarks:   st.NegativeMarks,
				Score:           st.FinalScore(),
				TimeTaken:       st.TotalTimeTaken,
			})
		}
		return tx.Create(&stats).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[attempt] attempt %s submitted: score=%.2f correct=%d wrong=%d unanswered=%d",
		attemptID, report.FinalScore(), report.CorrectCount, report.WrongCount, report.UnansweredCount)

	result, err := s.GetResult(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	result.Leaves = report.Leaves

	s.notifier.Notify(attemptID, EventTestSubmitted, map[string]interface{}{
		"attempt_id":  attemptID,
		"user_id":     attempt.UserID,
		"final_score": report.FinalScore(),
	})

	return result, nil
}

func (s *AttemptService) GetResult(ctx context.Context, attemptID string) (*AttemptResult, error) {
	var attempt models.StudentTestAttempt
	err := s.db.WithContext(ctx).
		Preload("Test").
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Answers.Section").
		Preload("SectionStats").
		Preload("SectionStats.Section").
		First(&attempt, "id = ?", attemptID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	return &AttemptResult{
		Attempt:        &attempt,
		TotalQuestions: attempt.CorrectCount + attempt.WrongCount + attempt.UnansweredCount,
	}, nil
}

// GetUserResults lists a user's submitted attempts, newest first.
func (s *AttemptService) GetUserResults(ctx context.Context, userID string) ([]models.StudentTestAttempt, error) {
	var attempts []models.StudentTestAttempt
	err := s.db.WithContext(ctx).
		Preload("Test").
		Where("user_id = ? AND submitted_at IS NOT NULL", userID).
		Order("submitted_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// AttemptOwner returns the id of the user who started the attempt.
func (s *AttemptService) AttemptOwner(ctx context.Context, attemptID string) (string, error) {
	var attempt models.StudentTestAttempt
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&attempt, "id = ?", attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAttemptNotFound
		}
		return "", err
	}
	return attempt.UserID, nil
}
