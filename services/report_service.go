package services

import (
	"context"
	"errors"
	"time"

	"testdesk/models"

	"gorm.io/gorm"
)

const dismissRemarks = "Dismissed without changes"

type ReportService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewReportService(db *gorm.DB, notifier Notifier) *ReportService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ReportService{
		db:       db,
		notifier: notifier,
	}
}

type CreateReportRequest struct {
	AttemptID  string `json:"attempt_id" binding:"required"`
	QuestionID string `json:"question_id" binding:"required"`
	SectionID  string `json:"section_id" binding:"required"`
	Reason     string `json:"reason" binding:"required,max=2000"`
}

type ResolveReportRequest struct {
	Remarks string `json:"remarks" binding:"required"`
}

// Report files a complaint against a question. A report on a comprehension
// child is filed against its parent with the child recorded alongside.
func (s *ReportService) Report(ctx context.Context, reportedBy string, req *CreateReportRequest) (*models.QuestionReport, error) {
	db := s.db.WithContext(ctx)

	var attempt models.StudentTestAttempt
	if err := db.Select("id").First(&attempt, "id = ?", req.AttemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, err
	}

	var question models.Question
	if err := db.Select("id", "parent_id").First(&question, "id = ?", req.QuestionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}

	report := models.QuestionReport{
		AttemptID:  req.AttemptID,
		QuestionID: question.ID,
		SectionID:  req.SectionID,
		ReportedBy: reportedBy,
		Reason:     req.Reason,
		Status:     models.ReportStatusOpen,
	}
	if question.ParentID != nil {
		childID := question.ID
		report.QuestionID = *question.ParentID
		report.ChildQuestionID = &childID
	}

	if err := db.Create(&report).Error; err != nil {
		return nil, err
	}

	s.notifier.Notify(RoomReports, EventReported, report)
	return &report, nil
}

func (s *ReportService) ListOpen(ctx context.Context) ([]models.QuestionReport, error) {
	return s.list(ctx, "", models.ReportStatusOpen)
}

func (s *ReportService) ListOpenByUser(ctx context.Context, userID string) ([]models.QuestionReport, error) {
	return s.list(ctx, userID, models.ReportStatusOpen)
}

func (s *ReportService) ListClosed(ctx context.Context) ([]models.QuestionReport, error) {
	return s.list(ctx, "", models.ReportStatusResolved, models.ReportStatusDismissed)
}

func (s *ReportService) ListClosedByUser(ctx context.Context, userID string) ([]models.QuestionReport, error) {
	return s.list(ctx, userID, models.ReportStatusResolved, models.ReportStatusDismissed)
}

func (s *ReportService) list(ctx context.Context, userID string, statuses ...string) ([]models.QuestionReport, error) {
	query := s.db.WithContext(ctx).
		Preload("Question.Options", orderByPosition).
		Preload("ChildQuestion.Options", orderByPosition).
		Preload("Section").
		Preload("Attempt.Test").
		Where("status IN ?", statuses)
	if userID != "" {
		query = query.Where("reported_by = ?", userID)
	}

	order := "created_at DESC"
	if statuses[0] != models.ReportStatusOpen {
		order = "resolved_at DESC"
	}

	var reports []models.QuestionReport
	if err := query.Order(order).Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *ReportService) Resolve(ctx context.Context, reportID, remarks, resolvedBy string) (*models.QuestionReport, error) {
	report, err := s.close(ctx, reportID, models.ReportStatusResolved, remarks, resolvedBy)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(RoomReports, EventResolved, report)
	return report, nil
}

func (s *ReportService) Dismiss(ctx context.Context, reportID, resolvedBy string) (*models.QuestionReport, error) {
	report, err := s.close(ctx, reportID, models.ReportStatusDismissed, dismissRemarks, resolvedBy)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(RoomReports, EventDismissed, report)
	return report, nil
}

func (s *ReportService) close(ctx context.Context, reportID, status, remarks, resolvedBy string) (*models.QuestionReport, error) {
	db := s.db.WithContext(ctx)

	var report models.QuestionReport
	if err := db.First(&report, "id = ?", reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	now := time.Now().UTC()
	err := db.Model(&report).Updates(map[string]interface{}{
		"status":             status,
		"resolution_remarks": remarks,
		"resolved_at":        now,
		"resolved_by":        resolvedBy,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := db.First(&report, "id = ?", reportID).Error; err != nil {
		return nil, err
	}
	return &report, nil
}
