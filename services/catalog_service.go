package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"testdesk/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogService struct {
	db       *gorm.DB
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewCatalogService(db *gorm.DB, redis *redis.Client, cacheTTL time.Duration) *CatalogService {
	return &CatalogService{
		db:       db,
		redis:    redis,
		cacheTTL: cacheTTL,
	}
}

type CreateTestRequest struct {
	Name           string                 `json:"name" binding:"required"`
	DurationMin    int                    `json:"duration_min" binding:"min=0"`
	Type           string                 `json:"type"`
	AllowNegative  bool                   `json:"allow_negative"`
	IsMultiSection bool                   `json:"is_multi_section"`
	Instructions   *string                `json:"instructions"`
	CourseID       *string                `json:"course_id"`
	Sections       []CreateSectionRequest `json:"sections" binding:"omitempty,dive"`
}

type CreateSectionRequest struct {
	Name          string   `json:"name" binding:"required"`
	MarksPerQn    *float64 `json:"marks_per_qn" binding:"omitempty,gte=0"`
	NegativeMarks *float64 `json:"negative_marks" binding:"omitempty,gte=0"`
}

type AddQuestionsRequest struct {
	QuestionIDs   []string `json:"question_ids" binding:"required,min=1"`
	Marks         *float64 `json:"marks" binding:"omitempty,gte=0"`
	NegativeMarks *float64 `json:"negative_marks" binding:"omitempty,gte=0"`
}

type UpdateMarksRequest struct {
	Marks         *float64 `json:"marks" binding:"omitempty,gte=0"`
	NegativeMarks *float64 `json:"negative_marks" binding:"omitempty,gte=0"`
}

func (s *CatalogService) CreateTest(ctx context.Context, req *CreateTestRequest) (*models.Test, error) {
	test := models.Test{
		Name:           req.Name,
		DurationMin:    req.DurationMin,
		Type:           req.Type,
		AllowNegative:  req.AllowNegative,
		IsMultiSection: req.IsMultiSection || len(req.Sections) > 1,
		Instructions:   req.Instructions,
		CourseID:       req.CourseID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&test).Error; err != nil {
			return err
		}
		for i := range req.Sections {
			section := newSection(test.ID, i, &req.Sections[i], test.AllowNegative)
			if err := tx.Create(&section).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTest(ctx, test.ID)
}

func newSection(testID string, position int, req *CreateSectionRequest, allowNegative bool) models.TestSection {
	section := models.TestSection{
		TestID:     testID,
		Name:       req.Name,
		MarksPerQn: 1,
		Position:   position,
	}
	if req.MarksPerQn != nil {
		section.MarksPerQn = *req.MarksPerQn
	}
	if allowNegative {
		section.NegativeMarks = req.NegativeMarks
	}
	return section
}

func (s *CatalogService) AddSection(ctx context.Context, testID string, req *CreateSectionRequest) (*models.TestSection, error) {
	var test models.Test
	if err := s.db.WithContext(ctx).First(&test, "id = ?", testID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.TestSection{}).Where("test_id = ?", testID).Count(&count).Error; err != nil {
		return nil, err
	}

	section := newSection(testID, int(count), req, test.AllowNegative)
	if err := s.db.WithContext(ctx).Create(&section).Error; err != nil {
		return nil, err
	}
	if count > 0 && !test.IsMultiSection {
		if err := s.db.WithContext(ctx).Model(&test).Update("is_multi_section", true).Error; err != nil {
			log.Printf("[catalog] failed to flag test %s as multi-section: %v", testID, err)
		}
	}

	s.invalidateTree(ctx, testID)
	return &section, nil
}

// AddQuestionsToSection snapshots each question and places it in the
// section. Placing a question that is already there replaces its snapshot
// and overrides.
func (s *CatalogService) AddQuestionsToSection(ctx context.Context, sectionID string, req *AddQuestionsRequest) (int, error) {
	var section models.TestSection
	if err := s.db.WithContext(ctx).First(&section, "id = ?", sectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrSectionNotFound
		}
		return 0, err
	}

	var questions []models.Question
	err := s.db.WithContext(ctx).
		Preload("Options", orderByPosition).
		Preload("Attachments").
		Preload("Children", orderByPosition).
		Preload("Children.Options", orderByPosition).
		Preload("Children.Attachments").
		Where("id IN ?", req.QuestionIDs).
		Find(&questions).Error
	if err != nil {
		return 0, err
	}
	if len(questions) == 0 {
		return 0, ErrQuestionNotFound
	}

	byID := make(map[string]*models.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.TestQuestion{}).Where("section_id = ?", sectionID).Count(&count).Error; err != nil {
		return 0, err
	}

	placements := make([]models.TestQuestion, 0, len(questions))
	seen := make(map[string]bool, len(req.QuestionIDs))
	for _, id := range req.QuestionIDs {
		q, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true

		payload, err := json.Marshal(SnapshotFromQuestion(q))
		if err != nil {
			return 0, fmt.Errorf("failed to marshal snapshot for question %s: %w", id, err)
		}

		placements = append(placements, models.TestQuestion{
			SectionID:        sectionID,
			QuestionID:       id,
			Marks:            req.Marks,
			NegativeMarks:    req.NegativeMarks,
			QuestionSnapshot: datatypes.JSON(payload),
			Position:         int(count) + len(placements),
		})
	}

	if len(placements) == 0 {
		return 0, nil
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "section_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"question_snapshot", "marks", "negative_marks", "updated_at"}),
	}).Create(&placements).Error
	if err != nil {
		return 0, err
	}

	s.invalidateTree(ctx, section.TestID)
	return len(placements), nil
}

// UpdatePlacementMarks overrides the marking policy of one placement. When
// the test does not allow negative marking the penalty is forced to zero.
func (s *CatalogService) UpdatePlacementMarks(ctx context.Context, placementID string, req *UpdateMarksRequest) (*models.TestQuestion, error) {
	var placement models.TestQuestion
	if err := s.db.WithContext(ctx).First(&placement, "id = ?", placementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlacementNotFound
		}
		return nil, err
	}

	var section models.TestSection
	if err := s.db.WithContext(ctx).First(&section, "id = ?", placement.SectionID).Error; err != nil {
		return nil, fmt.Errorf("failed to load section: %w", err)
	}
	var test models.Test
	if err := s.db.WithContext(ctx).First(&test, "id = ?", section.TestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}

	if !test.AllowNegative && req.NegativeMarks != nil && *req.NegativeMarks > 0 {
		return nil, ErrNegativeNotAllowed
	}

	updates := map[string]interface{}{}
	if req.Marks != nil {
		updates["marks"] = *req.Marks
	}
	if test.AllowNegative {
		if req.NegativeMarks != nil {
			updates["negative_marks"] = *req.NegativeMarks
		}
	} else {
		updates["negative_marks"] = 0
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&placement).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	s.invalidateTree(ctx, test.ID)

	if err := s.db.WithContext(ctx).First(&placement, "id = ?", placementID).Error; err != nil {
		return nil, err
	}
	return &placement, nil
}

func (s *CatalogService) RemovePlacement(ctx context.Context, placementID string) error {
	var placement models.TestQuestion
	if err := s.db.WithContext(ctx).First(&placement, "id = ?", placementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPlacementNotFound
		}
		return err
	}

	var section models.TestSection
	if err := s.db.WithContext(ctx).First(&section, "id = ?", placement.SectionID).Error; err != nil {
		return fmt.Errorf("failed to load section: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&placement).Error; err != nil {
		return err
	}

	s.invalidateTree(ctx, section.TestID)
	return nil
}

func (s *CatalogService) GetTest(ctx context.Context, id string) (*models.Test, error) {
	var test models.Test
	err := s.db.WithContext(ctx).
		Preload("Sections", orderByPosition).
		Preload("Sections.Questions", orderByPosition).
		First(&test, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}
	return &test, nil
}

// LoadTree returns the test resolved for grading, from the cache when
// possible. Snapshot fallback to the live question happens here, once.
func (s *CatalogService) LoadTree(ctx context.Context, testID string) (*TestTree, error) {
	if tree := s.getCachedTree(ctx, testID); tree != nil {
		return tree, nil
	}

	test, err := s.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	// Live questions are only needed for placements without a snapshot.
	var missing []string
	for _, section := range test.Sections {
		for _, placement := range section.Questions {
			if !hasSnapshot(placement.QuestionSnapshot) {
				missing = append(missing, placement.QuestionID)
			}
		}
	}

	live := map[string]*models.Question{}
	if len(missing) > 0 {
		var questions []models.Question
		err := s.db.WithContext(ctx).
			Preload("Options", orderByPosition).
			Preload("Attachments").
			Preload("Children", orderByPosition).
			Preload("Children.Options", orderByPosition).
			Preload("Children.Attachments").
			Where("id IN ?", missing).
			Find(&questions).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load live questions: %w", err)
		}
		for i := range questions {
			live[questions[i].ID] = &questions[i]
		}
	}

	tree := &TestTree{
		TestID:        test.ID,
		AllowNegative: test.AllowNegative,
		Sections:      make([]TreeSection, 0, len(test.Sections)),
	}

	for _, section := range test.Sections {
		ts := TreeSection{
			ID:            section.ID,
			Name:          section.Name,
			MarksPerQn:    section.MarksPerQn,
			NegativeMarks: section.NegativeMarks,
			Placements:    make([]TreePlacement, 0, len(section.Questions)),
		}

		for i := range section.Questions {
			placement := &section.Questions[i]
			snap, err := ResolveSnapshot(placement, live[placement.QuestionID])
			if err != nil {
				log.Printf("[catalog] test %s: cannot resolve snapshot for placement %s: %v", test.ID, placement.ID, err)
				snap = nil
			}
			ts.Placements = append(ts.Placements, TreePlacement{
				ID:            placement.ID,
				QuestionID:    placement.QuestionID,
				Marks:         placement.Marks,
				NegativeMarks: placement.NegativeMarks,
				Snapshot:      snap,
			})
		}

		tree.Sections = append(tree.Sections, ts)
	}

	s.storeTree(ctx, tree)
	return tree, nil
}

func treeCacheKey(testID string) string {
	return "test:tree:" + testID
}

func (s *CatalogService) storeTree(ctx context.Context, tree *TestTree) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(tree)
	if err != nil {
		log.Printf("[catalog] failed to marshal tree for %s: %v", tree.TestID, err)
		return
	}

	if err := s.redis.Set(ctx, treeCacheKey(tree.TestID), data, s.cacheTTL).Err(); err != nil {
		log.Printf("[catalog] failed to cache tree for %s: %v", tree.TestID, err)
	}
}

func (s *CatalogService) getCachedTree(ctx context.Context, testID string) *TestTree {
	if s.redis == nil || s.cacheTTL <= 0 {
		return nil
	}

	data, err := s.redis.Get(ctx, treeCacheKey(testID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[catalog] redis error getting tree for %s: %v", testID, err)
		}
		return nil
	}

	var tree TestTree
	if err := json.Unmarshal(data, &tree); err != nil {
		log.Printf("[catalog] failed to unmarshal cached tree for %s: %v", testID, err)
		return nil
	}
	return &tree
}

func (s *CatalogService) invalidateTree(ctx context.Context, testID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, treeCacheKey(testID)).Err(); err != nil {
		log.Printf("[catalog] failed to invalidate tree for %s: %v", testID, err)
	}
}
