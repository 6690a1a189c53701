package services

import (
	"context"
	"errors"

	"github.com/stgeorges/biolms/model"
	"gorm.io/gorm"
)

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrTopicNotFound  = errors.New("topic not found")
	ErrLessonNotFound = errors.New("lesson not found")
	ErrWrongParent    = errors.New("parent does not belong to the expected course")
)

// CurriculumService manages the course -> module -> topic -> lesson
// tree. Every child write validates that the parent chain leads back to
// the claimed course, so a topic can never be attached under another
// course's module.
type CurriculumService struct {
	db *gorm.DB
}

// NewCurriculumService creates a new curriculum service
func NewCurriculumService(db *gorm.DB) *CurriculumService {
	return &CurriculumService{db: db}
}

// CourseTree loads the full curriculum of a course ordered by the
// position column at every level.
func (s *CurriculumService) CourseTree(ctx context.Context, courseID uint) ([]model.CourseModule, error) {
	var modules []model.CourseModule
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("\"order\" ASC, id ASC").
		Preload("Topics", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"order\" ASC, id ASC")
		}).
		Preload("Topics.Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"order\" ASC, id ASC")
		}).
		Find(&modules).Error
	return modules, err
}

// CreateModule appends a module to a course. A zero order places it
// after the current last module.
func (s *CurriculumService) CreateModule(ctx context.Context, courseID uint, title, description string, order int) (*model.CourseModule, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}

	if order == 0 {
		order = s.nextOrder(ctx, &model.CourseModule{}, "course_id = ?", courseID)
	}

	module := &model.CourseModule{
		CourseID:    courseID,
		Title:       title,
		Description: description,
		Order:       order,
	}
	if err := s.db.WithContext(ctx).Create(module).Error; err != nil {
		return nil, err
	}
	return module, nil
}

// UpdateModule applies partial updates to a module
func (s *CurriculumService) UpdateModule(ctx context.Context, moduleID uint, updates map[string]interface{}) (*model.CourseModule, error) {
	var module model.CourseModule
	if err := s.db.WithContext(ctx).First(&module, moduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&module).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &module, nil
}

// DeleteModule removes a module and its whole subtree
func (s *CurriculumService) DeleteModule(ctx context.Context, moduleID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var module model.CourseModule
		if err := tx.First(&module, moduleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrModuleNotFound
			}
			return err
		}

		var topicIDs []uint
		if err := tx.Model(&model.Topic{}).Where("module_id = ?", moduleID).Pluck("id", &topicIDs).Error; err != nil {
			return err
		}
		if len(topicIDs) > 0 {
			if err := tx.Where("topic_id IN ?", topicIDs).Delete(&model.Lesson{}).Error; err != nil {
				return err
			}
			if err := tx.Where("module_id = ?", moduleID).Delete(&model.Topic{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&module).Error
	})
}

// CreateTopic appends a topic under a module of the given course
func (s *CurriculumService) CreateTopic(ctx context.Context, courseID, moduleID uint, title, description string, order int) (*model.Topic, error) {
	module, err := s.moduleInCourse(ctx, courseID, moduleID)
	if err != nil {
		return nil, err
	}

	if order == 0 {
		order = s.nextOrder(ctx, &model.Topic{}, "module_id = ?", module.ID)
	}

	topic := &model.Topic{
		ModuleID:    module.ID,
		Title:       title,
		Description: description,
		Order:       order,
	}
	if err := s.db.WithContext(ctx).Create(topic).Error; err != nil {
		return nil, err
	}
	return topic, nil
}

// UpdateTopic applies partial updates to a topic
func (s *CurriculumService) UpdateTopic(ctx context.Context, topicID uint, updates map[string]interface{}) (*model.Topic, error) {
	var topic model.Topic
	if err := s.db.WithContext(ctx).First(&topic, topicID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&topic).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

// DeleteTopic removes a topic and its lessons
func (s *CurriculumService) DeleteTopic(ctx context.Context, topicID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var topic model.Topic
		if err := tx.First(&topic, topicID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTopicNotFound
			}
			return err
		}
		if err := tx.Where("topic_id = ?", topicID).Delete(&model.Lesson{}).Error; err != nil {
			return err
		}
		return tx.Delete(&topic).Error
	})
}

// CreateLesson appends a lesson under a topic, validating the
// topic -> module -> course chain first.
func (s *CurriculumService) CreateLesson(ctx context.Context, courseID, topicID uint, lesson *model.Lesson) (*model.Lesson, error) {
	topic, err := s.topicInCourse(ctx, courseID, topicID)
	if err != nil {
		return nil, err
	}

	lesson.TopicID = topic.ID
	if lesson.Order == 0 {
		lesson.Order = s.nextOrder(ctx, &model.Lesson{}, "topic_id = ?", topic.ID)
	}

	if err := s.db.WithContext(ctx).Create(lesson).Error; err != nil {
		return nil, err
	}
	return lesson, nil
}

// GetLesson returns a lesson by ID together with its course ID so the
// caller can run an access check.
func (s *CurriculumService) GetLesson(ctx context.Context, lessonID uint) (*model.Lesson, uint, error) {
	var lesson model.Lesson
	if err := s.db.WithContext(ctx).First(&lesson, lessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrLessonNotFound
		}
		return nil, 0, err
	}

	var topic model.Topic
	if err := s.db.WithContext(ctx).First(&topic, lesson.TopicID).Error; err != nil {
		return nil, 0, err
	}
	var module model.CourseModule
	if err := s.db.WithContext(ctx).First(&module, topic.ModuleID).Error; err != nil {
		return nil, 0, err
	}
	return &lesson, module.CourseID, nil
}

// UpdateLesson applies partial updates to a lesson
func (s *CurriculumService) UpdateLesson(ctx context.Context, lessonID uint, updates map[string]interface{}) (*model.Lesson, error) {
	var lesson model.Lesson
	if err := s.db.WithContext(ctx).First(&lesson, lessonID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&lesson).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

// DeleteLesson removes a single lesson
func (s *CurriculumService) DeleteLesson(ctx context.Context, lessonID uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Lesson{}, lessonID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLessonNotFound
	}
	return nil
}

// MoveModule re-inserts a module at the given sibling position,
// shifting the other modules of the course to keep positions dense.
func (s *CurriculumService) MoveModule(ctx context.Context, moduleID uint, position int) (*model.CourseModule, error) {
	var module model.CourseModule
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&module, moduleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrModuleNotFound
			}
			return err
		}

		if err := closeGap(tx, &model.CourseModule{}, "course_id = ?", module.CourseID, module.Order); err != nil {
			return err
		}

		var siblings int64
		if err := tx.Model(&model.CourseModule{}).
			Where("course_id = ? AND id <> ?", module.CourseID, module.ID).
			Count(&siblings).Error; err != nil {
			return err
		}
		position = clampPosition(position, int(siblings))

		if err := openSlot(tx, &model.CourseModule{}, "course_id = ?", module.CourseID, module.ID, position); err != nil {
			return err
		}

		module.Order = position
		return tx.Model(&module).Update("order", position).Error
	})
	if err != nil {
		return nil, err
	}
	return &module, nil
}

// MoveTopic re-inserts a topic at the given position, optionally under
// a different module. Reparenting must stay within the same course.
func (s *CurriculumService) MoveTopic(ctx context.Context, topicID uint, newModuleID *uint, position int) (*model.Topic, error) {
	var topic model.Topic
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&topic, topicID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTopicNotFound
			}
			return err
		}

		targetModuleID := topic.ModuleID
		if newModuleID != nil && *newModuleID != topic.ModuleID {
			var oldModule, newModule model.CourseModule
			if err := tx.First(&oldModule, topic.ModuleID).Error; err != nil {
				return err
			}
			if err := tx.First(&newModule, *newModuleID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrModuleNotFound
				}
				return err
			}
			if newModule.CourseID != oldModule.CourseID {
				return ErrWrongParent
			}
			targetModuleID = newModule.ID
		}

		if err := closeGap(tx, &model.Topic{}, "module_id = ?", topic.ModuleID, topic.Order); err != nil {
			return err
		}

		var siblings int64
		if err := tx.Model(&model.Topic{}).
			Where("module_id = ? AND id <> ?", targetModuleID, topic.ID).
			Count(&siblings).Error; err != nil {
			return err
		}
		position = clampPosition(position, int(siblings))

		if err := openSlot(tx, &model.Topic{}, "module_id = ?", targetModuleID, topic.ID, position); err != nil {
			return err
		}

		topic.ModuleID = targetModuleID
		topic.Order = position
		return tx.Model(&topic).Updates(map[string]interface{}{
			"module_id": targetModuleID,
			"order":     position,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &topic, nil
}

// MoveLesson re-inserts a lesson at the given position, optionally
// under a different topic of the same course.
func (s *CurriculumService) MoveLesson(ctx context.Context, lessonID uint, newTopicID *uint, position int) (*model.Lesson, error) {
	var lesson model.Lesson
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&lesson, lessonID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLessonNotFound
			}
			return err
		}

		targetTopicID := lesson.TopicID
		if newTopicID != nil && *newTopicID != lesson.TopicID {
			oldCourse, err := s.CourseIDForTopic(ctx, lesson.TopicID)
			if err != nil {
				return err
			}
			newCourse, err := s.CourseIDForTopic(ctx, *newTopicID)
			if err != nil {
				return err
			}
			if newCourse != oldCourse {
				return ErrWrongParent
			}
			targetTopicID = *newTopicID
		}

		if err := closeGap(tx, &model.Lesson{}, "topic_id = ?", lesson.TopicID, lesson.Order); err != nil {
			return err
		}

		var siblings int64
		if err := tx.Model(&model.Lesson{}).
			Where("topic_id = ? AND id <> ?", targetTopicID, lesson.ID).
			Count(&siblings).Error; err != nil {
			return err
		}
		position = clampPosition(position, int(siblings))

		if err := openSlot(tx, &model.Lesson{}, "topic_id = ?", targetTopicID, lesson.ID, position); err != nil {
			return err
		}

		lesson.TopicID = targetTopicID
		lesson.Order = position
		return tx.Model(&lesson).Updates(map[string]interface{}{
			"topic_id": targetTopicID,
			"order":    position,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// closeGap decrements the order of siblings after the removed position
func closeGap(tx *gorm.DB, mdl interface{}, parentCond string, parentID uint, oldOrder int) error {
	return tx.Model(mdl).
		Where(parentCond+" AND \"order\" > ?", parentID, oldOrder).
		Update("order", gorm.Expr("\"order\" - 1")).Error
}

// openSlot increments the order of siblings at and after the target position
func openSlot(tx *gorm.DB, mdl interface{}, parentCond string, parentID uint, selfID uint, position int) error {
	return tx.Model(mdl).
		Where(parentCond+" AND id <> ? AND \"order\" >= ?", parentID, selfID, position).
		Update("order", gorm.Expr("\"order\" + 1")).Error
}

// clampPosition bounds a requested position to [1, siblings+1]
func clampPosition(position, siblings int) int {
	if position < 1 {
		return 1
	}
	if position > siblings+1 {
		return siblings + 1
	}
	return position
}

// CourseIDForModule resolves the owning course of a module
func (s *CurriculumService) CourseIDForModule(ctx context.Context, moduleID uint) (uint, error) {
	var module model.CourseModule
	if err := s.db.WithContext(ctx).First(&module, moduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrModuleNotFound
		}
		return 0, err
	}
	return module.CourseID, nil
}

// CourseIDForTopic resolves the owning course of a topic
func (s *CurriculumService) CourseIDForTopic(ctx context.Context, topicID uint) (uint, error) {
	var topic model.Topic
	if err := s.db.WithContext(ctx).First(&topic, topicID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrTopicNotFound
		}
		return 0, err
	}
	return s.CourseIDForModule(ctx, topic.ModuleID)
}

func (s *CurriculumService) moduleInCourse(ctx context.Context, courseID, moduleID uint) (*model.CourseModule, error) {
	var module model.CourseModule
	if err := s.db.WithContext(ctx).First(&module, moduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrModuleNotFound
		}
		return nil, err
	}
	if module.CourseID != courseID {
		return nil, ErrWrongParent
	}
	return &module, nil
}

func (s *CurriculumService) topicInCourse(ctx context.Context, courseID, topicID uint) (*model.Topic, error) {
	var topic model.Topic
	if err := s.db.WithContext(ctx).First(&topic, topicID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}
	if _, err := s.moduleInCourse(ctx, courseID, topic.ModuleID); err != nil {
		return nil, err
	}
	return &topic, nil
}

// nextOrder returns max(order)+1 for the given scope, starting at 1
func (s *CurriculumService) nextOrder(ctx context.Context, mdl interface{}, cond string, args ...interface{}) int {
	var max *int
	s.db.WithContext(ctx).Model(mdl).Where(cond, args...).
		Select("MAX(\"order\")").Scan(&max)
	if max == nil {
		return 1
	}
	return *max + 1
}
