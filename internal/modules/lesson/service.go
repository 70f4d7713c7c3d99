package lesson

import (
	"context"
	"errors"
	"strings"

	"github.com/edumorph/core/internal/models"
	"github.com/edumorph/core/internal/modules/pipeline"
	"github.com/edumorph/core/internal/modules/pipeline/artifact"
	"github.com/edumorph/core/internal/modules/pipeline/extract"
	"github.com/edumorph/core/internal/pkg/pagination"
	pkgredis "github.com/edumorph/core/internal/pkg/redis"
	"github.com/edumorph/core/internal/pkg/response"
	"github.com/edumorph/core/internal/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskTypeGenerate is the task queue type for lesson generation jobs.
const TaskTypeGenerate = "lesson_generate"

type generatePayload struct {
	LessonID   string `json:"lesson_id"`
	SourceType string `json:"source_type"`
}

type Service struct {
	db       *gorm.DB
	taskSvc  *taskqueue.Service
	pipe     *pipeline.Pipeline
	cache    bundleCache
	defaults artifact.Options
	logger   *zap.Logger
}

func NewService(db *gorm.DB, rc *pkgredis.Client, taskSvc *taskqueue.Service, pipe *pipeline.Pipeline, defaults artifact.Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:       db,
		taskSvc:  taskSvc,
		pipe:     pipe,
		cache:    bundleCache{rc: rc},
		defaults: defaults.Normalize(),
		logger:   logger,
	}
}

// IngestResult reports where an ingested lesson ended up: an existing ready
// lesson, a cache-served lesson, or a queued generation task.
type IngestResult struct {
	Lesson *models.LessonModel
	Task   *taskqueue.Task
	Reused bool
}

func (s *Service) IngestText(ctx context.Context, dto *IngestTextDTO) (*IngestResult, error) {
	payload := extract.Payload{
		Text:     dto.Text,
		Filename: strings.TrimSpace(dto.Filename),
		Title:    strings.TrimSpace(dto.Title),
	}
	return s.ingest(ctx, artifact.SourceText, payload, []byte(dto.Text), dto.Title, dto.Subject, dto.Options)
}

func (s *Service) IngestFile(ctx context.Context, sourceType artifact.SourceType, filename string, data []byte, title, subject string, opts *GenerationOptionsDTO) (*IngestResult, error) {
	payload := extract.Payload{
		Data:     data,
		Filename: strings.TrimSpace(filename),
		Title:    strings.TrimSpace(title),
	}
	return s.ingest(ctx, sourceType, payload, data, title, subject, opts)
}

func (s *Service) IngestLink(ctx context.Context, dto *IngestLinkDTO) (*IngestResult, error) {
	payload := extract.Payload{
		URL:   strings.TrimSpace(dto.URL),
		Title: strings.TrimSpace(dto.Title),
	}
	return s.ingest(ctx, artifact.SourceLink, payload, []byte(payload.URL), dto.Title, dto.Subject, dto.Options)
}

func (s *Service) ingest(ctx context.Context, sourceType artifact.SourceType, payload extract.Payload, content []byte, title, subject string, optsDTO *GenerationOptionsDTO) (*IngestResult, error) {
	opts := mergeOptions(s.defaults, optsDTO, strings.TrimSpace(subject))
	hash := contentHash(sourceType, content, opts)

	// Identical content already processed or in flight.
	var existing models.LessonModel
	err := s.db.WithContext(ctx).
		Where("content_hash = ? AND status IN ?", hash, []models.LessonStatus{
			models.LessonStatusReady, models.LessonStatusPending, models.LessonStatusProcessing,
		}).
		Order("created_at DESC").
		First(&existing).Error
	if err == nil {
		if existing.Status == models.LessonStatusReady {
			full, err := s.GetByID(ctx, existing.ID)
			if err != nil {
				return nil, err
			}
			return &IngestResult{Lesson: full, Reused: true}, nil
		}
		task, _ := s.findTaskForLesson(ctx, existing.ID)
		return &IngestResult{Lesson: &existing, Task: task, Reused: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	l := models.LessonModel{
		Title:       strings.TrimSpace(title),
		Subject:     strings.TrimSpace(subject),
		SourceType:  string(sourceType),
		SourceURL:   payload.URL,
		Status:      models.LessonStatusPending,
		ContentHash: hash,
	}

	// A cached bundle yields a ready lesson without touching the pipeline.
	if cached, ok := s.cache.get(ctx, hash); ok {
		if err := s.persistGenerated(ctx, &l, cached.Document, cached.Bundle); err != nil {
			return nil, err
		}
		s.logger.Info("lesson served from bundle cache",
			zap.String("lesson_id", l.ID),
			zap.String("source_type", string(sourceType)),
		)
		full, err := s.GetByID(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		return &IngestResult{Lesson: full}, nil
	}

	if err := s.db.WithContext(ctx).Create(&l).Error; err != nil {
		return nil, err
	}

	task, err := s.taskSvc.Enqueue(ctx, TaskTypeGenerate, generatePayload{
		LessonID:   l.ID,
		SourceType: string(sourceType),
	}, hash, l.ID)
	if err != nil {
		return nil, err
	}

	// A dedup hit returns the task of a concurrent identical ingest; only a
	// task created for this lesson starts a worker.
	if task != nil && task.Status == taskqueue.TaskPending && task.GroupKey == l.ID {
		go s.executeGenerate(context.Background(), task.ID, l.ID, hash, sourceType, payload, opts)
	}
	return &IngestResult{Lesson: &l, Task: task}, nil
}

func (s *Service) executeGenerate(ctx context.Context, taskID, lessonID, hash string, sourceType artifact.SourceType, payload extract.Payload, opts artifact.Options) {
	s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, nil, "")
	s.db.Model(&models.LessonModel{}).Where("id = ?", lessonID).
		Update("status", models.LessonStatusProcessing)

	res, err := s.pipe.Generate(ctx, sourceType, payload, opts)
	if err != nil {
		reason := failReason(err)
		s.logger.Warn("lesson generation failed",
			zap.String("lesson_id", lessonID),
			zap.String("source_type", string(sourceType)),
			zap.Error(err),
		)
		s.db.Model(&models.LessonModel{}).Where("id = ?", lessonID).Updates(map[string]interface{}{
			"status":      models.LessonStatusFailed,
			"fail_reason": reason,
		})
		s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, reason)
		return
	}

	var l models.LessonModel
	if err := s.db.First(&l, "id = ?", lessonID).Error; err != nil {
		s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, "lesson disappeared during generation")
		return
	}

	if err := s.persistGenerated(ctx, &l, res.Document, res.Bundle); err != nil {
		s.logger.Error("persist generated lesson", zap.String("lesson_id", lessonID), zap.Error(err))
		s.db.Model(&models.LessonModel{}).Where("id = ?", lessonID).Updates(map[string]interface{}{
			"status":      models.LessonStatusFailed,
			"fail_reason": "failed to store generated materials",
		})
		s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, err.Error())
		return
	}

	s.cache.set(ctx, hash, res.Document, res.Bundle)
	s.logger.Info("lesson generated",
		zap.String("lesson_id", lessonID),
		zap.String("generated_by", string(res.Bundle.GeneratedBy)),
		zap.Int("warnings", len(res.Bundle.Warnings)),
	)
	s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted, gin.H{"lesson_id": lessonID}, "")
}

// persistGenerated stores the document and bundle on the lesson row and
// replaces its flashcards and questions in one transaction. Creates the
// lesson row if it has no ID yet.
func (s *Service) persistGenerated(ctx context.Context, l *models.LessonModel, doc *artifact.SourceDocument, bundle *artifact.Bundle) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		l.Status = models.LessonStatusReady
		l.FailReason = ""
		l.RawText = doc.RawText
		l.DurationSeconds = doc.DurationSeconds
		l.Summary = bundle.Summary
		l.Notes = bundle.Notes
		l.KeyPoints = models.StringArray(bundle.KeyPoints)
		l.GeneratedBy = string(bundle.GeneratedBy)
		l.Warnings = models.StringArray(bundle.Warnings)
		if l.Title == "" {
			l.Title = doc.Title
		}

		if l.ID == "" {
			if err := tx.Create(l).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Save(l).Error; err != nil {
				return err
			}
			if err := tx.Where("lesson_id = ?", l.ID).Delete(&models.FlashcardModel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("lesson_id = ?", l.ID).Delete(&models.QuizQuestionModel{}).Error; err != nil {
				return err
			}
		}

		cards := flashcardModels(l.ID, bundle.Flashcards)
		if len(cards) > 0 {
			if err := tx.Create(&cards).Error; err != nil {
				return err
			}
		}
		questions := questionModels(l.ID, bundle.Questions)
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func flashcardModels(lessonID string, cards []artifact.Flashcard) []models.FlashcardModel {
	out := make([]models.FlashcardModel, 0, len(cards))
	for i, card := range cards {
		out = append(out, models.FlashcardModel{
			LessonID:   lessonID,
			Front:      card.Front,
			Back:       card.Back,
			Difficulty: string(card.Difficulty),
			Position:   i,
		})
	}
	return out
}

func questionModels(lessonID string, questions []artifact.QuizQuestion) []models.QuizQuestionModel {
	out := make([]models.QuizQuestionModel, 0, len(questions))
	for i, q := range questions {
		out = append(out, models.QuizQuestionModel{
			LessonID:     lessonID,
			Prompt:       q.Prompt,
			Choices:      models.StringArray(q.Choices),
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
			Position:     i,
		})
	}
	return out
}

func failReason(err error) string {
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case pipeline.ErrKindEmptyContent:
			return "no usable text could be extracted from the source"
		case pipeline.ErrKindUnsupportedFormat:
			return "the source format is not supported"
		}
	}
	return err.Error()
}

func (s *Service) findTaskForLesson(ctx context.Context, lessonID string) (*taskqueue.Task, error) {
	tasks, _, err := s.taskSvc.List(ctx, 1, 5, ptr(TaskTypeGenerate), nil)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.GroupKey == lessonID {
			return t, nil
		}
	}
	return nil, nil
}

func ptr[T any](v T) *T { return &v }

// ListFilter narrows List results.
type ListFilter struct {
	Subject    string
	Status     string
	SourceType string
}

func (s *Service) List(ctx context.Context, q pagination.Query, filter ListFilter) ([]models.LessonModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.LessonModel{}).Order("created_at DESC")
	if v := strings.TrimSpace(filter.Subject); v != "" {
		tx = tx.Where("subject = ?", v)
	}
	if v := strings.TrimSpace(filter.Status); v != "" {
		tx = tx.Where("status = ?", v)
	}
	if v := strings.TrimSpace(filter.SourceType); v != "" {
		tx = tx.Where("source_type = ?", v)
	}

	var lessons []models.LessonModel
	pag, err := pagination.Paginate(tx, q, &lessons)
	return lessons, pag, err
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.LessonModel, error) {
	var l models.LessonModel
	err := s.db.WithContext(ctx).
		Preload("Flashcards", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&l, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lesson_id = ?", id).Delete(&models.FlashcardModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("lesson_id = ?", id).Delete(&models.QuizQuestionModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.LessonModel{}, "id = ?", id).Error
	})
}

// Regenerate re-runs generation for an existing lesson from its stored text.
func (s *Service) Regenerate(ctx context.Context, id string, optsDTO *GenerationOptionsDTO) (*IngestResult, error) {
	l, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, nil
	}
	if strings.TrimSpace(l.RawText) == "" {
		return nil, errors.New("lesson has no stored text to regenerate from")
	}

	opts := mergeOptions(s.defaults, optsDTO, l.Subject)
	payload := extract.Payload{Text: l.RawText, Title: l.Title}
	hash := contentHash(artifact.SourceText, []byte(l.RawText), opts)

	s.db.WithContext(ctx).Model(l).Updates(map[string]interface{}{
		"status":       models.LessonStatusPending,
		"content_hash": hash,
	})

	task, err := s.taskSvc.Enqueue(ctx, TaskTypeGenerate, generatePayload{
		LessonID:   l.ID,
		SourceType: l.SourceType,
	}, hash, l.ID)
	if err != nil {
		return nil, err
	}
	if task != nil && task.Status == taskqueue.TaskPending && task.GroupKey == l.ID {
		go s.executeGenerate(context.Background(), task.ID, l.ID, hash, artifact.SourceText, payload, opts)
	}
	return &IngestResult{Lesson: l, Task: task}, nil
}
