package repository

import (
	"context"

	"askbox/internal/models"

	"gorm.io/gorm"
)

// QuestionRepository defines persistence operations for questions.
type QuestionRepository interface {
	Create(ctx context.Context, q *models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Question, error)
	ListByAsker(ctx context.Context, askerID string, limit, offset int) ([]models.Question, error)
	Delete(ctx context.Context, id uint) (*models.Question, error)
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) Create(ctx context.Context, q *models.Question) error {
	if err := r.db.WithContext(ctx).Create(q).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var q models.Question
	if err := readDB(r.db).WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, notFoundOr(err, "Question", id)
	}
	return &q, nil
}

func (r *questionRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Question, error) {
	return r.list(ctx, "recipient_id = ?", recipientID, limit, offset)
}

func (r *questionRepository) ListByAsker(ctx context.Context, askerID string, limit, offset int) ([]models.Question, error) {
	return r.list(ctx, "from_id = ?", askerID, limit, offset)
}

func (r *questionRepository) list(ctx context.Context, cond string, profileID string, limit, offset int) ([]models.Question, error) {
	questions := []models.Question{}
	if offset < 0 {
		offset = 0
	}
	if err := readDB(r.db).WithContext(ctx).
		Where(cond, profileID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Offset(offset).
		Find(&questions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return questions, nil
}

// Delete removes the question. Posts answering it keep their content and lose
// the reference.
func (r *questionRepository) Delete(ctx context.Context, id uint) (*models.Question, error) {
	var q models.Question
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&q, id).Error; err != nil {
			return notFoundOr(err, "Question", id)
		}
		if err := tx.Model(&models.Post{}).Where("question_id = ?", id).Update("question_id", nil).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Delete(&models.Question{}, id).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}
