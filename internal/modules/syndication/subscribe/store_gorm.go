package subscribe

import (
	"context"
	"errors"
	"time"

	"github.com/techknowlogia/core/internal/models"
	"gorm.io/gorm"
)

// GormStore keeps subscribers in the "subscribers" table. The *gorm.DB must be
// opened with TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey.
type GormStore struct{ db *gorm.DB }

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

// Migrate creates or updates the subscribers table.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&models.SubscriberModel{})
}

func (s *GormStore) first(ctx context.Context, query string, arg interface{}) (*models.SubscriberModel, error) {
	var sub models.SubscriberModel
	if err := s.db.WithContext(ctx).Where(query, arg).First(&sub).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &sub, nil
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (*models.SubscriberModel, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.SubscriberModel, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) FindByConfirmTokenHash(ctx context.Context, hash string) (*models.SubscriberModel, error) {
	if hash == "" {
		return nil, ErrNotFound
	}
	return s.first(ctx, "confirm_token_hash = ?", hash)
}

func (s *GormStore) Create(ctx context.Context, sub *models.SubscriberModel) error {
	return translateGormError(s.db.WithContext(ctx).Create(sub).Error)
}

// Save writes every column so cleared fields are persisted as NULL or empty.
func (s *GormStore) Save(ctx context.Context, sub *models.SubscriberModel) error {
	res := s.db.WithContext(ctx).
		Model(&models.SubscriberModel{}).
		Where("id = ?", sub.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(sub)
	if res.Error != nil {
		return translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.SubscriberModel{}).Where("id = ?", sub.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, filter ListFilter) ([]models.SubscriberModel, error) {
	q := s.db.WithContext(ctx).Model(&models.SubscriberModel{}).Order("created_at DESC").Order("id DESC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	out := make([]models.SubscriberModel, 0)
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Count(ctx context.Context, status string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.SubscriberModel{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SubscriberModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) PurgeExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&models.SubscriberModel{}).
		Where("status = ? AND confirm_token_hash <> '' AND confirm_token_expires_at < ?", models.SubscriberPending, before).
		Updates(map[string]interface{}{
			"confirm_token_hash":       "",
			"confirm_token_expires_at": nil,
		})
	return res.RowsAffected, res.Error
}

func translateGormError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
