package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/agara/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PushSubscriptionRepository persists push endpoints keyed by (user_id, endpoint)
type PushSubscriptionRepository interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error)
	GetByUserEndpoint(ctx context.Context, userID, endpoint string) (*models.PushSubscription, error)
	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserEndpoint(ctx context.Context, userID, endpoint string) (int64, error)
}

type postgresPushSubscriptionRepository struct {
	db *gorm.DB
}

func NewPostgresPushSubscriptionRepository(db *gorm.DB) PushSubscriptionRepository {
	return &postgresPushSubscriptionRepository{db: db}
}

// Upsert inserts the subscription or refreshes the keys of the existing (user_id, endpoint) row.
// The unique index makes concurrent registrations of the same endpoint collapse into one row.
func (r *postgresPushSubscriptionRepository) Upsert(ctx context.Context, sub *models.PushSubscription) (*models.PushSubscription, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "platform"}),
	}).Create(sub).Error
	if err != nil {
		return nil, err
	}
	// On conflict the generated id was discarded; read back the stored row.
	return r.GetByUserEndpoint(ctx, sub.UserID, sub.Endpoint)
}

func (r *postgresPushSubscriptionRepository) GetByUserEndpoint(ctx context.Context, userID, endpoint string) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	err := r.db.WithContext(ctx).Where("user_id = ? AND endpoint = ?", userID, endpoint).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *postgresPushSubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

func (r *postgresPushSubscriptionRepository) DeleteByID(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PushSubscription{}).Error
}

// DeleteByUserEndpoint removes the matching rows and reports how many were deleted. Zero is not an error.
func (r *postgresPushSubscriptionRepository) DeleteByUserEndpoint(ctx context.Context, userID, endpoint string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND endpoint = ?", userID, endpoint).Delete(&models.PushSubscription{})
	return res.RowsAffected, res.Error
}
