package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
)

// Repository exposes the marketplace columns of the identity-owned users table.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Suspend flips marketplace_suspended once. It reports whether this call changed the row.
func (r *Repository) Suspend(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND marketplace_suspended = ?", id, false).
		Updates(map[string]any{
			"marketplace_suspended": true,
			"suspended_at":          at,
			"updated_at":            at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFirstSale sets first_sale_at when it is still empty. It reports whether this call set it.
func (r *Repository) MarkFirstSale(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND first_sale_at IS NULL", id).
		Updates(map[string]any{
			"first_sale_at": at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateSellerRating stores the recomputed aggregate rating.
func (r *Repository) UpdateSellerRating(ctx context.Context, id uuid.UUID, rating decimal.Decimal, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"seller_rating":       rating.StringFixed(2),
			"seller_review_count": count,
			"updated_at":          time.Now().UTC(),
		}).Error
}
