package listings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a listings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// UpdateActive applies updates only while the listing is still active.
func (r *repository) UpdateActive(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, enums.ListingStatusActive).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ?", id, enums.ListingStatusActive).
		Updates(map[string]any{
			"status":       enums.ListingStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListActive(ctx context.Context, query listQuery) ([]models.Listing, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("status = ?", enums.ListingStatusActive)
	if query.cardID != nil {
		qb = qb.Where("card_id = ?", *query.cardID)
	}
	if query.sellerID != nil {
		qb = qb.Where("seller_id = ?", *query.sellerID)
	}
	if query.cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", query.cursor.CreatedAt, query.cursor.CreatedAt, query.cursor.ID)
	}
	var rows []models.Listing
	err := qb.Order("created_at DESC").Order("id DESC").Limit(query.limit).Find(&rows).Error
	return rows, err
}

// Decrement takes qty units in a single conditional statement. It reports false when
// fewer than qty units remain, which callers treat as an oversell. Reaching zero on an
// active listing marks it sold.
func (r *repository) Decrement(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
UPDATE listings
SET quantity_available = quantity_available - ?,
    status = CASE WHEN quantity_available - ? = 0 AND status = ? THEN ? ELSE status END,
    updated_at = ?
WHERE id = ? AND quantity_available >= ?`,
		qty, qty, enums.ListingStatusActive, enums.ListingStatusSold, time.Now().UTC(), id, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Restore returns qty units, never exceeding the listed quantity, and reactivates a
// sold listing.
func (r *repository) Restore(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
UPDATE listings
SET quantity_available = quantity_available + ?,
    status = CASE WHEN status = ? THEN ? ELSE status END,
    updated_at = ?
WHERE id = ? AND quantity_available + ? <= quantity`,
		qty, enums.ListingStatusSold, enums.ListingStatusActive, time.Now().UTC(), id, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
