package offers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

var expirableStatuses = []enums.OfferStatus{enums.OfferStatusPending, enums.OfferStatusCountered}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an offers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).First(&offer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) HasPending(ctx context.Context, listingID, buyerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("listing_id = ? AND buyer_id = ? AND status = ?", listingID, buyerID, enums.OfferStatusPending).
		Count(&count).Error
	return count > 0, err
}

// TransitionPending moves a still-pending, unexpired offer to the target status.
// A false result means another actor or the clock got there first.
func (r *repository) TransitionPending(ctx context.Context, id uuid.UUID, now time.Time, to enums.OfferStatus, updates map[string]any) (bool, error) {
	values := map[string]any{
		"status":       to,
		"responded_at": now,
		"updated_at":   now,
	}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND status = ? AND expires_at >= ?", id, enums.OfferStatusPending, now).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ExpireIfDue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND status IN ? AND expires_at < ?", id, expirableStatuses, now).
		Updates(map[string]any{"status": enums.OfferStatusExpired, "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ExpireDue(ctx context.Context, filter expiryFilter, now time.Time) (int64, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("status IN ? AND expires_at < ?", expirableStatuses, now)
	if filter.listingID != nil {
		qb = qb.Where("listing_id = ?", *filter.listingID)
	}
	if filter.buyerID != nil {
		qb = qb.Where("buyer_id = ?", *filter.buyerID)
	}
	res := qb.Updates(map[string]any{"status": enums.OfferStatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *repository) List(ctx context.Context, query listQuery) ([]models.Offer, error) {
	qb := r.db.WithContext(ctx).Model(&models.Offer{})
	if query.listingID != nil {
		qb = qb.Where("listing_id = ?", *query.listingID)
	}
	if query.buyerID != nil {
		qb = qb.Where("buyer_id = ?", *query.buyerID)
	}
	if query.cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", query.cursor.CreatedAt, query.cursor.CreatedAt, query.cursor.ID)
	}
	var rows []models.Offer
	err := qb.Order("created_at DESC").Order("id DESC").Limit(query.limit).Find(&rows).Error
	return rows, err
}
