package orders

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

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "payment_session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Order, error) {
	qb := r.db.WithContext(ctx).Model(&models.Order{})
	if query.BuyerID != nil {
		qb = qb.Where("buyer_id = ?", *query.BuyerID)
	}
	if query.SellerID != nil {
		qb = qb.Where("seller_id = ?", *query.SellerID)
	}
	if query.Status != nil {
		qb = qb.Where("status = ?", *query.Status)
	}
	if query.Cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", query.Cursor.CreatedAt, query.Cursor.CreatedAt, query.Cursor.ID)
	}
	var rows []models.Order
	err := qb.Order("created_at DESC").Order("id DESC").Limit(query.Limit).Find(&rows).Error
	return rows, err
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// HasLiveOrderForOffer reports whether a non-cancelled order already uses the offer price.
func (r *repository) HasLiveOrderForOffer(ctx context.Context, offerID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("offer_id = ? AND status <> ?", offerID, enums.OrderStatusCancelled).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) SettleCancelled(ctx context.Context, id uuid.UUID, paymentIntentID string, at time.Time) (bool, error) {
	updates := map[string]any{
		"payment_status": enums.PaymentStatusSucceeded,
		"updated_at":     at,
	}
	if paymentIntentID != "" {
		updates["payment_intent_id"] = paymentIntentID
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_status = ?", id, enums.OrderStatusCancelled, enums.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
