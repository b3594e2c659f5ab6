package reputation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reputation repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) CreateReview(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) ReviewExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Review{}).Where("order_id = ?", orderID).Count(&count).Error
	return count > 0, err
}

type ratingAggregate struct {
	Average decimal.NullDecimal `gorm:"column:average"`
	Total   int                 `gorm:"column:total"`
}

// SellerRatingAggregate returns AVG(rating) rounded to two places and COUNT(*).
func (r *repository) SellerRatingAggregate(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, int, error) {
	var agg ratingAggregate
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("AVG(rating) AS average, COUNT(*) AS total").
		Where("reviewee_id = ?", sellerID).
		Scan(&agg).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	if !agg.Average.Valid {
		return decimal.Zero, agg.Total, nil
	}
	return agg.Average.Decimal.Round(2), agg.Total, nil
}

func (r *repository) ListReviews(ctx context.Context, sellerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	qb := r.db.WithContext(ctx).Model(&models.Review{}).Where("reviewee_id = ?", sellerID)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Review
	err := qb.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *repository) CreateReport(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repository) FindReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// CountDistinctOpenReporters counts unique reporters with an open report against the user
// created at or after since.
func (r *repository) CountDistinctOpenReporters(ctx context.Context, targetUserID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("target_user_id = ? AND status = ? AND created_at >= ?", targetUserID, enums.ReportStatusOpen, since).
		Distinct("reporter_id").
		Count(&count).Error
	return count, err
}

func (r *repository) CloseReport(ctx context.Context, id uuid.UUID, status enums.ReportStatus, resolvedBy uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ? AND status = ?", id, enums.ReportStatusOpen).
		Updates(map[string]any{
			"status":      status,
			"resolved_by": resolvedBy,
			"resolved_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateBlock(ctx context.Context, block *models.Block) error {
	return r.db.WithContext(ctx).Create(block).Error
}

func (r *repository) DeleteBlock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.Block{}).Error
}

// BlockExists reports a block in either direction between a and b.
func (r *repository) BlockExists(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}
