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

// Repository defines persistence for reviews, reports and blocks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)

	CreateReview(ctx context.Context, review *models.Review) error
	ReviewExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	SellerRatingAggregate(ctx context.Context, sellerID uuid.UUID) (decimal.Decimal, int, error)
	ListReviews(ctx context.Context, sellerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Review, error)

	CreateReport(ctx context.Context, report *models.Report) error
	FindReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	CountDistinctOpenReporters(ctx context.Context, targetUserID uuid.UUID, since time.Time) (int64, error)
	CloseReport(ctx context.Context, id uuid.UUID, status enums.ReportStatus, resolvedBy uuid.UUID, at time.Time) (bool, error)

	CreateBlock(ctx context.Context, block *models.Block) error
	DeleteBlock(ctx context.Context, blockerID, blockedID uuid.UUID) error
	BlockExists(ctx context.Context, a, b uuid.UUID) (bool, error)
}
