package reputation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/internal/users"
	"github.com/angelmondragon/cardtrove-backend/pkg/db"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service covers reviews, reports, suspensions and blocks.
type Service interface {
	SubmitReview(ctx context.Context, input SubmitReviewInput) (*ReviewDTO, error)
	ListSellerReviews(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ReviewList, error)
	SubmitReport(ctx context.Context, input SubmitReportInput) (*ReportDTO, error)
	ResolveReport(ctx context.Context, adminID, reportID uuid.UUID, resolution enums.ReportStatus) (*ReportDTO, error)
	Block(ctx context.Context, blockerID, blockedID uuid.UUID) error
	Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error
	IsBlocked(ctx context.Context, a, b uuid.UUID) (bool, error)
	RecordFirstSale(ctx context.Context, tx *gorm.DB, sellerID, orderID uuid.UUID) error
}

type SubmitReviewInput struct {
	OrderID    uuid.UUID
	ReviewerID uuid.UUID
	Rating     int
	Comment    *string
}

type SubmitReportInput struct {
	ReporterID uuid.UUID
	TargetType enums.ReportTargetType
	TargetID   uuid.UUID
	Reason     string
	Details    *string
}

// ServiceParams wires the reputation service.
type ServiceParams struct {
	Repo                Repository
	Users               *users.Repository
	Tx                  txRunner
	Outbox              outboxPublisher
	Logger              *logger.Logger
	ReportWindow        time.Duration
	SuspensionThreshold int
	Now                 func() time.Time
}

type service struct {
	repo      Repository
	users     *users.Repository
	tx        txRunner
	outbox    outboxPublisher
	logg      *logger.Logger
	window    time.Duration
	threshold int
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reputation repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.ReportWindow <= 0 {
		return nil, fmt.Errorf("report window must be positive")
	}
	if params.SuspensionThreshold <= 0 {
		return nil, fmt.Errorf("suspension threshold must be positive")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		users:     params.Users,
		tx:        params.Tx,
		outbox:    params.Outbox,
		logg:      params.Logger,
		window:    params.ReportWindow,
		threshold: params.SuspensionThreshold,
		now:       now,
	}, nil
}

func (s *service) SubmitReview(ctx context.Context, input SubmitReviewInput) (*ReviewDTO, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	var review *models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
		}
		if order.BuyerID != input.ReviewerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer may review this order")
		}
		if order.Status != enums.OrderStatusDelivered && order.Status != enums.OrderStatusComplete {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been delivered")
		}
		exists, err := repo.ReviewExistsForOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check review")
		}
		if exists {
			return errDuplicateReview()
		}

		review = &models.Review{
			ID:         uuid.New(),
			OrderID:    order.ID,
			ReviewerID: input.ReviewerID,
			RevieweeID: order.SellerID,
			Rating:     input.Rating,
			Comment:    trimmedPtr(input.Comment),
			CreatedAt:  s.now(),
		}
		if err := repo.CreateReview(ctx, review); err != nil {
			if db.IsUniqueViolation(err, "") {
				return errDuplicateReview()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert review")
		}

		rating, count, err := repo.SellerRatingAggregate(ctx, order.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: aggregate rating")
		}
		if err := s.users.WithTx(tx).UpdateSellerRating(ctx, order.SellerID, rating, count); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update seller rating")
		}

		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewCreated,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         userActor(input.ReviewerID),
			Data: payloads.ReviewCreatedEvent{
				ReviewID:     review.ID,
				OrderID:      order.ID,
				ReviewerID:   review.ReviewerID,
				RevieweeID:   review.RevieweeID,
				Rating:       review.Rating,
				SellerRating: rating.StringFixed(2),
				ReviewCount:  count,
			},
		})
	})
	if err != nil {
		return nil, asTyped(err, "submit review")
	}
	return NewReviewDTO(review), nil
}

func (s *service) ListSellerReviews(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*ReviewList, error) {
	window, err := params.Resolve()
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListReviews(ctx, sellerID, window.Cursor, window.Fetch())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	rows, nextCursor := pagination.Trim(rows, window, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	items := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewReviewDTO(&rows[i]))
	}
	return &ReviewList{Reviews: items, NextCursor: nextCursor}, nil
}

func (s *service) SubmitReport(ctx context.Context, input SubmitReportInput) (*ReportDTO, error) {
	if !input.TargetType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown report target type")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	targetUserID, err := s.resolveTargetUser(ctx, input.TargetType, input.TargetID)
	if err != nil {
		return nil, err
	}
	if targetUserID == input.ReporterID {
		return nil, pkgerrors.NewWithReason(pkgerrors.CodeValidation, ReasonSelfReport, "cannot report yourself")
	}

	report := &models.Report{
		ID:           uuid.New(),
		ReporterID:   input.ReporterID,
		TargetType:   input.TargetType,
		TargetID:     input.TargetID,
		TargetUserID: targetUserID,
		Reason:       reason,
		Details:      trimmedPtr(input.Details),
		Status:       enums.ReportStatusOpen,
		CreatedAt:    s.now(),
	}
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateReport(ctx, report); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert report")
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReportCreated,
			AggregateType: enums.AggregateReport,
			AggregateID:   report.ID,
			Actor:         userActor(input.ReporterID),
			Data: payloads.ReportCreatedEvent{
				ReportID:     report.ID,
				ReporterID:   report.ReporterID,
				TargetType:   report.TargetType,
				TargetID:     report.TargetID,
				TargetUserID: report.TargetUserID,
				Reason:       report.Reason,
			},
		})
	}); err != nil {
		return nil, asTyped(err, "submit report")
	}

	if err := s.evaluateSuspension(ctx, targetUserID); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"target_user_id": targetUserID.String(),
			"report_id":      report.ID.String(),
		})
		s.logg.Error(logCtx, "suspension evaluation failed", err)
	}
	return NewReportDTO(report), nil
}

// evaluateSuspension suspends the target once the distinct open reporters inside the
// window reach the threshold. A user that is already suspended is left untouched.
func (s *service) evaluateSuspension(ctx context.Context, targetUserID uuid.UUID) error {
	since := s.now().Add(-s.window)
	reporters, err := s.repo.CountDistinctOpenReporters(ctx, targetUserID, since)
	if err != nil {
		return fmt.Errorf("count reporters: %w", err)
	}
	if reporters < int64(s.threshold) {
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		changed, err := s.users.WithTx(tx).Suspend(ctx, targetUserID, s.now())
		if err != nil {
			return fmt.Errorf("suspend user: %w", err)
		}
		if !changed {
			return nil
		}
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "user_id", targetUserID.String()), "user suspended by report threshold")
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSellerSuspended,
			AggregateType: enums.AggregateUser,
			AggregateID:   targetUserID,
			Data: payloads.SellerSuspendedEvent{
				UserID:            targetUserID,
				DistinctReporters: reporters,
				Threshold:         s.threshold,
			},
		})
	})
}

func (s *service) resolveTargetUser(ctx context.Context, targetType enums.ReportTargetType, targetID uuid.UUID) (uuid.UUID, error) {
	switch targetType {
	case enums.ReportTargetUser:
		user, err := s.users.FindByID(ctx, targetID)
		if err != nil {
			return uuid.Nil, notFoundOr(err, "user not found", "load user")
		}
		return user.ID, nil
	case enums.ReportTargetListing:
		listing, err := s.repo.FindListing(ctx, targetID)
		if err != nil {
			return uuid.Nil, notFoundOr(err, "listing not found", "load listing")
		}
		return listing.SellerID, nil
	case enums.ReportTargetOrder:
		order, err := s.repo.FindOrder(ctx, targetID)
		if err != nil {
			return uuid.Nil, notFoundOr(err, "order not found", "load order")
		}
		return order.SellerID, nil
	}
	return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown report target type")
}

func (s *service) ResolveReport(ctx context.Context, adminID, reportID uuid.UUID, resolution enums.ReportStatus) (*ReportDTO, error) {
	if resolution != enums.ReportStatusResolved && resolution != enums.ReportStatusDismissed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resolution must be resolved or dismissed")
	}
	if _, err := s.repo.FindReport(ctx, reportID); err != nil {
		return nil, notFoundOr(err, "report not found", "load report")
	}
	closed, err := s.repo.CloseReport(ctx, reportID, resolution, adminID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close report")
	}
	if !closed {
		return nil, pkgerrors.NewWithReason(pkgerrors.CodeStateConflict, ReasonReportClosed, "report is already closed")
	}
	report, err := s.repo.FindReport(ctx, reportID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload report")
	}
	return NewReportDTO(report), nil
}

func (s *service) Block(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if blockerID == blockedID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot block yourself")
	}
	if _, err := s.users.FindByID(ctx, blockedID); err != nil {
		return notFoundOr(err, "user not found", "load user")
	}
	block := &models.Block{
		ID:        uuid.New(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateBlock(ctx, block); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create block")
	}
	return nil
}

func (s *service) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if err := s.repo.DeleteBlock(ctx, blockerID, blockedID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete block")
	}
	return nil
}

// IsBlocked reports whether either user has blocked the other.
func (s *service) IsBlocked(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if a == b {
		return false, nil
	}
	blocked, err := s.repo.BlockExists(ctx, a, b)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check block")
	}
	return blocked, nil
}

// RecordFirstSale stamps first_sale_at inside the caller's transaction.
func (s *service) RecordFirstSale(ctx context.Context, tx *gorm.DB, sellerID, orderID uuid.UUID) error {
	changed, err := s.users.WithTx(tx).MarkFirstSale(ctx, sellerID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: mark first sale")
	}
	if !changed {
		return nil
	}
	return s.emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSellerFirstSale,
		AggregateType: enums.AggregateUser,
		AggregateID:   sellerID,
		Data:          payloads.SellerFirstSaleEvent{UserID: sellerID, OrderID: orderID},
	})
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(event.EventType))
	}
	return nil
}

func userActor(id uuid.UUID) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: id, Role: string(enums.RoleUser)}
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func asTyped(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
