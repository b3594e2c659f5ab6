package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/internal/listings"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
	"github.com/angelmondragon/cardtrove-backend/pkg/metrics"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PaymentProvider is the slice of the payment processor used after a cancellation.
type PaymentProvider interface {
	RefundPayment(ctx context.Context, paymentIntentID, reason string) (string, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

// Actor identifies the caller of an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// Service exposes order reads and the seller/buyer driven transitions.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params ListParams) (*OrderList, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params ListParams) (*OrderList, error)
	Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error)
	Complete(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
}

type ListParams struct {
	Status *enums.OrderStatus
	pagination.Params
}

type CancelInput struct {
	Actor   Actor
	OrderID uuid.UUID
	Reason  string
}

type ServiceParams struct {
	Repo            Repository
	Listings        listings.Repository
	Tx              txRunner
	Outbox          outboxPublisher
	Payments        PaymentProvider
	Metrics         *metrics.Marketplace
	Logger          *logger.Logger
	ProviderTimeout time.Duration
	Now             func() time.Time
}

type service struct {
	repo     Repository
	listings listings.Repository
	tx       txRunner
	outbox   outboxPublisher
	payments PaymentProvider
	metrics  *metrics.Marketplace
	logg     *logger.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewService builds the orders service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listings repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	timeout := params.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		listings: params.Listings,
		tx:       params.Tx,
		outbox:   params.Outbox,
		payments: params.Payments,
		metrics:  params.Metrics,
		logg:     params.Logger,
		timeout:  timeout,
		now:      now,
	}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.BuyerID != actor.UserID && order.SellerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return NewOrderDTO(order), nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params ListParams) (*OrderList, error) {
	return s.list(ctx, ListQuery{BuyerID: &buyerID, Status: params.Status}, params.Params)
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params ListParams) (*OrderList, error) {
	return s.list(ctx, ListQuery{SellerID: &sellerID, Status: params.Status}, params.Params)
}

func (s *service) list(ctx context.Context, query ListQuery, params pagination.Params) (*OrderList, error) {
	if query.Status != nil && !query.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	window, err := params.Resolve()
	if err != nil {
		return nil, err
	}
	query.Cursor, query.Limit = window.Cursor, window.Fetch()

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, nextCursor := pagination.Trim(rows, window, orderPosition)
	items := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *NewOrderDTO(&rows[i]))
	}
	return &OrderList{Orders: items, NextCursor: nextCursor}, nil
}

// Cancel stops an order before it ships. Units of a paid order go back to the
// listing and the payment is refunded after commit.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error) {
	order, err := s.load(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !input.Actor.IsAdmin() && order.SellerID != input.Actor.UserID {
		if order.BuyerID == input.Actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller or an admin may cancel this order")
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.Status == enums.OrderStatusCancelled {
		return NewOrderDTO(order), nil
	}
	if !CanTransition(order.Status, enums.OrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "cancelled_by_" + cancelledBy(input.Actor, order)
	}

	var (
		updated *models.Order
		wasPaid bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
		}
		if !CanTransition(current.Status, enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
		}
		order = current
		wasPaid = current.PaymentStatus == enums.PaymentStatusSucceeded

		now := s.now()
		// pinned to the status just read so a concurrent payment or shipment wins
		changed, err := repo.Transition(ctx, order.ID, []enums.OrderStatus{current.Status}, map[string]any{
			"status":        enums.OrderStatusCancelled,
			"cancel_reason": reason,
			"cancelled_at":  now,
			"updated_at":    now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: cancel order")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
		}
		if wasPaid {
			restored, err := s.listings.WithTx(tx).Restore(ctx, order.ListingID, order.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: restore listing quantity")
			}
			if !restored {
				s.warn(ctx, order.ID, "listing quantity not restored")
			}
		}
		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload order")
		}
		return s.emit(ctx, tx, enums.EventOrderCanceled, updated, &outbox.ActorRef{UserID: input.Actor.UserID, Role: string(input.Actor.Role)})
	})
	if err != nil {
		return nil, asTyped(err, "cancel order")
	}

	switch {
	case wasPaid && order.PaymentIntentID != nil:
		s.refund(ctx, order.ID, *order.PaymentIntentID, reason)
	case order.Status == enums.OrderStatusPaymentPending && order.PaymentSessionID != nil:
		s.expireSession(ctx, order.ID, *order.PaymentSessionID)
	}
	return NewOrderDTO(updated), nil
}

// Complete records that the buyer received the order.
func (s *service) Complete(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.BuyerID != actor.UserID {
		if order.SellerID == actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer may confirm receipt")
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !CanTransition(order.Status, enums.OrderStatusComplete) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been delivered")
	}

	var updated *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()
		changed, err := repo.Transition(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusDelivered}, map[string]any{
			"status":       enums.OrderStatusComplete,
			"completed_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: complete order")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been delivered")
		}
		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload order")
		}
		return s.emit(ctx, tx, enums.EventOrderCompleted, updated, &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)})
	})
	if err != nil {
		return nil, asTyped(err, "complete order")
	}
	return NewOrderDTO(updated), nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// refund is best-effort; the order.canceled event stays in the outbox for operators.
func (s *service) refund(ctx context.Context, orderID uuid.UUID, paymentIntentID, reason string) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	started := time.Now()
	_, err := s.payments.RefundPayment(callCtx, paymentIntentID, reason)
	s.metrics.ObserveProviderCall("stripe", "refund", started, err)
	if err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "refund after cancellation failed", err)
	}
}

func (s *service) expireSession(ctx context.Context, orderID uuid.UUID, sessionID string) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	started := time.Now()
	err := s.payments.ExpireCheckoutSession(callCtx, sessionID)
	s.metrics.ObserveProviderCall("stripe", "expire_session", started, err)
	if err != nil {
		s.warn(ctx, orderID, "checkout session not expired: "+err.Error())
	}
}

func (s *service) warn(ctx context.Context, orderID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), msg)
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, actor *outbox.ActorRef) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data:          EventPayload(order),
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit "+string(eventType))
	}
	return nil
}

func cancelledBy(actor Actor, order *models.Order) string {
	if order.SellerID == actor.UserID {
		return "seller"
	}
	return string(actor.Role)
}

func asTyped(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func orderPosition(o models.Order) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}
