package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/internal/listings"
	"github.com/angelmondragon/cardtrove-backend/internal/orders"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
	"github.com/angelmondragon/cardtrove-backend/pkg/metrics"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox"
)

// ReasonOversold is recorded on orders cancelled because the last unit was taken.
const ReasonOversold = "oversold"

// ReasonCancelledBeforePayment tags refunds for payments completed after the order was cancelled.
const ReasonCancelledBeforePayment = "cancelled_before_payment"

// Outcome reports what a payment notification did to its order.
type Outcome string

const (
	OutcomePaid             Outcome = "paid"
	OutcomeOversold         Outcome = "oversold"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeRefunded         Outcome = "refunded"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeIgnored          Outcome = "ignored"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Refunder returns money for orders that could not be fulfilled.
type Refunder interface {
	RefundPayment(ctx context.Context, paymentIntentID, reason string) (string, error)
}

// Service applies payment processor notifications to orders.
type Service interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error)
	OnPaymentConfirmed(ctx context.Context, sessionID, paymentIntentID string) (Outcome, error)
	OnPaymentFailed(ctx context.Context, sessionID string) (Outcome, error)
}

type ServiceParams struct {
	Orders          orders.Repository
	Listings        listings.Repository
	Tx              txRunner
	Outbox          outboxPublisher
	Refunds         Refunder
	Metrics         *metrics.Marketplace
	Logger          *logger.Logger
	ProviderTimeout time.Duration
	Now             func() time.Time
}

type service struct {
	orders   orders.Repository
	listings listings.Repository
	tx       txRunner
	outbox   outboxPublisher
	refunds  Refunder
	metrics  *metrics.Marketplace
	logg     *logger.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
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
	if params.Refunds == nil {
		return nil, fmt.Errorf("refunder required")
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
		orders:   params.Orders,
		listings: params.Listings,
		tx:       params.Tx,
		outbox:   params.Outbox,
		refunds:  params.Refunds,
		metrics:  params.Metrics,
		logg:     params.Logger,
		timeout:  timeout,
		now:      now,
	}, nil
}

// HandleEvent dispatches a verified Stripe event. Types the marketplace does not
// act on are ignored so the provider stops redelivering them.
func (s *service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, err := decodeSession(event)
		if err != nil {
			return "", err
		}
		// Delayed methods complete the session unpaid and follow up with async_payment_succeeded.
		if event.Type == stripe.EventTypeCheckoutSessionCompleted && sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return OutcomeIgnored, nil
		}
		return s.OnPaymentConfirmed(ctx, sess.ID, paymentIntentID(sess))
	case stripe.EventTypeCheckoutSessionExpired,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		sess, err := decodeSession(event)
		if err != nil {
			return "", err
		}
		return s.OnPaymentFailed(ctx, sess.ID)
	default:
		return OutcomeIgnored, nil
	}
}

func (s *service) OnPaymentConfirmed(ctx context.Context, sessionID, paymentIntentID string) (Outcome, error) {
	order, err := s.findBySession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	ctx = s.orderContext(ctx, order)
	if order.Status == enums.OrderStatusCancelled && order.PaymentStatus == enums.PaymentStatusPending {
		return s.settleCancelled(ctx, order, paymentIntentID)
	}
	if order.Status != enums.OrderStatusPaymentPending {
		return OutcomeAlreadyProcessed, nil
	}

	var outcome Outcome
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		outcome = ""
		orderRepo := s.orders.WithTx(tx)
		now := s.now()

		updates := map[string]any{
			"status":         enums.OrderStatusPaid,
			"payment_status": enums.PaymentStatusSucceeded,
			"paid_at":        now,
			"updated_at":     now,
		}
		if paymentIntentID != "" {
			updates["payment_intent_id"] = paymentIntentID
		}
		claimed, err := orderRepo.Transition(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPaymentPending}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: mark order paid")
		}
		if !claimed {
			outcome = OutcomeAlreadyProcessed
			return nil
		}

		taken, err := s.listings.WithTx(tx).Decrement(ctx, order.ListingID, order.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: decrement listing")
		}

		eventType := enums.EventOrderPaid
		outcome = OutcomePaid
		if !taken {
			cancelled, err := orderRepo.Transition(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPaid}, map[string]any{
				"status":        enums.OrderStatusCancelled,
				"cancel_reason": ReasonOversold,
				"cancelled_at":  now,
				"updated_at":    now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: cancel oversold order")
			}
			if !cancelled {
				return pkgerrors.New(pkgerrors.CodeInternal, "oversold order changed state mid-transaction")
			}
			eventType = enums.EventOrderOversold
			outcome = OutcomeOversold
		}

		updated, err := orderRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload order")
		}
		*order = *updated
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data:          orders.EventPayload(order),
		})
	})
	if err != nil {
		return "", asTyped(err, "confirm payment")
	}

	switch outcome {
	case OutcomeOversold:
		if s.logg != nil {
			s.logg.Warn(ctx, "payment arrived after the last unit sold; refunding")
		}
		s.refund(ctx, order, ReasonOversold)
	case OutcomePaid:
		if s.logg != nil {
			s.logg.Info(ctx, "order paid")
		}
	}
	return outcome, nil
}

// settleCancelled records and refunds a payment completed after its order was cancelled unpaid.
func (s *service) settleCancelled(ctx context.Context, order *models.Order, paymentIntentID string) (Outcome, error) {
	outcome := OutcomeRefunded
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		outcome = OutcomeRefunded
		orderRepo := s.orders.WithTx(tx)
		settled, err := orderRepo.SettleCancelled(ctx, order.ID, paymentIntentID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: settle cancelled order")
		}
		if !settled {
			outcome = OutcomeAlreadyProcessed
			return nil
		}
		updated, err := orderRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload order")
		}
		*order = *updated
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderLatePayment,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data:          orders.EventPayload(order),
		})
	})
	if err != nil {
		return "", asTyped(err, "settle cancelled order")
	}
	if outcome == OutcomeRefunded {
		if s.logg != nil {
			s.logg.Warn(ctx, "payment completed on a cancelled order; refunding")
		}
		s.refund(ctx, order, ReasonCancelledBeforePayment)
	}
	return outcome, nil
}

func (s *service) OnPaymentFailed(ctx context.Context, sessionID string) (Outcome, error) {
	order, err := s.findBySession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	ctx = s.orderContext(ctx, order)
	if order.Status != enums.OrderStatusPaymentPending {
		return OutcomeAlreadyProcessed, nil
	}

	outcome := OutcomeCancelled
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		now := s.now()
		changed, err := orderRepo.Transition(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPaymentPending}, map[string]any{
			"status":         enums.OrderStatusCancelled,
			"payment_status": enums.PaymentStatusFailed,
			"cancel_reason":  "payment_failed",
			"cancelled_at":   now,
			"updated_at":     now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: fail order")
		}
		if !changed {
			outcome = OutcomeAlreadyProcessed
			return nil
		}
		updated, err := orderRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: reload order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentFail,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data:          orders.EventPayload(updated),
		})
	})
	if err != nil {
		return "", asTyped(err, "fail payment")
	}
	return outcome, nil
}

func (s *service) findBySession(ctx context.Context, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required")
	}
	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "session_id", sessionID), "payment event for unknown checkout session")
			}
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for checkout session")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by session")
	}
	return order, nil
}

// refund is best-effort; the order's outbox row stays behind for operators.
func (s *service) refund(ctx context.Context, order *models.Order, reason string) {
	if order.PaymentIntentID == nil || *order.PaymentIntentID == "" {
		if s.logg != nil {
			s.logg.Error(ctx, "cancelled order has no payment intent to refund", errors.New("payment intent missing"))
		}
		return
	}
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	started := time.Now()
	_, err := s.refunds.RefundPayment(callCtx, *order.PaymentIntentID, reason)
	s.metrics.ObserveProviderCall("stripe", "refund", started, err)
	if err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "refund_reason", reason), "refund failed", err)
	}
}

func (s *service) orderContext(ctx context.Context, order *models.Order) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithOrderID(ctx, order.ID.String())
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	if sess.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return &sess, nil
}

func paymentIntentID(sess *stripe.CheckoutSession) string {
	if sess.PaymentIntent == nil {
		return ""
	}
	return sess.PaymentIntent.ID
}

func asTyped(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
