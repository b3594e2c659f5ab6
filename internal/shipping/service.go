package shipping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/internal/orders"
	"github.com/angelmondragon/cardtrove-backend/internal/users"
	"github.com/angelmondragon/cardtrove-backend/pkg/carrier"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/logger"
	"github.com/angelmondragon/cardtrove-backend/pkg/metrics"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

var validate = validator.New()

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CarrierClient quotes and buys labels.
type CarrierClient interface {
	CreateShipment(ctx context.Context, req carrier.ShipmentRequest) (*carrier.Shipment, error)
	PurchaseLabel(ctx context.Context, rateID string) (*carrier.Label, error)
}

type firstSaleRecorder interface {
	RecordFirstSale(ctx context.Context, tx *gorm.DB, sellerID, orderID uuid.UUID) error
}

// Service coordinates rate quotes, label purchase and carrier tracking updates.
type Service interface {
	GetRates(ctx context.Context, sellerID, orderID uuid.UUID, parcel types.Parcel) ([]Rate, error)
	PurchaseLabel(ctx context.Context, sellerID, orderID uuid.UUID, rateID string) (*LabelResult, error)
	OnCarrierWebhook(ctx context.Context, payload []byte, signature string) error
}

type ServiceParams struct {
	Repo      Repository
	Orders    orders.Repository
	Users     *users.Repository
	Carrier   CarrierClient
	FirstSale firstSaleRecorder
	Tx        txRunner
	Outbox    outboxPublisher
	Metrics   *metrics.Marketplace
	Logger    *logger.Logger
	// Provider filters quoted rates, e.g. "USPS". Empty keeps every rate.
	Provider      string
	WebhookSecret string
	// AllowUnsigned accepts webhooks when no secret is configured. Dev only.
	AllowUnsigned bool
	Timeout       time.Duration
	Now           func() time.Time
}

type service struct {
	repo          Repository
	orders        orders.Repository
	users         *users.Repository
	carrier       CarrierClient
	firstSale     firstSaleRecorder
	tx            txRunner
	outbox        outboxPublisher
	metrics       *metrics.Marketplace
	logg          *logger.Logger
	provider      string
	secret        string
	allowUnsigned bool
	timeout       time.Duration
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Carrier == nil {
		return nil, fmt.Errorf("carrier client required")
	}
	if params.FirstSale == nil {
		return nil, fmt.Errorf("first sale recorder required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:          params.Repo,
		orders:        params.Orders,
		users:         params.Users,
		carrier:       params.Carrier,
		firstSale:     params.FirstSale,
		tx:            params.Tx,
		outbox:        params.Outbox,
		metrics:       params.Metrics,
		logg:          params.Logger,
		provider:      strings.TrimSpace(params.Provider),
		secret:        params.WebhookSecret,
		allowUnsigned: params.AllowUnsigned,
		timeout:       timeout,
		now:           now,
	}, nil
}

func (s *service) GetRates(ctx context.Context, sellerID, orderID uuid.UUID, parcel types.Parcel) ([]Rate, error) {
	if err := validate.Struct(parcel); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parcel dimensions are invalid")
	}
	order, err := s.sellerOrder(ctx, sellerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPaid && order.Status != enums.OrderStatusNeedsShipping {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting shipment")
	}
	seller, err := s.users.FindByID(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	if seller.ShipFromAddress == nil || seller.ShipFromAddress.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller has no ship-from address")
	}

	existing, err := s.repo.FindByOrderID(ctx, order.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	if existing != nil && existing.Status != enums.ShipmentStatusPending && existing.Status != enums.ShipmentStatusRatesFetched {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "label already purchased")
	}

	from := *seller.ShipFromAddress
	to := order.ShippingAddress
	if existing != nil {
		from, to = existing.FromAddress, existing.ToAddress
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	started := time.Now()
	quoted, err := s.carrier.CreateShipment(callCtx, carrier.ShipmentRequest{From: from, To: to, Parcel: parcel})
	s.metrics.ObserveProviderCall("carrier", "create_shipment", started, err)
	if err != nil {
		return nil, asDependency(err, "quote shipment")
	}

	rates := s.filterRates(quoted.Rates)
	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if existing == nil {
			shipment := &models.Shipment{
				ID:                uuid.New(),
				OrderID:           order.ID,
				FromAddress:       from,
				ToAddress:         to,
				Parcel:            &parcel,
				CarrierShipmentID: &quoted.ID,
				Status:            enums.ShipmentStatusRatesFetched,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := repo.Create(ctx, shipment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: create shipment")
			}
		} else {
			ok, err := repo.Update(ctx, existing.ID,
				[]enums.ShipmentStatus{enums.ShipmentStatusPending, enums.ShipmentStatusRatesFetched},
				map[string]any{
					"parcel":              parcel,
					"carrier_shipment_id": quoted.ID,
					"status":              enums.ShipmentStatusRatesFetched,
					"updated_at":          now,
				})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update shipment")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "label already purchased")
			}
		}

		_, err := s.orders.WithTx(tx).Transition(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPaid}, map[string]any{
			"status":     enums.OrderStatusNeedsShipping,
			"updated_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: mark order needs_shipping")
		}
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "persist rates")
	}
	return rates, nil
}

func (s *service) PurchaseLabel(ctx context.Context, sellerID, orderID uuid.UUID, rateID string) (*LabelResult, error) {
	rateID = strings.TrimSpace(rateID)
	if rateID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate_id is required")
	}
	order, err := s.sellerOrder(ctx, sellerID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusNeedsShipping && order.Status != enums.OrderStatusLabelCreated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not ready for a label")
	}
	shipment, err := s.repo.FindByOrderID(ctx, order.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "fetch rates before buying a label")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	if shipment.Status != enums.ShipmentStatusRatesFetched {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment is not awaiting a label")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	started := time.Now()
	label, err := s.carrier.PurchaseLabel(callCtx, rateID)
	s.metrics.ObserveProviderCall("carrier", "purchase_label", started, err)
	if err != nil {
		return nil, asDependency(err, "purchase label")
	}

	now := s.now()
	var carrierName *string
	if s.provider != "" {
		carrierName = &s.provider
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Update(ctx, shipment.ID,
			[]enums.ShipmentStatus{enums.ShipmentStatusRatesFetched},
			map[string]any{
				"carrier_rate_id":        rateID,
				"carrier_transaction_id": label.TransactionID,
				"carrier":                carrierName,
				"label_url":              label.LabelURL,
				"tracking_number":        label.TrackingNumber,
				"tracking_url":           label.TrackingURL,
				"status":                 enums.ShipmentStatusLabelPurchased,
				"updated_at":             now,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: store label")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "label already purchased")
		}

		orderRepo := s.orders.WithTx(tx)
		shipped, err := orderRepo.Transition(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusNeedsShipping, enums.OrderStatusLabelCreated},
			map[string]any{
				"status":     enums.OrderStatusShipped,
				"shipped_at": now,
				"updated_at": now,
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: mark order shipped")
		}
		if !shipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed before the label was stored")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderShipped,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: sellerID, Role: string(enums.RoleUser)},
			Data: payloads.OrderShipmentEvent{
				OrderID:        order.ID,
				BuyerID:        order.BuyerID,
				SellerID:       order.SellerID,
				Status:         enums.OrderStatusShipped,
				ShipmentStatus: enums.ShipmentStatusLabelPurchased,
				Carrier:        carrierName,
				TrackingNumber: &label.TrackingNumber,
				TrackingURL:    &label.TrackingURL,
			},
		})
	})
	if err != nil {
		// The carrier has already charged for this label; operators reconcile from the log.
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
				"carrier_transaction_id": label.TransactionID,
				"tracking_number":        label.TrackingNumber,
			})
			s.logg.Error(logCtx, "label purchased but not recorded", err)
		}
		return nil, asDependency(err, "persist label")
	}

	return &LabelResult{LabelURL: label.LabelURL, TrackingNumber: label.TrackingNumber, TrackingURL: label.TrackingURL}, nil
}

func (s *service) OnCarrierWebhook(ctx context.Context, payload []byte, signature string) error {
	if err := s.verify(ctx, payload, signature); err != nil {
		s.metrics.IncWebhook("carrier", "rejected")
		return err
	}

	update, err := parseTrackingUpdate(payload)
	if err != nil {
		s.metrics.IncWebhook("carrier", "rejected")
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode tracking update")
	}
	if strings.TrimSpace(update.TrackingNumber) == "" {
		s.metrics.IncWebhook("carrier", "rejected")
		return pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"tracking_number": update.TrackingNumber, "carrier_status": update.Status})
	}

	next, ok := MapCarrierStatus(update.Status)
	if !ok {
		s.metrics.IncWebhook("carrier", "ignored")
		return nil
	}

	shipment, err := s.repo.FindByTrackingNumber(ctx, update.TrackingNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.warn(ctx, "tracking update for unknown tracking number")
			s.metrics.IncWebhook("carrier", "ignored")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment by tracking number")
	}
	if !isAdvance(shipment.Status, next) {
		s.warn(ctx, "retrograde or duplicate tracking update ignored")
		s.metrics.IncWebhook("carrier", "ignored")
		return nil
	}

	applied := true
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		ok, err := s.repo.WithTx(tx).Update(ctx, shipment.ID, []enums.ShipmentStatus{shipment.Status}, map[string]any{
			"status":          next,
			"last_webhook_at": now,
			"updated_at":      now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update shipment status")
		}
		if !ok {
			applied = false
			return nil
		}
		if next == enums.ShipmentStatusException {
			return nil
		}
		return s.advanceOrder(ctx, tx, shipment, next, now)
	})
	if errors.Is(err, errRollback) {
		applied, err = false, nil
	}
	if err != nil {
		return asDependency(err, "apply tracking update")
	}
	if !applied {
		s.metrics.IncWebhook("carrier", "ignored")
		return nil
	}
	s.metrics.IncWebhook("carrier", "applied")
	return nil
}

// advanceOrder moves the order in lockstep with the shipment. An order that
// cannot follow (cancelled, already further along) rolls the shipment update back;
// an order already at the target keeps the shipment update.
func (s *service) advanceOrder(ctx context.Context, tx *gorm.DB, shipment *models.Shipment, next enums.ShipmentStatus, now time.Time) error {
	orderRepo := s.orders.WithTx(tx)
	order, err := orderRepo.FindByID(ctx, shipment.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load order")
	}

	var (
		target    enums.OrderStatus
		eventType enums.OutboxEventType
		updates   = map[string]any{"updated_at": now}
	)
	switch next {
	case enums.ShipmentStatusInTransit:
		target, eventType = enums.OrderStatusInTransit, enums.EventOrderInTransit
	case enums.ShipmentStatusDelivered:
		target, eventType = enums.OrderStatusDelivered, enums.EventOrderDelivered
		updates["delivered_at"] = now
	default:
		return nil
	}
	if order.Status == target {
		return nil
	}
	if !orders.CanTransition(order.Status, target) {
		s.warn(ctx, "tracking update inconsistent with order state "+string(order.Status))
		return errRollback
	}
	updates["status"] = target
	ok, err := orderRepo.Transition(ctx, order.ID, []enums.OrderStatus{order.Status}, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: advance order")
	}
	if !ok {
		return errRollback
	}

	if target == enums.OrderStatusDelivered {
		if err := s.firstSale.RecordFirstSale(ctx, tx, order.SellerID, order.ID); err != nil {
			return err
		}
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderShipmentEvent{
			OrderID:        order.ID,
			BuyerID:        order.BuyerID,
			SellerID:       order.SellerID,
			Status:         target,
			ShipmentStatus: next,
			Carrier:        shipment.Carrier,
			TrackingNumber: shipment.TrackingNumber,
			TrackingURL:    shipment.TrackingURL,
		},
	})
}

// errRollback aborts a webhook transaction that turned out to be a no-op.
var errRollback = errors.New("tracking update not applicable")

func (s *service) verify(ctx context.Context, payload []byte, signature string) error {
	if s.secret == "" {
		if s.allowUnsigned {
			if s.logg != nil {
				s.logg.Warn(ctx, "carrier webhook accepted WITHOUT signature verification; set CARDTROVE_CARRIER_WEBHOOK_SECRET")
			}
			return nil
		}
		s.warn(ctx, "carrier webhook rejected: no webhook secret configured")
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature cannot be verified")
	}
	if !validSignature(s.secret, payload, signature) {
		s.warn(ctx, "carrier webhook signature mismatch")
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
	}
	return nil
}

func (s *service) sellerOrder(ctx context.Context, sellerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.SellerID != sellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the seller can ship this order")
	}
	return order, nil
}

func (s *service) filterRates(quoted []carrier.Rate) []Rate {
	rates := make([]Rate, 0, len(quoted))
	for _, r := range quoted {
		if s.provider != "" && !strings.EqualFold(r.Provider, s.provider) {
			continue
		}
		name := strings.TrimSpace(r.Provider + " " + r.ServiceName)
		rates = append(rates, Rate{
			RateID:             r.RateID,
			CarrierServiceName: name,
			AmountCents:        r.AmountCents,
			EstimatedDays:      r.EstimatedDays,
		})
	}
	sort.SliceStable(rates, func(i, j int) bool { return rates[i].AmountCents < rates[j].AmountCents })
	return rates
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func asDependency(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
