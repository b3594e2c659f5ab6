package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/cardtrove-backend/pkg/config"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry. Every marketplace event goes to the domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.DomainTopic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}
	topic := cfg.DomainTopic

	listing := func() interface{} { return &payloads.ListingEvent{} }
	offer := func() interface{} { return &payloads.OfferEvent{} }
	order := func() interface{} { return &payloads.OrderEvent{} }
	shipment := func() interface{} { return &payloads.OrderShipmentEvent{} }

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	for _, desc := range []EventDescriptor{
		{EventType: enums.EventListingCreated, AggregateType: enums.AggregateListing, PayloadFactory: listing},
		{EventType: enums.EventListingCancelled, AggregateType: enums.AggregateListing, PayloadFactory: listing},
		{EventType: enums.EventOfferCreated, AggregateType: enums.AggregateOffer, PayloadFactory: offer},
		{EventType: enums.EventOfferResponded, AggregateType: enums.AggregateOffer, PayloadFactory: offer},
		{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, PayloadFactory: order},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, PayloadFactory: order},
		{EventType: enums.EventOrderOversold, AggregateType: enums.AggregateOrder, PayloadFactory: order},
		{EventType: enums.EventOrderPaymentFail, AggregateType: enums.AggregateOrder, PayloadFactory: order},
		{EventType: enums.EventOrderLatePayment, AggregateType: enums.AggregateOrder, PayloadFactory: order},
		{EventType: enums.EventOrderCanceled, AggregateType: enums.AggregateOrder, PayloadFactory: order},
		{EventType: enums.EventOrderCompleted, AggregateType: enums.AggregateOrder, PayloadFactory: order},
		{EventType: enums.EventOrderShipped, AggregateType: enums.AggregateOrder, PayloadFactory: shipment},
		{EventType: enums.EventOrderInTransit, AggregateType: enums.AggregateOrder, PayloadFactory: shipment},
		{EventType: enums.EventOrderDelivered, AggregateType: enums.AggregateOrder, PayloadFactory: shipment},
		{
			EventType:      enums.EventReviewCreated,
			AggregateType:  enums.AggregateReview,
			PayloadFactory: func() interface{} { return &payloads.ReviewCreatedEvent{} },
		},
		{
			EventType:      enums.EventReportCreated,
			AggregateType:  enums.AggregateReport,
			PayloadFactory: func() interface{} { return &payloads.ReportCreatedEvent{} },
		},
		{
			EventType:      enums.EventSellerSuspended,
			AggregateType:  enums.AggregateUser,
			PayloadFactory: func() interface{} { return &payloads.SellerSuspendedEvent{} },
		},
		{
			EventType:      enums.EventSellerFirstSale,
			AggregateType:  enums.AggregateUser,
			PayloadFactory: func() interface{} { return &payloads.SellerFirstSaleEvent{} },
		},
	} {
		desc.Topic = topic
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
