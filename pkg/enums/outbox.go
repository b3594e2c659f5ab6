package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateListing OutboxAggregateType = "listing"
	AggregateOffer   OutboxAggregateType = "offer"
	AggregateOrder   OutboxAggregateType = "order"
	AggregateUser    OutboxAggregateType = "user"
	AggregateReview  OutboxAggregateType = "review"
	AggregateReport  OutboxAggregateType = "report"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateListing,
	AggregateOffer,
	AggregateOrder,
	AggregateUser,
	AggregateReview,
	AggregateReport,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a domain event published downstream.
type OutboxEventType string

const (
	EventListingCreated   OutboxEventType = "listing.created"
	EventListingCancelled OutboxEventType = "listing.cancelled"
	EventOfferCreated     OutboxEventType = "offer.created"
	EventOfferResponded   OutboxEventType = "offer.responded"
	EventOrderCreated     OutboxEventType = "order.created"
	EventOrderPaid        OutboxEventType = "order.paid"
	EventOrderOversold    OutboxEventType = "order.oversold"
	EventOrderPaymentFail OutboxEventType = "order.payment_failed"
	EventOrderLatePayment OutboxEventType = "order.late_payment"
	EventOrderCanceled    OutboxEventType = "order.canceled"
	EventOrderShipped     OutboxEventType = "order.shipped"
	EventOrderInTransit   OutboxEventType = "order.in_transit"
	EventOrderDelivered   OutboxEventType = "order.delivered"
	EventOrderCompleted   OutboxEventType = "order.completed"
	EventReviewCreated    OutboxEventType = "review.created"
	EventReportCreated    OutboxEventType = "report.created"
	EventSellerSuspended  OutboxEventType = "seller.suspended"
	EventSellerFirstSale  OutboxEventType = "seller.first_sale"
)

var validOutboxEventTypes = []OutboxEventType{
	EventListingCreated,
	EventListingCancelled,
	EventOfferCreated,
	EventOfferResponded,
	EventOrderCreated,
	EventOrderPaid,
	EventOrderOversold,
	EventOrderPaymentFail,
	EventOrderLatePayment,
	EventOrderCanceled,
	EventOrderShipped,
	EventOrderInTransit,
	EventOrderDelivered,
	EventOrderCompleted,
	EventReviewCreated,
	EventReportCreated,
	EventSellerSuspended,
	EventSellerFirstSale,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
