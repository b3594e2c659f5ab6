// Package dbtest provides an in-memory sqlite database carrying the marketplace schema,
// plus seed helpers, for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

var dbSeq atomic.Int64

const schema = `
CREATE TABLE users (
  id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  marketplace_enabled INTEGER NOT NULL DEFAULT 0,
  marketplace_suspended INTEGER NOT NULL DEFAULT 0,
  suspended_at DATETIME,
  seller_rating NUMERIC NOT NULL DEFAULT 0,
  seller_review_count INTEGER NOT NULL DEFAULT 0,
  first_sale_at DATETIME,
  ship_from_address TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE cards (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  set_name TEXT,
  image_url TEXT
);
CREATE TABLE collection_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  card_id TEXT NOT NULL,
  condition TEXT NOT NULL DEFAULT 'near_mint',
  image_url TEXT,
  created_at DATETIME
);
CREATE TABLE listings (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  collection_item_id TEXT NOT NULL,
  card_id TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  quantity_available INTEGER NOT NULL CHECK (quantity_available >= 0 AND quantity_available <= quantity),
  allow_offers INTEGER NOT NULL DEFAULT 0,
  condition TEXT NOT NULL,
  description TEXT,
  image_url TEXT,
  status TEXT NOT NULL DEFAULT 'active',
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK (quantity_available > 0 OR status <> 'active')
);
CREATE TABLE offers (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  counter_amount_cents INTEGER,
  message TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  expires_at DATETIME NOT NULL,
  responded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX ux_offers_pending_listing_buyer ON offers (listing_id, buyer_id) WHERE status = 'pending';
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  listing_id TEXT NOT NULL,
  offer_id TEXT,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  item_price_cents INTEGER NOT NULL,
  item_subtotal_cents INTEGER NOT NULL,
  shipping_cents INTEGER NOT NULL,
  platform_fee_cents INTEGER NOT NULL,
  processor_fee_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  seller_net_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  shipping_address TEXT NOT NULL,
  payment_session_id TEXT UNIQUE,
  payment_intent_id TEXT,
  status TEXT NOT NULL DEFAULT 'payment_pending',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  cancel_reason TEXT,
  paid_at DATETIME,
  shipped_at DATETIME,
  delivered_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX ux_orders_live_offer ON orders (offer_id) WHERE offer_id IS NOT NULL AND status <> 'cancelled';
CREATE TABLE shipments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  from_address TEXT NOT NULL,
  to_address TEXT NOT NULL,
  parcel TEXT,
  carrier_shipment_id TEXT,
  carrier_rate_id TEXT,
  carrier_transaction_id TEXT,
  carrier TEXT,
  service_level TEXT,
  label_cost_cents INTEGER,
  label_url TEXT,
  tracking_number TEXT UNIQUE,
  tracking_url TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  last_webhook_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE reviews (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  reviewer_id TEXT NOT NULL,
  reviewee_id TEXT NOT NULL,
  rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
  comment TEXT,
  created_at DATETIME
);
CREATE TABLE reports (
  id TEXT PRIMARY KEY,
  reporter_id TEXT NOT NULL,
  target_type TEXT NOT NULL,
  target_id TEXT NOT NULL,
  target_user_id TEXT NOT NULL,
  reason TEXT NOT NULL,
  details TEXT,
  status TEXT NOT NULL DEFAULT 'open',
  resolved_by TEXT,
  resolved_at DATETIME,
  created_at DATETIME
);
CREATE TABLE blocks (
  id TEXT PRIMARY KEY,
  blocker_id TEXT NOT NULL,
  blocked_id TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (blocker_id, blocked_id),
  CHECK (blocker_id <> blocked_id)
);
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);
`

// Open returns a private in-memory database with the full schema applied. The pool is
// limited to one connection so concurrent callers serialize on transactions.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := fmt.Sprintf("file:cardtrove_%d?mode=memory&cache=shared", dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(name), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Client wraps Open in a db.Client for services that own their transactions.
func Client(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.NewFromConn(conn), conn
}

// UserOption customizes SeedUser.
type UserOption func(*models.User)

// Seller enables marketplace selling and sets a ship-from address.
func Seller() UserOption {
	return func(u *models.User) {
		u.MarketplaceEnabled = true
		addr := SampleAddress("Seller")
		u.ShipFromAddress = &addr
	}
}

// Suspended marks the user as suspended.
func Suspended() UserOption {
	return func(u *models.User) {
		u.MarketplaceSuspended = true
	}
}

// SeedUser inserts a user row.
func SeedUser(t *testing.T, conn *gorm.DB, opts ...UserOption) models.User {
	t.Helper()
	id := uuid.New()
	user := models.User{
		ID:          id,
		DisplayName: "user-" + id.String()[:8],
		Email:       id.String() + "@example.com",
	}
	for _, opt := range opts {
		opt(&user)
	}
	require.NoError(t, conn.Create(&user).Error)
	return user
}

// SeedCollectionItem inserts a card and a collection item owned by userID.
func SeedCollectionItem(t *testing.T, conn *gorm.DB, userID uuid.UUID, cardImage *string) models.CollectionItem {
	t.Helper()
	card := models.Card{ID: uuid.New(), Name: "Charizard", ImageURL: cardImage}
	require.NoError(t, conn.Create(&card).Error)

	item := models.CollectionItem{ID: uuid.New(), UserID: userID, CardID: card.ID, Condition: "near_mint"}
	require.NoError(t, conn.Create(&item).Error)
	return item
}

// SeedListing inserts an active listing for seller at priceCents with quantity units.
func SeedListing(t *testing.T, conn *gorm.DB, sellerID uuid.UUID, priceCents, quantity int, allowOffers bool) models.Listing {
	t.Helper()
	img := "https://img.example.com/card.png"
	item := SeedCollectionItem(t, conn, sellerID, &img)
	listing := models.Listing{
		ID:                uuid.New(),
		SellerID:          sellerID,
		CollectionItemID:  item.ID,
		CardID:            item.CardID,
		PriceCents:        priceCents,
		Quantity:          quantity,
		QuantityAvailable: quantity,
		AllowOffers:       allowOffers,
		Condition:         item.Condition,
		Status:            enums.ListingStatusActive,
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, conn.Create(&listing).Error)
	return listing
}

// OrderOption customizes SeedOrder.
type OrderOption func(*models.Order)

// WithOrderStatus sets the order status.
func WithOrderStatus(status enums.OrderStatus) OrderOption {
	return func(o *models.Order) {
		o.Status = status
		if status != enums.OrderStatusPaymentPending && status != enums.OrderStatusCancelled {
			o.PaymentStatus = enums.PaymentStatusSucceeded
			now := time.Now().UTC()
			o.PaidAt = &now
		}
	}
}

// WithQuantity sets the ordered quantity and recomputes the derived money columns.
func WithQuantity(qty int) OrderOption {
	return func(o *models.Order) {
		o.Quantity = qty
		o.ItemSubtotalCents = o.ItemPriceCents * qty
		o.TotalCents = o.ItemSubtotalCents + o.ShippingCents
		o.SellerNetCents = o.ItemSubtotalCents - o.PlatformFeeCents - o.ProcessorFeeCents
	}
}

// SeedOrder inserts an order for listing bought by buyerID with a unique session id.
func SeedOrder(t *testing.T, conn *gorm.DB, listing models.Listing, buyerID uuid.UUID, opts ...OrderOption) models.Order {
	t.Helper()
	id := uuid.New()
	session := "cs_test_" + id.String()
	order := models.Order{
		ID:                id,
		OrderNumber:       "CT-TEST-" + strings.ToUpper(id.String()[:8]),
		ListingID:         listing.ID,
		BuyerID:           buyerID,
		SellerID:          listing.SellerID,
		Quantity:          1,
		ItemPriceCents:    listing.PriceCents,
		ItemSubtotalCents: listing.PriceCents,
		ShippingCents:     300,
		PlatformFeeCents:  60,
		ProcessorFeeCents: 68,
		Currency:          "usd",
		ShippingAddress:   SampleAddress("Buyer"),
		PaymentSessionID:  &session,
		Status:            enums.OrderStatusPaymentPending,
		PaymentStatus:     enums.PaymentStatusPending,
		CreatedAt:         time.Now().UTC(),
	}
	order.TotalCents = order.ItemSubtotalCents + order.ShippingCents
	order.SellerNetCents = order.ItemSubtotalCents - order.PlatformFeeCents - order.ProcessorFeeCents
	for _, opt := range opts {
		opt(&order)
	}
	require.NoError(t, conn.Create(&order).Error)
	return order
}

// SampleAddress returns a valid US address.
func SampleAddress(name string) types.Address {
	return types.Address{
		Name:       name,
		Line1:      "1 Main St",
		City:       "Austin",
		State:      "TX",
		PostalCode: "78701",
		Country:    "US",
	}
}

// CountOutbox returns how many outbox rows of eventType exist.
func CountOutbox(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}
