package offers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/internal/listings"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/dbtest"
	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/outbox"
	"github.com/angelmondragon/cardtrove-backend/pkg/pagination"
)

type fakeBlocks struct {
	pairs map[[2]uuid.UUID]bool
}

func (f *fakeBlocks) IsBlocked(_ context.Context, a, b uuid.UUID) (bool, error) {
	return f.pairs[[2]uuid.UUID{a, b}] || f.pairs[[2]uuid.UUID{b, a}], nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc    Service
	conn   *gorm.DB
	clock  *testClock
	blocks *fakeBlocks
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	clock := &testClock{now: time.Now().UTC()}
	blocks := &fakeBlocks{pairs: map[[2]uuid.UUID]bool{}}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Listings: listings.NewRepository(conn),
		Blocks:   blocks,
		Tx:       client,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		TTL:      48 * time.Hour,
		Now:      clock.Now,
	})
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, clock: clock, blocks: blocks}
}

func (f fixture) seedListing(t *testing.T, price, qty int, allowOffers bool) (models.Listing, models.User, models.User) {
	t.Helper()
	seller := dbtest.SeedUser(t, f.conn, dbtest.Seller())
	buyer := dbtest.SeedUser(t, f.conn)
	return dbtest.SeedListing(t, f.conn, seller.ID, price, qty, allowOffers), seller, buyer
}

func TestCreateOffer(t *testing.T) {
	f := newFixture(t)
	listing, seller, buyer := f.seedListing(t, 1000, 2, true)

	offer, err := f.svc.Create(context.Background(), CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800})
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusPending, offer.Status)
	assert.Equal(t, seller.ID, offer.SellerID)
	assert.Equal(t, 1, offer.Quantity)
	assert.True(t, offer.ExpiresAt.Equal(f.clock.Now().Add(48*time.Hour)))
	assert.Equal(t, int64(1), dbtest.CountOutbox(t, f.conn, enums.EventOfferCreated))
}

func TestCreateOfferRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing, seller, buyer := f.seedListing(t, 1000, 1, true)
	noOffers, _, _ := f.seedListing(t, 1000, 1, false)

	_, err := f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: seller.ID, AmountCents: 800})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "own listing: %v", err)

	_, err = f.svc.Create(ctx, CreateOfferInput{ListingID: noOffers.ID, BuyerID: buyer.ID, AmountCents: 800})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "offers disabled: %v", err)
	assert.Equal(t, ReasonOffersDisabled, pkgerrors.ReasonOf(err))

	_, err = f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800, Quantity: 2})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "too many units: %v", err)

	_, err = f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 0})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "zero amount: %v", err)

	_, err = f.svc.Create(ctx, CreateOfferInput{ListingID: uuid.New(), BuyerID: buyer.ID, AmountCents: 800})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "missing listing: %v", err)

	blocked := dbtest.SeedUser(t, f.conn)
	f.blocks.pairs[[2]uuid.UUID{seller.ID, blocked.ID}] = true
	_, err = f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: blocked.ID, AmountCents: 800})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "blocked buyer: %v", err)

	require.NoError(t, f.conn.Model(&models.Listing{}).Where("id = ?", listing.ID).
		Updates(map[string]any{"status": enums.ListingStatusCancelled}).Error)
	_, err = f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "inactive listing: %v", err)
}

func TestOnePendingOfferPerListingAndBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing, seller, buyer := f.seedListing(t, 1000, 1, true)

	first, err := f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 850})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, ReasonDuplicatePending, pkgerrors.ReasonOf(err))

	// once countered the buyer may submit a fresh offer
	_, err = f.svc.Counter(ctx, seller.ID, first.ID, 900)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 875})
	require.NoError(t, err)
}

func TestOfferCannotBeActedOnTwice(t *testing.T) {
	actions := map[string]func(f fixture, seller uuid.UUID, offerID uuid.UUID) error{
		"accept": func(f fixture, seller, offerID uuid.UUID) error {
			_, err := f.svc.Accept(context.Background(), seller, offerID)
			return err
		},
		"decline": func(f fixture, seller, offerID uuid.UUID) error {
			_, err := f.svc.Decline(context.Background(), seller, offerID)
			return err
		},
		"counter": func(f fixture, seller, offerID uuid.UUID) error {
			_, err := f.svc.Counter(context.Background(), seller, offerID, 900)
			return err
		},
	}

	for name, act := range actions {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			listing, seller, buyer := f.seedListing(t, 1000, 1, true)
			offer, err := f.svc.Create(context.Background(), CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800})
			require.NoError(t, err)

			require.NoError(t, act(f, seller.ID, offer.ID))

			err = act(f, seller.ID, offer.ID)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
			assert.Equal(t, ReasonOfferNotPending, pkgerrors.ReasonOf(err))
			assert.Equal(t, int64(1), dbtest.CountOutbox(t, f.conn, enums.EventOfferResponded))
		})
	}
}

func TestConcurrentAcceptOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	listing, seller, buyer := f.seedListing(t, 1000, 1, true)
	offer, err := f.svc.Create(context.Background(), CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800})
	require.NoError(t, err)

	const attempts = 5
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Accept(context.Background(), seller.ID, offer.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, ReasonOfferNotPending, pkgerrors.ReasonOf(err))
	}
	assert.Equal(t, 1, wins)
}

func TestOfferActorRestrictions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing, seller, buyer := f.seedListing(t, 1000, 1, true)
	offer, err := f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800})
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, buyer.ID, offer.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Withdraw(ctx, seller.ID, offer.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	withdrawn, err := f.svc.Withdraw(ctx, buyer.ID, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusWithdrawn, withdrawn.Status)

	_, err = f.svc.Accept(ctx, seller.ID, offer.ID)
	assert.Equal(t, ReasonOfferNotPending, pkgerrors.ReasonOf(err))
}

func TestCounteredOfferExpiresOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing, seller, buyer := f.seedListing(t, 1000, 1, true)

	offer, err := f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800})
	require.NoError(t, err)

	countered, err := f.svc.Counter(ctx, seller.ID, offer.ID, 900)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusCountered, countered.Status)
	require.NotNil(t, countered.CounterAmountCents)
	assert.Equal(t, 900, *countered.CounterAmountCents)

	f.clock.Advance(48*time.Hour + time.Minute)

	read, err := f.svc.Get(ctx, buyer.ID, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OfferStatusExpired, read.Status)

	var stored models.Offer
	require.NoError(t, f.conn.First(&stored, "id = ?", offer.ID).Error)
	assert.Equal(t, enums.OfferStatusExpired, stored.Status)
}

func TestActingOnExpiredOfferPersistsExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing, seller, buyer := f.seedListing(t, 1000, 1, true)
	offer, err := f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800})
	require.NoError(t, err)

	f.clock.Advance(49 * time.Hour)

	_, err = f.svc.Accept(ctx, seller.ID, offer.ID)
	require.Error(t, err)
	assert.Equal(t, ReasonOfferNotPending, pkgerrors.ReasonOf(err))

	var stored models.Offer
	require.NoError(t, f.conn.First(&stored, "id = ?", offer.ID).Error)
	assert.Equal(t, enums.OfferStatusExpired, stored.Status)
}

func TestGetHidesOffersFromStrangers(t *testing.T) {
	f := newFixture(t)
	listing, _, buyer := f.seedListing(t, 1000, 1, true)
	offer, err := f.svc.Create(context.Background(), CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800})
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), uuid.New(), offer.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListsApplyExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing, seller, buyer := f.seedListing(t, 1000, 3, true)
	other := dbtest.SeedUser(t, f.conn)

	_, err := f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: buyer.ID, AmountCents: 800})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.svc.Create(ctx, CreateOfferInput{ListingID: listing.ID, BuyerID: other.ID, AmountCents: 700})
	require.NoError(t, err)

	f.clock.Advance(47*time.Hour + 30*time.Minute)

	page, err := f.svc.ListForListing(ctx, seller.ID, listing.ID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Offers, 2)
	statuses := map[uuid.UUID]enums.OfferStatus{}
	for _, o := range page.Offers {
		statuses[o.BuyerID] = o.Status
	}
	assert.Equal(t, enums.OfferStatusExpired, statuses[buyer.ID])
	assert.Equal(t, enums.OfferStatusPending, statuses[other.ID])

	_, err = f.svc.ListForListing(ctx, buyer.ID, listing.ID, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	mine, err := f.svc.ListForBuyer(ctx, other.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, mine.Offers, 1)
}
