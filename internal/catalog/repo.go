package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
)

// OwnedItem is a collection item joined with the catalog card it references.
type OwnedItem struct {
	Item models.CollectionItem
	Card models.Card
}

// BestImage returns the collection photo when present, otherwise the catalog image.
func (o OwnedItem) BestImage() *string {
	if o.Item.ImageURL != nil && *o.Item.ImageURL != "" {
		return o.Item.ImageURL
	}
	if o.Card.ImageURL != nil && *o.Card.ImageURL != "" {
		return o.Card.ImageURL
	}
	return nil
}

// Repository reads the catalog boundary tables. It never writes.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repo.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindOwnedItem returns the collection item only when ownerID owns it.
// A missing row or a foreign owner both yield gorm.ErrRecordNotFound.
func (r *Repository) FindOwnedItem(ctx context.Context, ownerID, itemID uuid.UUID) (*OwnedItem, error) {
	var item models.CollectionItem
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, ownerID).
		First(&item).Error; err != nil {
		return nil, err
	}
	var card models.Card
	if err := r.db.WithContext(ctx).First(&card, "id = ?", item.CardID).Error; err != nil {
		return nil, err
	}
	return &OwnedItem{Item: item, Card: card}, nil
}

// FindCard loads a catalog card.
func (r *Repository) FindCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}
