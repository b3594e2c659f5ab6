package models

import (
	"time"

	"github.com/google/uuid"
)

// Card is a read-only catalog entry imported by the catalog tooling.
type Card struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name     string    `gorm:"column:name;not null"`
	SetName  *string   `gorm:"column:set_name"`
	ImageURL *string   `gorm:"column:image_url"`
}

// CollectionItem is a card a user owns in their collection.
type CollectionItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	CardID    uuid.UUID `gorm:"column:card_id;type:uuid;not null"`
	Condition string    `gorm:"column:condition;not null;default:'near_mint'"`
	ImageURL  *string   `gorm:"column:image_url"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
