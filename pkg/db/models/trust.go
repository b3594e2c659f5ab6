package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

// Review is a buyer's rating of the seller for one order.
type Review struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	ReviewerID uuid.UUID `gorm:"column:reviewer_id;type:uuid;not null"`
	RevieweeID uuid.UUID `gorm:"column:reviewee_id;type:uuid;not null"`
	Rating     int       `gorm:"column:rating;not null"`
	Comment    *string   `gorm:"column:comment"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Report is a trust-and-safety complaint against a user, listing or order.
type Report struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReporterID   uuid.UUID              `gorm:"column:reporter_id;type:uuid;not null"`
	TargetType   enums.ReportTargetType `gorm:"column:target_type;type:text;not null"`
	TargetID     uuid.UUID              `gorm:"column:target_id;type:uuid;not null"`
	TargetUserID uuid.UUID              `gorm:"column:target_user_id;type:uuid;not null"`
	Reason       string                 `gorm:"column:reason;not null"`
	Details      *string                `gorm:"column:details"`
	Status       enums.ReportStatus     `gorm:"column:status;type:text;not null;default:'open'"`
	ResolvedBy   *uuid.UUID             `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt   *time.Time             `gorm:"column:resolved_at"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}

// Block records that blocker does not want to transact with blocked.
type Block struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BlockerID uuid.UUID `gorm:"column:blocker_id;type:uuid;not null"`
	BlockedID uuid.UUID `gorm:"column:blocked_id;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
