package reputation

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardtrove-backend/pkg/db/models"
	"github.com/angelmondragon/cardtrove-backend/pkg/enums"
)

// ReviewDTO is the public shape of a seller review.
type ReviewDTO struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"orderId"`
	ReviewerID uuid.UUID `json:"reviewerId"`
	SellerID   uuid.UUID `json:"sellerId"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type ReviewList struct {
	Reviews    []ReviewDTO `json:"reviews"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

func NewReviewDTO(m *models.Review) *ReviewDTO {
	if m == nil {
		return nil
	}
	return &ReviewDTO{
		ID:         m.ID,
		OrderID:    m.OrderID,
		ReviewerID: m.ReviewerID,
		SellerID:   m.RevieweeID,
		Rating:     m.Rating,
		Comment:    m.Comment,
		CreatedAt:  m.CreatedAt,
	}
}

// ReportDTO is returned to the reporter and to admins.
type ReportDTO struct {
	ID           uuid.UUID              `json:"id"`
	ReporterID   uuid.UUID              `json:"reporterId"`
	TargetType   enums.ReportTargetType `json:"targetType"`
	TargetID     uuid.UUID              `json:"targetId"`
	TargetUserID uuid.UUID              `json:"targetUserId"`
	Reason       string                 `json:"reason"`
	Details      *string                `json:"details,omitempty"`
	Status       enums.ReportStatus     `json:"status"`
	ResolvedBy   *uuid.UUID             `json:"resolvedBy,omitempty"`
	ResolvedAt   *time.Time             `json:"resolvedAt,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

func NewReportDTO(m *models.Report) *ReportDTO {
	if m == nil {
		return nil
	}
	return &ReportDTO{
		ID:           m.ID,
		ReporterID:   m.ReporterID,
		TargetType:   m.TargetType,
		TargetID:     m.TargetID,
		TargetUserID: m.TargetUserID,
		Reason:       m.Reason,
		Details:      m.Details,
		Status:       m.Status,
		ResolvedBy:   m.ResolvedBy,
		ResolvedAt:   m.ResolvedAt,
		CreatedAt:    m.CreatedAt,
	}
}
