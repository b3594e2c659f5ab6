package reputation

import pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"

const (
	ReasonDuplicateReview = "duplicate_review"
	ReasonSelfReport      = "self_report"
	ReasonReportClosed    = "report_closed"
)

func errDuplicateReview() error {
	return pkgerrors.NewWithReason(pkgerrors.CodeConflict, ReasonDuplicateReview, "order already has a review")
}
