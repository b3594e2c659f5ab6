package enums

import "fmt"

// ReportStatus tracks moderation progress of a trust-and-safety report.
type ReportStatus string

const (
	ReportStatusOpen      ReportStatus = "open"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

var validReportStatuses = []ReportStatus{
	ReportStatusOpen,
	ReportStatusResolved,
	ReportStatusDismissed,
}

// IsValid reports whether the value is a known ReportStatus.
func (s ReportStatus) IsValid() bool {
	for _, candidate := range validReportStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReportStatus converts raw input into a ReportStatus.
func ParseReportStatus(value string) (ReportStatus, error) {
	for _, candidate := range validReportStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report status %q", value)
}

// ReportTargetType identifies what kind of entity a report points at.
type ReportTargetType string

const (
	ReportTargetUser    ReportTargetType = "user"
	ReportTargetListing ReportTargetType = "listing"
	ReportTargetOrder   ReportTargetType = "order"
)

var validReportTargetTypes = []ReportTargetType{
	ReportTargetUser,
	ReportTargetListing,
	ReportTargetOrder,
}

// IsValid reports whether the value is a known ReportTargetType.
func (t ReportTargetType) IsValid() bool {
	for _, candidate := range validReportTargetTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseReportTargetType converts raw input into a ReportTargetType.
func ParseReportTargetType(value string) (ReportTargetType, error) {
	for _, candidate := range validReportTargetTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report target type %q", value)
}
