package shipping

import "encoding/json"

// Rate is a purchasable label quote returned to the seller.
type Rate struct {
	RateID             string `json:"rateId"`
	CarrierServiceName string `json:"carrierServiceName"`
	AmountCents        int    `json:"amountCents"`
	EstimatedDays      int    `json:"estimatedDays"`
}

// LabelResult is returned after a successful label purchase.
type LabelResult struct {
	LabelURL       string `json:"labelUrl"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl"`
}

// trackingUpdate is the normalized carrier webhook body.
type trackingUpdate struct {
	TrackingNumber string
	Status         string
}

// parseTrackingUpdate accepts the flat {trackingNumber, status} body or the
// carrier's track_updated envelope.
func parseTrackingUpdate(payload []byte) (trackingUpdate, error) {
	var body struct {
		TrackingNumber string `json:"trackingNumber"`
		Status         string `json:"status"`
		Event          string `json:"event"`
		Data           *struct {
			TrackingNumber string `json:"tracking_number"`
			TrackingStatus *struct {
				Status string `json:"status"`
			} `json:"tracking_status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return trackingUpdate{}, err
	}
	update := trackingUpdate{TrackingNumber: body.TrackingNumber, Status: body.Status}
	if update.TrackingNumber == "" && body.Data != nil {
		update.TrackingNumber = body.Data.TrackingNumber
		if body.Data.TrackingStatus != nil {
			update.Status = body.Data.TrackingStatus.Status
		}
	}
	return update, nil
}
