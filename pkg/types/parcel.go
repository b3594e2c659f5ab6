package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Parcel captures package dimensions in inches and weight in ounces.
type Parcel struct {
	LengthIn float64 `json:"lengthIn" validate:"required,gt=0,lte=108"`
	WidthIn  float64 `json:"widthIn" validate:"required,gt=0,lte=108"`
	HeightIn float64 `json:"heightIn" validate:"required,gt=0,lte=108"`
	WeightOz float64 `json:"weightOz" validate:"required,gt=0,lte=1120"`
}

// Value serializes the parcel to JSON.
func (p Parcel) Value() (driver.Value, error) {
	buf, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes JSONB into the parcel.
func (p *Parcel) Scan(value interface{}) error {
	if value == nil {
		*p = Parcel{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return fmt.Errorf("parcel: %w", err)
	}
	return json.Unmarshal(raw, p)
}
