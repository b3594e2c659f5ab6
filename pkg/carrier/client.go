package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cardtrove-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

const (
	defaultBaseURL = "https://api.goshippo.com"
	labelFileType  = "PDF"

	responseBodyReadLimit int64 = 1024
)

var errAPIKeyRequired = errors.New("carrier api key is required")

// Client talks to a Shippo-compatible shipping REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a carrier client given an API token.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewFromConfig builds the client from the carrier section of the app config.
func NewFromConfig(cfg config.CarrierConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewClient(cfg.APIKey, WithBaseURL(cfg.BaseURL), WithHTTPClient(&http.Client{Timeout: timeout}))
}

// ShipmentRequest describes the parcel to quote.
type ShipmentRequest struct {
	From   types.Address
	To     types.Address
	Parcel types.Parcel
}

// Shipment is the carrier-side shipment with its quoted rates.
type Shipment struct {
	ID    string
	Rates []Rate
}

// Rate is a purchasable quote. Amounts are converted to integer cents.
type Rate struct {
	RateID        string
	Provider      string
	ServiceName   string
	AmountCents   int
	EstimatedDays int
}

// Label is the result of buying a rate.
type Label struct {
	TransactionID  string
	LabelURL       string
	TrackingNumber string
	TrackingURL    string
}

type apiAddress struct {
	Name    string `json:"name"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

type apiParcel struct {
	Length       string `json:"length"`
	Width        string `json:"width"`
	Height       string `json:"height"`
	DistanceUnit string `json:"distance_unit"`
	Weight       string `json:"weight"`
	MassUnit     string `json:"mass_unit"`
}

type apiMessage struct {
	Source string `json:"source"`
	Code   string `json:"code"`
	Text   string `json:"text"`
}

// CreateShipment quotes rates for a parcel between two addresses.
func (c *Client) CreateShipment(ctx context.Context, req ShipmentRequest) (*Shipment, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}

	body := struct {
		AddressFrom apiAddress  `json:"address_from"`
		AddressTo   apiAddress  `json:"address_to"`
		Parcels     []apiParcel `json:"parcels"`
		Async       bool        `json:"async"`
	}{
		AddressFrom: toAPIAddress(req.From),
		AddressTo:   toAPIAddress(req.To),
		Parcels:     []apiParcel{toAPIParcel(req.Parcel)},
		Async:       false,
	}

	var apiResp struct {
		ObjectID string `json:"object_id"`
		Rates    []struct {
			ObjectID     string `json:"object_id"`
			Provider     string `json:"provider"`
			Amount       string `json:"amount"`
			Currency     string `json:"currency"`
			Days         *int   `json:"estimated_days"`
			ServiceLevel struct {
				Name  string `json:"name"`
				Token string `json:"token"`
			} `json:"servicelevel"`
		} `json:"rates"`
		Messages []apiMessage `json:"messages"`
	}
	if err := c.post(ctx, "shipments", body, &apiResp, "create shipment"); err != nil {
		return nil, err
	}
	if apiResp.ObjectID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier shipment missing id")
	}

	rates := make([]Rate, 0, len(apiResp.Rates))
	for _, r := range apiResp.Rates {
		cents, err := amountToCents(r.Amount)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse carrier rate amount")
		}
		rate := Rate{
			RateID:      r.ObjectID,
			Provider:    r.Provider,
			ServiceName: r.ServiceLevel.Name,
			AmountCents: cents,
		}
		if r.Days != nil {
			rate.EstimatedDays = *r.Days
		}
		rates = append(rates, rate)
	}
	return &Shipment{ID: apiResp.ObjectID, Rates: rates}, nil
}

// PurchaseLabel buys the label for a previously quoted rate.
func (c *Client) PurchaseLabel(ctx context.Context, rateID string) (*Label, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	if strings.TrimSpace(rateID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate id is required")
	}

	body := map[string]any{
		"rate":            rateID,
		"label_file_type": labelFileType,
		"async":           false,
	}
	var apiResp struct {
		ObjectID       string       `json:"object_id"`
		Status         string       `json:"status"`
		LabelURL       string       `json:"label_url"`
		TrackingNumber string       `json:"tracking_number"`
		TrackingURL    string       `json:"tracking_url_provider"`
		Messages       []apiMessage `json:"messages"`
	}
	if err := c.post(ctx, "transactions", body, &apiResp, "purchase label"); err != nil {
		return nil, err
	}
	if apiResp.Status != "SUCCESS" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %s: %s", apiResp.Status, joinMessages(apiResp.Messages)), "label purchase rejected")
	}
	if apiResp.TrackingNumber == "" || apiResp.LabelURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "label response missing tracking or label url")
	}
	return &Label{
		TransactionID:  apiResp.ObjectID,
		LabelURL:       apiResp.LabelURL,
		TrackingNumber: apiResp.TrackingNumber,
		TrackingURL:    apiResp.TrackingURL,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any, op string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal "+op+" request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build "+op+" request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "ShippoToken "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), op+" request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+op+" response")
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

func toAPIAddress(a types.Address) apiAddress {
	out := apiAddress{
		Name:    a.Name,
		Street1: a.Line1,
		City:    a.City,
		State:   a.State,
		Zip:     a.PostalCode,
		Country: a.Country,
	}
	if a.Line2 != nil {
		out.Street2 = *a.Line2
	}
	if a.Phone != nil {
		out.Phone = *a.Phone
	}
	if a.Email != nil {
		out.Email = *a.Email
	}
	if out.Country == "" {
		out.Country = "US"
	}
	return out
}

func toAPIParcel(p types.Parcel) apiParcel {
	return apiParcel{
		Length:       formatDimension(p.LengthIn),
		Width:        formatDimension(p.WidthIn),
		Height:       formatDimension(p.HeightIn),
		DistanceUnit: "in",
		Weight:       formatDimension(p.WeightOz),
		MassUnit:     "oz",
	}
}

func formatDimension(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String()
}

func amountToCents(amount string) (int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", amount)
	}
	return int(d.Shift(2).Round(0).IntPart()), nil
}

func joinMessages(msgs []apiMessage) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	if len(parts) == 0 {
		return "no detail"
	}
	return strings.Join(parts, "; ")
}
