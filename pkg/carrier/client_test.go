package carrier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
	"github.com/angelmondragon/cardtrove-backend/pkg/types"
)

func sampleAddress(name string) types.Address {
	return types.Address{Name: name, Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US"}
}

func TestCreateShipmentRequest(t *testing.T) {
	const expectedURL = "http://carrier.test/shipments"
	respBody := `{"object_id":"shp_1","rates":[
		{"object_id":"rate_a","provider":"USPS","amount":"4.85","currency":"USD","estimated_days":3,"servicelevel":{"name":"Ground Advantage","token":"usps_ground_advantage"}},
		{"object_id":"rate_b","provider":"UPS","amount":"12.10","currency":"USD","estimated_days":null,"servicelevel":{"name":"Ground","token":"ups_ground"}}]}`

	var capturedURL string
	var capturedHeaders http.Header
	var payload map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedHeaders = req.Header.Clone()
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}
		return &http.Response{
			StatusCode: http.StatusCreated,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient("shippo_test", WithBaseURL("http://carrier.test/"), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	shipment, err := client.CreateShipment(context.Background(), ShipmentRequest{
		From:   sampleAddress("Seller"),
		To:     sampleAddress("Buyer"),
		Parcel: types.Parcel{LengthIn: 6, WidthIn: 4, HeightIn: 0.5, WeightOz: 1.25},
	})
	if err != nil {
		t.Fatalf("create shipment: %v", err)
	}
	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedHeaders.Get("Authorization") != "ShippoToken shippo_test" {
		t.Fatalf("unexpected auth header %q", capturedHeaders.Get("Authorization"))
	}
	from, _ := payload["address_from"].(map[string]any)
	if from["name"] != "Seller" || from["zip"] != "78701" {
		t.Fatalf("unexpected address_from %+v", from)
	}
	parcels, _ := payload["parcels"].([]any)
	if len(parcels) != 1 {
		t.Fatalf("expected one parcel, got %+v", payload["parcels"])
	}
	parcel := parcels[0].(map[string]any)
	if parcel["weight"] != "1.25" || parcel["mass_unit"] != "oz" {
		t.Fatalf("unexpected parcel %+v", parcel)
	}

	if shipment.ID != "shp_1" || len(shipment.Rates) != 2 {
		t.Fatalf("unexpected shipment %+v", shipment)
	}
	first := shipment.Rates[0]
	if first.AmountCents != 485 || first.EstimatedDays != 3 || first.ServiceName != "Ground Advantage" || first.Provider != "USPS" {
		t.Fatalf("unexpected first rate %+v", first)
	}
	if shipment.Rates[1].AmountCents != 1210 || shipment.Rates[1].EstimatedDays != 0 {
		t.Fatalf("unexpected second rate %+v", shipment.Rates[1])
	}
}

func TestPurchaseLabel(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  bool
		tracking string
	}{
		{
			name:     "success",
			status:   http.StatusCreated,
			body:     `{"object_id":"txn_1","status":"SUCCESS","label_url":"https://labels.test/1.pdf","tracking_number":"9400111","tracking_url_provider":"https://tools.usps.com/9400111"}`,
			tracking: "9400111",
		},
		{
			name:    "carrier rejected",
			status:  http.StatusCreated,
			body:    `{"object_id":"txn_2","status":"ERROR","messages":[{"text":"address invalid"}]}`,
			wantErr: true,
		},
		{
			name:    "http failure",
			status:  http.StatusBadGateway,
			body:    `upstream down`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
				if req.URL.Path != "/transactions" {
					t.Fatalf("unexpected path %q", req.URL.Path)
				}
				return &http.Response{
					StatusCode: tc.status,
					Body:       io.NopCloser(strings.NewReader(tc.body)),
					Header:     http.Header{},
				}, nil
			})
			client, err := NewClient("shippo_test", WithBaseURL("http://carrier.test"), WithHTTPClient(&http.Client{Transport: rt}))
			if err != nil {
				t.Fatalf("new client: %v", err)
			}

			label, err := client.PurchaseLabel(context.Background(), "rate_a")
			if tc.wantErr {
				if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
					t.Fatalf("expected dependency error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("purchase label: %v", err)
			}
			if label.TrackingNumber != tc.tracking || label.TransactionID == "" || label.LabelURL == "" {
				t.Fatalf("unexpected label %+v", label)
			}
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected error for blank api key")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
