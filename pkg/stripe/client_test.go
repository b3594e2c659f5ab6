package stripe

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/cardtrove-backend/pkg/config"
)

func TestNewClientValidatesKeys(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{Env: "test", Secret: "whsec"}, nil)
	assert.ErrorIs(t, err, errAPIKeyRequired)

	_, err = NewClient(ctx, config.StripeConfig{Env: "test", APIKey: "sk_test_123"}, nil)
	assert.ErrorIs(t, err, errSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{Env: "live", APIKey: "sk_test_123", Secret: "whsec"}, nil)
	assert.Error(t, err, "live env must reject test keys")

	_, err = NewClient(ctx, config.StripeConfig{Env: "staging", APIKey: "sk_test_123", Secret: "whsec"}, nil)
	assert.ErrorIs(t, err, errInvalidStripeEnv)

	client, err := NewClient(ctx, config.StripeConfig{Env: "", APIKey: "sk_test_123", Secret: "whsec", Currency: " USD "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", client.Environment())
	assert.Equal(t, "usd", client.Currency())
}

func TestVerifyEvent(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_test"}, nil)
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        "checkout.session.completed",
		"api_version": "2020-01-01",
		"data":        map[string]any{"object": map[string]any{"id": "cs_1", "object": "checkout.session"}},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	event, err := client.VerifyEvent(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)

	_, err = client.VerifyEvent(payload, "t=1,v1=deadbeef")
	assert.Error(t, err)

	_, err = client.VerifyEvent(payload, "")
	assert.ErrorIs(t, err, errSignatureMissing)
}
