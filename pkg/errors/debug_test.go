package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stripe/stripe-go/v84"
)

func TestDumpSurfacesConstraintOfWrappedPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_live_offer", TableName: "orders"}
	err := Wrap(CodeConflict, fmt.Errorf("create order: %w", pgErr), "order conflict")

	fields := Dump(err).Fields()
	if fields["error_code"] != string(CodeConflict) {
		t.Fatalf("expected error_code %q, got %v", CodeConflict, fields["error_code"])
	}
	if fields["pg_constraint"] != "ux_orders_live_offer" || fields["pg_code"] != "23505" {
		t.Fatalf("expected pg constraint fields, got %v", fields)
	}
	if chain, ok := fields["error_chain"].([]string); !ok || len(chain) != 3 {
		t.Fatalf("expected three links in chain, got %v", fields["error_chain"])
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg_column should be omitted")
	}
	if _, ok := fields["stripe_code"]; ok {
		t.Fatalf("stripe fields should be omitted for database errors")
	}
}

func TestDumpSurfacesStripeRequest(t *testing.T) {
	stripeErr := &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined, RequestID: "req_123", HTTPStatusCode: 402}
	fields := Dump(Wrap(CodeDependency, stripeErr, "refund failed")).Fields()

	if fields["stripe_request_id"] != "req_123" || fields["stripe_status"] != 402 {
		t.Fatalf("expected stripe request fields, got %v", fields)
	}
	if fields["stripe_code"] != string(stripe.ErrorCodeCardDeclined) {
		t.Fatalf("expected stripe code, got %v", fields["stripe_code"])
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || len(d.Chain) != 0 {
		t.Fatalf("nil error should dump empty, got %+v", d)
	}
}
