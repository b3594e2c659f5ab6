package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/cardtrove-backend/pkg/errors"
)

const (
	// DefaultLimit is the page size when the client does not ask for one.
	DefaultLimit = 25
	// MaxLimit caps a single page.
	MaxLimit = 100
)

// Params is the page request as it arrives from a controller.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the (created_at, id) keyset position of the last row served.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Window is a validated page request.
type Window struct {
	Cursor *Cursor
	Limit  int
}

// Fetch is the row count to query. The extra row tells Trim a next page exists.
func (w Window) Fetch() int {
	return w.Limit + 1
}

// Resolve clamps the limit and decodes the cursor. A cursor the client tampered
// with is a validation error.
func (p Params) Resolve() (Window, error) {
	w := Window{Limit: clampLimit(p.Limit)}
	cursor, err := ParseCursor(p.Cursor)
	if err != nil {
		return Window{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	w.Cursor = cursor
	return w, nil
}

// Trim cuts rows fetched with w.Fetch() down to the page and returns the cursor
// for the next one, or "" on the last page.
func Trim[T any](rows []T, w Window, position func(T) Cursor) ([]T, string) {
	if len(rows) <= w.Limit {
		return rows, ""
	}
	rows = rows[:w.Limit]
	return rows, EncodeCursor(position(rows[len(rows)-1]))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// EncodeCursor renders a cursor safe to pass back in a query string.
func EncodeCursor(cursor Cursor) string {
	payload := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes EncodeCursor output. An empty value means the first page.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	created, id, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("cursor has no id")
	}

	at, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("cursor timestamp: %w", err)
	}
	rowID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("cursor id: %w", err)
	}
	return &Cursor{CreatedAt: at, ID: rowID}, nil
}
