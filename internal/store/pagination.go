package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/safar/tackle-shop/internal/models"
)

// OrderCursor marks the last order of a page in (created_at, id) DESC order.
type OrderCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        int64     `json:"id"`
}

// Before reports whether an order sorts after the cursor, i.e. belongs on a later page.
func (c OrderCursor) Before(createdAt time.Time, id int64) bool {
	if createdAt.Equal(c.CreatedAt) {
		return id < c.ID
	}
	return createdAt.Before(c.CreatedAt)
}

func EncodeCursor(cursor OrderCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor returns nil for an empty cursor, meaning "first page".
func DecodeCursor(encoded string) (*OrderCursor, error) {
	if encoded == "" {
		return nil, nil
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCursor, err)
	}

	var cursor OrderCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCursor, err)
	}
	return &cursor, nil
}
