package models

// OrderQuery selects the orders visible to one role view. Exactly one of
// CustomerID, StoreID or SupplierID is normally set; all zero lists every
// order. Limit 0 means no limit.
type OrderQuery struct {
	CustomerID int64
	StoreID    int64
	SupplierID int64
	Status     OrderStatus
	Cursor     string
	Limit      int
}

type OrderPage struct {
	Orders     []Order `json:"orders"`
	NextCursor string  `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}
