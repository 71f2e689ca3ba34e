package domain

import "time"

// CartSnapshot is the cache-resident cart. It is authoritative for quantities only.
type CartSnapshot struct {
	CartID    string
	UpdatedAt time.Time
	Lines     []SnapshotLine
}

type SnapshotLine struct {
	ProductID string
	OptionID  string
	Quantity  int64
}

func (s *CartSnapshot) IsEmpty() bool {
	return s == nil || len(s.Lines) == 0
}

// ProductIDs returns the distinct product ids referenced by the snapshot.
func (s *CartSnapshot) ProductIDs() []string {
	return distinct(s.Lines, func(l SnapshotLine) string { return l.ProductID })
}

// OptionIDs returns the distinct option ids referenced by the snapshot.
func (s *CartSnapshot) OptionIDs() []string {
	return distinct(s.Lines, func(l SnapshotLine) string { return l.OptionID })
}

func distinct(lines []SnapshotLine, key func(SnapshotLine) string) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		k := key(l)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		ids = append(ids, k)
	}
	return ids
}

// CartLine is a priced line, built on demand and never cached as-is.
type CartLine struct {
	ProductID string      `json:"product_id"`
	OptionID  string      `json:"option_id"`
	Quantity  int64       `json:"quantity"`
	UnitPrice int64       `json:"unit_price"`
	Product   ProductInfo `json:"product"`
	Option    OptionInfo  `json:"option"`
	AddedAt   time.Time   `json:"added_at"`
}

// Subtotal is UnitPrice * Quantity.
func (l CartLine) Subtotal() int64 {
	return l.UnitPrice * l.Quantity
}

type ProductInfo struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Thumbnail    string `json:"thumbnail"`
}

type OptionInfo struct {
	OptionID        string `json:"option_id"`
	Size            string `json:"size,omitempty"`
	Unit            string `json:"unit,omitempty"`
	Image           string `json:"image,omitempty"`
	Price           int64  `json:"price"`
	SalePrice       *int64 `json:"sale_price,omitempty"`
	DiscountPercent int32  `json:"discount_percent"`
	StockQuantity   int64  `json:"stock_quantity"`
	IsActive        bool   `json:"is_active"`
}

// CartView is what callers see.
type CartView struct {
	CartID     string     `json:"cart_id,omitempty"`
	UserID     string     `json:"user_id"`
	Items      []CartLine `json:"items"`
	TotalPrice int64      `json:"total_price"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// EmptyCart is the canonical empty view.
func EmptyCart(userID string) *CartView {
	return &CartView{
		UserID: userID,
		Items:  []CartLine{},
	}
}

// DurableItem is one row of the durable mirror.
type DurableItem struct {
	ProductID  string
	OptionID   string
	Quantity   int64
	SavedPrice int64
}
