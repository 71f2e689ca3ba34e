package cache

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

// LoadSnapshot reads the user's cart hash. It returns nil, nil when the hash is empty
// or has no cartId field. Malformed item fields are skipped.
func LoadSnapshot(ctx context.Context, store HashStore, userID string) (*domain.CartSnapshot, error) {
	hash, err := store.GetAll(ctx, CartKey(userID))
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(hash), nil
}

func ParseSnapshot(hash map[string]string) *domain.CartSnapshot {
	cartID := hash[FieldCartID]
	if len(hash) == 0 || cartID == "" {
		return nil
	}

	snapshot := &domain.CartSnapshot{
		CartID:    cartID,
		UpdatedAt: parseTime(hash[FieldUpdatedAt]),
		Lines:     make([]domain.SnapshotLine, 0, len(hash)),
	}

	for field, value := range hash {
		productID, optionID, ok := ParseItemField(field)
		if !ok {
			continue
		}
		qty, ok := ParseQuantity(value)
		if !ok {
			continue
		}
		snapshot.Lines = append(snapshot.Lines, domain.SnapshotLine{
			ProductID: productID,
			OptionID:  optionID,
			Quantity:  qty,
		})
	}

	sort.Slice(snapshot.Lines, func(i, j int) bool {
		a, b := snapshot.Lines[i], snapshot.Lines[j]
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.OptionID < b.OptionID
	})
	return snapshot
}

// ParseQuantity accepts positive base-10 integers only.
func ParseQuantity(value string) (int64, bool) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parseTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Now()
}
