package cache

import (
	"fmt"
	"strings"
)

// Hash layout of a cached cart.
const (
	FieldCartID    = "cartId"
	FieldUpdatedAt = "updatedAt"

	itemPrefix = "item:"
)

func CartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func ItemField(productID, optionID string) string {
	return itemPrefix + productID + ":" + optionID
}

// ParseItemField splits "item:<productId>:<optionId>". ok is false for any other shape.
func ParseItemField(field string) (productID, optionID string, ok bool) {
	rest, found := strings.CutPrefix(field, itemPrefix)
	if !found {
		return "", "", false
	}
	productID, optionID, found = strings.Cut(rest, ":")
	if !found || productID == "" || optionID == "" || strings.Contains(optionID, ":") {
		return "", "", false
	}
	return productID, optionID, true
}
