package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every cart error wraps exactly one of them so callers can branch with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrConflict       = errors.New("conflict")
	ErrUnavailable    = errors.New("temporarily unavailable")
)

var (
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrOptionNotFound  = fmt.Errorf("product option %w", ErrNotFound)
	ErrItemNotInCart   = fmt.Errorf("item not in cart: %w", ErrNotFound)

	ErrOptionRequired  = fmt.Errorf("%w: option_id is required", ErrInvalidRequest)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than 0", ErrInvalidRequest)
	ErrOptionMismatch  = fmt.Errorf("%w: option does not belong to product", ErrInvalidRequest)

	ErrOptionInactive    = fmt.Errorf("%w: product option is inactive", ErrConflict)
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrConflict)

	ErrCacheUnavailable     = fmt.Errorf("cart cache %w", ErrUnavailable)
	ErrAuthorityUnavailable = fmt.Errorf("catalog %w", ErrUnavailable)
)
