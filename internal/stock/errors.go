package stock

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonNoRecord         Reason = "no_record"
	ReasonExceedsAvailable Reason = "exceeds_available"
)

// InsufficientStockError is returned when a request cannot be served from a branch's stock.
// It is always recoverable: the caller rejects the request.
type InsufficientStockError struct {
	Reason    Reason
	ProductID uint
	BranchID  uint
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Reason == ReasonNoRecord {
		return fmt.Sprintf("no stock record for product %d in branch %d", e.ProductID, e.BranchID)
	}
	return fmt.Sprintf("requested %d units of product %d but only %d available in branch %d",
		e.Requested, e.ProductID, e.Available, e.BranchID)
}

// AsInsufficient unwraps err into an *InsufficientStockError.
func AsInsufficient(err error) (*InsufficientStockError, bool) {
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

var (
	ErrInvalidQuantity  = fmt.Errorf("quantity must be between 1 and %d", MaxQuantity)
	ErrInvalidUnitType  = errors.New("unit_type must be 'cartons' or 'units'")
	ErrInvalidMinimum   = errors.New("min_threshold cannot be negative")
	ErrInvalidCount     = fmt.Errorf("counted quantity must be between 0 and %d", MaxQuantity)
	ErrSameBranch       = errors.New("source and target branch must differ")
	ErrProductNotFound  = errors.New("product not found")
	ErrBranchNotFound   = errors.New("branch not found")
	ErrRecordNotFound   = errors.New("stock record not found")
	ErrConcurrentUpdate = errors.New("stock record was modified concurrently, retry")
)
