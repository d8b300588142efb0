package stock

import (
	"context"
	"errors"
	"fmt"

	"warehouse-backend/internal/metrics"
	"warehouse-backend/internal/models"

	"gorm.io/gorm"
)

// Checker answers whether a branch holds enough of a product. It only reads:
// a caller that debits afterwards must do so under Service.Withdraw, which
// repeats the check on the locked row.
type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

// Check returns nil when requested <= available, otherwise an *InsufficientStockError.
func (c *Checker) Check(ctx context.Context, productID, branchID uint, requested int) error {
	var rec models.StockRecord
	err := c.db.WithContext(ctx).
		Preload("Product").
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reject(&InsufficientStockError{
			Reason:    ReasonNoRecord,
			ProductID: productID,
			BranchID:  branchID,
			Requested: requested,
		})
	}
	if err != nil {
		return fmt.Errorf("load stock record: %w", err)
	}

	return CheckRecord(rec, rec.Product.CartonSize, requested)
}

// CheckRecord applies the sufficiency rule to an already loaded record.
func CheckRecord(rec models.StockRecord, cartonSize, requested int) error {
	available := rec.TotalUnits(cartonSize)
	if requested > available {
		return reject(&InsufficientStockError{
			Reason:    ReasonExceedsAvailable,
			ProductID: rec.ProductID,
			BranchID:  rec.BranchID,
			Requested: requested,
			Available: available,
		})
	}
	return nil
}

func reject(e *InsufficientStockError) error {
	metrics.InsufficientStock.WithLabelValues(string(e.Reason)).Inc()
	return e
}
