package models

import "time"

// StockRecord holds the on-hand stock of one product in one branch.
// Rows are never deleted, only zeroed.
type StockRecord struct {
	ID            uint `gorm:"primaryKey"`
	ProductID     uint `gorm:"not null;uniqueIndex:idx_stock_product_branch"`
	Product       Product
	BranchID      uint `gorm:"not null;uniqueIndex:idx_stock_product_branch;index"`
	Branch        Branch
	ClosedCartons int `gorm:"not null;default:0;check:chk_stock_closed_cartons,closed_cartons >= 0"`
	LooseUnits    int `gorm:"not null;default:0;check:chk_stock_loose_units,loose_units >= 0"`
	MinThreshold  int `gorm:"not null;default:0"`
	Version       int `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TotalUnits is the canonical available quantity.
func (s StockRecord) TotalUnits(cartonSize int) int {
	return s.ClosedCartons*cartonSize + s.LooseUnits
}

func (s StockRecord) BelowMin(cartonSize int) bool {
	return s.TotalUnits(cartonSize) < s.MinThreshold
}
