package models

import "time"

type MovementType string

const (
	MovementAdd      MovementType = "add"
	MovementWithdraw MovementType = "withdraw"
	MovementAdjust   MovementType = "adjust"

	MovementTransferOut MovementType = "transfer_out"
	MovementTransferIn  MovementType = "transfer_in"
)

type Movement struct {
	ID        uint `gorm:"primaryKey"`
	ProductID uint `gorm:"index;not null"`
	Product   Product
	BranchID  uint         `gorm:"index;not null"`
	Type      MovementType `gorm:"size:20;not null;index"`
	Quantity  int          `gorm:"not null"` // units, signed for adjust
	Cartons   int          `gorm:"not null;default:0"`
	Reference string       `gorm:"size:50;index"` // voucher number, if any
	Note      string       `gorm:"size:255"`
	CreatedBy string       `gorm:"size:100"`
	CreatedAt time.Time    `gorm:"index"`
}
