package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCheque       PaymentMethod = "cheque"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCheque, PaymentBankTransfer:
		return true
	}
	return false
}

type Payment struct {
	ID                uint   `gorm:"primaryKey"`
	PaymentNumber     string `gorm:"size:50;not null;uniqueIndex"`
	CustomerID        uint   `gorm:"index;not null"`
	Customer          Customer
	BranchID          uint            `gorm:"index;not null"`
	PaymentDate       time.Time       `gorm:"index;not null"`
	Method            PaymentMethod   `gorm:"size:20;not null;default:'cash'"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ChequeNumber      string          `gorm:"size:50"`
	TransferReference string          `gorm:"size:100"`
	Notes             string          `gorm:"size:500"`
	CreatedBy         uint
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}
