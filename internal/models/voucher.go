package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type VoucherStatus string

const (
	VoucherPending   VoucherStatus = "pending"
	VoucherApproved  VoucherStatus = "approved"
	VoucherCompleted VoucherStatus = "completed"
	VoucherCancelled VoucherStatus = "cancelled"
)

type IssueVoucher struct {
	ID            uint   `gorm:"primaryKey"`
	VoucherNumber string `gorm:"size:50;not null;uniqueIndex"`
	CustomerID    *uint  `gorm:"index"`
	Customer      *Customer
	CustomerName  string `gorm:"size:200"` // cash customer
	BranchID      uint   `gorm:"index;not null"`
	Branch        Branch
	IssueDate     time.Time       `gorm:"index;not null"`
	Status        VoucherStatus   `gorm:"size:20;not null;index;default:'pending'"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Notes         string          `gorm:"size:500"`
	CreatedBy     uint
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Items []IssueVoucherItem `gorm:"constraint:OnDelete:CASCADE"`
}

type IssueVoucherItem struct {
	ID             uint `gorm:"primaryKey"`
	IssueVoucherID uint `gorm:"index;not null"`
	ProductID      uint `gorm:"index;not null"`
	Product        Product
	Quantity       int             `gorm:"not null"` // units
	UnitPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	LineTotal      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
}

type ReturnVoucher struct {
	ID            uint   `gorm:"primaryKey"`
	VoucherNumber string `gorm:"size:50;not null;uniqueIndex"`
	CustomerID    *uint  `gorm:"index"`
	Customer      *Customer
	CustomerName  string `gorm:"size:200"`
	BranchID      uint   `gorm:"index;not null"`
	Branch        Branch
	ReturnDate    time.Time       `gorm:"index;not null"`
	Status        VoucherStatus   `gorm:"size:20;not null;index;default:'completed'"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Notes         string          `gorm:"size:500"`
	CreatedBy     uint
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Items []ReturnVoucherItem `gorm:"constraint:OnDelete:CASCADE"`
}

type ReturnVoucherItem struct {
	ID              uint `gorm:"primaryKey"`
	ReturnVoucherID uint `gorm:"index;not null"`
	ProductID       uint `gorm:"index;not null"`
	Product         Product
	Quantity        int             `gorm:"not null"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	LineTotal       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
}
