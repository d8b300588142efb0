package models

import "time"

type Product struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:150;not null;unique"`
	SKU        string `gorm:"column:sku;size:50;index"`
	CategoryID *uint  `gorm:"index"`
	Category   *Category
	CartonSize int  `gorm:"not null;default:1"` // units per carton
	IsActive   bool `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
