package models

import "time"

type Customer struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:200;not null"`
	Code      string `gorm:"size:30;index"`
	Phone     string `gorm:"size:50"`
	Address   string `gorm:"size:255"`
	IsActive  bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
