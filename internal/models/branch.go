package models

import "time"

type Branch struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:100;not null;unique"`
	Code         string `gorm:"size:30;index"`
	Address      string `gorm:"size:255"`
	ManagerName  string `gorm:"size:100"`
	IsActive     bool   `gorm:"not null"`
	IsMain       bool   `gorm:"not null"` // at most one, kept by the handlers
	PasswordHash string `gorm:"size:255"` // empty: warehouse password login disabled
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Users []User
}
