package models

import "time"

type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"
	AuditActionCancel AuditAction = "cancel"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	BranchID *uint `json:"branch_id"`

	UserID   uint   `json:"user_id"`
	UserName string `gorm:"size:100" json:"user_name"` // denormalized

	// e.g. "issue_voucher", "return_voucher", "payment", "stock_record"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	BeforeData string `gorm:"type:text" json:"before_data"`
	AfterData  string `gorm:"type:text" json:"after_data"`
}
