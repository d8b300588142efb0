package audit

import (
	"encoding/json"
	"fmt"

	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	BranchID    *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// By fills the actor fields from a session.
func (o LogOptions) By(s auth.Session) LogOptions {
	o.UserID = s.UserID
	o.UserName = s.Name
	return o
}

// WriteLog stores the entry outside any transaction.
func WriteLog(opts LogOptions) error {
	return Write(database.DB, opts)
}

// Write stores the entry with tx, so it commits or rolls back with the change it describes.
func Write(tx *gorm.DB, opts LogOptions) error {
	log := models.AuditLog{
		BranchID:    opts.BranchID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  marshal(opts.Before),
		AfterData:   marshal(opts.After),
	}

	if err := tx.Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// marshal renders v as JSON, "null" when absent or unencodable.
func marshal(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
