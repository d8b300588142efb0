package audit

import (
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/filter"
	"warehouse-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	BranchID    *uint              `json:"branch_id"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	Before      string             `json:"before_data"`
	After       string             `json:"after_data"`
}

var logColumns = filter.Columns{
	Date:   "created_at",
	Branch: "branch_id",
}

// GET /api/audit-logs?entity_type=issue_voucher&entity_id=1&branch_id=1&date_from=2025-01-01&description=
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		opts := filter.FromQuery(c)
		opts.BranchID = s.ResolveBranch(opts.BranchID)

		dbq := database.DB.Model(&models.AuditLog{}).Scopes(
			filter.Scope(logColumns, opts),
			filter.Contains([]string{"description"}, c.Query("description")),
		)

		if uid := c.QueryInt("user_id", 0); uid > 0 {
			dbq = dbq.Where("user_id = ?", uid)
		}
		if entityType := c.Query("entity_type"); entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}
		if eid := c.QueryInt("entity_id", 0); eid > 0 {
			dbq = dbq.Where("entity_id = ?", eid)
		}
		if action := c.Query("action"); action != "" {
			dbq = dbq.Where("action = ?", action)
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC").Order("id DESC").Limit(500).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load audit logs")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
				BranchID:    log.BranchID,
				UserID:      log.UserID,
				UserName:    log.UserName,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				Description: log.Description,
				Before:      log.BeforeData,
				After:       log.AfterData,
			})
		}

		return c.JSON(resp)
	}
}
