package audit

import (
	"testing"

	"warehouse-backend/internal/apierror"
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/models"
	"warehouse-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLog(t *testing.T) {
	db := testutil.UseGlobalDB(t)

	branchID := uint(3)
	opts := LogOptions{
		BranchID:    &branchID,
		EntityType:  "payment",
		EntityID:    9,
		Action:      models.AuditActionCreate,
		Description: "payment created",
		After:       fiber.Map{"amount": "10.00"},
	}.By(auth.Session{UserID: 4, Name: "Ayla"})
	require.NoError(t, WriteLog(opts))

	var log models.AuditLog
	require.NoError(t, db.First(&log).Error)
	assert.Equal(t, uint(4), log.UserID)
	assert.Equal(t, "Ayla", log.UserName)
	assert.Equal(t, "null", log.BeforeData)
	assert.JSONEq(t, `{"amount":"10.00"}`, log.AfterData)
}

func TestListAuditLogsScopesBranch(t *testing.T) {
	testutil.UseGlobalDB(t)

	one, two := uint(1), uint(2)
	require.NoError(t, WriteLog(LogOptions{BranchID: &one, EntityType: "issue_voucher", EntityID: 1, Action: models.AuditActionCreate}))
	require.NoError(t, WriteLog(LogOptions{BranchID: &two, EntityType: "issue_voucher", EntityID: 2, Action: models.AuditActionCreate}))
	require.NoError(t, WriteLog(LogOptions{BranchID: &two, EntityType: "payment", EntityID: 3, Action: models.AuditActionDelete, Description: "payment PAY-2025/00003 removed"}))

	list := func(s auth.Session, query string) []AuditLogResponse {
		app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler})
		app.Get("/audit-logs", func(c *fiber.Ctx) error {
			c.Locals(auth.CtxSessionKey, s)
			return c.Next()
		}, ListAuditLogsHandler())

		var out []AuditLogResponse
		resp := testutil.Do(t, app, "GET", "/audit-logs"+query, "", nil, &out)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		return out
	}

	admin := auth.Session{Role: models.RoleSuperAdmin}
	assert.Len(t, list(admin, ""), 3)
	assert.Len(t, list(admin, "?branch_id=2"), 2)
	assert.Len(t, list(admin, "?entity_type=payment"), 1)
	assert.Len(t, list(admin, "?action=create&branch_id=2"), 1)
	assert.Len(t, list(admin, "?description=removed"), 1)
	assert.Len(t, list(admin, "?search=removed"), 3, "search has no columns on audit logs")

	scoped := auth.Session{Role: models.RoleStoreManager, BranchID: &one}
	got := list(scoped, "?branch_id=2")
	require.Len(t, got, 1)
	assert.Equal(t, uint(1), got[0].EntityID)
}
