package payment

import (
	"fmt"
	"testing"

	"warehouse-backend/internal/apierror"
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/models"
	"warehouse-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listResponse struct {
	Items []PaymentResponse `json:"items"`
	Total string            `json:"total"`
}

func newApp(s auth.Session) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxSessionKey, s)
		return c.Next()
	})
	app.Post("/payments", CreatePaymentHandler())
	app.Get("/payments", ListPaymentsHandler())
	app.Delete("/payments/:id", DeletePaymentHandler())
	return app
}

func TestPaymentHandlers(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	north := testutil.CreateBranch(t, db, "North")
	acme := testutil.CreateCustomer(t, db, "Acme")
	app := newApp(auth.Session{UserID: 1, Name: "Administrator", Role: models.RoleSuperAdmin})

	var created PaymentResponse
	resp := testutil.Do(t, app, "POST", "/payments", "", CreatePaymentRequest{
		CustomerID:  acme.ID,
		BranchID:    north.ID,
		PaymentDate: "2025-05-02",
		Amount:      decimal.RequireFromString("125.50"),
	}, &created)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "PAY-2025/00001", created.PaymentNumber)
	assert.Equal(t, models.PaymentCash, created.Method)
	assert.Equal(t, "Acme", created.CustomerName)
	assert.Equal(t, "2025-05-02", created.PaymentDate)

	resp = testutil.Do(t, app, "POST", "/payments", "", CreatePaymentRequest{
		CustomerID:   acme.ID,
		BranchID:     north.ID,
		PaymentDate:  "2025-06-10",
		Method:       models.PaymentCheque,
		ChequeNumber: "CH-77",
		Amount:       decimal.NewFromInt(20),
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	bad := []struct {
		name   string
		req    CreatePaymentRequest
		status int
	}{
		{"zero amount", CreatePaymentRequest{CustomerID: acme.ID, BranchID: north.ID, Amount: decimal.Zero}, fiber.StatusUnprocessableEntity},
		{"negative amount", CreatePaymentRequest{CustomerID: acme.ID, BranchID: north.ID, Amount: decimal.NewFromInt(-5)}, fiber.StatusUnprocessableEntity},
		{"cheque without number", CreatePaymentRequest{CustomerID: acme.ID, BranchID: north.ID, Method: models.PaymentCheque, Amount: decimal.NewFromInt(5)}, fiber.StatusUnprocessableEntity},
		{"unknown method", CreatePaymentRequest{CustomerID: acme.ID, BranchID: north.ID, Method: "barter", Amount: decimal.NewFromInt(5)}, fiber.StatusBadRequest},
		{"unknown customer", CreatePaymentRequest{CustomerID: 9999, BranchID: north.ID, Amount: decimal.NewFromInt(5)}, fiber.StatusNotFound},
		{"missing branch", CreatePaymentRequest{CustomerID: acme.ID, Amount: decimal.NewFromInt(5)}, fiber.StatusBadRequest},
		{"bad date", CreatePaymentRequest{CustomerID: acme.ID, BranchID: north.ID, PaymentDate: "02/05/2025", Amount: decimal.NewFromInt(5)}, fiber.StatusBadRequest},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.Do(t, app, "POST", "/payments", "", tt.req, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	var list listResponse
	testutil.Do(t, app, "GET", "/payments", "", nil, &list)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "145.50", list.Total)
	assert.Equal(t, "CH-77", list.Items[0].ChequeNumber)

	testutil.Do(t, app, "GET", "/payments?method=cash", "", nil, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.ID, list.Items[0].ID)

	testutil.Do(t, app, "GET", "/payments?date_from=2025-06-01", "", nil, &list)
	assert.Len(t, list.Items, 1)

	testutil.Do(t, app, "GET", "/payments?search=ch-77", "", nil, &list)
	assert.Empty(t, list.Items, "search covers payment numbers only")

	testutil.Do(t, app, "GET", "/payments?reference=ch-77", "", nil, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "CH-77", list.Items[0].ChequeNumber)

	testutil.Do(t, app, "GET", "/payments?search=pay-2025/00001", "", nil, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.ID, list.Items[0].ID)

	resp = testutil.Do(t, app, "DELETE", fmt.Sprintf("/payments/%d", created.ID), "", nil, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	testutil.Do(t, app, "GET", "/payments", "", nil, &list)
	assert.Len(t, list.Items, 1)

	resp = testutil.Do(t, app, "DELETE", fmt.Sprintf("/payments/%d", created.ID), "", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var logs int64
	db.Model(&models.AuditLog{}).Where("entity_type = ?", "payment").Count(&logs)
	assert.Equal(t, int64(3), logs)
}

func TestPaymentsScopedToBranch(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	north := testutil.CreateBranch(t, db, "North")
	south := testutil.CreateBranch(t, db, "South")
	acme := testutil.CreateCustomer(t, db, "Acme")

	admin := newApp(auth.Session{Role: models.RoleSuperAdmin})
	resp := testutil.Do(t, admin, "POST", "/payments", "", CreatePaymentRequest{CustomerID: acme.ID, BranchID: south.ID, Amount: decimal.NewFromInt(9)}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	manager := newApp(auth.Session{Role: models.RoleStoreManager, BranchID: &north.ID})

	resp = testutil.Do(t, manager, "POST", "/payments", "", CreatePaymentRequest{CustomerID: acme.ID, BranchID: south.ID, Amount: decimal.NewFromInt(5)}, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var created PaymentResponse
	resp = testutil.Do(t, manager, "POST", "/payments", "", CreatePaymentRequest{CustomerID: acme.ID, Amount: decimal.NewFromInt(5)}, &created)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, north.ID, created.BranchID)

	var list listResponse
	testutil.Do(t, manager, "GET", fmt.Sprintf("/payments?branch_id=%d", south.ID), "", nil, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, north.ID, list.Items[0].BranchID)
}
