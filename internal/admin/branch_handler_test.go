package admin

import (
	"fmt"
	"testing"
	"time"

	"warehouse-backend/internal/apierror"
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/models"
	"warehouse-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxSessionKey, auth.Session{UserID: 1, Name: "Administrator", Role: models.RoleSuperAdmin})
		return c.Next()
	})
	app.Post("/branches", CreateBranchHandler())
	app.Get("/branches", ListBranchesHandler())
	app.Get("/branches/:id", GetBranchHandler())
	app.Put("/branches/:id", UpdateBranchHandler())
	app.Put("/branches/:id/password", SetBranchPasswordHandler())
	app.Delete("/branches/:id", DeleteBranchHandler())
	return app
}

func mainBranches(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var names []string
	require.NoError(t, db.Model(&models.Branch{}).Where("is_main = ?", true).Order("id").Pluck("name", &names).Error)
	return names
}

func TestBranchAtMostOneMain(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	app := newApp()

	var north, south BranchResponse
	resp := testutil.Do(t, app, "POST", "/branches", "", CreateBranchRequest{Name: " North ", Code: "N", IsMain: true}, &north)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "North", north.Name)
	assert.True(t, north.IsMain)
	assert.True(t, north.IsActive)

	resp = testutil.Do(t, app, "POST", "/branches", "", CreateBranchRequest{Name: "South", Code: "S", IsMain: true}, &south)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{"South"}, mainBranches(t, db))

	main := true
	resp = testutil.Do(t, app, "PUT", fmt.Sprintf("/branches/%d", north.ID), "", UpdateBranchRequest{IsMain: &main}, &north)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, north.IsMain)
	assert.Equal(t, []string{"North"}, mainBranches(t, db))

	var list []BranchResponse
	testutil.Do(t, app, "GET", "/branches", "", nil, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "North", list[0].Name, "main branch lists first")

	notMain := false
	resp = testutil.Do(t, app, "PUT", fmt.Sprintf("/branches/%d", north.ID), "", UpdateBranchRequest{IsMain: &notMain}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, mainBranches(t, db))

	resp = testutil.Do(t, app, "POST", "/branches", "", CreateBranchRequest{Name: "north"}, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = testutil.Do(t, app, "POST", "/branches", "", CreateBranchRequest{Name: "East", Code: "S"}, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	rename := "South"
	resp = testutil.Do(t, app, "PUT", fmt.Sprintf("/branches/%d", north.ID), "", UpdateBranchRequest{Name: &rename}, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = testutil.Do(t, app, "POST", "/branches", "", CreateBranchRequest{Name: "  "}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = testutil.Do(t, app, "GET", "/branches/999", "", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBranchPassword(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	app := newApp()

	resp := testutil.Do(t, app, "POST", "/branches", "", CreateBranchRequest{Name: "North", Password: "abc"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var b BranchResponse
	resp = testutil.Do(t, app, "POST", "/branches", "", CreateBranchRequest{Name: "North"}, &b)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.False(t, b.HasPassword)

	path := fmt.Sprintf("/branches/%d/password", b.ID)
	resp = testutil.Do(t, app, "PUT", path, "", SetBranchPasswordRequest{Password: "secret1"}, &b)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, b.HasPassword)

	var stored models.Branch
	require.NoError(t, db.First(&stored, b.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))

	resp = testutil.Do(t, app, "PUT", path, "", SetBranchPasswordRequest{Password: "short"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.NoError(t, db.First(&stored, b.ID).Error)
	assert.NotEmpty(t, stored.PasswordHash, "rejected password keeps the old one")

	resp = testutil.Do(t, app, "PUT", path, "", SetBranchPasswordRequest{}, &b)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, b.HasPassword)
	require.NoError(t, db.First(&stored, b.ID).Error)
	assert.Empty(t, stored.PasswordHash)

	var descs []string
	db.Model(&models.AuditLog{}).Where("entity_type = ? AND entity_id = ?", "branch", b.ID).Order("id").Pluck("description", &descs)
	assert.Equal(t, []string{
		"branch created: North",
		"warehouse password set: North",
		"warehouse password cleared: North",
	}, descs)
}

func TestDeleteBranchGuard(t *testing.T) {
	uses := []struct {
		name string
		use  func(t *testing.T, db *gorm.DB, branchID uint)
	}{
		{"stock record", func(t *testing.T, db *gorm.DB, branchID uint) {
			p := testutil.CreateProduct(t, db, "Cola", 6)
			testutil.CreateStock(t, db, p.ID, branchID, 0, 0, 0)
		}},
		{"movement", func(t *testing.T, db *gorm.DB, branchID uint) {
			p := testutil.CreateProduct(t, db, "Cola", 6)
			require.NoError(t, db.Create(&models.Movement{
				ProductID: p.ID, BranchID: branchID, Type: models.MovementAdd, Quantity: 1,
			}).Error)
		}},
		{"issue voucher", func(t *testing.T, db *gorm.DB, branchID uint) {
			require.NoError(t, db.Create(&models.IssueVoucher{
				VoucherNumber: "ISS-1", BranchID: branchID, IssueDate: time.Now(), Status: models.VoucherPending,
			}).Error)
		}},
		{"return voucher", func(t *testing.T, db *gorm.DB, branchID uint) {
			require.NoError(t, db.Create(&models.ReturnVoucher{
				VoucherNumber: "RET-1", BranchID: branchID, ReturnDate: time.Now(), Status: models.VoucherCompleted,
			}).Error)
		}},
		{"payment", func(t *testing.T, db *gorm.DB, branchID uint) {
			cust := testutil.CreateCustomer(t, db, "Acme")
			require.NoError(t, db.Create(&models.Payment{
				PaymentNumber: "PAY-1", CustomerID: cust.ID, BranchID: branchID, PaymentDate: time.Now(),
				Method: models.PaymentCash, Amount: decimal.NewFromInt(10),
			}).Error)
		}},
		{"deleted payment", func(t *testing.T, db *gorm.DB, branchID uint) {
			cust := testutil.CreateCustomer(t, db, "Acme")
			p := models.Payment{
				PaymentNumber: "PAY-1", CustomerID: cust.ID, BranchID: branchID, PaymentDate: time.Now(),
				Method: models.PaymentCash, Amount: decimal.NewFromInt(10),
			}
			require.NoError(t, db.Create(&p).Error)
			require.NoError(t, db.Delete(&p).Error)
		}},
	}
	for _, tt := range uses {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.UseGlobalDB(t)
			branch := testutil.CreateBranch(t, db, "North")
			tt.use(t, db, branch.ID)

			var failure map[string]any
			resp := testutil.Do(t, newApp(), "DELETE", fmt.Sprintf("/branches/%d", branch.ID), "", nil, &failure)
			assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
			assert.Contains(t, failure["error"], "deactivate it instead")

			var n int64
			db.Model(&models.Branch{}).Where("id = ?", branch.ID).Count(&n)
			assert.Equal(t, int64(1), n)
		})
	}

	t.Run("unused branch", func(t *testing.T) {
		db := testutil.UseGlobalDB(t)
		branch := testutil.CreateBranch(t, db, "North")
		user := models.User{Name: "Manager", Email: "m@example.com", PasswordHash: "x", Role: models.RoleStoreManager, BranchID: &branch.ID}
		require.NoError(t, db.Create(&user).Error)

		resp := testutil.Do(t, newApp(), "DELETE", fmt.Sprintf("/branches/%d", branch.ID), "", nil, nil)
		require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

		var n int64
		db.Model(&models.Branch{}).Where("id = ?", branch.ID).Count(&n)
		assert.Zero(t, n)
		require.NoError(t, db.First(&user, user.ID).Error)
		assert.Nil(t, user.BranchID)

		resp = testutil.Do(t, newApp(), "DELETE", fmt.Sprintf("/branches/%d", branch.ID), "", nil, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}
