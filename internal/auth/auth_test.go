package auth

import (
	"fmt"
	"testing"
	"time"

	"warehouse-backend/internal/apierror"
	"warehouse-backend/internal/config"
	"warehouse-backend/internal/models"
	"warehouse-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testCfg = &config.Config{
	JWTSecret:  "0123456789abcdef0123456789abcdef",
	AdminPIN:   "123456",
	ManagerPIN: "4321",
}

type loginResponse struct {
	Token   string  `json:"token"`
	Session Session `json:"session"`
	Error   string  `json:"error"`
}

func newApp() (*fiber.App, *Revocations) {
	rev := NewRevocations()
	app := fiber.New(fiber.Config{ErrorHandler: apierror.Handler})
	api := app.Group("/api")
	api.Post("/admin/login", AdminLoginHandler(testCfg))
	api.Post("/warehouse-manager/login", ManagerLoginHandler(testCfg))
	api.Post("/warehouses/:id/login", WarehouseLoginHandler(testCfg))
	api.Post("/auth/login", LoginHandler(testCfg))

	protected := api.Group("", RequireSession(testCfg, rev))
	protected.Post("/auth/logout", LogoutHandler(rev))
	protected.Get("/auth/me", MeHandler())
	protected.Get("/branches/:id/ping", RequireBranchAccess("id"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin := protected.Group("/admin", RequireRole(models.RoleSuperAdmin))
	admin.Post("/users", CreateUserHandler())
	admin.Get("/users", ListUsersHandler())
	return app, rev
}

func TestAdminLogin(t *testing.T) {
	testutil.UseGlobalDB(t)
	app, _ := newApp()

	var out loginResponse
	resp := testutil.Do(t, app, "POST", "/api/admin/login", "", PINLoginRequest{PIN: "123456"}, &out)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, models.RoleSuperAdmin, out.Session.Role)
	assert.Nil(t, out.Session.BranchID)

	resp = testutil.Do(t, app, "POST", "/api/admin/login", "", PINLoginRequest{PIN: "000000"}, &out)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid PIN", out.Error)
}

func TestManagerLogin(t *testing.T) {
	testutil.UseGlobalDB(t)
	app, _ := newApp()

	var out loginResponse
	resp := testutil.Do(t, app, "POST", "/api/warehouse-manager/login", "", PINLoginRequest{PIN: "4321"}, &out)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.RoleStoreManager, out.Session.Role)
	assert.Nil(t, out.Session.BranchID)
}

func TestWarehouseLogin(t *testing.T) {
	db := testutil.UseGlobalDB(t)
	app, _ := newApp()

	branch := testutil.CreateBranch(t, db, "North")
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Model(&branch).Update("password_hash", string(hash)).Error)
	other := testutil.CreateBranch(t, db, "South")

	var out loginResponse
	resp := testutil.Do(t, app, "POST", "/api/warehouses/"+itoa(branch.ID)+"/login", "",
		PasswordLoginRequest{Password: "s3cret-pass"}, &out)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, out.Session.BranchID)
	assert.Equal(t, branch.ID, *out.Session.BranchID)

	resp = testutil.Do(t, app, "GET", "/api/branches/"+itoa(branch.ID)+"/ping", out.Token, nil, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	resp = testutil.Do(t, app, "GET", "/api/branches/"+itoa(other.ID)+"/ping", out.Token, nil, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = testutil.Do(t, app, "POST", "/api/warehouses/"+itoa(branch.ID)+"/login", "",
		PasswordLoginRequest{Password: "wrong"}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = testutil.Do(t, app, "POST", "/api/warehouses/"+itoa(other.ID)+"/login", "",
		PasswordLoginRequest{Password: "anything"}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "no password set")

	resp = testutil.Do(t, app, "POST", "/api/warehouses/999/login", "",
		PasswordLoginRequest{Password: "anything"}, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestUserAccounts(t *testing.T) {
	testutil.UseGlobalDB(t)
	app, _ := newApp()

	var admin loginResponse
	testutil.Do(t, app, "POST", "/api/admin/login", "", PINLoginRequest{PIN: "123456"}, &admin)

	req := CreateUserRequest{Name: "Ayla", Email: " Ayla@Example.com ", Password: "password1", Role: models.RoleAccountant}
	var created UserResponse
	resp := testutil.Do(t, app, "POST", "/api/admin/users", admin.Token, req, &created)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ayla@example.com", created.Email)

	resp = testutil.Do(t, app, "POST", "/api/admin/users", admin.Token, req, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	bad := req
	bad.Email, bad.Role = "x@example.com", "owner"
	resp = testutil.Do(t, app, "POST", "/api/admin/users", admin.Token, bad, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var user loginResponse
	resp = testutil.Do(t, app, "POST", "/api/auth/login", "", LoginRequest{Email: "ayla@example.com", Password: "password1"}, &user)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.RoleAccountant, user.Session.Role)
	assert.Equal(t, created.ID, user.Session.UserID)

	resp = testutil.Do(t, app, "POST", "/api/admin/users", user.Token, req, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode, "accountants cannot create users")

	var me map[string]any
	resp = testutil.Do(t, app, "GET", "/api/auth/me", user.Token, nil, &me)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ayla@example.com", me["email"])

	var users []UserResponse
	testutil.Do(t, app, "GET", "/api/admin/users", admin.Token, nil, &users)
	assert.Len(t, users, 1)

	resp = testutil.Do(t, app, "POST", "/api/auth/login", "", LoginRequest{Email: "ayla@example.com", Password: "nope"}, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRevokesToken(t *testing.T) {
	testutil.UseGlobalDB(t)
	app, _ := newApp()

	var out loginResponse
	testutil.Do(t, app, "POST", "/api/admin/login", "", PINLoginRequest{PIN: "123456"}, &out)

	resp := testutil.Do(t, app, "GET", "/api/auth/me", out.Token, nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = testutil.Do(t, app, "POST", "/api/auth/logout", out.Token, nil, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = testutil.Do(t, app, "GET", "/api/auth/me", out.Token, nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequireSessionRejects(t *testing.T) {
	testutil.UseGlobalDB(t)
	app, _ := newApp()

	resp := testutil.Do(t, app, "GET", "/api/auth/me", "", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = testutil.Do(t, app, "GET", "/api/auth/me", "garbage", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, _, err := GenerateToken("another-secret-another-secret-xx", Session{Role: models.RoleSuperAdmin})
	require.NoError(t, err)
	resp = testutil.Do(t, app, "GET", "/api/auth/me", token, nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTokenRoundTrip(t *testing.T) {
	branchID := uint(7)
	token, issued, err := GenerateToken(testCfg.JWTSecret, Session{
		Name: "x", Role: models.RoleStoreManager, BranchID: &branchID, Method: MethodWarehousePassword,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.TokenID)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), issued.ExpiresAt, time.Minute)

	s, err := ParseToken(testCfg.JWTSecret, token)
	require.NoError(t, err)
	assert.Equal(t, issued.TokenID, s.TokenID)
	assert.True(t, s.CanAccessBranch(7))
	assert.False(t, s.CanAccessBranch(8))
	assert.Equal(t, uint(7), s.ResolveBranch(3))

	unscoped := Session{Role: models.RoleSuperAdmin}
	assert.Equal(t, uint(3), unscoped.ResolveBranch(3))
	assert.True(t, unscoped.CanAccessBranch(99))
}

func TestRevocationsExpire(t *testing.T) {
	r := NewRevocations()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Revoke("a", now.Add(time.Hour))
	assert.True(t, r.IsRevoked("a"))
	assert.False(t, r.IsRevoked("b"))

	now = now.Add(2 * time.Hour)
	assert.False(t, r.IsRevoked("a"))
}

func itoa(id uint) string {
	return fmt.Sprint(id)
}
