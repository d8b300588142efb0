package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"warehouse-backend/internal/config"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/logger"
	"warehouse-backend/internal/metrics"
	"warehouse-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type PINLoginRequest struct {
	PIN string `json:"pin"`
}

type PasswordLoginRequest struct {
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateUserRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
	BranchID *uint           `json:"branch_id"`
}

type UserResponse struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Role     models.UserRole `json:"role"`
	BranchID *uint           `json:"branch_id"`
}

// AdminLoginHandler exchanges the 6-digit admin PIN for a super_admin session.
func AdminLoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PINLoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if !pinMatches(cfg.AdminPIN, body.PIN) {
			return loginFailed(MethodAdminPIN, "invalid PIN")
		}
		return issue(c, cfg, Session{
			Name:   "Administrator",
			Role:   models.RoleSuperAdmin,
			Method: MethodAdminPIN,
		})
	}
}

// ManagerLoginHandler issues a store_manager session over every branch.
func ManagerLoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PINLoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if cfg.ManagerPIN == "" {
			return fiber.NewError(fiber.StatusForbidden, "warehouse manager login is disabled")
		}
		if !pinMatches(cfg.ManagerPIN, body.PIN) {
			return loginFailed(MethodManagerPIN, "invalid PIN")
		}
		return issue(c, cfg, Session{
			Name:   "Warehouse manager",
			Role:   models.RoleStoreManager,
			Method: MethodManagerPIN,
		})
	}
}

// WarehouseLoginHandler checks the per-branch password and scopes the session to that branch.
func WarehouseLoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid branch id")
		}

		var body PasswordLoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var branch models.Branch
		if err := database.DB.First(&branch, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "warehouse not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load warehouse")
		}
		if !branch.IsActive || branch.PasswordHash == "" {
			return loginFailed(MethodWarehousePassword, "password login is not enabled for this warehouse")
		}
		if bcrypt.CompareHashAndPassword([]byte(branch.PasswordHash), []byte(body.Password)) != nil {
			return loginFailed(MethodWarehousePassword, "invalid password")
		}

		branchID := branch.ID
		return issue(c, cfg, Session{
			Name:     branch.Name + " manager",
			Role:     models.RoleStoreManager,
			BranchID: &branchID,
			Method:   MethodWarehousePassword,
		})
	}
}

func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))

		var user models.User
		if err := database.DB.Where("email = ?", body.Email).First(&user).Error; err != nil {
			return loginFailed(MethodPassword, "invalid email or password")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return loginFailed(MethodPassword, "invalid email or password")
		}

		return issue(c, cfg, Session{
			UserID:   user.ID,
			Name:     user.Name,
			Role:     user.Role,
			BranchID: user.BranchID,
			Method:   MethodPassword,
		})
	}
}

func LogoutHandler(rev *Revocations) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := MustSession(c)
		if err != nil {
			return err
		}
		rev.Revoke(s.TokenID, s.ExpiresAt)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := MustSession(c)
		if err != nil {
			return err
		}

		response := fiber.Map{
			"user_id":    s.UserID,
			"name":       s.Name,
			"role":       s.Role,
			"branch_id":  s.BranchID,
			"method":     s.Method,
			"expires_at": s.ExpiresAt,
		}

		if s.UserID != 0 {
			var user models.User
			if err := database.DB.First(&user, s.UserID).Error; err == nil {
				response["email"] = user.Email
			}
		}
		if s.BranchID != nil {
			var branch models.Branch
			if err := database.DB.First(&branch, *s.BranchID).Error; err == nil {
				response["branch"] = fiber.Map{
					"id":      branch.ID,
					"name":    branch.Name,
					"code":    branch.Code,
					"address": branch.Address,
				}
			}
		}

		return c.JSON(response)
	}
}

// CreateUserHandler adds a password account. super_admin only.
func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name, email and password are required")
		}
		if len(body.Password) < 8 {
			return fiber.NewError(fiber.StatusBadRequest, "password must be at least 8 characters")
		}
		if !body.Role.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "invalid role")
		}
		if body.BranchID != nil {
			var n int64
			database.DB.Model(&models.Branch{}).Where("id = ?", *body.BranchID).Count(&n)
			if n == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "branch not found")
			}
		}

		var count int64
		database.DB.Model(&models.User{}).Where("email = ?", body.Email).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "email is already registered")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         body.Role,
			BranchID:     body.BranchID,
		}
		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create user")
		}

		return c.Status(fiber.StatusCreated).JSON(UserResponse{
			ID:       user.ID,
			Name:     user.Name,
			Email:    user.Email,
			Role:     user.Role,
			BranchID: user.BranchID,
		})
	}
}

func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var users []models.User
		if err := database.DB.Order("name ASC").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load users")
		}

		resp := make([]UserResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, BranchID: u.BranchID})
		}
		return c.JSON(resp)
	}
}

func issue(c *fiber.Ctx, cfg *config.Config, s Session) error {
	token, s, err := GenerateToken(cfg.JWTSecret, s)
	if err != nil {
		logger.Log.Error("token generation failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "could not create token")
	}
	metrics.LoginAttempts.WithLabelValues(s.Method, "success").Inc()

	return c.JSON(fiber.Map{
		"token":   token,
		"session": s,
	})
}

func loginFailed(method, msg string) error {
	metrics.LoginAttempts.WithLabelValues(method, "failure").Inc()
	logger.Log.Warn("login failed", zap.String("method", method))
	return fiber.NewError(fiber.StatusUnauthorized, msg)
}

func pinMatches(want, got string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.TrimSpace(got))) == 1
}
