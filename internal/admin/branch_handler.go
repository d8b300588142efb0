package admin

import (
	"errors"
	"strings"

	"warehouse-backend/internal/audit"
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/logger"
	"warehouse-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type BranchResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Address     string `json:"address"`
	ManagerName string `json:"manager_name"`
	IsActive    bool   `json:"is_active"`
	IsMain      bool   `json:"is_main"`
	HasPassword bool   `json:"has_password"`
	CreatedAt   string `json:"created_at"`
}

type CreateBranchRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Address     string `json:"address"`
	ManagerName string `json:"manager_name"`
	IsActive    *bool  `json:"is_active"` // default true
	IsMain      bool   `json:"is_main"`
	Password    string `json:"password"` // optional warehouse password
}

type UpdateBranchRequest struct {
	Name        *string `json:"name"`
	Code        *string `json:"code"`
	Address     *string `json:"address"`
	ManagerName *string `json:"manager_name"`
	IsActive    *bool   `json:"is_active"`
	IsMain      *bool   `json:"is_main"`
}

type SetBranchPasswordRequest struct {
	Password string `json:"password"` // empty disables the warehouse login
}

const minWarehousePasswordLen = 6

func toBranchResponse(b models.Branch) BranchResponse {
	return BranchResponse{
		ID:          b.ID,
		Name:        b.Name,
		Code:        b.Code,
		Address:     b.Address,
		ManagerName: b.ManagerName,
		IsActive:    b.IsActive,
		IsMain:      b.IsMain,
		HasPassword: b.PasswordHash != "",
		CreatedAt:   b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func CreateBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		var body CreateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Code = strings.TrimSpace(body.Code)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "branch name is required")
		}
		if err := ensureUniqueBranch(0, body.Name, body.Code); err != nil {
			return err
		}

		branch := models.Branch{
			Name:        body.Name,
			Code:        body.Code,
			Address:     strings.TrimSpace(body.Address),
			ManagerName: strings.TrimSpace(body.ManagerName),
			IsActive:    body.IsActive == nil || *body.IsActive,
			IsMain:      body.IsMain,
		}
		if body.Password != "" {
			hash, err := hashWarehousePassword(body.Password)
			if err != nil {
				return err
			}
			branch.PasswordHash = hash
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&branch).Error; err != nil {
				return err
			}
			if branch.IsMain {
				if err := clearOtherMain(tx, branch.ID); err != nil {
					return err
				}
			}
			return audit.Write(tx, audit.LogOptions{
				BranchID:    &branch.ID,
				EntityType:  "branch",
				EntityID:    branch.ID,
				Action:      models.AuditActionCreate,
				Description: "branch created: " + branch.Name,
				After:       toBranchResponse(branch),
			}.By(s))
		})
		if err != nil {
			logger.Log.Error("create branch failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not create branch")
		}

		return c.Status(fiber.StatusCreated).JSON(toBranchResponse(branch))
	}
}

func ListBranchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Order("is_main DESC").Order("name ASC")
		if c.QueryBool("active") {
			dbq = dbq.Where("is_active = ?", true)
		}

		var branches []models.Branch
		if err := dbq.Find(&branches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list branches")
		}

		res := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			res = append(res, toBranchResponse(b))
		}

		return c.JSON(res)
	}
}

func GetBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := loadBranch(c)
		if err != nil {
			return err
		}
		return c.JSON(toBranchResponse(branch))
	}
}

func UpdateBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		branch, err := loadBranch(c)
		if err != nil {
			return err
		}
		before := toBranchResponse(branch)

		var body UpdateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "branch name is required")
			}
			branch.Name = name
		}
		if body.Code != nil {
			branch.Code = strings.TrimSpace(*body.Code)
		}
		if body.Address != nil {
			branch.Address = strings.TrimSpace(*body.Address)
		}
		if body.ManagerName != nil {
			branch.ManagerName = strings.TrimSpace(*body.ManagerName)
		}
		if body.IsActive != nil {
			branch.IsActive = *body.IsActive
		}
		if body.IsMain != nil {
			branch.IsMain = *body.IsMain
		}
		if err := ensureUniqueBranch(branch.ID, branch.Name, branch.Code); err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&branch).Error; err != nil {
				return err
			}
			if branch.IsMain {
				if err := clearOtherMain(tx, branch.ID); err != nil {
					return err
				}
			}
			return audit.Write(tx, audit.LogOptions{
				BranchID:    &branch.ID,
				EntityType:  "branch",
				EntityID:    branch.ID,
				Action:      models.AuditActionUpdate,
				Description: "branch updated: " + branch.Name,
				Before:      before,
				After:       toBranchResponse(branch),
			}.By(s))
		})
		if err != nil {
			logger.Log.Error("update branch failed", zap.Uint("branch_id", branch.ID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not update branch")
		}

		return c.JSON(toBranchResponse(branch))
	}
}

// SetBranchPasswordHandler sets or clears the warehouse login password.
func SetBranchPasswordHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		branch, err := loadBranch(c)
		if err != nil {
			return err
		}

		var body SetBranchPasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		hash := ""
		if body.Password != "" {
			if hash, err = hashWarehousePassword(body.Password); err != nil {
				return err
			}
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&branch).Update("password_hash", hash).Error; err != nil {
				return err
			}
			desc := "warehouse password set: " + branch.Name
			if hash == "" {
				desc = "warehouse password cleared: " + branch.Name
			}
			return audit.Write(tx, audit.LogOptions{
				BranchID:    &branch.ID,
				EntityType:  "branch",
				EntityID:    branch.ID,
				Action:      models.AuditActionUpdate,
				Description: desc,
			}.By(s))
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update password")
		}
		branch.PasswordHash = hash

		return c.JSON(toBranchResponse(branch))
	}
}

// DeleteBranchHandler removes a branch that was never used. Others must be deactivated instead.
func DeleteBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		branch, err := loadBranch(c)
		if err != nil {
			return err
		}

		used, err := branchInUse(database.DB, branch.ID)
		if err != nil {
			logger.Log.Error("branch usage check failed", zap.Uint("branch_id", branch.ID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not check branch usage")
		}
		if used {
			return fiber.NewError(fiber.StatusConflict, "branch has stock, vouchers or payments, deactivate it instead")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.User{}).Where("branch_id = ?", branch.ID).Update("branch_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Delete(&branch).Error; err != nil {
				return err
			}
			return audit.Write(tx, audit.LogOptions{
				EntityType:  "branch",
				EntityID:    branch.ID,
				Action:      models.AuditActionDelete,
				Description: "branch deleted: " + branch.Name,
				Before:      toBranchResponse(branch),
			}.By(s))
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete branch")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// branchInUse reports whether any stock, movement, voucher or payment row references the branch.
// Soft-deleted payments count.
func branchInUse(db *gorm.DB, branchID uint) (bool, error) {
	for _, m := range []any{
		&models.StockRecord{},
		&models.Movement{},
		&models.IssueVoucher{},
		&models.ReturnVoucher{},
		&models.Payment{},
	} {
		var n int64
		if err := db.Unscoped().Model(m).Where("branch_id = ?", branchID).Count(&n).Error; err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func loadBranch(c *fiber.Ctx) (models.Branch, error) {
	var branch models.Branch
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return branch, fiber.NewError(fiber.StatusBadRequest, "invalid branch id")
	}
	if err := database.DB.First(&branch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return branch, fiber.NewError(fiber.StatusNotFound, "branch not found")
		}
		return branch, fiber.NewError(fiber.StatusInternalServerError, "could not load branch")
	}
	return branch, nil
}

func ensureUniqueBranch(id uint, name, code string) error {
	var n int64
	if err := database.DB.Model(&models.Branch{}).Where("LOWER(name) = LOWER(?) AND id <> ?", name, id).Count(&n).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not check branch name")
	}
	if n > 0 {
		return fiber.NewError(fiber.StatusConflict, "a branch with this name already exists")
	}
	if code != "" {
		if err := database.DB.Model(&models.Branch{}).Where("code = ? AND id <> ?", code, id).Count(&n).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not check branch code")
		}
		if n > 0 {
			return fiber.NewError(fiber.StatusConflict, "a branch with this code already exists")
		}
	}
	return nil
}

func clearOtherMain(tx *gorm.DB, keepID uint) error {
	return tx.Model(&models.Branch{}).
		Where("id <> ? AND is_main = ?", keepID, true).
		Update("is_main", false).Error
}

func hashWarehousePassword(pw string) (string, error) {
	if len(pw) < minWarehousePasswordLen {
		return "", fiber.NewError(fiber.StatusBadRequest, "warehouse password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "could not hash password")
	}
	return string(hash), nil
}
