package inventory

import (
	"fmt"
	"strings"
	"time"

	"warehouse-backend/internal/audit"
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/filter"
	"warehouse-backend/internal/models"
	"warehouse-backend/internal/sequence"
	"warehouse-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type WarehouseResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Code          string `json:"code"`
	Address       string `json:"address"`
	ManagerName   string `json:"manager_name"`
	IsMain        bool   `json:"is_main"`
	HasPassword   bool   `json:"has_password"`
	ProductCount  int    `json:"product_count"`
	TotalUnits    int    `json:"total_units"`
	BelowMinCount int    `json:"below_min_count"`
}

type InventoryRow struct {
	ProductID     uint   `json:"product_id"`
	ProductName   string `json:"product_name"`
	SKU           string `json:"sku"`
	CategoryID    *uint  `json:"category_id"`
	CartonSize    int    `json:"carton_size"`
	ClosedCartons int    `json:"closed_cartons"`
	LooseUnits    int    `json:"loose_units"`
	TotalUnits    int    `json:"total_units"`
	MinThreshold  int    `json:"min_threshold"`
	BelowMin      bool   `json:"below_min"`
	UpdatedAt     string `json:"updated_at"`
}

type StockMoveRequest struct {
	BranchID  uint   `json:"branch_id"`
	ProductID uint   `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitType  string `json:"unit_type"` // cartons | units, default units
	Note      string `json:"note"`
}

type StockMoveResponse struct {
	BranchID  uint        `json:"branch_id"`
	ProductID uint        `json:"product_id"`
	Units     int         `json:"units"`
	Level     stock.Level `json:"level"`
}

type SetMinRequest struct {
	BranchID     uint `json:"branch_id"`
	ProductID    uint `json:"product_id"`
	MinThreshold int  `json:"min_threshold"`
}

type TransferRequest struct {
	ProductID    uint   `json:"product_id"`
	FromBranchID uint   `json:"from_branch_id"` // forced to the session branch for scoped managers
	ToBranchID   uint   `json:"to_branch_id"`
	Quantity     int    `json:"quantity"`
	UnitType     string `json:"unit_type"`
	Note         string `json:"note"`
}

type TransferResponse struct {
	Reference    string      `json:"reference"`
	ProductID    uint        `json:"product_id"`
	FromBranchID uint        `json:"from_branch_id"`
	ToBranchID   uint        `json:"to_branch_id"`
	Units        int         `json:"units"`
	From         stock.Level `json:"from"`
	To           stock.Level `json:"to"`
}

type AdjustmentItem struct {
	ProductID   uint   `json:"product_id"`
	BranchID    uint   `json:"branch_id"`
	NewQuantity int    `json:"new_quantity"` // counted units
	Note        string `json:"note"`
}

type AdjustRequest struct {
	Adjustments []AdjustmentItem `json:"adjustments"`
}

type AdjustmentResult struct {
	ProductID uint        `json:"product_id"`
	BranchID  uint        `json:"branch_id"`
	Before    stock.Level `json:"before"`
	After     stock.Level `json:"after"`
}

type AdjustResponse struct {
	Reference     string             `json:"reference"`
	AdjustedCount int                `json:"adjusted_count"`
	Items         []AdjustmentResult `json:"items"`
}

type CheckResponse struct {
	Sufficient bool         `json:"sufficient"`
	Reason     stock.Reason `json:"reason,omitempty"`
	Requested  int          `json:"requested"`
	Available  int          `json:"available"`
}

var inventoryColumns = filter.Columns{
	Product:  "stock_records.product_id",
	Category: "products.category_id",
	Search:   []string{"products.name", "products.sku"},
}

// GET /api/warehouses
func ListWarehousesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		dbq := database.DB.Where("is_active = ?", true)
		if s.BranchID != nil {
			dbq = dbq.Where("id = ?", *s.BranchID)
		}
		var branches []models.Branch
		if err := dbq.Order("is_main DESC").Order("name ASC").Find(&branches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list warehouses")
		}

		var records []models.StockRecord
		err = database.DB.
			Joins("JOIN products ON products.id = stock_records.product_id AND products.is_active = ?", true).
			Preload("Product").
			Find(&records).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load stock")
		}
		totals := make(map[uint]*WarehouseResponse, len(branches))
		res := make([]WarehouseResponse, len(branches))
		for i, b := range branches {
			res[i] = WarehouseResponse{
				ID:          b.ID,
				Name:        b.Name,
				Code:        b.Code,
				Address:     b.Address,
				ManagerName: b.ManagerName,
				IsMain:      b.IsMain,
				HasPassword: b.PasswordHash != "",
			}
			totals[b.ID] = &res[i]
		}
		for _, r := range records {
			w, ok := totals[r.BranchID]
			if !ok {
				continue
			}
			w.ProductCount++
			w.TotalUnits += r.TotalUnits(r.Product.CartonSize)
			if r.BelowMin(r.Product.CartonSize) {
				w.BelowMinCount++
			}
		}

		return c.JSON(res)
	}
}

// GET /api/warehouses/:id/inventory?search=&category_id=&below_min=true
func WarehouseInventoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := c.ParamsInt("id")
		if err != nil || branchID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid warehouse id")
		}

		var branch models.Branch
		if err := database.DB.First(&branch, branchID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "warehouse not found")
		}

		opts := filter.FromQuery(c)
		opts.BranchID, opts.DateFrom, opts.DateTo = 0, nil, nil

		var records []models.StockRecord
		err = database.DB.Model(&models.StockRecord{}).
			Joins("JOIN products ON products.id = stock_records.product_id").
			Where("stock_records.branch_id = ? AND products.is_active = ?", branch.ID, true).
			Scopes(filter.Scope(inventoryColumns, opts)).
			Preload("Product").
			Order("products.name ASC").
			Find(&records).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load inventory")
		}

		onlyBelowMin := c.QueryBool("below_min")
		res := make([]InventoryRow, 0, len(records))
		for _, r := range records {
			row := toInventoryRow(r)
			if onlyBelowMin && !row.BelowMin {
				continue
			}
			res = append(res, row)
		}

		return c.JSON(fiber.Map{
			"warehouse": fiber.Map{"id": branch.ID, "name": branch.Name, "code": branch.Code},
			"items":     res,
		})
	}
}

// POST /api/inventory/add
func AddStockHandler() fiber.Handler {
	return moveHandler(models.MovementAdd)
}

// POST /api/inventory/withdraw
func WithdrawStockHandler() fiber.Handler {
	return moveHandler(models.MovementWithdraw)
}

func moveHandler(typ models.MovementType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		var body StockMoveRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		branchID, err := resolveBranch(s, body.BranchID)
		if err != nil {
			return err
		}
		if body.ProductID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "product_id is required")
		}

		var product models.Product
		if err := database.DB.First(&product, body.ProductID).Error; err != nil {
			return stock.ErrProductNotFound
		}
		if !product.IsActive {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "product is inactive")
		}
		units, err := stock.ToUnits(body.Quantity, body.UnitType, product.CartonSize)
		if err != nil {
			return err
		}

		svc := stock.NewService(database.DB)
		mv := stock.Move{Actor: s.Name, Note: body.Note}
		var lvl stock.Level
		if typ == models.MovementAdd {
			lvl, err = svc.Add(c.UserContext(), branchID, product.ID, units, mv)
		} else {
			lvl, err = svc.Withdraw(c.UserContext(), branchID, product.ID, units, mv)
		}
		if err != nil {
			return err
		}

		return c.JSON(StockMoveResponse{
			BranchID:  branchID,
			ProductID: product.ID,
			Units:     units,
			Level:     lvl,
		})
	}
}

// PATCH /api/inventory/set-min
func SetMinHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		var body SetMinRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		branchID, err := resolveBranch(s, body.BranchID)
		if err != nil {
			return err
		}

		var rec models.StockRecord
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			before, err := stock.NewService(tx).Get(c.UserContext(), branchID, body.ProductID)
			if err != nil {
				return err
			}
			if rec, err = stock.SetMinWithTx(tx, branchID, body.ProductID, body.MinThreshold); err != nil {
				return err
			}
			return audit.Write(tx, audit.LogOptions{
				BranchID:    &branchID,
				EntityType:  "stock_record",
				EntityID:    rec.ID,
				Action:      models.AuditActionUpdate,
				Description: "minimum updated: " + rec.Product.Name,
				Before:      fiber.Map{"min_threshold": before.MinThreshold},
				After:       fiber.Map{"min_threshold": rec.MinThreshold},
			}.By(s))
		})
		if err != nil {
			return err
		}

		return c.JSON(toInventoryRow(rec))
	}
}

// POST /api/inventory/transfer
func TransferStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		var body TransferRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		fromID, err := resolveBranch(s, body.FromBranchID)
		if err != nil {
			return err
		}
		if body.ToBranchID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "to_branch_id is required")
		}

		var product models.Product
		if err := database.DB.First(&product, body.ProductID).Error; err != nil {
			return stock.ErrProductNotFound
		}
		if !product.IsActive {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "product is inactive")
		}
		units, err := stock.ToUnits(body.Quantity, body.UnitType, product.CartonSize)
		if err != nil {
			return err
		}

		res := TransferResponse{ProductID: product.ID, FromBranchID: fromID, ToBranchID: body.ToBranchID, Units: units}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			number, err := sequence.Next(tx, sequence.Transfer, time.Now())
			if err != nil {
				return err
			}
			out, err := stock.TransferWithTx(tx, fromID, body.ToBranchID, product.ID, units,
				stock.Move{Actor: s.Name, Reference: number, Note: body.Note})
			if err != nil {
				return err
			}
			res.Reference, res.From, res.To = number, out.From, out.To

			return audit.Write(tx, audit.LogOptions{
				BranchID:    &fromID,
				EntityType:  "stock_transfer",
				EntityID:    product.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("transfer %s: %d units of %s", number, units, product.Name),
				After:       fiber.Map{"from_branch_id": fromID, "to_branch_id": body.ToBranchID, "units": units},
			}.By(s))
		})
		if err != nil {
			return err
		}

		return c.JSON(res)
	}
}

// POST /api/inventory/adjust
// Every counted quantity is applied in one transaction; a single failure rejects the batch.
func AdjustStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		var body AdjustRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if len(body.Adjustments) == 0 {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "adjustments must not be empty")
		}
		for i := range body.Adjustments {
			adj := &body.Adjustments[i]
			if adj.BranchID, err = resolveBranch(s, adj.BranchID); err != nil {
				return err
			}
		}

		res := AdjustResponse{Items: make([]AdjustmentResult, 0, len(body.Adjustments))}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			number, err := sequence.Next(tx, sequence.Adjustment, time.Now())
			if err != nil {
				return err
			}
			res.Reference = number

			for _, adj := range body.Adjustments {
				note := strings.TrimSpace(adj.Note)
				if note == "" {
					note = "stock count"
				}
				out, err := stock.AdjustWithTx(tx, adj.BranchID, adj.ProductID, adj.NewQuantity,
					stock.Move{Actor: s.Name, Reference: number, Note: note})
				if err != nil {
					return err
				}
				res.Items = append(res.Items, AdjustmentResult{
					ProductID: adj.ProductID,
					BranchID:  adj.BranchID,
					Before:    out.Before,
					After:     out.After,
				})
				if out.Before == out.After {
					continue
				}
				res.AdjustedCount++

				if err := audit.Write(tx, audit.LogOptions{
					BranchID:    &adj.BranchID,
					EntityType:  "stock_record",
					EntityID:    out.RecordID,
					Action:      models.AuditActionUpdate,
					Description: fmt.Sprintf("stock adjusted %s: %d -> %d units", number, out.Before.TotalUnits, out.After.TotalUnits),
					Before:      out.Before,
					After:       out.After,
				}.By(s)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GET /api/inventory/check?product_id=&branch_id=&quantity=&unit_type=
func CheckStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		productID := c.QueryInt("product_id", 0)
		if productID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "product_id is required")
		}
		reqBranch := c.QueryInt("branch_id", 0)
		if reqBranch < 0 {
			reqBranch = 0
		}
		branchID, err := resolveBranch(s, uint(reqBranch))
		if err != nil {
			return err
		}
		quantity := c.QueryInt("quantity", -1)
		if quantity < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "quantity must be a non-negative integer")
		}

		requested := quantity
		if unitType := c.Query("unit_type"); unitType != "" {
			var product models.Product
			if err := database.DB.First(&product, productID).Error; err != nil {
				return stock.ErrProductNotFound
			}
			if requested, err = stock.ToUnits(quantity, unitType, product.CartonSize); err != nil {
				return err
			}
		}

		err = stock.NewChecker(database.DB).Check(c.UserContext(), uint(productID), branchID, requested)
		if ise, ok := stock.AsInsufficient(err); ok {
			return c.JSON(CheckResponse{
				Sufficient: false,
				Reason:     ise.Reason,
				Requested:  ise.Requested,
				Available:  ise.Available,
			})
		}
		if err != nil {
			return err
		}

		rec, err := stock.NewService(database.DB).Get(c.UserContext(), branchID, uint(productID))
		if err != nil {
			return err
		}
		return c.JSON(CheckResponse{
			Sufficient: true,
			Requested:  requested,
			Available:  rec.TotalUnits(rec.Product.CartonSize),
		})
	}
}

// resolveBranch applies the session's branch scope to a requested branch id.
func resolveBranch(s auth.Session, requested uint) (uint, error) {
	if requested != 0 && !s.CanAccessBranch(requested) {
		return 0, fiber.NewError(fiber.StatusForbidden, "no access to this branch")
	}
	branchID := s.ResolveBranch(requested)
	if branchID == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id is required")
	}
	return branchID, nil
}

func toInventoryRow(r models.StockRecord) InventoryRow {
	size := r.Product.CartonSize
	return InventoryRow{
		ProductID:     r.ProductID,
		ProductName:   r.Product.Name,
		SKU:           r.Product.SKU,
		CategoryID:    r.Product.CategoryID,
		CartonSize:    size,
		ClosedCartons: r.ClosedCartons,
		LooseUnits:    r.LooseUnits,
		TotalUnits:    r.TotalUnits(size),
		MinThreshold:  r.MinThreshold,
		BelowMin:      r.BelowMin(size),
		UpdatedAt:     r.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}
