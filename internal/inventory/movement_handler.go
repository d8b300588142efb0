package inventory

import (
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/filter"
	"warehouse-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type MovementResponse struct {
	ID          uint                `json:"id"`
	ProductID   uint                `json:"product_id"`
	ProductName string              `json:"product_name"`
	BranchID    uint                `json:"branch_id"`
	Type        models.MovementType `json:"type"`
	Quantity    int                 `json:"quantity"`
	Cartons     int                 `json:"cartons"`
	Reference   string              `json:"reference"`
	Note        string              `json:"note"`
	CreatedBy   string              `json:"created_by"`
	CreatedAt   string              `json:"created_at"`
}

var movementColumns = filter.Columns{
	Date:    "movements.created_at",
	Branch:  "movements.branch_id",
	Product: "movements.product_id",
	Search:  []string{"products.name", "products.sku", "movements.reference"},
}

// GET /api/movements?date_from=&date_to=&branch_id=&product_id=&category_id=&search=&type=
func ListMovementsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		opts := filter.FromQuery(c)
		opts.BranchID = s.ResolveBranch(opts.BranchID)

		dbq := database.DB.Model(&models.Movement{}).
			Joins("JOIN products ON products.id = movements.product_id").
			Preload("Product").
			Scopes(filter.Scope(movementColumns, opts))
		if typ := c.Query("type"); typ != "" {
			dbq = dbq.Where("movements.type = ?", typ)
		}

		var rows []models.Movement
		if err := dbq.Order("movements.created_at DESC").Order("movements.id DESC").Limit(1000).Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list movements")
		}

		res := make([]MovementResponse, 0, len(rows))
		for _, m := range rows {
			res = append(res, MovementResponse{
				ID:          m.ID,
				ProductID:   m.ProductID,
				ProductName: m.Product.Name,
				BranchID:    m.BranchID,
				Type:        m.Type,
				Quantity:    m.Quantity,
				Cartons:     m.Cartons,
				Reference:   m.Reference,
				Note:        m.Note,
				CreatedBy:   m.CreatedBy,
				CreatedAt:   m.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return c.JSON(res)
	}
}
