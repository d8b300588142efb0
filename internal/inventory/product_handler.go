package inventory

import (
	"strings"

	"warehouse-backend/internal/audit"
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/filter"
	"warehouse-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ProductResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	SKU          string `json:"sku"`
	CategoryID   *uint  `json:"category_id"`
	CategoryName string `json:"category_name,omitempty"`
	CartonSize   int    `json:"carton_size"`
	IsActive     bool   `json:"is_active"`
}

type CreateProductRequest struct {
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	CategoryID *uint  `json:"category_id"`
	CartonSize int    `json:"carton_size"`
}

type UpdateProductRequest struct {
	Name       *string `json:"name"`
	SKU        *string `json:"sku"`
	CategoryID *uint   `json:"category_id"`
	CartonSize *int    `json:"carton_size"`
	IsActive   *bool   `json:"is_active"`
}

var productColumns = filter.Columns{
	Category: "category_id",
	Search:   []string{"name", "sku"},
}

func toProductResponse(p models.Product) ProductResponse {
	res := ProductResponse{
		ID:         p.ID,
		Name:       p.Name,
		SKU:        p.SKU,
		CategoryID: p.CategoryID,
		CartonSize: p.CartonSize,
		IsActive:   p.IsActive,
	}
	if p.Category != nil {
		res.CategoryName = p.Category.Name
	}
	return res
}

// GET /api/products?search=&category_id=&include_inactive=true
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Product{}).
			Preload("Category").
			Scopes(filter.Scope(productColumns, filter.FromQuery(c)))
		if !c.QueryBool("include_inactive") {
			dbq = dbq.Where("is_active = ?", true)
		}

		var products []models.Product
		if err := dbq.Order("name asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list products")
		}

		res := make([]ProductResponse, 0, len(products))
		for _, p := range products {
			res = append(res, toProductResponse(p))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/products
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.SKU = strings.TrimSpace(body.SKU)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "product name is required")
		}
		if body.CartonSize == 0 {
			body.CartonSize = 1
		}
		if body.CartonSize < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "carton_size must be at least 1")
		}
		if err := ensureUniqueProduct(0, body.Name, body.SKU); err != nil {
			return err
		}
		if err := ensureCategory(body.CategoryID); err != nil {
			return err
		}

		p := models.Product{
			Name:       body.Name,
			SKU:        body.SKU,
			CategoryID: body.CategoryID,
			CartonSize: body.CartonSize,
			IsActive:   true,
		}

		if err := database.DB.Create(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create product")
		}

		return c.Status(fiber.StatusCreated).JSON(toProductResponse(p))
	}
}

// PUT /api/admin/products/:id
//
// Changing carton_size while stock exists would reinterpret every closed carton,
// so it is refused once the product has stock records.
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var p models.Product
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "product name is required")
			}
			p.Name = name
		}
		if body.SKU != nil {
			p.SKU = strings.TrimSpace(*body.SKU)
		}
		if body.CategoryID != nil {
			if err := ensureCategory(body.CategoryID); err != nil {
				return err
			}
			p.CategoryID = body.CategoryID
		}
		if body.CartonSize != nil && *body.CartonSize != p.CartonSize {
			if *body.CartonSize < 1 {
				return fiber.NewError(fiber.StatusBadRequest, "carton_size must be at least 1")
			}
			var n int64
			database.DB.Model(&models.StockRecord{}).
				Where("product_id = ? AND (closed_cartons > 0 OR loose_units > 0)", p.ID).
				Count(&n)
			if n > 0 {
				return fiber.NewError(fiber.StatusConflict, "carton_size cannot change while the product is in stock")
			}
			p.CartonSize = *body.CartonSize
		}
		if body.IsActive != nil {
			p.IsActive = *body.IsActive
		}
		if err := ensureUniqueProduct(p.ID, p.Name, p.SKU); err != nil {
			return err
		}

		p.Category = nil
		if err := database.DB.Save(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update product")
		}

		return c.JSON(toProductResponse(p))
	}
}

// DeactivateProductHandler hides a product. Stock records and history are kept.
// DELETE /api/products/:id
func DeactivateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		id := c.Params("id")

		var p models.Product
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		if !p.IsActive {
			return c.SendStatus(fiber.StatusNoContent)
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&p).Update("is_active", false).Error; err != nil {
				return err
			}
			return audit.Write(tx, audit.LogOptions{
				EntityType:  "product",
				EntityID:    p.ID,
				Action:      models.AuditActionDelete,
				Description: "product deactivated: " + p.Name,
				Before:      toProductResponse(p),
			}.By(s))
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not deactivate product")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func ensureUniqueProduct(id uint, name, sku string) error {
	var n int64
	database.DB.Model(&models.Product{}).Where("LOWER(name) = LOWER(?) AND id <> ?", name, id).Count(&n)
	if n > 0 {
		return fiber.NewError(fiber.StatusConflict, "a product with this name already exists")
	}
	if sku != "" {
		database.DB.Model(&models.Product{}).Where("sku = ? AND id <> ?", sku, id).Count(&n)
		if n > 0 {
			return fiber.NewError(fiber.StatusConflict, "this SKU is already in use")
		}
	}
	return nil
}

func ensureCategory(id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	database.DB.Model(&models.Category{}).Where("id = ?", *id).Count(&n)
	if n == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "category not found")
	}
	return nil
}
