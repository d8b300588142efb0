package inventory

import (
	"strings"

	"warehouse-backend/internal/database"
	"warehouse-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CategoryResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	ProductCount int64  `json:"product_count"`
	CreatedAt    string `json:"created_at"`
}

type CategoryRequest struct {
	Name string `json:"name"`
}

// GET /api/categories
func ListCategoriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		type row struct {
			models.Category
			ProductCount int64
		}
		var rows []row
		err := database.DB.Model(&models.Category{}).
			Select("categories.*, (SELECT COUNT(*) FROM products WHERE products.category_id = categories.id) AS product_count").
			Order("name asc").
			Scan(&rows).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list categories")
		}

		res := make([]CategoryResponse, 0, len(rows))
		for _, r := range rows {
			res = append(res, CategoryResponse{
				ID:           r.ID,
				Name:         r.Name,
				ProductCount: r.ProductCount,
				CreatedAt:    r.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		return c.JSON(res)
	}
}

// POST /api/admin/categories
func CreateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "category name is required")
		}
		if err := ensureUniqueCategory(0, body.Name); err != nil {
			return err
		}

		cat := models.Category{Name: body.Name}
		if err := database.DB.Create(&cat).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create category")
		}

		return c.Status(fiber.StatusCreated).JSON(CategoryResponse{
			ID:        cat.ID,
			Name:      cat.Name,
			CreatedAt: cat.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// PUT /api/admin/categories/:id
func UpdateCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var cat models.Category
		if err := database.DB.First(&cat, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "category not found")
		}

		var body CategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		name := strings.TrimSpace(body.Name)
		if name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "category name is required")
		}
		if err := ensureUniqueCategory(cat.ID, name); err != nil {
			return err
		}
		cat.Name = name

		if err := database.DB.Save(&cat).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update category")
		}

		return c.JSON(CategoryResponse{
			ID:        cat.ID,
			Name:      cat.Name,
			CreatedAt: cat.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// DELETE /api/admin/categories/:id
func DeleteCategoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var count int64
		database.DB.Model(&models.Product{}).Where("category_id = ?", id).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "category still has products")
		}

		res := database.DB.Delete(&models.Category{}, "id = ?", id)
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete category")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "category not found")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func ensureUniqueCategory(id uint, name string) error {
	var n int64
	database.DB.Model(&models.Category{}).Where("LOWER(name) = LOWER(?) AND id <> ?", name, id).Count(&n)
	if n > 0 {
		return fiber.NewError(fiber.StatusConflict, "a category with this name already exists")
	}
	return nil
}
