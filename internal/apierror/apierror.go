// Package apierror renders handler errors as {"error": msg} JSON bodies.
package apierror

import (
	"errors"

	"warehouse-backend/internal/logger"
	"warehouse-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler is the fiber ErrorHandler for the whole API.
func Handler(c *fiber.Ctx, err error) error {
	if ise, ok := stock.AsInsufficient(err); ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":      ise.Error(),
			"reason":     ise.Reason,
			"product_id": ise.ProductID,
			"branch_id":  ise.BranchID,
			"requested":  ise.Requested,
			"available":  ise.Available,
		})
	}

	code := Status(err)
	msg := err.Error()
	if code >= fiber.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			msg = "internal server error"
		}
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, stock.ErrInvalidQuantity),
		errors.Is(err, stock.ErrInvalidUnitType),
		errors.Is(err, stock.ErrInvalidMinimum),
		errors.Is(err, stock.ErrInvalidCount),
		errors.Is(err, stock.ErrSameBranch):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, stock.ErrProductNotFound),
		errors.Is(err, stock.ErrBranchNotFound),
		errors.Is(err, stock.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, stock.ErrConcurrentUpdate):
		return fiber.StatusConflict
	}
	if _, ok := stock.AsInsufficient(err); ok {
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}
