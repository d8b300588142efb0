package apierror

import (
	"errors"
	"fmt"
	"testing"

	"warehouse-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fiber.NewError(fiber.StatusForbidden, "no"), fiber.StatusForbidden},
		{stock.ErrInvalidQuantity, fiber.StatusUnprocessableEntity},
		{fmt.Errorf("add: %w", stock.ErrRecordNotFound), fiber.StatusNotFound},
		{stock.ErrConcurrentUpdate, fiber.StatusConflict},
		{stock.ErrSameBranch, fiber.StatusUnprocessableEntity},
		{stock.ErrInvalidCount, fiber.StatusUnprocessableEntity},
		{&stock.InsufficientStockError{Reason: stock.ReasonNoRecord}, fiber.StatusUnprocessableEntity},
		{errors.New("disk on fire"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Status(tt.err), tt.err.Error())
	}
}
