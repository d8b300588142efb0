package dashboard

import (
	"fmt"
	"strings"
	"time"

	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// summaryOptions reads ?search&branch_id&below_min. Scoped sessions only see their own branch.
func summaryOptions(c *fiber.Ctx, s auth.Session) SummaryOptions {
	requested := c.QueryInt("branch_id", 0)
	if requested < 0 {
		requested = 0
	}
	return SummaryOptions{
		BranchID: s.ResolveBranch(uint(requested)),
		Search:   strings.TrimSpace(c.Query("search")),
		BelowMin: c.QueryBool("below_min"),
	}
}

// GET /api/dashboard/kpis?branch_id=
func KPIsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		k, err := LoadKPIs(database.DB, summaryOptions(c, s).BranchID)
		if err != nil {
			logger.Log.Error("dashboard kpis failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not load dashboard")
		}
		return c.JSON(k)
	}
}

// GET /api/dashboard/summary?search=&branch_id=&below_min=true
func SummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		rows, err := LoadSummary(database.DB, summaryOptions(c, s))
		if err != nil {
			logger.Log.Error("dashboard summary failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not load summary")
		}
		if rows == nil {
			rows = []SummaryRow{}
		}
		return c.JSON(rows)
	}
}

// GET /api/dashboard/summary.xlsx, same filters as the JSON summary
func SummaryExportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		rows, err := LoadSummary(database.DB, summaryOptions(c, s))
		if err != nil {
			logger.Log.Error("dashboard summary failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not load summary")
		}
		data, err := WriteSummaryXLSX(rows)
		if err != nil {
			logger.Log.Error("summary export failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not build spreadsheet")
		}

		name := fmt.Sprintf("stock_summary_%s.xlsx", time.Now().Format("20060102_150405"))
		c.Set(fiber.HeaderContentType, xlsxContentType)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
		return c.Send(data)
	}
}
