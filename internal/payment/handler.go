package payment

import (
	"errors"
	"strings"
	"time"

	"warehouse-backend/internal/audit"
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/filter"
	"warehouse-backend/internal/logger"
	"warehouse-backend/internal/models"
	"warehouse-backend/internal/sequence"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreatePaymentRequest struct {
	CustomerID        uint                 `json:"customer_id"`
	BranchID          uint                 `json:"branch_id"`
	PaymentDate       string               `json:"payment_date"` // YYYY-MM-DD, default today
	Method            models.PaymentMethod `json:"method"`
	Amount            decimal.Decimal      `json:"amount"`
	ChequeNumber      string               `json:"cheque_number"`
	TransferReference string               `json:"transfer_reference"`
	Notes             string               `json:"notes"`
}

type PaymentResponse struct {
	ID                uint                 `json:"id"`
	PaymentNumber     string               `json:"payment_number"`
	CustomerID        uint                 `json:"customer_id"`
	CustomerName      string               `json:"customer_name"`
	BranchID          uint                 `json:"branch_id"`
	PaymentDate       string               `json:"payment_date"`
	Method            models.PaymentMethod `json:"method"`
	Amount            decimal.Decimal      `json:"amount"`
	ChequeNumber      string               `json:"cheque_number,omitempty"`
	TransferReference string               `json:"transfer_reference,omitempty"`
	Notes             string               `json:"notes"`
	CreatedAt         string               `json:"created_at"`
}

var paymentColumns = filter.Columns{
	Date:     "payment_date",
	Branch:   "branch_id",
	Customer: "customer_id",
	Search:   []string{"payment_number"},
}

func toResponse(p models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID,
		PaymentNumber:     p.PaymentNumber,
		CustomerID:        p.CustomerID,
		CustomerName:      p.Customer.Name,
		BranchID:          p.BranchID,
		PaymentDate:       p.PaymentDate.Format("2006-01-02"),
		Method:            p.Method,
		Amount:            p.Amount,
		ChequeNumber:      p.ChequeNumber,
		TransferReference: p.TransferReference,
		Notes:             p.Notes,
		CreatedAt:         p.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/payments
func CreatePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}

		var body CreatePaymentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		if body.Method == "" {
			body.Method = models.PaymentCash
		}
		if !body.Method.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "method must be cash, cheque or bank_transfer")
		}
		if !body.Amount.IsPositive() {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "amount must be greater than zero")
		}
		body.ChequeNumber = strings.TrimSpace(body.ChequeNumber)
		if body.Method == models.PaymentCheque && body.ChequeNumber == "" {
			return fiber.NewError(fiber.StatusUnprocessableEntity, "cheque_number is required for cheque payments")
		}

		if body.BranchID != 0 && !s.CanAccessBranch(body.BranchID) {
			return fiber.NewError(fiber.StatusForbidden, "no access to this branch")
		}
		branchID := s.ResolveBranch(body.BranchID)
		if branchID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "branch_id is required")
		}

		date := time.Now()
		if body.PaymentDate != "" {
			if date, err = time.Parse("2006-01-02", body.PaymentDate); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "payment_date must be YYYY-MM-DD")
			}
		}

		var customer models.Customer
		if err := database.DB.First(&customer, body.CustomerID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "customer not found")
		}

		p := models.Payment{
			CustomerID:        customer.ID,
			BranchID:          branchID,
			PaymentDate:       date,
			Method:            body.Method,
			Amount:            body.Amount.Round(2),
			ChequeNumber:      body.ChequeNumber,
			TransferReference: strings.TrimSpace(body.TransferReference),
			Notes:             strings.TrimSpace(body.Notes),
			CreatedBy:         s.UserID,
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			number, err := sequence.Next(tx, sequence.Payment, date)
			if err != nil {
				return err
			}
			p.PaymentNumber = number
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			return audit.Write(tx, audit.LogOptions{
				BranchID:    &p.BranchID,
				EntityType:  "payment",
				EntityID:    p.ID,
				Action:      models.AuditActionCreate,
				Description: "payment recorded: " + p.PaymentNumber + " from " + customer.Name,
				After:       fiber.Map{"amount": p.Amount.StringFixed(2), "method": p.Method},
			}.By(s))
		})
		if err != nil {
			logger.Log.Error("create payment failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not record payment")
		}

		p.Customer = customer
		return c.Status(fiber.StatusCreated).JSON(toResponse(p))
	}
}

// GET /api/payments?customer_id=&branch_id=&date_from=&date_to=&method=&search=&reference=
// search matches the payment number; reference matches cheque numbers and transfer references.
func ListPaymentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		opts := filter.FromQuery(c)
		opts.BranchID = s.ResolveBranch(opts.BranchID)

		dbq := database.DB.Model(&models.Payment{}).Preload("Customer").Scopes(
			filter.Scope(paymentColumns, opts),
			filter.Contains([]string{"cheque_number", "transfer_reference"}, c.Query("reference")),
		)
		if method := c.Query("method"); method != "" {
			dbq = dbq.Where("method = ?", method)
		}

		var rows []models.Payment
		if err := dbq.Order("payment_date DESC").Order("id DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list payments")
		}

		total := decimal.Zero
		res := make([]PaymentResponse, 0, len(rows))
		for _, p := range rows {
			res = append(res, toResponse(p))
			total = total.Add(p.Amount)
		}
		return c.JSON(fiber.Map{
			"items": res,
			"total": total.StringFixed(2),
		})
	}
}

// DELETE /api/payments/:id
func DeletePaymentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payment id")
		}

		var p models.Payment
		if err := database.DB.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "payment not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load payment")
		}
		if !s.CanAccessBranch(p.BranchID) {
			return fiber.NewError(fiber.StatusNotFound, "payment not found")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&p).Error; err != nil {
				return err
			}
			return audit.Write(tx, audit.LogOptions{
				BranchID:    &p.BranchID,
				EntityType:  "payment",
				EntityID:    p.ID,
				Action:      models.AuditActionDelete,
				Description: "payment deleted: " + p.PaymentNumber,
				Before:      fiber.Map{"amount": p.Amount.StringFixed(2), "method": p.Method},
			}.By(s))
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete payment")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
