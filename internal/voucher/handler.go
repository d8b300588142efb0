package voucher

import (
	"errors"
	"strings"
	"time"

	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/database"
	"warehouse-backend/internal/filter"
	"warehouse-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type ItemRequest struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitType  string          `json:"unit_type"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type VoucherRequest struct {
	BranchID     uint          `json:"branch_id"`
	CustomerID   *uint         `json:"customer_id"`
	CustomerName string        `json:"customer_name"`
	Date         string        `json:"date"` // YYYY-MM-DD, default today
	Notes        string        `json:"notes"`
	Items        []ItemRequest `json:"items"`
}

type StatusRequest struct {
	Status models.VoucherStatus `json:"status"`
}

type ItemResponse struct {
	ID          uint            `json:"id"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type VoucherResponse struct {
	ID            uint                 `json:"id"`
	VoucherNumber string               `json:"voucher_number"`
	CustomerID    *uint                `json:"customer_id"`
	CustomerName  string               `json:"customer_name"`
	BranchID      uint                 `json:"branch_id"`
	BranchName    string               `json:"branch_name,omitempty"`
	Date          string               `json:"date"`
	Status        models.VoucherStatus `json:"status"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Notes         string               `json:"notes"`
	CreatedAt     string               `json:"created_at"`
	Items         []ItemResponse       `json:"items,omitempty"`
}

var issueColumns = filter.Columns{
	Date:     "issue_date",
	Branch:   "branch_id",
	Customer: "customer_id",
	Status:   "status",
	Search:   []string{"voucher_number"},
}

var returnColumns = filter.Columns{
	Date:     "return_date",
	Branch:   "branch_id",
	Customer: "customer_id",
	Status:   "status",
	Search:   []string{"voucher_number"},
}

// POST /api/issue-vouchers
func CreateIssueVoucherHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, in, err := parseInput(c)
		if err != nil {
			return err
		}
		v, err := NewService(database.DB).CreateIssue(c.UserContext(), in, s)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(issueResponse(v))
	}
}

// GET /api/issue-vouchers?search=&customer_name=&status=&date_from=&date_to=
func ListIssueVouchersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		opts := filter.FromQuery(c)
		opts.BranchID = s.ResolveBranch(opts.BranchID)

		dbq := database.DB.Model(&models.IssueVoucher{}).Scopes(
			filter.Scope(issueColumns, opts),
			filter.Contains([]string{"customer_name"}, c.Query("customer_name")),
		)
		if opts.ProductID != 0 {
			dbq = dbq.Where("id IN (SELECT issue_voucher_id FROM issue_voucher_items WHERE product_id = ?)", opts.ProductID)
		}

		var rows []models.IssueVoucher
		if err := dbq.Preload("Branch").Order("issue_date DESC").Order("id DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list issue vouchers")
		}

		res := make([]VoucherResponse, 0, len(rows))
		for _, v := range rows {
			r := issueResponse(v)
			r.Items = nil
			res = append(res, r)
		}
		return c.JSON(res)
	}
}

// GET /api/issue-vouchers/:id
func GetIssueVoucherHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid voucher id")
		}

		v, err := NewService(database.DB).GetIssue(c.UserContext(), uint(id))
		if err != nil {
			return httpError(err)
		}
		if !s.CanAccessBranch(v.BranchID) {
			return httpError(ErrNotFound)
		}
		return c.JSON(issueResponse(v))
	}
}

// POST /api/issue-vouchers/:id/status {"status": "approved"}
func ChangeIssueStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid voucher id")
		}

		var body StatusRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		switch body.Status {
		case models.VoucherPending, models.VoucherApproved, models.VoucherCompleted, models.VoucherCancelled:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "invalid status")
		}

		v, err := NewService(database.DB).ChangeIssueStatus(c.UserContext(), uint(id), body.Status, s)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(issueResponse(v))
	}
}

// POST /api/return-vouchers
func CreateReturnVoucherHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, in, err := parseInput(c)
		if err != nil {
			return err
		}
		v, err := NewService(database.DB).CreateReturn(c.UserContext(), in, s)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(returnResponse(v))
	}
}

// GET /api/return-vouchers?search=&customer_name=&date_from=&date_to=
func ListReturnVouchersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		opts := filter.FromQuery(c)
		opts.BranchID = s.ResolveBranch(opts.BranchID)

		dbq := database.DB.Model(&models.ReturnVoucher{}).Scopes(
			filter.Scope(returnColumns, opts),
			filter.Contains([]string{"customer_name"}, c.Query("customer_name")),
		)
		if opts.ProductID != 0 {
			dbq = dbq.Where("id IN (SELECT return_voucher_id FROM return_voucher_items WHERE product_id = ?)", opts.ProductID)
		}

		var rows []models.ReturnVoucher
		if err := dbq.Preload("Branch").Order("return_date DESC").Order("id DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list return vouchers")
		}

		res := make([]VoucherResponse, 0, len(rows))
		for _, v := range rows {
			r := returnResponse(v)
			r.Items = nil
			res = append(res, r)
		}
		return c.JSON(res)
	}
}

// POST /api/return-vouchers/:id/cancel
func CancelReturnVoucherHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := auth.MustSession(c)
		if err != nil {
			return err
		}
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid voucher id")
		}

		v, err := NewService(database.DB).CancelReturn(c.UserContext(), uint(id), s)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(returnResponse(v))
	}
}

func parseInput(c *fiber.Ctx) (auth.Session, Input, error) {
	s, err := auth.MustSession(c)
	if err != nil {
		return s, Input{}, err
	}

	var body VoucherRequest
	if err := c.BodyParser(&body); err != nil {
		return s, Input{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if body.BranchID != 0 && !s.CanAccessBranch(body.BranchID) {
		return s, Input{}, fiber.NewError(fiber.StatusForbidden, "no access to this branch")
	}
	branchID := s.ResolveBranch(body.BranchID)
	if branchID == 0 {
		return s, Input{}, fiber.NewError(fiber.StatusBadRequest, "branch_id is required")
	}

	in := Input{
		BranchID:     branchID,
		CustomerID:   body.CustomerID,
		CustomerName: body.CustomerName,
		Notes:        strings.TrimSpace(body.Notes),
	}
	if body.Date != "" {
		d, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			return s, Input{}, fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		in.Date = d
	}
	for _, it := range body.Items {
		in.Items = append(in.Items, ItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitType:  it.UnitType,
			UnitPrice: it.UnitPrice,
		})
	}
	return s, in, nil
}

// httpError maps voucher errors to HTTP errors. Stock errors pass through to the API error handler.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrCustomerNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyCancelled):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNoItems), errors.Is(err, ErrInvalidItem),
		errors.Is(err, ErrCustomerRequired), errors.Is(err, ErrInactiveProduct):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return err
}

func issueResponse(v models.IssueVoucher) VoucherResponse {
	res := VoucherResponse{
		ID:            v.ID,
		VoucherNumber: v.VoucherNumber,
		CustomerID:    v.CustomerID,
		CustomerName:  v.CustomerName,
		BranchID:      v.BranchID,
		BranchName:    v.Branch.Name,
		Date:          v.IssueDate.Format("2006-01-02"),
		Status:        v.Status,
		TotalAmount:   v.TotalAmount,
		Notes:         v.Notes,
		CreatedAt:     v.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	for _, it := range v.Items {
		res.Items = append(res.Items, ItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.Product.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	return res
}

func returnResponse(v models.ReturnVoucher) VoucherResponse {
	res := VoucherResponse{
		ID:            v.ID,
		VoucherNumber: v.VoucherNumber,
		CustomerID:    v.CustomerID,
		CustomerName:  v.CustomerName,
		BranchID:      v.BranchID,
		BranchName:    v.Branch.Name,
		Date:          v.ReturnDate.Format("2006-01-02"),
		Status:        v.Status,
		TotalAmount:   v.TotalAmount,
		Notes:         v.Notes,
		CreatedAt:     v.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	for _, it := range v.Items {
		res.Items = append(res.Items, ItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.Product.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	return res
}
