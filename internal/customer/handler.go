package customer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"warehouse-backend/internal/database"
	"warehouse-backend/internal/filter"
	"warehouse-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CustomerRequest struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	IsActive *bool  `json:"is_active"`
}

type CustomerResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// Balance is what the customer owes: issued goods minus returns minus payments.
type Balance struct {
	Issued   decimal.Decimal `json:"issued"`
	Returned decimal.Decimal `json:"returned"`
	Paid     decimal.Decimal `json:"paid"`
	Balance  decimal.Decimal `json:"balance"`
}

type CustomerDetailResponse struct {
	CustomerResponse
	Balance Balance `json:"balance"`
}

var customerColumns = filter.Columns{
	Search: []string{"name", "code"},
}

func toResponse(c models.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		Name:      c.Name,
		Code:      c.Code,
		Phone:     c.Phone,
		Address:   c.Address,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

// POST /api/customers
func CreateCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CustomerRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Code = strings.TrimSpace(body.Code)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "customer name is required")
		}
		if body.Code != "" {
			var n int64
			database.DB.Model(&models.Customer{}).Where("code = ?", body.Code).Count(&n)
			if n > 0 {
				return fiber.NewError(fiber.StatusConflict, "a customer with this code already exists")
			}
		}

		cust := models.Customer{
			Name:     body.Name,
			Code:     body.Code,
			Phone:    strings.TrimSpace(body.Phone),
			Address:  strings.TrimSpace(body.Address),
			IsActive: body.IsActive == nil || *body.IsActive,
		}
		if err := database.DB.Create(&cust).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create customer")
		}

		return c.Status(fiber.StatusCreated).JSON(toResponse(cust))
	}
}

// GET /api/customers?search=&phone=&include_inactive=true
// search matches name or code; phone matches a phone fragment.
func ListCustomersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Customer{}).
			Scopes(
				filter.Scope(customerColumns, filter.Options{Search: c.Query("search")}),
				filter.Contains([]string{"phone"}, c.Query("phone")),
			)
		if !c.QueryBool("include_inactive") {
			dbq = dbq.Where("is_active = ?", true)
		}

		var rows []models.Customer
		if err := dbq.Order("name ASC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list customers")
		}

		res := make([]CustomerResponse, 0, len(rows))
		for _, r := range rows {
			res = append(res, toResponse(r))
		}
		return c.JSON(res)
	}
}

// GET /api/customers/:id
func GetCustomerHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		cust, err := loadCustomer(c)
		if err != nil {
			return err
		}

		bal, err := BalanceOf(database.DB, cust.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not compute balance")
		}
		return c.JSON(CustomerDetailResponse{CustomerResponse: toResponse(cust), Balance: bal})
	}
}

// GET /api/customers/:id/statement?date_from=&date_to=
func StatementHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := statementFor(c)
		if err != nil {
			return err
		}
		return c.JSON(st)
	}
}

// GET /api/customers/:id/statement.xlsx, same range as the JSON statement
func StatementExportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := statementFor(c)
		if err != nil {
			return err
		}
		raw, err := WriteStatementXLSX(st)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not render statement")
		}

		name := fmt.Sprintf("statement_%d_%s.xlsx", st.CustomerID, time.Now().Format("20060102_150405"))
		c.Set(fiber.HeaderContentType, xlsxContentType)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
		return c.Send(raw)
	}
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func statementFor(c *fiber.Ctx) (Statement, error) {
	cust, err := loadCustomer(c)
	if err != nil {
		return Statement{}, err
	}
	from, to := filter.FromQuery(c).DayBounds()
	st, err := StatementOf(database.DB, cust, from, to)
	if err != nil {
		return st, fiber.NewError(fiber.StatusInternalServerError, "could not build statement")
	}
	return st, nil
}

func loadCustomer(c *fiber.Ctx) (models.Customer, error) {
	var cust models.Customer
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return cust, fiber.NewError(fiber.StatusBadRequest, "invalid customer id")
	}
	if err := database.DB.First(&cust, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cust, fiber.NewError(fiber.StatusNotFound, "customer not found")
		}
		return cust, fiber.NewError(fiber.StatusInternalServerError, "could not load customer")
	}
	return cust, nil
}

// BalanceOf sums approved or completed issue vouchers, completed returns and live payments.
func BalanceOf(db *gorm.DB, customerID uint) (Balance, error) {
	var b Balance
	var err error

	if b.Issued, err = sum(db.Model(&models.IssueVoucher{}).
		Where("customer_id = ? AND status IN ?", customerID,
			[]models.VoucherStatus{models.VoucherApproved, models.VoucherCompleted}), "total_amount"); err != nil {
		return b, err
	}
	if b.Returned, err = sum(db.Model(&models.ReturnVoucher{}).
		Where("customer_id = ? AND status = ?", customerID, models.VoucherCompleted), "total_amount"); err != nil {
		return b, err
	}
	if b.Paid, err = sum(db.Model(&models.Payment{}).Where("customer_id = ?", customerID), "amount"); err != nil {
		return b, err
	}

	b.Balance = b.Issued.Sub(b.Returned).Sub(b.Paid)
	return b, nil
}

func sum(q *gorm.DB, col string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := q.Select("SUM(" + col + ")").Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
