// Package voucher issues goods to customers and takes returns, moving stock as vouchers change status.
package voucher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warehouse-backend/internal/audit"
	"warehouse-backend/internal/auth"
	"warehouse-backend/internal/models"
	"warehouse-backend/internal/sequence"
	"warehouse-backend/internal/stock"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNoItems           = errors.New("a voucher needs at least one item")
	ErrInvalidItem       = errors.New("item quantity must be positive and unit price non-negative")
	ErrCustomerRequired  = errors.New("customer_id or customer_name is required")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrInactiveProduct   = errors.New("product is inactive")
	ErrNotFound          = errors.New("voucher not found")
	ErrInvalidTransition = errors.New("status change not allowed")
	ErrAlreadyCancelled  = errors.New("voucher is already cancelled")
)

var transitions = map[models.VoucherStatus][]models.VoucherStatus{
	models.VoucherPending:  {models.VoucherApproved, models.VoucherCancelled},
	models.VoucherApproved: {models.VoucherCompleted, models.VoucherCancelled},
}

// CanTransition reports whether an issue voucher may move from one status to another.
// Staying in the same status is always allowed and does nothing.
func CanTransition(from, to models.VoucherStatus) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type ItemInput struct {
	ProductID uint
	Quantity  int
	UnitType  string
	UnitPrice decimal.Decimal
}

type Input struct {
	BranchID     uint
	CustomerID   *uint
	CustomerName string
	Date         time.Time
	Notes        string
	Items        []ItemInput
}

type line struct {
	product   models.Product
	units     int
	unitPrice decimal.Decimal
	total     decimal.Decimal
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateIssue stores a pending issue voucher. Stock is only checked here; it is debited on approval.
func (s *Service) CreateIssue(ctx context.Context, in Input, by auth.Session) (models.IssueVoucher, error) {
	var v models.IssueVoucher
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines, total, err := prepare(tx, &in)
		if err != nil {
			return err
		}

		// first short line wins, in the order the lines were given
		checker := stock.NewChecker(tx)
		needed := unitsByProduct(lines)
		checked := make(map[uint]bool, len(needed))
		for _, l := range lines {
			id := l.product.ID
			if checked[id] {
				continue
			}
			checked[id] = true
			if err := checker.Check(ctx, id, in.BranchID, needed[id]); err != nil {
				return err
			}
		}

		number, err := sequence.Next(tx, sequence.IssueVoucher, in.Date)
		if err != nil {
			return err
		}

		v = models.IssueVoucher{
			VoucherNumber: number,
			CustomerID:    in.CustomerID,
			CustomerName:  in.CustomerName,
			BranchID:      in.BranchID,
			IssueDate:     in.Date,
			Status:        models.VoucherPending,
			TotalAmount:   total,
			Notes:         in.Notes,
			CreatedBy:     by.UserID,
		}
		for _, l := range lines {
			v.Items = append(v.Items, models.IssueVoucherItem{
				ProductID: l.product.ID,
				Quantity:  l.units,
				UnitPrice: l.unitPrice,
				LineTotal: l.total,
			})
		}
		if err := tx.Create(&v).Error; err != nil {
			return fmt.Errorf("create issue voucher: %w", err)
		}

		return audit.Write(tx, audit.LogOptions{
			BranchID:    &v.BranchID,
			EntityType:  "issue_voucher",
			EntityID:    v.ID,
			Action:      models.AuditActionCreate,
			Description: "issue voucher created: " + v.VoucherNumber,
			After:       summary(v.VoucherNumber, v.Status, v.TotalAmount),
		}.By(by))
	})
	if err != nil {
		return models.IssueVoucher{}, err
	}
	return s.GetIssue(ctx, v.ID)
}

// ChangeIssueStatus applies a status transition. pending -> approved debits every item,
// approved -> cancelled credits them back, both in the same transaction as the status change.
func (s *Service) ChangeIssueStatus(ctx context.Context, id uint, to models.VoucherStatus, by auth.Session) (models.IssueVoucher, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v models.IssueVoucher
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Items").First(&v, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load issue voucher: %w", err)
		}
		if by.BranchID != nil && *by.BranchID != v.BranchID {
			return ErrNotFound
		}

		from := v.Status
		if from == to {
			return nil
		}
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}

		mv := stock.Move{Actor: by.Name, Reference: v.VoucherNumber}
		switch {
		case from == models.VoucherPending && to == models.VoucherApproved:
			mv.Note = "issue voucher approved"
			for _, it := range v.Items {
				if _, err := stock.WithdrawWithTx(tx, v.BranchID, it.ProductID, it.Quantity, mv); err != nil {
					return err
				}
			}
		case from == models.VoucherApproved && to == models.VoucherCancelled:
			mv.Note = "issue voucher cancelled"
			for _, it := range v.Items {
				if _, err := stock.AddWithTx(tx, v.BranchID, it.ProductID, it.Quantity, mv); err != nil {
					return err
				}
			}
		}

		if err := tx.Model(&v).Update("status", to).Error; err != nil {
			return fmt.Errorf("update issue voucher: %w", err)
		}

		action := models.AuditActionUpdate
		if to == models.VoucherCancelled {
			action = models.AuditActionCancel
		}
		return audit.Write(tx, audit.LogOptions{
			BranchID:    &v.BranchID,
			EntityType:  "issue_voucher",
			EntityID:    v.ID,
			Action:      action,
			Description: fmt.Sprintf("issue voucher %s: %s -> %s", v.VoucherNumber, from, to),
			Before:      summary(v.VoucherNumber, from, v.TotalAmount),
			After:       summary(v.VoucherNumber, to, v.TotalAmount),
		}.By(by))
	})
	if err != nil {
		return models.IssueVoucher{}, err
	}
	return s.GetIssue(ctx, id)
}

func (s *Service) GetIssue(ctx context.Context, id uint) (models.IssueVoucher, error) {
	var v models.IssueVoucher
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Preload("Customer").
		Preload("Branch").
		First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return v, ErrNotFound
	}
	return v, err
}

// CreateReturn stores a completed return voucher and credits the returned goods.
func (s *Service) CreateReturn(ctx context.Context, in Input, by auth.Session) (models.ReturnVoucher, error) {
	var v models.ReturnVoucher
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines, total, err := prepare(tx, &in)
		if err != nil {
			return err
		}

		number, err := sequence.Next(tx, sequence.ReturnVoucher, in.Date)
		if err != nil {
			return err
		}

		v = models.ReturnVoucher{
			VoucherNumber: number,
			CustomerID:    in.CustomerID,
			CustomerName:  in.CustomerName,
			BranchID:      in.BranchID,
			ReturnDate:    in.Date,
			Status:        models.VoucherCompleted,
			TotalAmount:   total,
			Notes:         in.Notes,
			CreatedBy:     by.UserID,
		}
		for _, l := range lines {
			v.Items = append(v.Items, models.ReturnVoucherItem{
				ProductID: l.product.ID,
				Quantity:  l.units,
				UnitPrice: l.unitPrice,
				LineTotal: l.total,
			})
		}
		if err := tx.Create(&v).Error; err != nil {
			return fmt.Errorf("create return voucher: %w", err)
		}

		mv := stock.Move{Actor: by.Name, Reference: number, Note: "return voucher"}
		for _, l := range lines {
			if _, err := stock.AddWithTx(tx, in.BranchID, l.product.ID, l.units, mv); err != nil {
				return err
			}
		}

		return audit.Write(tx, audit.LogOptions{
			BranchID:    &v.BranchID,
			EntityType:  "return_voucher",
			EntityID:    v.ID,
			Action:      models.AuditActionCreate,
			Description: "return voucher created: " + v.VoucherNumber,
			After:       summary(v.VoucherNumber, v.Status, v.TotalAmount),
		}.By(by))
	})
	if err != nil {
		return models.ReturnVoucher{}, err
	}
	return s.GetReturn(ctx, v.ID)
}

// CancelReturn takes the returned goods out of stock again. It fails when they are no longer there.
func (s *Service) CancelReturn(ctx context.Context, id uint, by auth.Session) (models.ReturnVoucher, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v models.ReturnVoucher
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Items").First(&v, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load return voucher: %w", err)
		}
		if by.BranchID != nil && *by.BranchID != v.BranchID {
			return ErrNotFound
		}
		if v.Status == models.VoucherCancelled {
			return ErrAlreadyCancelled
		}

		mv := stock.Move{Actor: by.Name, Reference: v.VoucherNumber, Note: "return voucher cancelled"}
		for _, it := range v.Items {
			if _, err := stock.WithdrawWithTx(tx, v.BranchID, it.ProductID, it.Quantity, mv); err != nil {
				return err
			}
		}

		if err := tx.Model(&v).Update("status", models.VoucherCancelled).Error; err != nil {
			return fmt.Errorf("update return voucher: %w", err)
		}
		return audit.Write(tx, audit.LogOptions{
			BranchID:    &v.BranchID,
			EntityType:  "return_voucher",
			EntityID:    v.ID,
			Action:      models.AuditActionCancel,
			Description: "return voucher cancelled: " + v.VoucherNumber,
			Before:      summary(v.VoucherNumber, v.Status, v.TotalAmount),
			After:       summary(v.VoucherNumber, models.VoucherCancelled, v.TotalAmount),
		}.By(by))
	})
	if err != nil {
		return models.ReturnVoucher{}, err
	}
	return s.GetReturn(ctx, id)
}

func (s *Service) GetReturn(ctx context.Context, id uint) (models.ReturnVoucher, error) {
	var v models.ReturnVoucher
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Preload("Customer").
		Preload("Branch").
		First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return v, ErrNotFound
	}
	return v, err
}

// prepare validates the input and prices every item. It normalizes in.Date and in.CustomerName.
func prepare(tx *gorm.DB, in *Input) ([]line, decimal.Decimal, error) {
	if len(in.Items) == 0 {
		return nil, decimal.Zero, ErrNoItems
	}
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if in.CustomerID == nil && in.CustomerName == "" {
		return nil, decimal.Zero, ErrCustomerRequired
	}
	if in.CustomerID != nil {
		var customer models.Customer
		if err := tx.First(&customer, *in.CustomerID).Error; err != nil {
			return nil, decimal.Zero, ErrCustomerNotFound
		}
		if in.CustomerName == "" {
			in.CustomerName = customer.Name
		}
	}
	var branches int64
	if err := tx.Model(&models.Branch{}).Where("id = ?", in.BranchID).Count(&branches).Error; err != nil {
		return nil, decimal.Zero, fmt.Errorf("load branch: %w", err)
	}
	if branches == 0 {
		return nil, decimal.Zero, stock.ErrBranchNotFound
	}
	if in.Date.IsZero() {
		in.Date = time.Now()
	}

	lines := make([]line, 0, len(in.Items))
	total := decimal.Zero
	for _, it := range in.Items {
		if it.Quantity <= 0 || it.UnitPrice.IsNegative() {
			return nil, decimal.Zero, ErrInvalidItem
		}
		var p models.Product
		if err := tx.First(&p, it.ProductID).Error; err != nil {
			return nil, decimal.Zero, stock.ErrProductNotFound
		}
		if !p.IsActive {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrInactiveProduct, p.Name)
		}
		units, err := stock.ToUnits(it.Quantity, it.UnitType, p.CartonSize)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if err := stock.ValidateQuantity(units); err != nil {
			return nil, decimal.Zero, err
		}

		lineTotal := it.UnitPrice.Mul(decimal.NewFromInt(int64(units))).Round(2)
		lines = append(lines, line{product: p, units: units, unitPrice: it.UnitPrice, total: lineTotal})
		total = total.Add(lineTotal)
	}
	return lines, total, nil
}

func unitsByProduct(lines []line) map[uint]int {
	out := make(map[uint]int, len(lines))
	for _, l := range lines {
		out[l.product.ID] += l.units
	}
	return out
}

func summary(number string, status models.VoucherStatus, total decimal.Decimal) map[string]any {
	return map[string]any{
		"voucher_number": number,
		"status":         status,
		"total_amount":   total.StringFixed(2),
	}
}
