package stock

import (
	"context"
	"errors"
	"fmt"

	"warehouse-backend/internal/metrics"
	"warehouse-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxQuantity bounds a single add or withdraw, in units.
const MaxQuantity = 100000

const (
	UnitCartons = "cartons"
	UnitUnits   = "units"
)

// Level is the stock of one product in one branch after a movement.
type Level struct {
	ClosedCartons int `json:"closed_cartons"`
	LooseUnits    int `json:"loose_units"`
	TotalUnits    int `json:"total_units"`
}

// Move describes who moved stock and why. Reference carries a voucher number when there is one.
type Move struct {
	Actor     string
	Reference string
	Note      string
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// ToUnits converts a request quantity to units. Carton counts that would exceed
// MaxQuantity units are rejected before multiplying.
func ToUnits(quantity int, unitType string, cartonSize int) (int, error) {
	switch unitType {
	case UnitCartons:
		if cartonSize < 1 {
			cartonSize = 1
		}
		if quantity <= 0 || quantity > MaxQuantity/cartonSize {
			return 0, ErrInvalidQuantity
		}
		return quantity * cartonSize, nil
	case UnitUnits, "":
		return quantity, nil
	default:
		return 0, ErrInvalidUnitType
	}
}

func ValidateQuantity(units int) error {
	if units <= 0 || units > MaxQuantity {
		return ErrInvalidQuantity
	}
	return nil
}

func (s *Service) Add(ctx context.Context, branchID, productID uint, units int, mv Move) (Level, error) {
	var lvl Level
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lvl, err = AddWithTx(tx, branchID, productID, units, mv)
		return err
	})
	if err != nil {
		return Level{}, err
	}
	return lvl, nil
}

func (s *Service) Withdraw(ctx context.Context, branchID, productID uint, units int, mv Move) (Level, error) {
	var lvl Level
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lvl, err = WithdrawWithTx(tx, branchID, productID, units, mv)
		return err
	})
	if err != nil {
		return Level{}, err
	}
	return lvl, nil
}

// AddWithTx credits units inside the caller's transaction. The record is created on first use.
func AddWithTx(tx *gorm.DB, branchID, productID uint, units int, mv Move) (Level, error) {
	return credit(tx, branchID, productID, units, models.MovementAdd, mv)
}

// WithdrawWithTx debits units inside the caller's transaction. The sufficiency rule runs
// on the locked row, so no concurrent withdraw can slip between check and debit.
func WithdrawWithTx(tx *gorm.DB, branchID, productID uint, units int, mv Move) (Level, error) {
	return debit(tx, branchID, productID, units, models.MovementWithdraw, mv)
}

// Transferred holds both sides of a transfer.
type Transferred struct {
	From Level `json:"from"`
	To   Level `json:"to"`
}

func (s *Service) Transfer(ctx context.Context, fromBranch, toBranch, productID uint, units int, mv Move) (Transferred, error) {
	var out Transferred
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = TransferWithTx(tx, fromBranch, toBranch, productID, units, mv)
		return err
	})
	if err != nil {
		return Transferred{}, err
	}
	return out, nil
}

// TransferWithTx moves units from one branch to another as a transfer_out / transfer_in pair.
// Both rows are locked in branch order first, so opposite transfers cannot deadlock.
func TransferWithTx(tx *gorm.DB, fromBranch, toBranch, productID uint, units int, mv Move) (Transferred, error) {
	if fromBranch == toBranch {
		return Transferred{}, ErrSameBranch
	}
	if err := ValidateQuantity(units); err != nil {
		return Transferred{}, err
	}
	if _, err := loadProduct(tx, productID); err != nil {
		return Transferred{}, err
	}
	if err := ensureBranch(tx, toBranch); err != nil {
		return Transferred{}, err
	}
	if err := seedRecord(tx, productID, toBranch); err != nil {
		return Transferred{}, err
	}

	var locked []models.StockRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND branch_id IN ?", productID, []uint{fromBranch, toBranch}).
		Order("branch_id").
		Find(&locked).Error
	if err != nil {
		return Transferred{}, fmt.Errorf("lock stock records: %w", err)
	}

	from, err := debit(tx, fromBranch, productID, units, models.MovementTransferOut, mv)
	if err != nil {
		return Transferred{}, err
	}
	to, err := credit(tx, toBranch, productID, units, models.MovementTransferIn, mv)
	if err != nil {
		return Transferred{}, err
	}
	return Transferred{From: from, To: to}, nil
}

// Adjusted is the level before and after a stock count was applied.
type Adjusted struct {
	RecordID uint  `json:"record_id"`
	Before   Level `json:"before"`
	After    Level `json:"after"`
}

// AdjustWithTx replaces the recorded stock with a counted total, repacked into full cartons.
// A non-zero difference is written as one adjust movement with a signed quantity.
func AdjustWithTx(tx *gorm.DB, branchID, productID uint, counted int, mv Move) (Adjusted, error) {
	if counted < 0 || counted > MaxQuantity {
		return Adjusted{}, ErrInvalidCount
	}
	product, err := loadProduct(tx, productID)
	if err != nil {
		return Adjusted{}, err
	}
	if err := ensureBranch(tx, branchID); err != nil {
		return Adjusted{}, err
	}
	if err := seedRecord(tx, productID, branchID); err != nil {
		return Adjusted{}, err
	}
	rec, err := lockRecord(tx, productID, branchID)
	if err != nil {
		return Adjusted{}, err
	}

	before := levelOf(rec.ClosedCartons, rec.LooseUnits, product.CartonSize)
	if before.TotalUnits == counted {
		return Adjusted{RecordID: rec.ID, Before: before, After: before}, nil
	}

	size := product.CartonSize
	after, err := apply(tx, rec, product, counted/size, counted%size, models.MovementAdjust, counted-before.TotalUnits, mv)
	if err != nil {
		return Adjusted{}, err
	}
	return Adjusted{RecordID: rec.ID, Before: before, After: after}, nil
}

func credit(tx *gorm.DB, branchID, productID uint, units int, typ models.MovementType, mv Move) (Level, error) {
	if err := ValidateQuantity(units); err != nil {
		return Level{}, err
	}
	product, err := loadProduct(tx, productID)
	if err != nil {
		return Level{}, err
	}
	if err := ensureBranch(tx, branchID); err != nil {
		return Level{}, err
	}
	if err := seedRecord(tx, productID, branchID); err != nil {
		return Level{}, err
	}
	rec, err := lockRecord(tx, productID, branchID)
	if err != nil {
		return Level{}, err
	}

	closed, loose := addUnits(rec.ClosedCartons, rec.LooseUnits, product.CartonSize, units)
	return apply(tx, rec, product, closed, loose, typ, units, mv)
}

func debit(tx *gorm.DB, branchID, productID uint, units int, typ models.MovementType, mv Move) (Level, error) {
	if err := ValidateQuantity(units); err != nil {
		return Level{}, err
	}
	product, err := loadProduct(tx, productID)
	if err != nil {
		return Level{}, err
	}

	rec, err := lockRecord(tx, productID, branchID)
	if errors.Is(err, ErrRecordNotFound) {
		return Level{}, reject(&InsufficientStockError{
			Reason:    ReasonNoRecord,
			ProductID: productID,
			BranchID:  branchID,
			Requested: units,
		})
	}
	if err != nil {
		return Level{}, err
	}
	if err := CheckRecord(rec, product.CartonSize, units); err != nil {
		return Level{}, err
	}

	closed, loose := withdrawUnits(rec.ClosedCartons, rec.LooseUnits, product.CartonSize, units)
	return apply(tx, rec, product, closed, loose, typ, units, mv)
}

func (s *Service) SetMin(ctx context.Context, branchID, productID uint, threshold int) (models.StockRecord, error) {
	var rec models.StockRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = SetMinWithTx(tx, branchID, productID, threshold)
		return err
	})
	return rec, err
}

// SetMinWithTx updates the minimum of an existing record. The record comes back with its product loaded.
func SetMinWithTx(tx *gorm.DB, branchID, productID uint, threshold int) (models.StockRecord, error) {
	if threshold < 0 {
		return models.StockRecord{}, ErrInvalidMinimum
	}
	rec, err := lockRecord(tx, productID, branchID)
	if err != nil {
		return rec, err
	}
	if err := tx.Model(&rec).Update("min_threshold", threshold).Error; err != nil {
		return rec, fmt.Errorf("update minimum: %w", err)
	}
	rec.MinThreshold = threshold
	if rec.Product, err = loadProduct(tx, productID); err != nil {
		return rec, err
	}
	return rec, nil
}

// Get returns the stock record with its product loaded.
func (s *Service) Get(ctx context.Context, branchID, productID uint) (models.StockRecord, error) {
	var rec models.StockRecord
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrRecordNotFound
	}
	return rec, err
}

func apply(tx *gorm.DB, rec models.StockRecord, product models.Product,
	closed, loose int, typ models.MovementType, units int, mv Move) (Level, error) {

	res := tx.Model(&models.StockRecord{}).
		Where("id = ? AND version = ?", rec.ID, rec.Version).
		Updates(map[string]any{
			"closed_cartons": closed,
			"loose_units":    loose,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return Level{}, fmt.Errorf("update stock record: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return Level{}, ErrConcurrentUpdate
	}

	moved := units
	if moved < 0 {
		moved = -moved
	}
	movement := models.Movement{
		ProductID: product.ID,
		BranchID:  rec.BranchID,
		Type:      typ,
		Quantity:  units,
		Cartons:   units / product.CartonSize,
		Reference: mv.Reference,
		Note:      mv.Note,
		CreatedBy: mv.Actor,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return Level{}, fmt.Errorf("record movement: %w", err)
	}
	metrics.StockMovements.WithLabelValues(string(typ)).Inc()
	metrics.StockUnits.WithLabelValues(string(typ)).Add(float64(moved))

	return levelOf(closed, loose, product.CartonSize), nil
}

func levelOf(closed, loose, size int) Level {
	return Level{ClosedCartons: closed, LooseUnits: loose, TotalUnits: closed*size + loose}
}

func seedRecord(tx *gorm.DB, productID, branchID uint) error {
	seed := models.StockRecord{ProductID: productID, BranchID: branchID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return fmt.Errorf("create stock record: %w", err)
	}
	return nil
}

func lockRecord(tx *gorm.DB, productID, branchID uint) (models.StockRecord, error) {
	var rec models.StockRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrRecordNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("lock stock record: %w", err)
	}
	return rec, nil
}

func loadProduct(tx *gorm.DB, productID uint) (models.Product, error) {
	var p models.Product
	err := tx.First(&p, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, ErrProductNotFound
	}
	if err != nil {
		return p, fmt.Errorf("load product: %w", err)
	}
	if p.CartonSize < 1 {
		p.CartonSize = 1
	}
	return p, nil
}

func ensureBranch(tx *gorm.DB, branchID uint) error {
	var n int64
	if err := tx.Model(&models.Branch{}).Where("id = ?", branchID).Count(&n).Error; err != nil {
		return fmt.Errorf("load branch: %w", err)
	}
	if n == 0 {
		return ErrBranchNotFound
	}
	return nil
}

// addUnits fills the open carton first, then packs the rest.
func addUnits(closed, loose, size, q int) (int, int) {
	if loose > 0 {
		fill := min(q, size-loose)
		loose += fill
		q -= fill
		if loose == size {
			closed++
			loose = 0
		}
	}
	return closed + q/size, loose + q%size
}

// withdrawUnits takes loose units first, then opens as many cartons as needed.
// q must not exceed closed*size+loose.
func withdrawUnits(closed, loose, size, q int) (int, int) {
	take := min(q, loose)
	loose -= take
	q -= take
	if q > 0 {
		opened := (q + size - 1) / size
		closed -= opened
		loose = opened*size - q
	}
	return closed, loose
}
