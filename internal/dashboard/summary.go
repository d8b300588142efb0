package dashboard

import (
	"bytes"
	"fmt"

	"warehouse-backend/internal/filter"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type KPIs struct {
	ActiveProducts  int64 `json:"active_products"`
	Branches        int64 `json:"branches"`
	BelowMinRecords int64 `json:"below_min_records"`
	TotalUnits      int64 `json:"total_units"`
}

type SummaryRow struct {
	ProductID     uint   `json:"product_id"`
	ProductName   string `json:"product_name"`
	SKU           string `json:"sku"`
	BranchID      uint   `json:"branch_id"`
	BranchName    string `json:"branch_name"`
	CartonSize    int    `json:"carton_size"`
	ClosedCartons int    `json:"closed_cartons"`
	LooseUnits    int    `json:"loose_units"`
	TotalUnits    int    `json:"total_units"`
	MinThreshold  int    `json:"min_threshold"`
	BelowMin      bool   `json:"below_min"`
}

type SummaryOptions struct {
	BranchID uint
	Search   string // product or branch name
	BelowMin bool
}

const totalUnitsExpr = "s.closed_cartons * p.carton_size + s.loose_units"

var summaryColumns = filter.Columns{
	Branch:   "s.branch_id",
	Category: "p.category_id",
	Search:   []string{"p.name", "b.name"},
}

// stockQuery joins stock records to their active products and branches.
func stockQuery(db *gorm.DB, branchID uint) *gorm.DB {
	return db.Table("stock_records AS s").
		Joins("JOIN products p ON p.id = s.product_id").
		Joins("JOIN branches b ON b.id = s.branch_id").
		Where("p.is_active = ?", true).
		Scopes(filter.Scope(summaryColumns, filter.Options{BranchID: branchID}))
}

// LoadKPIs computes the headline numbers. A non-zero branchID limits the stock figures to that branch.
func LoadKPIs(db *gorm.DB, branchID uint) (KPIs, error) {
	var k KPIs

	if err := db.Table("products").Where("is_active = ?", true).Count(&k.ActiveProducts).Error; err != nil {
		return k, fmt.Errorf("count products: %w", err)
	}

	bq := db.Table("branches").Where("is_active = ?", true)
	if branchID != 0 {
		bq = bq.Where("id = ?", branchID)
	}
	if err := bq.Count(&k.Branches).Error; err != nil {
		return k, fmt.Errorf("count branches: %w", err)
	}

	if err := stockQuery(db, branchID).
		Where(totalUnitsExpr + " < s.min_threshold").
		Count(&k.BelowMinRecords).Error; err != nil {
		return k, fmt.Errorf("count below minimum: %w", err)
	}

	if err := stockQuery(db, branchID).
		Select("COALESCE(SUM(" + totalUnitsExpr + "), 0)").
		Row().Scan(&k.TotalUnits); err != nil {
		return k, fmt.Errorf("sum units: %w", err)
	}
	return k, nil
}

// LoadSummary returns one row per stock record of an active product, ordered by branch then product.
func LoadSummary(db *gorm.DB, opts SummaryOptions) ([]SummaryRow, error) {
	q := stockQuery(db, opts.BranchID).
		Select("s.product_id, p.name AS product_name, p.sku, s.branch_id, b.name AS branch_name, " +
			"p.carton_size, s.closed_cartons, s.loose_units, s.min_threshold").
		Scopes(filter.Scope(summaryColumns, filter.Options{Search: opts.Search}))
	if opts.BelowMin {
		q = q.Where(totalUnitsExpr + " < s.min_threshold")
	}

	var rows []SummaryRow
	if err := q.Order("b.name ASC").Order("p.name ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}
	for i := range rows {
		r := &rows[i]
		r.TotalUnits = r.ClosedCartons*r.CartonSize + r.LooseUnits
		r.BelowMin = r.TotalUnits < r.MinThreshold
	}
	return rows, nil
}

var summaryHeader = []any{
	"Branch", "Product", "SKU", "Carton size", "Closed cartons", "Loose units", "Total units", "Minimum", "Below minimum",
}

// WriteSummaryXLSX renders rows as a single-sheet workbook.
func WriteSummaryXLSX(rows []SummaryRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetRow(sheet, "A1", &summaryHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		below := "no"
		if r.BelowMin {
			below = "yes"
		}
		line := []any{
			r.BranchName, r.ProductName, r.SKU, r.CartonSize,
			r.ClosedCartons, r.LooseUnits, r.TotalUnits, r.MinThreshold, below,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
