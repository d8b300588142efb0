package customer

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"warehouse-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type EntryKind string

const (
	EntryIssue   EntryKind = "issue"
	EntryReturn  EntryKind = "return"
	EntryPayment EntryKind = "payment"
)

// StatementEntry is one ledger line. Balance is the running balance after the line.
type StatementEntry struct {
	Date      time.Time       `json:"date"`
	Kind      EntryKind       `json:"kind"`
	Reference string          `json:"reference"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"`
}

type Statement struct {
	CustomerID     uint             `json:"customer_id"`
	CustomerName   string           `json:"customer_name"`
	From           *time.Time       `json:"from,omitempty"`
	To             *time.Time       `json:"to,omitempty"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	TotalDebit     decimal.Decimal  `json:"total_debit"`
	TotalCredit    decimal.Decimal  `json:"total_credit"`
	ClosingBalance decimal.Decimal  `json:"closing_balance"`
	Entries        []StatementEntry `json:"entries"`
}

// StatementOf builds the ledger of cust over [from, to). Zero bounds are open.
// Everything dated before from folds into the opening balance. The same rows as
// BalanceOf count: approved or completed issues, completed returns, live payments.
func StatementOf(db *gorm.DB, cust models.Customer, from, to time.Time) (Statement, error) {
	st := Statement{CustomerID: cust.ID, CustomerName: cust.Name, Entries: []StatementEntry{}}
	if !from.IsZero() {
		st.From = &from
	}
	if !to.IsZero() {
		st.To = &to
	}

	lines, err := ledgerLines(db, cust.ID, to)
	if err != nil {
		return st, err
	}

	balance := decimal.Zero
	for _, l := range lines {
		balance = balance.Add(l.Debit).Sub(l.Credit)
		if !from.IsZero() && l.Date.Before(from) {
			st.OpeningBalance = balance
			continue
		}
		l.Balance = balance
		st.TotalDebit = st.TotalDebit.Add(l.Debit)
		st.TotalCredit = st.TotalCredit.Add(l.Credit)
		st.Entries = append(st.Entries, l)
	}
	st.ClosingBalance = balance
	return st, nil
}

// ledgerLines loads every counted document dated before to, oldest first.
// Same-day documents keep the order issue, return, payment.
func ledgerLines(db *gorm.DB, customerID uint, to time.Time) ([]StatementEntry, error) {
	before := func(q *gorm.DB, col string) *gorm.DB {
		if to.IsZero() {
			return q
		}
		return q.Where(col+" < ?", to)
	}

	var issues []models.IssueVoucher
	if err := before(db.Where("customer_id = ? AND status IN ?", customerID,
		[]models.VoucherStatus{models.VoucherApproved, models.VoucherCompleted}), "issue_date").
		Order("issue_date, id").Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("load issues: %w", err)
	}
	var returns []models.ReturnVoucher
	if err := before(db.Where("customer_id = ? AND status = ?", customerID, models.VoucherCompleted), "return_date").
		Order("return_date, id").Find(&returns).Error; err != nil {
		return nil, fmt.Errorf("load returns: %w", err)
	}
	var payments []models.Payment
	if err := before(db.Where("customer_id = ?", customerID), "payment_date").
		Order("payment_date, id").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	lines := make([]StatementEntry, 0, len(issues)+len(returns)+len(payments))
	for _, v := range issues {
		lines = append(lines, StatementEntry{Date: v.IssueDate, Kind: EntryIssue, Reference: v.VoucherNumber,
			Debit: v.TotalAmount, Credit: decimal.Zero})
	}
	for _, v := range returns {
		lines = append(lines, StatementEntry{Date: v.ReturnDate, Kind: EntryReturn, Reference: v.VoucherNumber,
			Debit: decimal.Zero, Credit: v.TotalAmount})
	}
	for _, p := range payments {
		lines = append(lines, StatementEntry{Date: p.PaymentDate, Kind: EntryPayment, Reference: p.PaymentNumber,
			Debit: decimal.Zero, Credit: p.Amount})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Date.Before(lines[j].Date) })
	return lines, nil
}

var statementHeader = []any{"Date", "Type", "Reference", "Debit", "Credit", "Balance"}

// WriteStatementXLSX renders st as a single-sheet workbook with opening and closing rows.
func WriteStatementXLSX(st Statement) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows := [][]any{statementHeader, {"", "opening", "", "", "", st.OpeningBalance.StringFixed(2)}}
	for _, e := range st.Entries {
		rows = append(rows, []any{
			e.Date.Format("2006-01-02"), string(e.Kind), e.Reference,
			e.Debit.StringFixed(2), e.Credit.StringFixed(2), e.Balance.StringFixed(2),
		})
	}
	rows = append(rows, []any{"", "closing", "", st.TotalDebit.StringFixed(2), st.TotalCredit.StringFixed(2), st.ClosingBalance.StringFixed(2)})

	for i, line := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
