// Package filter narrows record sets by a fixed set of optional conditions.
// The same Options drive an in-memory predicate and a GORM scope.
package filter

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Options holds the optional conditions. Zero values mean "not specified".
type Options struct {
	DateFrom   *time.Time
	DateTo     *time.Time // inclusive, whole day
	DateColumn string     // GORM only; defaults to the Columns date column, then created_at
	BranchID   uint
	ProductID  uint
	CustomerID uint
	Status     string
	CategoryID uint
	Search     string
}

func (o Options) IsZero() bool {
	return o.DateFrom == nil && o.DateTo == nil && o.BranchID == 0 && o.ProductID == 0 &&
		o.CustomerID == 0 && o.Status == "" && o.CategoryID == 0 && strings.TrimSpace(o.Search) == ""
}

// FromQuery reads the conditions from the request query. Malformed values are dropped.
func FromQuery(c *fiber.Ctx) Options {
	return Options{
		DateFrom:   parseDate(c.Query("date_from")),
		DateTo:     parseDate(c.Query("date_to")),
		BranchID:   queryID(c, "branch_id"),
		ProductID:  queryID(c, "product_id"),
		CustomerID: queryID(c, "customer_id"),
		Status:     strings.TrimSpace(c.Query("status")),
		CategoryID: queryID(c, "category_id"),
		Search:     strings.TrimSpace(c.Query("search")),
	}
}

func queryID(c *fiber.Ctx, key string) uint {
	v := c.QueryInt(key, 0)
	if v <= 0 {
		return 0
	}
	return uint(v)
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

// DayBounds returns the date range as [from, to) in UTC. A zero time means unbounded.
func (o Options) DayBounds() (from, to time.Time) {
	return dayBounds(o)
}

// dayBounds returns [from, to) in UTC, with to moved to the start of the following day.
func dayBounds(o Options) (from, to time.Time) {
	if o.DateFrom != nil {
		from = startOfDay(*o.DateFrom)
	}
	if o.DateTo != nil {
		to = startOfDay(*o.DateTo).AddDate(0, 0, 1)
	}
	return from, to
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func searchTerm(o Options) string {
	return strings.ToLower(strings.TrimSpace(o.Search))
}

// Columns names the columns a table has. An empty name means the table has no such column.
type Columns struct {
	Date     string
	Branch   string
	Product  string
	Customer string
	Status   string
	Category string
	Search   []string // any of name, code, sku, number
}

// Scope renders the options as a GORM scope:
//
//	db.Scopes(filter.Scope(cols, opts)).Find(&rows)
func Scope(cols Columns, o Options) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if o.IsZero() {
			return db
		}
		dateCol := o.DateColumn
		if dateCol == "" {
			dateCol = cols.Date
		}
		if dateCol == "" {
			dateCol = "created_at"
		}
		from, to := dayBounds(o)
		if !from.IsZero() {
			db = db.Where(dateCol+" >= ?", from)
		}
		if !to.IsZero() {
			db = db.Where(dateCol+" < ?", to)
		}

		if o.BranchID != 0 && cols.Branch != "" {
			db = db.Where(cols.Branch+" = ?", o.BranchID)
		}
		if o.ProductID != 0 && cols.Product != "" {
			db = db.Where(cols.Product+" = ?", o.ProductID)
		}
		if o.CustomerID != 0 && cols.Customer != "" {
			db = db.Where(cols.Customer+" = ?", o.CustomerID)
		}
		if o.Status != "" && cols.Status != "" {
			db = db.Where(cols.Status+" = ?", o.Status)
		}

		if o.CategoryID != 0 {
			switch {
			case cols.Category != "":
				db = db.Where(cols.Category+" = ?", o.CategoryID)
			case cols.Product != "":
				db = db.Where(cols.Product+" IN (SELECT id FROM products WHERE category_id = ?)", o.CategoryID)
			}
		}

		if term := searchTerm(o); term != "" && len(cols.Search) > 0 {
			db = Contains(cols.Search, term)(db)
		}
		return db
	}
}

// Contains matches rows where any of cols holds term as a case-insensitive substring.
// LIKE wildcards in term match literally.
func Contains(cols []string, term string) func(*gorm.DB) *gorm.DB {
	term = strings.ToLower(strings.TrimSpace(term))
	like := "%" + likeEscaper.Replace(term) + "%"
	return func(db *gorm.DB) *gorm.DB {
		if term == "" || len(cols) == 0 {
			return db
		}
		parts := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, col := range cols {
			parts[i] = "LOWER(" + col + ") LIKE ? ESCAPE '\\'"
			args[i] = like
		}
		return db.Where("("+strings.Join(parts, " OR ")+")", args...)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
