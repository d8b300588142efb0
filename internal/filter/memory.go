package filter

import (
	"strings"
	"time"
)

// Accessors describe the fields of T. A nil accessor means T has no such column
// and the matching condition is skipped.
type Accessors[T any] struct {
	Date     func(T) time.Time
	Branch   func(T) uint
	Product  func(T) uint
	Customer func(T) uint
	Status   func(T) string
	Category func(T) uint

	// ProductCategory resolves the category of the record's product. Used only when
	// Category is nil and Product is set.
	ProductCategory func(T) uint

	Name   func(T) string
	Code   func(T) string
	SKU    func(T) string
	Number func(T) string
}

type Predicate[T any] func(T) bool

// Compose builds the conjunction of every specified condition that applies to T.
func Compose[T any](acc Accessors[T], o Options) Predicate[T] {
	var preds []Predicate[T]

	from, to := dayBounds(o)
	if acc.Date != nil && !from.IsZero() {
		preds = append(preds, func(r T) bool { return !acc.Date(r).Before(from) })
	}
	if acc.Date != nil && !to.IsZero() {
		preds = append(preds, func(r T) bool { return acc.Date(r).Before(to) })
	}

	preds = appendEq(preds, acc.Branch, o.BranchID)
	preds = appendEq(preds, acc.Product, o.ProductID)
	preds = appendEq(preds, acc.Customer, o.CustomerID)
	if acc.Status != nil && o.Status != "" {
		preds = append(preds, func(r T) bool { return acc.Status(r) == o.Status })
	}

	if o.CategoryID != 0 {
		switch {
		case acc.Category != nil:
			preds = appendEq(preds, acc.Category, o.CategoryID)
		case acc.Product != nil && acc.ProductCategory != nil:
			preds = appendEq(preds, acc.ProductCategory, o.CategoryID)
		}
	}

	if term := searchTerm(o); term != "" {
		var fields []func(T) string
		for _, f := range []func(T) string{acc.Name, acc.Code, acc.SKU, acc.Number} {
			if f != nil {
				fields = append(fields, f)
			}
		}
		if len(fields) > 0 {
			preds = append(preds, func(r T) bool {
				for _, f := range fields {
					if strings.Contains(strings.ToLower(f(r)), term) {
						return true
					}
				}
				return false
			})
		}
	}

	return func(r T) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

func appendEq[T any](preds []Predicate[T], get func(T) uint, want uint) []Predicate[T] {
	if get == nil || want == 0 {
		return preds
	}
	return append(preds, func(r T) bool { return get(r) == want })
}

// Apply returns the records matching p, in input order. The input is not modified.
func Apply[T any](records []T, p Predicate[T]) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if p(r) {
			out = append(out, r)
		}
	}
	return out
}
