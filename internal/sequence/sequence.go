// Package sequence hands out yearly document numbers such as ISS-2025/00001.
package sequence

import (
	"errors"
	"fmt"
	"time"

	"warehouse-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	IssueVoucher  = "issue_voucher"
	ReturnVoucher = "return_voucher"
	Payment       = "payment"
	Transfer      = "transfer"
	Adjustment    = "adjustment"
)

var prefixes = map[string]string{
	IssueVoucher:  "ISS",
	ReturnVoucher: "RET",
	Payment:       "PAY",
	Transfer:      "TRF",
	Adjustment:    "ADJ",
}

// Next reserves the next number for entityType in the year of at.
// It must run inside the transaction that stores the document, so a rollback releases the number.
func Next(tx *gorm.DB, entityType string, at time.Time) (string, error) {
	prefix, ok := prefixes[entityType]
	if !ok {
		return "", fmt.Errorf("unknown sequence %q", entityType)
	}
	year := at.Year()

	seed := models.Sequence{EntityType: entityType, Year: year, Prefix: prefix}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return "", fmt.Errorf("create sequence: %w", err)
	}

	var seq models.Sequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("entity_type = ? AND year = ?", entityType, year).
		First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("sequence %s/%d vanished", entityType, year)
	}
	if err != nil {
		return "", fmt.Errorf("lock sequence: %w", err)
	}

	seq.LastNumber++
	if err := tx.Model(&seq).Update("last_number", seq.LastNumber).Error; err != nil {
		return "", fmt.Errorf("advance sequence: %w", err)
	}
	return Format(seq.Prefix, year, seq.LastNumber), nil
}

func Format(prefix string, year, n int) string {
	return fmt.Sprintf("%s-%d/%05d", prefix, year, n)
}
