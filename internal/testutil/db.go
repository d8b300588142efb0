// Package testutil opens throwaway databases and seeds fixtures for tests.
package testutil

import (
	"fmt"
	"testing"

	"warehouse-backend/internal/database"
	"warehouse-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory sqlite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// UseGlobalDB points database.DB at a fresh test database for the duration of the test.
func UseGlobalDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := NewDB(t)
	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })
	return db
}

func CreateBranch(t *testing.T, db *gorm.DB, name string) models.Branch {
	t.Helper()

	b := models.Branch{Name: name, Code: name, IsActive: true}
	require.NoError(t, db.Create(&b).Error)
	return b
}

func CreateProduct(t *testing.T, db *gorm.DB, name string, cartonSize int) models.Product {
	t.Helper()

	p := models.Product{Name: name, SKU: "SKU-" + name, CartonSize: cartonSize, IsActive: true}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func CreateStock(t *testing.T, db *gorm.DB, productID, branchID uint, closed, loose, min int) models.StockRecord {
	t.Helper()

	rec := models.StockRecord{
		ProductID:     productID,
		BranchID:      branchID,
		ClosedCartons: closed,
		LooseUnits:    loose,
		MinThreshold:  min,
	}
	require.NoError(t, db.Create(&rec).Error)
	return rec
}

func CreateCustomer(t *testing.T, db *gorm.DB, name string) models.Customer {
	t.Helper()

	c := models.Customer{Name: name, Code: "C-" + name, IsActive: true}
	require.NoError(t, db.Create(&c).Error)
	return c
}
