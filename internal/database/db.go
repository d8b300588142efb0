package database

import (
	"fmt"

	"warehouse-backend/internal/config"
	"warehouse-backend/internal/logger"
	"warehouse-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init connects to Postgres, migrates the schema and sets DB.
func Init(cfg *config.Config) error {
	level := gormlogger.Warn
	if cfg.IsDev() {
		level = gormlogger.Info
	}

	db, err := Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return err
	}
	DB = db

	logger.Log.Info("database connected, migrations applied")
	return nil
}

// Open opens any GORM dialector and runs the migrations. Tests pass sqlite here.
func Open(dialector gorm.Dialector, gormCfg *gorm.Config) (*gorm.DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{}
	}
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.Category{},
		&models.Product{},
		&models.StockRecord{},
		&models.Movement{},
		&models.Customer{},
		&models.IssueVoucher{},
		&models.IssueVoucherItem{},
		&models.ReturnVoucher{},
		&models.ReturnVoucherItem{},
		&models.Payment{},
		&models.Sequence{},
		&models.AuditLog{},
	)
	if err != nil {
		logger.Log.Error("auto migrate failed", zap.Error(err))
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
