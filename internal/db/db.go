package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"slope-monitor-backend/config"
	"slope-monitor-backend/internal/model"
	"slope-monitor-backend/internal/realtime"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := open(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	switch {
	case cfg.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	case cfg.Driver == "sqlite":
		// sqlite allows one writer; live subscriptions read concurrently.
		sqlDB.SetMaxOpenConns(1)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableTimescale {
		if cfg.Driver != "postgres" {
			log.Printf("Warning: enable_timescale ignored for driver %q", cfg.Driver)
		} else {
			log.Println("TimescaleDB is enabled, applying TimescaleDB-specific DDL...")
			if err := applyTimescaleDDL(db); err != nil {
				log.Printf("Warning: failed to apply some TimescaleDB DDL: %v. Continuing without them.", err)
			}
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

func open(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.SensorReading{},
		&model.Alert{},
		&model.Thresholds{},
		&model.User{},
		&model.PushSubscription{},
		&model.PushSubscriptionDevice{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func applyTimescaleDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS timescaledb;",
		"SELECT create_hypertable('sensor_readings', 'timestamp', if_not_exists => TRUE, migrate_data => TRUE);",
		"CREATE INDEX IF NOT EXISTS idx_sensor_readings_device_ts_desc ON sensor_readings (device_id, \"timestamp\" DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

// WatchChanges registers callbacks that wake live subscriptions whenever a
// write through db touches one of their collections.
func WatchChanges(db *gorm.DB, feed *realtime.Feed) error {
	notify := func(tx *gorm.DB) {
		if tx.Error != nil || tx.RowsAffected == 0 || tx.Statement.Table == "" {
			return
		}
		feed.Notify(realtime.Collection(tx.Statement.Table))
	}

	cb := db.Callback()
	if err := cb.Create().After("gorm:create").Register("realtime:notify_create", notify); err != nil {
		return fmt.Errorf("register create callback: %w", err)
	}
	if err := cb.Update().After("gorm:update").Register("realtime:notify_update", notify); err != nil {
		return fmt.Errorf("register update callback: %w", err)
	}
	if err := cb.Delete().After("gorm:delete").Register("realtime:notify_delete", notify); err != nil {
		return fmt.Errorf("register delete callback: %w", err)
	}
	return nil
}
