package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carevoice-backend/config"
	"carevoice-backend/internal/model"
)

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&model.Organization{},
		&model.Room{},
		&model.Device{},
		&model.Announcement{},
		&model.Schedule{},
		&model.ScheduleItem{},
		&model.EmergencyBroadcast{},
		&model.PlayLog{},
		&model.AuditLog{},
		&model.PushSubscription{},
	}
}

// Init opens the configured database and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel(cfg.LogLevel)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Info("running database migrations", zap.String("driver", cfg.Driver))
	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate creates tables and the constraints AutoMigrate cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return applyConstraintDDL(db)
}

// applyConstraintDDL installs the partial unique index that backs the
// one-active-broadcast-per-organization rule. Both postgres and sqlite
// support partial indexes.
func applyConstraintDDL(db *gorm.DB) error {
	active := "active"
	if db.Dialector.Name() == "sqlite" {
		active = "active = 1"
	}
	ddls := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_emergency_one_active ON emergency_broadcasts (organization_id) WHERE " + active,
		"CREATE INDEX IF NOT EXISTS idx_devices_last_seen ON devices (organization_id, last_seen_at)",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
