package db

import (
	"context"
	"fmt"
	"strings"

	"widgets/internal/widget"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// WelcomeText is the text of the widget inserted into an empty store by Seed.
const WelcomeText = "Welcome to your widgets app!"

// Open connects with the named driver. sqlite is meant for local runs and tests.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverPostgres, "postgresql", "":
		dialector = postgres.Open(dsn)
	case DriverSQLite, "sqlite3":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, err
	}

	if gdb.Dialector.Name() == DriverSQLite {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// single writer; avoids "database is locked" under concurrent autosaves
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&widget.Widget{}); err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_widgets_created on widgets(created_at, id);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}

// Seed inserts the welcome widget when the store is empty. It reports whether it inserted.
func Seed(ctx context.Context, svc *widget.Service) (bool, error) {
	n, err := svc.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	w, err := svc.Create(ctx, widget.CreateInput{})
	if err != nil {
		return false, err
	}
	text := WelcomeText
	if _, err := svc.Update(ctx, w.ID, widget.UpdateInput{Text: &text}); err != nil {
		return false, err
	}
	return true, nil
}
