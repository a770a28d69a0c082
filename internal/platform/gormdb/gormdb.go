// Package gormdb is the MySQL / SQLite storage backend, built on gorm.
package gormdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gastrodx/gastrodx/internal/platform/db"
)

type txKey struct{}

// Open connects to a mysql DSN or a sqlite file and auto-migrates models.
func Open(driver, dsn string, log zerolog.Logger, models ...interface{}) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		if !strings.Contains(dsn, "parseTime") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "parseTime=True&loc=UTC&charset=utf8mb4"
		}
		dialector = mysql.Open(dsn)
	case "sqlite":
		if !strings.Contains(dsn, "_foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_foreign_keys=on"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewLogger(log, DefaultSlowQueryThreshold, gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// one writer at a time; a second connection would see "database is locked"
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("get sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if len(models) > 0 {
		if err := gdb.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("auto-migrate %s database: %w", driver, err)
		}
	}
	return gdb, nil
}

// Close releases the underlying *sql.DB.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// TxFromContext returns the gorm transaction bound to ctx, if any.
func TxFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

// Pick returns the transaction bound to ctx or the base handle scoped to ctx.
func Pick(ctx context.Context, gdb *gorm.DB) *gorm.DB {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return gdb.WithContext(ctx)
}

// TxRunner implements db.TxRunner on gorm.
type TxRunner struct {
	gdb *gorm.DB
}

var _ db.TxRunner = (*TxRunner)(nil)

func NewTxRunner(gdb *gorm.DB) *TxRunner {
	return &TxRunner{gdb: gdb}
}

// RunInTx joins a transaction already open in ctx, otherwise opens one that commits
// when fn returns nil and rolls back otherwise.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	return r.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// IsNotFound reports whether err is gorm's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique-key violation translated by the dialect.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// Checker reports on the *sql.DB behind a gorm handle.
type Checker struct {
	DB     *gorm.DB
	Driver string
}

func (c Checker) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c Checker) Stats() *db.PoolStats {
	stats := &db.PoolStats{Driver: c.Driver}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return stats
	}
	s := sqlDB.Stats()
	stats.TotalConns = int32(s.OpenConnections)
	stats.IdleConns = int32(s.Idle)
	stats.AcquiredConns = int32(s.InUse)
	stats.MaxConns = int32(s.MaxOpenConnections)
	stats.AcquireCount = s.WaitCount
	stats.AcquireDuration = s.WaitDuration.String()
	stats.Healthy = s.OpenConnections > 0
	return stats
}
