package gormdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold marks queries worth a warning.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// Logger routes gorm's SQL logging through zerolog.
type Logger struct {
	log           zerolog.Logger
	SlowThreshold time.Duration
	LogLevel      gormlogger.LogLevel
}

func NewLogger(log zerolog.Logger, slowThreshold time.Duration, level gormlogger.LogLevel) *Logger {
	return &Logger{
		log:           log.With().Str("component", "gorm").Logger(),
		SlowThreshold: slowThreshold,
		LogLevel:      level,
	}
}

// LogMode implements logger.Interface
func (l *Logger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *Logger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Info {
		l.log.Info().Msg(fmt.Sprintf(msg, data...))
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Warn {
		l.log.Warn().Msg(fmt.Sprintf(msg, data...))
	}
}

func (l *Logger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormlogger.Error {
		l.log.Error().Msg(fmt.Sprintf(msg, data...))
	}
}

// Trace implements logger.Interface
func (l *Logger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.LogLevel >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Error().Err(err).
			Str("sql", sql).
			Dur("duration", elapsed).
			Int64("rows_affected", rows).
			Msg("database query failed")
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn().
			Str("sql", sql).
			Dur("duration", elapsed).
			Dur("threshold", l.SlowThreshold).
			Int64("rows_affected", rows).
			Msg("slow query")
	case l.LogLevel >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug().
			Str("sql", sql).
			Dur("duration", elapsed).
			Int64("rows_affected", rows).
			Msg("query")
	}
}
