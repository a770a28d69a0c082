// Package app selects the storage backend and wires repositories and services for
// the server and the rule-manager CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gastrodx/gastrodx/internal/config"
	"github.com/gastrodx/gastrodx/internal/domain/catalog"
	"github.com/gastrodx/gastrodx/internal/domain/consultation"
	"github.com/gastrodx/gastrodx/internal/domain/diagnosis"
	"github.com/gastrodx/gastrodx/internal/domain/rules"
	"github.com/gastrodx/gastrodx/internal/platform/db"
	"github.com/gastrodx/gastrodx/internal/platform/gormdb"
	"github.com/gastrodx/gastrodx/internal/platform/metrics"
	"github.com/gastrodx/gastrodx/internal/seed"
)

// Store is one opened backend with its repositories.
type Store struct {
	Driver        string
	Catalog       catalog.Repository
	Rules         rules.Repository
	Consultations consultation.Repository
	Tx            db.TxRunner
	Health        db.HealthChecker

	// Pool is set for postgres only.
	Pool   *pgxpool.Pool
	schema string
	gdb    *gorm.DB
}

// GormModels lists every table managed by gorm auto-migration.
func GormModels() []interface{} {
	var models []interface{}
	models = append(models, catalog.GormModels()...)
	models = append(models, rules.GormModels()...)
	models = append(models, consultation.GormModels()...)
	return models
}

// OpenStore connects to the backend named by cfg.DBDriver. Postgres schemas are
// managed by the migrate command; mysql and sqlite are auto-migrated on open.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
		if err != nil {
			return nil, err
		}
		return &Store{
			Driver:        cfg.DBDriver,
			Catalog:       catalog.NewRepoPG(pool),
			Rules:         rules.NewRepoPG(pool),
			Consultations: consultation.NewRepoPG(pool),
			Tx:            db.NewTxRunner(pool, cfg.DBSchema),
			Health:        db.PoolChecker{Pool: pool},
			Pool:          pool,
			schema:        cfg.DBSchema,
		}, nil

	case config.DriverMySQL, config.DriverSQLite:
		dsn := cfg.DatabaseURL
		if cfg.DBDriver == config.DriverSQLite {
			dsn = cfg.SQLitePath
		}
		gdb, err := gormdb.Open(cfg.DBDriver, dsn, log, GormModels()...)
		if err != nil {
			return nil, err
		}
		return openGorm(cfg.DBDriver, gdb), nil

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func openGorm(driver string, gdb *gorm.DB) *Store {
	return &Store{
		Driver:        driver,
		Catalog:       catalog.NewRepoGorm(gdb),
		Rules:         rules.NewRepoGorm(gdb),
		Consultations: consultation.NewRepoGorm(gdb),
		Tx:            gormdb.NewTxRunner(gdb),
		Health:        gormdb.Checker{DB: gdb, Driver: driver},
		gdb:           gdb,
	}
}

// ConnMiddleware scopes a pooled connection to each request on postgres. Other
// backends get a pass-through.
func (s *Store) ConnMiddleware() echo.MiddlewareFunc {
	if s.Pool != nil {
		return db.ConnMiddleware(s.Pool, s.schema)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
}

func (s *Store) Close() error {
	if s.Pool != nil {
		s.Pool.Close()
		return nil
	}
	if s.gdb != nil {
		return gormdb.Close(s.gdb)
	}
	return nil
}

// Services are the domain services over one Store.
type Services struct {
	Catalog       *catalog.Service
	Rules         *rules.Service
	Diagnosis     *diagnosis.Service
	Consultations *consultation.Service
	Seed          *seed.Loader
}

func NewServices(store *Store, cfg *config.Config, log zerolog.Logger) *Services {
	cat := catalog.NewService(store.Catalog, cfg.CatalogCacheTTL, log)
	rs := rules.NewService(store.Rules, cat, store.Tx, log)
	diag := diagnosis.NewService(store.Rules, cat, store.Tx, PolicyFromConfig(cfg), log)
	return &Services{
		Catalog:       cat,
		Rules:         rs,
		Diagnosis:     diag,
		Consultations: consultation.NewService(store.Consultations, cat, store.Tx, diag, cfg.HistoryDefaultLimit, log),
		Seed:          seed.NewLoader(cat, rs, store.Tx, log),
	}
}

// SetMetrics attaches the domain collectors to every service.
func (s *Services) SetMetrics(m *metrics.Metrics) {
	s.Rules.SetMetrics(m.Rules)
	s.Diagnosis.SetMetrics(m.Diagnosis)
	s.Consultations.SetMetrics(m.Consultation)
}

// PolicyFromConfig builds the scoring policy from configuration. A config without
// weights, as in tests that build one by hand, gets diagnosis.DefaultPolicy.
func PolicyFromConfig(cfg *config.Config) diagnosis.Policy {
	if cfg.CompletenessWeight == 0 && cfg.RelevanceWeight == 0 {
		return diagnosis.DefaultPolicy
	}
	return diagnosis.Policy{
		CompletenessWeight: cfg.CompletenessWeight,
		RelevanceWeight:    cfg.RelevanceWeight,
		MinMatched:         cfg.MinMatched,
		MinConfidence:      cfg.MinConfidence,
	}
}
