//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gastrodx/gastrodx/internal/app"
	"github.com/gastrodx/gastrodx/internal/config"
	"github.com/gastrodx/gastrodx/internal/platform/db"
	"github.com/gastrodx/gastrodx/internal/platform/gormdb"
	"github.com/gastrodx/gastrodx/migrations"
)

var (
	postgresURL string
	mysqlDSN    string
	dbCounter   atomic.Int64
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgURL, pgCleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		os.Exit(1)
	}
	postgresURL = pgURL

	myDSN, myCleanup, err := startMySQL(ctx)
	if err != nil {
		pgCleanup()
		fmt.Fprintf(os.Stderr, "failed to start mysql: %v\n", err)
		os.Exit(1)
	}
	mysqlDSN = myDSN

	code := m.Run()
	myCleanup()
	pgCleanup()
	os.Exit(code)
}

// openPostgres migrates a fresh schema and opens a store scoped to it.
func openPostgres(t *testing.T) (*app.Services, *app.Store) {
	t.Helper()
	ctx := context.Background()
	schema := fmt.Sprintf("it_%d", dbCounter.Add(1))

	cfg := baseConfig(config.DriverPostgres)
	cfg.DatabaseURL = postgresURL
	cfg.DBSchema = schema

	pool, err := db.NewPool(ctx, postgresURL, 2, 1, schema)
	if err != nil {
		t.Fatalf("open migration pool: %v", err)
	}
	defer pool.Close()

	fsys, err := migrations.PostgresFS()
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if _, err := db.NewMigrator(pool, fsys).Up(ctx, schema); err != nil {
		t.Fatalf("migrate %s: %v", schema, err)
	}

	return openStore(t, cfg)
}

// openMySQL creates a fresh database and opens an auto-migrated store on it.
func openMySQL(t *testing.T) (*app.Services, *app.Store) {
	t.Helper()
	name := fmt.Sprintf("it_%d", dbCounter.Add(1))

	root, err := gormdb.Open(config.DriverMySQL, mysqlDSN, zerolog.Nop())
	if err != nil {
		t.Fatalf("open mysql root: %v", err)
	}
	if err := root.Exec("CREATE DATABASE " + name).Error; err != nil {
		t.Fatalf("create database %s: %v", name, err)
	}
	t.Cleanup(func() {
		dropDatabase(root, name)
		_ = gormdb.Close(root)
	})

	cfg := baseConfig(config.DriverMySQL)
	cfg.DatabaseURL = strings.TrimSuffix(mysqlDSN, "/") + "/" + name
	return openStore(t, cfg)
}

func dropDatabase(root *gorm.DB, name string) {
	_ = root.Exec("DROP DATABASE IF EXISTS " + name).Error
}

func baseConfig(driver string) *config.Config {
	return &config.Config{
		DBDriver:            driver,
		DBMaxConns:          4,
		DBMinConns:          1,
		DBSchema:            "public",
		HistoryDefaultLimit: 20,
	}
}

func openStore(t *testing.T, cfg *config.Config) (*app.Services, *app.Store) {
	t.Helper()
	store, err := app.OpenStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open %s store: %v", cfg.DBDriver, err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return app.NewServices(store, cfg, zerolog.Nop()), store
}
