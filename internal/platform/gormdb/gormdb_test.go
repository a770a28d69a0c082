package gormdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"size:64;uniqueIndex"`
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	gdb, err := Open("sqlite", path, zerolog.Nop(), &widget{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })
	return gdb
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "whatever", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestTxRunner_Commit(t *testing.T) {
	gdb := openTestDB(t)
	runner := NewTxRunner(gdb)

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		require.NotNil(t, TxFromContext(ctx))
		return Pick(ctx, gdb).Create(&widget{Name: "a"}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, gdb.Model(&widget{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTxRunner_RollbackOnError(t *testing.T) {
	gdb := openTestDB(t)
	runner := NewTxRunner(gdb)
	boom := errors.New("boom")

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		if err := Pick(ctx, gdb).Create(&widget{Name: "a"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, gdb.Model(&widget{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTxRunner_JoinsOuterTransaction(t *testing.T) {
	gdb := openTestDB(t)
	runner := NewTxRunner(gdb)
	boom := errors.New("outer failure")

	err := runner.RunInTx(context.Background(), func(ctx context.Context) error {
		outer := TxFromContext(ctx)
		inner := runner.RunInTx(ctx, func(ctx context.Context) error {
			assert.Same(t, outer, TxFromContext(ctx))
			return Pick(ctx, gdb).Create(&widget{Name: "inner"}).Error
		})
		require.NoError(t, inner)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, gdb.Model(&widget{}).Count(&count).Error)
	assert.Zero(t, count, "inner write must roll back with the outer transaction")
}

func TestPick_WithoutTx(t *testing.T) {
	gdb := openTestDB(t)
	assert.Nil(t, TxFromContext(context.Background()))
	assert.NotNil(t, Pick(context.Background(), gdb))
}

func TestIsNotFound(t *testing.T) {
	gdb := openTestDB(t)
	var w widget
	err := gdb.First(&w, 42).Error
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestChecker(t *testing.T) {
	gdb := openTestDB(t)
	c := Checker{DB: gdb, Driver: "sqlite"}
	require.NoError(t, c.Ping(context.Background()))

	stats := c.Stats()
	assert.Equal(t, "sqlite", stats.Driver)
	assert.Equal(t, int32(1), stats.MaxConns)
}
