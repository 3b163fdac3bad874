package database

import (
	"context"
	"errors"
	"testing"

	"github.com/KOMKZ/go-yogan-tokenauth/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type widget struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100;uniqueIndex"`
}

func openSQLite(t *testing.T, tp trace.TracerProvider) *Manager {
	t.Helper()
	m, err := Open(Config{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1}, logger.NewNop(), tp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.DB().AutoMigrate(&widget{}))
	return m
}

func TestConfig_DefaultsAndValidate(t *testing.T) {
	cfg := Config{DSN: "x"}
	cfg.ApplyDefaults()

	assert.Equal(t, "mysql", cfg.Driver)
	assert.Equal(t, 100, cfg.MaxOpenConns)
	assert.NoError(t, cfg.Validate())

	assert.ErrorIs(t, Config{Driver: "oracle", DSN: "x"}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{Driver: "sqlite"}.Validate(), ErrInvalidConfig)
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	_, err := Open(Config{Driver: "sqlite"}, logger.NewNop(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBaseRepository(t *testing.T) {
	m := openSQLite(t, nil)
	repo := NewBaseRepository[widget](m.DB())
	ctx := context.Background()

	w := &widget{Name: "gear"}
	require.NoError(t, repo.Create(ctx, w))
	require.NotZero(t, w.ID)

	got, err := repo.FindByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "gear", got.Name)

	got, err = repo.FindOne(ctx, "name = ?", "gear")
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)

	_, err = repo.FindOne(ctx, "name = ?", "missing")
	assert.True(t, errors.Is(err, ErrRecordNotFound))

	require.NoError(t, repo.Delete(ctx, w.ID))
	_, err = repo.FindByID(ctx, w.ID)
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func TestHealthChecker(t *testing.T) {
	m := openSQLite(t, nil)
	checker := NewHealthChecker(m)

	assert.Equal(t, "database", checker.Name())
	assert.NoError(t, checker.Check(context.Background()))

	require.NoError(t, m.Close())
	assert.Error(t, checker.Check(context.Background()))

	assert.Error(t, NewHealthChecker(nil).Check(context.Background()))
}

func TestOtelPlugin_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	m := openSQLite(t, tp)
	ctx := context.Background()

	require.NoError(t, m.DB().WithContext(ctx).Create(&widget{Name: "a"}).Error)
	var w widget
	err := m.DB().WithContext(ctx).Where("name = ?", "nope").First(&w).Error
	require.Error(t, err)

	ops := map[string]bool{}
	for _, span := range recorder.Ended() {
		for _, attr := range span.Attributes() {
			if attr.Key == attribute.Key("db.operation") {
				ops[attr.Value.AsString()] = true
			}
		}
		if span.Name() == "gorm.query widgets" {
			assert.NotEqual(t, "Error", span.Status().Code.String())
		}
	}
	assert.True(t, ops["create"])
	assert.True(t, ops["query"])
}

func TestOtelPlugin_TraceSQL(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	m, err := Open(Config{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1, TraceSQL: true, TraceSQLMaxLen: 10}, logger.NewNop(), tp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.DB().AutoMigrate(&widget{}))

	require.NoError(t, m.DB().Create(&widget{Name: "b"}).Error)

	found := false
	for _, span := range recorder.Ended() {
		for _, attr := range span.Attributes() {
			if attr.Key == attribute.Key("db.statement") {
				found = true
				assert.LessOrEqual(t, len(attr.Value.AsString()), 13)
			}
		}
	}
	assert.True(t, found)
}
