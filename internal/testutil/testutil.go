package testutil

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptc-energia/backend/internal/config"
	"github.com/uptc-energia/backend/internal/db"
	"github.com/uptc-energia/backend/internal/db/models"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TestSetup bundles the fixtures most tests need
type TestSetup struct {
	DB      *db.Database
	Logger  *utils.Logger
	Config  *config.Config
	Cleanup func()
}

// NewTestSetup creates a test environment backed by an in-memory SQLite
// database
func NewTestSetup(t require.TestingT) *TestSetup {
	gin.SetMode(gin.TestMode)

	zapLogger := zap.NewNop()
	logger := &utils.Logger{Logger: zapLogger}

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:          "test-secret-key-for-testing-only",
			ExpirationHours: 1,
		},
		Analytics: config.AnalyticsConfig{
			DefaultMetric:    "energiaTotal",
			ZScoreThreshold:  3.0,
			LookbackDays:     30,
			HoursBack:        24,
			ForecastHours:    24,
			MaxReadingsBatch: 10000,
		},
		Log: config.LogConfig{
			Level:  "info",
			Format: "json",
		},
	}

	// Unique name per setup so parallel tests get isolated databases
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		require.FailNow(t, "Failed to create in-memory database", err)
	}

	database := &db.Database{DB: gormDB}

	cleanup := func() {
		sqlDB, _ := gormDB.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}

	return &TestSetup{
		DB:      database,
		Logger:  logger,
		Config:  cfg,
		Cleanup: cleanup,
	}
}

// Migrate runs automigration for the given models
func (ts *TestSetup) Migrate(t require.TestingT, values ...interface{}) {
	require.NoError(t, ts.DB.DB.AutoMigrate(values...))
}

// MigrateAll runs automigration for every model in the schema
func (ts *TestSetup) MigrateAll(t require.TestingT) {
	ts.Migrate(t,
		&models.User{},
		&models.Reading{},
		&models.Rule{},
		&models.Alert{},
		&models.Evidence{},
		&models.Baseline{},
	)
}

// Float returns a pointer to v, for optional metric columns
func Float(v float64) *float64 { return &v }
