package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Layr-Labs/questboard/internal/config"
	"github.com/Layr-Labs/questboard/internal/sqlite"
	"github.com/Layr-Labs/questboard/pkg/postgres/migrations"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func GetConfig() *config.Config {
	return config.NewConfig()
}

// GenerateTestDbName returns a database name that is unique per call.
func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("questboard_test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}

// GetDbConfigFromEnv reads postgres test settings. An empty host means no test database is available.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	port, _ := strconv.Atoi(os.Getenv("QUESTBOARD_DATABASE_PORT"))
	if port == 0 {
		port = 5432
	}
	return &config.DatabaseConfig{
		Driver:   config.DatabaseDriver_Postgres,
		Host:     os.Getenv("QUESTBOARD_DATABASE_HOST"),
		Port:     port,
		User:     os.Getenv("QUESTBOARD_DATABASE_USER"),
		Password: os.Getenv("QUESTBOARD_DATABASE_PASSWORD"),
		SSLMode:  "disable",
	}
}

// GetSqliteDatabaseConnection returns a migrated, named in-memory sqlite database.
func GetSqliteDatabaseConnection(name string, l *zap.Logger) (*gorm.DB, error) {
	db, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewInMemorySqliteWithName(name))
	if err != nil {
		return nil, err
	}
	rawDb, err := db.DB()
	if err != nil {
		return nil, err
	}
	migrator := migrations.NewMigrator(rawDb, db, l, GetConfig())
	if err := migrator.MigrateAll(); err != nil {
		return nil, err
	}
	return db, nil
}
