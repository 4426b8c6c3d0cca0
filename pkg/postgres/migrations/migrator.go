package migrations

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Layr-Labs/questboard/internal/config"
	_202610010900_questBoardModels "github.com/Layr-Labs/questboard/pkg/postgres/migrations/202610010900_questBoardModels"
	_202610021200_questPeriodStateIndex "github.com/Layr-Labs/questboard/pkg/postgres/migrations/202610021200_questPeriodStateIndex"
	_202610151000_distributorModels "github.com/Layr-Labs/questboard/pkg/postgres/migrations/202610151000_distributorModels"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Migration interface {
	Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error
	GetName() string
}

// Migrations are applied in order. Append new migrations to the end.
var Migrations = []Migration{
	&_202610010900_questBoardModels.Migration{},
	&_202610021200_questPeriodStateIndex.Migration{},
	&_202610151000_distributorModels.Migration{},
}

type MigrationRecord struct {
	Name      string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (MigrationRecord) TableName() string {
	return "migrations"
}

type Migrator struct {
	Db           *sql.DB
	GDb          *gorm.DB
	Logger       *zap.Logger
	globalConfig *config.Config
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger, cfg *config.Config) *Migrator {
	return &Migrator{
		Db:           db,
		GDb:          gDb,
		Logger:       l,
		globalConfig: cfg,
	}
}

// MigrateAll applies every migration that has not been recorded yet.
func (m *Migrator) MigrateAll() error {
	err := m.GDb.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		name varchar not null primary key,
		created_at timestamp not null
	)`).Error
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range Migrations {
		if err := m.Migrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	var count int64
	res := m.GDb.Model(&MigrationRecord{}).Where("name = ?", name).Count(&count)
	if res.Error != nil {
		return fmt.Errorf("failed to look up migration '%s': %w", name, res.Error)
	}
	if count > 0 {
		m.Logger.Sugar().Debugw("Migration already applied", zap.String("name", name))
		return nil
	}

	m.Logger.Sugar().Infow("Running migration", zap.String("name", name))
	if err := migration.Up(m.Db, m.GDb, m.globalConfig); err != nil {
		m.Logger.Sugar().Errorw("Migration failed", zap.String("name", name), zap.Error(err))
		return fmt.Errorf("migration '%s' failed: %w", name, err)
	}

	res = m.GDb.Create(&MigrationRecord{Name: name, CreatedAt: time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("failed to record migration '%s': %w", name, res.Error)
	}
	return nil
}
