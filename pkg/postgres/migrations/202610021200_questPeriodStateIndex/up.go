package _202610021200_questPeriodStateIndex

import (
	"database/sql"

	"github.com/Layr-Labs/questboard/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

// Pending period lookups filter on state before period id.
func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	res := grm.Exec(`create index if not exists idx_quest_periods_state_period_id on quest_periods (state, period_id)`)
	return res.Error
}

func (m *Migration) GetName() string {
	return "202610021200_questPeriodStateIndex"
}
