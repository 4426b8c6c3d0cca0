package _202610151000_distributorModels

import (
	"database/sql"

	"github.com/Layr-Labs/questboard/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

// Rows are keyed by the distributor address so that one database can hold every distributor a board was pointed at.
func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS distributor_quests (
			distributor varchar not null,
			quest_id bigint not null,
			token varchar not null,
			primary key (distributor, quest_id)
		)`,
		`CREATE TABLE IF NOT EXISTS distributor_quest_periods (
			distributor varchar not null,
			quest_id bigint not null,
			period_id bigint not null,
			funded varchar not null,
			total_amount varchar not null,
			claimed_amount varchar not null,
			root varchar not null,
			primary key (distributor, quest_id, period_id)
		)`,
		`CREATE TABLE IF NOT EXISTS distributor_claims (
			distributor varchar not null,
			quest_id bigint not null,
			period_id bigint not null,
			claim_index bigint not null,
			primary key (distributor, quest_id, period_id, claim_index)
		)`,
	}
	for _, query := range queries {
		res := grm.Exec(query)
		if res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610151000_distributorModels"
}
