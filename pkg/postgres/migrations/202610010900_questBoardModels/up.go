package _202610010900_questBoardModels

import (
	"database/sql"

	"github.com/Layr-Labs/questboard/internal/config"
	"gorm.io/gorm"
)

type Migration struct {
}

// Amounts are stored as base 10 strings so that the same schema works on sqlite and postgres.
func (m *Migration) Up(db *sql.DB, grm *gorm.DB, cfg *config.Config) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS board_settings (
			id bigint not null primary key,
			owner varchar not null,
			chest varchar not null,
			distributor varchar not null,
			platform_fee bigint not null,
			min_objective varchar not null,
			next_id bigint not null,
			is_killed boolean not null,
			kill_ts bigint not null
		)`,
		`CREATE TABLE IF NOT EXISTS board_managers (
			address varchar not null primary key
		)`,
		`CREATE TABLE IF NOT EXISTS whitelisted_tokens (
			token varchar not null primary key,
			min_reward_per_vote varchar not null
		)`,
		`CREATE TABLE IF NOT EXISTS quests (
			id bigint not null primary key,
			creator varchar not null,
			gauge varchar not null,
			reward_token varchar not null,
			distributor varchar not null,
			duration bigint not null,
			total_reward_amount varchar not null,
			period_start bigint not null,
			distributed_amount varchar not null,
			withdrawn_amount varchar not null
		)`,
		`create index if not exists idx_quests_creator on quests (creator)`,
		`CREATE TABLE IF NOT EXISTS quest_periods (
			quest_id bigint not null,
			period_id bigint not null,
			objective_votes varchar not null,
			reward_per_vote varchar not null,
			reward_amount_per_period varchar not null,
			reward_amount_distributed varchar not null,
			withdrawable_amount varchar not null,
			state varchar not null,
			primary key (quest_id, period_id)
		)`,
		`create index if not exists idx_quest_periods_period_id on quest_periods (period_id)`,
		`CREATE TABLE IF NOT EXISTS quest_blacklists (
			quest_id bigint not null,
			position bigint not null,
			voter varchar not null,
			primary key (quest_id, position),
			unique (quest_id, voter)
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
	return "202610010900_questBoardModels"
}
