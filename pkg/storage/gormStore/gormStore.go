// Package gormStore persists quest board and distributor state in sqlite or postgres through gorm.
package gormStore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/postgres/helpers"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBoardStore implements storage.BoardStore and distributor.Store.
type GormBoardStore struct {
	Db     *gorm.DB
	Logger *zap.Logger
}

func NewGormBoardStore(db *gorm.DB, l *zap.Logger) *GormBoardStore {
	return &GormBoardStore{
		Db:     db,
		Logger: l,
	}
}

// Load reads the complete board state. A database without a settings row yields a
// state with nil Settings.
func (s *GormBoardStore) Load(ctx context.Context) (*questBoardTypes.State, error) {
	db := s.Db.WithContext(ctx)
	state := questBoardTypes.NewState()

	var settings BoardSettings
	res := db.Where("id = ?", settingsRowId).First(&settings)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load board settings: %w", res.Error)
	}
	if res.Error == nil {
		st, err := settings.toSettings()
		if err != nil {
			return nil, err
		}
		state.Settings = st
	}

	var managers []*BoardManager
	if res := db.Order("address asc").Find(&managers); res.Error != nil {
		return nil, fmt.Errorf("failed to load managers: %w", res.Error)
	}
	for _, m := range managers {
		state.Managers = append(state.Managers, common.HexToAddress(m.Address))
	}

	var tokens []*WhitelistedToken
	if res := db.Find(&tokens); res.Error != nil {
		return nil, fmt.Errorf("failed to load whitelisted tokens: %w", res.Error)
	}
	for _, t := range tokens {
		minimum, err := parseAmount("min_reward_per_vote", t.MinRewardPerVote)
		if err != nil {
			return nil, err
		}
		state.Whitelist[common.HexToAddress(t.Token)] = minimum
	}

	var quests []*Quest
	if res := db.Order("id asc").Find(&quests); res.Error != nil {
		return nil, fmt.Errorf("failed to load quests: %w", res.Error)
	}
	for _, q := range quests {
		quest, err := q.toQuest()
		if err != nil {
			return nil, err
		}
		state.Quests[quest.Id] = quest
	}

	var periods []*QuestPeriod
	if res := db.Order("quest_id asc, period_id asc").Find(&periods); res.Error != nil {
		return nil, fmt.Errorf("failed to load quest periods: %w", res.Error)
	}
	for _, p := range periods {
		qp, err := p.toQuestPeriod()
		if err != nil {
			return nil, err
		}
		if _, ok := state.QuestPeriods[qp.QuestId]; !ok {
			state.QuestPeriods[qp.QuestId] = make(map[uint64]*questBoardTypes.QuestPeriod)
		}
		state.QuestPeriods[qp.QuestId][qp.PeriodId] = qp
	}

	var blacklists []*QuestBlacklist
	if res := db.Order("quest_id asc, position asc").Find(&blacklists); res.Error != nil {
		return nil, fmt.Errorf("failed to load blacklists: %w", res.Error)
	}
	for _, b := range blacklists {
		state.Blacklists[b.QuestId] = append(state.Blacklists[b.QuestId], common.HexToAddress(b.Voter))
	}

	s.Logger.Sugar().Debugw("Loaded board state",
		zap.Int("quests", len(state.Quests)),
		zap.Int("managers", len(state.Managers)),
		zap.Int("whitelistedTokens", len(state.Whitelist)),
	)
	return state, nil
}

// Commit writes the change set in a single transaction and calls apply before committing.
func (s *GormBoardStore) Commit(ctx context.Context, cs *questBoardTypes.ChangeSet, apply func() error) error {
	_, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (interface{}, error) {
		tx = tx.WithContext(ctx)
		if err := s.writeChangeSet(tx, cs); err != nil {
			return nil, err
		}
		if apply != nil {
			if err := apply(); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}, s.Db, nil)
	if err != nil {
		s.Logger.Sugar().Debugw("Board commit rolled back", zap.Error(err))
	}
	return err
}

func upsert(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.OnConflict{UpdateAll: true})
}

func (s *GormBoardStore) writeChangeSet(tx *gorm.DB, cs *questBoardTypes.ChangeSet) error {
	if cs.Settings != nil {
		if res := upsert(tx).Create(settingsToModel(cs.Settings)); res.Error != nil {
			return fmt.Errorf("failed to write board settings: %w", res.Error)
		}
	}

	if cs.Managers != nil {
		if res := tx.Exec(`delete from board_managers`); res.Error != nil {
			return fmt.Errorf("failed to clear managers: %w", res.Error)
		}
		for _, m := range cs.Managers {
			if res := tx.Create(&BoardManager{Address: addressToString(m)}); res.Error != nil {
				return fmt.Errorf("failed to write manager: %w", res.Error)
			}
		}
	}

	for token, minimum := range cs.Whitelist {
		if minimum == nil {
			res := tx.Where("token = ?", addressToString(token)).Delete(&WhitelistedToken{})
			if res.Error != nil {
				return fmt.Errorf("failed to remove whitelisted token: %w", res.Error)
			}
			continue
		}
		res := upsert(tx).Create(&WhitelistedToken{
			Token:            addressToString(token),
			MinRewardPerVote: amountToString(minimum),
		})
		if res.Error != nil {
			return fmt.Errorf("failed to write whitelisted token: %w", res.Error)
		}
	}

	for _, q := range cs.Quests {
		if res := upsert(tx).Create(questToModel(q)); res.Error != nil {
			return fmt.Errorf("failed to write quest %d: %w", q.Id, res.Error)
		}
	}

	for _, qp := range cs.QuestPeriods {
		if res := upsert(tx).Create(questPeriodToModel(qp)); res.Error != nil {
			return fmt.Errorf("failed to write quest period %d/%d: %w", qp.QuestId, qp.PeriodId, res.Error)
		}
	}

	for questId, voters := range cs.Blacklists {
		if res := tx.Where("quest_id = ?", questId).Delete(&QuestBlacklist{}); res.Error != nil {
			return fmt.Errorf("failed to clear blacklist of quest %d: %w", questId, res.Error)
		}
		for i, voter := range voters {
			res := tx.Create(&QuestBlacklist{
				QuestId:  questId,
				Position: uint64(i),
				Voter:    addressToString(voter),
			})
			if res.Error != nil {
				return fmt.Errorf("failed to write blacklist of quest %d: %w", questId, res.Error)
			}
		}
	}

	for address, records := range cs.Distributors {
		if err := writeDistributorRecords(tx, address, records); err != nil {
			return err
		}
	}
	return nil
}

// LoadDistributor reads every record of the distributor at address.
func (s *GormBoardStore) LoadDistributor(ctx context.Context, address common.Address) (*distributor.Records, error) {
	db := s.Db.WithContext(ctx)
	key := addressToString(address)
	records := &distributor.Records{}

	var quests []*DistributorQuest
	if res := db.Where("distributor = ?", key).Order("quest_id asc").Find(&quests); res.Error != nil {
		return nil, fmt.Errorf("failed to load distributor quests: %w", res.Error)
	}
	for _, q := range quests {
		records.Quests = append(records.Quests, &distributor.QuestRecord{
			QuestId: q.QuestId,
			Token:   common.HexToAddress(q.Token),
		})
	}

	var periods []*DistributorQuestPeriod
	if res := db.Where("distributor = ?", key).Order("quest_id asc, period_id asc").Find(&periods); res.Error != nil {
		return nil, fmt.Errorf("failed to load distributor quest periods: %w", res.Error)
	}
	for _, p := range periods {
		record, err := p.toRecord()
		if err != nil {
			return nil, err
		}
		records.Periods = append(records.Periods, record)
	}

	var claims []*DistributorClaim
	if res := db.Where("distributor = ?", key).Order("quest_id asc, period_id asc, claim_index asc").Find(&claims); res.Error != nil {
		return nil, fmt.Errorf("failed to load distributor claims: %w", res.Error)
	}
	for _, c := range claims {
		records.Claims = append(records.Claims, &distributor.ClaimRecord{
			QuestId:  c.QuestId,
			PeriodId: c.PeriodId,
			Index:    c.ClaimIndex,
		})
	}
	return records, nil
}

// CommitDistributor writes the distributor records in a single transaction and calls apply before committing.
func (s *GormBoardStore) CommitDistributor(ctx context.Context, address common.Address, records *distributor.Records, apply func() error) error {
	_, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (interface{}, error) {
		tx = tx.WithContext(ctx)
		if err := writeDistributorRecords(tx, address, records); err != nil {
			return nil, err
		}
		if apply != nil {
			if err := apply(); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}, s.Db, nil)
	if err != nil {
		s.Logger.Sugar().Debugw("Distributor commit rolled back", zap.String("distributor", address.Hex()), zap.Error(err))
	}
	return err
}

func writeDistributorRecords(tx *gorm.DB, address common.Address, records *distributor.Records) error {
	if records == nil {
		return nil
	}
	key := addressToString(address)
	for _, q := range records.Quests {
		res := upsert(tx).Create(&DistributorQuest{
			Distributor: key,
			QuestId:     q.QuestId,
			Token:       addressToString(q.Token),
		})
		if res.Error != nil {
			return fmt.Errorf("failed to write distributor quest %d: %w", q.QuestId, res.Error)
		}
	}
	for _, p := range records.Periods {
		if res := upsert(tx).Create(distributorPeriodToModel(address, p)); res.Error != nil {
			return fmt.Errorf("failed to write distributor quest period %d/%d: %w", p.QuestId, p.PeriodId, res.Error)
		}
	}
	for _, c := range records.Claims {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&DistributorClaim{
			Distributor: key,
			QuestId:     c.QuestId,
			PeriodId:    c.PeriodId,
			ClaimIndex:  c.Index,
		})
		if res.Error != nil {
			return fmt.Errorf("failed to write claim %d of quest period %d/%d: %w", c.Index, c.QuestId, c.PeriodId, res.Error)
		}
	}
	return nil
}

// ListPendingPeriodIds returns the distinct period ids before the given period that still
// have ACTIVE quest periods.
func (s *GormBoardStore) ListPendingPeriodIds(ctx context.Context, before uint64) ([]uint64, error) {
	ids := make([]uint64, 0)
	res := s.Db.WithContext(ctx).
		Model(&QuestPeriod{}).
		Where("state = ? and period_id < ?", questBoardTypes.PeriodState_Active.String(), before).
		Distinct("period_id").
		Order("period_id asc").
		Pluck("period_id", &ids)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to list pending periods: %w", res.Error)
	}
	return ids, nil
}
