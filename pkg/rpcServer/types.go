package rpcServer

import (
	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/questBoard/questBoardTypes"
)

// Amounts are encoded as base-10 strings. Requests also accept scientific notation
// such as "1500e18".

type BoardResponse struct {
	Address       string `json:"address"`
	Owner         string `json:"owner"`
	Chest         string `json:"chest"`
	Distributor   string `json:"distributor"`
	PlatformFee   uint64 `json:"platformFee"`
	MinObjective  string `json:"minObjective"`
	QuestCount    uint64 `json:"questCount"`
	CurrentPeriod uint64 `json:"currentPeriod"`
	KillState     string `json:"killState"`
	KillTs        uint64 `json:"killTs,omitempty"`
}

type TokenResponse struct {
	Token            string `json:"token"`
	MinRewardPerVote string `json:"minRewardPerVote"`
}

type PeriodsResponse struct {
	PeriodIds []uint64 `json:"periodIds"`
}

type QuestIdsResponse struct {
	QuestIds []uint64 `json:"questIds"`
}

type QuestResponse struct {
	Id                uint64 `json:"id"`
	Creator           string `json:"creator"`
	Gauge             string `json:"gauge"`
	RewardToken       string `json:"rewardToken"`
	Distributor       string `json:"distributor"`
	Duration          uint64 `json:"duration"`
	PeriodStart       uint64 `json:"periodStart"`
	TotalRewardAmount string `json:"totalRewardAmount"`
	DistributedAmount string `json:"distributedAmount"`
	WithdrawnAmount   string `json:"withdrawnAmount"`
	CommittedFunds    string `json:"committedFunds"`
}

func questToResponse(q *questBoardTypes.Quest) *QuestResponse {
	return &QuestResponse{
		Id:                q.Id,
		Creator:           q.Creator.Hex(),
		Gauge:             q.Gauge.Hex(),
		RewardToken:       q.RewardToken.Hex(),
		Distributor:       q.Distributor.Hex(),
		Duration:          q.Duration,
		PeriodStart:       q.PeriodStart,
		TotalRewardAmount: amountString(q.TotalRewardAmount),
		DistributedAmount: amountString(q.DistributedAmount),
		WithdrawnAmount:   amountString(q.WithdrawnAmount),
		CommittedFunds:    amountString(q.CommittedFunds()),
	}
}

type QuestPeriodResponse struct {
	QuestId                 uint64 `json:"questId"`
	PeriodId                uint64 `json:"periodId"`
	State                   string `json:"state"`
	ObjectiveVotes          string `json:"objectiveVotes"`
	RewardPerVote           string `json:"rewardPerVote"`
	RewardAmountPerPeriod   string `json:"rewardAmountPerPeriod"`
	RewardAmountDistributed string `json:"rewardAmountDistributed"`
	WithdrawableAmount      string `json:"withdrawableAmount"`
	CompletionRate          string `json:"completionRate"`
}

func questPeriodToResponse(qp *questBoardTypes.QuestPeriod) *QuestPeriodResponse {
	return &QuestPeriodResponse{
		QuestId:                 qp.QuestId,
		PeriodId:                qp.PeriodId,
		State:                   qp.State.String(),
		ObjectiveVotes:          amountString(qp.ObjectiveVotes),
		RewardPerVote:           amountString(qp.RewardPerVote),
		RewardAmountPerPeriod:   amountString(qp.RewardAmountPerPeriod),
		RewardAmountDistributed: amountString(qp.RewardAmountDistributed),
		WithdrawableAmount:      amountString(qp.WithdrawableAmount),
		CompletionRate:          numbers.Ratio(qp.RewardAmountDistributed, qp.RewardAmountPerPeriod, 4),
	}
}

type AddressesResponse struct {
	Addresses []string `json:"addresses"`
}

type AmountResponse struct {
	Amount string `json:"amount"`
}

type CreateQuestRequest struct {
	Gauge             string   `json:"gauge"`
	RewardToken       string   `json:"rewardToken"`
	Duration          uint64   `json:"duration"`
	ObjectiveVotes    string   `json:"objectiveVotes"`
	RewardPerVote     string   `json:"rewardPerVote"`
	TotalRewardAmount string   `json:"totalRewardAmount"`
	FeeAmount         string   `json:"feeAmount"`
	Blacklist         []string `json:"blacklist,omitempty"`
}

type CreateQuestResponse struct {
	QuestId uint64 `json:"questId"`
}

type IncreaseDurationRequest struct {
	AddedDuration uint64 `json:"addedDuration"`
	AddedReward   string `json:"addedReward"`
	AddedFee      string `json:"addedFee"`
}

type IncreaseRewardRequest struct {
	NewRewardPerVote string `json:"newRewardPerVote"`
	AddedReward      string `json:"addedReward"`
	AddedFee         string `json:"addedFee"`
}

type IncreaseObjectiveRequest struct {
	NewObjective string `json:"newObjective"`
	AddedReward  string `json:"addedReward"`
	AddedFee     string `json:"addedFee"`
}

type VotersRequest struct {
	Voters []string `json:"voters"`
}

type RecipientRequest struct {
	Recipient string `json:"recipient"`
}

type QuestIdsRequest struct {
	QuestIds []uint64 `json:"questIds"`
}

type MerkleRootRequest struct {
	QuestId     uint64 `json:"questId"`
	TotalAmount string `json:"totalAmount"`
	Root        string `json:"root"`
}

type MerkleRootsRequest struct {
	Roots []*MerkleRootRequest `json:"roots"`
}

type FixBiasRequest struct {
	CorrectedBias string `json:"correctedBias"`
}

type ClosedQuestsResponse struct {
	// ClosedQuests maps each period id to the quests closed in it
	ClosedQuests map[uint64][]uint64 `json:"closedQuests"`
}

type AddressRequest struct {
	Address string `json:"address"`
}

type WhitelistTokensRequest struct {
	Tokens []*TokenResponse `json:"tokens"`
}

type MinRewardRequest struct {
	MinRewardPerVote string `json:"minRewardPerVote"`
}

type PlatformFeeRequest struct {
	PlatformFee uint64 `json:"platformFee"`
}

type MinObjectiveRequest struct {
	MinObjective string `json:"minObjective"`
}

type DistributorPeriodResponse struct {
	QuestId       uint64 `json:"questId"`
	PeriodId      uint64 `json:"periodId"`
	Funded        string `json:"funded"`
	TotalAmount   string `json:"totalAmount"`
	ClaimedAmount string `json:"claimedAmount"`
	Root          string `json:"root"`
}

type ClaimRequest struct {
	QuestId  uint64 `json:"questId"`
	PeriodId uint64 `json:"periodId"`
	Index    uint64 `json:"index"`
	Account  string `json:"account"`
	Amount   string `json:"amount"`
	// ProofIndex is the leaf position in the tree
	ProofIndex  uint64   `json:"proofIndex"`
	ProofHashes []string `json:"proofHashes"`
}

type ClaimedResponse struct {
	Claimed bool `json:"claimed"`
}
