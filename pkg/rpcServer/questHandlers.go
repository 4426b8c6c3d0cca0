package rpcServer

import (
	"math/big"
	"net/http"

	"github.com/Layr-Labs/questboard/pkg/questBoard"
	"github.com/ethereum/go-ethereum/common"
)

func (rpc *RpcServer) CreateQuest(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	params, err := req.toParams()
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	questId, err := rpc.board.CreateQuest(r.Context(), callerFrom(r), params)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &CreateQuestResponse{QuestId: questId})
}

func (req *CreateQuestRequest) toParams() (*questBoard.CreateQuestParams, error) {
	gauge, err := parseAddress("gauge", req.Gauge)
	if err != nil {
		return nil, err
	}
	token, err := parseAddress("rewardToken", req.RewardToken)
	if err != nil {
		return nil, err
	}
	params := &questBoard.CreateQuestParams{
		Gauge:       gauge,
		RewardToken: token,
		Duration:    req.Duration,
	}
	if params.ObjectiveVotes, err = parseAmount("objectiveVotes", req.ObjectiveVotes); err != nil {
		return nil, err
	}
	if params.RewardPerVote, err = parseAmount("rewardPerVote", req.RewardPerVote); err != nil {
		return nil, err
	}
	if params.TotalRewardAmount, err = parseAmount("totalRewardAmount", req.TotalRewardAmount); err != nil {
		return nil, err
	}
	if params.FeeAmount, err = parseAmount("feeAmount", req.FeeAmount); err != nil {
		return nil, err
	}
	if params.Blacklist, err = parseAddresses("blacklist", req.Blacklist); err != nil {
		return nil, err
	}
	return params, nil
}

// parseTopUp parses the amounts shared by every top-up request.
func parseTopUp(addedReward string, addedFee string) (*big.Int, *big.Int, error) {
	reward, err := parseAmount("addedReward", addedReward)
	if err != nil {
		return nil, nil, err
	}
	fee, err := parseAmount("addedFee", addedFee)
	if err != nil {
		return nil, nil, err
	}
	return reward, fee, nil
}

func (rpc *RpcServer) IncreaseQuestDuration(w http.ResponseWriter, r *http.Request) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var req IncreaseDurationRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	reward, fee, err := parseTopUp(req.AddedReward, req.AddedFee)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.IncreaseQuestDuration(r.Context(), callerFrom(r), questId, req.AddedDuration, reward, fee); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) IncreaseQuestReward(w http.ResponseWriter, r *http.Request) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var req IncreaseRewardRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	newRewardPerVote, err := parseAmount("newRewardPerVote", req.NewRewardPerVote)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	reward, fee, err := parseTopUp(req.AddedReward, req.AddedFee)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.IncreaseQuestReward(r.Context(), callerFrom(r), questId, newRewardPerVote, reward, fee); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) IncreaseQuestObjective(w http.ResponseWriter, r *http.Request) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var req IncreaseObjectiveRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	newObjective, err := parseAmount("newObjective", req.NewObjective)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	reward, fee, err := parseTopUp(req.AddedReward, req.AddedFee)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.IncreaseQuestObjective(r.Context(), callerFrom(r), questId, newObjective, reward, fee); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) AddToBlacklist(w http.ResponseWriter, r *http.Request) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var req VotersRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	voters, err := parseAddresses("voters", req.Voters)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.AddMultipleToBlacklist(r.Context(), callerFrom(r), questId, voters); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) RemoveFromBlacklist(w http.ResponseWriter, r *http.Request) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	voter, err := addressParam(r, "voter")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.RemoveFromBlacklist(r.Context(), callerFrom(r), questId, voter); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type withdrawFunc func(r *http.Request, caller common.Address, questId uint64, recipient common.Address) (*big.Int, error)

func (rpc *RpcServer) withdraw(w http.ResponseWriter, r *http.Request, fn withdrawFunc) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var req RecipientRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	amount, err := fn(r, callerFrom(r), questId, recipient)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &AmountResponse{Amount: amountString(amount)})
}

func (rpc *RpcServer) WithdrawUnusedRewards(w http.ResponseWriter, r *http.Request) {
	rpc.withdraw(w, r, func(r *http.Request, caller common.Address, questId uint64, recipient common.Address) (*big.Int, error) {
		return rpc.board.WithdrawUnusedRewards(r.Context(), caller, questId, recipient)
	})
}

func (rpc *RpcServer) EmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	rpc.withdraw(w, r, func(r *http.Request, caller common.Address, questId uint64, recipient common.Address) (*big.Int, error) {
		return rpc.board.EmergencyWithdraw(r.Context(), caller, questId, recipient)
	})
}
