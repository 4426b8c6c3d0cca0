package rpcServer

import (
	"bytes"
	"net/http"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

func (rpc *RpcServer) GetBoard(w http.ResponseWriter, r *http.Request) {
	settings := rpc.board.GetSettings()
	writeJSON(w, http.StatusOK, &BoardResponse{
		Address:       rpc.board.Address().Hex(),
		Owner:         settings.Owner.Hex(),
		Chest:         settings.Chest.Hex(),
		Distributor:   settings.Distributor.Hex(),
		PlatformFee:   settings.PlatformFee,
		MinObjective:  amountString(settings.MinObjective),
		QuestCount:    rpc.board.GetQuestCount(),
		CurrentPeriod: rpc.board.GetCurrentPeriod(),
		KillState:     string(rpc.board.GetKillState()),
		KillTs:        settings.KillTs,
	})
}

func (rpc *RpcServer) ListWhitelistedTokens(w http.ResponseWriter, r *http.Request) {
	tokens := rpc.board.GetWhitelistedTokens()
	resp := make([]*TokenResponse, 0, len(tokens))
	for token, minimum := range tokens {
		resp = append(resp, &TokenResponse{Token: token.Hex(), MinRewardPerVote: amountString(minimum)})
	}
	slices.SortFunc(resp, func(a, b *TokenResponse) int {
		return bytes.Compare(common.HexToAddress(a.Token).Bytes(), common.HexToAddress(b.Token).Bytes())
	})
	writeJSON(w, http.StatusOK, resp)
}

func (rpc *RpcServer) ListManagers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &AddressesResponse{Addresses: addressStrings(rpc.board.GetManagers())})
}

func (rpc *RpcServer) GetCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &PeriodsResponse{PeriodIds: []uint64{rpc.board.GetCurrentPeriod()}})
}

func (rpc *RpcServer) ListPendingPeriods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &PeriodsResponse{PeriodIds: rpc.board.GetPendingPeriods()})
}

func (rpc *RpcServer) ListQuestsForPeriod(w http.ResponseWriter, r *http.Request) {
	periodId, err := uint64Param(r, "periodId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &QuestIdsResponse{QuestIds: rpc.board.GetQuestIdsForPeriod(periodId)})
}

func (rpc *RpcServer) GetQuest(w http.ResponseWriter, r *http.Request) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	q, err := rpc.board.GetQuest(questId)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questToResponse(q))
}

func (rpc *RpcServer) ListQuestPeriods(w http.ResponseWriter, r *http.Request) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	periods, err := rpc.board.GetAllQuestPeriodsForQuestId(questId)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	resp := make([]*QuestPeriodResponse, 0, len(periods))
	for _, qp := range periods {
		resp = append(resp, questPeriodToResponse(qp))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rpc *RpcServer) GetQuestPeriod(w http.ResponseWriter, r *http.Request) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	periodId, err := uint64Param(r, "periodId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	qp, err := rpc.board.GetQuestPeriod(questId, periodId)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questPeriodToResponse(qp))
}

func (rpc *RpcServer) GetQuestBlacklist(w http.ResponseWriter, r *http.Request) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	voters, err := rpc.board.GetQuestBlacklist(questId)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &AddressesResponse{Addresses: addressStrings(voters)})
}

func (rpc *RpcServer) GetCurrentReducedBias(w http.ResponseWriter, r *http.Request) {
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	bias, err := rpc.board.GetCurrentReducedBias(r.Context(), questId)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &AmountResponse{Amount: amountString(bias)})
}

func (rpc *RpcServer) GetBalance(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "token")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	account, err := addressParam(r, "account")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &AmountResponse{Amount: amountString(rpc.ledger.BalanceOf(token, account))})
}
