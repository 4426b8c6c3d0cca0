package rpcServer

import (
	"errors"
	"net/http"

	"github.com/Layr-Labs/questboard/pkg/questBoard"
	"github.com/Layr-Labs/questboard/pkg/settlementQueue"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func (rpc *RpcServer) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	periodId, err := uint64Param(r, "periodId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	closed, err := rpc.board.ClosePeriod(r.Context(), callerFrom(r), periodId)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &ClosedQuestsResponse{ClosedQuests: map[uint64][]uint64{periodId: closed}})
}

func (rpc *RpcServer) ClosePartOfPeriod(w http.ResponseWriter, r *http.Request) {
	periodId, err := uint64Param(r, "periodId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var req QuestIdsRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.ClosePartOfPeriod(r.Context(), callerFrom(r), periodId, req.QuestIds); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &ClosedQuestsResponse{ClosedQuests: map[uint64][]uint64{periodId: req.QuestIds}})
}

// ClosePendingPeriods queues the settlement of every ended period and waits for it.
// Settlement runs as the queue's operator, so the caller must be allowed to close periods
// themselves.
func (rpc *RpcServer) ClosePendingPeriods(w http.ResponseWriter, r *http.Request) {
	if rpc.settlementQueue == nil {
		rpc.writeError(w, r, settlementQueue.ErrQueueClosed)
		return
	}
	caller := callerFrom(r)
	if caller != rpc.board.GetSettings().Owner && !rpc.board.IsManager(caller) {
		rpc.writeError(w, r, questBoard.ErrCallerNotAllowed)
		return
	}

	res, err := rpc.settlementQueue.EnqueueAndWait(r.Context(), settlementQueue.SettlementData{
		SettlementType: settlementQueue.SettlementType_ClosePendingPeriods,
	})
	if res == nil {
		rpc.writeError(w, r, err)
		return
	}
	if err != nil {
		// partial settlement, report what was closed alongside the failure
		rpc.Logger.Sugar().Warnw("Some pending periods failed to close", zap.Error(err))
		writeJSON(w, statusForError(err), &struct {
			ClosedQuestsResponse
			ErrorResponse
		}{
			ClosedQuestsResponse{ClosedQuests: res.ClosedQuests},
			ErrorResponse{Error: err.Error(), Kind: string(questBoard.KindOf(err))},
		})
		return
	}
	writeJSON(w, http.StatusOK, &ClosedQuestsResponse{ClosedQuests: res.ClosedQuests})
}

func (rpc *RpcServer) AddMerkleRoots(w http.ResponseWriter, r *http.Request) {
	periodId, err := uint64Param(r, "periodId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var req MerkleRootsRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	entries := make([]*questBoard.MerkleRootEntry, 0, len(req.Roots))
	for _, root := range req.Roots {
		total, err := parseAmount("totalAmount", root.TotalAmount)
		if err != nil {
			rpc.writeError(w, r, err)
			return
		}
		hash, err := parseHash("root", root.Root)
		if err != nil {
			rpc.writeError(w, r, err)
			return
		}
		entries = append(entries, &questBoard.MerkleRootEntry{QuestId: root.QuestId, TotalAmount: total, Root: hash})
	}
	if err := rpc.board.AddMultipleMerkleRoot(r.Context(), callerFrom(r), periodId, entries); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) FixPeriodBias(w http.ResponseWriter, r *http.Request) {
	periodId, err := uint64Param(r, "periodId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	questId, err := uint64Param(r, "questId")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var req FixBiasRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	bias, err := parseAmount("correctedBias", req.CorrectedBias)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.FixPeriodBias(r.Context(), callerFrom(r), periodId, questId, bias); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseHash(field string, s string) (common.Hash, error) {
	b, err := hexBytes(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, errors.Join(errBadRequest, errors.New(field+": expected a 32 byte hex string"))
	}
	return common.BytesToHash(b), nil
}
