package rpcServer

import (
	"fmt"
	"net/http"

	"github.com/Layr-Labs/questboard/pkg/distributor"
	"github.com/Layr-Labs/questboard/pkg/questBoard"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/wealdtech/go-merkletree/v2"
)

func hexBytes(s string) ([]byte, error) {
	return hexutil.Decode(s)
}

func (rpc *RpcServer) distributorFor(r *http.Request) (*distributor.MultiMerkleDistributor, error) {
	address, err := addressParam(r, "distributor")
	if err != nil {
		return nil, err
	}
	d, ok := rpc.distributors[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", questBoard.ErrUnknownDistributor, address.Hex())
	}
	return d, nil
}

func (rpc *RpcServer) GetDistributorPeriod(w http.ResponseWriter, r *http.Request) {
	d, err := rpc.distributorFor(r)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
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
	qp, ok := d.GetQuestPeriod(questId, periodId)
	if !ok {
		rpc.writeError(w, r, fmt.Errorf("%w: quest %d period %d", distributor.ErrUnknownPeriod, questId, periodId))
		return
	}
	writeJSON(w, http.StatusOK, &DistributorPeriodResponse{
		QuestId:       qp.QuestId,
		PeriodId:      qp.PeriodId,
		Funded:        amountString(qp.Funded),
		TotalAmount:   amountString(qp.TotalAmount),
		ClaimedAmount: amountString(qp.ClaimedAmount),
		Root:          qp.Root.Hex(),
	})
}

func (rpc *RpcServer) IsClaimed(w http.ResponseWriter, r *http.Request) {
	d, err := rpc.distributorFor(r)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
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
	index, err := uint64Param(r, "index")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &ClaimedResponse{Claimed: d.IsClaimed(questId, periodId, index)})
}

// Claim pays out a distributor leaf. Anyone may submit a claim, the tokens always go to
// the account in the leaf.
func (rpc *RpcServer) Claim(w http.ResponseWriter, r *http.Request) {
	d, err := rpc.distributorFor(r)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var req ClaimRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	proof := &merkletree.Proof{Index: req.ProofIndex, Hashes: make([][]byte, 0, len(req.ProofHashes))}
	for _, h := range req.ProofHashes {
		b, err := hexBytes(h)
		if err != nil {
			rpc.writeError(w, r, fmt.Errorf("%w: proofHashes: %v", errBadRequest, err))
			return
		}
		proof.Hashes = append(proof.Hashes, b)
	}

	if err := d.Claim(r.Context(), req.QuestId, req.PeriodId, req.Index, account, amount, proof); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &AmountResponse{Amount: amountString(amount)})
}
