package rpcServer

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// addressAction handles the admin endpoints that take a single address in the body.
func (rpc *RpcServer) addressAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, caller common.Address, address common.Address) error) {
	var req AddressRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	address, err := parseAddress("address", req.Address)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := fn(r.Context(), callerFrom(r), address); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// callerAction handles the admin endpoints that take no input beyond the caller.
func (rpc *RpcServer) callerAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, caller common.Address) error) {
	if err := fn(r.Context(), callerFrom(r)); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) ApproveManager(w http.ResponseWriter, r *http.Request) {
	rpc.addressAction(w, r, rpc.board.ApproveManager)
}

func (rpc *RpcServer) RemoveManager(w http.ResponseWriter, r *http.Request) {
	manager, err := addressParam(r, "manager")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.RemoveManager(r.Context(), callerFrom(r), manager); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	rpc.addressAction(w, r, rpc.board.TransferOwnership)
}

func (rpc *RpcServer) WhitelistTokens(w http.ResponseWriter, r *http.Request) {
	var req WhitelistTokensRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	tokens := make([]common.Address, 0, len(req.Tokens))
	minimums := make([]*big.Int, 0, len(req.Tokens))
	for _, t := range req.Tokens {
		token, err := parseAddress("token", t.Token)
		if err != nil {
			rpc.writeError(w, r, err)
			return
		}
		minimum, err := parseAmount("minRewardPerVote", t.MinRewardPerVote)
		if err != nil {
			rpc.writeError(w, r, err)
			return
		}
		tokens = append(tokens, token)
		minimums = append(minimums, minimum)
	}
	if err := rpc.board.WhitelistMultipleTokens(r.Context(), callerFrom(r), tokens, minimums); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) UpdateRewardToken(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "token")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var req MinRewardRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	minimum, err := parseAmount("minRewardPerVote", req.MinRewardPerVote)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.UpdateRewardToken(r.Context(), callerFrom(r), token, minimum); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) RemoveWhitelistedToken(w http.ResponseWriter, r *http.Request) {
	token, err := addressParam(r, "token")
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.RemoveWhitelistedToken(r.Context(), callerFrom(r), token); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) SetPlatformFee(w http.ResponseWriter, r *http.Request) {
	var req PlatformFeeRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.SetPlatformFee(r.Context(), callerFrom(r), req.PlatformFee); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) SetMinObjective(w http.ResponseWriter, r *http.Request) {
	var req MinObjectiveRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	minimum, err := parseAmount("minObjective", req.MinObjective)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if err := rpc.board.SetMinObjective(r.Context(), callerFrom(r), minimum); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rpc *RpcServer) UpdateChest(w http.ResponseWriter, r *http.Request) {
	rpc.addressAction(w, r, rpc.board.UpdateChest)
}

func (rpc *RpcServer) InitiateDistributor(w http.ResponseWriter, r *http.Request) {
	rpc.addressAction(w, r, rpc.board.InitiateDistributor)
}

func (rpc *RpcServer) UpdateDistributor(w http.ResponseWriter, r *http.Request) {
	rpc.addressAction(w, r, rpc.board.UpdateDistributor)
}

func (rpc *RpcServer) RecoverERC20(w http.ResponseWriter, r *http.Request) {
	var req AddressRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	token, err := parseAddress("address", req.Address)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	amount, err := rpc.board.RecoverERC20(r.Context(), callerFrom(r), token)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &AmountResponse{Amount: amountString(amount)})
}

func (rpc *RpcServer) KillBoard(w http.ResponseWriter, r *http.Request) {
	rpc.callerAction(w, r, rpc.board.KillBoard)
}

func (rpc *RpcServer) UnkillBoard(w http.ResponseWriter, r *http.Request) {
	rpc.callerAction(w, r, rpc.board.UnkillBoard)
}
