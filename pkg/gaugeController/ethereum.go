package gaugeController

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const gaugeControllerAbi = `[
	{"name":"points_weight","type":"function","stateMutability":"view",
	 "inputs":[{"name":"gauge","type":"address"},{"name":"time","type":"uint256"}],
	 "outputs":[{"name":"bias","type":"uint256"},{"name":"slope","type":"uint256"}]},
	{"name":"vote_user_slopes","type":"function","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"},{"name":"gauge","type":"address"}],
	 "outputs":[{"name":"slope","type":"uint256"},{"name":"power","type":"uint256"},{"name":"end","type":"uint256"}]},
	{"name":"last_user_vote","type":"function","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"},{"name":"gauge","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"name":"gauge_types","type":"function","stateMutability":"view",
	 "inputs":[{"name":"gauge","type":"address"}],
	 "outputs":[{"name":"","type":"int128"}]}
]`

var errExecutionReverted = errors.New("execution reverted")

type EthereumGaugeControllerConfig struct {
	RpcUrl  string
	Address common.Address
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type callArgs struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// EthereumGaugeController reads a deployed gauge controller through eth_call.
type EthereumGaugeController struct {
	config     *EthereumGaugeControllerConfig
	httpClient *http.Client
	abi        abi.ABI
	logger     *zap.Logger
	requestId  atomic.Uint64
}

func DefaultHttpClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}

func NewEthereumGaugeController(cfg *EthereumGaugeControllerConfig, httpClient *http.Client, l *zap.Logger) (*EthereumGaugeController, error) {
	parsed, err := abi.JSON(strings.NewReader(gaugeControllerAbi))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse gauge controller abi")
	}
	return &EthereumGaugeController{
		config:     cfg,
		httpClient: httpClient,
		abi:        parsed,
		logger:     l,
	}, nil
}

func (egc *EthereumGaugeController) PointsWeight(ctx context.Context, gauge common.Address, ts uint64) (*Point, error) {
	res, err := egc.call(ctx, "points_weight", gauge, new(big.Int).SetUint64(ts))
	if err != nil {
		return nil, err
	}
	return &Point{
		Bias:  res[0].(*big.Int),
		Slope: res[1].(*big.Int),
	}, nil
}

func (egc *EthereumGaugeController) VoteUserSlopes(ctx context.Context, voter common.Address, gauge common.Address) (*VotedSlope, error) {
	res, err := egc.call(ctx, "vote_user_slopes", voter, gauge)
	if err != nil {
		return nil, err
	}
	return &VotedSlope{
		Slope: res[0].(*big.Int),
		Power: res[1].(*big.Int),
		End:   res[2].(*big.Int),
	}, nil
}

func (egc *EthereumGaugeController) LastUserVote(ctx context.Context, voter common.Address, gauge common.Address) (uint64, error) {
	res, err := egc.call(ctx, "last_user_vote", voter, gauge)
	if err != nil {
		return 0, err
	}
	ts := res[0].(*big.Int)
	if !ts.IsUint64() {
		return 0, fmt.Errorf("last vote timestamp out of range: %s", ts.String())
	}
	return ts.Uint64(), nil
}

func (egc *EthereumGaugeController) GaugeTypes(ctx context.Context, gauge common.Address) (int64, error) {
	res, err := egc.call(ctx, "gauge_types", gauge)
	if err != nil {
		if errors.Is(err, errExecutionReverted) {
			return 0, ErrInvalidGauge
		}
		return 0, err
	}
	return res[0].(*big.Int).Int64(), nil
}

func (egc *EthereumGaugeController) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := egc.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", method)
	}

	req := &rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_call",
		Params: []interface{}{
			callArgs{To: egc.config.Address.Hex(), Data: hexutil.Encode(input)},
			"latest",
		},
		ID: egc.requestId.Add(1),
	}

	res, err := egc.doRequest(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "eth_call %s failed", method)
	}

	var encoded string
	if err := json.Unmarshal(res.Result, &encoded); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s result", method)
	}
	output, err := hexutil.Decode(encoded)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s result", method)
	}
	// calls to an address without code succeed with empty output
	if len(output) == 0 {
		return nil, errors.Wrapf(errExecutionReverted, "%s returned no data", method)
	}

	values, err := egc.abi.Unpack(method, output)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s", method)
	}
	return values, nil
}

func (egc *EthereumGaugeController) doRequest(ctx context.Context, rpcReq *rpcRequest) (*rpcResponse, error) {
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, egc.config.RpcUrl, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	egc.logger.Sugar().Debugw("Making gauge controller request",
		zap.String("method", rpcReq.Method),
		zap.Uint64("id", rpcReq.ID),
	)

	resp, err := egc.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to make request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	rpcRes := &rpcResponse{}
	if err := json.Unmarshal(respBody, rpcRes); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}
	if rpcRes.Error != nil {
		if strings.Contains(rpcRes.Error.Message, "execution reverted") {
			return nil, errors.Wrap(errExecutionReverted, rpcRes.Error.Message)
		}
		return nil, fmt.Errorf("rpc error %d: %s", rpcRes.Error.Code, rpcRes.Error.Message)
	}
	return rpcRes, nil
}
