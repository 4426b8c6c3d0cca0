// Package genesis loads the YAML document that seeds a simulation deployment: reward
// tokens, starting balances, managers and the gauge registry.
package genesis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/Layr-Labs/questboard/internal/types/numbers"
	"github.com/Layr-Labs/questboard/pkg/gaugeController"
	"github.com/Layr-Labs/questboard/pkg/ledger"
	"github.com/Layr-Labs/questboard/pkg/questBoard"
	"github.com/Layr-Labs/questboard/pkg/utils"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Token struct {
	Address          string `yaml:"address"`
	MinRewardPerVote string `yaml:"minRewardPerVote"`
}

type Balance struct {
	Token   string `yaml:"token"`
	Account string `yaml:"account"`
	Amount  string `yaml:"amount"`
}

// Point is the gauge weight at a period boundary.
type Point struct {
	Timestamp uint64 `yaml:"timestamp"`
	Bias      string `yaml:"bias"`
	Slope     string `yaml:"slope"`
}

type Vote struct {
	Voter    string `yaml:"voter"`
	Slope    string `yaml:"slope"`
	Power    string `yaml:"power"`
	End      uint64 `yaml:"end"`
	LastVote uint64 `yaml:"lastVote"`
}

type Gauge struct {
	Address string  `yaml:"address"`
	Type    int64   `yaml:"type"`
	Points  []Point `yaml:"points"`
	Votes   []Vote  `yaml:"votes"`
}

type Genesis struct {
	Tokens      []Token   `yaml:"tokens"`
	Balances    []Balance `yaml:"balances"`
	Managers    []string  `yaml:"managers"`
	Distributor string    `yaml:"distributor"`
	Gauges      []Gauge   `yaml:"gauges"`
}

// Parse decodes a genesis document. Unknown keys are rejected.
func Parse(r io.Reader) (*Genesis, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	g := &Genesis{}
	if err := dec.Decode(g); err != nil {
		if errors.Is(err, io.EOF) {
			return g, nil
		}
		return nil, fmt.Errorf("failed to decode genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func ParseFile(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read genesis file: %w", err)
	}
	return Parse(bytes.NewReader(raw))
}

// Validate checks every address and amount in the document.
func (g *Genesis) Validate() error {
	for i, t := range g.Tokens {
		if _, err := utils.ParseAddress(t.Address); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
		if _, err := numbers.ParseAmount(t.MinRewardPerVote); err != nil {
			return fmt.Errorf("tokens[%d]: %w", i, err)
		}
	}
	for i, b := range g.Balances {
		if _, err := utils.ParseAddress(b.Token); err != nil {
			return fmt.Errorf("balances[%d].token: %w", i, err)
		}
		if _, err := utils.ParseAddress(b.Account); err != nil {
			return fmt.Errorf("balances[%d].account: %w", i, err)
		}
		if _, err := numbers.ParseAmount(b.Amount); err != nil {
			return fmt.Errorf("balances[%d]: %w", i, err)
		}
	}
	for i, m := range g.Managers {
		if _, err := utils.ParseAddress(m); err != nil {
			return fmt.Errorf("managers[%d]: %w", i, err)
		}
	}
	if g.Distributor != "" {
		if _, err := utils.ParseAddress(g.Distributor); err != nil {
			return fmt.Errorf("distributor: %w", err)
		}
	}
	for i, gauge := range g.Gauges {
		if _, err := utils.ParseAddress(gauge.Address); err != nil {
			return fmt.Errorf("gauges[%d]: %w", i, err)
		}
		for j, p := range gauge.Points {
			if _, err := parseOptional(p.Bias); err != nil {
				return fmt.Errorf("gauges[%d].points[%d].bias: %w", i, j, err)
			}
			if _, err := parseOptional(p.Slope); err != nil {
				return fmt.Errorf("gauges[%d].points[%d].slope: %w", i, j, err)
			}
		}
		for j, v := range gauge.Votes {
			if _, err := utils.ParseAddress(v.Voter); err != nil {
				return fmt.Errorf("gauges[%d].votes[%d]: %w", i, j, err)
			}
			if _, err := parseOptional(v.Slope); err != nil {
				return fmt.Errorf("gauges[%d].votes[%d].slope: %w", i, j, err)
			}
			if _, err := parseOptional(v.Power); err != nil {
				return fmt.Errorf("gauges[%d].votes[%d].power: %w", i, j, err)
			}
		}
	}
	return nil
}

func parseOptional(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	return numbers.ParseAmount(s)
}

// ApplyToLedger raises every listed balance to at least its genesis amount, so applying the
// same document to a persisted ledger twice does not mint twice.
func (g *Genesis) ApplyToLedger(lg *ledger.Ledger, l *zap.Logger) error {
	for _, b := range g.Balances {
		token := common.HexToAddress(b.Token)
		account := common.HexToAddress(b.Account)
		target := numbers.MustParseAmount(b.Amount)

		missing := new(big.Int).Sub(target, lg.BalanceOf(token, account))
		if missing.Sign() <= 0 {
			continue
		}
		if err := lg.Mint(token, account, missing); err != nil {
			return fmt.Errorf("failed to mint genesis balance: %w", err)
		}
		l.Sugar().Debugw("Minted genesis balance",
			zap.String("token", token.Hex()),
			zap.String("account", account.Hex()),
			zap.String("amount", missing.String()),
		)
	}
	return nil
}

// ApplyToGaugeController registers the gauges with their points and votes.
func (g *Genesis) ApplyToGaugeController(gc *gaugeController.MemoryGaugeController) {
	for _, gauge := range g.Gauges {
		address := common.HexToAddress(gauge.Address)
		gc.AddGauge(address, gauge.Type)
		for _, p := range gauge.Points {
			bias, _ := parseOptional(p.Bias)
			slope, _ := parseOptional(p.Slope)
			gc.SetGaugeBias(address, p.Timestamp, bias, slope)
		}
		for _, v := range gauge.Votes {
			slope, _ := parseOptional(v.Slope)
			power, _ := parseOptional(v.Power)
			gc.SetVote(common.HexToAddress(v.Voter), address, slope, power, v.End, v.LastVote)
		}
	}
}

// ApplyToBoard whitelists the tokens, approves the managers and sets the distributor as
// owner. Entries the board already has are skipped.
func (g *Genesis) ApplyToBoard(ctx context.Context, b *questBoard.Board, owner common.Address, l *zap.Logger) error {
	tokens := make([]common.Address, 0)
	minimums := make([]*big.Int, 0)
	for _, t := range g.Tokens {
		token := common.HexToAddress(t.Address)
		if b.IsWhitelisted(token) {
			continue
		}
		tokens = append(tokens, token)
		minimums = append(minimums, numbers.MustParseAmount(t.MinRewardPerVote))
	}
	if len(tokens) > 0 {
		if err := b.WhitelistMultipleTokens(ctx, owner, tokens, minimums); err != nil {
			return fmt.Errorf("failed to whitelist genesis tokens: %w", err)
		}
	}

	for _, m := range g.Managers {
		manager := common.HexToAddress(m)
		if b.IsManager(manager) {
			continue
		}
		if err := b.ApproveManager(ctx, owner, manager); err != nil {
			return fmt.Errorf("failed to approve genesis manager: %w", err)
		}
	}

	if g.Distributor != "" && utils.IsZeroAddress(b.GetSettings().Distributor) {
		if err := b.InitiateDistributor(ctx, owner, common.HexToAddress(g.Distributor)); err != nil {
			return fmt.Errorf("failed to set genesis distributor: %w", err)
		}
	}

	l.Sugar().Infow("Applied genesis to board",
		zap.Int("tokens", len(tokens)),
		zap.Int("managers", len(g.Managers)),
	)
	return nil
}

// DistributorAddress returns the genesis distributor, or the zero address when unset.
func (g *Genesis) DistributorAddress() common.Address {
	if g.Distributor == "" {
		return common.Address{}
	}
	return common.HexToAddress(g.Distributor)
}
