package distributor

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ClaimTree is the Merkle tree of a quest period's claims.
type ClaimTree struct {
	Tree   *merkletree.MerkleTree
	Root   common.Hash
	Total  *big.Int
	claims *orderedmap.OrderedMap[uint64, *Claim]
}

// EncodeClaimLeaf packs a claim as index (32 bytes) || account (20 bytes) || amount (32 bytes).
func EncodeClaimLeaf(index uint64, account common.Address, amount *big.Int) []byte {
	leaf := make([]byte, 0, 84)
	leaf = append(leaf, math.U256Bytes(new(big.Int).SetUint64(index))...)
	leaf = append(leaf, account.Bytes()...)
	return append(leaf, math.U256Bytes(new(big.Int).Set(amount))...)
}

// BuildClaimTree builds the tree for the claims. Indexes must be unique and ascending.
func BuildClaimTree(claims []*Claim) (*ClaimTree, error) {
	if len(claims) == 0 {
		return nil, errors.New("no claims to merkleize")
	}
	om := orderedmap.New[uint64, *Claim]()
	total := new(big.Int)

	for _, c := range claims {
		if c.Amount == nil || c.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("claim %d has no amount", c.Index)
		}
		if _, found := om.Get(c.Index); found {
			return nil, fmt.Errorf("duplicate claim index %d", c.Index)
		}
		om.Set(c.Index, c)

		prev := om.GetPair(c.Index).Prev()
		if prev != nil && prev.Key > c.Index {
			return nil, errors.New("claim indexes are not in order")
		}
		total.Add(total, c.Amount)
	}

	leaves := make([][]byte, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		leaves = append(leaves, EncodeClaimLeaf(pair.Value.Index, pair.Value.Account, pair.Value.Amount))
	}

	tree, err := merkletree.NewTree(
		merkletree.WithData(leaves),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build claim tree: %w", err)
	}
	return &ClaimTree{
		Tree:   tree,
		Root:   common.BytesToHash(tree.Root()),
		Total:  total,
		claims: om,
	}, nil
}

// Proof returns the claim at index along with its proof.
func (ct *ClaimTree) Proof(index uint64) (*Claim, *merkletree.Proof, error) {
	c, ok := ct.claims.Get(index)
	if !ok {
		return nil, nil, fmt.Errorf("no claim with index %d", index)
	}
	proof, err := ct.Tree.GenerateProof(EncodeClaimLeaf(c.Index, c.Account, c.Amount), 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate proof: %w", err)
	}
	return c, proof, nil
}
