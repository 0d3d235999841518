package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"cellroute/pkg/types"
)

// Registry is the read-only view of chains, tokens and cells the engine
// consumes. Lookups report absence with a bool rather than an error.
type Registry interface {
	GetChain(id uint64) (*types.Chain, bool)
	GetToken(id string, chainID uint64) (*types.Token, bool)
	GetTokenByAddress(addr common.Address, chainID uint64) (*types.Token, bool)
	GetNativeToken(chainID uint64) (*types.Token, bool)
	GetChainByBlockchainID(id common.Hash) (*types.Chain, bool)
	Chains() []*types.Chain
	TokensOnChain(chainID uint64) []*types.Token
}

// Static is an immutable in-memory Registry.
type Static struct {
	chains        map[uint64]*types.Chain
	byBlockchain  map[common.Hash]*types.Chain
	tokens        map[string]*types.Token                    // token id -> token
	byAddress     map[uint64]map[common.Address]*types.Token // chain -> address -> token
	tokensByChain map[uint64][]*types.Token
}

// Compile-time interface check.
var _ Registry = (*Static)(nil)

// NewStatic indexes the given chains and tokens, rejecting inconsistent data.
func NewStatic(chains []types.Chain, tokens []types.Token) (*Static, error) {
	if len(chains) == 0 {
		return nil, fmt.Errorf("no chains in registry")
	}

	s := &Static{
		chains:        make(map[uint64]*types.Chain, len(chains)),
		byBlockchain:  make(map[common.Hash]*types.Chain, len(chains)),
		tokens:        make(map[string]*types.Token, len(tokens)),
		byAddress:     make(map[uint64]map[common.Address]*types.Token),
		tokensByChain: make(map[uint64][]*types.Token),
	}

	for i := range chains {
		chain := chains[i]
		if _, exists := s.chains[chain.ID]; exists {
			return nil, fmt.Errorf("duplicate chain id %d", chain.ID)
		}
		if chain.BlockchainID == (common.Hash{}) {
			return nil, fmt.Errorf("chain %d has no blockchain id", chain.ID)
		}
		if other, exists := s.byBlockchain[chain.BlockchainID]; exists {
			return nil, fmt.Errorf("chains %d and %d share blockchain id %s", other.ID, chain.ID, chain.BlockchainID.Hex())
		}
		applyQueryDefaults(&chain)
		s.chains[chain.ID] = &chain
		s.byBlockchain[chain.BlockchainID] = &chain
		s.byAddress[chain.ID] = make(map[common.Address]*types.Token)
	}

	for i := range tokens {
		token := tokens[i]
		if token.ID == "" {
			return nil, fmt.Errorf("token on chain %d has no id", token.ChainID)
		}
		if _, exists := s.tokens[token.ID]; exists {
			return nil, fmt.Errorf("duplicate token id %s", token.ID)
		}
		if _, exists := s.chains[token.ChainID]; !exists {
			return nil, fmt.Errorf("token %s references unknown chain %d", token.ID, token.ChainID)
		}
		s.tokens[token.ID] = &token
		s.byAddress[token.ChainID][token.Address] = &token
		s.tokensByChain[token.ChainID] = append(s.tokensByChain[token.ChainID], &token)
	}

	// Second pass: bridge targets must resolve
	for _, token := range s.tokens {
		for _, bridge := range token.Bridges {
			dst, ok := s.tokens[bridge.DstTokenID]
			if !ok {
				return nil, fmt.Errorf("token %s bridges to unknown token %s", token.ID, bridge.DstTokenID)
			}
			if dst.ChainID != bridge.DstChainID {
				return nil, fmt.Errorf("token %s bridge target %s is not on chain %d", token.ID, dst.ID, bridge.DstChainID)
			}
		}
	}

	for chainID := range s.tokensByChain {
		list := s.tokensByChain[chainID]
		sort.SliceStable(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}

	return s, nil
}

func applyQueryDefaults(chain *types.Chain) {
	if chain.Query.MaxBlockRange == 0 {
		chain.Query.MaxBlockRange = DefaultMaxBlockRange
	}
	if chain.Query.BatchSize <= 0 {
		chain.Query.BatchSize = DefaultBatchSize
	}
	if chain.Query.ParallelBatches <= 0 {
		chain.Query.ParallelBatches = DefaultParallelBatches
	}
	if chain.AvgBlockTime <= 0 {
		chain.AvgBlockTime = DefaultBlockTime
	}
}

func (s *Static) GetChain(id uint64) (*types.Chain, bool) {
	c, ok := s.chains[id]
	return c, ok
}

// GetToken returns the token with the given id, provided it lives on chainID.
func (s *Static) GetToken(id string, chainID uint64) (*types.Token, bool) {
	t, ok := s.tokens[id]
	if !ok || t.ChainID != chainID {
		return nil, false
	}
	return t, true
}

func (s *Static) GetTokenByAddress(addr common.Address, chainID uint64) (*types.Token, bool) {
	t, ok := s.byAddress[chainID][addr]
	return t, ok
}

func (s *Static) GetNativeToken(chainID uint64) (*types.Token, bool) {
	chain, ok := s.chains[chainID]
	if !ok || chain.NativeTokenID == "" {
		return nil, false
	}
	return s.GetToken(chain.NativeTokenID, chainID)
}

func (s *Static) GetChainByBlockchainID(id common.Hash) (*types.Chain, bool) {
	c, ok := s.byBlockchain[id]
	return c, ok
}

// Chains returns every chain ordered by id.
func (s *Static) Chains() []*types.Chain {
	out := make([]*types.Chain, 0, len(s.chains))
	for _, c := range s.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TokensOnChain returns the chain's tokens ordered by id.
func (s *Static) TokensOnChain(chainID uint64) []*types.Token {
	return s.tokensByChain[chainID]
}

// FindToken resolves a user supplied token reference on a chain: a token id,
// a symbol (case-insensitive) or a hex address.
func FindToken(r Registry, chainID uint64, ref string) (*types.Token, error) {
	if t, ok := r.GetToken(ref, chainID); ok {
		return t, nil
	}
	if common.IsHexAddress(ref) {
		if t, ok := r.GetTokenByAddress(common.HexToAddress(ref), chainID); ok {
			return t, nil
		}
	}
	for _, t := range r.TokensOnChain(chainID) {
		if strings.EqualFold(t.Symbol, ref) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("token '%s' not found on chain %d", ref, chainID)
}

// FindChain resolves a chain by numeric id or name.
func FindChain(r Registry, ref string) (*types.Chain, error) {
	for _, c := range r.Chains() {
		if strings.EqualFold(c.Name, ref) || fmt.Sprint(c.ID) == ref {
			return c, nil
		}
	}
	return nil, fmt.Errorf("chain '%s' not found", ref)
}
