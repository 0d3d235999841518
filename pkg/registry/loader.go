package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pelletier/go-toml/v2"

	"cellroute/pkg/types"
)

const (
	DefaultMaxBlockRange   = 2048
	DefaultBatchSize       = 8
	DefaultParallelBatches = 4
	DefaultBlockTime       = 2 * time.Second
)

// File is the on-disk layout of a registry, in TOML or JSON.
type File struct {
	Chains []ChainFile `toml:"chains" json:"chains"`
	Tokens []TokenFile `toml:"tokens" json:"tokens"`
}

type ChainFile struct {
	ID             uint64        `toml:"id" json:"id"`
	Name           string        `toml:"name" json:"name"`
	BlockchainID   string        `toml:"blockchain_id" json:"blockchain_id"`
	RPCURL         string        `toml:"rpc_url" json:"rpc_url"`
	Messenger      string        `toml:"messenger" json:"messenger"`
	NativeTokenID  string        `toml:"native_token_id" json:"native_token_id"`
	AvgBlockTimeMs int64         `toml:"avg_block_time_ms" json:"avg_block_time_ms"`
	GasPrice       GasPriceFile  `toml:"gas_price" json:"gas_price"`
	Query          QueryFile     `toml:"query" json:"query"`
	Cells          []CellFile    `toml:"cells" json:"cells"`
	Adapters       []AdapterFile `toml:"adapters" json:"adapters"`
}

type GasPriceFile struct {
	Base     uint64 `toml:"base" json:"base"`
	Priority uint64 `toml:"priority" json:"priority"`
}

type QueryFile struct {
	MaxBlockRange   uint64 `toml:"max_block_range" json:"max_block_range"`
	BatchSize       int    `toml:"batch_size" json:"batch_size"`
	ParallelBatches int    `toml:"parallel_batches" json:"parallel_batches"`
}

type CellFile struct {
	Address    string   `toml:"address" json:"address"`
	Kind       string   `toml:"kind" json:"kind"`
	CanSwap    bool     `toml:"can_swap" json:"can_swap"`
	RouteTypes []string `toml:"route_types" json:"route_types"`
}

type AdapterFile struct {
	Address string `toml:"address" json:"address"`
	Name    string `toml:"name" json:"name"`
	Kind    string `toml:"kind" json:"kind"`
}

type TokenFile struct {
	ID              string       `toml:"id" json:"id"`
	ChainID         uint64       `toml:"chain_id" json:"chain_id"`
	Symbol          string       `toml:"symbol" json:"symbol"`
	Address         string       `toml:"address" json:"address"`
	Decimals        int32        `toml:"decimals" json:"decimals"`
	IsNative        bool         `toml:"is_native" json:"is_native"`
	IsWrappedNative bool         `toml:"is_wrapped_native" json:"is_wrapped_native"`
	Bridges         []BridgeFile `toml:"bridges" json:"bridges"`
}

type BridgeFile struct {
	Name              string `toml:"name" json:"name"`
	DstChainID        uint64 `toml:"dst_chain_id" json:"dst_chain_id"`
	DstTokenID        string `toml:"dst_token_id" json:"dst_token_id"`
	SrcBridge         string `toml:"src_bridge" json:"src_bridge"`
	DstBridge         string `toml:"dst_bridge" json:"dst_bridge"`
	SrcBridgeIsNative bool   `toml:"src_bridge_is_native" json:"src_bridge_is_native"`
}

// LoadFile reads a registry file and returns the indexed registry. Files
// ending in .json are parsed as JSON, everything else as TOML.
func LoadFile(filePath string) (*Static, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var file File
	if strings.HasSuffix(filePath, ".json") {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse JSON registry: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse TOML registry: %w", err)
		}
	}

	return file.Build()
}

// Build converts the file layout into registry types.
func (f *File) Build() (*Static, error) {
	chains := make([]types.Chain, len(f.Chains))
	for i, cf := range f.Chains {
		chain, err := cf.convert()
		if err != nil {
			return nil, fmt.Errorf("chain %d: %w", cf.ID, err)
		}
		chains[i] = chain
	}

	tokens := make([]types.Token, len(f.Tokens))
	for i, tf := range f.Tokens {
		token, err := tf.convert()
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", tf.ID, err)
		}
		tokens[i] = token
	}

	return NewStatic(chains, tokens)
}

func (cf ChainFile) convert() (types.Chain, error) {
	blockchainID, err := parseHash(cf.BlockchainID)
	if err != nil {
		return types.Chain{}, fmt.Errorf("blockchain_id: %w", err)
	}
	messenger, err := parseAddress(cf.Messenger, true)
	if err != nil {
		return types.Chain{}, fmt.Errorf("messenger: %w", err)
	}

	chain := types.Chain{
		ID:            cf.ID,
		Name:          cf.Name,
		BlockchainID:  blockchainID,
		RPCURL:        cf.RPCURL,
		Messenger:     messenger,
		NativeTokenID: cf.NativeTokenID,
		AvgBlockTime:  time.Duration(cf.AvgBlockTimeMs) * time.Millisecond,
		GasPrice:      types.GasPrice{Base: cf.GasPrice.Base, Priority: cf.GasPrice.Priority},
		Query: types.QueryConfig{
			MaxBlockRange:   cf.Query.MaxBlockRange,
			BatchSize:       cf.Query.BatchSize,
			ParallelBatches: cf.Query.ParallelBatches,
		},
		Adapters: make(map[common.Address]types.Adapter, len(cf.Adapters)),
	}

	for _, c := range cf.Cells {
		addr, err := parseAddress(c.Address, false)
		if err != nil {
			return types.Chain{}, fmt.Errorf("cell: %w", err)
		}
		cell := types.Cell{
			Address: addr,
			Kind:    types.CellKind(c.Kind),
			CanSwap: c.CanSwap,
		}
		for _, rt := range c.RouteTypes {
			cell.RouteTypes = append(cell.RouteTypes, types.HopAction(rt))
		}
		chain.Cells = append(chain.Cells, cell)
	}

	for _, a := range cf.Adapters {
		addr, err := parseAddress(a.Address, false)
		if err != nil {
			return types.Chain{}, fmt.Errorf("adapter: %w", err)
		}
		chain.Adapters[addr] = types.Adapter{Address: addr, Name: a.Name, Kind: types.AdapterKind(a.Kind)}
	}

	return chain, nil
}

func (tf TokenFile) convert() (types.Token, error) {
	// Native tokens have no contract; their address stays zero.
	addr, err := parseAddress(tf.Address, tf.IsNative)
	if err != nil {
		return types.Token{}, err
	}

	token := types.Token{
		ID:              tf.ID,
		ChainID:         tf.ChainID,
		Symbol:          tf.Symbol,
		Address:         addr,
		Decimals:        tf.Decimals,
		IsNative:        tf.IsNative,
		IsWrappedNative: tf.IsWrappedNative,
	}

	for _, b := range tf.Bridges {
		srcBridge, err := parseAddress(b.SrcBridge, false)
		if err != nil {
			return types.Token{}, fmt.Errorf("bridge %s: %w", b.Name, err)
		}
		dstBridge, err := parseAddress(b.DstBridge, false)
		if err != nil {
			return types.Token{}, fmt.Errorf("bridge %s: %w", b.Name, err)
		}
		token.Bridges = append(token.Bridges, types.TokenBridge{
			Name:              b.Name,
			DstChainID:        b.DstChainID,
			DstTokenID:        b.DstTokenID,
			SrcBridge:         srcBridge,
			DstBridge:         dstBridge,
			SrcBridgeIsNative: b.SrcBridgeIsNative,
		})
	}

	return token, nil
}

func parseAddress(s string, optional bool) (common.Address, error) {
	if s == "" && optional {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid 32-byte id %q", s)
	}
	return common.HexToHash(s), nil
}
