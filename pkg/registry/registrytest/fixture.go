// Package registrytest provides a small three-chain cell network for tests.
//
//	alpha (1): ALPHA native, WALPHA, USDC, two swap cells
//	beta  (2): BETA native, USDC, one swap cell
//	gamma (3): GAMMA native, USDC, one forwarding cell
//
// USDC bridges alpha <-> beta and beta <-> gamma. There is no direct
// alpha <-> gamma bridge, so those routes go through beta.
package registrytest

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"cellroute/pkg/registry"
	"cellroute/pkg/types"
)

const (
	AlphaID uint64 = 1
	BetaID  uint64 = 2
	GammaID uint64 = 3

	AlphaNative = "1:ALPHA"
	AlphaWNat   = "1:WALPHA"
	AlphaUSDC   = "1:USDC"
	BetaNative  = "2:BETA"
	BetaUSDC    = "2:USDC"
	GammaNative = "3:GAMMA"
	GammaUSDC   = "3:USDC"
)

var (
	AlphaBlockchain = common.HexToHash("0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1")
	BetaBlockchain  = common.HexToHash("0xb2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2b2")
	GammaBlockchain = common.HexToHash("0xc3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3c3")

	AlphaMessenger = common.HexToAddress("0x00000000000000000000000000000000000a0001")
	BetaMessenger  = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	GammaMessenger = common.HexToAddress("0x00000000000000000000000000000000000c0001")

	AlphaYakCell = common.HexToAddress("0x00000000000000000000000000000000000a1001")
	AlphaUniCell = common.HexToAddress("0x00000000000000000000000000000000000a1002")
	BetaYakCell  = common.HexToAddress("0x00000000000000000000000000000000000b1001")
	GammaHopCell = common.HexToAddress("0x00000000000000000000000000000000000c1001")

	AlphaYakAdapter = common.HexToAddress("0x00000000000000000000000000000000000a2001")
	AlphaV2Pool     = common.HexToAddress("0x00000000000000000000000000000000000a2002")
	AlphaV3Pool     = common.HexToAddress("0x00000000000000000000000000000000000a2003")
	BetaYakAdapter  = common.HexToAddress("0x00000000000000000000000000000000000b2001")

	AlphaWNatAddr = common.HexToAddress("0x00000000000000000000000000000000000a3001")
	AlphaUSDCAddr = common.HexToAddress("0x00000000000000000000000000000000000a3002")
	BetaUSDCAddr  = common.HexToAddress("0x00000000000000000000000000000000000b3002")
	GammaUSDCAddr = common.HexToAddress("0x00000000000000000000000000000000000c3002")

	AlphaUSDCHome   = common.HexToAddress("0x00000000000000000000000000000000000a4001")
	BetaUSDCRemote  = common.HexToAddress("0x00000000000000000000000000000000000b4001")
	BetaUSDCHome    = common.HexToAddress("0x00000000000000000000000000000000000b4002")
	GammaUSDCRemote = common.HexToAddress("0x00000000000000000000000000000000000c4001")
)

// Chains returns the fixture chains.
func Chains() []types.Chain {
	query := types.QueryConfig{MaxBlockRange: 100, BatchSize: 4, ParallelBatches: 2}
	return []types.Chain{
		{
			ID:            AlphaID,
			Name:          "alpha",
			BlockchainID:  AlphaBlockchain,
			Messenger:     AlphaMessenger,
			NativeTokenID: AlphaNative,
			Cells: []types.Cell{
				{Address: AlphaYakCell, Kind: types.CellYakSwap, CanSwap: true},
				{Address: AlphaUniCell, Kind: types.CellUniswapV2, CanSwap: true},
			},
			Adapters: map[common.Address]types.Adapter{
				AlphaYakAdapter: {Address: AlphaYakAdapter, Name: "yak", Kind: types.AdapterYak},
				AlphaV2Pool:     {Address: AlphaV2Pool, Name: "pangolin", Kind: types.AdapterUniswapV2},
				AlphaV3Pool:     {Address: AlphaV3Pool, Name: "uniswap", Kind: types.AdapterUniswapV3},
			},
			AvgBlockTime: 2 * time.Second,
			GasPrice:     types.GasPrice{Base: 25, Priority: 1},
			Query:        query,
		},
		{
			ID:            BetaID,
			Name:          "beta",
			BlockchainID:  BetaBlockchain,
			Messenger:     BetaMessenger,
			NativeTokenID: BetaNative,
			Cells: []types.Cell{
				{Address: BetaYakCell, Kind: types.CellYakSwap, CanSwap: true},
			},
			Adapters: map[common.Address]types.Adapter{
				BetaYakAdapter: {Address: BetaYakAdapter, Name: "yak", Kind: types.AdapterYak},
			},
			AvgBlockTime: time.Second,
			Query:        query,
		},
		{
			ID:            GammaID,
			Name:          "gamma",
			BlockchainID:  GammaBlockchain,
			Messenger:     GammaMessenger,
			NativeTokenID: GammaNative,
			Cells: []types.Cell{
				{Address: GammaHopCell, Kind: types.CellHopOnly},
			},
			AvgBlockTime: 3 * time.Second,
			Query:        query,
		},
	}
}

// Tokens returns the fixture tokens.
func Tokens() []types.Token {
	return []types.Token{
		{ID: AlphaNative, ChainID: AlphaID, Symbol: "ALPHA", Decimals: 18, IsNative: true},
		{ID: AlphaWNat, ChainID: AlphaID, Symbol: "WALPHA", Address: AlphaWNatAddr, Decimals: 18, IsWrappedNative: true},
		{
			ID: AlphaUSDC, ChainID: AlphaID, Symbol: "USDC", Address: AlphaUSDCAddr, Decimals: 6,
			Bridges: []types.TokenBridge{
				{Name: "ictt", DstChainID: BetaID, DstTokenID: BetaUSDC, SrcBridge: AlphaUSDCHome, DstBridge: BetaUSDCRemote},
			},
		},
		{ID: BetaNative, ChainID: BetaID, Symbol: "BETA", Decimals: 18, IsNative: true},
		{
			ID: BetaUSDC, ChainID: BetaID, Symbol: "USDC", Address: BetaUSDCAddr, Decimals: 6,
			Bridges: []types.TokenBridge{
				{Name: "ictt", DstChainID: AlphaID, DstTokenID: AlphaUSDC, SrcBridge: BetaUSDCRemote, DstBridge: AlphaUSDCHome},
				{Name: "ictt", DstChainID: GammaID, DstTokenID: GammaUSDC, SrcBridge: BetaUSDCHome, DstBridge: GammaUSDCRemote},
			},
		},
		{ID: GammaNative, ChainID: GammaID, Symbol: "GAMMA", Decimals: 18, IsNative: true},
		{
			ID: GammaUSDC, ChainID: GammaID, Symbol: "USDC", Address: GammaUSDCAddr, Decimals: 6,
			Bridges: []types.TokenBridge{
				{Name: "ictt", DstChainID: BetaID, DstTokenID: BetaUSDC, SrcBridge: GammaUSDCRemote, DstBridge: BetaUSDCHome},
			},
		},
	}
}

// New builds the fixture registry. It panics on error since the data is
// static.
func New() *registry.Static {
	r, err := registry.NewStatic(Chains(), Tokens())
	if err != nil {
		panic(err)
	}
	return r
}
