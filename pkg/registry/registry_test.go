package registry_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cellroute/pkg/registry"
	"cellroute/pkg/registry/registrytest"
	"cellroute/pkg/types"
)

func TestLoadFile_TOML(t *testing.T) {
	r, err := registry.LoadFile(filepath.Join("testdata", "registry.toml"))
	require.NoError(t, err)

	avax, ok := r.GetChain(43114)
	require.True(t, ok)
	assert.Equal(t, "avalanche", avax.Name)
	assert.Equal(t, 2*time.Second, avax.AvgBlockTime)
	assert.Equal(t, uint64(2048), avax.Query.MaxBlockRange)
	assert.Equal(t, registry.DefaultBatchSize, avax.Query.BatchSize)
	assert.Equal(t, uint64(25), avax.GasPrice.Base)
	require.Len(t, avax.Cells, 1)
	assert.True(t, avax.Cells[0].CanSwap)
	assert.Len(t, avax.Adapters, 1)

	echo, ok := r.GetChainByBlockchainID(common.HexToHash("0x1278d1be4b987e847be3465940eb5066c4604a7fbd6e086900823597d81af4c1"))
	require.True(t, ok)
	assert.Equal(t, uint64(173750), echo.ID)
	assert.Equal(t, registry.DefaultBlockTime, echo.AvgBlockTime)
	assert.False(t, echo.CanSwap())
	assert.True(t, echo.Cells[0].Supports(types.ActionHopAndCall))
	assert.False(t, echo.Cells[0].Supports(types.ActionSwapAndHop))

	usdc, ok := r.GetTokenByAddress(common.HexToAddress("0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"), 43114)
	require.True(t, ok)
	assert.Equal(t, "43114:USDC", usdc.ID)
	require.Len(t, usdc.BridgeTo(173750), 1)

	native, ok := r.GetNativeToken(173750)
	require.True(t, ok)
	assert.Equal(t, "ECD", native.Symbol)
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	data := `{
		"chains": [{"id": 1, "name": "one", "blockchain_id": "0x0100000000000000000000000000000000000000000000000000000000000000"}],
		"tokens": [{"id": "1:ONE", "chain_id": 1, "symbol": "ONE", "decimals": 18, "is_native": true}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	r, err := registry.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, r.Chains(), 1)
	assert.Len(t, r.TokensOnChain(1), 1)
}

func TestNewStatic_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(chains []types.Chain, tokens []types.Token) ([]types.Chain, []types.Token)
		errMsg string
	}{
		{
			name: "duplicate chain",
			mutate: func(c []types.Chain, tk []types.Token) ([]types.Chain, []types.Token) {
				dup := c[0]
				dup.BlockchainID = common.HexToHash("0xff")
				return append(c, dup), tk
			},
			errMsg: "duplicate chain id",
		},
		{
			name: "missing blockchain id",
			mutate: func(c []types.Chain, tk []types.Token) ([]types.Chain, []types.Token) {
				c[1].BlockchainID = common.Hash{}
				return c, tk
			},
			errMsg: "no blockchain id",
		},
		{
			name: "token on unknown chain",
			mutate: func(c []types.Chain, tk []types.Token) ([]types.Chain, []types.Token) {
				return c, append(tk, types.Token{ID: "9:X", ChainID: 9})
			},
			errMsg: "unknown chain",
		},
		{
			name: "dangling bridge",
			mutate: func(c []types.Chain, tk []types.Token) ([]types.Chain, []types.Token) {
				for i := range tk {
					if tk[i].ID == registrytest.AlphaUSDC {
						tk[i].Bridges[0].DstTokenID = "2:NOPE"
					}
				}
				return c, tk
			},
			errMsg: "unknown token",
		},
		{
			name: "bridge target on wrong chain",
			mutate: func(c []types.Chain, tk []types.Token) ([]types.Chain, []types.Token) {
				for i := range tk {
					if tk[i].ID == registrytest.AlphaUSDC {
						tk[i].Bridges[0].DstTokenID = registrytest.GammaUSDC
					}
				}
				return c, tk
			},
			errMsg: "is not on chain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chains, tokens := tt.mutate(registrytest.Chains(), registrytest.Tokens())
			_, err := registry.NewStatic(chains, tokens)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestStatic_Lookups(t *testing.T) {
	r := registrytest.New()

	_, ok := r.GetToken(registrytest.AlphaUSDC, registrytest.BetaID)
	assert.False(t, ok, "token id must match the chain")

	ids := []uint64{}
	for _, c := range r.Chains() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	tokens := r.TokensOnChain(registrytest.AlphaID)
	require.Len(t, tokens, 3)
	assert.Equal(t, registrytest.AlphaNative, tokens[0].ID)
}

func TestFindToken(t *testing.T) {
	r := registrytest.New()

	byID, err := registry.FindToken(r, registrytest.BetaID, registrytest.BetaUSDC)
	require.NoError(t, err)
	assert.Equal(t, registrytest.BetaUSDC, byID.ID)

	bySymbol, err := registry.FindToken(r, registrytest.AlphaID, "walpha")
	require.NoError(t, err)
	assert.Equal(t, registrytest.AlphaWNat, bySymbol.ID)

	byAddr, err := registry.FindToken(r, registrytest.GammaID, registrytest.GammaUSDCAddr.Hex())
	require.NoError(t, err)
	assert.Equal(t, registrytest.GammaUSDC, byAddr.ID)

	_, err = registry.FindToken(r, registrytest.GammaID, "BTC")
	assert.Error(t, err)
}

func TestFindChain(t *testing.T) {
	r := registrytest.New()

	c, err := registry.FindChain(r, "Beta")
	require.NoError(t, err)
	assert.Equal(t, registrytest.BetaID, c.ID)

	c, err = registry.FindChain(r, "3")
	require.NoError(t, err)
	assert.Equal(t, "gamma", c.Name)

	_, err = registry.FindChain(r, "delta")
	assert.Error(t, err)
}
