package parser

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSwapCommand(t *testing.T) {
	tests := []struct {
		input string
		want  SwapCommand
	}{
		{
			input: "swap 1 AVAX to USDC",
			want:  SwapCommand{Amount: decimal.NewFromInt(1), SrcToken: "AVAX", DstToken: "USDC"},
		},
		{
			input: "  1.5   usdc to  wavax ",
			want:  SwapCommand{Amount: decimal.RequireFromString("1.5"), SrcToken: "USDC", DstToken: "WAVAX"},
		},
		{
			input: "SWAP 0.25 WAVAX@avalanche TO USDC@dexalot",
			want: SwapCommand{
				Amount:   decimal.RequireFromString("0.25"),
				SrcToken: "WAVAX", SrcChain: "avalanche",
				DstToken: "USDC", DstChain: "dexalot",
			},
		},
		{
			input: "10 0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E@43114 to AVAX",
			want: SwapCommand{
				Amount:   decimal.NewFromInt(10),
				SrcToken: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", SrcChain: "43114",
				DstToken: "AVAX",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSwapCommand(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Amount.Equal(got.Amount), "amount %s", got.Amount)
			assert.Equal(t, tt.want.SrcToken, got.SrcToken)
			assert.Equal(t, tt.want.SrcChain, got.SrcChain)
			assert.Equal(t, tt.want.DstToken, got.DstToken)
			assert.Equal(t, tt.want.DstChain, got.DstChain)
		})
	}
}

func TestParseSwapCommand_Errors(t *testing.T) {
	tests := []struct {
		input string
		err   error
	}{
		{"", ErrInvalidCommand},
		{"swap AVAX to USDC", ErrInvalidCommand},
		{"1 AVAX USDC", ErrInvalidCommand},
		{"1 AVAX into USDC", ErrInvalidCommand},
		{"abc AVAX to USDC", ErrInvalidAmount},
		{"0 AVAX to USDC", ErrInvalidAmount},
		{"-1 AVAX to USDC", ErrInvalidAmount},
		{"1e18 AVAX to USDC", ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseSwapCommand(tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals int32
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"1.5", 6, "1500000"},
		{"0.000001", 6, "1"},
		{"123456789.123456789123456789", 18, "123456789123456789123456789"},
		{"42", 0, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ToBaseUnits(decimal.RequireFromString(tt.amount), tt.decimals)
			require.NoError(t, err)
			want, _ := new(big.Int).SetString(tt.want, 10)
			assert.Equal(t, 0, want.Cmp(got), "got %s", got)
		})
	}

	_, err := ToBaseUnits(decimal.RequireFromString("0.0000001"), 6)
	assert.ErrorIs(t, err, ErrTooPrecise)
}

func TestNormalizeTokenSymbol(t *testing.T) {
	assert.Equal(t, "USDC", NormalizeTokenSymbol(" usdc "))
	assert.Equal(t, "0xAbC0000000000000000000000000000000000001", NormalizeTokenSymbol("0xAbC0000000000000000000000000000000000001"))
}
