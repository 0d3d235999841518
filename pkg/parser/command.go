package parser

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCommand = errors.New("invalid swap command")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrTooPrecise     = errors.New("amount has more decimals than the token")
)

// SwapCommand is a parsed "<amount> <token>[@chain] to <token>[@chain]"
// request. Token and chain references are resolved against the registry by
// the caller.
type SwapCommand struct {
	Amount   decimal.Decimal
	SrcToken string
	SrcChain string
	DstToken string
	DstChain string
}

// Matches: "1 AVAX to USDC", "1.5 usdc@avalanche to weth@beam"
var commandPattern = regexp.MustCompile(`^(\S+)\s+([A-Za-z0-9._x]+)(?:@(\S+))?\s+(?i:to)\s+([A-Za-z0-9._x]+)(?:@(\S+))?$`)

// ParseSwapCommand parses a swap command. A leading "swap" is accepted.
// Examples:
//   - "swap 1 AVAX to USDC"
//   - "0.25 WAVAX@avalanche to USDC@dexalot"
func ParseSwapCommand(command string) (*SwapCommand, error) {
	command = strings.Join(strings.Fields(command), " ")
	if len(command) > 5 && strings.EqualFold(command[:5], "swap ") {
		command = command[5:]
	}

	matches := commandPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("%w: expected '<amount> <token>[@chain] to <token>[@chain]', got %q", ErrInvalidCommand, command)
	}

	amount, err := ParseAmount(matches[1])
	if err != nil {
		return nil, err
	}

	return &SwapCommand{
		Amount:   amount,
		SrcToken: NormalizeTokenSymbol(matches[2]),
		SrcChain: matches[3],
		DstToken: NormalizeTokenSymbol(matches[4]),
		DstChain: matches[5],
	}, nil
}

// ParseAmount parses a positive decimal amount. Exponents are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q must be greater than zero", ErrInvalidAmount, s)
	}
	return d, nil
}

// ToBaseUnits scales a decimal amount by 10^decimals. Amounts finer than the
// token's smallest unit are rejected rather than rounded.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	scaled := amount.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s with %d decimals", ErrTooPrecise, amount, decimals)
	}
	return scaled.BigInt(), nil
}

// NormalizeTokenSymbol trims a token reference. Hex addresses keep their
// case, symbols are upper-cased.
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if strings.HasPrefix(symbol, "0x") || strings.HasPrefix(symbol, "0X") {
		return symbol
	}
	return strings.ToUpper(symbol)
}
