// Package utils provides utility functions and constants for common operations
// throughout the application.
package utils

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress parses a hex encoded Ethereum address, with or without the 0x prefix.
//
// Parameters:
//   - s: The hex encoded address
//
// Returns:
//   - common.Address: The parsed address
//   - error: An error if the string is not a valid address
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address '%s'", s)
	}
	return common.HexToAddress(s), nil
}

// IsZeroAddress returns true when the address is the null address.
func IsZeroAddress(a common.Address) bool {
	return a == common.Address{}
}

// Map applies f to every element of list and returns the results in order.
//
// Parameters:
//   - list: The input slice
//   - f: The mapping function, called with each element and its index
//
// Returns:
//   - []B: The mapped slice
func Map[A any, B any](list []A, f func(A, uint64) B) []B {
	out := make([]B, 0, len(list))
	for i, v := range list {
		out = append(out, f(v, uint64(i)))
	}
	return out
}
