package chain

import (
	"fmt"
	"math/big"
)

// DecodeBool reads a single bool return value.
func DecodeBool(values []interface{}) (bool, error) {
	if len(values) != 1 {
		return false, fmt.Errorf("expected 1 value, got %d", len(values))
	}
	v, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", values[0])
	}
	return v, nil
}

// DecodeString reads a single string return value.
func DecodeString(values []interface{}) (string, error) {
	if len(values) != 1 {
		return "", fmt.Errorf("expected 1 value, got %d", len(values))
	}
	v, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", values[0])
	}
	return v, nil
}

// DecodeBigInt reads a single uint256 return value.
func DecodeBigInt(values []interface{}) (*big.Int, error) {
	if len(values) != 1 {
		return nil, fmt.Errorf("expected 1 value, got %d", len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected *big.Int, got %T", values[0])
	}
	return v, nil
}
