package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Gauge is a Curve liquidity gauge discovered from the registry.
// A vault can be created for it once, permissionlessly.
type Gauge struct {
	ID           string
	Name         string
	PoolAddress  common.Address // swap
	TokenAddress common.Address // swap_token (LP token)
	GaugeAddress common.Address
	Weight       *big.Int
	APY          [2]float64 // [current, projected]
}

// HasWeight reports whether the gauge controller assigns a non-zero weight.
func (g *Gauge) HasWeight() bool {
	return g.Weight != nil && g.Weight.Sign() > 0
}

// IsZero reports whether g is the empty selection sentinel.
func (g *Gauge) IsZero() bool {
	return g.GaugeAddress == (common.Address{})
}

// GaugeOption is a selectable gauge as presented to callers.
type GaugeOption struct {
	Label        string         `json:"label"`
	Name         string         `json:"name"`
	TokenAddress common.Address `json:"token_address"`
	PoolAddress  common.Address `json:"pool_address"`
	GaugeAddress common.Address `json:"gauge_address"`
	APY          float64        `json:"apy"`
}

// Option converts the gauge into its selectable form.
func (g *Gauge) Option() GaugeOption {
	return GaugeOption{
		Label:        g.Name,
		Name:         g.Name,
		TokenAddress: g.TokenAddress,
		PoolAddress:  g.PoolAddress,
		GaugeAddress: g.GaugeAddress,
		APY:          g.APY[0],
	}
}

// DisplayMetadata holds the on-chain name and symbol of the selected gauge,
// cleaned up for presentation.
type DisplayMetadata struct {
	Name         string         `json:"name"`
	Symbol       string         `json:"symbol"`
	PoolAddress  common.Address `json:"pool_address"`
	GaugeAddress common.Address `json:"gauge_address"`
}

// VaultName is the name the factory will give the new vault.
func (m *DisplayMetadata) VaultName() string {
	if m.Name == "" {
		return ""
	}
	return "Curve " + m.Name + " Factory"
}

// VaultSymbol is the symbol the factory will give the new vault.
func (m *DisplayMetadata) VaultSymbol() string {
	if m.Symbol == "" {
		return ""
	}
	return "yvCurve-" + m.Symbol + "-f"
}
