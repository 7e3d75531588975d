package types

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Vault is an already created vault as listed in the catalog.
type Vault struct {
	Address      common.Address `json:"address"`
	Name         string         `json:"name"`
	Symbol       string         `json:"symbol"`
	Decimals     int            `json:"decimals"`
	TokenAddress common.Address `json:"token_address"`
	TokenName    string         `json:"token_name"`
	TokenSymbol  string         `json:"token_symbol"`
	NetworkID    uint64         `json:"network_id"`
	Category     string         `json:"category"`
	Kind         string         `json:"kind"`
	Type         string         `json:"type"` // "Automated" for factory-deployed vaults

	EstAPR    float64 `json:"est_apr"`
	HistAPR   float64 `json:"hist_apr"`
	Available float64 `json:"available"` // caller's underlying token balance
	Deposited float64 `json:"deposited"` // caller's vault share balance
	TVL       float64 `json:"tvl"`
}

// DisplayName is the vault name without the " yVault" suffix.
func (v *Vault) DisplayName() string {
	return strings.Replace(v.Name, " yVault", "", 1)
}
