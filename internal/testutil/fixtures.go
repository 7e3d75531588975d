package testutil

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/pkg/types"
)

// Caller is the authenticated account used across tests.
//
//nolint:gochecknoglobals // test fixture
var Caller = common.HexToAddress("0x00000000000000000000000000000000000000ca")

// CreateTestGauge creates a gauge with a non-zero weight and addresses derived from n.
func CreateTestGauge(n int, name string) types.Gauge {
	return types.Gauge{
		ID:           fmt.Sprintf("gauge-%d", n),
		Name:         name,
		PoolAddress:  common.BigToAddress(big.NewInt(int64(0x1000 + n))),
		TokenAddress: common.BigToAddress(big.NewInt(int64(0x2000 + n))),
		GaugeAddress: common.BigToAddress(big.NewInt(int64(0x3000 + n))),
		Weight:       big.NewInt(1),
		APY:          [2]float64{float64(n), float64(n) * 2},
	}
}

// CreateTestVault creates a catalog entry on the given network.
func CreateTestVault(n int, name string, symbol string, networkID uint64) types.Vault {
	return types.Vault{
		Address:      common.BigToAddress(big.NewInt(int64(0x4000 + n))),
		Name:         name,
		Symbol:       symbol,
		Decimals:     18,
		TokenAddress: common.BigToAddress(big.NewInt(int64(0x5000 + n))),
		TokenName:    name + " LP",
		TokenSymbol:  symbol + "-lp",
		NetworkID:    networkID,
		Category:     "Curve",
		Kind:         "Single Strategy",
	}
}

// RegistryBody renders gauges as a Curve getAllGauges response.
func RegistryBody(gauges ...types.Gauge) string {
	body := `{"success":true,"data":{`
	for i := range gauges {
		if i > 0 {
			body += ","
		}
		g := gauges[i]
		weight := "0"
		if g.Weight != nil {
			weight = g.Weight.String()
		}
		body += fmt.Sprintf(
			`%q:{"name":%q,"swap":%q,"swap_token":%q,"gauge":%q,"is_killed":false,"side_chain":false,`+
				`"gauge_controller":{"get_gauge_weight":%q},"gaugeCrvApy":[%g,%g]}`,
			g.ID, g.Name, g.PoolAddress.Hex(), g.TokenAddress.Hex(), g.GaugeAddress.Hex(),
			weight, g.APY[0], g.APY[1])
	}
	return body + "}}"
}

// CatalogBody renders vaults as a yDaemon /vaults response.
func CatalogBody(vaults ...types.Vault) string {
	body := "["
	for i := range vaults {
		if i > 0 {
			body += ","
		}
		v := vaults[i]
		body += fmt.Sprintf(
			`{"address":%q,"name":%q,"symbol":%q,"decimals":%d,"chainID":%d,"category":%q,"kind":%q,"type":%q,`+
				`"token":{"address":%q,"name":%q,"symbol":%q},"tvl":{"tvl":%g},`+
				`"apr":{"netAPR":%g,"forwardAPR":{"netAPR":%g}}}`,
			v.Address.Hex(), v.Name, v.Symbol, v.Decimals, v.NetworkID, v.Category, v.Kind, v.Type,
			v.TokenAddress.Hex(), v.TokenName, v.TokenSymbol, v.TVL,
			v.HistAPR, v.EstAPR)
	}
	return body + "]"
}
