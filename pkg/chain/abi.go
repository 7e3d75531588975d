package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	// MethodCanCreate checks whether a vault may be created permissionlessly for a gauge.
	MethodCanCreate = "canCreateVaultPermissionlessly"
	// MethodCreate deploys the vault and its strategies for a gauge.
	MethodCreate = "createNewVaultsAndStrategies"
)

const vaultFactoryABIJSON = `[
	{"inputs":[{"name":"_gauge","type":"address"}],"name":"canCreateVaultPermissionlessly","outputs":[{"name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"_gauge","type":"address"}],"name":"createNewVaultsAndStrategies","outputs":[{"name":"vault","type":"address"},{"name":"convexStrategy","type":"address"},{"name":"curveStrategy","type":"address"},{"name":"convexFraxStrategy","type":"address"}],"stateMutability":"nonpayable","type":"function"}
]`

const erc20ABIJSON = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

const multicall3ABIJSON = `[
	{"inputs":[{"components":[{"name":"target","type":"address"},{"name":"allowFailure","type":"bool"},{"name":"callData","type":"bytes"}],"name":"calls","type":"tuple[]"}],"name":"aggregate3","outputs":[{"components":[{"name":"success","type":"bool"},{"name":"returnData","type":"bytes"}],"name":"returnData","type":"tuple[]"}],"stateMutability":"payable","type":"function"}
]`

//nolint:gochecknoglobals // parsed once, read-only
var (
	VaultFactoryABI = mustParseABI(vaultFactoryABIJSON)
	ERC20ABI        = mustParseABI(erc20ABIJSON)
	Multicall3ABI   = mustParseABI(multicall3ABIJSON)
)

func mustParseABI(raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("parse ABI: " + err.Error())
	}
	return &parsed
}
