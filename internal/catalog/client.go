package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// Client is an HTTP client for the yDaemon vault API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new yDaemon client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type yDaemonVault struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	ChainID  uint64 `json:"chainID"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Type     string `json:"type"`
	Token    struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"token"`
	TVL struct {
		TVL float64 `json:"tvl"`
	} `json:"tvl"`
	APR struct {
		NetAPR     float64 `json:"netAPR"`
		ForwardAPR struct {
			NetAPR float64 `json:"netAPR"`
		} `json:"forwardAPR"`
	} `json:"apr"`
}

func (y *yDaemonVault) toVault() types.Vault {
	return types.Vault{
		Address:      common.HexToAddress(y.Address),
		Name:         y.Name,
		Symbol:       y.Symbol,
		Decimals:     y.Decimals,
		TokenAddress: common.HexToAddress(y.Token.Address),
		TokenName:    y.Token.Name,
		TokenSymbol:  y.Token.Symbol,
		NetworkID:    y.ChainID,
		Category:     y.Category,
		Kind:         y.Kind,
		Type:         y.Type,
		EstAPR:       y.APR.ForwardAPR.NetAPR,
		HistAPR:      y.APR.NetAPR,
		TVL:          y.TVL.TVL,
	}
}

// FetchVaults returns every vault yDaemon lists on the given networks.
func (c *Client) FetchVaults(ctx context.Context, networks []uint64) ([]types.Vault, error) {
	ids := make([]string, len(networks))
	for i, id := range networks {
		ids[i] = strconv.FormatUint(id, 10)
	}

	params := url.Values{}
	params.Set("chainIDs", strings.Join(ids, ","))
	params.Set("limit", "2500")
	requestURL := c.baseURL + "/vaults?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "vault-factory/1.0")

	c.logger.Debug("fetching-vaults", zap.String("url", requestURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	var raw []yDaemonVault
	err = json.NewDecoder(resp.Body).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	vaults := make([]types.Vault, 0, len(raw))
	for i := range raw {
		if !common.IsHexAddress(raw[i].Address) {
			c.logger.Debug("skipping-vault-invalid-address", zap.String("address", raw[i].Address))
			continue
		}
		vaults = append(vaults, raw[i].toVault())
	}

	c.logger.Debug("fetched-vaults", zap.Int("count", len(vaults)))

	return vaults, nil
}
