package discovery

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	json "github.com/goccy/go-json"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

// Client is an HTTP client for the Curve gauge registry API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new registry client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// allGaugesResponse is the envelope of /v1/getAllGauges.
type allGaugesResponse struct {
	Success bool                     `json:"success"`
	Data    map[string]registryGauge `json:"data"`
}

type registryGauge struct {
	Name            string           `json:"name"`
	Swap            string           `json:"swap"`
	SwapToken       string           `json:"swap_token"`
	Gauge           string           `json:"gauge"`
	IsKilled        bool             `json:"is_killed"`
	SideChain       bool             `json:"side_chain"`
	GaugeController *gaugeController `json:"gauge_controller"`
	GaugeCrvApy     []float64        `json:"gaugeCrvApy"`
}

type gaugeController struct {
	GaugeWeight weight `json:"get_gauge_weight"`
}

// weight accepts the gauge weight as either a JSON string or number.
type weight struct {
	*big.Int
}

func (w *weight) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		return nil
	}

	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		// Some records carry the weight in scientific notation.
		f, _, err := big.ParseFloat(raw, 10, 256, big.ToNearestEven)
		if err != nil {
			return fmt.Errorf("parse gauge weight %q: %w", raw, err)
		}
		v, _ = f.Int(nil)
	}
	w.Int = v
	return nil
}

//nolint:gochecknoglobals // compiled once
var addressPart = regexp.MustCompile(`\([^()]*\)`)

// FetchGauges returns every live gauge from the registry, ordered by registry id.
// Killed and side-chain gauges are dropped.
func (c *Client) FetchGauges(ctx context.Context) ([]types.Gauge, error) {
	requestURL := c.baseURL + "/v1/getAllGauges"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "vault-factory/1.0")

	c.logger.Debug("fetching-gauges", zap.String("url", requestURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var envelope allGaugesResponse
	err = json.Unmarshal(body, &envelope)
	if err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	ids := make([]string, 0, len(envelope.Data))
	for id := range envelope.Data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	gauges := make([]types.Gauge, 0, len(ids))
	for _, id := range ids {
		record := envelope.Data[id]

		if record.IsKilled || record.SideChain {
			continue
		}

		if !common.IsHexAddress(record.Gauge) {
			InvalidGaugesTotal.Inc()
			c.logger.Debug("skipping-gauge-invalid-address",
				zap.String("id", id),
				zap.String("gauge", record.Gauge))
			continue
		}

		gauges = append(gauges, toGauge(id, &record))
	}

	c.logger.Debug("fetched-gauges",
		zap.Int("registry-count", len(envelope.Data)),
		zap.Int("live-count", len(gauges)))

	return gauges, nil
}

func toGauge(id string, record *registryGauge) types.Gauge {
	gauge := types.Gauge{
		ID:           id,
		Name:         cleanName(record.Name),
		PoolAddress:  common.HexToAddress(record.Swap),
		TokenAddress: common.HexToAddress(record.SwapToken),
		GaugeAddress: common.HexToAddress(record.Gauge),
		Weight:       new(big.Int),
	}

	if record.GaugeController != nil && record.GaugeController.GaugeWeight.Int != nil {
		gauge.Weight = record.GaugeController.GaugeWeight.Int
	}

	copy(gauge.APY[:], record.GaugeCrvApy)

	return gauge
}

// cleanName removes the first "(...)" group, which the registry uses for a pool address hint.
func cleanName(name string) string {
	loc := addressPart.FindStringIndex(name)
	if loc == nil {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(name[:loc[0]] + name[loc[1]:])
}
