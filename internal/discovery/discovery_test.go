package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/vault-factory/pkg/cache"
	"github.com/mselser95/vault-factory/pkg/types"
	"go.uber.org/zap"
)

const registryFixture = `{
  "success": true,
  "data": {
    "b-pool": {
      "name": "factory-v2-10 (0xAbC1…)",
      "swap": "0x0000000000000000000000000000000000000b01",
      "swap_token": "0x0000000000000000000000000000000000000b02",
      "gauge": "0x0000000000000000000000000000000000000b03",
      "is_killed": false,
      "side_chain": false,
      "gauge_controller": {"get_gauge_weight": "12345"},
      "gaugeCrvApy": [1.5, 3.75]
    },
    "a-pool": {
      "name": "frax",
      "swap": "0x0000000000000000000000000000000000000a01",
      "swap_token": "0x0000000000000000000000000000000000000a02",
      "gauge": "0x0000000000000000000000000000000000000a03",
      "gauge_controller": {"get_gauge_weight": 0},
      "gaugeCrvApy": [0.25, 0.5]
    },
    "killed": {
      "name": "dead",
      "gauge": "0x0000000000000000000000000000000000000c03",
      "is_killed": true
    },
    "sidechain": {
      "name": "polygon-thing",
      "gauge": "0x0000000000000000000000000000000000000d03",
      "side_chain": true
    },
    "broken": {
      "name": "broken",
      "gauge": "not-an-address"
    }
  }
}`

func newTestCache(t *testing.T, logger *zap.Logger) *cache.RistrettoCache {
	t.Helper()
	c, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:        "gauges",
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestNew(t *testing.T) {
	logger := zap.NewNop()
	c := newTestCache(t, logger)
	client := NewClient("https://api.example.com", logger)

	svc := New(&Config{
		Client:       client,
		Cache:        c,
		PollInterval: 30 * time.Second,
		Logger:       logger,
	})

	if svc == nil {
		t.Fatal("expected non-nil service")
	}

	if svc.pollInterval != 30*time.Second {
		t.Errorf("expected poll interval 30s, got %v", svc.pollInterval)
	}

	if cap(svc.candidatesCh) != 1 {
		t.Errorf("expected channel capacity 1, got %d", cap(svc.candidatesCh))
	}

	if _, polled := svc.Latest(); polled {
		t.Error("expected no poll before Run")
	}
}

func TestClient_FetchGauges(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/getAllGauges" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(registryFixture))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", zap.NewNop())

	gauges, err := client.FetchGauges(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gauges) != 2 {
		t.Fatalf("expected 2 live gauges, got %d", len(gauges))
	}

	// ordered by registry id
	if gauges[0].ID != "a-pool" || gauges[1].ID != "b-pool" {
		t.Errorf("unexpected order: %s, %s", gauges[0].ID, gauges[1].ID)
	}

	b := gauges[1]
	if b.Name != "factory-v2-10" {
		t.Errorf("expected parenthetical stripped, got %q", b.Name)
	}
	if b.GaugeAddress != common.HexToAddress("0x0000000000000000000000000000000000000b03") {
		t.Errorf("unexpected gauge address %s", b.GaugeAddress.Hex())
	}
	if b.PoolAddress != common.HexToAddress("0x0000000000000000000000000000000000000b01") {
		t.Errorf("unexpected pool address %s", b.PoolAddress.Hex())
	}
	if b.TokenAddress != common.HexToAddress("0x0000000000000000000000000000000000000b02") {
		t.Errorf("unexpected token address %s", b.TokenAddress.Hex())
	}
	if b.Weight.Int64() != 12345 || !b.HasWeight() {
		t.Errorf("unexpected weight %v", b.Weight)
	}
	if b.APY != [2]float64{1.5, 3.75} {
		t.Errorf("unexpected apy %v", b.APY)
	}

	a := gauges[0]
	if a.HasWeight() {
		t.Error("expected zero weight for a-pool")
	}
	if a.Name != "frax" {
		t.Errorf("expected name unchanged, got %q", a.Name)
	}
}

func TestClient_FetchGauges_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())

	_, err := client.FetchGauges(context.Background())
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestClient_FetchGauges_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [`))
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())

	_, err := client.FetchGauges(context.Background())
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"frax", "frax"},
		{"factory-v2-10 (0xAbC1…)", "factory-v2-10"},
		{"a (x) b (y)", "a  b (y)"},
		{"nested ((inner))", "nested ()"},
	}

	for _, tt := range tests {
		if got := cleanName(tt.in); got != tt.want {
			t.Errorf("cleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWeight_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"1000000000000000000000"`, "1000000000000000000000"},
		{`42`, "42"},
		{`"1e3"`, "1000"},
	}

	for _, tt := range tests {
		var w weight
		err := w.UnmarshalJSON([]byte(tt.raw))
		if err != nil {
			t.Errorf("UnmarshalJSON(%s) error: %v", tt.raw, err)
			continue
		}
		if w.String() != tt.want {
			t.Errorf("UnmarshalJSON(%s) = %s, want %s", tt.raw, w.String(), tt.want)
		}
	}

	var empty weight
	if err := empty.UnmarshalJSON([]byte(`null`)); err != nil || empty.Int != nil {
		t.Errorf("expected null to leave weight unset, got %v, %v", empty.Int, err)
	}

	var bad weight
	if err := bad.UnmarshalJSON([]byte(`"lots"`)); err == nil {
		t.Error("expected error for non-numeric weight")
	}
}

type stubFetcher struct {
	gauges []types.Gauge
	err    error
}

func (s *stubFetcher) FetchGauges(_ context.Context) ([]types.Gauge, error) {
	return s.gauges, s.err
}

func TestService_Poll(t *testing.T) {
	logger := zap.NewNop()
	c := newTestCache(t, logger)

	gauge := types.Gauge{
		ID:           "a",
		Name:         "frax",
		GaugeAddress: common.HexToAddress("0x0000000000000000000000000000000000000a03"),
	}

	svc := New(&Config{
		Client:       &stubFetcher{gauges: []types.Gauge{gauge}},
		Cache:        c,
		PollInterval: time.Minute,
		Logger:       logger,
	})

	err := svc.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Wait()

	select {
	case list := <-svc.CandidatesChan():
		if len(list) != 1 || list[0].ID != "a" {
			t.Errorf("unexpected candidate list %+v", list)
		}
	default:
		t.Fatal("expected a candidate list to be published")
	}

	got, ok := svc.GetGauge(gauge.GaugeAddress)
	if !ok {
		t.Fatal("expected gauge to be found")
	}
	if got.Name != "frax" {
		t.Errorf("expected name frax, got %s", got.Name)
	}

	if _, ok := svc.GetGauge(common.HexToAddress("0x01")); ok {
		t.Error("expected unknown gauge to be missing")
	}

	latest, polled := svc.Latest()
	if !polled || len(latest) != 1 {
		t.Errorf("expected latest to hold the polled list, got %d, %v", len(latest), polled)
	}
}

func TestService_Poll_Error(t *testing.T) {
	svc := New(&Config{
		Client:       &stubFetcher{err: errors.New("registry down")},
		PollInterval: time.Minute,
		Logger:       zap.NewNop(),
	})

	err := svc.Poll(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	select {
	case <-svc.CandidatesChan():
		t.Fatal("expected nothing published on failure")
	default:
	}
}

func TestService_Publish_LatestWins(t *testing.T) {
	svc := New(&Config{
		Client:       &stubFetcher{},
		PollInterval: time.Minute,
		Logger:       zap.NewNop(),
	})

	svc.publish([]types.Gauge{{ID: "first"}})
	svc.publish([]types.Gauge{{ID: "second"}})

	list := <-svc.CandidatesChan()
	if len(list) != 1 || list[0].ID != "second" {
		t.Errorf("expected the newer list, got %+v", list)
	}

	select {
	case <-svc.CandidatesChan():
		t.Fatal("expected the older list to be dropped")
	default:
	}
}

func TestService_GetGauge_NilCache(t *testing.T) {
	gauge := types.Gauge{ID: "a", GaugeAddress: common.HexToAddress("0x0a")}
	svc := New(&Config{
		Client:       &stubFetcher{gauges: []types.Gauge{gauge}},
		PollInterval: time.Minute,
		Logger:       zap.NewNop(),
	})

	if err := svc.Poll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := svc.GetGauge(gauge.GaugeAddress); !ok {
		t.Error("expected fallback to the last poll without a cache")
	}
}

func TestService_Run_StopsOnCancel(t *testing.T) {
	svc := New(&Config{
		Client:       &stubFetcher{},
		PollInterval: time.Hour,
		Logger:       zap.NewNop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-svc.CandidatesChan()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
