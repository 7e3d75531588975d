package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/mselser95/vault-factory/internal/catalog"
	"github.com/mselser95/vault-factory/internal/factory"
	"github.com/mselser95/vault-factory/pkg/websocket"
	"go.uber.org/zap"
)

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type selectionRequest struct {
	Gauge string `json:"gauge"`
}

type sessionRequest struct {
	Account string `json:"account"`
	Active  bool   `json:"active"`
}

// CreateVaultResponse is returned when a submission has been accepted.
type CreateVaultResponse struct {
	Status string         `json:"status"`
	Gauge  common.Address `json:"gauge"`
}

// handleGauges handles GET /api/gauges.
func (s *Server) handleGauges(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.driver.Options())
}

// handleState handles GET /api/state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.driver.Snapshot())
}

// handleSelect handles POST /api/selection with body {"gauge": "0x..."}.
// An empty gauge clears the selection.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	err := decodeBody(r, &req)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	gauge, err := parseAddress(req.Gauge)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !s.selectGauge(r.Context(), w, gauge) {
		return
	}

	s.writeJSON(w, http.StatusOK, s.driver.Snapshot())
}

// selectGauge writes an error response and returns false when the gauge is not selectable.
func (s *Server) selectGauge(ctx context.Context, w http.ResponseWriter, gauge common.Address) bool {
	err := s.driver.Select(ctx, gauge)
	switch {
	case errors.Is(err, factory.ErrUnknownGauge):
		s.writeError(w, err.Error(), http.StatusNotFound)
		return false
	case err != nil:
		// Display failures are part of the snapshot.
		s.logger.Warn("selection-resolve-failed",
			zap.String("gauge", gauge.Hex()),
			zap.Error(err))
	}
	return true
}

// handleSession handles POST /api/session with body {"account": "0x...", "active": true}.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	err := decodeBody(r, &req)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := parseAddress(req.Account)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.driver.SetSession(r.Context(), factory.Session{Account: account, Active: req.Active})
	if errors.Is(err, factory.ErrForeignAccount) {
		s.writeError(w, err.Error(), http.StatusForbidden)
		return
	}
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, s.driver.Snapshot())
}

// handleCreateVault handles POST /api/vaults. An optional {"gauge": "0x..."}
// body selects the gauge first. The submission runs in the background and
// its progress is visible through /api/state and /ws.
func (s *Server) handleCreateVault(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	err := decodeBody(r, &req)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Gauge != "" {
		gauge, err := parseAddress(req.Gauge)
		if err != nil {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !s.selectGauge(r.Context(), w, gauge) {
			return
		}
	}

	snap := s.driver.Snapshot()
	if !snap.CanSubmit {
		s.writeError(w, snap.CanSubmitError, http.StatusConflict)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		status, err := s.driver.Submit(ctx)
		if err != nil {
			s.logger.Warn("vault-submission-failed",
				zap.String("gauge", status.Gauge.Hex()),
				zap.Error(err))
			return
		}
		s.logger.Info("vault-submission-complete",
			zap.String("gauge", status.Gauge.Hex()),
			zap.String("tx-hash", status.TxHash.Hex()))
	}()

	s.writeJSON(w, http.StatusAccepted, CreateVaultResponse{
		Status: "accepted",
		Gauge:  snap.Selected.GaugeAddress,
	})
}

// handleVaults handles GET /api/vaults?search=&sort=&direction=&networks=&categories=.
func (s *Server) handleVaults(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Debug("catalog-view-request",
		zap.String("search", q.Search),
		zap.String("sort", q.SortBy),
		zap.String("direction", string(q.Direction)))

	s.writeJSON(w, http.StatusOK, s.catalog.View(q))
}

// parseQuery builds a catalog query. An absent networks or categories
// parameter uses the server defaults; a present but empty one selects nothing.
func (s *Server) parseQuery(values url.Values) (catalog.Query, error) {
	q := catalog.Query{
		Networks:   s.defaultNetworks,
		Categories: s.defaultCategories,
		Search:     values.Get("search"),
		SortBy:     values.Get("sort"),
		Direction:  catalog.Desc,
	}

	if q.SortBy == "" {
		q.SortBy = catalog.SortTVL
	}

	switch d := catalog.Direction(strings.ToLower(values.Get("direction"))); d {
	case "":
	case catalog.Asc, catalog.Desc:
		q.Direction = d
	default:
		return q, fmt.Errorf("invalid direction: %q", d)
	}

	if values.Has("networks") {
		q.Networks = []uint64{}
		for _, part := range splitList(values.Get("networks")) {
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return q, fmt.Errorf("invalid network id %q: %w", part, err)
			}
			q.Networks = append(q.Networks, id)
		}
	}

	if values.Has("categories") {
		q.Categories = splitList(values.Get("categories"))
	}

	return q, nil
}

// handleEvents handles GET /ws. The client receives the current snapshot and
// then one frame per driver state change.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, cancel := s.driver.Subscribe(32)
	defer cancel()

	frames := make(chan websocket.Frame)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(frames)
		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case frames <- websocket.Frame{Type: string(ev.Kind), Data: ev.Snapshot}:
				case <-done:
					return
				}
			}
		}
	}()

	initial := websocket.Frame{Type: "snapshot", Data: s.driver.Snapshot()}
	err := s.hub.Serve(w, r, &initial, frames)
	if err != nil {
		s.logger.Debug("event-stream-ended", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		s.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}

	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// parseAddress accepts a hex address or the empty string (zero address).
func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
