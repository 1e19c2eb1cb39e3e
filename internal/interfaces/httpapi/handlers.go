package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"folio/internal/domain"
	"folio/internal/infrastructure/marketdata"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		HealthStatus
	}{OK: true, HealthStatus: s.health})
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.portfolio.Positions(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Unable to load positions.")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

func (s *Server) handleSavePositions(w http.ResponseWriter, r *http.Request) {
	var inputs []domain.PositionInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		s.writeError(w, http.StatusBadRequest, "Positions payload must be an array.")
		return
	}
	positions, snapshot, err := s.portfolio.SavePositions(r.Context(), inputs)
	if err != nil {
		s.log.Error().Err(err).Msg("save positions failed")
		s.writeError(w, http.StatusInternalServerError, "Unable to save positions.")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"positions": positions,
		"snapshot":  snapshot,
	})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	raw, err := s.portfolio.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Unable to load snapshot.")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleGetMeta(w http.ResponseWriter, r *http.Request) {
	meta, err := s.portfolio.Meta(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Unable to load meta.")
		return
	}
	s.writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	result, err := s.portfolio.RefreshPrices(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("refresh prices failed")
		var credErr *marketdata.CredentialsError
		if errors.As(err, &credErr) {
			s.writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   "Missing Alpaca credentials",
				"missing": credErr.Missing,
			})
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"prices": result.Prices,
		"asOf":   result.AsOf,
	})
}

// handleExportPositions streams the enriched snapshot positions as CSV.
// Null market fields become empty cells.
func (s *Server) handleExportPositions(w http.ResponseWriter, r *http.Request) {
	raw, err := s.portfolio.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Unable to load snapshot.")
		return
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Stored snapshot is malformed.")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="positions.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"symbol", "shares", "avgCost", "costBasis", "lastPrice", "marketValue", "unrealizedPnL", "unrealizedPnLPct"})
	for _, p := range snapshot.Positions {
		_ = cw.Write([]string{
			p.Symbol,
			formatFloat(p.Shares),
			formatFloatPtr(p.AvgCost),
			formatFloat(p.CostBasis),
			formatFloatPtr(p.LastPrice),
			formatFloatPtr(p.MarketValue),
			formatFloatPtr(p.UnrealizedPnL),
			formatFloatPtr(p.UnrealizedPnLPct),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.log.Error().Err(err).Msg("csv export failed")
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
