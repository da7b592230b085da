package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"spxbacktest/internal/config"
	"spxbacktest/internal/strategy"
	"spxbacktest/pkg/spxbacktest"
)

const maxRequestBody = 1 << 20

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/v1/strategies", s.handleStrategies)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
}

// Handler returns an http.Handler with request logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return logMiddleware(s.log, corsMiddleware(mux))
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var body spxbacktest.BacktestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, spxbacktest.CodeInvalidArgument, "invalid request body: "+err.Error())
		return
	}

	req, err := toRequest(body, s.defaults)
	if err != nil {
		writeBacktestError(w, err)
		return
	}

	res, err := s.bt.Run(r.Context(), req)
	if err != nil {
		writeBacktestError(w, err)
		return
	}
	writeJSON(w, toResponse(res, body.IncludeSeries))
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, spxbacktest.StrategiesResponse{
		Strategies: s.bt.Strategies(),
		Default:    s.defaultStrategy(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) defaultStrategy() string {
	if s.defaults.Strategy != "" {
		return s.defaults.Strategy
	}
	return strategy.DefaultStrategy
}

// toRequest resolves a wire request against the configured defaults.
func toRequest(in spxbacktest.BacktestRequest, def config.BacktestConfig) (strategy.Request, error) {
	req := strategy.Request{
		Symbol:            strings.ToUpper(strings.TrimSpace(in.Symbol)),
		Strategy:          in.Strategy,
		InitialInvestment: def.InitialInvestment,
		Params:            def.Params(),
	}
	if req.Symbol == "" {
		req.Symbol = strings.ToUpper(def.Symbol)
	}
	if req.Strategy == "" {
		req.Strategy = def.Strategy
	}
	if in.InitialInvestment != nil {
		req.InitialInvestment = *in.InitialInvestment
	}
	if in.MAPeriod != nil {
		req.Params.MAPeriod = *in.MAPeriod
	}
	if in.BuyBelowPct != nil {
		req.Params.BuyBelowPct = *in.BuyBelowPct
	}

	var err error
	if req.Start, err = parseDate("start_date", in.StartDate, def.StartDate); err != nil {
		return strategy.Request{}, err
	}
	if req.End, err = parseDate("end_date", in.EndDate, def.EndDate); err != nil {
		return strategy.Request{}, err
	}
	return req, nil
}

func parseDate(field, v, fallback string) (time.Time, error) {
	if v == "" {
		v = fallback
	}
	t, err := time.Parse(spxbacktest.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not YYYY-MM-DD", strategy.ErrInvalidParameter, field, v)
	}
	return t, nil
}

// toResponse converts a result to its wire form. The per-day series is only
// included on request.
func toResponse(res *strategy.BacktestResult, includeSeries bool) spxbacktest.BacktestResponse {
	out := spxbacktest.BacktestResponse{
		RunID:             res.RunID,
		Symbol:            res.Symbol,
		Strategy:          res.Strategy,
		MAPeriod:          res.Params.MAPeriod,
		BuyBelowPct:       res.Params.BuyBelowPct,
		StartDate:         res.Start.Format(spxbacktest.DateLayout),
		EndDate:           res.End.Format(spxbacktest.DateLayout),
		InitialInvestment: res.InitialInvestment,
		FinalAmount:       res.FinalAmount,
		TotalReturn:       res.TotalReturn,
		AnnualizedReturn:  res.AnnualizedReturn,
		SharpeRatio:       res.SharpeRatio,
		TotalTrades:       res.TotalTrades,
		EndedInPosition:   res.Exit.InPosition,
		Trades:            make([]spxbacktest.TradeJSON, 0, len(res.Trades)),
	}
	for _, tr := range res.Trades {
		out.Trades = append(out.Trades, spxbacktest.TradeJSON{
			Date:   tr.Date.Format(spxbacktest.DateLayout),
			Side:   string(tr.Side),
			Price:  tr.Price,
			Shares: tr.Shares,
			Value:  tr.Value,
			Forced: tr.Forced,
		})
	}
	if includeSeries {
		out.Series = make([]spxbacktest.SeriesPoint, len(res.Series))
		for i, p := range res.Series {
			sp := spxbacktest.SeriesPoint{Date: p.Date.Format(spxbacktest.DateLayout), Close: p.Close}
			if p.SMA.Valid {
				v := p.SMA.Value
				sp.SMA = &v
			}
			if p.Buy.Valid {
				v := p.Buy.Value
				sp.Buy = &v
			}
			if p.Sell.Valid {
				v := p.Sell.Value
				sp.Sell = &v
			}
			out.Series[i] = sp
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Response helpers and middleware
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(spxbacktest.ErrorResponse{Error: msg, Code: code})
}

func writeBacktestError(w http.ResponseWriter, err error) {
	c := classify(err)
	writeError(w, c.status, c.wire, err.Error())
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start).Round(time.Microsecond),
		)
	})
}
