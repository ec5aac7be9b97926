// Package rest serves the coordinator's HTTP API.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fd1az/flasharb/business/api/app"
	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/internal/ratelimit"
)

// ActorHeader carries the authenticated actor id. Authentication happens
// upstream of this service.
const ActorHeader = "X-Actor-ID"

const maxBodyBytes = 1 << 20

// Handler routes API requests to the service.
type Handler struct {
	service *app.Service
	stream  http.Handler
	limiter *ratelimit.Limiter
	logger  logger.LoggerInterface
	router  *mux.Router
}

// NewHandler builds the router. stream may be nil.
func NewHandler(service *app.Service, stream http.Handler, requestsPerMinute int, log logger.LoggerInterface) *Handler {
	h := &Handler{
		service: service,
		stream:  stream,
		limiter: ratelimit.New(requestsPerMinute),
		logger:  log,
		router:  mux.NewRouter(),
	}

	api := h.router.PathPrefix("/api").Subrouter()
	api.Use(h.recoverer, h.rateLimit)

	api.HandleFunc("/opportunities", h.handleListOpportunities).Methods(http.MethodGet)
	api.HandleFunc("/trades", h.handleExecuteTrade).Methods(http.MethodPost)
	api.HandleFunc("/trades", h.handleListTrades).Methods(http.MethodGet)
	api.HandleFunc("/autotrade/start", h.handleStartAutoTrade).Methods(http.MethodPost)
	api.HandleFunc("/autotrade/stop", h.handleStopAutoTrade).Methods(http.MethodPost)
	api.HandleFunc("/autotrade/reset", h.handleResetRisk).Methods(http.MethodPost)
	api.HandleFunc("/autotrade/status", h.handleAutoTradeStatus).Methods(http.MethodGet)
	if stream != nil {
		api.Handle("/stream", stream).Methods(http.MethodGet)
	}

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Instrumented wraps the router with OpenTelemetry server spans.
func (h *Handler) Instrumented() http.Handler {
	return otelhttp.NewHandler(h, "api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					return r.Method + " " + tpl
				}
			}
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error(r.Context(), "api handler panicked", "path", r.URL.Path, "panic", fmt.Sprint(rec))
				h.writeError(w, r, apperror.New(apperror.CodeInternalError))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			h.writeError(w, r, apperror.New(apperror.CodeRateLimitExceeded))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	opps := h.service.ListOpportunities(filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": opps,
		"count":         len(opps),
	})
}

func parseFilter(r *http.Request) (arbitrageDomain.Filter, error) {
	q := r.URL.Query()
	f := arbitrageDomain.Filter{ActiveOnly: true}

	invalid := func(field string, err error) error {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err), apperror.WithContext(field))
	}

	if v := q.Get("minProfit"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return f, invalid("minProfit", err)
		}
		f.MinProfit = decimal.NewNullDecimal(d)
	}
	if v := q.Get("activeOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, invalid("activeOnly", err)
		}
		f.ActiveOnly = b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, invalid("limit", err)
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, invalid("offset", err)
		}
		f.Offset = n
	}
	if v := q.Get("exchanges"); v != "" {
		for _, ex := range strings.Split(v, ",") {
			if ex = strings.TrimSpace(ex); ex != "" {
				f.Exchanges = append(f.Exchanges, ex)
			}
		}
	}
	return f, nil
}

func (h *Handler) handleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var cmd app.TradeCommand
	present, err := decodeBody(r, &cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !present {
		h.writeError(w, r, apperror.New(apperror.CodeRequiredField, apperror.WithContext("request body")))
		return
	}

	result, err := h.service.ExecuteTrade(r.Context(), r.Header.Get(ActorHeader), cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListTrades(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, r, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("limit")))
			return
		}
		limit = n
	}

	trades, err := h.service.Trades(r.Context(), r.Header.Get(ActorHeader), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": trades,
		"count":  len(trades),
	})
}

func (h *Handler) handleStartAutoTrade(w http.ResponseWriter, r *http.Request) {
	patch := &app.SettingsPatch{}
	present, err := decodeBody(r, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !present {
		patch = nil
	}

	snap, err := h.service.StartAutoTrade(r.Header.Get(ActorHeader), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleStopAutoTrade(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.StopAutoTrade(r.Header.Get(ActorHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleResetRisk(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.ResetRisk(r.Header.Get(ActorHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleAutoTradeStatus(w http.ResponseWriter, r *http.Request) {
	actor := r.Header.Get(ActorHeader)
	if strings.TrimSpace(actor) == "" {
		writeJSON(w, http.StatusOK, map[string]any{"actors": h.service.AutoTradeStatuses()})
		return
	}

	snap, err := h.service.AutoTradeStatus(actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// decodeBody reads a JSON body into v and reports whether there was one.
func decodeBody(r *http.Request, v any) (bool, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err), apperror.WithContext("request body"))
	}
	return true, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.From(err).WithSpan(r.Context())

	if appErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "api request failed", append([]any{"path", r.URL.Path}, appErr.LogArgs()...)...)
	} else {
		h.logger.Debug(r.Context(), "api request rejected", "path", r.URL.Path, "code", string(appErr.Code))
	}
	writeJSON(w, appErr.StatusCode, appErr.ToResponse())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Server runs the handler on a port.
type Server struct {
	server *http.Server
	logger logger.LoggerInterface
}

// NewServer creates a Server listening on port.
func NewServer(port int, handler http.Handler, log logger.LoggerInterface) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "api server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}
