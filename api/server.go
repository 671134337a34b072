package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/holpsBot/proof-of-wake/ledger"
	wake_protocol "github.com/holpsBot/proof-of-wake/solana"
)

// ServerConfig holds the server configuration
type ServerConfig struct {
	ListenAddress string
	CorsOrigins   []string
	Clock         clockwork.Clock
	Logger        *slog.Logger
	PromRegistry  *prometheus.Registry
}

// Server serves JSON-RPC and the read-only app views over HTTP.
type Server struct {
	router     *chi.Mux
	svc        ledger.Service
	dispatcher *Dispatcher
	protocol   *wake_protocol.Client
	clock      clockwork.Clock
	logger     *slog.Logger
	registry   *prometheus.Registry
	metrics    *httpMetrics
	srv        *http.Server
	listener   net.Listener
	serveWg    sync.WaitGroup
}

// NewServer creates a new HTTP server for svc
func NewServer(svc ledger.Service, cfg ServerConfig) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		svc:      svc,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		registry: cfg.PromRegistry,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = newHTTPMetrics(s.registry)
	s.dispatcher = NewDispatcher(svc, s.logger)
	s.protocol = wake_protocol.NewReadOnlyClient(svc, s.logger)
	s.setupRoutes(cfg.CorsOrigins)
	s.srv = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(corsOrigins []string) {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(s.metrics.middleware)
	s.router.Use(s.requestLogger)

	s.router.Post("/rpc", s.handleRPC)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/treasury", s.handleTreasury)
		r.Get("/challenges", s.handleChallenges)
		r.Get("/challenges/{authority}", s.handleChallenge)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(
			fmt.Sprintf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start)),
			"component", "api",
		)
	})
}

// Mount attaches handler under pattern, e.g. the peer list of a p2p node.
func (s *Server) Mount(pattern string, handler http.Handler) {
	s.router.Mount(pattern, handler)
}

// Handler returns the router, for embedding in tests or another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	s.listener = ln
	s.logger.Info(
		fmt.Sprintf("API server listening on %s", ln.Addr()),
		"component", "api",
	)
	s.serveWg.Add(1)
	go func() {
		defer s.serveWg.Done()
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				fmt.Sprintf("API server error: %s", err),
				"component", "api",
			)
		}
	}()
	return nil
}

// Addr returns the address the server listens on once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.serveWg.Wait()
	return err
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	body := http.MaxBytesReader(w, r.Body, MaxRequestSize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, &Response{
			JSONRPC: jsonRPCVersion,
			Error:   &RPCError{Code: CodeParseError, Message: err.Error()},
		})
		return
	}
	resp := s.dispatcher.Dispatch(r.Context(), &req)
	method := req.Method
	if resp.Error != nil && resp.Error.Code == CodeMethodNotFound {
		method = "unknown"
	}
	s.metrics.rpcCall(method, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	hash, err := s.svc.GetLatestBlockhash(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"blockhash": hash,
	})
}

func (s *Server) handleTreasury(w http.ResponseWriter, r *http.Request) {
	treasury, err := s.protocol.FetchTreasury(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if treasury == nil {
		writeError(w, http.StatusNotFound, "treasury not initialized")
		return
	}
	writeJSON(w, http.StatusOK, treasury)
}

func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := s.protocol.FetchAllChallenges(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	now := s.clock.Now()
	ret := make([]*wake_protocol.Progress, 0, len(challenges))
	for _, ch := range challenges {
		ret = append(ret, wake_protocol.NewProgress(ch.Challenge, now))
	}
	writeJSON(w, http.StatusOK, ret)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	authority, err := solana.PublicKeyFromBase58(chi.URLParam(r, "authority"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid authority: %s", err))
		return
	}
	progress, err := s.protocol.ChallengeProgress(r.Context(), authority, s.clock.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if progress == nil {
		writeError(w, http.StatusNotFound, "no challenge for this authority")
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Status: "error", Message: message})
}
