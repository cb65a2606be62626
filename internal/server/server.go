// Package server exposes the process over HTTP: JSON-RPC on / (and /ws),
// Prometheus metrics on /metrics and a health probe on /healthz.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/shadow-hq/shadowlogs/internal/store"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// CheckpointReader reports the last acknowledged notification.
type CheckpointReader interface {
	Checkpoint(ctx context.Context) (store.Checkpoint, bool, error)
}

// Config holds the listen address and allowed CORS origins.
type Config struct {
	Addr        string
	CORSOrigins []string
}

// Server serves HTTP until its context is cancelled.
type Server struct {
	cfg     Config
	rpc     *rpc.Server
	handler http.Handler
	logger  *slog.Logger

	mu   sync.Mutex
	addr net.Addr
}

// New registers apis on a JSON-RPC server and builds the router.
// checkpoints may be nil, in which case /healthz reports no checkpoint.
func New(cfg Config, apis []rpc.API, gatherer prometheus.Gatherer, checkpoints CheckpointReader, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rpcServer := rpc.NewServer()
	for _, api := range apis {
		if err := rpcServer.RegisterName(api.Namespace, api.Service); err != nil {
			return nil, fmt.Errorf("register %s api: %w", api.Namespace, err)
		}
	}

	r := chi.NewRouter()
	r.Post("/", rpcServer.ServeHTTP)
	r.Get("/ws", rpcServer.WebsocketHandler(cfg.CORSOrigins).ServeHTTP)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", healthHandler(checkpoints, logger))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         600,
	})

	return &Server{
		cfg:     cfg,
		rpc:     rpcServer,
		handler: c.Handler(r),
		logger:  logger,
	}, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the bound address once Run is listening, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(listener)
	}()
	s.logger.Info("http server listening", "addr", listener.Addr().String())

	select {
	case err := <-errc:
		s.rpc.Stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	s.rpc.Stop()
	if serveErr := <-errc; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	s.logger.Info("http server stopped")
	return err
}

type checkpointJSON struct {
	NotificationID string      `json:"notificationId"`
	BlockNumber    uint64      `json:"blockNumber"`
	BlockHash      common.Hash `json:"blockHash"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

type healthJSON struct {
	Status     string          `json:"status"`
	Checkpoint *checkpointJSON `json:"checkpoint"`
}

func healthHandler(checkpoints CheckpointReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthJSON{Status: "ok"}
		status := http.StatusOK

		if checkpoints != nil {
			cp, ok, err := checkpoints.Checkpoint(r.Context())
			switch {
			case err != nil:
				logger.Error("health check failed", "error", err)
				body.Status = "error"
				status = http.StatusServiceUnavailable
			case ok:
				body.Checkpoint = &checkpointJSON{
					NotificationID: cp.NotificationID,
					BlockNumber:    cp.BlockNumber,
					BlockHash:      cp.BlockHash,
					UpdatedAt:      cp.UpdatedAt.UTC(),
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
