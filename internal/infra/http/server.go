package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/config"
	"mpesa-subscription-billing/internal/usecase"
)

// Server exposes the public payment API: initiation, the gateway result
// callback, and the plan catalog.
type Server struct {
	cfg       *config.Config
	paymentUC usecase.PaymentUseCase
	planUC    usecase.PlanUseCase

	log    *zerolog.Logger
	server *http.Server
}

func NewServer(cfg *config.Config, paymentUC usecase.PaymentUseCase, planUC usecase.PlanUseCase, logger *zerolog.Logger) *Server {
	return &Server{cfg: cfg, paymentUC: paymentUC, planUC: planUC, log: logger}
}

// Routes builds the router. Exposed separately so tests can drive the
// handlers without a listening socket.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments/initiate", s.handleInitiate)
		r.Post("/payments/callback", s.handleCallback)
		r.Get("/payments/{id}", s.handleGetPayment)
		r.Get("/plans", s.handleListPlans)
	})
	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", s.cfg.Server.Port).Msg("payment API listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
