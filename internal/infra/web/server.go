package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"mpesa-subscription-billing/internal/config"
	"mpesa-subscription-billing/internal/usecase"
)

// Server is the private admin API: stats, plan management, user and
// payment browsing. It listens on its own port behind bearer auth.
type Server struct {
	statsUC   usecase.StatsUseCase
	userUC    usecase.UserUseCase
	subUC     usecase.SubscriptionUseCase
	planUC    usecase.PlanUseCase
	paymentUC usecase.PaymentUseCase
	auth      *AuthManager
	apiKey    string

	log    *zerolog.Logger
	server *http.Server
}

func NewServer(
	cfg *config.Config,
	statsUC usecase.StatsUseCase,
	userUC usecase.UserUseCase,
	subUC usecase.SubscriptionUseCase,
	planUC usecase.PlanUseCase,
	paymentUC usecase.PaymentUseCase,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		statsUC:   statsUC,
		userUC:    userUC,
		subUC:     subUC,
		planUC:    planUC,
		paymentUC: paymentUC,
		auth:      NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL),
		apiKey:    cfg.Admin.APIKey,
		log:       logger,
	}
}

// RegisterRoutes sets up the routing for the admin API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/login", s.loginHandler)

	mux.Handle("/api/v1/stats", s.authMiddleware(statsHandler(s.statsUC)))

	usersRouter := s.authMiddleware(s.usersRouter())
	mux.Handle("/api/v1/users", usersRouter)
	mux.Handle("/api/v1/users/", usersRouter)

	plansRouter := s.authMiddleware(s.plansRouter())
	mux.Handle("/api/v1/plans", plansRouter)
	mux.Handle("/api/v1/plans/", plansRouter)

	paymentsRouter := s.authMiddleware(s.paymentsRouter())
	mux.Handle("/api/v1/payments", paymentsRouter)
	mux.Handle("/api/v1/payments/", paymentsRouter)

	subsRouter := s.authMiddleware(s.subscriptionsRouter())
	mux.Handle("/api/v1/subscriptions/", subsRouter)
}

func (s *Server) Start(port int) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	s.server = &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	s.log.Info().Int("port", port).Msg("admin API listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// loginHandler exchanges the static API key for a short-lived session token.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.apiKey == "" || req.APIKey != s.apiKey {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	signed, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "Failed to mint session", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": signed})
}

// authMiddleware accepts either the static API key or a minted session
// token as a Bearer credential (or the session cookie).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if hdr := r.Header.Get("Authorization"); hdr != "" {
			parts := strings.SplitN(hdr, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
				return
			}
			if parts[1] == s.apiKey {
				next.ServeHTTP(w, r)
				return
			}
		}

		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) usersRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/users")
		path = strings.Trim(path, "/")

		if path == "" {
			usersListHandler(s.userUC)(w, r)
			return
		}
		userGetHandler(s.userUC, s.subUC)(w, r)
	})
}

func (s *Server) plansRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/plans")
		path = strings.Trim(path, "/")

		if path == "" {
			switch r.Method {
			case http.MethodGet:
				plansListHandler(s.planUC)(w, r)
			case http.MethodPost:
				plansCreateHandler(s.planUC)(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		switch r.Method {
		case http.MethodPut:
			plansUpdateHandler(s.planUC)(w, r)
		case http.MethodDelete:
			plansDeleteHandler(s.planUC)(w, r)
		case http.MethodGet:
			planGetHandler(s.planUC)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func (s *Server) paymentsRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/payments")
		path = strings.Trim(path, "/")

		if path == "" {
			paymentsListHandler(s.paymentUC)(w, r)
			return
		}
		paymentGetHandler(s.paymentUC)(w, r)
	})
}

func (s *Server) subscriptionsRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/subscriptions/")
		subscriptionActionHandler(s.subUC, path)(w, r)
	})
}
