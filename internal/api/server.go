// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/base-guestbook/internal/logging"
	"github.com/base-guestbook/internal/models"
	"github.com/base-guestbook/internal/service"
	"github.com/base-guestbook/internal/types"
	"github.com/gorilla/mux"
)

// Service interfaces for dependency injection and testing

// UserServiceInterface defines the user service operations
type UserServiceInterface interface {
	Authenticate(ctx context.Context, walletAddress, username string) (*service.AuthResult, error)
	GetByWalletAddress(ctx context.Context, walletAddress string) (*models.User, error)
	List(ctx context.Context, page, limit int) ([]*models.User, types.Pagination, error)
}

// ActivityServiceInterface defines the activity service operations
type ActivityServiceInterface interface {
	Record(ctx context.Context, input *service.RecordInput) (*models.Activity, error)
	List(ctx context.Context, activityType types.ActivityType, page, limit int) ([]*models.Activity, types.Pagination, error)
	ListByUser(ctx context.Context, userID string, page, limit int) ([]*models.Activity, types.Pagination, error)
}

// GuestbookServiceInterface defines the guestbook write-path operations
type GuestbookServiceInterface interface {
	SignAndRecord(ctx context.Context, input *service.SignInput) (*service.SignResult, error)
	RecordMessage(ctx context.Context, input *service.RecordMessageInput) (*models.GuestbookMessage, error)
	ApproveSigning(ctx context.Context) (string, error)
	ListMessages(ctx context.Context, page, limit int) ([]*models.GuestbookMessage, types.Pagination, error)
	AddReaction(ctx context.Context, messageID, userID string, kind types.ReactionKind) (*models.GuestbookMessage, error)
	Status(ctx context.Context) (*service.LedgerStatus, error)
}

// QueryServiceInterface defines the merged read facade
type QueryServiceInterface interface {
	ListEntries(ctx context.Context, query *service.EntryQuery) (*service.EntryPage, error)
}

// HealthChecker reports dependency health
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server
type Server struct {
	router           *mux.Router
	handler          http.Handler
	httpServer       *http.Server
	userService      UserServiceInterface
	activityService  ActivityServiceInterface
	guestbookService GuestbookServiceInterface
	queryService     QueryServiceInterface
	mirrorHealth     HealthChecker
	cacheHealth      HealthChecker
	config           *ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestsPerSecond int
	Burst             int
}

// NewServer creates a new API server instance
func NewServer(
	config *ServerConfig,
	userService UserServiceInterface,
	activityService ActivityServiceInterface,
	guestbookService GuestbookServiceInterface,
	queryService QueryServiceInterface,
	mirrorHealth HealthChecker,
	cacheHealth HealthChecker,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		userService:      userService,
		activityService:  activityService,
		guestbookService: guestbookService,
		queryService:     queryService,
		mirrorHealth:     mirrorHealth,
		cacheHealth:      cacheHealth,
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	s.setupRoutes()

	// Middleware wraps the whole router, not individual routes, so CORS
	// preflights and 404s still pass through it. Order matters: logging
	// outermost, recovery before the limiter.
	s.handler = LoggingMiddleware(
		RecoveryMiddleware(
			CORSMiddleware(
				RateLimitMiddleware(rateLimiter)(s.router))))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// User endpoints
	api.HandleFunc("/users/auth", s.handleAuthUser).Methods("POST")
	api.HandleFunc("/users", s.handleListUsers).Methods("GET")
	api.HandleFunc("/users/{walletAddress}", s.handleGetUser).Methods("GET")

	// Activity endpoints
	api.HandleFunc("/activities", s.handleRecordActivity).Methods("POST")
	api.HandleFunc("/activities", s.handleListActivities).Methods("GET")
	api.HandleFunc("/activities/user/{userId}", s.handleListUserActivities).Methods("GET")

	// Guestbook endpoints
	api.HandleFunc("/guestbook/messages", s.handleRecordMessage).Methods("POST")
	api.HandleFunc("/guestbook/messages", s.handleListMessages).Methods("GET")
	api.HandleFunc("/guestbook/messages/{messageId}/reactions", s.handleAddReaction).Methods("POST")
	api.HandleFunc("/guestbook/entries", s.handleListEntries).Methods("GET")
	api.HandleFunc("/guestbook/sign", s.handleSign).Methods("POST")
	api.HandleFunc("/guestbook/approve", s.handleApprove).Methods("POST")

	// Ledger endpoints
	api.HandleFunc("/ledger/status", s.handleLedgerStatus).Methods("GET")
}

// handleHealth handles health check requests. Degraded dependencies are
// reported but do not fail the check; the chain is the source of truth
// and the API can serve chain reads without them.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":  "healthy",
		"service": "base-guestbook",
	}

	deps := map[string]string{}
	if s.mirrorHealth != nil {
		if err := s.mirrorHealth.Ping(ctx); err != nil {
			deps["mongo"] = "unreachable"
			health["status"] = "degraded"
		} else {
			deps["mongo"] = "ok"
		}
	}
	if s.cacheHealth != nil {
		if err := s.cacheHealth.Ping(ctx); err != nil {
			deps["redis"] = "unreachable"
			health["status"] = "degraded"
		} else {
			deps["redis"] = "ok"
		}
	}
	if len(deps) > 0 {
		health["dependencies"] = deps
	}

	respondJSON(w, http.StatusOK, health)
}

// Router returns the full middleware-wrapped handler, for tests
func (s *Server) Router() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
