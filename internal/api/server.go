package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/behome-bridge/internal/cloud"
	"github.com/nerrad567/behome-bridge/internal/credential"
	"github.com/nerrad567/behome-bridge/internal/device"
	"github.com/nerrad567/behome-bridge/internal/infrastructure/config"
	"github.com/nerrad567/behome-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/behome-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/behome-bridge/internal/poller"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// PollerStatus reports the poll loop's view of the cloud connection.
// Satisfied by *poller.Poller.
type PollerStatus interface {
	Health() poller.Health
	RefreshNow() error
}

// CredentialManager is the credential store surface the API needs.
// Satisfied by *credential.Store.
type CredentialManager interface {
	Status() credential.Status
	SetToken(tok cloud.Token) error
	Clear() error
}

// TokenExchanger exchanges an OAuth2 authorization code for a token.
// Satisfied by *cloud.OAuth.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (cloud.Token, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Registry    *device.Registry
	MQTT        *mqtt.Client
	Poller      PollerStatus
	Credentials CredentialManager
	OAuth       TokenExchanger // optional: nil when a static private key is configured
	History     HistoryStore   // optional: nil disables history endpoints
	Metrics     *prometheus.Registry
	DB          *sql.DB // optional: pool stats on /health
	Version     string
}

// HistoryStore retrieves recorded device state changes.
// Satisfied by device.StateHistoryRepository implementations.
type HistoryStore interface {
	GetHistory(ctx context.Context, deviceID string, limit int) ([]device.StateHistoryEntry, error)
}

// Server is the HTTP API server for the BeHome bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	registry    *device.Registry
	mqtt        *mqtt.Client
	poller      PollerStatus
	credentials CredentialManager
	oauth       TokenExchanger
	history     HistoryStore
	metricsReg  *prometheus.Registry
	db          *sql.DB
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	tickets     *ticketStore
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registry, poller, credentials)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Poller == nil {
		return nil, fmt.Errorf("poller is required")
	}
	if deps.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	// MQTT is optional: WebSocket relay and command dispatch are disabled
	// without it, but REST reads still function.

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		registry:    deps.Registry,
		mqtt:        deps.MQTT,
		poller:      deps.Poller,
		credentials: deps.Credentials,
		oauth:       deps.OAuth,
		history:     deps.History,
		metricsReg:  deps.Metrics,
		db:          deps.DB,
		version:     deps.Version,
		startTime:   time.Now(),
		tickets:     newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, subscribes to MQTT state
// topics for real-time WebSocket broadcast, and launches the HTTP listener
// in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Abandoned tickets expire but still occupy the map until swept.
	go s.tickets.sweepLoop(srvCtx)

	// Subscribe to state publications for WebSocket broadcast
	if err := s.subscribeStateUpdates(); err != nil {
		s.logger.Warn("failed to subscribe to state updates for WebSocket", "error", err)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
