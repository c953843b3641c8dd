package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/showctl/internal/audit"
	"github.com/nerrad567/showctl/internal/auth"
	"github.com/nerrad567/showctl/internal/automation"
	"github.com/nerrad567/showctl/internal/infrastructure/config"
	"github.com/nerrad567/showctl/internal/infrastructure/logging"
	"github.com/nerrad567/showctl/internal/infrastructure/metrics"
)

// defaultShutdownTimeout bounds Close when the config leaves it unset.
const defaultShutdownTimeout = 10 * time.Second

// AuditLogger queues audit entries. *audit.Writer satisfies it.
type AuditLogger interface {
	Log(e audit.Entry)
}

// HealthChecker is implemented by infrastructure the health endpoint reports on.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
//
// History, AuditRepo, Audit, Metrics and Checks are optional.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Manager   *automation.Manager
	History   automation.History
	AuditRepo audit.Repository
	Audit     AuditLogger
	Metrics   *metrics.Metrics
	Issuer    *auth.Issuer
	Operator  *auth.Operator
	Tickets   *auth.TicketStore
	Checks    map[string]HealthChecker
	Version   string
}

// Server is the HTTP API server.
//
// It is created with New, started with Start and stopped with Close.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	manager   *automation.Manager
	history   automation.History
	auditRepo audit.Repository
	audit     AuditLogger
	metrics   *metrics.Metrics
	issuer    *auth.Issuer
	operator  *auth.Operator
	tickets   *auth.TicketStore
	checks    map[string]HealthChecker
	limiter   *ipLimiter
	version   string
	started   time.Time

	hub    *Hub
	server *http.Server
	cancel context.CancelFunc

	mu       sync.Mutex
	detaches []func()
}

// New creates a new API server with the given dependencies.
//
// The server is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("scene manager is required")
	}
	if deps.Issuer == nil || deps.Operator == nil || deps.Tickets == nil {
		return nil, fmt.Errorf("issuer, operator and ticket store are required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger.Component("api"),
		manager:   deps.Manager,
		history:   deps.History,
		auditRepo: deps.AuditRepo,
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		issuer:    deps.Issuer,
		operator:  deps.Operator,
		tickets:   deps.Tickets,
		checks:    deps.Checks,
		version:   deps.Version,
		started:   time.Now(),
	}
	if rl := deps.Security.RateLimit; rl.Enabled {
		s.limiter = newIPLimiter(rl.RequestsPerMinute, rl.Burst)
	}

	s.hub = NewHub(s.wsCfg, s.logger)
	if s.metrics != nil {
		s.hub.onCount = func(n int) { s.metrics.WSClients.Set(float64(n)) }
	}
	return s, nil
}

// Start attaches the hub to the manager's event streams and begins listening
// in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.limiter != nil {
		go s.limiter.sweepLoop(srvCtx)
	}
	s.attachEvents()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// attachEvents forwards manager events to WebSocket subscribers.
func (s *Server) attachEvents() {
	unsubState := s.manager.Subscribe(func(c automation.StateChange) {
		s.hub.Broadcast(ChannelSceneState, c)
	})
	unsubSettled := s.manager.OnSettlement(func(st automation.Settlement) {
		s.hub.Broadcast(ChannelActionSettled, st)
	})

	s.mu.Lock()
	s.detaches = append(s.detaches, unsubState, unsubSettled)
	s.mu.Unlock()
}

func (s *Server) detachEvents() {
	s.mu.Lock()
	detaches := s.detaches
	s.detaches = nil
	s.mu.Unlock()

	for _, fn := range detaches {
		fn()
	}
}

// Close detaches from the manager and shuts the listener down, waiting for
// in-flight requests up to the configured shutdown timeout.
func (s *Server) Close() error {
	s.detachEvents()
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	timeout := time.Duration(s.cfg.Timeouts.Shutdown) * time.Second
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
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
