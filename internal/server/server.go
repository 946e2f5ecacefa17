package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gravitas-games/orp/internal/config"
	"github.com/gravitas-games/orp/internal/protection"
	"github.com/gravitas-games/orp/pkg/models"
)

// Server is the bridge game hosts connect to
type Server struct {
	config       *config.Config
	engine       *protection.Engine
	session      *Session
	gatherer     prometheus.Gatherer
	upgrader     websocket.Upgrader
	httpSrv      *http.Server
	jwtValidator *JWTValidator
	redis        *redis.Client
	log          zerolog.Logger

	// Connection tracking
	connections map[*Connection]bool
	connMu      sync.RWMutex

	// Shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new server instance. The engine must use session as its
// notifier so connect notices reach the reporting host.
func New(cfg *config.Config, engine *protection.Engine, session *Session, gatherer prometheus.Gatherer, log zerolog.Logger) (*Server, error) {
	log = log.With().Str("component", "server").Logger()
	ctx, cancel := context.WithCancel(context.Background())

	srv := &Server{
		config:      cfg,
		engine:      engine,
		session:     session,
		gatherer:    gatherer,
		connections: make(map[*Connection]bool),
		ctx:         ctx,
		cancel:      cancel,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Hosts are servers, not browsers; the token is the gate.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	if cfg.Redis.Address != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		srv.redis = redisClient
		log.Info().Str("address", cfg.Redis.Address).Msg("connected to Redis")
	}

	if cfg.JWT.PublicKeyURL != "" {
		jwtValidator, err := NewJWTValidator(ctx, cfg, srv.redis, log)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to initialize JWT validator: %w", err)
		}
		srv.jwtValidator = jwtValidator
	} else {
		log.Warn().Msg("host authentication disabled: jwt.public_key_url is empty")
	}

	log.Info().Msg("server initialized")
	return srv, nil
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle(s.config.Metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start begins listening for connections
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().
		Str("ws", fmt.Sprintf("ws://%s/ws", addr)).
		Str("health", fmt.Sprintf("http://%s/health", addr)).
		Msg("listening")

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Every open host connection is
// closed, which disconnects the players it reported.
func (s *Server) Shutdown() error {
	s.log.Info().Msg("shutting down server")

	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	s.connMu.RLock()
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.connMu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Error().Err(err).Msg("Redis close error")
		}
	}

	s.log.Info().Msg("server shutdown complete")
	return nil
}

// handleWebSocket authenticates a game host and upgrades the connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	hostID := r.RemoteAddr

	if s.jwtValidator != nil {
		tokenString := extractTokenFromHeader(r)
		if tokenString == "" {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("missing host token")
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		host, err := s.jwtValidator.ValidateToken(tokenString)
		if err != nil {
			s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("invalid host token")
			http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
			return
		}
		hostID = host.ID
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := NewConnection(ws, s, hostID)

	s.connMu.Lock()
	s.connections[conn] = true
	s.connMu.Unlock()

	conn.log.Info().Str("remote", r.RemoteAddr).Msg("host connected")

	conn.Handle()

	s.connMu.Lock()
	delete(s.connections, conn)
	s.connMu.Unlock()

	conn.log.Info().Msg("host disconnected")
}

type healthResponse struct {
	Status  string `json:"status"`
	Tribes  int    `json:"tracked_tribes"`
	Players int    `json:"tracked_players"`
	SessionStatus
	Online []models.Player `json:"online_players"`
}

// handleHealth reports liveness, tracked state sizes and online players
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	tribes, players := s.engine.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(healthResponse{
		Status:        "ok",
		Tribes:        tribes,
		Players:       players,
		SessionStatus: s.session.GetStatus(),
		Online:        s.session.GetPlayers(),
	})
}
