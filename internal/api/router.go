package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wandbridge/internal/auth"
	"wandbridge/internal/bridge"
	"wandbridge/internal/config"
	"wandbridge/internal/events"
	"wandbridge/internal/history"
)

// Server represents the API server
type Server struct {
	router       *chi.Mux
	bridge       *bridge.Bridge
	pamAuth      *auth.PAMAuth
	jwtManager   *auth.JWTManager
	authMw       *auth.Middleware
	wsTokenStore *auth.WSTokenStore
	eventStore   *events.Store
	castHistory  *history.Store
	config       *config.Config
	version      string
}

// NewServer creates new API server
func NewServer(cfg *config.Config, br *bridge.Bridge, castHistory *history.Store, eventStore *events.Store, version string) *Server {
	pamAuth := auth.NewPAMAuth()
	jwtManager := auth.NewJWTManager(cfg.JWTSecret(), cfg.JWTExpiration())
	authMw := auth.NewMiddleware(jwtManager)
	wsTokenStore := auth.NewWSTokenStore()

	s := &Server{
		router:       chi.NewRouter(),
		bridge:       br,
		pamAuth:      pamAuth,
		jwtManager:   jwtManager,
		authMw:       authMw,
		wsTokenStore: wsTokenStore,
		eventStore:   eventStore,
		castHistory:  castHistory,
		config:       cfg,
		version:      version,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Create handlers
	authHandler := NewAuthHandler(s.pamAuth, s.jwtManager, s.wsTokenStore, s.eventStore)
	wandHandler := NewWandHandler(s.bridge)
	historyHandler := NewCastHistoryHandler(s.castHistory)
	eventsHandler := NewEventsHandler(s.eventStore)
	settingsHandler := NewSettingsHandler(s.config, s.eventStore)
	traceHandler := NewTraceHandler(s.bridge, s.wsTokenStore, s.eventStore)

	// Public routes
	r.Post("/api/auth/login", authHandler.Login)

	// Protected API routes
	r.Group(func(r chi.Router) {
		// Apply auth middleware only if NoAuth is false
		if !s.config.NoAuth() {
			r.Use(s.authMw.RequireAuth)
		} else {
			// In no-auth mode, inject a fake admin user
			r.Use(s.fakeAuthMiddleware)
		}

		// Auth
		r.Post("/api/auth/logout", authHandler.Logout)
		r.Get("/api/auth/me", authHandler.Me)
		r.Get("/api/auth/ws-token", authHandler.WSToken)

		// Events
		r.Get("/api/events", eventsHandler.List)

		// Wand
		r.Get("/api/wand/status", wandHandler.Status)
		r.Get("/api/wand/spells", wandHandler.Spells)
		r.Post("/api/wand/calibrate", wandHandler.Calibrate)
		r.Post("/api/wand/buzz", wandHandler.Buzz)
		r.Post("/api/wand/led", wandHandler.LED)
		r.Post("/api/wand/lights/clear", wandHandler.ClearLights)
		r.Post("/api/wand/macro", wandHandler.Macro)
		r.Post("/api/wand/payoff", wandHandler.Payoff)
		r.Post("/api/wand/reset", wandHandler.Reset)

		// Gesture trace (WebSocket)
		r.Get("/api/wand/trace", traceHandler.Stream)

		// Cast history
		r.Get("/api/history", historyHandler.List)
		r.Get("/api/history/stats", historyHandler.Stats)

		// Settings
		r.Get("/api/settings", settingsHandler.Get)
		r.Post("/api/settings", settingsHandler.Update)

		// Version
		r.Get("/api/system/version", s.handleVersion)
	})
}

// handleVersion returns the running build version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// writeJSON writes JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// fakeAuthMiddleware injects a fake admin user for no-auth mode
func (s *Server) fakeAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fakeUser := &auth.User{
			Username: "dev",
			UID:      "0",
			Role:     auth.RoleAdmin,
		}
		ctx := r.Context()
		ctx = auth.SetUserContext(ctx, fakeUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
