package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/inovalupa/govtech-analyzer/internal/api/handlers"
	appMiddleware "github.com/inovalupa/govtech-analyzer/internal/api/middlewares"
	"github.com/inovalupa/govtech-analyzer/internal/config"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/services"
	"github.com/inovalupa/govtech-analyzer/internal/session"
)

// Services groups what the HTTP layer talks to.
type Services struct {
	Specialists *config.Specialists
	Sessions    *session.Registry
	Users       *services.UserService
	Projects    *services.ProjectService
	Uploads     *services.UploadService
	Proposals   *services.ProposalService
	Chat        *services.ChatService
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, log *logger.Logger, svc Services) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           NewRouter(cfg, log, svc),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// NewRouter returns the /api routes.
func NewRouter(cfg *config.Config, log *logger.Logger, svc Services) http.Handler {
	secret := []byte(cfg.JWTSecret)

	authHandler := handlers.NewAuthHandler(svc.Users, svc.Sessions, secret, log)
	userHandler := handlers.NewUserHandler(svc.Users, svc.Sessions, log)
	projectHandler := handlers.NewProjectHandler(svc.Projects, svc.Uploads, svc.Proposals, svc.Sessions, cfg.MaxUploadMB, log)
	proposalHandler := handlers.NewProposalHandler(svc.Proposals, svc.Projects, cfg.MaxUploadMB, log)
	chatHandler := handlers.NewChatHandler(svc.Chat, svc.Sessions, log)
	specialistHandler := handlers.NewSpecialistHandler(svc.Specialists)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Analysis of a long edital can take minutes.
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(secret, svc.Sessions))

			protected.Post("/logout", authHandler.Logout)
			protected.Get("/session", authHandler.Session)
			protected.Put("/session/tab", authHandler.SelectTab)

			protected.Get("/specialists", specialistHandler.List)

			protected.Get("/projects", projectHandler.List)
			protected.Post("/projects", projectHandler.Create)
			protected.Route("/projects/{id}", func(p chi.Router) {
				p.Get("/", projectHandler.Get)
				p.Post("/select", projectHandler.Select)
				p.Post("/files", projectHandler.Upload)
				p.Get("/files/{fileId}", projectHandler.Download)
				p.Get("/history", projectHandler.History)
				p.Post("/history", projectHandler.AppendHistory)
				p.Post("/documents", projectHandler.GenerateDocument)
				p.Get("/proposal-template", proposalHandler.Template)
				p.Put("/proposal-template", proposalHandler.SetTemplate)
				p.Post("/proposal", proposalHandler.Generate)
			})
			protected.Post("/proposals/export", proposalHandler.Export)

			protected.Get("/chat", chatHandler.History)
			protected.Post("/chat", chatHandler.Send)
			protected.Post("/chat/archive", chatHandler.Archive)

			protected.Group(func(admin chi.Router) {
				admin.Use(appMiddleware.RequireAdmin)
				admin.Get("/users", userHandler.List)
				admin.Post("/users", userHandler.Create)
				admin.Delete("/users/{id}", userHandler.Delete)
			})
		})
	})

	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
