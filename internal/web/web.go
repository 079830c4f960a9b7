package web

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"planynov/internal/config"
	"planynov/internal/ingest"
	appLog "planynov/internal/log"
	"planynov/internal/metrics"
	"planynov/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server provides the listing page, the upload endpoint and the JSON API
// over the occupancy dataset.
type Server struct {
	cfg    *config.Config
	store  *store.Store
	ingest *ingest.Service
	router *chi.Mux
	page   *template.Template
	srv    *http.Server

	now func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st *store.Store, svc *ingest.Service) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		ingest: svc,
		router: chi.NewRouter(),
		page:   template.Must(template.New("index.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/index.html")),
		now:    time.Now,
	}
	s.setupMiddleware()
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP on cfg.Listen until Shutdown is called.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(recoverJSON)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) registerRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Get("/", s.handleIndex)
	s.router.Post("/upload", s.handleUpload)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/salles/occupation", s.handleOccupation)
		r.Get("/stats", s.handleStats)
		r.Get("/uploads/last", s.handleLastUpload)
	})

	s.router.Handle("/public/*", s.staticFileServer())

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint non trouvé")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Méthode non autorisée")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer serves cfg.PublicDir under /public/. Directory listings
// are not exposed.
func (s *Server) staticFileServer() http.Handler {
	fileServer := http.StripPrefix("/public/", http.FileServer(http.Dir(s.cfg.PublicDir)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/public/" || path[len(path)-1] == '/' {
			writeError(w, http.StatusNotFound, "Endpoint non trouvé")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
