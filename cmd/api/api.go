package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/utils"
	"github.com/terrascenik/server/config"
	"github.com/terrascenik/server/db"
	"github.com/terrascenik/server/logger"
	"github.com/terrascenik/server/monitoring"
	"github.com/terrascenik/server/service/aggregate"
	"github.com/terrascenik/server/service/feed"
	"github.com/terrascenik/server/service/follow"
	"github.com/terrascenik/server/service/posts"
	"github.com/terrascenik/server/service/unsplash"
	"github.com/terrascenik/server/service/upload"
	"github.com/terrascenik/server/service/user"
	"github.com/terrascenik/server/session"
)

type APIServer struct {
	address  string
	store    *db.Store
	sessions *session.Manager
	cfg      *config.Config
	logger   *zap.Logger
	server   *http.Server
}

func NewApiServer(cfg *config.Config, store *db.Store, sessions *session.Manager, logger *zap.Logger) *APIServer {
	s := &APIServer{
		address:  cfg.Server.Address(),
		store:    store,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
	s.server = &http.Server{
		Addr:              s.address,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.server.Handler = s.Handler()
	return s
}

// Handler builds the full HTTP handler: API routes, uploads, metrics and the
// CORS and panic recovery wrappers.
func (s *APIServer) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(logger.Middleware(s.logger), monitoring.InstrumentHandler)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	subrouter := router.PathPrefix(s.cfg.Server.APIPrefix).Subrouter()
	subrouter.Use(utils.WithTimeout(s.cfg.Database.Timeout))

	requireLogin := utils.RequireLogin(s.sessions, s.logger)
	optionalLogin := utils.OptionalLogin(s.sessions)
	aggregator := aggregate.New(s.store)

	userHandler := user.NewHandler(user.NewService(s.store, aggregator, s.cfg.Auth.HashPasswords, s.logger), s.sessions, s.logger)
	userHandler.RegisterRoutes(subrouter, requireLogin)

	postHandler := posts.NewPostHandler(posts.NewService(s.store, aggregator, s.logger), s.cfg.Uploads, s.logger)
	postHandler.RegisterRoutes(subrouter, requireLogin, optionalLogin)

	followHandler := follow.NewHandler(follow.NewService(s.store, s.logger), s.logger)
	followHandler.RegisterRoutes(subrouter, requireLogin)

	feedHandler := feed.NewHandler(feed.NewBuilder(s.store, aggregator, s.logger), s.logger)
	feedHandler.RegisterRoutes(subrouter, requireLogin)

	uploadHandler := upload.NewHandler(s.cfg.Uploads, s.logger)
	uploadHandler.RegisterRoutes(subrouter, requireLogin)
	uploadHandler.RegisterStatic(router)

	unsplashHandler := unsplash.NewHandler(unsplash.NewClient(s.cfg.Unsplash.BaseURL, s.cfg.Unsplash.AccessKey), s.logger)
	unsplashHandler.RegisterRoutes(subrouter)

	subrouter.HandleFunc("/test", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.Envelope{
			"message": "Terra Scenik API is running!",
			"store":   s.store.Driver(),
		})
	}).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.cfg.Server.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowCredentials(),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.logger)),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(cors(router))
}

func (s *APIServer) Run() error {
	s.logger.Info("server running", zap.String("address", s.address), zap.String("prefix", s.cfg.Server.APIPrefix))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
