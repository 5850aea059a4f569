package api

import (
	"log/slog"

	healthAPI "gymkeeper/internal/app/server/api/http/health"
	"gymkeeper/internal/app/server/api/http/middleware"
	"gymkeeper/internal/app/server/api/http/middleware/auth"
	"gymkeeper/internal/app/server/api/http/middleware/logger"
	recordAPI "gymkeeper/internal/app/server/api/http/record"
	syncAPI "gymkeeper/internal/app/server/api/http/sync"
	userAPI "gymkeeper/internal/app/server/api/http/user"
	"gymkeeper/internal/app/server/config"
	"gymkeeper/internal/domain/record"
	"gymkeeper/internal/domain/session"
	"gymkeeper/internal/domain/sync"
	"gymkeeper/internal/domain/user"
	"gymkeeper/internal/infrastructure/storage/postgres"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	Health *healthAPI.Handler
	User   *userAPI.Handler
	Record *recordAPI.Handler
	Sync   *syncAPI.Handler
}

// New builds a chi mux with every operation registered through huma.
func New(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	humaConfig := huma.DefaultConfig("Gymkeeper API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, humaConfig)

	h := handlers(storage, cfg, log)
	h.Health.SetupRoutes(API)
	h.User.SetupRoutes(API)
	h.Record.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(storage *postgres.Storage, cfg *config.Config, log *slog.Logger) *Handlers {
	pool := storage.Pool()

	sessionRepo := postgres.NewSessionRepository(pool, log)
	sessionService := session.NewService(sessionRepo, log)
	authMW := auth.New(sessionService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, middlewares.GetAllAndClear())

	userRepo := postgres.NewUserRepository(pool, log)
	userService := user.NewService(userRepo, user.NewPasswordValidator(), log)
	middlewares.Add(loggerMW.Middleware())
	userHandler := userAPI.NewHandler(userService, sessionService, log, middlewares.GetAllAndClear())

	recordRepo := postgres.NewRecordRepository(pool, log)
	recordService := record.NewService(recordRepo, log)
	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	recordHandler := recordAPI.NewHandler(recordService, log, middlewares.GetAllAndClear())

	syncRepo := postgres.NewSyncRepository(pool, log)
	syncService := sync.NewService(recordService, syncRepo, log, &sync.ServiceConfig{
		PageSize: cfg.Sync.ChangesPageSize,
	})
	middlewares.Add(authMW.Middleware())
	middlewares.Add(loggerMW.Middleware())
	syncHandler := syncAPI.NewHandler(syncService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health: healthHandler,
		User:   userHandler,
		Record: recordHandler,
		Sync:   syncHandler,
	}
}
