package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/georgemunganga/retail-billing/internal/config"
	"github.com/georgemunganga/retail-billing/internal/httpx"
	"github.com/georgemunganga/retail-billing/internal/logging"
	"github.com/georgemunganga/retail-billing/internal/modules/archive"
	"github.com/georgemunganga/retail-billing/internal/modules/assist"
	"github.com/georgemunganga/retail-billing/internal/modules/auth"
	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
	"github.com/georgemunganga/retail-billing/internal/modules/ledger"
)

// app holds every wired service of one terminal.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   archive.Store
	catalog catalog.Service
	bills   ledger.Service
	archive archive.Service
	assist  assist.Service
	auth    auth.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("archive store opened", zap.String("driver", cfg.Store.Driver))
	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		logger.Warn("JWT_SECRET is not set; session tokens use the built-in development secret")
	}

	gen, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	// ── Billing core ────────────────────────────────────────
	policy := ledger.Policy{TaxRate: cfg.Billing.TaxRate, FeeAmount: cfg.Billing.FeeAmount}
	catalogService := catalog.NewService(catalog.NewMemoryRepository(catalog.DefaultProducts()), logger.Named("catalog"))
	billService := ledger.NewService(policy, catalogService, logger.Named("ledger"))
	archiveService := archive.Open(ctx, store, billService, logger.Named("archive"))

	// ── Collaborators ───────────────────────────────────────
	assistService := assist.NewService(gen, catalogService, assist.Options{
		Concurrency:       cfg.Assist.Concurrency,
		Timeout:           cfg.Assist.Timeout,
		VideoPollInterval: cfg.Assist.VideoPollInterval,
		VideoTimeout:      cfg.Assist.VideoTimeout,
	}, logger.Named("assist"))
	billService.Subscribe(assistService.OnBillChanged)

	authService := auth.NewService(auth.Options{
		Secret:        []byte(cfg.Auth.JWTSecret),
		TTL:           cfg.Auth.SessionTTL,
		AvatarTimeout: cfg.Assist.Timeout,
	}, assistService, billService, logger.Named("auth"))

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		catalog: catalogService,
		bills:   billService,
		archive: archiveService,
		assist:  assistService,
		auth:    authService,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (archive.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return archive.NewMemoryStore(), nil
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		store := archive.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return store, nil
	default:
		return archive.OpenBoltStore(cfg.Store.Path)
	}
}

func newGenerator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (assist.Generator, error) {
	if cfg.Assist.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, assist features are disabled")
		return assist.NewDisabledGenerator(), nil
	}
	return assist.NewGeminiGenerator(ctx, cfg.Assist.APIKey, assist.Models{
		Image: cfg.Assist.ImageModel,
		Text:  cfg.Assist.TextModel,
		Video: cfg.Assist.VideoModel,
	})
}

func (a *app) close() {
	a.auth.Close()
	a.assist.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing archive store", zap.Error(err))
	}
}

func (a *app) router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logging.RequestLogger(a.logger.Named("http")))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.Respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	requireCashier := auth.RequireCashier(a.auth)
	auth.NewHandler(a.auth).RegisterRoutes(router)
	catalog.NewHandler(a.catalog).RegisterRoutes(router, requireCashier)
	ledger.NewHandler(a.bills).RegisterRoutes(router)
	archive.NewHandler(a.archive, a.bills.Policy()).RegisterRoutes(router)
	assist.NewHandler(a.assist).RegisterRoutes(router, requireCashier)
	return router
}

// withApp loads configuration and runs fn against a wired app. Logs go to stderr so
// command output stays clean.
func withApp(ctx context.Context, fn func(a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Logger.Output = "stderr"
	logger, err := logging.New(cfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	a, err := newApp(ctx, cfg, logger)
	if errors.Is(err, archive.ErrStoreLocked) {
		return fmt.Errorf("%s is in use, probably by a running \"billing serve\"; stop it or use the HTTP API", cfg.Store.Path)
	}
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
