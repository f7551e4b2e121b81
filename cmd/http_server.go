package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/auth-rbac/api"
	"github.com/frahmantamala/auth-rbac/internal"
	"github.com/frahmantamala/auth-rbac/internal/auth"
	"github.com/frahmantamala/auth-rbac/internal/authtoken"
	authtokenPostgres "github.com/frahmantamala/auth-rbac/internal/authtoken/postgres"
	"github.com/frahmantamala/auth-rbac/internal/core/datamodel"
	"github.com/frahmantamala/auth-rbac/internal/core/events"
	"github.com/frahmantamala/auth-rbac/internal/credential"
	"github.com/frahmantamala/auth-rbac/internal/metrics"
	"github.com/frahmantamala/auth-rbac/internal/notification"
	"github.com/frahmantamala/auth-rbac/internal/permission"
	permissionPostgres "github.com/frahmantamala/auth-rbac/internal/permission/postgres"
	"github.com/frahmantamala/auth-rbac/internal/rbac"
	rbacPostgres "github.com/frahmantamala/auth-rbac/internal/rbac/postgres"
	rbacRedis "github.com/frahmantamala/auth-rbac/internal/rbac/redis"
	"github.com/frahmantamala/auth-rbac/internal/role"
	rolePostgres "github.com/frahmantamala/auth-rbac/internal/role/postgres"
	"github.com/frahmantamala/auth-rbac/internal/transport"
	"github.com/frahmantamala/auth-rbac/internal/transport/rest"
	"github.com/frahmantamala/auth-rbac/internal/user"
	userPostgres "github.com/frahmantamala/auth-rbac/internal/user/postgres"
	"github.com/frahmantamala/auth-rbac/internal/verification"
	verificationPostgres "github.com/frahmantamala/auth-rbac/internal/verification/postgres"
	"github.com/frahmantamala/auth-rbac/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

// Dependencies holds the process-wide resources and the services built on
// them. close releases them in reverse order of acquisition.
type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	Redis    *goredis.Client
	Bus      *events.EventBus
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Resolver *rbac.Resolver
	Users    user.RepositoryAPI
	Roles    *role.Service
	Perms    *permission.Service

	closers []func() error
}

func (d *Dependencies) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Logger.Error("failed to release resource", "error", err)
		}
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.close()

	router, err := setupRoutes(deps)
	if err != nil {
		deps.Logger.Error("failed to set up routes", "error", err)
		return
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		// queued notifications must reach the broker before its connection closes
		if err := deps.Bus.Drain(ctx); err != nil {
			deps.Logger.Warn("pending events dropped", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
		}
	}

	deps.Logger.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) (*chi.Mux, error) {
	cfg := deps.Config
	log := deps.Logger
	clock := credential.SystemClock{}

	sender, err := notificationSender(deps)
	if err != nil {
		return nil, err
	}
	notification.Subscribe(deps.Bus, sender)
	subscribeAuditLog(deps.Bus, log)

	signer := credential.NewJWTSigner(credential.JWTConfig{
		Secret:     cfg.Security.JWTSecret,
		Issuer:     cfg.Security.JWTIssuer,
		AccessTTL:  cfg.Security.AccessTokenDuration,
		RefreshTTL: cfg.Security.RefreshTokenDuration,
	}, clock, nil)
	sessions := authtoken.NewService(authtokenPostgres.NewAuthTokenRepository(deps.Gorm), signer, clock, log)
	verifier := verification.NewService(
		verificationPostgres.NewVerificationRepository(deps.Gorm),
		verification.Config{
			VerificationTTL: cfg.Security.VerificationTokenTTL,
			ResetTTL:        cfg.Security.ResetTokenTTL,
		},
		clock, nil, log)

	hasher := credential.NewPasswordHasher(cfg.Security.BCryptCost)
	tx := datamodel.NewTransactor(deps.Gorm)
	authService := auth.NewService(auth.Dependencies{
		Tx:       tx,
		Users:    deps.Users,
		Verifier: verifier,
		Sessions: sessions,
		Roles:    deps.Resolver,
		Hasher:   hasher,
		Events:   deps.Bus,
		Metrics:  deps.Metrics,
		Clock:    clock,
		Logger:   log,
	})

	userService := user.NewService(deps.Users, deps.Resolver, hasher, clock, log).WithTx(tx)

	base := transport.NewBaseHandler(log)
	health := rest.NewHealthHandler(deps.DB.DB)
	if deps.Redis != nil {
		health.WithCheck("redis", func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
	}

	routerDeps := rest.RouterDependencies{
		AuthHandler:       auth.NewHandler(base, authService),
		UserHandler:       user.NewHandler(base, userService),
		RoleHandler:       role.NewHandler(base, deps.Roles),
		PermissionHandler: permission.NewHandler(base, deps.Perms),
		Guard:             auth.NewGuard(base, sessions, deps.Users, deps.Resolver, deps.Metrics),
		Health:            health,
		OpenAPI:           openAPIDocument(deps),
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Logger:            log,
	}
	if cfg.Observability.Metrics.Enabled {
		routerDeps.Metrics = deps.Metrics
		routerDeps.MetricsPath = cfg.Observability.Metrics.Path
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, routerDeps)
	return router, nil
}

// notificationSender queues verification codes on RabbitMQ when the broker
// is enabled and delivers them in-process otherwise.
func notificationSender(deps *Dependencies) (notification.Sender, error) {
	if !deps.Config.Broker.Enabled {
		return notification.NewDirectSender(notification.NewLogMailer(deps.Logger), deps.Metrics), nil
	}
	publisher, err := notification.DialQueuePublisher(deps.Config.Broker.URL, deps.Config.Broker.Queue, deps.Metrics, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	deps.closers = append(deps.closers, publisher.Close)
	return publisher, nil
}

func subscribeAuditLog(bus *events.EventBus, log *slog.Logger) {
	audit := func(ctx context.Context, event events.Event) error {
		log.InfoContext(ctx, "audit",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"payload", event.Payload())
		return nil
	}
	bus.SubscribeMany(audit,
		events.EventTypeUserRegistered,
		events.EventTypePasswordChanged,
		events.EventTypeSessionsRevoked)
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	deps := &Dependencies{
		Config:  config,
		Logger:  log,
		Metrics: metrics.New(),
		Bus:     events.NewEventBus(log),
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.DB = db
	deps.closers = append(deps.closers, db.Close)

	deps.Gorm, err = initGorm(db, config.Env)
	if err != nil {
		deps.close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	var cache rbac.Cache
	if config.Redis.Enabled {
		client, err := rbacRedis.NewClient(ctx, config.Redis.URL)
		if err != nil {
			deps.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.Redis = client
		deps.closers = append(deps.closers, client.Close)
		cache = rbacRedis.NewCache(client, config.Redis.CacheTTL)
	}

	clock := credential.SystemClock{}
	deps.Users = userPostgres.NewUserRepository(deps.Gorm)
	deps.Resolver = rbac.NewResolver(rbacPostgres.NewRBACRepository(deps.Gorm, db), cache, clock, log)
	deps.Roles = role.NewService(rolePostgres.NewRoleRepository(deps.Gorm), deps.Resolver, clock, log)
	deps.Perms = permission.NewService(permissionPostgres.NewPermissionRepository(deps.Gorm), deps.Resolver, clock, log)

	return deps, nil
}

// initDB opens the pgx pool that sqlx and gorm share.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

func initGorm(db *sqlx.DB, env string) (*gorm.DB, error) {
	level := gormLogger.Warn
	if env == "development" {
		level = gormLogger.Info
	}
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(level),
		TranslateError: true,
	})
}

// openAPIDocument prefers the file named by the config so the document can be
// edited without a rebuild, falling back to the embedded copy.
func openAPIDocument(deps *Dependencies) []byte {
	path := deps.Config.Server.OpenAPIPath
	if path == "" {
		return api.OpenAPI
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		deps.Logger.Warn("openapi document not readable, serving embedded copy", "path", path, "error", err)
		return api.OpenAPI
	}
	return doc
}
