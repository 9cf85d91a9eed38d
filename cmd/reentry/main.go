package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/reentry/internal/config"
	"github.com/dropDatabas3/reentry/internal/hooks"
	httpx "github.com/dropDatabas3/reentry/internal/http"
	"github.com/dropDatabas3/reentry/internal/http/controllers/login"
	"github.com/dropDatabas3/reentry/internal/http/views"
	"github.com/dropDatabas3/reentry/internal/identity"
	"github.com/dropDatabas3/reentry/internal/notify"
	"github.com/dropDatabas3/reentry/internal/oauthflow"
	"github.com/dropDatabas3/reentry/internal/observability/logger"
	"github.com/dropDatabas3/reentry/internal/rate"
	"github.com/dropDatabas3/reentry/internal/session"
	"github.com/dropDatabas3/reentry/internal/store"
	"github.com/dropDatabas3/reentry/internal/store/memory"
	"github.com/dropDatabas3/reentry/internal/store/pg"
	"github.com/dropDatabas3/reentry/internal/svcclient"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "reentry",
		Short: "Servicio de reentry de login federado",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "ruta del archivo de configuración")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check-config",
		Short: "Valida la configuración y termina",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("ok: %d servicios registrados, storage=%s, cache=%s\n",
				len(cfg.Services), cfg.Storage.Driver, cfg.Cache.Kind)
			return nil
		},
	}

	root.AddCommand(serveCmd)
	root.AddCommand(checkCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func serve(configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "reentry",
	})
	defer logger.Sync()
	log := logger.L().With(logger.Component("main"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// customer store por driver
	var customers store.CustomerStore
	switch cfg.Storage.Driver {
	case "postgres":
		lifetime, _ := time.ParseDuration(cfg.Storage.Postgres.ConnMaxLifetime)
		pgStore, err := pg.Connect(ctx, cfg.Storage.DSN, cfg.Storage.Postgres.MaxConns, lifetime)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		customers = pgStore
	default:
		log.Warn("using in-memory customer store; data will not survive restarts")
		customers = memory.New()
	}

	// session store por kind
	sessionTTL, _ := time.ParseDuration(cfg.Session.TTL)
	var sessStore session.Store
	switch cfg.Cache.Kind {
	case "redis":
		sessStore, err = session.NewRedis(ctx, session.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	default:
		defaultTTL, _ := time.ParseDuration(cfg.Cache.Memory.DefaultTTL)
		sessStore = session.NewMemory(defaultTTL)
	}
	sessions := session.NewManager(sessStore, session.ManagerConfig{
		CookieName: cfg.Session.CookieName,
		Domain:     cfg.Session.Domain,
		SameSite:   cfg.Session.SameSite,
		Secure:     cfg.Session.Secure,
		TTL:        sessionTTL,
	})

	var notifier notify.Notifier
	if cfg.SMTP.Enabled {
		notifier = notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	resolver := identity.NewResolver(customers, notifier)

	svc := svcclient.New(svcclient.Deps{
		Registry: svcclient.NewRegistry(cfg.Services),
	})

	signer := oauthflow.NewStateSigner(cfg.OAuth.StateSecret, "reentry", cfg.OAuth.StateTTL)
	oauthMgr := oauthflow.NewHTTPManager(oauthflow.Config{
		ProviderID:    cfg.OAuth.ProviderID,
		TokenEndpoint: cfg.OAuth.TokenEndpoint,
		ClientID:      cfg.OAuth.ClientID,
		ClientSecret:  cfg.OAuth.ClientSecret,
		RedirectURL:   cfg.OAuth.RedirectURL,
	}, signer, nil)

	var limiter rate.Limiter
	if cfg.RateLimit.Enabled {
		window, _ := time.ParseDuration(cfg.RateLimit.Window)
		if cfg.Cache.Kind == "redis" {
			limiter = rate.NewRedisLimiter(redis.NewClient(&redis.Options{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			}), "rl:reentry:", cfg.RateLimit.Max, window)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.RateLimit.Max, window)
		}
	}

	metricsHandler, err := httpx.RegisterMetrics(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	controller := login.NewReentryController(login.Deps{
		OAuth:    oauthMgr,
		UserInfo: svc,
		Resolver: resolver,
		Sessions: sessions,
		Hooks:    hooks.New(),
		Views:    views.New(cfg.Site.DefaultDestination),
		Site: identity.SiteConfig{
			EnableMergeExternalAccounts: cfg.Site.EnableMergeExternalAccounts,
		},
		DefaultDestination: cfg.Site.DefaultDestination,
	})

	router := httpx.NewRouter(httpx.RouterDeps{
		Login:   controller,
		Metrics: metricsHandler,
		CORS:    cfg.Server.CORSAllowedOrigins,
		Limiter: limiter,
	})
	srv := httpx.NewServer(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		return err
	}
	log.Info("bye")
	return nil
}
