package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/lyzr/composer/common/db"
	"github.com/lyzr/composer/internal/nativefn"
	"github.com/lyzr/composer/internal/obslog"
	"github.com/lyzr/composer/internal/registry"
	"github.com/lyzr/composer/internal/svcconfig"
)

func main() {
	ctx := context.Background()

	cfg, err := svcconfig.Load("conductor-host")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := obslog.New(cfg.Service.LogLevel, cfg.Service.LogFormat)

	store, err := setupStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize action store", "error", err)
		os.Exit(1)
	}

	h := newHost(log, store)
	if cas, activityLog, ok := setupRedis(cfg, log); ok {
		h = h.withRedis(cas, activityLog)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, cfg)
	registerRoutes(e, h)

	startServer(e, log, cfg)
}

// setupStore builds the ActionClient backing the host: Postgres when
// opted into via CONDUCTOR_HOST_STORE, the in-memory client otherwise
// (local/dev, and the default for tests run against this binary).
func setupStore(ctx context.Context, cfg *svcconfig.Config, log *obslog.Logger) (actionStore, error) {
	if os.Getenv("CONDUCTOR_HOST_STORE") != "postgres" {
		return registry.NewInMemoryActionClient(leafInvoker), nil
	}

	conn, err := db.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	store := registry.NewPostgresActionStore(conn.Pool, leafInvoker)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// setupRedis wires the content-addressable cache and activation-log stream
// when a Redis backend is opted into; ok is false (cas/activityLog both nil)
// otherwise, and the host simply runs without them.
func setupRedis(cfg *svcconfig.Config, log *obslog.Logger) (*registry.RedisActionCache, *registry.ActivationLogStream, bool) {
	if os.Getenv("CONDUCTOR_HOST_REDIS") != "on" {
		return nil, nil, false
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Registry.RedisAddr,
		Password: cfg.Registry.RedisPassword,
		DB:       cfg.Registry.RedisDB,
	})
	cas := registry.NewRedisActionCache(client, log)
	activityLog := registry.NewActivationLogStream(client, log, "composer:activations")
	return cas, activityLog, true
}

// leafInvoker dispatches an extracted inline action's exec against params
// when an ActionClient's own Invoke is called directly (rather than through
// host.invoke's conductor stepping). "echo"/"sleep"/"invoke" pass params
// through unchanged; anything else falls through to a registered native
// function.
func leafInvoker(_ context.Context, spec registry.ActionSpec, params map[string]interface{}) (map[string]interface{}, error) {
	switch spec.Name {
	case "echo", "sleep", "invoke":
		return params, nil
	}
	if fn, ok := nativefn.Lookup(spec.Name); ok {
		result, err := fn(map[string]interface{}{}, params)
		if err != nil {
			return nil, err
		}
		m, _ := result.(map[string]interface{})
		return m, nil
	}
	return nil, fmt.Errorf("no leaf runtime registered for action %q", spec.Name)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

func setupHealthCheck(e *echo.Echo, cfg *svcconfig.Config) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": cfg.Service.Name,
		})
	})
}

func registerRoutes(e *echo.Echo, h *host) {
	e.POST("/compositions/:name", deployHandler(h))
	e.POST("/actions/:name/invoke", invokeHandler(h))
}

func startServer(e *echo.Echo, log *obslog.Logger, cfg *svcconfig.Config) {
	log.Info("starting conductor-host", "port", cfg.Service.Port)
	if err := e.Start(fmt.Sprintf(":%d", cfg.Service.Port)); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
