// Command roomserver runs the multiplayer room TCP server plus its admin
// HTTP and stdin consoles, following the teacher's cmd/v1/session/main.go
// bootstrap shape: load .env, validate config, build the dependency graph,
// start listeners, then wait on an OS signal for graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rymc/roomserver/internal/v1/admin"
	"github.com/rymc/roomserver/internal/v1/config"
	"github.com/rymc/roomserver/internal/v1/identity"
	"github.com/rymc/roomserver/internal/v1/logging"
	"github.com/rymc/roomserver/internal/v1/monitors"
	"github.com/rymc/roomserver/internal/v1/plugin"
	"github.com/rymc/roomserver/internal/v1/room"
	"github.com/rymc/roomserver/internal/v1/security"
	"github.com/rymc/roomserver/internal/v1/server"
	"go.uber.org/zap"
)

func main() {
	// Missing .env is fine outside local dev; fall through to process env.
	_ = godotenv.Load()

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}
	log := logging.GetLogger()
	defer log.Sync()

	secStore := security.New(cfg.SecurityStorePath)
	if err := secStore.Load(); err != nil {
		log.Fatal("loading security store", zap.Error(err))
	}

	monitorSet, err := monitors.Load(cfg.MonitorsPath)
	if err != nil {
		log.Fatal("loading monitors", zap.Error(err))
	}

	identityClient := identity.New(cfg.IdentityBaseURL, &http.Client{Timeout: 5 * time.Second}, log)
	table := room.NewTable()

	var bus *plugin.Bus
	if cfg.RedisEnabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass})
		bus = plugin.NewWithRedis(rdb, log)
	} else {
		bus = plugin.New(log)
	}
	pluginLoader := plugin.NewLoader(cfg.PluginsDir, bus, log)
	if err := pluginLoader.PollOnce(); err != nil {
		log.Warn("initial plugin scan failed", zap.Error(err))
	}
	go pluginLoader.Run(cfg.PluginPollInterval)
	defer pluginLoader.Stop()

	roomServer, err := server.New(cfg.ListenAddr, table, identityClient, monitorSet, secStore, cfg.RateLimitConnPerIP, log)
	if err != nil {
		log.Fatal("building room server", zap.Error(err))
	}

	adminServer, err := admin.New(table, secStore, cfg.AdminJWTSecret, cfg.RateLimitAdminAPI, log)
	if err != nil {
		log.Fatal("building admin server", zap.Error(err))
	}
	httpSrv := &http.Server{Addr: cfg.AdminListenAddr, Handler: adminServer.Handler()}

	console := admin.NewConsole(table, secStore, os.Stdout, log)
	go console.Run(os.Stdin)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := roomServer.ListenAndServe(ctx); err != nil {
			log.Error("room server stopped", zap.Error(err))
		}
	}()

	go func() {
		log.Info("admin http listening", zap.String("addr", cfg.AdminListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin http server stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
	roomServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("admin http shutdown error", zap.Error(err))
	}
}
