package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/notifications-delivery/internal/awscfg"
	"github.com/jmehdipour/notifications-delivery/internal/channel"
	"github.com/jmehdipour/notifications-delivery/internal/channel/email"
	"github.com/jmehdipour/notifications-delivery/internal/channel/sms"
	"github.com/jmehdipour/notifications-delivery/internal/codec"
	"github.com/jmehdipour/notifications-delivery/internal/config"
	"github.com/jmehdipour/notifications-delivery/internal/db"
	httpSrv "github.com/jmehdipour/notifications-delivery/internal/http"
	"github.com/jmehdipour/notifications-delivery/internal/logger"
	"github.com/jmehdipour/notifications-delivery/internal/metrics"
	"github.com/jmehdipour/notifications-delivery/internal/queue"
	"github.com/jmehdipour/notifications-delivery/internal/repository"
	"github.com/jmehdipour/notifications-delivery/internal/service/producer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server (enqueue, reports, delivery status)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		deps := httpSrv.Deps{Log: log}

		var mysqlDB *sqlx.DB
		if cfg.MySQL.DSN != "" {
			mysqlDB, err = db.NewMySQLConnection(cfg.MySQL)
			if err != nil {
				return fmt.Errorf("mysql connect: %w", err)
			}
			defer mysqlDB.Close()
			deps.Deliveries = repository.NewDeliveriesRepository(mysqlDB)
		}

		var redisClient *redis.Client
		if cfg.Redis.Addr != "" {
			redisClient, err = db.NewRedisClient(cfg.Redis)
			if err != nil {
				return fmt.Errorf("redis connect: %w", err)
			}
			defer func() { _ = redisClient.Close() }()
			deps.Redis = redisClient
		}

		if cfg.ClickHouse.DSN != "" {
			chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() {
				_ = chDB.Close()
			}()
			deps.Reports = repository.NewCHDeliveriesRepository(chDB)
		}

		ctx := context.Background()
		awsCfg, err := awscfg.Load(ctx, cfg.AWS.Region)
		if err != nil {
			return err
		}

		// producer needs the signing key; without it the API is read-only
		if cfg.Crypto.SecretKey != "" && cfg.Crypto.Salt != "" {
			signer, err := codec.NewSigner(cfg.Crypto.SecretKey, cfg.Crypto.Salt)
			if err != nil {
				return err
			}
			deps.Producer = producer.New(signer, queue.NewSQS(awsCfg, cfg.AWS.Endpoint), cfg.Queue.NamePrefix)
		}

		deps.Status = map[string]channel.StatusChecker{}
		if disp, err := sms.NewDispatcherFromConfig(cfg.SMS); err == nil {
			deps.Status["sms"] = disp
		} else {
			log.Warn("sms status disabled", zap.Error(err))
		}
		emailEndpoint := cfg.Email.Endpoint
		if emailEndpoint == "" {
			emailEndpoint = cfg.AWS.Endpoint
		}
		deps.Status["email"] = email.NewSES(awsCfg, emailEndpoint, cfg.Email.ConfigurationSet)

		server := httpSrv.NewServer(cfg, deps)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)

		return nil
	},
}
