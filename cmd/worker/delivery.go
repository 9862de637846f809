package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmehdipour/notifications-delivery/internal/awscfg"
	"github.com/jmehdipour/notifications-delivery/internal/channel/email"
	"github.com/jmehdipour/notifications-delivery/internal/channel/sms"
	"github.com/jmehdipour/notifications-delivery/internal/codec"
	"github.com/jmehdipour/notifications-delivery/internal/config"
	"github.com/jmehdipour/notifications-delivery/internal/db"
	"github.com/jmehdipour/notifications-delivery/internal/events"
	httpSrv "github.com/jmehdipour/notifications-delivery/internal/http"
	"github.com/jmehdipour/notifications-delivery/internal/logger"
	"github.com/jmehdipour/notifications-delivery/internal/metrics"
	"github.com/jmehdipour/notifications-delivery/internal/notifyapi"
	"github.com/jmehdipour/notifications-delivery/internal/pipeline"
	"github.com/jmehdipour/notifications-delivery/internal/queue"
	"github.com/jmehdipour/notifications-delivery/internal/repository"
	"github.com/jmehdipour/notifications-delivery/internal/worker"
)

var deliveryCmd = &cobra.Command{
	Use:   "delivery",
	Short: "Poll notification queues and deliver until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelivery(cmd, false)
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single delivery cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDelivery(cmd, true)
	},
}

func runDelivery(cmd *cobra.Command, once bool) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3) aws clients
	awsCfg, err := awscfg.Load(ctx, cfg.AWS.Region)
	if err != nil {
		return err
	}
	sqsQueue := queue.NewSQS(awsCfg, cfg.AWS.Endpoint)

	emailEndpoint := cfg.Email.Endpoint
	if emailEndpoint == "" {
		emailEndpoint = cfg.AWS.Endpoint
	}
	ses := email.NewSES(awsCfg, emailEndpoint, cfg.Email.ConfigurationSet)

	// 4) providers -> dispatcher
	disp, err := sms.NewDispatcherFromConfig(cfg.SMS)
	if err != nil {
		return err
	}

	// 5) notify api, optionally behind the redis template cache
	api := notifyapi.New(cfg.NotifyAPI.BaseURL, cfg.NotifyAPI.ClientID, cfg.NotifyAPI.Secret, cfg.NotifyAPI.Timeout)
	var templates pipeline.TemplateResolver = api
	if cfg.TemplateCache.Enabled {
		rdb, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		templates = notifyapi.NewCachedResolver(api, rdb, cfg.TemplateCache.TTL, cfg.TemplateCache.KeyPrefix, log)
	}

	// 6) pipeline
	signer, err := codec.NewSigner(cfg.Crypto.SecretKey, cfg.Crypto.Salt)
	if err != nil {
		return err
	}
	processor := pipeline.NewProcessor(
		codec.NewDecoder(signer),
		pipeline.NewEngine(ses, disp, templates),
		pipeline.NewFinalizer(api),
	)

	// 7) delivery journal
	var journals []worker.Journal
	if cfg.MySQL.DSN != "" {
		dbx, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer dbx.Close()
		journals = append(journals, repository.NewDeliveriesRepository(dbx))
	}
	if cfg.Kafka.Enabled {
		pub := events.NewPublisherFromConfig(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
		defer pub.Close()
		journals = append(journals, pub)
	}

	cycle := worker.NewCycle(sqsQueue, processor, log, cfg.Queue.NamePrefix, journals...)
	cycle.Receive = queue.ReceiveOptions{
		MaxMessages:       cfg.Queue.MaxMessages,
		VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		WaitTime:          cfg.Queue.WaitTime,
		AttributeNames:    cfg.Queue.AttributeNames,
	}

	log.Info("delivery worker configured",
		zap.String("queue_prefix", cfg.Queue.NamePrefix),
		zap.Int("max_messages", cfg.Queue.MaxMessages),
		zap.Duration("visibility_timeout", cfg.Queue.VisibilityTimeout),
		zap.Strings("attribute_names", cfg.Queue.AttributeNames),
		zap.Bool("template_cache", cfg.TemplateCache.Enabled),
		zap.Int("journals", len(journals)),
	)

	if once {
		return cycle.Run(ctx)
	}

	// 8) health + metrics
	probe := httpSrv.NewServer(cfg, httpSrv.Deps{Log: log})
	go func() {
		if err := probe.Start(cfg.HTTP.WorkerAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("probe server exited", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = probe.Shutdown(shutdownCtx)
	}()

	return worker.NewScheduler(cycle, cfg.Queue.PollInterval, log).Run(ctx)
}
