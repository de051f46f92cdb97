package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	redisCache "github.com/pastoriniMatheus/leadcast-service/internal/cache/redis"
	"github.com/pastoriniMatheus/leadcast-service/internal/domain"
	httpHandler "github.com/pastoriniMatheus/leadcast-service/internal/handler/http"
	"github.com/pastoriniMatheus/leadcast-service/internal/persistant/postgresql"
	catalogRepo "github.com/pastoriniMatheus/leadcast-service/internal/repository/catalog"
	leadRepo "github.com/pastoriniMatheus/leadcast-service/internal/repository/lead"
	messageRepo "github.com/pastoriniMatheus/leadcast-service/internal/repository/message"
	"github.com/pastoriniMatheus/leadcast-service/internal/service"
	"github.com/pastoriniMatheus/leadcast-service/internal/settings"
	"github.com/pastoriniMatheus/leadcast-service/internal/webhook"
	"gorm.io/gorm"
)

var (
	configFile = flag.String("config", "config.json", "config file path")
)

func main() {
	// create root context
	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	// listen for terminate signal
	notifyCtx, stop := signal.NotifyContext(appCtx, syscall.SIGTERM)
	defer stop()

	// parse flags
	flag.Parse()

	// parse config
	config, err := ReadConfigJson(*configFile)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	// runtime settings share the config file and reload from it
	store, err := settings.NewStore(*configFile)
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// initialize external dependencies
	db, rClient, err := initExternalDependencies(notifyCtx, config)
	if err != nil {
		log.Fatalf("failed to initialize external dependencies: %v", err)
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// init repositories
	leads := leadRepo.NewLeadRepository(db)
	messages := messageRepo.NewMessageRepository(db, rClient)
	catalog := catalogRepo.NewCatalogRepository(db)

	// init services
	matcher := service.NewLeadMatcher(leads, logger.With(slog.String("component", "matcher")))
	leadsSvc := service.NewLeadsService(leads, catalog, matcher, logger.With(slog.String("component", "leads")))

	dispatcher := webhook.NewDispatcher(store.Snapshot().WebhookTimeout)
	broadcaster, err := service.NewBroadcaster(
		leads,
		messages,
		dispatcher,
		store,
		logger.With(slog.String("component", "broadcaster")),
		&config.DispatchMaxRetry,
	)
	if err != nil {
		log.Fatalf("failed to initiate broadcaster service: %v", err)
	}

	delivery := service.NewDeliveryRecorder(messages, logger.With(slog.String("component", "delivery")))

	// init http handler
	handler := httpHandler.NewHttpHandler(
		fmt.Sprintf(":%d", config.HttpPort),
		leadsSvc,
		broadcaster,
		delivery,
		catalog,
		store,
	)

	wg := sync.WaitGroup{}
	// run http handler
	wg.Go(func() {
		if err := handler.Run(); err != nil {
			logger.Error("http server encountered with an error and closed", "error", err.Error())
		}
		// cancel app context if http handler fails
		appCtxCancel()
	})

	// graceful shutdown
	wg.Go(func() {
		<-notifyCtx.Done()
		logger.Info("application shutting down...")

		shutDownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		handler.Shutdown(shutDownCtx)
		postgresql.Close(db)
	})

	wg.Wait()
	os.Exit(0)
}

func initExternalDependencies(ctx context.Context, config *Config) (db *gorm.DB, rCache *redisCache.RedisCache, err error) {
	// initialize database, provisioning schema idempotently
	db, err = postgresql.Initialize(config.DbConnString, []any{
		&domain.Lead{},
		&domain.Course{},
		&domain.Event{},
		&domain.LeadStatus{},
		&domain.ScanSession{},
		&domain.MessageHistory{},
		&domain.MessageRecipient{},
	})
	if err != nil {
		return
	}

	// initialize cache
	rCache, err = redisCache.NewRedisCache(ctx, config.RedisAddr)

	return
}
