package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FieldReport/ImpoundBox/config"
	"github.com/FieldReport/ImpoundBox/internal/broker/kafka"
	"github.com/FieldReport/ImpoundBox/internal/cache/rediscache"
	"github.com/FieldReport/ImpoundBox/internal/services/inspections"
	"github.com/FieldReport/ImpoundBox/internal/services/releases"
	"github.com/FieldReport/ImpoundBox/internal/storage/pginspections"
)

type impoundAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     impoundAPIOpts
	insp     *inspections.Service
	rel      *releases.Service
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapImpoundAPI() *impoundAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.ImpoundBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.ImpoundBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "impound-api"
	}
	releaseTopic := cfg.Kafka.ReleaseCommittedTopicName
	if releaseTopic == "" {
		releaseTopic = "release.committed"
	}
	createdTopic := cfg.Kafka.InspectionCreatedTopicName
	if createdTopic == "" {
		createdTopic = "inspection.created"
	}
	resultTopic := cfg.Kafka.NotificationResultTopicName
	if resultTopic == "" {
		resultTopic = "notification.result"
	}

	cacheTTL := time.Duration(cfg.ImpoundBox.CurrentStateTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)

	insp := inspections.New(st, rc, cacheTTL).WithCreatedPublisher(producer, createdTopic)
	rel := releases.New(st, rc, producer, releaseTopic).
		WithRetry(cfg.ImpoundBox.ReleaseMaxAttempts, time.Duration(cfg.ImpoundBox.ReleaseRetryBackoffMs)*time.Millisecond)

	consumer := kafka.NewConsumer(brokers, consumerGroup, resultTopic)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &impoundAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: impoundAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			resultTopic:   resultTopic,
			consumerGroup: consumerGroup,
		},
		insp:     insp,
		rel:      rel,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pginspections.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pginspections.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *impoundAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *impoundAPIApp) Run() error {
	return runImpoundAPI(a.ctx, a.opts, a.insp, a.rel, a.consumer)
}
