package main

import (
	"context"
	"fmt"
	"time"

	"github.com/FieldReport/ImpoundBox/config"
	"github.com/FieldReport/ImpoundBox/internal/broker/kafka"
	"github.com/FieldReport/ImpoundBox/internal/cache/rediscache"
	"github.com/FieldReport/ImpoundBox/internal/integrations/sms"
	"github.com/FieldReport/ImpoundBox/internal/integrations/sms/fake"
	"github.com/FieldReport/ImpoundBox/internal/integrations/sms/smsgatehttp"
	"github.com/FieldReport/ImpoundBox/internal/services/notifier"
)

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(topic string, key, value []byte) error) error
}

type notifierFactories struct {
	newProducer    func(cfg *config.Config) notifier.Producer
	newRateLimiter func(cfg *config.Config) notifier.RateLimiter
	newSMSClient   func(cfg *config.Config) sms.Client
	newConsumer    func(cfg *config.Config, group string, topics ...string) (consumer kafkaConsumer, closeFn func(), err error)
}

func defaultNotifierFactories() notifierFactories {
	return notifierFactories{
		newProducer: func(cfg *config.Config) notifier.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) notifier.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newSMSClient: func(cfg *config.Config) sms.Client {
			// Реальный шлюз включается только явно: он платный.
			// Без base_url или в режиме "fake" — локальный fake.
			if cfg.SMS.BaseURL != "" && cfg.SMS.Mode == "gateway" {
				timeout := time.Duration(cfg.SMS.TimeoutSeconds) * time.Second
				return smsgatehttp.New(cfg.SMS.BaseURL, cfg.SMS.APIKey, cfg.SMS.Sender, timeout)
			}
			return fake.New()
		},
		newConsumer: func(cfg *config.Config, group string, topics ...string) (kafkaConsumer, func(), error) {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			c := kafka.NewConsumer(brokers, group, topics...)
			return c, func() { _ = c.Close() }, nil
		},
	}
}

func notifierTopics(cfg *config.Config) (releaseTopic, createdTopic, resultTopic string) {
	releaseTopic = cfg.Kafka.ReleaseCommittedTopicName
	if releaseTopic == "" {
		releaseTopic = "release.committed"
	}
	createdTopic = cfg.Kafka.InspectionCreatedTopicName
	if createdTopic == "" {
		createdTopic = "inspection.created"
	}
	resultTopic = cfg.Kafka.NotificationResultTopicName
	if resultTopic == "" {
		resultTopic = "notification.result"
	}
	return releaseTopic, createdTopic, resultTopic
}

func buildNotifier(cfg *config.Config, f notifierFactories) *notifier.Notifier {
	releaseTopic, createdTopic, resultTopic := notifierTopics(cfg)

	smsTimeout := time.Duration(cfg.SMS.TimeoutSeconds) * time.Second
	rlPerMin := int64(cfg.SMS.RateLimitPerMinute)

	return notifier.New(f.newSMSClient(cfg), f.newProducer(cfg), f.newRateLimiter(cfg),
		releaseTopic, createdTopic, resultTopic).
		WithSettings(smsTimeout, rlPerMin)
}

func RunImpoundNotifier(ctx context.Context, cfg *config.Config, f notifierFactories, n *notifier.Notifier) error {
	releaseTopic, createdTopic, _ := notifierTopics(cfg)

	group := cfg.ImpoundBox.NotifierConsumerGroup
	if group == "" {
		group = "impound-notifier"
	}

	consumer, closeFn, err := f.newConsumer(cfg, group, releaseTopic, createdTopic)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	return consumer.Consume(ctx, func(topic string, _key, value []byte) error {
		return n.Handle(ctx, topic, value)
	})
}
