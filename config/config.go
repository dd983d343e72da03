package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	SMS        SMSConfig        `yaml:"sms"`
	ImpoundBox ImpoundBoxConfig `yaml:"impoundbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                        string `yaml:"host"`
	Port                        int    `yaml:"port"`
	ReleaseCommittedTopicName   string `yaml:"release_committed_topic_name"`
	InspectionCreatedTopicName  string `yaml:"inspection_created_topic_name"`
	NotificationResultTopicName string `yaml:"notification_result_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type SMSConfig struct {
	BaseURL            string `yaml:"base_url"`
	APIKey             string `yaml:"api_key"`
	Sender             string `yaml:"sender"`
	Mode               string `yaml:"mode"` // "gateway" | "fake"
	TimeoutSeconds     int    `yaml:"timeout_seconds"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

type ImpoundBoxConfig struct {
	HTTPAddr               string `yaml:"http_addr"`
	KafkaConsumerGroup     string `yaml:"kafka_consumer_group"`
	CurrentStateTTLSeconds int    `yaml:"current_state_ttl_seconds"`

	ReleaseMaxAttempts    int `yaml:"release_max_attempts"`
	ReleaseRetryBackoffMs int `yaml:"release_retry_backoff_ms"`

	NotifierHTTPAddr      string `yaml:"notifier_http_addr"`
	NotifierConsumerGroup string `yaml:"notifier_consumer_group"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
