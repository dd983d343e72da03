package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  release_committed_topic_name: "release.committed"
  inspection_created_topic_name: "inspection.created"
  notification_result_topic_name: "notification.result"
redis:
  host: "localhost"
  port: 6379
sms:
  base_url: "http://localhost:9100"
  sender: "NDA"
  mode: "fake"
  rate_limit_per_minute: 120
impoundbox:
  http_addr: ":8080"
  kafka_consumer_group: "impound-api"
  current_state_ttl_seconds: 600
  release_max_attempts: 5
  notifier_http_addr: ":8081"
  notifier_consumer_group: "impound-notifier"
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "release.committed", cfg.Kafka.ReleaseCommittedTopicName)
	require.Equal(t, "notification.result", cfg.Kafka.NotificationResultTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, "fake", cfg.SMS.Mode)
	require.Equal(t, ":8080", cfg.ImpoundBox.HTTPAddr)
	require.Equal(t, 5, cfg.ImpoundBox.ReleaseMaxAttempts)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
