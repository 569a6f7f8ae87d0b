package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultOpenAIModel  = "gpt-4o-mini"
	DefaultAITimeout    = 12 * time.Second
	DefaultAIMaxRetries = 2
	DefaultAIRateLimit  = 3
	DefaultAIRateBurst  = 5

	DefaultRedisPort     = "6379"
	DefaultCatalogKey    = "catalog:products"
	DefaultSuggestionTTL = 24 * time.Hour

	DefaultCatalogFile     = "catalog.yaml"
	DefaultRefreshInterval = 5 * time.Minute

	DefaultFuzzyCutoff = 25

	DefaultRedisChannel = "orderhub:alerts"
	DefaultKafkaTopic   = "orderhub.alerts"

	DefaultCSVPath = "orders.csv"

	DefaultMetricsAddr = ":9090"
	DefaultServerPort  = 8080
)

// setDefaults registers every key, which also lets AutomaticEnv reach keys
// that appear in no config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", DefaultOpenAIModel)
	v.SetDefault("openai.base_url", "")

	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.timeout", DefaultAITimeout)
	v.SetDefault("ai.max_retries", DefaultAIMaxRetries)
	v.SetDefault("ai.rate_limit", DefaultAIRateLimit)
	v.SetDefault("ai.rate_burst", DefaultAIRateBurst)

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", DefaultRedisPort)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.catalog_key", DefaultCatalogKey)
	v.SetDefault("redis.suggestion_ttl", DefaultSuggestionTTL)

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")

	v.SetDefault("catalog.source", "file")
	v.SetDefault("catalog.file", DefaultCatalogFile)
	v.SetDefault("catalog.refresh_interval", DefaultRefreshInterval)

	v.SetDefault("fuzzy.cutoff", DefaultFuzzyCutoff)

	v.SetDefault("alert.sink", "log")
	v.SetDefault("alert.redis_channel", DefaultRedisChannel)
	v.SetDefault("alert.kafka_brokers", []string{})
	v.SetDefault("alert.kafka_topic", DefaultKafkaTopic)

	v.SetDefault("store.sink", "csv")
	v.SetDefault("store.csv_path", DefaultCSVPath)

	v.SetDefault("metrics.addr", DefaultMetricsAddr)
	v.SetDefault("server.port", DefaultServerPort)
}
