// Package config holds process-wide settings resolved once from the
// environment at startup, mirroring the one-api teacher's common/config
// style: one package-level var per setting, each documented with what
// reads it.
package config

import (
	"strings"
	"time"

	"github.com/laiskytech/converse-gateway/internal/env"
)

var (
	// Host is the bind address for the HTTP listener.
	Host = env.String("HOST", "0.0.0.0")
	// Port is the bind port for the HTTP listener.
	Port = env.String("PORT", "8080")
	// Environment affects only startup warnings (development/staging/production).
	Environment = env.String("ENVIRONMENT", "development")

	// RequireAPIKey disables the auth guard entirely when false. Not
	// recommended for production; a warning is logged at startup.
	RequireAPIKey = env.Bool("REQUIRE_API_KEY", true)
	// MasterAPIKey is the static admin credential that bypasses the key store.
	MasterAPIKey = env.String("MASTER_API_KEY", "")

	// RateLimitEnabled toggles the per-key token bucket limiter.
	RateLimitEnabled = env.Bool("RATE_LIMIT_ENABLED", true)
	// RateLimitRequestsPerWindow is the default bucket capacity for keys
	// that don't carry their own rate_limit.
	RateLimitRequestsPerWindow = env.Int("RATE_LIMIT_REQUESTS_PER_WINDOW", 60)
	// RateLimitWindowSeconds is the default refill window.
	RateLimitWindowSeconds = env.Int("RATE_LIMIT_WINDOW_SECONDS", 60)
	// RateLimitBucketTTL is how long an idle bucket survives in the LRU
	// before eviction (spec.md §4.7 default: 1 hour).
	RateLimitBucketTTL = time.Duration(env.Int("RATE_LIMIT_BUCKET_TTL_SECONDS", 3600)) * time.Second
	// RateLimitBucketCacheSize bounds the number of distinct keys tracked
	// concurrently by the limiter.
	RateLimitBucketCacheSize = env.Int("RATE_LIMIT_BUCKET_CACHE_SIZE", 100000)

	// AnthropicDefaultModel is a global override applied before any family
	// or persisted mapping lookup.
	AnthropicDefaultModel = env.String("ANTHROPIC_DEFAULT_MODEL", "")
	// AnthropicDefaultSonnetModel overrides the "sonnet" family.
	AnthropicDefaultSonnetModel = env.String("ANTHROPIC_DEFAULT_SONNET_MODEL", "")
	// AnthropicDefaultHaikuModel overrides the "haiku" family.
	AnthropicDefaultHaikuModel = env.String("ANTHROPIC_DEFAULT_HAIKU_MODEL", "")
	// AnthropicDefaultOpusModel overrides the "opus" family.
	AnthropicDefaultOpusModel = env.String("ANTHROPIC_DEFAULT_OPUS_MODEL", "")

	// AWSRegion is the Bedrock region used both for the Converse client and
	// for cross-region inference-profile id construction.
	AWSRegion = env.String("AWS_REGION", "us-east-1")
	// AWSAccessKeyID / AWSSecretAccessKey provide static credentials; when
	// empty the default AWS credential chain is used instead.
	AWSAccessKeyID     = env.String("AWS_ACCESS_KEY_ID", "")
	AWSSecretAccessKey = env.String("AWS_SECRET_ACCESS_KEY", "")

	// DynamoEndpoint overrides the DynamoDB endpoint (e.g. for local-stack
	// development); empty means use the default AWS endpoint resolution.
	DynamoEndpoint = env.String("DYNAMODB_ENDPOINT", "")
	// DynamoTablePrefix is prepended to the five table names named in
	// spec.md §6, to allow multiple deployments to share an account.
	DynamoTablePrefix = env.String("DYNAMODB_TABLE_PREFIX", "")

	// RedisURL enables the optional distributed key-context cache when set.
	RedisURL = env.String("REDIS_URL", "")

	// DefaultMaxTokens is read from the environment but no component reads
	// it: the OpenAI translator uses its own fixed 4096 when max_tokens is
	// absent, and the Anthropic translator passes max_tokens through as sent.
	DefaultMaxTokens = env.Int("DEFAULT_MAX_TOKENS", 4096)

	// UnaryUpstreamTimeout is read from the environment but not applied by
	// any component; a non-streaming Converse call is bounded only by the
	// request context and retryCall's backoff.
	UnaryUpstreamTimeout = time.Duration(env.Int("UNARY_UPSTREAM_TIMEOUT_SECONDS", 120)) * time.Second
	// StreamingTimeoutSeconds is read from the environment but not applied
	// by any component; a stream has no total wall-clock limit.
	StreamingTimeoutSeconds = env.Int("STREAMING_TIMEOUT_SECONDS", 300)
	// StreamIdleTimeoutSeconds is read from the environment but not applied
	// by any component; the gap between two stream events is not bounded.
	StreamIdleTimeoutSeconds = env.Int("STREAM_IDLE_TIMEOUT_SECONDS", 30)
	// StreamPingIntervalSeconds is read from the environment but not applied
	// by any component; no keep-alive pings are generated on SSE streams.
	StreamPingIntervalSeconds = env.Int("STREAM_PING_INTERVAL_SECONDS", 15)

	// PersistenceTimeout bounds a single DynamoDB operation.
	PersistenceTimeout = time.Duration(env.Int("PERSISTENCE_TIMEOUT_SECONDS", 5)) * time.Second

	// DebugEnabled toggles verbose structured logging.
	DebugEnabled = env.Bool("DEBUG", false)

	// TracingEnabled toggles OpenTelemetry span emission. Disabled by
	// default so a deployment with no collector configured pays nothing
	// beyond a noop.Tracer's no-op spans (internal/tracing.GetTracer).
	TracingEnabled = env.Bool("TRACING_ENABLED", false)

	// TokenKeyPrefix is prepended to generated key identifiers.
	TokenKeyPrefix = env.String("TOKEN_KEY_PREFIX", "sk-")

	// PTCBackend selects the sandboxed tool-execution dispatcher:
	// "disabled" (default) or "temporal".
	PTCBackend = env.String("PTC_BACKEND", "disabled")
	// TemporalHostPort is the Temporal frontend address used by the
	// Temporal-backed PTC dispatcher.
	TemporalHostPort = env.String("TEMPORAL_HOST_PORT", "127.0.0.1:7233")
	// TemporalTaskQueue is the task queue PTC workflows are started on.
	TemporalTaskQueue = env.String("TEMPORAL_TASK_QUEUE", "ptc-tasks")
)

// IsProduction reports whether Environment is "production".
func IsProduction() bool {
	return strings.EqualFold(Environment, "production")
}
