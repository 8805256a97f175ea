package model

// Tier is the caller's service tier, generalizing the teacher's Token
// status/quota fields (model/token.go) into the tier+budget policy
// snapshot spec.md §3 requires.
type Tier string

const (
	TierDefault  Tier = "default"
	TierFlex     Tier = "flex"
	TierPriority Tier = "priority"
	TierReserved Tier = "reserved"
)

// DeactivationReason names why active=false on a KeyContext. The only
// reason the gateway itself ever sets is budget exhaustion; other values
// may be set administratively out of band.
const DeactivationReasonBudgetExceeded = "budget_exceeded"

// KeyContext is the identity + policy snapshot carried with a request,
// persisted in the api-keys table (PK api_key) and attached to the request
// context by the auth guard. Field names follow spec.md §3/§6 verbatim so
// they double as the DynamoDB attribute names.
type KeyContext struct {
	ID     string `dynamodbav:"api_key"`
	UserID string `dynamodbav:"user_id"`
	Tier   Tier   `dynamodbav:"tier"`

	// Name and OwnerName are admin-facing labels only; nothing in the
	// gateway's own request path reads them.
	Name      string `dynamodbav:"name,omitempty"`
	OwnerName string `dynamodbav:"owner_name,omitempty"`

	RateLimit int  `dynamodbav:"rate_limit"`           // requests per window
	TPMLimit  *int `dynamodbav:"tpm_limit,omitempty"`  // optional tokens per minute

	MonthlyBudget  *float64 `dynamodbav:"monthly_budget,omitempty"` // optional USD
	BudgetUsedTotal float64 `dynamodbav:"budget_used_total"`
	BudgetUsedMTD   float64 `dynamodbav:"budget_used_mtd"`
	BudgetMTDMonth  string  `dynamodbav:"budget_mtd_month"` // YYYY-MM

	Active             bool    `dynamodbav:"active"`
	DeactivationReason *string `dynamodbav:"deactivation_reason,omitempty"`

	// IsMaster/IsEphemeral mark synthesized KeyContexts that bypass the
	// store entirely (§4.6); they are never persisted.
	IsMaster    bool `dynamodbav:"-"`
	IsEphemeral bool `dynamodbav:"-"`
}

// BudgetExceeded reports whether the key is deactivated specifically for
// crossing its monthly budget, the only deactivation reason the gateway
// itself interprets (auto-reactivation logic in internal/authguard).
func (k KeyContext) BudgetExceeded() bool {
	return !k.Active && k.DeactivationReason != nil && *k.DeactivationReason == DeactivationReasonBudgetExceeded
}

// UsageRecord is one append-only entry in the usage table (PK api_key, SK
// timestamp), written fire-and-forget after the last response byte.
type UsageRecord struct {
	KeyID             string `dynamodbav:"api_key"`
	Timestamp         string `dynamodbav:"timestamp"` // ISO8601 UTC, sort key
	RequestID         string `dynamodbav:"request_id"`
	Model             string `dynamodbav:"model"`
	InputTokens       int    `dynamodbav:"input_tokens"`
	OutputTokens      int    `dynamodbav:"output_tokens"`
	CachedInputTokens int    `dynamodbav:"cached_input_tokens"`
	CacheWriteTokens  int    `dynamodbav:"cache_write_tokens"`
	Success           bool   `dynamodbav:"success"`
	DurationMS        int64  `dynamodbav:"duration_ms"`
	ErrorMessage      string `dynamodbav:"error_message,omitempty"`
}

// KeyUsageAggregate is the running-total row in the usage-stats table
// (PK api_key), updated via atomic increment only — never read-modify-write
// (spec.md §4.8 item 3, §9).
type KeyUsageAggregate struct {
	KeyID                   string `dynamodbav:"api_key"`
	TotalInputTokens        int64  `dynamodbav:"total_input_tokens"`
	TotalOutputTokens       int64  `dynamodbav:"total_output_tokens"`
	TotalCachedInputTokens  int64  `dynamodbav:"total_cached_input_tokens"`
	TotalCacheWriteTokens   int64  `dynamodbav:"total_cache_write_tokens"`
	TotalRequests           int64  `dynamodbav:"total_requests"`
	LastAggregatedTimestamp string `dynamodbav:"last_aggregated_timestamp"`
}

// ModelPricing is the per-upstream-model pricing row in the model-pricing
// table (PK model_id), generalizing the teacher's GetDefaultModelPricing
// map (relay/adaptor/aws/adaptor.go) into a persisted, overridable record.
type ModelPricing struct {
	ModelID               string  `dynamodbav:"model_id"`
	Provider              string  `dynamodbav:"provider"`
	DisplayName           string  `dynamodbav:"display_name"`
	Status                string  `dynamodbav:"status"` // "active" | "deprecated" | "retired"
	InputPerMillion       float64 `dynamodbav:"input_per_million"`
	OutputPerMillion      float64 `dynamodbav:"output_per_million"`
	CacheReadPerMillion   float64 `dynamodbav:"cache_read_per_million"`
	CacheWritePerMillion  float64 `dynamodbav:"cache_write_per_million"`
}

// ModelMapping is a persisted override from a client-dialect model id to an
// upstream model id, stored in the model-mapping table
// (PK anthropic_model_id).
type ModelMapping struct {
	AnthropicModelID string `dynamodbav:"anthropic_model_id"`
	UpstreamModelID  string `dynamodbav:"upstream_model_id"`
}
