// Package dynamo implements internal/store.Store against AWS DynamoDB,
// the persistence technology spec.md §6 names explicitly. It extends the
// teacher's own aws-sdk-go-v2 require block (bedrockruntime, config,
// credentials) with the sibling dynamodb service client and its
// attributevalue/expression feature packages — the same SDK family, not a
// new dependency universe.
package dynamo

import "github.com/laiskytech/converse-gateway/internal/config"

const (
	tableAPIKeys      = "api-keys"
	tableUsage        = "usage"
	tableUsageStats   = "usage-stats"
	tableModelMapping = "model-mapping"
	tableModelPricing = "model-pricing"
)

func tableName(base string) string {
	return config.DynamoTablePrefix + base
}
