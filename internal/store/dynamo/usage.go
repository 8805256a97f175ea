package dynamo

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/store"
)

func (s *Store) RecordUsage(ctx context.Context, rec model.UsageRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return errors.Wrap(err, "marshal usage record")
	}

	return withRetry(ctx, func() error {
		_, opErr := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: tableNamePtr(tableUsage),
			Item:      item,
		})
		return opErr
	})
}

// IncrementAggregate is a true atomic ADD — no prior read, matching
// spec.md §4.8 item 3 exactly ("if_not_exists(total_X, 0) + delta").
// DynamoDB's ADD operand implicitly treats a missing attribute as zero, so
// no explicit if_not_exists guard is needed for these counters.
func (s *Store) IncrementAggregate(ctx context.Context, keyID string, delta store.UsageDelta, at time.Time) error {
	update := expression.Add(expression.Name("total_input_tokens"), expression.Value(delta.InputTokens)).
		Add(expression.Name("total_output_tokens"), expression.Value(delta.OutputTokens)).
		Add(expression.Name("total_cached_input_tokens"), expression.Value(delta.CachedInputTokens)).
		Add(expression.Name("total_cache_write_tokens"), expression.Value(delta.CacheWriteTokens)).
		Add(expression.Name("total_requests"), expression.Value(int64(1))).
		Set(expression.Name("last_aggregated_timestamp"), expression.Value(at.UTC().Format(time.RFC3339)))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return errors.Wrap(err, "build aggregate expression")
	}

	key, err := attributevalue.MarshalMap(map[string]string{"api_key": keyID})
	if err != nil {
		return errors.Wrap(err, "marshal aggregate key")
	}

	return withRetry(ctx, func() error {
		_, opErr := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 tableNamePtr(tableUsageStats),
			Key:                       key,
			UpdateExpression:          expr.Update(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		return opErr
	})
}

// ApplyBudget implements spec.md §4.8 item 5. The arithmetic branches on
// the row's current budget_mtd_month ("reset to cost" vs "add cost"), which
// a single unconditional ADD cannot express, so this uses an optimistic
// compare-and-swap loop: read the current row, compute the new values, and
// write them back with a ConditionExpression pinned to the values just
// read. A lost race (another writer updated first) retries from a fresh
// read rather than silently overwriting — this is still never a blind
// read-modify-write, the condition makes the write itself atomic.
func (s *Store) ApplyBudget(ctx context.Context, keyID string, cost float64, currentMonth string) (bool, error) {
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, err := s.GetKeyContext(ctx, keyID)
		if err != nil {
			return false, err
		}
		if current == nil {
			return false, errors.Errorf("key %q not found", keyID)
		}

		newTotal := current.BudgetUsedTotal + cost
		newMTD := cost
		if current.BudgetMTDMonth == currentMonth {
			newMTD = current.BudgetUsedMTD + cost
		}

		deactivated := false
		update := expression.Set(expression.Name("budget_used_total"), expression.Value(newTotal)).
			Set(expression.Name("budget_used_mtd"), expression.Value(newMTD)).
			Set(expression.Name("budget_mtd_month"), expression.Value(currentMonth))

		if current.MonthlyBudget != nil && newMTD >= *current.MonthlyBudget {
			reason := model.DeactivationReasonBudgetExceeded
			update = update.Set(expression.Name("active"), expression.Value(false)).
				Set(expression.Name("deactivation_reason"), expression.Value(reason))
			deactivated = true
		}

		cond := expression.Name("budget_used_total").Equal(expression.Value(current.BudgetUsedTotal)).
			And(expression.Name("budget_mtd_month").Equal(expression.Value(current.BudgetMTDMonth)))

		expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
		if err != nil {
			return false, errors.Wrap(err, "build budget expression")
		}

		key, err := attributevalue.MarshalMap(map[string]string{"api_key": keyID})
		if err != nil {
			return false, errors.Wrap(err, "marshal budget key")
		}

		updateErr := withRetry(ctx, func() error {
			_, opErr := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
				TableName:                 tableNamePtr(tableAPIKeys),
				Key:                       key,
				UpdateExpression:          expr.Update(),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			})
			return opErr
		})

		var condFailed *types.ConditionalCheckFailedException
		if errors.As(updateErr, &condFailed) {
			continue // lost the race, retry with a fresh read
		}
		if updateErr != nil {
			return false, errors.Wrap(updateErr, "apply budget")
		}

		return deactivated, nil
	}

	return false, errors.Errorf("apply budget: too many concurrent writers for key %q", keyID)
}
