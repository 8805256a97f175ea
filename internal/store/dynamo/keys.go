package dynamo

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"

	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/store"
)

var _ store.Store = (*Store)(nil)

func (s *Store) GetKeyContext(ctx context.Context, apiKey string) (*model.KeyContext, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"api_key": apiKey})
	if err != nil {
		return nil, errors.Wrap(err, "marshal key")
	}

	var out *dynamodb.GetItemOutput
	err = withRetry(ctx, func() error {
		var opErr error
		out, opErr = s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: tableNamePtr(tableAPIKeys),
			Key:       key,
		})
		return opErr
	})
	if err != nil {
		return nil, errors.Wrap(err, "get key item")
	}
	if out.Item == nil {
		return nil, nil
	}

	var kc model.KeyContext
	if err := attributevalue.UnmarshalMap(out.Item, &kc); err != nil {
		return nil, errors.Wrap(err, "unmarshal key item")
	}
	return &kc, nil
}

// TryAutoReactivate implements spec.md §4.6's auto-reactivation rule as a
// single conditional UpdateItem: the condition expression re-checks
// active=false, deactivation_reason="budget_exceeded", and
// budget_mtd_month < currentMonth server-side, so two concurrent requests
// for the same stale key can both attempt this and at most one succeeds —
// never a read-then-write race (spec.md §9).
func (s *Store) TryAutoReactivate(ctx context.Context, apiKey, currentMonth string) (*model.KeyContext, bool, error) {
	update := expression.Set(expression.Name("active"), expression.Value(true)).
		Set(expression.Name("budget_used_mtd"), expression.Value(0.0)).
		Set(expression.Name("budget_mtd_month"), expression.Value(currentMonth)).
		Remove(expression.Name("deactivation_reason"))

	cond := expression.Name("active").Equal(expression.Value(false)).
		And(expression.Name("deactivation_reason").Equal(expression.Value(model.DeactivationReasonBudgetExceeded))).
		And(expression.Name("budget_mtd_month").LessThan(expression.Value(currentMonth)))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, false, errors.Wrap(err, "build reactivation expression")
	}

	key, err := attributevalue.MarshalMap(map[string]string{"api_key": apiKey})
	if err != nil {
		return nil, false, errors.Wrap(err, "marshal key")
	}

	var out *dynamodb.UpdateItemOutput
	updateErr := withRetry(ctx, func() error {
		var opErr error
		out, opErr = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 tableNamePtr(tableAPIKeys),
			Key:                       key,
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ReturnValues:              types.ReturnValueAllNew,
		})
		return opErr
	})

	var condFailed *types.ConditionalCheckFailedException
	if errors.As(updateErr, &condFailed) {
		current, getErr := s.GetKeyContext(ctx, apiKey)
		if getErr != nil {
			return nil, false, getErr
		}
		return current, false, nil
	}
	if updateErr != nil {
		return nil, false, errors.Wrap(updateErr, "reactivate key")
	}

	var kc model.KeyContext
	if err := attributevalue.UnmarshalMap(out.Attributes, &kc); err != nil {
		return nil, false, errors.Wrap(err, "unmarshal reactivated key")
	}
	return &kc, true, nil
}

func (s *Store) PutKeyContext(ctx context.Context, key model.KeyContext) error {
	item, err := attributevalue.MarshalMap(key)
	if err != nil {
		return errors.Wrap(err, "marshal key context")
	}

	return withRetry(ctx, func() error {
		_, opErr := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: tableNamePtr(tableAPIKeys),
			Item:      item,
		})
		return opErr
	})
}

func tableNamePtr(base string) *string {
	name := tableName(base)
	return &name
}
