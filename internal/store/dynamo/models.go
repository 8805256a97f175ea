package dynamo

import (
	"context"

	"github.com/Laisky/errors/v2"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/laiskytech/converse-gateway/internal/model"
)

func (s *Store) GetModelMapping(ctx context.Context, anthropicModelID string) (model.ModelMapping, bool, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"anthropic_model_id": anthropicModelID})
	if err != nil {
		return model.ModelMapping{}, false, errors.Wrap(err, "marshal mapping key")
	}

	var out *dynamodb.GetItemOutput
	err = withRetry(ctx, func() error {
		var opErr error
		out, opErr = s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: tableNamePtr(tableModelMapping),
			Key:       key,
		})
		return opErr
	})
	if err != nil {
		return model.ModelMapping{}, false, errors.Wrap(err, "get model mapping")
	}
	if out.Item == nil {
		return model.ModelMapping{}, false, nil
	}

	var m model.ModelMapping
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return model.ModelMapping{}, false, errors.Wrap(err, "unmarshal model mapping")
	}
	return m, true, nil
}

func (s *Store) PutModelMapping(ctx context.Context, mapping model.ModelMapping) error {
	item, err := attributevalue.MarshalMap(mapping)
	if err != nil {
		return errors.Wrap(err, "marshal model mapping")
	}
	return withRetry(ctx, func() error {
		_, opErr := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: tableNamePtr(tableModelMapping),
			Item:      item,
		})
		return opErr
	})
}

func (s *Store) GetModelPricing(ctx context.Context, modelID string) (model.ModelPricing, bool, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"model_id": modelID})
	if err != nil {
		return model.ModelPricing{}, false, errors.Wrap(err, "marshal pricing key")
	}

	var out *dynamodb.GetItemOutput
	err = withRetry(ctx, func() error {
		var opErr error
		out, opErr = s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: tableNamePtr(tableModelPricing),
			Key:       key,
		})
		return opErr
	})
	if err != nil {
		return model.ModelPricing{}, false, errors.Wrap(err, "get model pricing")
	}
	if out.Item == nil {
		return model.ModelPricing{}, false, nil
	}

	var p model.ModelPricing
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return model.ModelPricing{}, false, errors.Wrap(err, "unmarshal model pricing")
	}
	return p, true, nil
}

func (s *Store) PutModelPricing(ctx context.Context, pricing model.ModelPricing) error {
	item, err := attributevalue.MarshalMap(pricing)
	if err != nil {
		return errors.Wrap(err, "marshal model pricing")
	}
	return withRetry(ctx, func() error {
		_, opErr := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: tableNamePtr(tableModelPricing),
			Item:      item,
		})
		return opErr
	})
}
