package dynamo

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// isTransient classifies a DynamoDB error as retryable per spec.md §5:
// throttling, 5xx from the underlying service, or network errors.
func isTransient(err error) bool {
	var throttled *types.ProvisionedThroughputExceededException
	if errors.As(err, &throttled) {
		return true
	}
	var limitExceeded *types.RequestLimitExceeded
	if errors.As(err, &limitExceeded) {
		return true
	}
	var internalErr *types.InternalServerError
	if errors.As(err, &internalErr) {
		return true
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() >= 500
	}

	return false
}
