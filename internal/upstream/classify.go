// Package upstream classifies errors returned by the Bedrock Converse/
// ConverseStream calls into the gateway's apierr taxonomy. The teacher
// never inspects AWS SDK error shapes itself (its only Bedrock caller,
// writer/main.go, propagates bedrockruntime errors to the client
// essentially verbatim), so this package is grounded directly on
// github.com/aws/smithy-go's own error interfaces — already a transitive
// dependency of the teacher's aws-sdk-go-v2 stack, promoted here to a
// direct import since the gateway needs to distinguish throttling,
// validation, and access-denied upstream failures rather than relay them
// as one opaque "upstream error".
package upstream

import (
	"errors"

	smithy "github.com/aws/smithy-go"

	"github.com/laiskytech/converse-gateway/internal/apierr"
)

// knownAPICodes maps Bedrock's APIError.ErrorCode() values to the
// gateway's error kinds, per the Bedrock Runtime API reference's
// documented exception set for Converse/ConverseStream.
var knownAPICodes = map[string]apierr.Kind{
	"ThrottlingException":          apierr.KindRateLimit,
	"ServiceQuotaExceededException": apierr.KindRateLimit,
	"ValidationException":          apierr.KindInvalidRequest,
	"ModelErrorException":          apierr.KindInvalidRequest,
	"AccessDeniedException":        apierr.KindAuthentication,
	"ResourceNotFoundException":    apierr.KindInvalidRequest,
	"ModelNotReadyException":       apierr.KindUpstream,
	"ModelTimeoutException":        apierr.KindUpstream,
	"InternalServerException":      apierr.KindUpstream,
	"ServiceUnavailableException":  apierr.KindUpstream,
}

// Classify turns an error returned by bedrockruntime.Converse or
// ConverseStream into an *apierr.Error, preserving the original error as
// the cause for logging. A nil input returns nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if kind, ok := knownAPICodes[apiErr.ErrorCode()]; ok {
			return apierr.New(kind, "bedrock converse call failed: "+apiErr.ErrorMessage(), err)
		}
	}

	var retryable interface{ RetryableError() bool }
	if errors.As(err, &retryable) && retryable.RetryableError() {
		return apierr.New(apierr.KindUpstream, "bedrock converse call failed (retryable)", err)
	}

	return apierr.New(apierr.KindUpstream, "bedrock converse call failed", err)
}

// IsRetryable reports whether err, as classified by Classify, represents a
// condition the caller may retry against the same upstream (throttling or
// a transient upstream fault), as opposed to a client-caused rejection.
func IsRetryable(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ModelNotReadyException", "ModelTimeoutException",
			"InternalServerException", "ServiceUnavailableException":
			return true
		}
		return false
	}

	var retryable interface{ RetryableError() bool }
	if errors.As(err, &retryable) {
		return retryable.RetryableError()
	}
	return false
}
