// Package awsretry classifies AWS SDK errors for retry.Policy.
package awsretry

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/ignite/batch-email/internal/domain"
)

var notFoundCodes = map[string]bool{
	"NoSuchKey":                 true,
	"NoSuchBucket":              true,
	"NotFound":                  true,
	"ResourceNotFoundException": true,
	"QueueDoesNotExist":         true,
	"AWS.SimpleQueueService.NonExistentQueue": true,
}

var throttlingCodes = map[string]bool{
	"ThrottlingException":                    true,
	"Throttling":                             true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"TooManyRequestsException":               true,
	"SlowDown":                               true,
	"RequestThrottled":                       true,
	"InternalError":                          true,
	"InternalFailure":                        true,
	"ServiceUnavailable":                     true,
}

var permanentCodes = map[string]bool{
	"AccessDenied":              true,
	"AccessDeniedException":     true,
	"UnauthorizedOperation":     true,
	"InvalidParameterException": true,
	"InvalidParameterValue":     true,
	"ValidationException":       true,
	"MessageRejected":           true,
}

// IsNotFound reports whether err means the addressed resource does not
// exist, either as a domain sentinel or as an AWS error code.
func IsNotFound(err error) bool {
	if errors.Is(err, domain.ErrNotFound) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && notFoundCodes[apiErr.ErrorCode()]
}

// Classify reports whether err is worth retrying. Not-found, access and
// validation failures are permanent, as are cancelled contexts. Throttling
// and 5xx responses are retried. Unknown errors are treated as transient.
func Classify(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsNotFound(err) {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if throttlingCodes[code] {
			return true
		}
		if permanentCodes[code] {
			return false
		}
		if apiErr.ErrorFault() == smithy.FaultClient {
			return false
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		return status >= 500 || status == 429
	}
	return true
}
