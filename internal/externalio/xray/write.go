package xray

import (
	"context"
	"errors"
	"fmt"
	"net"
	"segmentd/internal/collector/buffer"
	"segmentd/internal/collector/uploader"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsxray "github.com/aws/aws-sdk-go-v2/service/xray"
	"github.com/aws/smithy-go"
)

// Error codes worth another attempt, for whole requests and single segments
var retryableCodes = map[string]bool{
	"ThrottledException":       true,
	"ThrottlingException":      true,
	"TooManyRequestsException": true,
	"RequestLimitExceeded":     true,
	"ServiceUnavailable":       true,
	"InternalFailure":          true,
	"InternalServerError":      true,
	"RequestTimeout":           true,
}

// Uploads the batch documents in one PutTraceSegments call
func (mod *OutModule) Send(ctx context.Context, batch *buffer.Batch) (unprocessed []uploader.Unprocessed, err error) {
	input := &awsxray.PutTraceSegmentsInput{
		TraceSegmentDocuments: uploader.Documents(batch),
	}

	output, err := mod.api.PutTraceSegments(ctx, input)
	if err != nil {
		err = classify(err)
		return
	}
	if output == nil {
		return
	}

	for _, entry := range output.UnprocessedTraceSegments {
		code := aws.ToString(entry.ErrorCode)
		unprocessed = append(unprocessed, uploader.Unprocessed{
			SegmentID: aws.ToString(entry.Id),
			Code:      code,
			Message:   aws.ToString(entry.Message),
			Retryable: retryableCodes[code],
		})
	}
	return
}

// Maps SDK errors onto the uploader's retry classes
func classify(err error) (classified error) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if retryableCodes[code] {
			classified = uploader.Retry(err)
			return
		}
		if code == "InvalidRequestException" || apiErr.ErrorFault() == smithy.FaultClient {
			var status interface{ HTTPStatusCode() int }
			if !errors.As(err, &status) || status.HTTPStatusCode() != 429 {
				classified = uploader.Reject(err)
				return
			}
		}
	}

	var status interface{ HTTPStatusCode() int }
	if errors.As(err, &status) {
		switch code := status.HTTPStatusCode(); {
		case code == 429 || code >= 500:
			classified = uploader.Retry(err)
		case code >= 400:
			classified = uploader.Reject(err)
		default:
			classified = uploader.Retry(err)
		}
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		classified = uploader.Retry(err)
		return
	}

	if errors.Is(err, context.Canceled) {
		classified = err
		return
	}

	// Credential lookups and serialization failures
	classified = uploader.Reject(fmt.Errorf("x-ray request failed: %w", err))
	return
}
