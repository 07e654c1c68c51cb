package xray

import (
	"context"

	awsxray "github.com/aws/aws-sdk-go-v2/service/xray"
)

// Subset of the X-Ray client used by the backend
type API interface {
	PutTraceSegments(ctx context.Context, params *awsxray.PutTraceSegmentsInput, optFns ...func(*awsxray.Options)) (*awsxray.PutTraceSegmentsOutput, error)
}

type Config struct {
	Region           string
	Endpoint         string // Overrides the regional endpoint (local emulators, proxies)
	CredentialSource string // global.Credentials*
	CredentialsFile  string
	Profile          string
}

type OutModule struct {
	api API
}
