// Forwards segment batches to the AWS X-Ray PutTraceSegments API
package xray

import (
	"context"
	"fmt"
	"os"
	"segmentd/internal/global"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsxray "github.com/aws/aws-sdk-go-v2/service/xray"
)

// Builds the X-Ray client. SDK retries are disabled, the uploader owns retry.
func NewOutput(ctx context.Context, cfg Config) (module *OutModule, err error) {
	if cfg.Region == "" {
		cfg.Region = os.Getenv(global.RegionEnvVar)
	}
	if cfg.Region == "" {
		err = fmt.Errorf("aws region is not set (config aws.region or %s)", global.RegionEnvVar)
		return
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}

	switch cfg.CredentialSource {
	case "", global.CredentialsEnv:
		accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
		if accessKey != "" && secretKey != "" {
			provider := credentials.NewStaticCredentialsProvider(accessKey, secretKey, os.Getenv("AWS_SESSION_TOKEN"))
			loadOpts = append(loadOpts, config.WithCredentialsProvider(provider))
		}
		// Without env keys the default chain (instance roles, web identity) applies
	case global.CredentialsFile:
		if cfg.CredentialsFile == "" {
			err = fmt.Errorf("credential source %q requires a credentials file path", cfg.CredentialSource)
			return
		}
		loadOpts = append(loadOpts, config.WithSharedCredentialsFiles([]string{cfg.CredentialsFile}))
		if cfg.Profile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
		}
	case global.CredentialsProfile:
		if cfg.Profile == "" {
			err = fmt.Errorf("credential source %q requires a profile name", cfg.CredentialSource)
			return
		}
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	default:
		err = fmt.Errorf("unknown credential source %q", cfg.CredentialSource)
		return
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		err = fmt.Errorf("failed to load aws configuration: %w", err)
		return
	}

	client := awsxray.NewFromConfig(awsCfg, func(o *awsxray.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	module = NewWithClient(client)
	return
}

// Wraps an existing client (tests, custom transports)
func NewWithClient(api API) (module *OutModule) {
	module = &OutModule{api: api}
	return
}

func (mod *OutModule) Name() string {
	return global.BackendXRay
}

// The SDK client holds no connections that need releasing
func (mod *OutModule) Close() (err error) {
	return
}
