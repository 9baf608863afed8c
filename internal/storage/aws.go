// Package storage holds the AWS-backed stores: the shared client
// configuration and the S3 bucket CSV imports are read from.
package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	appconfig "github.com/ignite/conference-hub/internal/config"
)

// LoadAWSConfig builds the SDK configuration shared by every AWS client.
// Static keys win over a named profile, which wins over the default chain.
func LoadAWSConfig(ctx context.Context, c appconfig.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.Region)}
	switch {
	case c.AccessKey != "" && c.SecretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")))
	case c.GetProfile() != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.GetProfile()))
	}
	if c.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(c.Endpoint))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}
