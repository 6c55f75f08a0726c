package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/internal/config"
	"github.com/goliatone/go-formsync/pkg/store"
	"github.com/goliatone/go-formsync/pkg/store/dynamo"
	"github.com/goliatone/go-formsync/pkg/store/memory"
	"github.com/goliatone/go-formsync/pkg/store/remote"
	"github.com/goliatone/go-formsync/pkg/store/sqlite"
)

// openStore builds the configured document store. blobs is nil for drivers
// without upload support. The returned close function is never nil.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (docs store.DocumentStore, blobs store.BlobStore, closeFn func() error, err error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverMemory:
		s := memory.New()
		return s, s, s.Close, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.DSN, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, noop, err
		}
		return s, nil, s.Close, nil
	case config.DriverDynamo:
		s, err := dynamo.New(dynamoClient(cfg), dynamo.Options{
			Table:        cfg.Table,
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, noop, err
		}
		return s, nil, s.Close, nil
	case config.DriverRemote:
		c, err := remote.NewClient(cfg.URL, remote.WithClientLogger(logger))
		if err != nil {
			return nil, nil, noop, err
		}
		return c, c, noop, nil
	default:
		return nil, nil, noop, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// dynamoClient reads static credentials from the standard AWS environment
// variables. An endpoint targets DynamoDB Local or another compatible
// service.
func dynamoClient(cfg config.StoreConfig) *dynamodb.Client {
	opts := dynamodb.Options{
		Region: cfg.Region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
				SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
				SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				Source:          "environment",
			}, nil
		}),
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return dynamodb.New(opts)
}
