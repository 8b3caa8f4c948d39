// Package main is the entry point for the code generator Lambda function.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/pricofy/code-generator/internal/config"
	"github.com/pricofy/code-generator/internal/domain"
	"github.com/pricofy/code-generator/internal/handler"
	"github.com/pricofy/code-generator/internal/inference"
	"github.com/pricofy/code-generator/internal/storage"
)

type app struct {
	handler *handler.Handler
	warmer  *warmer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	a, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialise", "error", err)
		os.Exit(1)
	}

	lambda.Start(a.handleRequest)
}

// newApp builds the AWS clients once per cold start.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	bedrock, err := inference.NewBedrockClient(ctx, cfg.Region, cfg.ReadTimeout, cfg.MaxAttempts)
	if err != nil {
		return nil, err
	}
	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		return nil, err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	generator := inference.New(bedrock, cfg.ModelID, domain.DefaultInferenceParameters(), logger)
	store := storage.New(s3Client, logger)

	h := handler.New(generator, store, handler.Options{
		Bucket:       cfg.Bucket,
		KeyPrefix:    cfg.KeyPrefix,
		KeyExtension: cfg.KeyExtension,
		UniqueKeys:   cfg.UniqueKeys,
		StrictStatus: cfg.StrictStatus,
	}, logger)

	return &app{
		handler: h,
		warmer: &warmer{
			invoker:      lambdasdk.NewFromConfig(awsCfg),
			functionName: os.Getenv("AWS_LAMBDA_FUNCTION_NAME"),
			delay:        warmupDelay,
			logger:       logger,
		},
	}, nil
}

func (a *app) handleRequest(ctx context.Context, event json.RawMessage) (interface{}, error) {
	// Warmup pings never reach Bedrock or S3.
	if w, ok := parseWarmup(event); ok {
		return a.warmer.handle(ctx, w)
	}

	var req events.APIGatewayProxyRequest
	if err := json.Unmarshal(event, &req); err != nil {
		return nil, err
	}

	return a.handler.Handle(ctx, req)
}
