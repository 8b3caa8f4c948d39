// Command local runs a single code generation against real AWS from a
// developer machine. Settings come from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/joho/godotenv"

	"github.com/pricofy/code-generator/internal/config"
	"github.com/pricofy/code-generator/internal/domain"
	"github.com/pricofy/code-generator/internal/handler"
	"github.com/pricofy/code-generator/internal/inference"
	"github.com/pricofy/code-generator/internal/storage"
)

func main() {
	message := flag.String("message", "", "instruction for the model")
	language := flag.String("language", "Python", "target programming language")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load env file", "file", *envFile, "error", err)
	}

	if err := run(context.Background(), *message, *language); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, message, language string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	bedrock, err := inference.NewBedrockClient(ctx, cfg.Region, cfg.ReadTimeout, cfg.MaxAttempts)
	if err != nil {
		return err
	}
	s3Client, err := storage.NewS3Client(ctx)
	if err != nil {
		return err
	}

	h := handler.New(
		inference.New(bedrock, cfg.ModelID, domain.DefaultInferenceParameters(), logger),
		storage.New(s3Client, logger),
		handler.Options{
			Bucket:       cfg.Bucket,
			KeyPrefix:    cfg.KeyPrefix,
			KeyExtension: cfg.KeyExtension,
			UniqueKeys:   cfg.UniqueKeys,
			StrictStatus: cfg.StrictStatus,
		},
		logger,
	)

	body, err := json.Marshal(domain.GenerationRequest{Message: message, Language: language})
	if err != nil {
		return err
	}

	resp, err := h.Handle(ctx, events.APIGatewayProxyRequest{Body: string(body)})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
