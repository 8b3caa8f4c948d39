// Package inference sends prompts to a text-generation model on Amazon Bedrock.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/pricofy/code-generator/internal/domain"
	"github.com/pricofy/code-generator/internal/prompt"
)

var (
	// ErrMissingCompletion is returned when the model response has no completion field.
	ErrMissingCompletion = errors.New("response has no completion field")

	// ErrInvalidEncoding is returned when the response body is not valid UTF-8.
	ErrInvalidEncoding = errors.New("response body is not valid UTF-8")
)

// ModelInvoker is the subset of the Bedrock runtime API used by Client.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// CompletionRequest is the text-completion payload for Anthropic models on Bedrock.
type CompletionRequest struct {
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       float64  `json:"temperature"`
	TopK              int      `json:"top_k"`
	TopP              float64  `json:"top_p"`
	StopSequences     []string `json:"stop_sequences"`
}

// CompletionResponse is the text-completion response body.
type CompletionResponse struct {
	Completion *string `json:"completion"`
	StopReason string  `json:"stop_reason,omitempty"`
}

// Client generates text with a fixed model and sampling configuration.
type Client struct {
	invoker ModelInvoker
	modelID string
	params  domain.InferenceParameters
	logger  *slog.Logger
}

// New creates a Client.
func New(invoker ModelInvoker, modelID string, params domain.InferenceParameters, logger *slog.Logger) *Client {
	return &Client{
		invoker: invoker,
		modelID: modelID,
		params:  params,
		logger:  logger,
	}
}

// NewBedrockClient builds a Bedrock runtime client for region. Requests time
// out after readTimeout and are attempted up to maxAttempts times by the
// SDK's standard retryer.
func NewBedrockClient(ctx context.Context, region string, readTimeout time.Duration, maxAttempts int) (*bedrockruntime.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithRetryMaxAttempts(maxAttempts),
		config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(readTimeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return bedrockruntime.NewFromConfig(cfg), nil
}

// GenerateCode asks the model to write code in language for message.
func (c *Client) GenerateCode(ctx context.Context, message, language string) (string, error) {
	return c.Generate(ctx, prompt.Build(message, language))
}

// Generate sends the prompt to the model and returns the completion with
// surrounding whitespace removed. An empty string with a nil error means
// the model produced no text.
func (c *Client) Generate(ctx context.Context, text string) (string, error) {
	completion, err := c.invoke(ctx, text)
	if err != nil {
		c.logger.ErrorContext(ctx, "error generating the code", "model", c.modelID, "error", err)
		return "", err
	}
	return completion, nil
}

func (c *Client) invoke(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(CompletionRequest{
		Prompt:            text,
		MaxTokensToSample: c.params.MaxTokens,
		Temperature:       c.params.Temperature,
		TopK:              c.params.TopK,
		TopP:              c.params.TopP,
		StopSequences:     c.params.StopSequences,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	result, err := c.invoker.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke %s: %w", c.modelID, err)
	}

	if !utf8.Valid(result.Body) {
		return "", ErrInvalidEncoding
	}

	var resp CompletionResponse
	if err := json.Unmarshal(result.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Completion == nil {
		return "", ErrMissingCompletion
	}

	c.logger.DebugContext(ctx, "completion received",
		"model", c.modelID,
		"stop_reason", resp.StopReason,
		"length", len(*resp.Completion))

	return strings.TrimSpace(*resp.Completion), nil
}
