// Package handler provides the Lambda handler for the code generator.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"github.com/pricofy/code-generator/internal/domain"
	"github.com/pricofy/code-generator/internal/storage"
)

// ErrBadRequest wraps every request parsing failure.
var ErrBadRequest = errors.New("bad request")

// Generator produces code for an instruction in a target language.
type Generator interface {
	GenerateCode(ctx context.Context, message, language string) (string, error)
}

// Saver persists a generated artifact.
type Saver interface {
	Save(ctx context.Context, loc domain.StorageLocation, body string) error
}

// Options controls where artifacts go and how outcomes are reported.
type Options struct {
	Bucket       string
	KeyPrefix    string
	KeyExtension string
	UniqueKeys   bool

	// StrictStatus maps each outcome to its own status code instead of
	// always answering 200.
	StrictStatus bool
}

// Handler runs one code generation per invocation.
type Handler struct {
	generator Generator
	store     Saver
	opts      Options
	logger    *slog.Logger

	now   func() time.Time
	newID func(ctx context.Context) string
}

// New creates a Handler.
func New(generator Generator, store Saver, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		generator: generator,
		store:     store,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
		newID:     requestID,
	}
}

// Handle processes an API Gateway request. With StrictStatus off the
// response is always 200 "Code generation"; only an unparseable request
// is returned as an error.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req, err := parseRequest(event)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid request", "error", err)
		if h.opts.StrictStatus {
			return h.respond(domain.OutcomeBadRequest, err), nil
		}
		return events.APIGatewayProxyResponse{}, err
	}

	language := req.TargetLanguage()
	h.logger.InfoContext(ctx, "generating code", "message", req.Message, "language", language)

	outcome, err := h.generate(ctx, req.Message, language)
	if err != nil {
		h.logger.DebugContext(ctx, "invocation error", "outcome", string(outcome), "error", err)
	}
	h.logger.InfoContext(ctx, "invocation finished", "outcome", string(outcome))

	return h.respond(outcome, err), nil
}

func (h *Handler) generate(ctx context.Context, message, language string) (domain.Outcome, error) {
	code, err := h.generator.GenerateCode(ctx, message, language)
	if err != nil {
		h.logger.WarnContext(ctx, "no code was generated", "reason", "inference failed")
		return domain.OutcomeInferenceFailed, err
	}
	if code == "" {
		h.logger.WarnContext(ctx, "no code was generated", "reason", "empty completion")
		return domain.OutcomeEmpty, nil
	}

	loc := h.location(ctx)
	if err := h.store.Save(ctx, loc, code); err != nil {
		return domain.OutcomeStorageFailed, err
	}
	return domain.OutcomeGenerated, nil
}

// location computes where the artifact for this invocation is stored.
func (h *Handler) location(ctx context.Context) domain.StorageLocation {
	var suffix string
	if h.opts.UniqueKeys {
		suffix = h.newID(ctx)
	}
	return domain.StorageLocation{
		Bucket: h.opts.Bucket,
		Key:    storage.ObjectKey(h.opts.KeyPrefix, h.opts.KeyExtension, h.now(), suffix),
	}
}

func (h *Handler) respond(outcome domain.Outcome, err error) events.APIGatewayProxyResponse {
	if !h.opts.StrictStatus {
		return fixedResponse()
	}

	switch outcome {
	case domain.OutcomeGenerated:
		resp := fixedResponse()
		resp.Headers = map[string]string{"Content-Type": "application/json"}
		return resp
	case domain.OutcomeEmpty:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}
	case domain.OutcomeBadRequest:
		return errorResponse(http.StatusBadRequest, err)
	case domain.OutcomeInferenceFailed:
		return errorResponse(http.StatusBadGateway, fmt.Errorf("code generation failed"))
	default:
		return errorResponse(http.StatusInternalServerError, fmt.Errorf("failed to store generated code"))
	}
}

// fixedResponse is the bare {200, "Code generation"} answer.
func fixedResponse() events.APIGatewayProxyResponse {
	body, _ := json.Marshal(domain.ResponseMessage)
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
	}
}

func errorResponse(status int, err error) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// requestBody is the wire form of a GenerationRequest. Pointers record
// whether a field was present at all.
type requestBody struct {
	Message  *string `json:"message"`
	Language *string `json:"language"`
	Key      *string `json:"key"`
}

// parseRequest decodes the event body into a GenerationRequest.
func parseRequest(event events.APIGatewayProxyRequest) (domain.GenerationRequest, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return domain.GenerationRequest{}, fmt.Errorf("%w: invalid base64 body: %v", ErrBadRequest, err)
		}
		body = decoded
	}

	var raw requestBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.GenerationRequest{}, fmt.Errorf("%w: invalid JSON body: %v", ErrBadRequest, err)
	}
	req, err := validateRequest(raw)
	if err != nil {
		return domain.GenerationRequest{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return req, nil
}

// validateRequest checks both fields are present. Empty values are allowed.
func validateRequest(raw requestBody) (domain.GenerationRequest, error) {
	if raw.Message == nil {
		return domain.GenerationRequest{}, fmt.Errorf("message is required")
	}
	if raw.Language == nil && raw.Key == nil {
		return domain.GenerationRequest{}, fmt.Errorf("language is required")
	}

	req := domain.GenerationRequest{Message: *raw.Message}
	if raw.Language != nil {
		req.Language = *raw.Language
	}
	if raw.Key != nil {
		req.LegacyKey = *raw.Key
	}
	return req, nil
}

// requestID returns the Lambda request ID, or a random UUID outside Lambda.
func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}
