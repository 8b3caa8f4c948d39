package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/pricofy/code-generator/internal/domain"
)

type fakeGenerator struct {
	code     string
	err      error
	message  string
	language string
	calls    int
}

func (f *fakeGenerator) GenerateCode(_ context.Context, message, language string) (string, error) {
	f.calls++
	f.message = message
	f.language = language
	return f.code, f.err
}

type fakeSaver struct {
	err   error
	loc   domain.StorageLocation
	body  string
	calls int
}

func (f *fakeSaver) Save(_ context.Context, loc domain.StorageLocation, body string) error {
	f.calls++
	f.loc = loc
	f.body = body
	return f.err
}

func newTestHandler(gen *fakeGenerator, saver *fakeSaver, strict bool) *Handler {
	h := New(gen, saver, Options{
		Bucket:       "bedrock-course-bucket",
		KeyPrefix:    "code-output/",
		KeyExtension: ".py",
		StrictStatus: strict,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return time.Date(2024, 5, 1, 9, 5, 3, 0, time.UTC) }
	return h
}

func apiEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{Body: body}
}

func assertFixedResponse(t *testing.T, resp events.APIGatewayProxyResponse) {
	t.Helper()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if resp.Body != `"Code generation"` {
		t.Errorf("Body = %q, want %q", resp.Body, `"Code generation"`)
	}
}

func TestHandle_EndToEnd(t *testing.T) {
	gen := &fakeGenerator{code: "print('hello world')"}
	saver := &fakeSaver{}
	h := newTestHandler(gen, saver, false)

	resp, err := h.Handle(context.Background(), apiEvent(`{"message": "print hello world", "key": "Python"}`))
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	assertFixedResponse(t, resp)

	if gen.message != "print hello world" || gen.language != "Python" {
		t.Errorf("generator got (%q, %q)", gen.message, gen.language)
	}
	if saver.calls != 1 {
		t.Fatalf("Save called %d times, want 1", saver.calls)
	}
	if saver.body != "print('hello world')" {
		t.Errorf("stored body = %q", saver.body)
	}
	want := domain.StorageLocation{Bucket: "bedrock-course-bucket", Key: "code-output/090503.py"}
	if saver.loc != want {
		t.Errorf("stored location = %+v, want %+v", saver.loc, want)
	}
}

func TestHandle_LanguageField(t *testing.T) {
	gen := &fakeGenerator{code: "x"}
	h := newTestHandler(gen, &fakeSaver{}, false)

	_, err := h.Handle(context.Background(), apiEvent(`{"message": "m", "language": "Go", "key": "Python"}`))
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if gen.language != "Go" {
		t.Errorf("language = %q, want Go (language field wins over key)", gen.language)
	}
}

func TestHandle_AlwaysSucceedsByDefault(t *testing.T) {
	tests := []struct {
		name      string
		gen       *fakeGenerator
		saver     *fakeSaver
		wantSaves int
	}{
		{"inference timeout", &fakeGenerator{err: errors.New("read timeout")}, &fakeSaver{}, 0},
		{"empty completion", &fakeGenerator{code: ""}, &fakeSaver{}, 0},
		{"storage failure", &fakeGenerator{code: "code"}, &fakeSaver{err: errors.New("AccessDenied")}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(tt.gen, tt.saver, false)

			resp, err := h.Handle(context.Background(), apiEvent(`{"message": "m", "key": "Python"}`))
			if err != nil {
				t.Fatalf("Handle() unexpected error: %v", err)
			}
			assertFixedResponse(t, resp)

			if tt.saver.calls != tt.wantSaves {
				t.Errorf("Save called %d times, want %d", tt.saver.calls, tt.wantSaves)
			}
		})
	}
}

func TestHandle_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", `{"message": `},
		{"missing message", `{"key": "Python"}`},
		{"missing language", `{"message": "m"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{code: "x"}
			h := newTestHandler(gen, &fakeSaver{}, false)

			_, err := h.Handle(context.Background(), apiEvent(tt.body))
			if !errors.Is(err, ErrBadRequest) {
				t.Errorf("Handle() error = %v, want ErrBadRequest", err)
			}
			if gen.calls != 0 {
				t.Error("generator should not be called for an invalid request")
			}
		})
	}
}

func TestHandle_Base64Body(t *testing.T) {
	gen := &fakeGenerator{code: "x"}
	h := newTestHandler(gen, &fakeSaver{}, false)

	event := events.APIGatewayProxyRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"message": "m", "key": "Rust"}`)),
		IsBase64Encoded: true,
	}
	if _, err := h.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if gen.language != "Rust" {
		t.Errorf("language = %q, want Rust", gen.language)
	}
}

func TestHandle_StrictStatus(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		gen        *fakeGenerator
		saver      *fakeSaver
		wantStatus int
	}{
		{"generated", `{"message": "m", "key": "Go"}`, &fakeGenerator{code: "x"}, &fakeSaver{}, http.StatusOK},
		{"empty", `{"message": "m", "key": "Go"}`, &fakeGenerator{}, &fakeSaver{}, http.StatusNoContent},
		{"inference failed", `{"message": "m", "key": "Go"}`, &fakeGenerator{err: errors.New("boom")}, &fakeSaver{}, http.StatusBadGateway},
		{"storage failed", `{"message": "m", "key": "Go"}`, &fakeGenerator{code: "x"}, &fakeSaver{err: errors.New("boom")}, http.StatusInternalServerError},
		{"bad request", `{"key": "Go"}`, &fakeGenerator{}, &fakeSaver{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(tt.gen, tt.saver, true)

			resp, err := h.Handle(context.Background(), apiEvent(tt.body))
			if err != nil {
				t.Fatalf("Handle() unexpected error: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus >= 400 && !strings.Contains(resp.Body, `"error"`) {
				t.Errorf("Body = %q, want error payload", resp.Body)
			}
		})
	}
}

func TestHandle_UniqueKeys(t *testing.T) {
	saver := &fakeSaver{}
	h := newTestHandler(&fakeGenerator{code: "x"}, saver, false)
	h.opts.UniqueKeys = true

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	if _, err := h.Handle(ctx, apiEvent(`{"message": "m", "key": "Go"}`)); err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if saver.loc.Key != "code-output/090503-req-1.py" {
		t.Errorf("Key = %q, want code-output/090503-req-1.py", saver.loc.Key)
	}
}

func TestRequestID_OutsideLambda(t *testing.T) {
	a := requestID(context.Background())
	b := requestID(context.Background())
	if a == "" || a == b {
		t.Errorf("requestID() should return distinct non-empty IDs, got %q and %q", a, b)
	}
}

func TestValidateRequest(t *testing.T) {
	str := func(v string) *string { return &v }

	tests := []struct {
		name     string
		request  requestBody
		errorMsg string
	}{
		{"valid with key", requestBody{Message: str("m"), Key: str("Python")}, ""},
		{"valid with language", requestBody{Message: str("m"), Language: str("Python")}, ""},
		{"empty message is present", requestBody{Message: str(""), Key: str("Python")}, ""},
		{"empty language is present", requestBody{Message: str("m"), Language: str("")}, ""},
		{"missing message", requestBody{Key: str("Python")}, "message is required"},
		{"missing language", requestBody{Message: str("m")}, "language is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateRequest(tt.request)

			if tt.errorMsg != "" {
				if err == nil {
					t.Errorf("validateRequest() should have returned error")
				} else if err.Error() != tt.errorMsg {
					t.Errorf("validateRequest() error = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else if err != nil {
				t.Errorf("validateRequest() unexpected error: %v", err)
			}
		})
	}
}

func TestHandle_EmptyMessageReachesGenerator(t *testing.T) {
	gen := &fakeGenerator{code: "print('')"}
	saver := &fakeSaver{}
	h := newTestHandler(gen, saver, false)

	resp, err := h.Handle(context.Background(), apiEvent(`{"message": "", "key": "Python"}`))
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	assertFixedResponse(t, resp)

	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
	if gen.message != "" || gen.language != "Python" {
		t.Errorf("generator got (%q, %q), want (\"\", \"Python\")", gen.message, gen.language)
	}
	if saver.calls != 1 {
		t.Errorf("Save called %d times, want 1", saver.calls)
	}
}

func TestHandle_NullMessageIsBadRequest(t *testing.T) {
	gen := &fakeGenerator{code: "x"}
	h := newTestHandler(gen, &fakeSaver{}, false)

	_, err := h.Handle(context.Background(), apiEvent(`{"message": null, "key": "Python"}`))
	if !errors.Is(err, ErrBadRequest) {
		t.Errorf("Handle() error = %v, want ErrBadRequest", err)
	}
	if gen.calls != 0 {
		t.Error("generator should not be called for a null message")
	}
}

func TestHandle_DefaultResponseHasNoHeaders(t *testing.T) {
	h := newTestHandler(&fakeGenerator{code: "x"}, &fakeSaver{}, false)

	resp, err := h.Handle(context.Background(), apiEvent(`{"message": "m", "key": "Go"}`))
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	assertFixedResponse(t, resp)
	if len(resp.Headers) != 0 {
		t.Errorf("Headers = %v, want none", resp.Headers)
	}

	h.opts.StrictStatus = true
	resp, err = h.Handle(context.Background(), apiEvent(`{"message": "m", "key": "Go"}`))
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	if resp.Headers["Content-Type"] != "application/json" {
		t.Errorf("strict Content-Type = %q, want application/json", resp.Headers["Content-Type"])
	}
}

func TestHandle_LogsErrorDetailAtDebug(t *testing.T) {
	var logs bytes.Buffer
	saver := &fakeSaver{err: errors.New("failed to put s3://b/k: AccessDenied")}
	h := New(&fakeGenerator{code: "x"}, saver, Options{Bucket: "b"},
		slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	resp, err := h.Handle(context.Background(), apiEvent(`{"message": "m", "key": "Go"}`))
	if err != nil {
		t.Fatalf("Handle() unexpected error: %v", err)
	}
	assertFixedResponse(t, resp)

	out := logs.String()
	if !strings.Contains(out, "AccessDenied") || !strings.Contains(out, "storage_failed") {
		t.Errorf("expected debug log with error detail and outcome, got %q", out)
	}
}
