// Package main contains the warmup path that keeps code generator instances hot.
// A scheduled rule sends {"source":"warmup","concurrency":N}; the instance
// that receives it fans out N async invocations of itself.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

const (
	warmupSource = "warmup"

	// warmupDelay keeps this instance busy long enough for the fan-out
	// to land on other instances.
	warmupDelay = 75 * time.Millisecond

	// maxWarmupConcurrency caps the fan-out of a single warmup event.
	maxWarmupConcurrency = 50
)

type warmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

type warmupResponse struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// functionInvoker is the subset of the Lambda API used for self-invocation.
type functionInvoker interface {
	Invoke(ctx context.Context, params *lambdasdk.InvokeInput, optFns ...func(*lambdasdk.Options)) (*lambdasdk.InvokeOutput, error)
}

type warmer struct {
	invoker      functionInvoker
	functionName string
	delay        time.Duration
	logger       *slog.Logger
}

// parseWarmup reports whether event is a warmup ping. Concurrency may be
// sent as a number or a numeric string; anything else counts as 0.
func parseWarmup(event json.RawMessage) (*warmupEvent, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(event, &fields); err != nil {
		return nil, false
	}

	var source string
	if err := json.Unmarshal(fields["source"], &source); err != nil || source != warmupSource {
		return nil, false
	}

	w := &warmupEvent{Source: source, Concurrency: parseConcurrency(fields["concurrency"])}
	if w.Concurrency < 0 {
		w.Concurrency = 0
	}
	if w.Concurrency > maxWarmupConcurrency {
		w.Concurrency = maxWarmupConcurrency
	}
	return w, true
}

func parseConcurrency(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return v
		}
	}
	return 0
}

func (w *warmer) handle(ctx context.Context, event *warmupEvent) (map[string]interface{}, error) {
	warmed := 1

	if event.Concurrency > 0 {
		if err := w.fanOut(ctx, event.Concurrency); err != nil {
			w.logger.WarnContext(ctx, "warmup self-invocation failed", "error", err)
		} else {
			warmed += event.Concurrency
		}
	}

	time.Sleep(w.delay)

	return map[string]interface{}{
		"statusCode": 200,
		"body":       warmupResponse{Status: "warm", InstancesWarmed: warmed},
	}, nil
}

// fanOut invokes this function count times asynchronously. Children get
// concurrency 0 so they do not fan out again.
func (w *warmer) fanOut(ctx context.Context, count int) error {
	if w.invoker == nil || w.functionName == "" {
		return fmt.Errorf("self-invocation not configured")
	}

	payload, err := json.Marshal(warmupEvent{Source: warmupSource})
	if err != nil {
		return err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.invoker.Invoke(ctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(w.functionName),
				InvocationType: types.InvocationTypeEvent,
				Payload:        payload,
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return firstErr
}
