// Package domain contains the core domain types for the code generator.
package domain

// GenerationRequest is the input to the code generator.
// Language is the target programming language. Older clients send it
// under "key"; LegacyKey captures that field so it can be used as a fallback.
type GenerationRequest struct {
	Message   string `json:"message"`
	Language  string `json:"language"`
	LegacyKey string `json:"key,omitempty"`
}

// TargetLanguage returns the requested language, preferring the
// "language" field over the legacy "key" field.
func (r GenerationRequest) TargetLanguage() string {
	if r.Language != "" {
		return r.Language
	}
	return r.LegacyKey
}

// InferenceParameters are the decoding controls sent with every prompt.
type InferenceParameters struct {
	MaxTokens     int
	Temperature   float64
	TopK          int
	TopP          float64
	StopSequences []string
}

// DefaultInferenceParameters returns the fixed sampling configuration.
func DefaultInferenceParameters() InferenceParameters {
	return InferenceParameters{
		MaxTokens:     2048,
		Temperature:   0.1,
		TopK:          250,
		TopP:          0.2,
		StopSequences: []string{"\n\nHuman:"},
	}
}

// StorageLocation addresses a generated artifact in the object store.
type StorageLocation struct {
	Bucket string
	Key    string
}

// Outcome classifies how a single invocation ended.
type Outcome string

const (
	OutcomeGenerated       Outcome = "generated"
	OutcomeEmpty           Outcome = "empty"
	OutcomeInferenceFailed Outcome = "inference_failed"
	OutcomeStorageFailed   Outcome = "storage_failed"
	OutcomeBadRequest      Outcome = "bad_request"
)

// ResponseMessage is the body of every successful response.
const ResponseMessage = "Code generation"
