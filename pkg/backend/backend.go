package backend

import (
	"context"
	"time"
)

// Backend defines the request/response contract of the inference backend.
// Every method maps to exactly one HTTP endpoint; implementations must not
// retry or cache.
type Backend interface {
	// UploadSessionFiles sends documents for the conversational retrieval session.
	UploadSessionFiles(ctx context.Context, files []File) error

	// Chat asks a question against the session and knowledge-base documents.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Summarize runs the clustering summarizer over one document.
	Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error)

	// UploadEvalFiles sends the context and metrics documents for evaluation.
	UploadEvalFiles(ctx context.Context, contextFile, metricsFile File) error

	// AskEvaluation asks for evaluation feedback.
	AskEvaluation(ctx context.Context, req EvaluationRequest) (*EvaluationResponse, error)

	// UploadAndIndex builds or updates the persistent knowledge base.
	UploadAndIndex(ctx context.Context, files []File) (*MessageResponse, error)

	// DeleteIndex removes the persistent knowledge base from disk and memory.
	DeleteIndex(ctx context.Context) (*MessageResponse, error)

	// IndexStatus reports the persistent knowledge base status.
	IndexStatus(ctx context.Context) (*StatusResponse, error)

	// Translate translates text into a target language.
	Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error)
}

// Config holds transport configuration for backend clients.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultTimeout is the wall-clock ceiling applied to every call.
const DefaultTimeout = 30 * time.Second
