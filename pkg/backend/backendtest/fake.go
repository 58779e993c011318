// Package backendtest provides a programmable backend.Backend for tests.
package backendtest

import (
	"context"
	"sync"

	"github.com/user/docpilot/pkg/backend"
)

// Fake is a test double that satisfies backend.Backend. Each method delegates
// to its Func field when set and records the call; unset methods succeed with
// a canned response.
type Fake struct {
	UploadSessionFilesFunc func(ctx context.Context, files []backend.File) error
	ChatFunc               func(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)
	SummarizeFunc          func(ctx context.Context, req backend.SummarizeRequest) (*backend.SummarizeResponse, error)
	UploadEvalFilesFunc    func(ctx context.Context, contextFile, metricsFile backend.File) error
	AskEvaluationFunc      func(ctx context.Context, req backend.EvaluationRequest) (*backend.EvaluationResponse, error)
	UploadAndIndexFunc     func(ctx context.Context, files []backend.File) (*backend.MessageResponse, error)
	DeleteIndexFunc        func(ctx context.Context) (*backend.MessageResponse, error)
	IndexStatusFunc        func(ctx context.Context) (*backend.StatusResponse, error)
	TranslateFunc          func(ctx context.Context, req backend.TranslateRequest) (*backend.TranslateResponse, error)

	mu    sync.Mutex
	calls map[string]int

	ChatRequests       []backend.ChatRequest
	EvaluationRequests []backend.EvaluationRequest
	IndexedFiles       [][]backend.File
}

var _ backend.Backend = (*Fake)(nil)

func (f *Fake) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

// Calls returns how many times the named method was invoked.
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *Fake) UploadSessionFiles(ctx context.Context, files []backend.File) error {
	f.record("UploadSessionFiles")
	if f.UploadSessionFilesFunc != nil {
		return f.UploadSessionFilesFunc(ctx, files)
	}
	return nil
}

func (f *Fake) Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error) {
	f.record("Chat")
	f.mu.Lock()
	f.ChatRequests = append(f.ChatRequests, req)
	f.mu.Unlock()
	if f.ChatFunc != nil {
		return f.ChatFunc(ctx, req)
	}
	return &backend.ChatResponse{Answer: "mock answer"}, nil
}

func (f *Fake) Summarize(ctx context.Context, req backend.SummarizeRequest) (*backend.SummarizeResponse, error) {
	f.record("Summarize")
	if f.SummarizeFunc != nil {
		return f.SummarizeFunc(ctx, req)
	}
	return &backend.SummarizeResponse{Summary: "mock summary"}, nil
}

func (f *Fake) UploadEvalFiles(ctx context.Context, contextFile, metricsFile backend.File) error {
	f.record("UploadEvalFiles")
	if f.UploadEvalFilesFunc != nil {
		return f.UploadEvalFilesFunc(ctx, contextFile, metricsFile)
	}
	return nil
}

func (f *Fake) AskEvaluation(ctx context.Context, req backend.EvaluationRequest) (*backend.EvaluationResponse, error) {
	f.record("AskEvaluation")
	f.mu.Lock()
	f.EvaluationRequests = append(f.EvaluationRequests, req)
	f.mu.Unlock()
	if f.AskEvaluationFunc != nil {
		return f.AskEvaluationFunc(ctx, req)
	}
	return &backend.EvaluationResponse{Feedback: "mock feedback"}, nil
}

func (f *Fake) UploadAndIndex(ctx context.Context, files []backend.File) (*backend.MessageResponse, error) {
	f.record("UploadAndIndex")
	f.mu.Lock()
	f.IndexedFiles = append(f.IndexedFiles, files)
	f.mu.Unlock()
	if f.UploadAndIndexFunc != nil {
		return f.UploadAndIndexFunc(ctx, files)
	}
	return &backend.MessageResponse{Message: "Files uploaded and indexed successfully"}, nil
}

func (f *Fake) DeleteIndex(ctx context.Context) (*backend.MessageResponse, error) {
	f.record("DeleteIndex")
	if f.DeleteIndexFunc != nil {
		return f.DeleteIndexFunc(ctx)
	}
	return &backend.MessageResponse{Message: "Index deleted successfully"}, nil
}

func (f *Fake) IndexStatus(ctx context.Context) (*backend.StatusResponse, error) {
	f.record("IndexStatus")
	if f.IndexStatusFunc != nil {
		return f.IndexStatusFunc(ctx)
	}
	return &backend.StatusResponse{
		IsLoadedInMemory: "False",
		FilesExistOnDisk: "False",
		ChunkCount:       "0",
		PersistentDir:    "persistent_index",
	}, nil
}

func (f *Fake) Translate(ctx context.Context, req backend.TranslateRequest) (*backend.TranslateResponse, error) {
	f.record("Translate")
	if f.TranslateFunc != nil {
		return f.TranslateFunc(ctx, req)
	}
	return &backend.TranslateResponse{TranslatedText: req.Text}, nil
}
