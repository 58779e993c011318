package workflow

import (
	"github.com/user/docpilot/internal/history"
	"github.com/user/docpilot/pkg/backend"
)

func chatRequest(question string, prior []history.Entry, maxTokens int) backend.ChatRequest {
	return backend.ChatRequest{
		Question:  question,
		History:   history.Tuples(history.Encode(prior)),
		MaxTokens: maxTokens,
	}
}

func evaluationRequest(question string, prior []history.Entry, maxTokens int) (backend.EvaluationRequest, error) {
	h, err := history.EncodeJSON(prior)
	if err != nil {
		return backend.EvaluationRequest{}, err
	}
	return backend.EvaluationRequest{
		Question:  question,
		History:   h,
		MaxTokens: maxTokens,
	}, nil
}
