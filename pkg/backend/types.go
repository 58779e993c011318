package backend

import (
	"errors"
	"fmt"
)

// File is a document on local disk to be sent as a multipart part.
// The file is opened fresh on every request.
type File struct {
	Name string
	Path string
}

// ChatRequest is the body of POST /rag/chat/.
type ChatRequest struct {
	Question  string      `json:"question"`
	History   [][2]string `json:"history"`
	MaxTokens int         `json:"max_tokens"`
}

// ChatResponse is the answer of POST /rag/chat/.
type ChatResponse struct {
	Answer    string   `json:"answer"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// SummarizeRequest describes one summarization run. It is sent as multipart.
type SummarizeRequest struct {
	File        File
	NumClusters int
	MaxTokens   int
}

// SummarizeResponse is the answer of POST /summarizer/summarize_document/.
type SummarizeResponse struct {
	Summary string `json:"summary"`
}

// EvaluationRequest is the body of POST /evaluator/ask_evaluation/.
// History carries the JSON-stringified pair list.
type EvaluationRequest struct {
	Question  string `json:"question"`
	History   string `json:"history"`
	MaxTokens int    `json:"max_tokens"`
}

// EvaluationResponse is the answer of POST /evaluator/ask_evaluation/.
type EvaluationResponse struct {
	Feedback string `json:"feedback"`
}

// MessageResponse is the generic {"message": ...} answer of knowledge-base mutations.
type MessageResponse struct {
	Message string `json:"message"`
}

// StatusResponse is the answer of GET /persistent_rag/status/.
// All values are transmitted as strings, booleans as "True"/"False".
type StatusResponse struct {
	IsLoadedInMemory string `json:"is_loaded_in_memory"`
	FilesExistOnDisk string `json:"files_exist_on_disk"`
	ChunkCount       string `json:"chunk_count"`
	PersistentDir    string `json:"persistent_dir"`
}

// TranslateRequest is the body of POST /translator/translate_text/.
type TranslateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

// TranslateResponse is the answer of POST /translator/translate_text/.
type TranslateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// ErrEmptyAnswer is returned when a successful response lacks its payload field.
var ErrEmptyAnswer = errors.New("backend returned an empty answer")

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Detail)
}

// Detail extracts a human-readable reason from err, preferring the backend's
// own detail message.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
