package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/user/docpilot/pkg/backend"
)

// Client implements backend.Backend over HTTP.
type Client struct {
	config     *backend.Config
	httpClient *http.Client
}

var _ backend.Backend = (*Client)(nil)

// New creates a new backend client with the given configuration.
func New(config *backend.Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = backend.DefaultTimeout
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.config.BaseURL, "/")
}

// ResolveURL turns a backend-relative reference such as /images/x.png into
// an absolute URL. Absolute references are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(c.BaseURL() + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// UploadSessionFiles implements backend.Backend.
func (c *Client) UploadSessionFiles(ctx context.Context, files []backend.File) error {
	form := newForm()
	for _, f := range files {
		form.file("files", f)
	}
	return c.postForm(ctx, "/rag/upload_files/", form, nil)
}

// Chat implements backend.Backend.
func (c *Client) Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error) {
	if req.History == nil {
		req.History = [][2]string{}
	}
	var resp backend.ChatResponse
	if err := c.postJSON(ctx, "/rag/chat/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Summarize implements backend.Backend.
func (c *Client) Summarize(ctx context.Context, req backend.SummarizeRequest) (*backend.SummarizeResponse, error) {
	form := newForm()
	form.file("file", req.File)
	form.field("num_clusters", strconv.Itoa(req.NumClusters))
	form.field("max_tokens", strconv.Itoa(req.MaxTokens))

	var resp backend.SummarizeResponse
	if err := c.postForm(ctx, "/summarizer/summarize_document/", form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadEvalFiles implements backend.Backend.
func (c *Client) UploadEvalFiles(ctx context.Context, contextFile, metricsFile backend.File) error {
	form := newForm()
	form.file("context_file", contextFile)
	form.file("metrics_file", metricsFile)
	return c.postForm(ctx, "/evaluator/upload_eval_files/", form, nil)
}

// AskEvaluation implements backend.Backend.
func (c *Client) AskEvaluation(ctx context.Context, req backend.EvaluationRequest) (*backend.EvaluationResponse, error) {
	if req.History == "" {
		req.History = "[]"
	}
	var resp backend.EvaluationResponse
	if err := c.postJSON(ctx, "/evaluator/ask_evaluation/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadAndIndex implements backend.Backend.
func (c *Client) UploadAndIndex(ctx context.Context, files []backend.File) (*backend.MessageResponse, error) {
	form := newForm()
	for _, f := range files {
		form.file("files", f)
	}
	var resp backend.MessageResponse
	if err := c.postForm(ctx, "/persistent_rag/upload_and_index/", form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteIndex implements backend.Backend.
func (c *Client) DeleteIndex(ctx context.Context) (*backend.MessageResponse, error) {
	var resp backend.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/persistent_rag/delete_index/", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IndexStatus implements backend.Backend.
func (c *Client) IndexStatus(ctx context.Context) (*backend.StatusResponse, error) {
	var resp backend.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/persistent_rag/status/", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Translate implements backend.Backend.
func (c *Client) Translate(ctx context.Context, req backend.TranslateRequest) (*backend.TranslateResponse, error) {
	var resp backend.TranslateResponse
	if err := c.postJSON(ctx, "/translator/translate_text/", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json", out)
}

func (c *Client) postForm(ctx context.Context, path string, form *multipartForm, out any) error {
	body, contentType, err := form.encode()
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	endpoint := c.BaseURL() + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("backend request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &backend.APIError{StatusCode: resp.StatusCode, Detail: errorDetail(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// errorDetail pulls the FastAPI {"detail": ...} message out of an error body.
// Validation errors carry a list in detail; it is returned as raw JSON.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}

type formPart struct {
	field string
	value string
	file  *backend.File
}

// multipartForm collects parts and writes them in insertion order on encode,
// so files are opened only once the whole request is known.
type multipartForm struct {
	parts []formPart
}

func newForm() *multipartForm {
	return &multipartForm{}
}

func (f *multipartForm) field(name, value string) {
	f.parts = append(f.parts, formPart{field: name, value: value})
}

func (f *multipartForm) file(name string, file backend.File) {
	f.parts = append(f.parts, formPart{field: name, file: &file})
}

func (f *multipartForm) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range f.parts {
		if p.file == nil {
			if err := w.WriteField(p.field, p.value); err != nil {
				return nil, "", fmt.Errorf("writing field %s: %w", p.field, err)
			}
			continue
		}
		if err := writeFilePart(w, p.field, *p.file); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, field string, file backend.File) error {
	src, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", file.Name, err)
	}
	defer src.Close()

	part, err := w.CreateFormFile(field, file.Name)
	if err != nil {
		return fmt.Errorf("creating part for %s: %w", file.Name, err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("copying %s: %w", file.Name, err)
	}
	return nil
}
