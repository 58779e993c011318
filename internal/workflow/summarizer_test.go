package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/lifecycle"
	"github.com/user/docpilot/pkg/backend"
	"github.com/user/docpilot/pkg/backend/backendtest"
)

func TestSummarizerRequiresDocument(t *testing.T) {
	fake := &backendtest.Fake{}
	env, n := newEnv(fake)
	s := NewSummarizer(env)

	res := s.Summarize(context.Background(), DefaultClusters, 512)
	assert.Equal(t, lifecycle.ReasonPrecondition, res.Reason)
	assert.Zero(t, fake.Calls("Summarize"))
	assert.Equal(t, 1, n.Count("error"))
}

func TestSummarizerClusterBounds(t *testing.T) {
	fake := &backendtest.Fake{}
	env, _ := newEnv(fake)
	s := NewSummarizer(env)
	s.Select([]ingest.FileDescriptor{{Name: "doc.pdf", Size: 1}})

	assert.Equal(t, lifecycle.ReasonPrecondition, s.Summarize(context.Background(), 4, 512).Reason)
	assert.Equal(t, lifecycle.ReasonPrecondition, s.Summarize(context.Background(), 21, 512).Reason)
	assert.True(t, s.Summarize(context.Background(), 5, 512).OK())
	assert.True(t, s.Summarize(context.Background(), 20, 512).OK())
	assert.Equal(t, 2, fake.Calls("Summarize"))
}

func TestSummarizerSuccessAndReselect(t *testing.T) {
	var got backend.SummarizeRequest
	fake := &backendtest.Fake{
		SummarizeFunc: func(ctx context.Context, req backend.SummarizeRequest) (*backend.SummarizeResponse, error) {
			got = req
			return &backend.SummarizeResponse{Summary: "short version"}, nil
		},
	}
	env, _ := newEnv(fake)
	s := NewSummarizer(env)
	s.Select([]ingest.FileDescriptor{{Name: "doc.pdf", Path: "/data/doc.pdf", Size: 1}})

	res := s.Summarize(context.Background(), 12, 700)
	require.True(t, res.OK())
	assert.Equal(t, "short version", s.Summary())
	assert.Equal(t, backend.File{Name: "doc.pdf", Path: "/data/doc.pdf"}, got.File)
	assert.Equal(t, 12, got.NumClusters)
	assert.Equal(t, 700, got.MaxTokens)

	s.Select([]ingest.FileDescriptor{{Name: "skip.exe", Size: 1}})
	assert.Equal(t, "short version", s.Summary())

	s.Select([]ingest.FileDescriptor{{Name: "other.txt", Size: 1}})
	assert.Empty(t, s.Summary())
}

func TestSummarizerFailureLeavesSummaryEmpty(t *testing.T) {
	fail := false
	fake := &backendtest.Fake{
		SummarizeFunc: func(ctx context.Context, req backend.SummarizeRequest) (*backend.SummarizeResponse, error) {
			if fail {
				return nil, errors.New("timeout")
			}
			return &backend.SummarizeResponse{Summary: "first"}, nil
		},
	}
	env, n := newEnv(fake)
	s := NewSummarizer(env)
	s.Select([]ingest.FileDescriptor{{Name: "doc.pdf", Size: 1}})
	require.True(t, s.Summarize(context.Background(), 10, 512).OK())

	fail = true
	res := s.Summarize(context.Background(), 10, 512)
	assert.Equal(t, lifecycle.OutcomeFailed, res.Outcome)
	assert.Empty(t, s.Summary())
	assert.Equal(t, 1, n.Count("error"))
}

func TestSummarizerExport(t *testing.T) {
	env, _ := newEnv(&backendtest.Fake{})
	s := NewSummarizer(env)

	_, err := s.Export(t.TempDir())
	assert.ErrorIs(t, err, ErrNoSummary)

	s.Select([]ingest.FileDescriptor{{Name: "report.pdf", Size: 1}})
	require.True(t, s.Summarize(context.Background(), 10, 512).OK())

	dir := filepath.Join(t.TempDir(), "out")
	path, err := s.Export(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "summary_report.pdf.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mock summary", string(data))
}

func TestExportName(t *testing.T) {
	assert.Equal(t, "summary_document.txt", ExportName(""))
	assert.Equal(t, "summary_a.txt.txt", ExportName("a.txt"))
}

func TestTranslator(t *testing.T) {
	fake := &backendtest.Fake{}
	env, _ := newEnv(fake)
	tr := NewTranslator(env)

	res := tr.Translate(context.Background(), "good morning", "Hindi")
	require.True(t, res.OK())
	assert.Equal(t, "good morning", res.Value)

	res = tr.Translate(context.Background(), "  ", "Hindi")
	assert.Equal(t, lifecycle.ReasonPrecondition, res.Reason)
	assert.Equal(t, 1, fake.Calls("Translate"))

	fake.TranslateFunc = func(ctx context.Context, req backend.TranslateRequest) (*backend.TranslateResponse, error) {
		return &backend.TranslateResponse{}, nil
	}
	res = tr.Translate(context.Background(), "x", "Tamil")
	assert.ErrorIs(t, res.Err, backend.ErrEmptyAnswer)
}

func TestNormalizeLanguage(t *testing.T) {
	l, err := NormalizeLanguage("")
	require.NoError(t, err)
	assert.Equal(t, "English", l)

	l, err = NormalizeLanguage("TAMIL")
	require.NoError(t, err)
	assert.Equal(t, "Tamil", l)

	_, err = NormalizeLanguage("French")
	assert.Error(t, err)
}
