package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mb(n float64) int64 { return int64(n * bytesPerMB) }

func TestAcceptScenarioMixedSelection(t *testing.T) {
	raw := []FileDescriptor{
		{Name: "a.pdf", Size: mb(2)},
		{Name: "b.exe", Size: mb(1)},
		{Name: "c.txt", Size: mb(11)},
	}
	c := Constraints{AcceptedTypes: []string{".pdf", ".txt", ".json"}, MaxSizeMB: 10}

	got := Accept(raw, c, true, nil)
	assert.Equal(t, []string{"a.pdf"}, got.Names())

	got = Accept(raw, c, false, nil)
	assert.Equal(t, []string{"a.pdf"}, got.Names())
}

func TestAcceptSizeBoundary(t *testing.T) {
	c := Constraints{AcceptedTypes: []string{".pdf"}, MaxSizeMB: 10}

	exact := FileDescriptor{Name: "exact.pdf", Size: 10 * bytesPerMB}
	over := FileDescriptor{Name: "over.pdf", Size: 10*bytesPerMB + 1}

	assert.True(t, Admissible(exact, c))
	assert.False(t, Admissible(over, c))
	assert.Equal(t, []string{"exact.pdf"}, Accept([]FileDescriptor{exact, over}, c, true, nil).Names())
}

func TestAcceptExtensionRules(t *testing.T) {
	c := DefaultConstraints()

	cases := []struct {
		name string
		want bool
	}{
		{"REPORT.PDF", true},
		{"notes.Txt", true},
		{"archive.tar.json", true},
		{"archive.json.exe", false},
		{"pdf", false},
		{"trailing.", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Admissible(FileDescriptor{Name: tc.name, Size: 1}, c))
		})
	}
}

func TestAcceptTypesWithoutDot(t *testing.T) {
	c := Constraints{AcceptedTypes: []string{"PDF"}, MaxSizeMB: 1}
	assert.True(t, Admissible(FileDescriptor{Name: "a.pdf", Size: 1}, c))
}

func TestAcceptSingleReplacesPrior(t *testing.T) {
	c := DefaultConstraints()
	prior := Accept([]FileDescriptor{{Name: "old.pdf", Size: 1}}, c, false, nil)

	got := Accept([]FileDescriptor{
		{Name: "skip.exe", Size: 1},
		{Name: "first.txt", Size: 1},
		{Name: "second.json", Size: 1},
	}, c, false, prior)

	require.Len(t, got, 1)
	assert.Equal(t, "first.txt", got[0].Name)
	assert.Equal(t, ".txt", got[0].Extension)

	empty := Accept([]FileDescriptor{{Name: "bad.exe", Size: 1}}, c, false, prior)
	assert.Empty(t, empty)
	assert.Equal(t, []string{"old.pdf"}, prior.Names(), "prior must not be mutated")
}

func TestAcceptMultipleAppendsWithoutDedup(t *testing.T) {
	c := DefaultConstraints()
	prior := Accept([]FileDescriptor{{Name: "a.pdf", Size: 1}}, c, true, nil)

	got := Accept([]FileDescriptor{
		{Name: "b.txt", Size: 1},
		{Name: "a.pdf", Size: 2},
		{Name: "x.exe", Size: 1},
	}, c, true, prior)

	assert.Equal(t, []string{"a.pdf", "b.txt", "a.pdf"}, got.Names())
	assert.Len(t, prior, 1)
}

func TestAcceptIdempotent(t *testing.T) {
	c := DefaultConstraints()
	raw := []FileDescriptor{
		{Name: "a.pdf", Size: mb(1)},
		{Name: "b.exe", Size: 1},
		{Name: "c.json", Size: mb(3)},
		{Name: "d.txt", Size: mb(12)},
	}

	for _, multiple := range []bool{true, false} {
		once := Accept(raw, c, multiple, nil)
		twice := Accept(once.Descriptors(), c, multiple, nil)
		assert.Equal(t, once, twice)
	}
}

func TestSetRemove(t *testing.T) {
	set := Accept([]FileDescriptor{
		{Name: "a.pdf", Size: 1},
		{Name: "b.pdf", Size: 2},
		{Name: "c.pdf", Size: 3},
	}, DefaultConstraints(), true, nil)

	assert.Equal(t, []string{"a.pdf", "c.pdf"}, set.Remove(1).Names())
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, set.Remove(7).Names())
	assert.Equal(t, int64(6), set.TotalBytes())
	assert.Len(t, set.Files(), 3)
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	got, err := Describe(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, FileDescriptor{Name: "doc.txt", Path: path, Size: 5}, got[0])

	_, err = Describe(dir)
	assert.Error(t, err)

	_, err = Describe(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "0 Bytes", HumanSize(0))
	assert.Equal(t, "512 Bytes", HumanSize(512))
	assert.Equal(t, "1.5 KB", HumanSize(1536))
	assert.Equal(t, "2 MB", HumanSize(2*bytesPerMB))
}

func TestConstraintsString(t *testing.T) {
	assert.Equal(t, ".pdf, .txt, .json up to 10MB", DefaultConstraints().String())
}
