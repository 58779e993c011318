// Package ingest filters raw file selections into admissible upload sets.
package ingest

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/user/docpilot/pkg/backend"
)

const bytesPerMB = 1024 * 1024

// FileDescriptor is one raw file from a selection event.
type FileDescriptor struct {
	Name string
	Path string
	Size int64
}

// Candidate is an admitted file. Extension is lower-case and includes the dot.
type Candidate struct {
	Name      string
	Path      string
	Size      int64
	Extension string
}

// File converts the candidate into a backend multipart file.
func (c Candidate) File() backend.File {
	return backend.File{Name: c.Name, Path: c.Path}
}

// Set is an ordered upload candidate set. Every member satisfies the
// constraints it was admitted under.
type Set []Candidate

// Constraints bound what a given upload action admits.
type Constraints struct {
	AcceptedTypes []string
	MaxSizeMB     float64
}

// DefaultConstraints returns the document constraints shared by every workflow.
func DefaultConstraints() Constraints {
	return Constraints{
		AcceptedTypes: []string{".pdf", ".txt", ".json"},
		MaxSizeMB:     10,
	}
}

func (c Constraints) accepts(ext string) bool {
	for _, t := range c.AcceptedTypes {
		if strings.EqualFold(normalizeType(t), ext) {
			return true
		}
	}
	return false
}

// String renders the constraints the way an upload prompt describes them.
func (c Constraints) String() string {
	return fmt.Sprintf("%s up to %sMB", strings.Join(c.AcceptedTypes, ", "), strconv.FormatFloat(c.MaxSizeMB, 'f', -1, 64))
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t != "" && !strings.HasPrefix(t, ".") {
		t = "." + t
	}
	return t
}

// Extension returns the lower-cased extension after the final dot, including
// the dot. A name without a dot has no extension.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i:])
}

// Admissible reports whether a single file satisfies the constraints.
func Admissible(f FileDescriptor, c Constraints) bool {
	ext := Extension(f.Name)
	if ext == "" || !c.accepts(ext) {
		return false
	}
	return float64(f.Size)/bytesPerMB <= c.MaxSizeMB
}

// Accept filters raw into the candidate set for one selection event.
// Inadmissible files are dropped silently. With multiple=false the result is
// the first admissible file only and prior is discarded; with multiple=true
// admissible files are appended to prior in input order without
// de-duplication. Accept never modifies prior.
func Accept(raw []FileDescriptor, c Constraints, multiple bool, prior Set) Set {
	var admitted Set
	for _, f := range raw {
		if !Admissible(f, c) {
			continue
		}
		admitted = append(admitted, Candidate{
			Name:      f.Name,
			Path:      f.Path,
			Size:      f.Size,
			Extension: Extension(f.Name),
		})
		if !multiple {
			break
		}
	}

	if !multiple {
		if len(admitted) == 0 {
			return Set{}
		}
		return admitted[:1]
	}

	out := make(Set, 0, len(prior)+len(admitted))
	out = append(out, prior...)
	return append(out, admitted...)
}

// Descriptors turns the set back into raw descriptors.
func (s Set) Descriptors() []FileDescriptor {
	out := make([]FileDescriptor, len(s))
	for i, c := range s {
		out[i] = FileDescriptor{Name: c.Name, Path: c.Path, Size: c.Size}
	}
	return out
}

// Remove returns a new set without the member at index i. Out of range
// indexes return an unchanged copy.
func (s Set) Remove(i int) Set {
	out := make(Set, 0, len(s))
	for j, c := range s {
		if j != i {
			out = append(out, c)
		}
	}
	return out
}

// Names lists member names in order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// TotalBytes sums member sizes.
func (s Set) TotalBytes() int64 {
	var total int64
	for _, c := range s {
		total += c.Size
	}
	return total
}

// Files converts every member into a backend file.
func (s Set) Files() []backend.File {
	files := make([]backend.File, len(s))
	for i, c := range s {
		files[i] = c.File()
	}
	return files
}

// Describe stats paths on disk into raw descriptors.
func Describe(paths ...string) ([]FileDescriptor, error) {
	out := make([]FileDescriptor, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		out = append(out, FileDescriptor{
			Name: filepath.Base(p),
			Path: p,
			Size: info.Size(),
		})
	}
	return out, nil
}

// HumanSize formats a byte count as "0 Bytes", "512 Bytes", "1.5 KB" and so on.
func HumanSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	v := float64(n) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + units[i]
}
