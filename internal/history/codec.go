package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/user/docpilot/internal/types"
)

// Pair is one (prompt, response) history tuple.
type Pair struct {
	Prompt   string
	Response string
}

// Tuple returns the pair in the backend's two-element array form.
func (p Pair) Tuple() [2]string {
	return [2]string{p.Prompt, p.Response}
}

// Encode collapses a timeline into history pairs. It walks the entries two
// at a time from index 0 and pairs them by position only: roles are not
// checked, and a trailing unpaired entry is left out. The result always has
// len(entries)/2 pairs and is never nil.
//
// Callers pass the timeline as it was before the current question was
// appended, so the question travels separately and is not doubled.
func Encode(entries []Entry) []Pair {
	pairs := make([]Pair, 0, len(entries)/2)
	for i := 0; i+1 < len(entries); i += 2 {
		pairs = append(pairs, Pair{
			Prompt:   entries[i].Content,
			Response: entries[i+1].Content,
		})
	}
	return pairs
}

// Tuples converts pairs into the chat endpoint's history field.
func Tuples(pairs []Pair) [][2]string {
	out := make([][2]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Tuple()
	}
	return out
}

// EncodeJSON encodes the timeline into the stringified history the
// evaluation endpoint takes.
func EncodeJSON(entries []Entry) (string, error) {
	data, err := json.Marshal(Tuples(Encode(entries)))
	if err != nil {
		return "", fmt.Errorf("marshal history: %w", err)
	}
	return string(data), nil
}

// Decode builds the assistant entry for a backend answer.
func Decode(answer string, imageURLs []string, now time.Time) Entry {
	var images []string
	if len(imageURLs) > 0 {
		images = make([]string, len(imageURLs))
		copy(images, imageURLs)
	}
	return Entry{
		ID:        types.NewEntryID(),
		Role:      RoleAssistant,
		Content:   answer,
		ImageURLs: images,
		CreatedAt: now,
	}
}
