package state

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/docpilot/internal/types"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// Transcript is a session together with its journaled events.
type Transcript struct {
	Session *types.SessionIndex
	Events  []*types.Event
}

type exportRecord struct {
	Seq     int64          `json:"seq" yaml:"seq"`
	Type    string         `json:"type" yaml:"type"`
	Source  string         `json:"source" yaml:"source"`
	At      time.Time      `json:"at" yaml:"at"`
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

type exportDoc struct {
	SessionID types.SessionID `json:"session_id" yaml:"session_id"`
	Workflow  string          `json:"workflow" yaml:"workflow"`
	Source    string          `json:"source,omitempty" yaml:"source,omitempty"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	Events    []exportRecord  `json:"events" yaml:"events"`
}

func (t Transcript) doc() (exportDoc, error) {
	d := exportDoc{
		SessionID: t.Session.SessionID,
		Workflow:  t.Session.Workflow,
		Source:    t.Session.Source,
		CreatedAt: t.Session.CreatedAt,
		Events:    make([]exportRecord, 0, len(t.Events)),
	}
	for _, e := range t.Events {
		var payload map[string]any
		if len(e.Payload) > 0 {
			if err := json.Unmarshal(e.Payload, &payload); err != nil {
				return exportDoc{}, fmt.Errorf("decode event %d payload: %w", e.Seq, err)
			}
		}
		d.Events = append(d.Events, exportRecord{
			Seq:     e.Seq,
			Type:    e.Type,
			Source:  e.Source,
			At:      e.At,
			Payload: payload,
		})
	}
	return d, nil
}

// Export writes the transcript to w in the given format.
func Export(w io.Writer, t Transcript, format string) error {
	d, err := t.doc()
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, markdown(d))
		return err
	default:
		return fmt.Errorf("unknown export format %q (json, yaml, markdown)", format)
	}
}

func markdown(d exportDoc) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s session %s\n\n", d.Workflow, d.SessionID)
	fmt.Fprintf(&b, "_Started %s_\n\n", d.CreatedAt.Format(time.RFC1123))

	for _, e := range d.Events {
		switch e.Type {
		case types.EventUserMessage:
			fmt.Fprintf(&b, "**You:** %v\n\n", e.Payload["content"])
		case types.EventAssistantMessage:
			fmt.Fprintf(&b, "**Assistant:** %v\n\n", e.Payload["content"])
			if urls, ok := e.Payload["image_urls"].([]any); ok {
				for _, u := range urls {
					fmt.Fprintf(&b, "![image](%v)\n\n", u)
				}
			}
		case types.EventUpload:
			fmt.Fprintf(&b, "> Uploaded: %v\n\n", joinAny(e.Payload["files"]))
		case types.EventSummary:
			fmt.Fprintf(&b, "## Summary of %v\n\n%v\n\n", e.Payload["document"], e.Payload["summary"])
		case types.EventReset:
			b.WriteString("---\n\n")
		}
	}
	return b.String()
}

func joinAny(v any) string {
	items, ok := v.([]any)
	if !ok {
		return fmt.Sprint(v)
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprint(it)
	}
	return strings.Join(parts, ", ")
}
