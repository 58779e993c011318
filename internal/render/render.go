// Package render formats workflow state for terminals and chat front ends.
package render

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/fatih/color"

	"github.com/user/docpilot/internal/history"
	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/kb"
)

var htmlTag = regexp.MustCompile(`(?i)</?(p|br|div|ul|ol|li|table|tr|td|th|h[1-6]|b|strong|i|em|code|pre|a)\b[^>]*>`)

// Markdown converts answers that came back as HTML fragments into markdown.
// Plain text is returned unchanged, as is anything that fails to convert.
func Markdown(text string) string {
	if !htmlTag.MatchString(text) {
		return text
	}
	md, err := htmltomarkdown.ConvertString(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(md)
}

// Mark renders a status flag.
func Mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

// Snapshot renders an index status snapshot as plain lines.
func Snapshot(s kb.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Loaded in memory: %s\n", Mark(s.LoadedInMemory))
	fmt.Fprintf(&b, "Index on disk:    %s\n", Mark(s.ExistsOnDisk))
	fmt.Fprintf(&b, "Chunks:           %d\n", s.ChunkCount)
	fmt.Fprintf(&b, "Storage path:     %s\n", s.StoragePath)
	return b.String()
}

// Candidates renders a numbered candidate list with sizes.
func Candidates(set ingest.Set) string {
	if len(set) == 0 {
		return "No files staged.\n"
	}
	var b strings.Builder
	for i, c := range set {
		fmt.Fprintf(&b, "%2d. %s (%s)\n", i+1, c.Name, ingest.HumanSize(c.Size))
	}
	fmt.Fprintf(&b, "%d file(s), %s total\n", len(set), ingest.HumanSize(set.TotalBytes()))
	return b.String()
}

// Printer writes colored workflow output.
type Printer struct {
	w         io.Writer
	user      *color.Color
	assistant *color.Color
	success   *color.Color
	failure   *color.Color
	info      *color.Color
	dim       *color.Color
}

// NewPrinter creates a printer writing to w. noColor disables escapes.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	p := &Printer{
		w:         w,
		user:      color.New(color.FgCyan, color.Bold),
		assistant: color.New(color.FgGreen, color.Bold),
		success:   color.New(color.FgGreen),
		failure:   color.New(color.FgRed),
		info:      color.New(color.FgYellow),
		dim:       color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.user, p.assistant, p.success, p.failure, p.info, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

// Entry prints one timeline entry with its image links.
func (p *Printer) Entry(e history.Entry) {
	label, c := "You", p.user
	if e.Role == history.RoleAssistant {
		label, c = "Assistant", p.assistant
	}
	c.Fprintf(p.w, "%s: ", label)
	fmt.Fprintln(p.w, Markdown(e.Content))
	for i, u := range e.ImageURLs {
		p.dim.Fprintf(p.w, "  [image %d] %s\n", i+1, u)
	}
}

// Entries prints a whole timeline.
func (p *Printer) Entries(entries []history.Entry) {
	if len(entries) == 0 {
		p.dim.Fprintln(p.w, "(no messages yet)")
		return
	}
	for _, e := range entries {
		p.Entry(e)
	}
}

// Line prints plain text.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Dim prints de-emphasized text.
func (p *Printer) Dim(format string, args ...any) {
	p.dim.Fprintf(p.w, format+"\n", args...)
}

// Success implements lifecycle.Notifier.
func (p *Printer) Success(msg string) {
	p.success.Fprintln(p.w, "✔ "+msg)
}

// Error implements lifecycle.Notifier.
func (p *Printer) Error(msg string) {
	p.failure.Fprintln(p.w, "✖ "+msg)
}

// Info implements lifecycle.Notifier.
func (p *Printer) Info(msg string) {
	p.info.Fprintln(p.w, "ℹ "+msg)
}
