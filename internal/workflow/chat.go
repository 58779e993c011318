package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/user/docpilot/internal/history"
	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/lifecycle"
)

// Chat slots.
const (
	SlotChatUpload = "chat-upload"
	SlotChatSend   = "chat-send"
)

// ChatFallback replaces the answer of a failed chat turn.
const ChatFallback = "Sorry, I encountered an error. Please ensure the backend is running and try again."

// Chat is a retrieval chat session over one uploaded document.
type Chat struct {
	env        Env
	uploadSlot *lifecycle.Slot
	sendSlot   *lifecycle.Slot
	timeline   *history.Timeline

	mu        sync.Mutex
	document  ingest.Set
	processed bool
	language  string
}

// NewChat creates an empty chat session answering in English.
func NewChat(env Env) *Chat {
	return &Chat{
		env:        env.withDefaults(),
		uploadSlot: lifecycle.NewSlot(SlotChatUpload),
		sendSlot:   lifecycle.NewSlot(SlotChatSend),
		timeline:   history.NewTimeline(),
		language:   DefaultLanguage,
	}
}

// Timeline returns the session timeline.
func (c *Chat) Timeline() *history.Timeline {
	return c.timeline
}

// Processed reports whether a document has been uploaded successfully.
func (c *Chat) Processed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed
}

// Document returns the last uploaded document, if any.
func (c *Chat) Document() (ingest.Candidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.document) == 0 {
		return ingest.Candidate{}, false
	}
	return c.document[0], true
}

// SetLanguage selects the answer language. Answers in any language other
// than English are passed through the translator before they are shown.
func (c *Chat) SetLanguage(language string) error {
	l, err := NormalizeLanguage(language)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.language = l
	c.mu.Unlock()
	return nil
}

// Language returns the answer language.
func (c *Chat) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// Busy reports whether either slot has a call in flight.
func (c *Chat) Busy() bool {
	return c.uploadSlot.Pending() || c.sendSlot.Pending()
}

// Upload sends the first admissible file of raw as the session document.
// A selection with nothing admissible is a no-op. On success the timeline
// starts over.
func (c *Chat) Upload(ctx context.Context, raw []ingest.FileDescriptor) lifecycle.Result[ingest.Set] {
	selected := ingest.Accept(raw, c.env.Constraints, false, nil)

	return lifecycle.Invoke(ctx, c.env.Controller, c.uploadSlot, func(ctx context.Context) (ingest.Set, error) {
		if err := c.env.Backend.UploadSessionFiles(ctx, selected.Files()); err != nil {
			return nil, err
		}
		return selected, nil
	}, lifecycle.Hooks[ingest.Set]{
		Precondition: func() bool {
			return len(selected) > 0
		},
		OnSuccess: func(set ingest.Set) {
			c.mu.Lock()
			c.document = set
			c.processed = true
			c.mu.Unlock()
			c.timeline.Reset()
			c.env.Notifier.Success(fmt.Sprintf("File %q processed successfully for RAG!", set[0].Name))
		},
		OnFailure: func(error) {
			c.env.Notifier.Error("Error processing file. Please try again.")
		},
	})
}

// Send asks one question. The user entry is appended before the request
// goes out and the history sent with it covers only the turns before it.
// Blank messages are rejected. A failed turn appends ChatFallback. A
// response arriving after Reset is dropped. When translation fails the
// untranslated answer is kept and an error is notified.
func (c *Chat) Send(ctx context.Context, message string, maxTokens int) lifecycle.Result[history.Entry] {
	var (
		prior        []history.Entry
		epoch        uint64
		language     = c.Language()
		translateErr error
	)

	return lifecycle.Invoke(ctx, c.env.Controller, c.sendSlot, func(ctx context.Context) (history.Entry, error) {
		resp, err := c.env.Backend.Chat(ctx, chatRequest(message, prior, maxTokens))
		if err != nil {
			return history.Entry{}, err
		}
		answer := resp.Answer
		if language != DefaultLanguage {
			translated, err := translate(ctx, c.env.Backend, answer, language)
			if err != nil {
				translateErr = err
			} else {
				answer = translated
			}
		}
		return history.Decode(answer, resolveAll(c.env.Resolve, resp.ImageURLs), c.env.Controller.Now()), nil
	}, lifecycle.Hooks[history.Entry]{
		Precondition: func() bool {
			return strings.TrimSpace(message) != ""
		},
		OnOptimisticStart: func() {
			prior, epoch = c.timeline.Push(history.NewUserEntry(message, c.env.Controller.Now()))
		},
		OnSuccess: func(e history.Entry) {
			if !c.timeline.AppendIf(epoch, e) {
				c.env.Logger.Debug("dropping answer for a reset timeline", "slot", SlotChatSend)
				return
			}
			if translateErr != nil {
				c.env.Logger.Warn("answer translation failed", "language", language, "error", translateErr)
				c.env.Notifier.Error(fmt.Sprintf("Could not translate the answer into %s. Showing it in %s.", language, DefaultLanguage))
			}
		},
		OnFailure: func(error) {
			c.env.Notifier.Error("Error communicating with RAG system. Please try again.")
			c.timeline.AppendIf(epoch, history.Fallback(ChatFallback, c.env.Controller.Now()))
		},
	})
}

// Reset clears the conversation. The uploaded document stays processed.
func (c *Chat) Reset() {
	c.timeline.Reset()
}
