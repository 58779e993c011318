package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/docpilot/internal/history"
	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/kb"
	"github.com/user/docpilot/internal/lifecycle"
	"github.com/user/docpilot/internal/render"
	"github.com/user/docpilot/internal/state"
	"github.com/user/docpilot/internal/types"
	"github.com/user/docpilot/internal/workflow"
)

const maxTelegramMessage = 4096

const (
	greeting       = "Hello! Send me a document to chat about it, then ask questions. /language switches the answer language, /reset starts over."
	busyReply      = "Still working on your previous message, please wait."
	unknownCommand = "Unknown command. Available: /start, /reset, /status, /language"
)

// botAPI is the part of the Bot API the adapter talks to.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Options wires the adapter to the workflows.
type Options struct {
	// Env is shared by every chat. Its Notifier is replaced per chat.
	Env workflow.Env
	// KB answers /status. Nil disables the command.
	KB          *kb.Manager
	Sessions    types.SessionStore
	Events      types.EventStore
	MaxTokens   int
	Language    string
	DownloadDir string
}

// Adapter bridges Telegram chats to RAG chat sessions, one per chat.
type Adapter struct {
	bot    *tgbotapi.BotAPI
	api    botAPI
	opts   Options
	http   *http.Client
	logger *slog.Logger

	mu    sync.Mutex
	chats map[int64]*chatSession
	wg    sync.WaitGroup
}

type chatSession struct {
	chat    *workflow.Chat
	journal *state.Journal
}

// New creates a Telegram adapter.
func New(token string, opts Options) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := newAdapter(bot, opts)
	a.bot = bot
	return a, nil
}

func newAdapter(api botAPI, opts Options) *Adapter {
	if opts.Language == "" {
		opts.Language = workflow.DefaultLanguage
	}
	return &Adapter{
		api:    api,
		opts:   opts,
		http:   &http.Client{},
		logger: slog.Default().With("component", "telegram"),
		chats:  make(map[int64]*chatSession),
	}
}

// Start long-polls for updates until ctx is cancelled. Each message is
// handled on its own goroutine; messages for a chat with a question in
// flight are turned away.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)
	a.logger.Info("telegram bot started", "user", a.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			a.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer a.wg.Done()
				a.handleMessage(ctx, msg)
			}(update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			a.wg.Wait()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch {
	case msg.IsCommand():
		a.handleCommand(ctx, msg)
	case msg.Document != nil:
		a.handleDocument(ctx, msg)
	case msg.Text != "":
		a.handleText(ctx, msg)
	}
}

func (a *Adapter) session(ctx context.Context, msg *tgbotapi.Message) (*chatSession, error) {
	chatID := msg.Chat.ID

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.chats[chatID]; ok {
		return s, nil
	}

	env := a.opts.Env
	env.Notifier = &chatNotifier{adapter: a, chatID: chatID}
	chat := workflow.NewChat(env)
	if err := chat.SetLanguage(a.opts.Language); err != nil {
		return nil, err
	}

	s := &chatSession{chat: chat}
	if a.opts.Sessions != nil && a.opts.Events != nil {
		var userID int64
		if msg.From != nil {
			userID = msg.From.ID
		}
		j, err := state.OpenJournal(ctx, a.opts.Sessions, a.opts.Events, buildSessionKey(userID, chatID), "chat", "telegram")
		if err != nil {
			return nil, err
		}
		s.journal = j
	}
	a.chats[chatID] = s
	return s, nil
}

func (a *Adapter) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	s, err := a.session(ctx, msg)
	if err != nil {
		a.logger.Error("open chat session", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
		return
	}

	res := s.chat.Send(ctx, msg.Text, a.opts.MaxTokens)
	if res.Outcome == lifecycle.OutcomeRejected {
		if res.Reason == lifecycle.ReasonBusy {
			a.sendResponse(chatID, busyReply)
		}
		return
	}

	if last, ok := s.chat.Timeline().Last(); ok && last.Role == history.RoleAssistant {
		a.sendResponse(chatID, formatAnswer(last))
	}
	s.sync(ctx, a.logger)
}

func (a *Adapter) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	s, err := a.session(ctx, msg)
	if err != nil {
		a.logger.Error("open chat session", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your file.")
		return
	}

	doc := msg.Document
	desc := ingest.FileDescriptor{Name: doc.FileName, Size: int64(doc.FileSize)}
	if !ingest.Admissible(desc, a.opts.Env.Constraints) {
		a.sendResponse(chatID, "Unsupported file. Accepted: "+a.opts.Env.Constraints.String())
		return
	}

	path, err := a.download(ctx, chatID, doc.FileID, doc.FileName)
	if err != nil {
		a.logger.Error("download document", "chat_id", chatID, "file", doc.FileName, "error", err)
		a.sendResponse(chatID, "Error processing file. Please try again.")
		return
	}
	desc.Path = path

	res := s.chat.Upload(ctx, []ingest.FileDescriptor{desc})
	if res.Reason == lifecycle.ReasonBusy {
		a.sendResponse(chatID, busyReply)
		return
	}
	if res.OK() && s.journal != nil {
		if err := s.journal.Record(ctx, types.EventUpload, state.UploadPayload{Files: res.Value.Names()}); err != nil {
			a.logger.Warn("journal upload", "error", err)
		}
	}
}

func (a *Adapter) download(ctx context.Context, chatID int64, fileID, name string) (string, error) {
	url, err := a.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching file: status %d", resp.StatusCode)
	}

	dir := filepath.Join(a.downloadDir(), strconv.FormatInt(chatID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (a *Adapter) downloadDir() string {
	if a.opts.DownloadDir != "" {
		return a.opts.DownloadDir
	}
	return filepath.Join(os.TempDir(), "docpilot-telegram")
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, greeting)

	case "reset":
		s, err := a.session(ctx, msg)
		if err != nil {
			a.sendResponse(chatID, "Error resetting the conversation.")
			return
		}
		s.chat.Reset()
		if s.journal != nil {
			if err := s.journal.Reset(ctx); err != nil {
				a.logger.Warn("journal reset", "error", err)
			}
		}
		a.sendResponse(chatID, "Conversation cleared. Your document is still loaded.")

	case "status":
		if a.opts.KB == nil {
			a.sendResponse(chatID, "Knowledge base status is unavailable.")
			return
		}
		res := a.opts.KB.RequestStatus(ctx)
		if !res.OK() {
			a.sendResponse(chatID, "Error fetching index status")
			return
		}
		a.sendResponse(chatID, render.Snapshot(res.Value))

	case "language":
		s, err := a.session(ctx, msg)
		if err != nil {
			a.sendResponse(chatID, "Error changing the language.")
			return
		}
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			a.sendResponse(chatID, fmt.Sprintf("Answer language: %s\nAvailable: %s", s.chat.Language(), strings.Join(workflow.Languages, ", ")))
			return
		}
		if err := s.chat.SetLanguage(arg); err != nil {
			a.sendResponse(chatID, err.Error())
			return
		}
		a.sendResponse(chatID, "Answers will be in "+s.chat.Language()+".")

	default:
		a.sendResponse(chatID, unknownCommand)
	}
}

func (s *chatSession) sync(ctx context.Context, logger *slog.Logger) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Sync(ctx, s.chat.Timeline().Entries()); err != nil {
		logger.Warn("journal sync", "error", err)
	}
}

func formatAnswer(e history.Entry) string {
	var b strings.Builder
	b.WriteString(render.Markdown(e.Content))
	for _, u := range e.ImageURLs {
		b.WriteString("\n")
		b.WriteString(u)
	}
	return b.String()
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := a.api.Send(msg); err != nil {
			// Answers are free text and often break Telegram's markdown parser.
			msg.ParseMode = ""
			if _, err := a.api.Send(msg); err != nil {
				a.logger.Error("send message", "chat_id", chatID, "error", err)
			}
		}
	}
}

// chatNotifier delivers workflow notifications into one chat.
type chatNotifier struct {
	adapter *Adapter
	chatID  int64
}

func (n *chatNotifier) Success(msg string) { n.adapter.sendResponse(n.chatID, "✅ "+msg) }
func (n *chatNotifier) Error(msg string)   { n.adapter.sendResponse(n.chatID, "❌ "+msg) }
func (n *chatNotifier) Info(msg string)    { n.adapter.sendResponse(n.chatID, "ℹ️ "+msg) }

// splitMessage cuts text into parts of at most maxTelegramMessage bytes.
// Cuts never fall inside a rune and prefer a newline in the back half of a
// part.
func splitMessage(text string) []string {
	var parts []string
	for len(text) > maxTelegramMessage {
		end := maxTelegramMessage
		for end > maxTelegramMessage-utf8.UTFMax && !utf8.RuneStart(text[end]) {
			end--
		}
		if nl := strings.LastIndexByte(text[:end], '\n'); nl >= end/2 {
			end = nl + 1
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return append(parts, text)
}

func buildSessionKey(userID, chatID int64) types.SessionKey {
	return types.NewSessionKey("telegram",
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(chatID, 10),
	)
}
