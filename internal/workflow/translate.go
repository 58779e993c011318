package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/docpilot/internal/lifecycle"
	"github.com/user/docpilot/pkg/backend"
)

// DefaultLanguage needs no translation.
const DefaultLanguage = "English"

// Languages are the output languages the backend translates into.
var Languages = []string{"English", "Hindi", "Tamil"}

// NormalizeLanguage matches name case-insensitively against Languages.
func NormalizeLanguage(name string) (string, error) {
	if name == "" {
		return DefaultLanguage, nil
	}
	for _, l := range Languages {
		if strings.EqualFold(l, name) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q (choose from %s)", name, strings.Join(Languages, ", "))
}

func translate(ctx context.Context, b backend.Backend, text, language string) (string, error) {
	resp, err := b.Translate(ctx, backend.TranslateRequest{Text: text, TargetLanguage: language})
	if err != nil {
		return "", fmt.Errorf("translate to %s: %w", language, err)
	}
	if resp.TranslatedText == "" {
		return "", backend.ErrEmptyAnswer
	}
	return resp.TranslatedText, nil
}

// SlotTranslate is the translator's action slot.
const SlotTranslate = "translate"

// Translator translates free text.
type Translator struct {
	env  Env
	slot *lifecycle.Slot
}

// NewTranslator creates a translator.
func NewTranslator(env Env) *Translator {
	return &Translator{env: env.withDefaults(), slot: lifecycle.NewSlot(SlotTranslate)}
}

// Translate sends text to the backend. Blank text is rejected.
func (t *Translator) Translate(ctx context.Context, text, language string) lifecycle.Result[string] {
	return lifecycle.Invoke(ctx, t.env.Controller, t.slot, func(ctx context.Context) (string, error) {
		return translate(ctx, t.env.Backend, text, language)
	}, lifecycle.Hooks[string]{
		Precondition: func() bool {
			return strings.TrimSpace(text) != "" && language != ""
		},
		OnFailure: func(err error) {
			t.env.Notifier.Error("Error translating text: " + backend.Detail(err))
		},
	})
}
