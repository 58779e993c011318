// Package tokens estimates how many tokens a chat turn sends to the backend.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/user/docpilot/internal/history"
)

// Encoding is the BPE used for estimates.
const Encoding = "cl100k_base"

func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Estimator counts tokens with a shared tokenizer.
type Estimator struct {
	tokenizer *tiktoken.Tiktoken
	mu        sync.Mutex
}

var (
	shared     *Estimator
	sharedOnce sync.Once
	sharedErr  error
)

// Shared returns the process-wide estimator, loading the encoding once.
func Shared() (*Estimator, error) {
	sharedOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(Encoding)
		if err != nil {
			sharedErr = fmt.Errorf("get tokenizer: %w", err)
			return
		}
		shared = &Estimator{tokenizer: enc}
	})
	return shared, sharedErr
}

// Count returns the token count of text.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Estimate is the token footprint of one turn.
type Estimate struct {
	Question int
	History  int
	Pairs    int
}

// Total is the prompt size before the backend adds retrieved context.
func (e Estimate) Total() int {
	return e.Question + e.History
}

func (e Estimate) String() string {
	return fmt.Sprintf("~%d tokens (question %d, history %d over %d pairs)", e.Total(), e.Question, e.History, e.Pairs)
}

// Turn estimates the prompt of asking question after prior.
func (e *Estimator) Turn(question string, prior []history.Entry) Estimate {
	pairs := history.Encode(prior)
	est := Estimate{Question: e.Count(question), Pairs: len(pairs)}
	for _, p := range pairs {
		est.History += e.Count(p.Prompt) + e.Count(p.Response)
	}
	return est
}
