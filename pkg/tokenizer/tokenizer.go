package tokenizer

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/findirfin/ringil/internal/domain/entities"
)

// Counter counts tokens in text
type Counter interface {
	CountTokens(text string) int
}

// Tokenizer provides token counting functionality
type Tokenizer struct {
	encoding     *tiktoken.Tiktoken
	encodingName string
}

// EncodingForModel maps a model name to a tiktoken encoding
func EncodingForModel(model string) string {
	switch {
	case strings.Contains(model, "gpt-4o"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "o200k_base"
	case strings.Contains(model, "gpt-3") && !strings.Contains(model, "gpt-3.5"):
		return "p50k_base"
	default:
		// gpt-4, gpt-3.5, grok and others are approximated with cl100k_base
		return "cl100k_base"
	}
}

// NewTokenizer creates a new tokenizer for the given model
func NewTokenizer(model string) (*Tokenizer, error) {
	encodingName := EncodingForModel(model)

	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", encodingName, err)
	}

	return &Tokenizer{
		encoding:     encoding,
		encodingName: encodingName,
	}, nil
}

// CountTokens counts tokens in a text string
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// Encoding returns the encoding name in use
func (t *Tokenizer) Encoding() string {
	return t.encodingName
}

// messageOverhead approximates the per-message role and framing tokens of chat formats
const messageOverhead = 4

// CountMessageTokens counts tokens in a message, including role and formatting overhead
func CountMessageTokens(c Counter, message *entities.Message) int {
	if message == nil {
		return 0
	}
	return c.CountTokens(message.Text) + c.CountTokens(string(message.Role)) + messageOverhead
}

// CountConversationTokens counts the prompt tokens of a history plus system prompt
func CountConversationTokens(c Counter, messages []entities.Message, systemPrompt string) int {
	total := 0
	if systemPrompt != "" {
		total += c.CountTokens(systemPrompt) + messageOverhead
	}
	for i := range messages {
		total += CountMessageTokens(c, &messages[i])
	}
	// conversation-level framing
	return total + 2
}

// Heuristic estimates roughly four characters per token; used when no encoding is available
type Heuristic struct{}

// CountTokens implements Counter
func (Heuristic) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

var (
	cacheMu sync.Mutex
	cache   = make(map[string]Counter)
)

// ForModel returns a cached counter for model, falling back to Heuristic when
// the encoding cannot be loaded (tiktoken fetches BPE files on first use).
func ForModel(model string) Counter {
	name := EncodingForModel(model)

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if c, ok := cache[name]; ok {
		return c
	}

	var c Counter = Heuristic{}
	if tk, err := NewTokenizer(model); err == nil {
		c = tk
	}
	cache[name] = c
	return c
}
