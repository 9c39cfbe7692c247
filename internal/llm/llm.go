package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sokinpui/mend.go/model"
)

// ErrTransport marks failures of the model backend itself. They are never
// retried.
var ErrTransport = errors.New("model transport failure")

// Client sends a conversation to a chat model and returns its reply.
type Client interface {
	Chat(ctx context.Context, modelName string, messages []model.Message) (string, error)
}

// Provider names a supported backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Options configures a backend.
type Options struct {
	Provider      Provider
	OllamaHost    string
	OpenAIKey     string
	OpenAIBaseURL string
}

// New creates the client for the configured provider.
func New(opts Options) (Client, error) {
	switch Provider(strings.ToLower(string(opts.Provider))) {
	case "", ProviderOllama:
		return NewOllamaClient(opts.OllamaHost), nil
	case ProviderOpenAI:
		return NewOpenAIClient(opts.OpenAIKey, opts.OpenAIBaseURL)
	default:
		return nil, fmt.Errorf("unknown provider %q (want %q or %q)", opts.Provider, ProviderOllama, ProviderOpenAI)
	}
}

func transportError(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrTransport, fmt.Sprintf(format, a...))
}
