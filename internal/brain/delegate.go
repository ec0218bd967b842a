package brain

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const systemPrompt = `
You are Jarvis, a desktop voice assistant on a Linux machine.
Your reply is read aloud by a speech synthesizer.

RULES:
1. Answer in one or two short sentences.
2. No markdown, no lists, no code blocks.
3. The user's terminal is Zsh. GUI apps are started with 'gtk-launch'.
4. If you would need to run something, say what you would run instead.
5. Every message starts with the current time in the form "(System: Time is HH:MM)".
`

const (
	DefaultBaseURL = "http://localhost:11434/v1"
	DefaultModel   = "llama3"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// Delegate hands commands nobody else understood to a chat model. Any
// OpenAI compatible endpoint works; the default is a local Ollama.
type Delegate struct {
	client openai.Client
	model  string
}

func New(cfg Config) *Delegate {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.APIKey == "" {
		// ollama ignores the key but the client insists on one
		cfg.APIKey = "ollama"
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Delegate{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

// Delegate sends text to the model and returns its spoken reply. A
// cancelled ctx aborts the request.
func (d *Delegate) Delegate(ctx context.Context, text string) (string, error) {
	resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		Model: openai.ChatModel(d.model),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Debug("Delegate replied", "model", d.model, "reply", content)

	return content, nil
}
